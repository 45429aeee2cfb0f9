package goose

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"golang.org/x/term"
)

// isTerminal reports whether stdout is attached to a terminal, grounded
// on the teacher's use of golang.org/x/term for TTY-aware CLI output.
func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// isTerminalFunc is isTerminal by default; report_test.go substitutes it
// to exercise both the terminal and non-terminal redraw decisions
// deterministically, since the test runner's own stdout is never a TTY.
var isTerminalFunc = isTerminal

// clearSequence repositions the cursor to the top of the screen and
// clears everything below it, so a running report printed to a real
// terminal redraws in place every tick instead of scrolling.
const clearSequence = "\033[H\033[2J"

// RenderRunning renders the two-table running report described in
// spec.md §4.7/§6: counts/rates and latencies, no percentile or
// status-code table. elapsedSecs is the whole-second duration since the
// run-timer reset at the end of hatching (spec.md §4.6 step 8), used for
// the req/s and fail/s columns. When stdout is a terminal, the report is
// prefixed with a clear-and-home escape sequence so each call overwrites
// the previous one in place rather than scrolling the screen.
func RenderRunning(stats *LoadTestStats, elapsedSecs int64) string {
	var b strings.Builder
	if isTerminalFunc() {
		b.WriteString(clearSequence)
	}
	snapshot := stats.Snapshot()
	writeCountsTable(&b, snapshot, elapsedSecs)
	writeLatencyTable(&b, snapshot)
	return b.String()
}

// RenderFinal renders the full final report: counts/rates, latencies,
// the percentile table (if enabled), and the status-code table (if
// enabled).
func RenderFinal(stats *LoadTestStats) string {
	var b strings.Builder
	snapshot := stats.Snapshot()
	writeCountsTable(&b, snapshot, stats.DurationSecs)
	writeLatencyTable(&b, snapshot)
	if stats.TrackPercentile {
		writePercentileTable(&b, stats, snapshot)
	}
	if stats.TrackStatus {
		writeStatusTable(&b, snapshot)
	}
	return b.String()
}

func writeCountsTable(b *strings.Builder, snapshot []*EndpointStats, durationSecs int64) {
	w := tabwriter.NewWriter(b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "Name\t# reqs\t# fails\treq/s\tfail/s")

	var totalReqs, totalFails int64
	for _, es := range snapshot {
		reqs := es.Requests()
		totalReqs += reqs
		totalFails += es.Failure

		pct := 0.0
		if reqs > 0 {
			pct = float64(es.Failure) / float64(reqs) * 100
		}
		fmt.Fprintf(w, "%s\t%d\t%d (%.1f%%)\t%s\t%s\n",
			endpointKey(es.Method, es.Name), reqs, es.Failure, pct,
			rate(reqs, durationSecs), rate(es.Failure, durationSecs))
	}

	pct := 0.0
	if totalReqs > 0 {
		pct = float64(totalFails) / float64(totalReqs) * 100
	}
	fmt.Fprintf(w, "%s\t%d\t%d (%.1f%%)\t%s\t%s\n",
		"Aggregated", totalReqs, totalFails, pct, rate(totalReqs, durationSecs), rate(totalFails, durationSecs))
	w.Flush()
}

func writeLatencyTable(b *strings.Builder, snapshot []*EndpointStats) {
	w := tabwriter.NewWriter(b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "Name\tAvg (ms)\tMin\tMax\tMean")

	var sumCount, sumTotal, sumMax int64
	sumMin := int64(-1)
	for _, es := range snapshot {
		min := es.MinMs
		if min < 0 {
			min = 0
		}
		fmt.Fprintf(w, "%s\t%.1f\t%d\t%d\t%.1f\n",
			endpointKey(es.Method, es.Name), es.Mean(), min, es.MaxMs, es.Mean())

		sumCount += es.Count
		sumTotal += es.SumMs
		if sumMin < 0 || (es.MinMs >= 0 && es.MinMs < sumMin) {
			sumMin = es.MinMs
		}
		if es.MaxMs > sumMax {
			sumMax = es.MaxMs
		}
	}
	if sumMin < 0 {
		sumMin = 0
	}

	mean := 0.0
	if sumCount > 0 {
		mean = float64(sumTotal) / float64(sumCount)
	}
	fmt.Fprintf(w, "%s\t%.1f\t%d\t%d\t%.1f\n", "Aggregated", mean, sumMin, sumMax, mean)
	w.Flush()
}

func writePercentileTable(b *strings.Builder, stats *LoadTestStats, snapshot []*EndpointStats) {
	w := tabwriter.NewWriter(b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "Name\t50%\t75%\t98%\t99%\t99.9%\t99.99%")
	for _, es := range snapshot {
		p := stats.Percentiles(es)
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t%d\n",
			endpointKey(es.Method, es.Name), p["50%"], p["75%"], p["98%"], p["99%"], p["99.9%"], p["99.99%"])
	}
	w.Flush()
}

func writeStatusTable(b *strings.Builder, snapshot []*EndpointStats) {
	w := tabwriter.NewWriter(b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "Name\tStatus Code\tCount")
	for _, es := range snapshot {
		if es.StatusCodes == nil {
			continue
		}
		codes := make([]int, 0, len(es.StatusCodes))
		for code := range es.StatusCodes {
			codes = append(codes, code)
		}
		sort.Ints(codes)
		for _, code := range codes {
			fmt.Fprintf(w, "%s\t%d\t%d\n", endpointKey(es.Method, es.Name), code, es.StatusCodes[code])
		}
	}
	w.Flush()
}

func rate(count, durationSecs int64) string {
	if durationSecs <= 0 {
		return "0.00"
	}
	return fmt.Sprintf("%.2f", float64(count)/float64(durationSecs))
}
