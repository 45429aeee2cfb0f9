package goose

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/LionsAd/goose/pkg/logging"
)

// StatsSnapshotEntry is one (method, name) endpoint's row within a
// periodic LoadTestStats snapshot written to --stats-log-file, taken on
// the same cadence as the console running report (spec.md §4.3 cadence).
type StatsSnapshotEntry struct {
	ElapsedSecs int64   `json:"elapsed_secs"`
	Method      string  `json:"method"`
	Name        string  `json:"name"`
	Requests    int64   `json:"requests"`
	Failures    int64   `json:"failures"`
	MinMs       int64   `json:"min_ms"`
	MaxMs       int64   `json:"max_ms"`
	MeanMs      float64 `json:"mean_ms"`
}

// statsSnapshotFromStats flattens a LoadTestStats snapshot into the rows
// one StatsLogger tick writes.
func statsSnapshotFromStats(stats *LoadTestStats, elapsedSecs int64) []*StatsSnapshotEntry {
	snapshot := stats.Snapshot()
	entries := make([]*StatsSnapshotEntry, 0, len(snapshot))
	for _, es := range snapshot {
		min := es.MinMs
		if min < 0 {
			min = 0
		}
		entries = append(entries, &StatsSnapshotEntry{
			ElapsedSecs: elapsedSecs,
			Method:      es.Method,
			Name:        es.Name,
			Requests:    es.Requests(),
			Failures:    es.Failure,
			MinMs:       min,
			MaxMs:       es.MaxMs,
			MeanMs:      es.Mean(),
		})
	}
	return entries
}

var statsLogSentinel = []*StatsSnapshotEntry{{Name: "\x00__shutdown__"}}

func isStatsSentinel(batch []*StatsSnapshotEntry) bool {
	return len(batch) == 1 && batch[0] == statsLogSentinel[0]
}

// StatsLogger is a single-consumer, multi-producer sink that serializes
// periodic LoadTestStats snapshots to a file, one row per endpoint per
// tick, mirroring EventLogger's queue/sentinel/format machinery (spec.md
// §4.5 "the same sink abstraction") but driven by
// --stats-log-file/--stats-log-format instead of
// --debug-log-file/--debug-log-format.
type StatsLogger struct {
	batches chan []*StatsSnapshotEntry
	format  LogFormat
	path    string
	done    chan struct{}
	logger  *logging.Logger
}

// NewStatsLogger returns a logger ready for Start; path is opened lazily
// there, matching NewEventLogger.
func NewStatsLogger(path string, format LogFormat) (*StatsLogger, error) {
	return &StatsLogger{
		batches: make(chan []*StatsSnapshotEntry, 64),
		format:  format,
		path:    path,
		done:    make(chan struct{}),
		logger:  logging.GetGlobalLogger().WithComponent("statslog"),
	}, nil
}

// Enqueue hands one snapshot's worth of rows to the logger without
// blocking the caller.
func (l *StatsLogger) Enqueue(entries []*StatsSnapshotEntry) {
	select {
	case l.batches <- entries:
	default:
		go func() { l.batches <- entries }()
	}
}

// Start opens the backing file and runs the consumer loop until a
// sentinel is received, then flushes and closes. Intended to run in its
// own goroutine.
func (l *StatsLogger) Start() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND|os.O_TRUNC, 0644)
	if err != nil {
		l.logger.Warnf("could not open stats log %q, skipping: %v", l.path, err)
		close(l.done)
		return wrapError(ErrIO, err)
	}
	// Deferred calls run in reverse: flush, close the file, then signal done.
	defer close(l.done)
	defer f.Close()

	w := bufio.NewWriter(f)
	defer w.Flush()

	var csvWriter *csv.Writer
	if l.format == FormatCSV {
		csvWriter = csv.NewWriter(w)
		csvWriter.Write([]string{"elapsed_secs", "method", "name", "requests", "failures", "min_ms", "max_ms", "mean_ms"})
	}

	for batch := range l.batches {
		if isStatsSentinel(batch) {
			break
		}
		for _, entry := range batch {
			if err := writeStatsEntry(w, csvWriter, l.format, entry); err != nil {
				l.logger.Warnf("stats log write failed, skipping entry: %v", err)
			}
		}
	}
	if csvWriter != nil {
		csvWriter.Flush()
	}
	return nil
}

// Stop enqueues the shutdown sentinel and waits for the consumer to
// flush and close.
func (l *StatsLogger) Stop() {
	l.batches <- statsLogSentinel
	<-l.done
}

func writeStatsEntry(w io.Writer, csvWriter *csv.Writer, format LogFormat, e *StatsSnapshotEntry) error {
	switch format {
	case FormatJSON:
		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case FormatCSV:
		return csvWriter.Write([]string{
			strconv.FormatInt(e.ElapsedSecs, 10),
			e.Method,
			e.Name,
			strconv.FormatInt(e.Requests, 10),
			strconv.FormatInt(e.Failures, 10),
			strconv.FormatInt(e.MinMs, 10),
			strconv.FormatInt(e.MaxMs, 10),
			strconv.FormatFloat(e.MeanMs, 'f', 1, 64),
		})
	default: // FormatRaw
		_, err := fmt.Fprintf(w, "%+v\n", *e)
		return err
	}
}
