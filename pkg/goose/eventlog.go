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

// LogFormat selects the serialization used by an EventLogger sink.
type LogFormat int

const (
	// FormatJSON serializes one JSON object per line.
	FormatJSON LogFormat = iota
	// FormatCSV serializes rows with a header matching spec.md §6.
	FormatCSV
	// FormatRaw is an implementation-defined textual debug dump.
	FormatRaw
)

// ParseLogFormat parses a CLI format name (json, csv, or raw) for either
// sink; Configuration.Validate is what rejects csv for the debug log.
func ParseLogFormat(name string) (LogFormat, error) {
	switch name {
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "raw":
		return FormatRaw, nil
	default:
		return FormatJSON, newOptionError("--log-format", name, "must be one of json, csv, raw")
	}
}

// eventLogSentinel is enqueued on shutdown to tell the consumer to flush
// and close (spec.md §4.5).
var eventLogSentinel = &RequestEvent{Name: "\x00__shutdown__"}

func isSentinel(ev *RequestEvent) bool { return ev == eventLogSentinel }

// EventLogger is a single-consumer, multi-producer sink that serializes
// raw RequestEvents to a file, one per line, in the configured format.
// The queue is unbounded: event emission never blocks user progress, at
// the deliberate cost of unbounded memory growth if disk falls behind
// (spec.md §4.5 "Backpressure").
type EventLogger struct {
	events chan *RequestEvent
	format LogFormat
	path   string
	done   chan struct{}
	logger *logging.Logger
}

// NewEventLogger returns a logger ready for Start; it does not touch the
// file and never fails. Start opens path, and an open failure there is
// logged as a warning and returned as ErrIO without aborting the test.
func NewEventLogger(path string, format LogFormat) (*EventLogger, error) {
	return &EventLogger{
		events: make(chan *RequestEvent, 1024),
		format: format,
		path:   path,
		done:   make(chan struct{}),
		logger: logging.GetGlobalLogger().WithComponent("eventlog"),
	}, nil
}

// Enqueue hands an event to the logger without blocking the caller.
func (l *EventLogger) Enqueue(ev *RequestEvent) {
	select {
	case l.events <- ev:
	default:
		// Unbounded in spirit; channel buffer is just a performance
		// knob, so grow by spawning a goroutine rather than dropping.
		go func() { l.events <- ev }()
	}
}

// Start opens the backing file and runs the consumer loop until a
// sentinel is received, then flushes and closes. Intended to run in its
// own goroutine.
func (l *EventLogger) Start() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND|os.O_TRUNC, 0644)
	if err != nil {
		l.logger.Warnf("could not open event log %q, skipping: %v", l.path, err)
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
		csvWriter.Write([]string{"elapsed", "method", "name", "url", "final_url",
			"redirected", "response_time", "status_code", "success", "update", "user"})
	}

	for ev := range l.events {
		if isSentinel(ev) {
			break
		}
		if err := writeEvent(w, csvWriter, l.format, ev); err != nil {
			l.logger.Warnf("event log write failed, skipping event: %v", err)
		}
	}
	if csvWriter != nil {
		csvWriter.Flush()
	}
	return nil
}

// Stop enqueues the shutdown sentinel and waits for the consumer to
// flush and close (spec.md §4.5).
func (l *EventLogger) Stop() {
	l.events <- eventLogSentinel
	<-l.done
}

func writeEvent(w io.Writer, csvWriter *csv.Writer, format LogFormat, ev *RequestEvent) error {
	switch format {
	case FormatJSON:
		data, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case FormatCSV:
		return csvWriter.Write([]string{
			strconv.FormatInt(ev.ElapsedMs, 10),
			ev.Method,
			ev.Name,
			ev.URL,
			ev.FinalURL,
			strconv.FormatBool(ev.Redirected),
			strconv.FormatInt(ev.ResponseTimeMs, 10),
			strconv.Itoa(ev.StatusCode),
			strconv.FormatBool(ev.Success),
			strconv.FormatBool(ev.Update),
			strconv.Itoa(ev.UserIndex),
		})
	default: // FormatRaw
		_, err := fmt.Fprintf(w, "%+v\n", *ev)
		return err
	}
}
