// Package logging provides structured, component-scoped logging for the
// goose load-testing engine.
//
// The engine's own components (Supervisor, Aggregator, Throttle driver,
// Event Logger) log through a shared global logger configured once at
// startup from the CLI's --log-level/--log-file/--log-format/--verbose
// flags; each component calls WithComponent to tag its own lines. This
// is deliberately a much smaller surface than a general-purpose logging
// library: goose only ever logs through one global instance tagged per
// component, so there is no hierarchy of loggers, no hooks, and no
// pluggable backends to support.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LogLevel is the minimum severity a Logger will emit.
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l LogLevel) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// LogFormat selects how the engine renders its own diagnostic log
// lines: text for a human at a terminal, json for a line-oriented log
// shipper. This is independent of --stats-log-format/--debug-log-format
// in pkg/goose, which serialize RequestEvents and stats snapshots
// rather than these component log lines.
type LogFormat int

const (
	TextFormat LogFormat = iota
	JSONFormat
)

// ParseLogFormat parses the CLI's --log-format value.
func ParseLogFormat(name string) (LogFormat, error) {
	switch strings.ToLower(name) {
	case "", "text":
		return TextFormat, nil
	case "json":
		return JSONFormat, nil
	default:
		return TextFormat, fmt.Errorf("invalid log format: %s", name)
	}
}

// LogEntry is one rendered log line.
type LogEntry struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	Component string                 `json:"component,omitempty"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Logger is a level-filtered, component-scoped logger. A single global
// instance is shared by every engine component; WithComponent returns a
// cheap copy tagged with that component's name rather than a child
// object with its own lifecycle.
type Logger struct {
	mu        sync.RWMutex
	level     LogLevel
	format    LogFormat
	output    io.Writer
	component string
}

// Config configures a Logger at construction time.
type Config struct {
	Level  LogLevel
	Format LogFormat
	Output io.Writer
}

// DefaultConfig returns a default logger configuration: info level, text
// format, stdout.
func DefaultConfig() *Config {
	return &Config{
		Level:  InfoLevel,
		Format: TextFormat,
		Output: os.Stdout,
	}
}

// NewLogger creates a new logger with the given configuration.
func NewLogger(config *Config) *Logger {
	if config == nil {
		config = DefaultConfig()
	}
	return &Logger{
		level:  config.Level,
		format: config.Format,
		output: config.Output,
	}
}

// WithComponent returns a copy of the logger tagged with component,
// used by each engine component (supervisor, aggregator, throttle,
// event logger, user) to prefix its own lines.
func (l *Logger) WithComponent(component string) *Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return &Logger{
		level:     l.level,
		format:    l.format,
		output:    l.output,
		component: component,
	}
}

func (l *Logger) isEnabled(level LogLevel) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return level >= l.level
}

func (l *Logger) log(level LogLevel, message string, fields map[string]interface{}) {
	if !l.isEnabled(level) {
		return
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	entry := LogEntry{
		Timestamp: time.Now(),
		Level:     level.String(),
		Component: l.component,
		Message:   message,
		Fields:    fields,
	}

	var line string
	switch l.format {
	case JSONFormat:
		data, _ := json.Marshal(entry)
		line = string(data) + "\n"
	default:
		line = l.formatText(entry)
	}

	l.output.Write([]byte(line))
}

func (l *Logger) formatText(entry LogEntry) string {
	parts := []string{
		entry.Timestamp.Format("2006-01-02 15:04:05"),
		fmt.Sprintf("[%s]", entry.Level),
	}
	if entry.Component != "" {
		parts = append(parts, fmt.Sprintf("(%s)", entry.Component))
	}
	parts = append(parts, entry.Message)
	result := strings.Join(parts, " ")

	if len(entry.Fields) > 0 {
		fieldParts := make([]string, 0, len(entry.Fields))
		for key, value := range entry.Fields {
			fieldParts = append(fieldParts, fmt.Sprintf("%s=%v", key, value))
		}
		result += fmt.Sprintf(" [%s]", strings.Join(fieldParts, " "))
	}

	return result + "\n"
}

func (l *Logger) Debug(message string, fields ...map[string]interface{}) {
	l.log(DebugLevel, message, firstField(fields))
}

func (l *Logger) Info(message string, fields ...map[string]interface{}) {
	l.log(InfoLevel, message, firstField(fields))
}

func (l *Logger) Warn(message string, fields ...map[string]interface{}) {
	l.log(WarnLevel, message, firstField(fields))
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.log(DebugLevel, fmt.Sprintf(format, args...), nil)
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.log(InfoLevel, fmt.Sprintf(format, args...), nil)
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.log(WarnLevel, fmt.Sprintf(format, args...), nil)
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.log(ErrorLevel, fmt.Sprintf(format, args...), nil)
}

func firstField(fields []map[string]interface{}) map[string]interface{} {
	if len(fields) > 0 {
		return fields[0]
	}
	return nil
}

// WithField returns a FieldLogger that attaches key/value to every line
// logged through it, used by per-task error/panic reporting where the
// failing task's name should tag the line (pkg/goose's User.runTask).
func (l *Logger) WithField(key string, value interface{}) *FieldLogger {
	return &FieldLogger{logger: l, fields: map[string]interface{}{key: value}}
}

// FieldLogger wraps a Logger with a fixed set of fields.
type FieldLogger struct {
	logger *Logger
	fields map[string]interface{}
}

func (fl *FieldLogger) Warnf(format string, args ...interface{}) {
	fl.logger.log(WarnLevel, fmt.Sprintf(format, args...), fl.fields)
}

func (fl *FieldLogger) Errorf(format string, args ...interface{}) {
	fl.logger.log(ErrorLevel, fmt.Sprintf(format, args...), fl.fields)
}

var (
	defaultLogger   *Logger
	defaultLoggerMu sync.RWMutex
)

// InitGlobalLogger replaces the global logger used by GetGlobalLogger.
func InitGlobalLogger(config *Config) {
	defaultLoggerMu.Lock()
	defer defaultLoggerMu.Unlock()
	defaultLogger = NewLogger(config)
}

// GetGlobalLogger returns the shared global logger, lazily initialized
// to DefaultConfig if InitGlobalLogger/InitFromFlags hasn't run yet
// (exercised by package tests that construct engine types directly).
func GetGlobalLogger() *Logger {
	defaultLoggerMu.RLock()
	defer defaultLoggerMu.RUnlock()
	if defaultLogger == nil {
		defaultLogger = NewLogger(DefaultConfig())
	}
	return defaultLogger
}

// CreateFileOutput opens filename for unbuffered, append-style writes,
// creating its parent directory if needed.
func CreateFileOutput(filename string) (io.Writer, error) {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return file, nil
}

// CreateCombinedOutput returns a writer that duplicates every line to
// both stdout and filename, the engine's --log-file behavior ("append
// logs to this file, in addition to stdout").
func CreateCombinedOutput(filename string) (io.Writer, error) {
	fileWriter, err := CreateFileOutput(filename)
	if err != nil {
		return nil, err
	}
	return io.MultiWriter(os.Stdout, fileWriter), nil
}

// LevelFromVerbosity maps a repeatable -v/--verbose count to a LogLevel:
// 0 is the default (warnings and above), one repeat drops the floor to
// info, two or more to debug.
func LevelFromVerbosity(count int) LogLevel {
	switch {
	case count <= 0:
		return WarnLevel
	case count == 1:
		return InfoLevel
	default:
		return DebugLevel
	}
}

// InitFromFlags initializes the global logger from the CLI's logging
// flags. logFile may be empty, in which case output goes to stdout
// only. format is the CLI's --log-format value ("text" or "json");
// an empty string defaults to text.
func InitFromFlags(verbosity int, logFile string, format string) error {
	logFormat, err := ParseLogFormat(format)
	if err != nil {
		return err
	}

	cfg := DefaultConfig()
	cfg.Level = LevelFromVerbosity(verbosity)
	cfg.Format = logFormat

	if logFile != "" {
		output, err := CreateCombinedOutput(logFile)
		if err != nil {
			return fmt.Errorf("failed to initialize log output: %w", err)
		}
		cfg.Output = output
	}

	InitGlobalLogger(cfg)
	return nil
}
