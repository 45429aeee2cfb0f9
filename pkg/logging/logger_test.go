package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerFiltersBelowConfiguredLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&Config{Level: WarnLevel, Format: TextFormat, Output: &buf})

	l.Info("should not appear")
	assert.Empty(t, buf.String())

	l.Warn("should appear")
	assert.Contains(t, buf.String(), "should appear")
}

func TestWithComponentTagsTextOutput(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&Config{Level: DebugLevel, Format: TextFormat, Output: &buf})

	l.WithComponent("throttle").Infof("driver started at %d req/s", 5)

	line := buf.String()
	assert.Contains(t, line, "(throttle)")
	assert.Contains(t, line, "driver started at 5 req/s")
}

func TestJSONFormatEncodesComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&Config{Level: DebugLevel, Format: JSONFormat, Output: &buf})

	l.WithComponent("aggregator").Warn("clamping at zero", map[string]interface{}{"name": "index"})

	var entry LogEntry
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "WARN", entry.Level)
	assert.Equal(t, "aggregator", entry.Component)
	assert.Equal(t, "clamping at zero", entry.Message)
	assert.Equal(t, "index", entry.Fields["name"])
}

func TestWithFieldErrorfIncludesField(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&Config{Level: DebugLevel, Format: TextFormat, Output: &buf})

	l.WithField("task", "login").Errorf("task body panicked: %v", "boom")

	out := buf.String()
	assert.Contains(t, out, "task body panicked: boom")
	assert.Contains(t, out, "task=login")
}

func TestParseLogFormat(t *testing.T) {
	f, err := ParseLogFormat("json")
	require.NoError(t, err)
	assert.Equal(t, JSONFormat, f)

	f, err = ParseLogFormat("")
	require.NoError(t, err)
	assert.Equal(t, TextFormat, f)

	_, err = ParseLogFormat("xml")
	assert.Error(t, err)
}

func TestLevelFromVerbosity(t *testing.T) {
	assert.Equal(t, WarnLevel, LevelFromVerbosity(0))
	assert.Equal(t, InfoLevel, LevelFromVerbosity(1))
	assert.Equal(t, DebugLevel, LevelFromVerbosity(2))
	assert.Equal(t, DebugLevel, LevelFromVerbosity(5))
}

func TestInitFromFlagsRejectsUnknownFormat(t *testing.T) {
	err := InitFromFlags(0, "", "yaml")
	assert.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "invalid log format"))
}
