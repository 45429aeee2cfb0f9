package goose

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogFormat(t *testing.T) {
	f, err := ParseLogFormat("json")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	f, err = ParseLogFormat("csv")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	_, err = ParseLogFormat("xml")
	assert.Error(t, err)
}

func TestEventLoggerWritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	logger, err := NewEventLogger(path, FormatJSON)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		logger.Start()
		close(done)
	}()

	logger.Enqueue(&RequestEvent{Method: "GET", Name: "/", Success: true, StatusCode: 200})
	logger.Stop()
	<-done

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"status_code":200`)
}

func TestEventLoggerWritesCSVHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.csv")
	logger, err := NewEventLogger(path, FormatCSV)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		logger.Start()
		close(done)
	}()

	logger.Stop()
	<-done

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "elapsed,method,name,url,final_url")
}
