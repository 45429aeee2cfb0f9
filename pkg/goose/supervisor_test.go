package goose

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttackExecuteRunsAgainstTestServer(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := DefaultConfiguration()
	cfg.Host = srv.URL
	cfg.Users = 2
	cfg.HatchRate = 10
	cfg.RunTime = 300 * time.Millisecond
	cfg.WebPort = 0

	attack := NewAttack(cfg)
	attack.RegisterTaskSet(NewTaskSet("t").SetWait(0, 0).RegisterTask(
		NewTask("ping", func(u *User) error {
			_, err := u.Send(context.Background(), "GET", "/", nil)
			return err
		}),
	))

	stats, err := attack.Execute(context.Background())
	require.NoError(t, err)
	require.NotNil(t, stats)
	assert.Equal(t, 2, stats.UsersStarted)

	snap := stats.Snapshot()
	require.Len(t, snap, 1)
	assert.Greater(t, snap[0].Requests(), int64(0))
	assert.Greater(t, hits, 0)
}

func TestAttackExecuteWritesStatsLogFile(t *testing.T) {
	origInterval := reportInterval
	reportInterval = 20 * time.Millisecond
	t.Cleanup(func() { reportInterval = origInterval })

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "stats.log")

	cfg := DefaultConfiguration()
	cfg.Host = srv.URL
	cfg.Users = 1
	cfg.HatchRate = 10
	cfg.RunTime = 300 * time.Millisecond
	cfg.WebPort = 0
	cfg.StatsLogFile = path
	cfg.StatsLogFormat = "json"

	attack := NewAttack(cfg)
	attack.RegisterTaskSet(NewTaskSet("t").SetWait(0, 0).RegisterTask(
		NewTask("ping", func(u *User) error {
			_, err := u.Send(context.Background(), "GET", "/", nil)
			return err
		}),
	))

	_, err := attack.Execute(context.Background())
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `"name":"/"`))
}

func TestAttackExecuteRejectsNoTaskSets(t *testing.T) {
	attack := NewAttack(DefaultConfiguration())
	attack.Config.Host = "http://example.com"
	_, err := attack.Execute(context.Background())
	assert.Error(t, err)
}

func TestAttackExecuteSurfacesGaggleFeatureNotEnabled(t *testing.T) {
	cfg := DefaultConfiguration()
	cfg.Host = "http://example.com"
	cfg.Manager = true
	cfg.ExpectWorkers = 1
	cfg.Users = 1

	attack := NewAttack(cfg)
	attack.RegisterTaskSet(NewTaskSet("t").RegisterTask(NewTask("noop", noop)))

	_, err := attack.Execute(context.Background())
	require.Error(t, err)

	gooseErr, ok := err.(*GooseError)
	require.True(t, ok)
	assert.Equal(t, ErrFeatureNotEnabled, gooseErr.Kind)
}
