package goose

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	"golang.org/x/net/http2"

	"github.com/LionsAd/goose/pkg/logging"
	"github.com/LionsAd/goose/pkg/webui"
)

// Hook is a global test-start/test-stop callback, run once by a
// throwaway user (spec.md §4.6 steps 5 and shutdown).
type Hook func(*User) error

// reportInterval is the running-report/stats-log cadence (spec.md §4.3).
// Package-level so supervisor_test.go can shrink it instead of a test
// waiting out a real 15 seconds.
var reportInterval = 15 * time.Second

// Attack is the top-level engine object an embedder builds: it holds the
// registered TaskSets, hooks, and configuration, and drives one run of
// the Supervisor. It plays the role the teacher's pkg/core/client.Client
// plays for upload/download: the single embedder-facing entry point.
type Attack struct {
	Config    *Configuration
	TaskSets  []*TaskSet
	OnStart   Hook
	OnStop    Hook

	// ClientFactory builds one HTTPDoer per spawned User. Defaults to a
	// *http.Client with its own cookie jar and transport if left nil
	// (spec.md §5 "HTTP client state ... is per-user and not shared").
	ClientFactory func() HTTPDoer

	logger *logging.Logger
}

// NewAttack builds an Attack ready for TaskSet registration.
func NewAttack(cfg *Configuration) *Attack {
	if cfg == nil {
		cfg = DefaultConfiguration()
	}
	return &Attack{
		Config: cfg,
		logger: logging.GetGlobalLogger().WithComponent("supervisor"),
	}
}

// RegisterTaskSet adds a TaskSet to the attack.
func (a *Attack) RegisterTaskSet(ts *TaskSet) *Attack {
	a.TaskSets = append(a.TaskSets, ts)
	return a
}

// defaultClientFactory returns the engine's default per-user HTTP
// capability: a *http.Client with its own transport and cookie jar so no
// connection pool or cookie state is shared across users (spec.md §5).
// The transport is explicitly configured for HTTP/2 via
// golang.org/x/net/http2.ConfigureTransport, the same package the
// teacher's dependency graph carries for its libp2p/Tor transports,
// rather than relying on bare ALPN negotiation; a configuration failure
// falls back to a stock HTTP/1.1 transport instead of aborting.
func defaultClientFactory() HTTPDoer {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if err := http2.ConfigureTransport(transport); err != nil {
		logging.GetGlobalLogger().WithComponent("supervisor").Warnf(
			"http2 transport configuration failed, falling back to http/1.1: %v", err)
	}

	jar, _ := cookiejar.New(nil)

	return &http.Client{
		Transport: transport,
		Jar:       jar,
	}
}

// Execute runs the whole attack lifecycle to completion: validate,
// plan, hatch, steady-state report, and shut down (spec.md §4.6).
func (a *Attack) Execute(ctx context.Context) (*LoadTestStats, error) {
	if err := a.Config.Validate(); err != nil {
		return nil, err
	}
	if len(a.TaskSets) == 0 {
		return nil, newError(ErrNoTaskSets, "no TaskSets registered")
	}
	if a.Config.gaggleEnabled() {
		return nil, newError(ErrFeatureNotEnabled, "distributed manager/worker coordination is not implemented in this build")
	}
	for _, ts := range a.TaskSets {
		if err := ts.validate(); err != nil {
			return nil, err
		}
		if _, err := resolveBaseHost(a.Config.Host, ts.Host, ""); err != nil {
			return nil, err
		}
	}

	if a.Config.List {
		return nil, nil
	}

	return a.run(ctx)
}

// run implements spec.md §4.6 in full: build plans, build the weighted
// assignment vector, compute the stable hash, run global hooks, start
// the throttle/logger drivers, hatch users, steady-state report loop,
// and graceful shutdown.
func (a *Attack) run(ctx context.Context) (*LoadTestStats, error) {
	hash := taskSetHash(a.TaskSets)

	plans := make([]*Plans, len(a.TaskSets))
	for i, ts := range a.TaskSets {
		plans[i] = buildPlans(ts)
	}

	vector := buildTaskSetVector(a.TaskSets)
	assignments := make([]int, a.Config.Users)
	for i := 0; i < a.Config.Users; i++ {
		assignments[i] = vector[i%len(vector)]
	}

	stats := NewLoadTestStats(a.Config.StatusCodes, !a.Config.NoStats, hash)

	clientFactory := a.ClientFactory
	if clientFactory == nil {
		clientFactory = defaultClientFactory
	}

	var throttle *Throttle
	if a.Config.ThrottleRequests > 0 {
		var err error
		throttle, err = NewThrottle(a.Config.ThrottleRequests)
		if err != nil {
			return nil, err
		}
	}

	var eventLog *EventLogger
	if a.Config.DebugLogFile != "" {
		format, err := ParseLogFormat(a.Config.DebugLogFormat)
		if err != nil {
			return nil, err
		}
		eventLog, err = NewEventLogger(a.Config.DebugLogFile, format)
		if err != nil {
			a.logger.Warnf("debug log disabled: %v", err)
			eventLog = nil
		}
	}

	var statsLog *StatsLogger
	if a.Config.StatsLogFile != "" {
		format, err := ParseLogFormat(a.Config.StatsLogFormat)
		if err != nil {
			return nil, err
		}
		statsLog, err = NewStatsLogger(a.Config.StatsLogFile, format)
		if err != nil {
			a.logger.Warnf("stats log disabled: %v", err)
			statsLog = nil
		}
	}

	attackCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var dashboard *webui.Server
	if a.Config.WebPort > 0 {
		dashboard = webui.NewServer()
		go func() {
			if err := dashboard.ListenAndServe(attackCtx, a.Config.WebHost, a.Config.WebPort); err != nil {
				a.logger.Warnf("dashboard stopped: %v", err)
			}
		}()
	}

	// Global test-start hook, run once on a throwaway user (spec.md §4.6 step 5).
	if a.OnStart != nil {
		throwaway := newUser(-1, a.TaskSets[0], plans[0], "", hash, nil, nil, nil, nil, clientFactory(), time.Now(), a.Config.StickyFollow)
		if err := a.OnStart(throwaway); err != nil {
			a.logger.Warnf("global test-start hook returned error: %v", err)
		}
	}

	if eventLog != nil {
		go eventLog.Start()
	}
	if statsLog != nil {
		go statsLog.Start()
	}
	if throttle != nil {
		go throttle.Start()
	}

	events := make(chan *RequestEvent, 4096)
	var wg sync.WaitGroup
	userCommands := make([]chan controlMsg, a.Config.Users)

	startedAt := time.Now()
	hatchDone := a.hatchUsers(attackCtx, plans, assignments, clientFactory, hash, events, eventLog, throttle, userCommands, &wg, startedAt)

	if a.Config.ResetStats {
		// Events emitted during hatching are still buffered in the channel;
		// merge them first so the reset actually discards them.
		drainPending(events, stats)
		stats.Reset()
	}

	stats.UsersStarted = hatchDone

	// Reset the run-timer reference point to the moment spawning
	// completes (spec.md §4.6 step 8): both the periodic running report
	// and the final duration measure elapsed time from here, not from
	// before hatching started.
	reportStart := time.Now()

	a.steadyState(attackCtx, cancel, events, stats, dashboard, statsLog, reportStart)

	for _, ch := range userCommands[:hatchDone] {
		if ch != nil {
			ch <- controlStop
		}
	}
	wg.Wait()

	// Drain remaining events after all users have exited.
	drainPending(events, stats)

	if throttle != nil {
		throttle.Stop()
	}
	if eventLog != nil {
		eventLog.Stop()
	}
	if statsLog != nil {
		statsLog.Stop()
	}

	stats.DurationSecs = int64(time.Since(reportStart).Seconds())

	if a.OnStop != nil {
		throwaway := newUser(-1, a.TaskSets[0], plans[0], "", hash, nil, nil, nil, nil, clientFactory(), time.Now(), a.Config.StickyFollow)
		if err := a.OnStop(throwaway); err != nil {
			a.logger.Warnf("global test-stop hook returned error: %v", err)
		}
	}

	return stats, nil
}

// hatchUsers spawns users one at a time, sleeping 1/hatch_rate seconds
// between spawns, stopping early if the run-timer expires mid-spawn
// (spec.md §4.6 step 8). It returns the number of users actually spawned.
func (a *Attack) hatchUsers(ctx context.Context, plans []*Plans, assignments []int,
	clientFactory func() HTTPDoer, hash uint64, events chan *RequestEvent,
	eventLog *EventLogger, throttle *Throttle, userCommands []chan controlMsg,
	wg *sync.WaitGroup, startedAt time.Time) int {

	interval := time.Second / time.Duration(a.Config.HatchRate)
	deadline := time.Time{}
	if a.Config.RunTime > 0 {
		deadline = startedAt.Add(a.Config.RunTime)
	}

	spawned := 0
	for i := 0; i < len(assignments); i++ {
		if !deadline.IsZero() && time.Now().After(deadline) {
			break
		}

		tsIdx := assignments[i]
		ts := a.TaskSets[tsIdx]
		host, err := resolveBaseHost(a.Config.Host, ts.Host, "")
		if err != nil {
			a.logger.Errorf("user %d: %v", i, err)
			continue
		}

		cmdCh := make(chan controlMsg, 1)
		userCommands[i] = cmdCh

		u := newUser(i, ts, plans[tsIdx], host, hash, events, eventLog, throttle, cmdCh, clientFactory(), startedAt, a.Config.StickyFollow)

		wg.Add(1)
		go func(user *User) {
			defer wg.Done()
			user.run(ctx)
		}(u)

		spawned++

		if i < len(assignments)-1 {
			select {
			case <-time.After(interval):
			case <-ctx.Done():
				return spawned
			}
		}
	}
	return spawned
}

// steadyState drains the event channel into the Aggregator every tick,
// renders a running report every 15 seconds (spec.md §4.3 cadence),
// pushes the same report to the Dashboard if one is running, enqueues a
// matching stats snapshot to statsLog if configured, and returns when
// the run-timer expires or ctx is cancelled. reportStart is the moment
// hatching completed, used as the elapsed-time reference for both the
// running report and the stats log.
func (a *Attack) steadyState(ctx context.Context, cancel context.CancelFunc, events chan *RequestEvent,
	stats *LoadTestStats, dashboard *webui.Server, statsLog *StatsLogger, reportStart time.Time) {
	drainTick := time.NewTicker(time.Second)
	defer drainTick.Stop()

	var reportTick *time.Ticker
	if !a.Config.NoStats {
		reportTick = time.NewTicker(reportInterval)
		defer reportTick.Stop()
	}

	var runTimer <-chan time.Time
	if a.Config.RunTime > 0 {
		t := time.NewTimer(a.Config.RunTime)
		defer t.Stop()
		runTimer = t.C
	}

	for {
		select {
		case ev := <-events:
			stats.Merge(ev)
		case <-drainTick.C:
			drainPending(events, stats)
		case <-tickerChan(reportTick):
			elapsedSecs := int64(time.Since(reportStart).Seconds())
			report := RenderRunning(stats, elapsedSecs)
			if !a.Config.OnlySummary {
				fmt.Print(report)
			}
			if dashboard != nil {
				dashboard.Broadcast(&webui.StatsSnapshot{
					UsersStarted:  stats.UsersStarted,
					RunningReport: report,
				})
			}
			if statsLog != nil {
				statsLog.Enqueue(statsSnapshotFromStats(stats, elapsedSecs))
			}
		case <-runTimer:
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}

func tickerChan(t *time.Ticker) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}

// drainPending non-blockingly empties whatever is currently buffered in
// the event channel into stats, used both in the steady-state per-second
// tick and during final shutdown drain.
func drainPending(events chan *RequestEvent, stats *LoadTestStats) {
	for {
		select {
		case ev := <-events:
			stats.Merge(ev)
		default:
			return
		}
	}
}
