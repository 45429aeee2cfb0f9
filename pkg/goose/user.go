package goose

import (
	"bytes"
	"context"
	"math/rand"
	"net/http"
	neturl "net/url"
	"time"

	"github.com/LionsAd/goose/pkg/logging"
)

// HTTPDoer is the pluggable HTTP capability a User's Send method calls
// through (spec.md §1: "the HTTP client implementation itself ... treated
// as a pluggable capability"). *http.Client satisfies this directly.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RequestOptions customizes a single Send call.
type RequestOptions struct {
	Headers http.Header
	Body    []byte
	Name    string        // logical name override; defaults to the URL path
	Timeout time.Duration // per-request timeout; zero means the client's default
}

// controlMsg is sent from the Supervisor to a User's command channel.
type controlMsg int

const (
	controlStop controlMsg = iota
)

// User owns one simulated user's exclusive state: its TaskSet, weighted
// position cursor, HTTP client, and channels to the rest of the engine.
// A User exists on exactly one worker goroutine for its whole lifetime
// (spec.md §3 "Lifecycles").
type User struct {
	Index        int
	TaskSet      *TaskSet
	Plans        *Plans
	BaseURL      string
	MinWait      int
	MaxWait      int
	TestHash     uint64
	StickyFollow bool // spec.md §6 --sticky-follow: pin a redirected host for the rest of this user's lifetime

	client HTTPDoer

	events   chan<- *RequestEvent
	eventLog *EventLogger // may be nil
	throttle *Throttle    // may be nil
	commands <-chan controlMsg

	mainCursor []int // per-bucket round-robin cursor, one per main-plan bucket

	startedAt time.Time
	logger    *logging.Logger
}

func newUser(index int, ts *TaskSet, plans *Plans, baseURL string, hash uint64,
	events chan<- *RequestEvent, eventLog *EventLogger, throttle *Throttle,
	commands <-chan controlMsg, client HTTPDoer, startedAt time.Time, stickyFollow bool) *User {

	return &User{
		Index:        index,
		TaskSet:      ts,
		Plans:        plans,
		BaseURL:      baseURL,
		MinWait:      ts.MinWait,
		MaxWait:      ts.MaxWait,
		TestHash:     hash,
		StickyFollow: stickyFollow,
		client:       client,
		events:       events,
		eventLog:     eventLog,
		throttle:     throttle,
		commands:     commands,
		mainCursor:   make([]int, len(plans.Main)),
		startedAt:    startedAt,
		logger:       logging.GetGlobalLogger().WithComponent("user"),
	}
}

// Send issues one HTTP attempt through the User's pluggable HTTP
// capability, synthesizing and forwarding the resulting RequestEvent
// (spec.md §4.2 "Per-request capability").
func (u *User) Send(ctx context.Context, method, path string, opts *RequestOptions) (*RequestEvent, error) {
	if opts == nil {
		opts = &RequestOptions{}
	}

	if u.throttle != nil {
		if err := u.throttle.Acquire(ctx); err != nil {
			return nil, err
		}
	}

	fullURL, err := resolveURL(u.BaseURL, path)
	if err != nil {
		return nil, err
	}

	name := opts.Name
	if name == "" {
		name = path
	}

	reqCtx := ctx
	var cancel context.CancelFunc
	if opts.Timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	var body *bytes.Reader
	if opts.Body != nil {
		body = bytes.NewReader(opts.Body)
	}

	var req *http.Request
	if body != nil {
		req, err = http.NewRequestWithContext(reqCtx, method, fullURL, body)
	} else {
		req, err = http.NewRequestWithContext(reqCtx, method, fullURL, nil)
	}
	if err != nil {
		return nil, err
	}
	for k, vs := range opts.Headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := u.client.Do(req)
	responseTime := time.Since(start)
	elapsed := time.Since(u.startedAt)

	ev := &RequestEvent{
		ElapsedMs:      elapsed.Milliseconds(),
		Method:         method,
		Name:           name,
		URL:            fullURL,
		ResponseTimeMs: responseTime.Milliseconds(),
		UserIndex:      u.Index,
	}

	if err != nil {
		ev.StatusCode = 0
		ev.Success = false
		ev.FinalURL = fullURL
	} else {
		defer resp.Body.Close()
		ev.StatusCode = resp.StatusCode
		ev.Success = resp.StatusCode >= 200 && resp.StatusCode < 300
		if resp.Request != nil && resp.Request.URL != nil {
			ev.FinalURL = resp.Request.URL.String()
		} else {
			ev.FinalURL = fullURL
		}
		ev.Redirected = ev.FinalURL != fullURL

		if u.StickyFollow && ev.Redirected {
			u.followSticky(ev.FinalURL)
		}
	}

	u.emit(ev)

	if err != nil {
		return ev, &GooseError{Kind: ErrTransport, Err: err}
	}
	return ev, nil
}

// followSticky pins this user's BaseURL to the scheme+host of a redirect
// target for the remainder of its lifetime, per spec.md §6
// --sticky-follow: "User follows redirect of base_url with subsequent
// requests." Only the scheme and authority are adopted; the redirected
// path itself is not part of the base.
func (u *User) followSticky(finalURL string) {
	parsed, err := neturl.Parse(finalURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return
	}
	newBase := (&neturl.URL{Scheme: parsed.Scheme, Host: parsed.Host}).String()
	if newBase != u.BaseURL {
		u.logger.Debugf("sticky-follow: pinning base url to %s", newBase)
		u.BaseURL = newBase
	}
}

// SendUpdate emits an update event that reclassifies a prior
// RequestEvent's success flag without creating a new sample (spec.md §4.3
// "Update event"). Task bodies call this to override the default 2xx
// success judgment.
func (u *User) SendUpdate(method, name string, success bool) {
	u.emit(&RequestEvent{
		Method:    method,
		Name:      name,
		Success:   success,
		Update:    true,
		UserIndex: u.Index,
	})
}

func (u *User) emit(ev *RequestEvent) {
	if u.eventLog != nil {
		u.eventLog.Enqueue(ev)
	}
	u.events <- ev
}

// run drives the user's three-phase lifecycle: on-start once, main
// weighted loop until stopped, then on-stop once (spec.md §4.2).
func (u *User) run(ctx context.Context) {
	u.runBucketedOnce(u.Plans.OnStart)

	u.runMainLoop(ctx)

	u.runBucketedOnce(u.Plans.OnStop)
}

// runBucketedOnce executes every task in every inner bucket of a plan
// exactly once, in bucket order (on-start/on-stop phases never repeat or
// wait between tasks; spec.md §4.2 steps 1 and 3).
func (u *User) runBucketedOnce(plan ExecutionPlan) {
	for _, bucket := range plan {
		for _, idx := range bucket {
			u.runTask(idx)
		}
	}
}

// runMainLoop iterates the main plan's buckets round-robin, advancing
// each bucket's position cursor independently, sleeping a random
// whole-second wait between tasks, and exiting on stop signal or
// cancellation (spec.md §4.2 step 2, §5 ordering guarantee (a)).
func (u *User) runMainLoop(ctx context.Context) {
	if len(u.Plans.Main) == 0 {
		return
	}

	bucketIdx := 0
	for {
		bucket := u.Plans.Main[bucketIdx]
		if len(bucket) > 0 {
			pos := u.mainCursor[bucketIdx] % len(bucket)
			u.runTask(bucket[pos])
			u.mainCursor[bucketIdx] = (pos + 1) % len(bucket)
		}
		bucketIdx = (bucketIdx + 1) % len(u.Plans.Main)

		if stopped := u.waitAndCheckStop(ctx); stopped {
			return
		}
	}
}

// waitAndCheckStop sleeps the configured wait-time window (skipped
// entirely when min=max=0, per spec.md §9 open question (c)), then
// checks for a stop signal or cancellation. It returns true if the user
// should exit its main loop.
func (u *User) waitAndCheckStop(ctx context.Context) bool {
	if u.MaxWait > 0 {
		wait := u.MinWait
		if u.MaxWait > u.MinWait {
			wait += rand.Intn(u.MaxWait - u.MinWait + 1)
		}
		timer := time.NewTimer(time.Duration(wait) * time.Second)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-ctx.Done():
			return true
		case <-u.commands:
			return true
		}
	}

	select {
	case <-ctx.Done():
		return true
	case <-u.commands:
		return true
	default:
		return false
	}
}

// runTask invokes one task body, containing both returned errors and
// panics to this user so a single misbehaving task cannot take down the
// supervisor or other users (spec.md §7 propagation policy).
func (u *User) runTask(idx int) {
	task := u.TaskSet.Tasks[idx]
	if task.fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			u.logger.WithField("task", task.Name).Errorf("task body panicked: %v", r)
		}
	}()
	if err := task.fn(u); err != nil {
		u.logger.WithField("task", task.Name).Warnf("task body returned error: %v", err)
	}
}
