package goose

import (
	"context"
	"fmt"
	"time"

	"github.com/LionsAd/goose/pkg/logging"
)

// MaxThrottleRequests is the upper bound on --throttle-requests (spec.md §4.4).
const MaxThrottleRequests = 1_000_000

// Throttle is a global, shared rate limiter implemented as a bounded
// channel of depth R that fills up as users acquire slots and is leaked
// by a single driver goroutine at a steady rate of R slots/second
// (spec.md §4.4). Users acquire a slot by sending into the channel,
// blocking once it is full; the driver periodically receives from it to
// free a slot for the next acquire.
type Throttle struct {
	slots  chan struct{}
	rate   int
	done   chan struct{}
	logger *logging.Logger
}

// NewThrottle validates rate and builds a Throttle, pre-filled to R-1
// slots so the channel has exactly one free slot at startup: the first
// request is admitted immediately, and every request after it must wait
// for the driver to leak a slot, avoiding a burst spike at launch
// (spec.md §4.4).
func NewThrottle(rate int) (*Throttle, error) {
	if rate < 1 || rate > MaxThrottleRequests {
		return nil, newOptionError("--throttle-requests", fmt.Sprintf("%d", rate),
			fmt.Sprintf("must be between 1 and %d", MaxThrottleRequests))
	}

	t := &Throttle{
		slots:  make(chan struct{}, rate),
		rate:   rate,
		done:   make(chan struct{}),
		logger: logging.GetGlobalLogger().WithComponent("throttle"),
	}
	for i := 0; i < rate-1; i++ {
		t.slots <- struct{}{}
	}
	return t, nil
}

// Start runs the slot-leaking driver until Stop is called. Intended to
// be run in its own goroutine by the Supervisor.
func (t *Throttle) Start() {
	interval := time.Second / time.Duration(t.rate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	t.logger.Debugf("throttle driver started at %d req/s", t.rate)
	for {
		select {
		case <-t.done:
			t.logger.Debug("throttle driver stopping")
			return
		case <-ticker.C:
			select {
			case <-t.slots:
			default:
				// channel already empty: nothing to leak this tick
			}
		}
	}
}

// Stop signals the driver to exit. Safe to call once.
func (t *Throttle) Stop() {
	close(t.done)
}

// Acquire blocks until a slot is free or ctx is cancelled. Outstanding
// acquires are interrupted by caller cancellation, not by the throttle
// itself (spec.md §4.4 "Shutdown").
func (t *Throttle) Acquire(ctx context.Context) error {
	select {
	case t.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
