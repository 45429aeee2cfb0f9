package goose

import (
	"runtime"
	"strconv"
	"time"
)

// StatsLogFormat and DebugLogFormat accept a narrower format set than the
// generic LogFormat: stats logging supports json/csv/raw, debug (event)
// logging supports json/raw only, per spec.md §6.

// Configuration binds the CLI surface of spec.md §6 and the
// cross-validation rules of spec.md §7. The CLI entrypoint
// (cmd/goose/main.go) is responsible for parsing flags into this struct;
// this package only validates and consumes it.
type Configuration struct {
	Host string // --host / -H

	Users     int // --users / -u
	HatchRate int // --hatch-rate / -r

	RunTime time.Duration // --run-time / -t; zero means "run until interrupt"

	NoStats     bool // --no-stats
	StatusCodes bool // --status-codes
	OnlySummary bool // --only-summary
	ResetStats  bool // --reset-stats
	List        bool // --list

	Verbose  int // --verbose / -v, repeatable
	LogLevel int // --log-level / -g, repeatable (kept separate from Verbose per spec.md §6)
	LogFile  string // --log-file, default "goose.log"

	StatsLogFile   string // --stats-log-file
	StatsLogFormat string // --stats-log-format: json|csv|raw, default json

	DebugLogFile   string // --debug-log-file
	DebugLogFormat string // --debug-log-format: json|raw, default json

	ThrottleRequests int // --throttle-requests, 0 = disabled

	StickyFollow bool // --sticky-follow

	// Gaggle surface (spec.md SPEC_FULL.md §2.13): flags accepted and
	// validated, but the distributed protocol itself is not implemented.
	Manager       bool
	Worker        bool
	ExpectWorkers int

	// Dashboard (SPEC_FULL.md §2.12).
	WebHost string
	WebPort int
}

// DefaultConfiguration returns a Configuration with the CLI's documented
// defaults (spec.md §6): users = CPU count, hatch-rate 1, log-file
// goose.log, stats/debug log format json, web port 5116.
func DefaultConfiguration() *Configuration {
	return &Configuration{
		Users:          runtime.NumCPU(),
		HatchRate:      1,
		LogFile:        "goose.log",
		StatsLogFormat: "json",
		DebugLogFormat: "json",
		WebPort:        5116,
	}
}

// Validate enforces the cross-validation rules of spec.md §7. It is
// called once by the Supervisor before any TaskSet plan is built or any
// user spawned (spec.md §4.6 step 1).
func (c *Configuration) Validate() error {
	if c.HatchRate < 1 {
		return newOptionError("--hatch-rate", strconv.Itoa(c.HatchRate), "must be at least 1")
	}

	if c.NoStats {
		if c.StatusCodes {
			return newOptionError("--status-codes", "true", "cannot be combined with --no-stats")
		}
		if c.OnlySummary {
			return newOptionError("--only-summary", "true", "cannot be combined with --no-stats")
		}
		if c.StatsLogFile != "" {
			return newOptionError("--stats-log-file", c.StatsLogFile, "cannot be combined with --no-stats")
		}
	}

	if c.StatsLogFormat != "" && c.StatsLogFormat != "json" && c.StatsLogFile == "" {
		return newOptionError("--stats-log-format", c.StatsLogFormat, "requires --stats-log-file")
	}
	if c.DebugLogFormat != "" && c.DebugLogFormat != "json" && c.DebugLogFile == "" {
		return newOptionError("--debug-log-format", c.DebugLogFormat, "requires --debug-log-file")
	}
	if c.DebugLogFormat == "csv" {
		return newOptionError("--debug-log-format", c.DebugLogFormat, "must be one of json, raw")
	}

	if c.ThrottleRequests != 0 {
		if c.ThrottleRequests < 1 || c.ThrottleRequests > MaxThrottleRequests {
			return newOptionError("--throttle-requests", strconv.Itoa(c.ThrottleRequests),
				"must be between 1 and 1000000")
		}
	}

	if c.Manager && c.Worker {
		return newOptionError("--manager", "true", "enable manager or worker mode, not both")
	}
	if c.Manager && c.ExpectWorkers < 1 {
		return newOptionError("--expect-workers", strconv.Itoa(c.ExpectWorkers), "must be at least 1 in manager mode")
	}
	if c.Manager && c.ExpectWorkers > c.Users {
		return newOptionError("--expect-workers", strconv.Itoa(c.ExpectWorkers), "can not be larger than --users")
	}
	if c.Worker && c.ExpectWorkers > 0 {
		return newOptionError("--expect-workers", strconv.Itoa(c.ExpectWorkers), "is only available to the manager")
	}

	return nil
}

// gaggleEnabled reports whether the distributed surface was requested; the
// Supervisor uses this to surface ErrFeatureNotEnabled before any user
// spawns, since the protocol itself is out of scope (spec.md Non-goals).
func (c *Configuration) gaggleEnabled() bool {
	return c.Manager || c.Worker
}

