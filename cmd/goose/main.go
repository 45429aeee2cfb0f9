// Command goose runs a goose Attack from the command line against a
// single built-in demo TaskSet. It exists to exercise the full flag
// surface of the engine; an embedder linking pkg/goose directly would
// register its own TaskSets instead.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LionsAd/goose/pkg/goose"
	"github.com/LionsAd/goose/pkg/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "goose: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := goose.DefaultConfiguration()

	var (
		runTimeSpec string
		verbose     int
		logLevel    int
		logFormat   string
	)

	flag.StringVar(&cfg.Host, "host", cfg.Host, "base host to run this load test against, e.g. http://example.com")
	flag.StringVar(&cfg.Host, "H", cfg.Host, "shorthand for --host")

	flag.IntVar(&cfg.Users, "users", cfg.Users, "number of simulated users to hatch")
	flag.IntVar(&cfg.Users, "u", cfg.Users, "shorthand for --users")

	flag.IntVar(&cfg.HatchRate, "hatch-rate", cfg.HatchRate, "users to hatch per second")
	flag.IntVar(&cfg.HatchRate, "r", cfg.HatchRate, "shorthand for --hatch-rate")

	flag.StringVar(&runTimeSpec, "run-time", "", "stop after this long, e.g. 20s, 15m, 1h30m; empty runs until interrupted")
	flag.StringVar(&runTimeSpec, "t", "", "shorthand for --run-time")

	flag.BoolVar(&cfg.NoStats, "no-stats", cfg.NoStats, "disable statistics collection entirely")
	flag.BoolVar(&cfg.StatusCodes, "status-codes", cfg.StatusCodes, "track status codes per endpoint in the final report")
	flag.BoolVar(&cfg.OnlySummary, "only-summary", cfg.OnlySummary, "only print the final report, not the periodic running report")
	flag.BoolVar(&cfg.ResetStats, "reset-stats", cfg.ResetStats, "reset statistics after all users have hatched")
	flag.BoolVar(&cfg.List, "list", cfg.List, "list registered TaskSets and Tasks, then exit")

	countVerbose := func(string) error { verbose++; return nil }
	flag.BoolFunc("verbose", "increase logging verbosity (repeatable)", countVerbose)
	flag.BoolFunc("v", "shorthand for --verbose", countVerbose)
	countLogLevel := func(string) error { logLevel++; return nil }
	flag.BoolFunc("log-level", "increase logging verbosity (repeatable); the larger of this count and the -v count applies", countLogLevel)
	flag.BoolFunc("g", "shorthand for --log-level", countLogLevel)
	flag.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "file to append logs to, in addition to stdout")
	flag.StringVar(&logFormat, "log-format", "text", "engine log line format: text or json")

	flag.StringVar(&cfg.StatsLogFile, "stats-log-file", cfg.StatsLogFile, "file to write periodic statistics snapshots to")
	flag.StringVar(&cfg.StatsLogFormat, "stats-log-format", cfg.StatsLogFormat, "stats log format: json, csv, or raw")

	flag.StringVar(&cfg.DebugLogFile, "debug-log-file", cfg.DebugLogFile, "file to write raw per-request events to")
	flag.StringVar(&cfg.DebugLogFormat, "debug-log-format", cfg.DebugLogFormat, "debug log format: json or raw")

	flag.IntVar(&cfg.ThrottleRequests, "throttle-requests", cfg.ThrottleRequests, "cap aggregate request rate to this many requests/second (0 disables)")
	flag.BoolVar(&cfg.StickyFollow, "sticky-follow", cfg.StickyFollow, "pin a redirected host for the rest of a user's lifetime")

	flag.StringVar(&cfg.WebHost, "web-host", cfg.WebHost, "dashboard bind address; empty means all interfaces")
	flag.IntVar(&cfg.WebPort, "web-port", cfg.WebPort, "dashboard port; 0 disables the dashboard")

	flag.BoolVar(&cfg.Manager, "manager", cfg.Manager, "run as a gaggle manager (not implemented in this build)")
	flag.BoolVar(&cfg.Worker, "worker", cfg.Worker, "run as a gaggle worker (not implemented in this build)")
	flag.IntVar(&cfg.ExpectWorkers, "expect-workers", cfg.ExpectWorkers, "number of workers the manager should wait for")

	flag.Parse()

	if logLevel > verbose {
		verbose = logLevel
	}
	if err := logging.InitFromFlags(verbose, cfg.LogFile, logFormat); err != nil {
		return err
	}

	if runTimeSpec != "" {
		d, err := time.ParseDuration(runTimeSpec)
		if err != nil {
			return fmt.Errorf("invalid --run-time %q: %w", runTimeSpec, err)
		}
		cfg.RunTime = d
	}

	attack := goose.NewAttack(cfg)
	attack.RegisterTaskSet(demoTaskSet())

	if cfg.List {
		for _, ts := range attack.TaskSets {
			fmt.Printf("TaskSet: %s (weight %d)\n", ts.Name, ts.Weight)
			for _, t := range ts.Tasks {
				fmt.Printf("  Task: %s (weight %d, sequence %d)\n", t.Name, t.Weight, t.Sequence)
			}
		}
		_, err := attack.Execute(context.Background())
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats, err := attack.Execute(ctx)
	if err != nil {
		return err
	}

	fmt.Println(goose.RenderFinal(stats))
	return nil
}

// demoTaskSet registers a minimal TaskSet so the CLI binary is runnable
// on its own; a real embedder would register its own TaskSets built
// from application-specific Tasks instead.
func demoTaskSet() *goose.TaskSet {
	ts := goose.NewTaskSet("Demo").SetWait(1, 3)
	ts.RegisterTask(goose.NewTask("index", func(u *goose.User) error {
		_, err := u.Send(context.Background(), "GET", "/", nil)
		return err
	}))
	return ts
}
