package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/unklstewy/aprs-notify/internal/db"
	"github.com/unklstewy/aprs-notify/internal/notify"
	"github.com/unklstewy/aprs-notify/internal/runner"
	"github.com/unklstewy/aprs-notify/internal/tui"
	"github.com/unklstewy/aprs-notify/pkg/aprsfi"
	"github.com/unklstewy/aprs-notify/pkg/config"
)

// Exit codes.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

const usageText = `Usage: aprs-notify [-config path] [-v] [auto|text|watch]

Shows the last aprs.fi position of the configured station.

Modes:
  (none)  desktop notification for every record
  auto    for cron: skipped while the session is idle, recent records only
  text    print to the terminal instead of the desktop
  watch   interactive view, refreshed periodically

Flags:
`

const notConfiguredText = `aprs-notify needs an aprs.fi API key and a callsign.

Create %s with at least:

  {
    "aprsfi":  {"api_key": "YOUR-KEY"},
    "monitor": {"callsign": "N0CALL-9"},
    "home":    {"latitude": 42.3601, "longitude": -71.0589}
  }

Your API key is on https://aprs.fi/account/ once you are logged in.
APRS_NOTIFY_API_KEY and APRS_NOTIFY_CALLSIGN override the file, and are
enough on their own when no file exists.
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run is main without the process exit, returning the exit code.
func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("aprs-notify", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usageText)
		fs.PrintDefaults()
	}
	configPath := fs.String("config", config.DefaultPath(), "Path to configuration file (.json or .yaml)")
	verbose := fs.Bool("v", false, "Log every record and debug details to stderr")

	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	mode, err := runner.ParseMode(fs.Args())
	if err != nil {
		fmt.Fprintf(stderr, "aprs-notify: %v\n\n", err)
		fs.Usage()
		return exitUsage
	}

	logger := log.New(stderr, "", log.LstdFlags)

	cfg, err := config.Load(*configPath)
	if errors.Is(err, config.ErrNotConfigured) {
		fmt.Fprintf(stderr, "aprs-notify: %v\n\n", err)
		fmt.Fprintf(stderr, notConfiguredText, *configPath)
		return exitError
	}
	if err != nil {
		fmt.Fprintf(stderr, "aprs-notify: failed to load configuration: %v\n", err)
		return exitError
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := runner.OptionsFor(mode, cfg)

	client := aprsfi.NewClient(aprsfi.Config{
		APIKey:            cfg.APRSFI.APIKey,
		BaseURL:           cfg.APRSFI.BaseURL,
		Timeout:           time.Duration(cfg.APRSFI.TimeoutSeconds) * time.Second,
		RequestsPerMinute: cfg.APRSFI.RequestsPerMinute,
		Retry: aprsfi.RetryConfig{
			MaxRetries:        cfg.APRSFI.MaxRetries,
			RespectRetryAfter: true,
			OnRetry: func(attempt int, err error, delay time.Duration) {
				logger.Printf("aprs.fi request failed (attempt %d): %v (retry in %v)", attempt, err, delay)
			},
		},
	})

	r, err := runner.New(cfg, opts, client, buildNotifier(cfg, opts.NotifyMode, stdout))
	if err != nil {
		fmt.Fprintf(stderr, "aprs-notify: %v\n", err)
		return exitError
	}
	defer r.Close()

	r.Log.Warn = logger.Printf
	if *verbose {
		r.Log.Info = logger.Printf
		r.Log.Debug = logger.Printf
		logger.Printf("Configuration loaded from: %s", *configPath)
		logger.Printf("Monitoring %s from %.4f, %.4f (mode %q, notify %s)",
			cfg.Monitor.Callsign, cfg.Home.Latitude, cfg.Home.Longitude, mode, opts.NotifyMode)
	}

	var history *db.PositionRepository
	if cfg.History.Enabled {
		database, err := db.OpenWithRetry(ctx, cfg.History, 3, time.Second)
		if err != nil {
			fmt.Fprintf(stderr, "aprs-notify: history database: %v\n", err)
			return exitError
		}
		defer database.Close()

		if err := database.InitSchema(ctx); err != nil {
			fmt.Fprintf(stderr, "aprs-notify: history database: %v\n", err)
			return exitError
		}
		if !db.HealthCheck(ctx, database) {
			fmt.Fprintln(stderr, "aprs-notify: history database is not answering queries")
			return exitError
		}
		if *verbose {
			logger.Printf("History stored in %s database", database.Driver())
		}
		if keep := cfg.HistoryRetention(); keep > 0 {
			n, err := database.DeleteBefore(ctx, time.Now().Add(-keep))
			if err != nil {
				logger.Printf("Failed to prune history: %v", err)
			} else if *verbose && n > 0 {
				logger.Printf("Pruned %d history rows older than %v", n, keep)
			}
		}
		history = db.NewPositionRepository(database)
		r.History = history
	}

	if mode == runner.ModeWatch {
		return runWatch(ctx, r, cfg, history, stderr)
	}

	report, err := r.Run(ctx)
	if errors.Is(err, runner.ErrNotifierUnavailable) {
		fmt.Fprintf(stderr, "aprs-notify: %v\n", err)
		fmt.Fprintln(stderr, "No desktop notification service was found. Use \"aprs-notify text\" to print to the terminal instead.")
		return exitError
	}
	if err != nil {
		fmt.Fprintf(stderr, "aprs-notify: %v\n", err)
		return exitError
	}

	if *verbose {
		logger.Printf("run %s: %d shown, %d skipped, not found %v, idle %v",
			report.RunID, len(report.Shown), report.Skipped, report.NotFound, report.Idle)
	}
	return exitOK
}

func runWatch(ctx context.Context, r *runner.Runner, cfg *config.Config, history *db.PositionRepository, stderr io.Writer) int {
	loc, _ := cfg.TimeLocation()
	opts := tui.Options{
		Callsign: cfg.Monitor.Callsign,
		Home:     cfg.HomeLocation(),
		Interval: cfg.WatchInterval(),
		Location: loc,
	}
	if history != nil {
		opts.History = history
	}

	// The view owns the terminal; runner warnings would tear it
	r.Log = runner.Logger{}

	if err := tui.Run(ctx, r, opts); err != nil && ctx.Err() == nil {
		fmt.Fprintf(stderr, "aprs-notify: %v\n", err)
		return exitError
	}
	return exitOK
}

// buildNotifier returns the notifier for mode, fanned out to MQTT when enabled.
func buildNotifier(cfg *config.Config, mode runner.NotifyMode, stdout io.Writer) notify.Notifier {
	var primary notify.Notifier
	switch mode {
	case runner.NotifyDesktop:
		primary = notify.NewDesktop(cfg.Notify.AppName, time.Duration(cfg.Notify.TimeoutMillis)*time.Millisecond)
	case runner.NotifyConsole:
		primary = notify.NewConsole(stdout)
	default:
		primary = notify.Nop{}
	}

	if !cfg.MQTT.Enabled {
		return primary
	}
	return notify.Multi{primary, notify.NewMQTT(cfg.MQTT)}
}
