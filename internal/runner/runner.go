// Package runner performs one poll of aprs.fi: it checks the idle gate,
// fetches the monitored station, filters stale records, and dispatches a
// notification for each remaining one.
package runner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/unklstewy/aprs-notify/internal/db"
	"github.com/unklstewy/aprs-notify/internal/idle"
	"github.com/unklstewy/aprs-notify/internal/notify"
	"github.com/unklstewy/aprs-notify/pkg/aprsfi"
	"github.com/unklstewy/aprs-notify/pkg/config"
	"github.com/unklstewy/aprs-notify/pkg/coordinates"
	"github.com/unklstewy/aprs-notify/pkg/summary"
)

// ErrNotifierUnavailable wraps notifier initialization failures.
var ErrNotifierUnavailable = errors.New("notifier unavailable")

// Recorder stores shown positions. *db.PositionRepository implements it.
type Recorder interface {
	Insert(ctx context.Context, rec db.PositionRecord) (int64, error)
}

// Logger receives log lines. Nil funcs discard.
type Logger struct {
	Warn  func(format string, args ...interface{})
	Info  func(format string, args ...interface{})
	Debug func(format string, args ...interface{})
}

func (l Logger) warnf(format string, args ...interface{}) {
	if l.Warn != nil {
		l.Warn(format, args...)
	}
}

func (l Logger) infof(format string, args ...interface{}) {
	if l.Info != nil {
		l.Info(format, args...)
	}
}

func (l Logger) debugf(format string, args ...interface{}) {
	if l.Debug != nil {
		l.Debug(format, args...)
	}
}

// Entry is one shown record.
type Entry struct {
	Location aprsfi.Location
	Summary  summary.Summary
}

// Report describes what one Run did.
type Report struct {
	RunID    uuid.UUID
	Idle     bool
	NotFound bool
	Shown    []Entry
	Skipped  int
}

// Runner polls one station.
type Runner struct {
	Source   aprsfi.Source
	Notifier notify.Notifier
	Idle     idle.Checker // nil when the idle gate is off
	History  Recorder     // nil when history is off
	Callsign string
	Home     coordinates.Geographic
	Options  Options
	Location *time.Location
	Log      Logger
	Now      func() time.Time

	initialized bool
}

// New creates a runner from configuration. The idle checker is ConsoleKit
// when opts.IdleGate is set.
func New(cfg *config.Config, opts Options, src aprsfi.Source, n notify.Notifier) (*Runner, error) {
	loc, err := cfg.TimeLocation()
	if err != nil {
		return nil, err
	}

	r := &Runner{
		Source:   src,
		Notifier: n,
		Callsign: cfg.Monitor.Callsign,
		Home:     cfg.HomeLocation(),
		Options:  opts,
		Location: loc,
		Now:      time.Now,
	}
	if opts.IdleGate {
		r.Idle = idle.NewConsoleKit()
	}
	return r, nil
}

// Init initializes the notifier. Run calls it when needed.
func (r *Runner) Init(ctx context.Context) error {
	if r.initialized {
		return nil
	}
	if err := r.Notifier.Init(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrNotifierUnavailable, err)
	}
	r.initialized = true
	return nil
}

// Run performs one poll.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	report := Report{RunID: uuid.New()}

	if err := r.Init(ctx); err != nil {
		return report, err
	}

	if r.Options.IdleGate && r.Idle != nil {
		isIdle, err := r.Idle.IsIdle(ctx)
		if err != nil {
			r.Log.warnf("Idle check failed, assuming active: %v", err)
		} else if isIdle {
			r.Log.debugf("run %s: session idle, skipping", report.RunID)
			report.Idle = true
			return report, nil
		}
	}

	r.Log.debugf("run %s: fetching %s", report.RunID, r.Callsign)
	locs, err := r.Source.GetLocations(ctx, r.Callsign)
	if err != nil {
		return report, fmt.Errorf("fetch %s: %w", r.Callsign, err)
	}

	if len(locs) == 0 {
		report.NotFound = true
		title, message := summary.NotFound(r.Callsign)
		r.Log.infof("%s: %s", title, message)
		r.notify(ctx, title, message)
		return report, nil
	}

	now := r.now()
	opts := summary.Options{
		IncludeAltitude: r.Options.IncludeAltitude,
		IncludeDistance: r.Options.IncludeDistance,
		Location:        r.Location,
	}

	for _, loc := range locs {
		if r.Options.AgeLimit > 0 && loc.LastTime.Before(now.Add(-r.Options.AgeLimit)) {
			r.Log.debugf("run %s: skipping %s, last heard %v ago", report.RunID, loc.Name, now.Sub(loc.LastTime).Truncate(time.Second))
			report.Skipped++
			continue
		}

		s := summary.Summarize(loc, r.Home, opts)
		r.Log.infof("%s: %s", s.Title, s.Message)
		r.notify(ctx, s.Title, s.Message)
		r.record(ctx, report.RunID, loc, s, now)

		report.Shown = append(report.Shown, Entry{Location: loc, Summary: s})
	}

	return report, nil
}

// Close releases the notifier and the source.
func (r *Runner) Close() error {
	var errs []error
	if r.initialized {
		errs = append(errs, r.Notifier.Close())
		r.initialized = false
	}
	errs = append(errs, r.Source.Close())
	return errors.Join(errs...)
}

func (r *Runner) notify(ctx context.Context, title, message string) {
	if err := r.Notifier.Notify(ctx, title, message); err != nil {
		r.Log.warnf("Notification failed: %v", err)
	}
}

func (r *Runner) record(ctx context.Context, runID uuid.UUID, loc aprsfi.Location, s summary.Summary, now time.Time) {
	if r.History == nil {
		return
	}

	rec := db.PositionRecord{
		RunID:          runID,
		Callsign:       loc.Name,
		Latitude:       loc.Latitude,
		Longitude:      loc.Longitude,
		Altitude:       sql.NullFloat64{Float64: loc.Altitude, Valid: loc.HasAltitude},
		Speed:          loc.Speed,
		Course:         loc.Course,
		FixTime:        loc.Time,
		LastTime:       loc.LastTime,
		DistanceMeters: s.DistanceMeters,
		Title:          s.Title,
		Message:        s.Message,
		NotifiedAt:     now,
	}
	if _, err := r.History.Insert(ctx, rec); err != nil {
		r.Log.warnf("Failed to record position: %v", err)
	}
}

func (r *Runner) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}
