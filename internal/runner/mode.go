package runner

import (
	"fmt"
	"time"

	"github.com/unklstewy/aprs-notify/pkg/config"
)

// Mode is the optional positional argument of the command.
type Mode string

const (
	// ModeDefault shows desktop notifications for every record.
	ModeDefault Mode = ""

	// ModeAuto is for cron: desktop notifications, skipped while the
	// session is idle, only for recent records.
	ModeAuto Mode = "auto"

	// ModeText prints to the console instead of the desktop.
	ModeText Mode = "text"

	// ModeWatch runs the interactive watch view.
	ModeWatch Mode = "watch"
)

// NotifyMode selects the primary notification sink.
type NotifyMode int

const (
	NotifyDesktop NotifyMode = iota
	NotifyConsole
	NotifyNone
)

func (m NotifyMode) String() string {
	switch m {
	case NotifyDesktop:
		return "desktop"
	case NotifyConsole:
		return "console"
	case NotifyNone:
		return "none"
	}
	return fmt.Sprintf("NotifyMode(%d)", int(m))
}

// UsageError reports bad command-line arguments.
type UsageError struct {
	Arg string
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("unknown mode %q (want auto, text or watch)", e.Arg)
}

// ParseMode parses the positional arguments. At most one is accepted.
func ParseMode(args []string) (Mode, error) {
	switch len(args) {
	case 0:
		return ModeDefault, nil
	case 1:
	default:
		return ModeDefault, &UsageError{Arg: args[1]}
	}

	switch m := Mode(args[0]); m {
	case ModeAuto, ModeText, ModeWatch:
		return m, nil
	}
	return ModeDefault, &UsageError{Arg: args[0]}
}

// Options is the behaviour selected by a mode plus the message settings.
type Options struct {
	// IdleGate skips the run entirely while the session is idle
	IdleGate bool

	// AgeLimit drops records whose last beacon is older than this (0 = no limit)
	AgeLimit time.Duration

	NotifyMode      NotifyMode
	IncludeAltitude bool
	IncludeDistance bool
}

// OptionsFor returns the options for mode.
func OptionsFor(mode Mode, cfg *config.Config) Options {
	opts := Options{
		NotifyMode:      NotifyDesktop,
		IncludeAltitude: cfg.Message.IncludeAltitude,
		IncludeDistance: cfg.Message.IncludeDistance,
	}

	switch mode {
	case ModeAuto:
		opts.IdleGate = true
		opts.AgeLimit = cfg.AutoAgeLimit()
	case ModeText:
		opts.NotifyMode = NotifyConsole
	case ModeWatch:
		opts.NotifyMode = NotifyNone
	}

	return opts
}
