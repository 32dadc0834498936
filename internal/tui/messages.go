package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/unklstewy/aprs-notify/internal/db"
	"github.com/unklstewy/aprs-notify/internal/runner"
)

// tickMsg asks for a poll. Ticks from an older schedule are ignored.
type tickMsg struct {
	seq int
}

// pollResultMsg carries the outcome of one poll. A history failure does not
// invalidate the report.
type pollResultMsg struct {
	report     runner.Report
	recent     []db.PositionRecord
	err        error
	historyErr error
	at         time.Time
}

func tick(seq int, d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return tickMsg{seq: seq}
	})
}

func poll(ctx context.Context, p Poller, h HistoryReader, callsign string, limit int) tea.Cmd {
	return func() tea.Msg {
		report, err := p.Run(ctx)
		msg := pollResultMsg{report: report, err: err, at: time.Now()}
		if err != nil || h == nil {
			return msg
		}

		msg.recent, msg.historyErr = h.Recent(ctx, callsign, limit)
		return msg
	}
}
