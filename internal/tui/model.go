// Package tui implements the interactive watch view: a bubbletea program
// that re-polls aprs.fi on an interval and shows the latest summary.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/unklstewy/aprs-notify/internal/db"
	"github.com/unklstewy/aprs-notify/internal/runner"
	"github.com/unklstewy/aprs-notify/pkg/coordinates"
)

// HistoryLimit is the number of history rows shown.
const HistoryLimit = 5

// Poller runs one poll. *runner.Runner implements it.
type Poller interface {
	Run(ctx context.Context) (runner.Report, error)
}

// HistoryReader lists recorded positions. *db.PositionRepository implements it.
type HistoryReader interface {
	Recent(ctx context.Context, callsign string, limit int) ([]db.PositionRecord, error)
}

// Model is the watch view state.
type Model struct {
	ctx      context.Context
	poller   Poller
	history  HistoryReader
	callsign string
	home     coordinates.Geographic
	interval time.Duration
	location *time.Location

	width  int
	height int

	report     *runner.Report
	recent     []db.PositionRecord
	lastPoll   time.Time
	loading    bool
	err        error
	historyErr error
	seq        int
}

// Options configures a Model.
type Options struct {
	Callsign string
	Home     coordinates.Geographic
	Interval time.Duration
	Location *time.Location

	// History is optional
	History HistoryReader
}

// NewModel creates the watch view.
func NewModel(ctx context.Context, p Poller, opts Options) Model {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	return Model{
		ctx:      ctx,
		poller:   p,
		history:  opts.History,
		callsign: opts.Callsign,
		home:     opts.Home,
		interval: opts.Interval,
		location: loc,
		loading:  true,
	}
}

// Init starts the first poll.
func (m Model) Init() tea.Cmd {
	return poll(m.ctx, m.poller, m.history, m.callsign, HistoryLimit)
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "r":
			if m.loading {
				return m, nil
			}
			m.loading = true
			return m, poll(m.ctx, m.poller, m.history, m.callsign, HistoryLimit)
		}
		return m, nil

	case tickMsg:
		if msg.seq != m.seq || m.loading {
			return m, nil
		}
		m.loading = true
		return m, poll(m.ctx, m.poller, m.history, m.callsign, HistoryLimit)

	case pollResultMsg:
		m.loading = false
		m.lastPoll = msg.at
		m.err = msg.err
		m.historyErr = msg.historyErr
		if msg.err == nil {
			report := msg.report
			m.report = &report
		}
		if msg.err == nil && msg.historyErr == nil {
			m.recent = msg.recent
		}
		// Restart the schedule; a manual refresh supersedes the pending tick
		m.seq++
		return m, tick(m.seq, m.interval)
	}

	return m, nil
}

// View renders the watch view.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render(fmt.Sprintf("aprs-notify watch: %s", m.callsign)))
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render("Error: " + m.err.Error()))
		b.WriteString("\n\n")
	}

	switch {
	case m.report == nil && m.loading:
		b.WriteString(dimStyle.Render("Fetching from aprs.fi..."))
		b.WriteString("\n")
	case m.report != nil && m.report.NotFound:
		b.WriteString(titleStyle.Render("Can't find " + m.callsign))
		b.WriteString("\n")
		b.WriteString(messageStyle.Render("No results returned from aprs.fi"))
		b.WriteString("\n")
	case m.report != nil:
		for _, e := range m.report.Shown {
			b.WriteString(m.renderEntry(e))
			b.WriteString("\n")
		}
	}

	if len(m.recent) > 0 {
		b.WriteString("\n")
		b.WriteString(m.renderHistory())
	}
	if m.historyErr != nil {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render("History unavailable: " + m.historyErr.Error()))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.renderStatus())
	return b.String()
}

func (m Model) renderEntry(e runner.Entry) string {
	pos := coordinates.Geographic{Latitude: e.Location.Latitude, Longitude: e.Location.Longitude}
	bearing := coordinates.Bearing(m.home, pos)

	lines := []string{
		titleStyle.Render(e.Summary.Title),
		messageStyle.Render(strings.TrimSpace(e.Summary.Message)),
		bearingStyle.Render(fmt.Sprintf("Bearing %03.0f° %s from home, %s",
			bearing, coordinates.CompassPoint(bearing), formatDistance(e.Summary.DistanceMeters))),
	}

	body := lipgloss.JoinVertical(lipgloss.Left, lines...)
	if m.width > 4 {
		return entryStyle.Width(m.width - 4).Render(body)
	}
	return entryStyle.Render(body)
}

func (m Model) renderHistory() string {
	lines := []string{dimStyle.Render("Recent notifications")}
	for _, rec := range m.recent {
		lines = append(lines, fmt.Sprintf("  %s  %s",
			dimStyle.Render(rec.NotifiedAt.In(m.location).Format("Jan 02 15:04")),
			rec.Title))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...) + "\n"
}

func (m Model) renderStatus() string {
	status := "r: refresh  q: quit"
	switch {
	case m.loading:
		status = "refreshing...  " + status
	case !m.lastPoll.IsZero():
		status = fmt.Sprintf("updated %s, every %v  %s",
			m.lastPoll.In(m.location).Format("15:04:05"), m.interval, status)
	}
	return controlStyle.Render(status)
}

func formatDistance(meters float64) string {
	if meters >= 1000 {
		return fmt.Sprintf("%.1f km", meters/1000)
	}
	return fmt.Sprintf("%.0f m", meters)
}

// Run starts the watch view and blocks until the user quits or ctx is done.
func Run(ctx context.Context, p Poller, opts Options) error {
	prog := tea.NewProgram(NewModel(ctx, p, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := prog.Run()
	return err
}
