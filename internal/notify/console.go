package notify

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Console writes "title: message" lines. The title is bold on a terminal and
// plain text otherwise, so output stays greppable when redirected to a log.
type Console struct {
	mu    sync.Mutex
	w     io.Writer
	plain bool
	title lipgloss.Style
}

// NewConsole creates a console notifier writing to w.
func NewConsole(w io.Writer) *Console {
	r := lipgloss.NewRenderer(w)
	return &Console{
		w:     w,
		plain: r.ColorProfile() == termenv.Ascii,
		title: r.NewStyle().Bold(true),
	}
}

// Init is a no-op; a writer needs no setup.
func (c *Console) Init(ctx context.Context) error {
	return nil
}

// Notify writes one line.
func (c *Console) Notify(ctx context.Context, title, message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.plain {
		// lipgloss expands tabs and pads multi-line text
		title = c.title.Render(title)
	}
	if _, err := fmt.Fprintf(c.w, "%s: %s\n", title, message); err != nil {
		return fmt.Errorf("write notification: %w", err)
	}
	return nil
}

// Close is a no-op; the writer is owned by the caller.
func (c *Console) Close() error {
	return nil
}
