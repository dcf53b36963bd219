package out

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"focuslog/internal/modules/tracker/domain"
)

var (
	statusLabel      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#cba6f7"))
	statusProductive = lipgloss.NewStyle().Foreground(lipgloss.Color("#a6e3a1"))
	statusIdle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#f9e2af"))
	statusMuted      = lipgloss.NewStyle().Foreground(lipgloss.Color("#6c7086"))
)

// ConsoleListener prints one status line per state change.
type ConsoleListener struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsoleListener(w io.Writer) *ConsoleListener {
	return &ConsoleListener{w: w}
}

func (l *ConsoleListener) OnStateChanged(activity domain.Activity) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = fmt.Fprintln(l.w, StatusLine(activity))
}

func StatusLine(activity domain.Activity) string {
	name := activity.DisplayName
	if activity.Video != nil {
		title := activity.Video.Title
		if title == "" {
			title = activity.Video.MediaID
		}
		name = fmt.Sprintf("%s ▶ %s", name, title)
	}
	tag := statusIdle.Render("neutral")
	if activity.Productive {
		tag = statusProductive.Render("productive")
	}
	return fmt.Sprintf("%s %s %s %s",
		statusLabel.Render(string(activity.Kind)),
		name,
		tag,
		statusMuted.Render(activity.StartTime.Format("15:04:05")),
	)
}

// NopListener discards state changes.
type NopListener struct{}

func (NopListener) OnStateChanged(domain.Activity) {}
