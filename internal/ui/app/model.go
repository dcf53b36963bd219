package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	trackerdto "focuslog/internal/modules/tracker/dto"
	"focuslog/internal/ui/theme"
)

// ─── ports ───────────────────────────────────────────────────────────────────

type trackerPort interface {
	Current(ctx context.Context) (trackerdto.CurrentOutput, error)
	Summaries(ctx context.Context, family, day string) ([]trackerdto.SummaryOutput, error)
}

// ─── tab index ───────────────────────────────────────────────────────────────

type tabID int

const (
	tabProgram tabID = iota
	tabDomain
	tabVideo
	tabCount
)

var tabLabels = [tabCount]string{"Programs", "Domains", "Videos"}

var tabFamilies = [tabCount]string{"program", "domain", "video"}

// ─── async messages ───────────────────────────────────────────────────────────

type pollMsg time.Time

type snapshotMsg struct {
	current   trackerdto.CurrentOutput
	summaries []trackerdto.SummaryOutput
	family    string
	scheduled bool
	err       error
}

// Model is the live dashboard for a running tracker. It never writes; every
// refresh is a read against the tracker's HTTP API.
type Model struct {
	tracker  trackerPort
	interval time.Duration
	now      func() time.Time

	activeTab tabID
	current   trackerdto.CurrentOutput
	summaries []trackerdto.SummaryOutput
	status    string
	width     int
	height    int
}

func NewModel(tracker trackerPort, interval time.Duration, now func() time.Time) Model {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if now == nil {
		now = time.Now
	}
	return Model{
		tracker:  tracker,
		interval: interval,
		now:      now,
		status:   "connecting",
		width:    80,
		height:   24,
	}
}

func (m Model) Init() tea.Cmd {
	return m.refreshCmd(true)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case pollMsg:
		return m, m.refreshCmd(true)

	case snapshotMsg:
		if msg.err != nil {
			m.status = "error: " + msg.err.Error()
		} else {
			m.current = msg.current
			// A tab switch may land while an older family's poll is in flight.
			if msg.family == tabFamilies[m.activeTab] {
				m.summaries = msg.summaries
			}
			m.status = "updated " + m.now().Format("15:04:05")
		}
		// Only the polling chain re-arms; manual refreshes would otherwise stack timers.
		if !msg.scheduled {
			return m, nil
		}
		return m, m.pollCmd()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "tab", "right":
			m.activeTab = (m.activeTab + 1) % tabCount
			m.summaries = nil
			return m, m.refreshCmd(false)
		case "shift+tab", "left":
			m.activeTab = (m.activeTab + tabCount - 1) % tabCount
			m.summaries = nil
			return m, m.refreshCmd(false)
		case "r":
			return m, m.refreshCmd(false)
		}
	}
	return m, nil
}

// ─── view ────────────────────────────────────────────────────────────────────

func (m Model) View() string {
	tabBar := m.renderTabBar()
	statusBar := m.renderStatusBar()
	contentH := m.height - lipgloss.Height(tabBar) - lipgloss.Height(statusBar)
	if contentH < 1 {
		contentH = 1
	}
	content := lipgloss.NewStyle().Width(m.width).Height(contentH).Render(
		lipgloss.JoinVertical(lipgloss.Left, m.renderCurrent(), "", m.renderSummaries()),
	)
	return lipgloss.JoinVertical(lipgloss.Left, tabBar, content, statusBar)
}

func (m Model) renderTabBar() string {
	parts := make([]string, tabCount)
	for i := tabID(0); i < tabCount; i++ {
		label := " " + tabLabels[i] + " "
		if i == m.activeTab {
			parts[i] = theme.Hot.Render(label)
		} else {
			parts[i] = theme.Muted.Render(label)
		}
	}
	bar := "focuslog  " + strings.Join(parts, theme.Muted.Render(" │ "))
	return lipgloss.NewStyle().Background(theme.Mantle).Width(m.width).Render(bar) + "\n"
}

func (m Model) renderCurrent() string {
	pane := theme.PaneActive.Width(max(m.width-4, 20))
	if !m.current.Active {
		return pane.Render(theme.Muted.Render("idle"))
	}
	name := m.current.Name
	if m.current.Productive {
		name = theme.Productive.Render(name)
	}
	lines := []string{
		theme.Title.Render(m.current.Kind) + "  " + name,
		theme.Muted.Render(fmt.Sprintf("since %s, %s recorded",
			m.current.StartTime.Format("15:04:05"),
			time.Duration(m.current.RecordedSeconds)*time.Second)),
	}
	if m.current.Detail != "" {
		lines = append(lines, theme.Muted.Render(m.current.Detail))
	}
	if v := m.current.Video; v != nil {
		lines = append(lines, theme.Muted.Render(fmt.Sprintf("%s %s %s", v.Platform, v.MediaID, v.PlayerState)))
	}
	return pane.Render(strings.Join(lines, "\n"))
}

func (m Model) renderSummaries() string {
	if len(m.summaries) == 0 {
		return theme.Muted.Render("  no " + tabFamilies[m.activeTab] + " activity today")
	}
	var b strings.Builder
	for _, row := range m.summaries {
		name := row.Name
		if row.Productive {
			name = theme.Productive.Render(name)
		}
		fmt.Fprintf(&b, "  %6.2fh  %s\n", row.HoursSpent, name)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) renderStatusBar() string {
	left := m.status
	if m.current.Active {
		left = theme.Hot.Render("● "+m.current.Name) + "  " + left
	}
	right := theme.Muted.Render("tab:family  r:refresh  q:quit")
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	bar := left + strings.Repeat(" ", gap) + right
	return "\n" + lipgloss.NewStyle().Background(theme.Mantle).Width(m.width).Render(bar)
}

// ─── async commands ───────────────────────────────────────────────────────────

func (m Model) pollCmd() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return pollMsg(t) })
}

func (m Model) refreshCmd(scheduled bool) tea.Cmd {
	family := tabFamilies[m.activeTab]
	day := m.now().Format("2006-01-02")
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		current, err := m.tracker.Current(ctx)
		if err != nil {
			return snapshotMsg{family: family, scheduled: scheduled, err: err}
		}
		rows, err := m.tracker.Summaries(ctx, family, day)
		return snapshotMsg{current: current, summaries: rows, family: family, scheduled: scheduled, err: err}
	}
}
