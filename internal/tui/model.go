package tui

import (
	"fmt"
	"slices"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// HeadPose reports the head's current pan and tilt in degrees.
type HeadPose func() (pan, tilt float64)

// Model is the bubbletea model of the run monitor.
type Model struct {
	feed    *Feed
	head    HeadPose
	refresh time.Duration

	snap     Snapshot
	pan      float64
	tilt     float64
	frozen   bool
	width    int
	height   int
	quitting bool
}

// Option configures a Model.
type Option func(*Model)

// WithHead shows the head pose reported by h.
func WithHead(h HeadPose) Option {
	return func(m *Model) { m.head = h }
}

// WithRefresh sets the redraw interval.
func WithRefresh(d time.Duration) Option {
	return func(m *Model) {
		if d > 0 {
			m.refresh = d
		}
	}
}

// NewModel creates a monitor model reading from feed.
func NewModel(feed *Feed, opts ...Option) Model {
	m := Model{feed: feed, refresh: 100 * time.Millisecond}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

type tickMsg time.Time

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return m.tick()
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "f":
			m.frozen = !m.frozen
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		if !m.frozen {
			m.sample()
		}
		return m, m.tick()
	}
	return m, nil
}

func (m *Model) sample() {
	m.snap = m.feed.Snapshot()
	if m.head != nil {
		m.pan, m.tilt = m.head()
	}
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")

	left := lipgloss.JoinVertical(lipgloss.Left,
		m.panel("Active leaves", m.renderLeaves()),
		m.panel("FSM states", m.renderStates()),
	)
	if m.head != nil {
		left = lipgloss.JoinVertical(lipgloss.Left, left, m.panel("Head", m.renderHead()))
	}
	right := m.panel("Transitions", m.renderTransitions())
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, " ", right))
	b.WriteString("\n")

	b.WriteString(m.renderStatus())
	b.WriteString("\n")
	b.WriteString(helpBar.Render(helpKey.Render("q") + " quit  " + helpKey.Render("f") + " freeze"))
	return b.String()
}

func (m Model) panel(title, body string) string {
	return panelStyle.Render(panelTitle.Render(title) + "\n" + body)
}

func (m Model) renderHeader() string {
	title := "arbiter"
	if m.snap.Root != "" {
		title += " · " + m.snap.Root
	}
	if m.snap.RunID != "" {
		title += " · run " + shortID(m.snap.RunID)
	}
	return headerStyle.Render(title)
}

func (m Model) renderLeaves() string {
	if len(m.snap.Leaves) == 0 {
		return mutedStyle.Render("none")
	}
	lines := make([]string, len(m.snap.Leaves))
	for i, id := range m.snap.Leaves {
		lines[i] = leafStyle.Render("● " + id)
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderStates() string {
	if len(m.snap.States) == 0 {
		return mutedStyle.Render("none")
	}
	ids := make([]string, 0, len(m.snap.States))
	for id := range m.snap.States {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	lines := make([]string, len(ids))
	for i, id := range ids {
		lines[i] = fmt.Sprintf("%s %s", mutedStyle.Render(id+":"), stateStyle.Render(m.snap.States[id]))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderTransitions() string {
	if len(m.snap.Transitions) == 0 {
		return mutedStyle.Render("none yet")
	}
	lines := make([]string, len(m.snap.Transitions))
	for i, t := range m.snap.Transitions {
		from := t.From
		if from == "" {
			from = "∅"
		}
		line := fmt.Sprintf("%5d %s %s → %s", t.Tick, t.FSM, from, t.To)
		if t.Name != "" {
			line += mutedStyle.Render(" (" + t.Name + ")")
		}
		if t.Wildcard {
			line = wildcardStyle.Render("* ") + line
		}
		lines[i] = fit(line, m.width/2)
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderHead() string {
	return fmt.Sprintf("pan %6.1f°  tilt %6.1f°", m.pan, m.tilt)
}

func (m Model) renderStatus() string {
	parts := []string{
		fmt.Sprintf("tick %d", m.snap.Tick),
		fmt.Sprintf("eval %s", m.snap.Duration.Round(time.Microsecond)),
		fmt.Sprintf("resets %d", m.snap.Resets),
	}
	if m.snap.Faults > 0 {
		parts = append(parts, faultStyle.Render(fmt.Sprintf("faults %d", m.snap.Faults)))
	}
	if m.snap.Rejections > 0 {
		parts = append(parts, fmt.Sprintf("rejected %d", m.snap.Rejections))
	}
	if m.snap.Stopped {
		parts = append(parts, "stopped ("+m.snap.Reason+")")
	}
	if m.frozen {
		parts = append(parts, "frozen")
	}
	return statusBar.Render(strings.Join(parts, " | "))
}

// fit truncates s to width visual columns, keeping ANSI styling intact.
// Widths too small to hold an ellipsis leave s unchanged.
func fit(s string, width int) string {
	if width <= 3 || lipgloss.Width(s) <= width {
		return s
	}
	return ansi.Truncate(s, width, "...")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
