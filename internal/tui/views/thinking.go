package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/provet-dev/provet/internal/session"
	"github.com/provet-dev/provet/internal/tui"
)

// ThinkingModel is the view model for the live analysis progress screen.
type ThinkingModel struct {
	snapshot session.Snapshot
	spinner  spinner.Model
	width    int
	height   int
}

// NewThinkingModel creates a new ThinkingModel.
func NewThinkingModel(width, height int) ThinkingModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#7C3AED"))

	return ThinkingModel{
		spinner: sp,
		width:   width,
		height:  height,
	}
}

// SetSnapshot replaces the session snapshot rendered by the view.
func (m *ThinkingModel) SetSnapshot(snap session.Snapshot) {
	m.snapshot = snap
}

// Init returns the initial command for the thinking view.
func (m ThinkingModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles messages for the thinking view.
func (m ThinkingModel) Update(msg tea.Msg) (ThinkingModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	}

	return m, nil
}

// View renders the thinking view.
func (m ThinkingModel) View() string {
	var b strings.Builder

	header := tui.TitleStyle.Render("Analyzing Documents")
	b.WriteString(header)
	b.WriteString("\n\n")

	b.WriteString(fmt.Sprintf("%s The agents are reviewing %s...",
		m.spinner.View(), strings.Join(m.snapshot.Documents, ", ")))
	b.WriteString("\n\n")

	// Show the tail of the progress log; older entries scroll away.
	entries := m.snapshot.ProgressLog
	maxEntries := m.height - 12
	if maxEntries < 5 {
		maxEntries = 5
	}
	if len(entries) > maxEntries {
		entries = entries[len(entries)-maxEntries:]
	}

	for i, entry := range entries {
		icon := tui.LogDone
		if i == len(entries)-1 {
			icon = tui.LogActive
		}
		b.WriteString(fmt.Sprintf("  %s %s %s\n",
			icon,
			tui.AgentStyle.Render(fmt.Sprintf("%-10s", entry.Agent)),
			entry.Message,
		))
	}

	b.WriteString("\n")
	b.WriteString(tui.DimStyle.Render("Ctrl+C: Exit"))

	const maxBoxWidth = 90
	boxWidth := maxBoxWidth
	if m.width-4 < boxWidth {
		boxWidth = m.width - 4
	}

	return tui.BoxStyle.
		Width(boxWidth).
		Render(b.String())
}
