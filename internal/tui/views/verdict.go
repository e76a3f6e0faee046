package views

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/provet-dev/provet/internal/session"
	"github.com/provet-dev/provet/internal/tui"
)

// ============================================================================
// Message Types
// ============================================================================

// GenerateDeckMsg is sent when the user requests deck generation.
type GenerateDeckMsg struct{}

// DeclineDeckMsg is sent when the user skips deck generation.
type DeclineDeckMsg struct{}

// OpenChatMsg is sent when the user wants to discuss the findings.
type OpenChatMsg struct{}

// ============================================================================
// VerdictModel
// ============================================================================

// VerdictModel is the view model for the verdict and review screen.
type VerdictModel struct {
	snapshot   session.Snapshot
	generating bool
	width      int
	height     int
}

// NewVerdictModel creates a new VerdictModel.
func NewVerdictModel(snap session.Snapshot, width, height int) VerdictModel {
	return VerdictModel{
		snapshot:   snap,
		generating: snap.State == session.StateGenerating,
		width:      width,
		height:     height,
	}
}

// SetSnapshot replaces the session snapshot rendered by the view.
func (m *VerdictModel) SetSnapshot(snap session.Snapshot) {
	m.snapshot = snap
	m.generating = snap.State == session.StateGenerating
}

// Init returns the initial command for the verdict view.
func (m VerdictModel) Init() tea.Cmd {
	return nil
}

// Update handles messages for the verdict view.
func (m VerdictModel) Update(msg tea.Msg) (VerdictModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.generating {
			break
		}
		switch msg.String() {
		case "g":
			m.generating = true
			return m, func() tea.Msg { return GenerateDeckMsg{} }
		case "n":
			return m, func() tea.Msg { return DeclineDeckMsg{} }
		case "c":
			return m, func() tea.Msg { return OpenChatMsg{} }
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	}

	return m, nil
}

// View renders the verdict view.
func (m VerdictModel) View() string {
	v := m.snapshot.Verdict
	if v == nil {
		return tui.DimStyle.Render("Waiting for verdict...")
	}

	var b strings.Builder

	banner := tui.PassStyle.Render("PASS")
	if v.Status != "PASS" {
		banner = tui.FailStyle.Render(v.Status)
	}
	b.WriteString(fmt.Sprintf("%s  %s", banner, tui.TitleStyle.Render(v.Title)))
	b.WriteString("\n")
	b.WriteString(tui.DimStyle.Render(fmt.Sprintf("Confidence: %.0f%%", v.Confidence)))
	b.WriteString("\n\n")

	for _, f := range v.Findings {
		sev := tui.SeverityStyle(f.Severity)
		b.WriteString(fmt.Sprintf("%s %s\n", sev.Render("["+f.Severity+"]"), tui.AgentStyle.Render(f.Category)))
		for _, item := range f.Items {
			b.WriteString("    - " + item + "\n")
		}
	}
	b.WriteString("\n")

	if m.snapshot.ArtifactLink != "" {
		b.WriteString(tui.SuccessStyle.Render("Deck ready: " + m.snapshot.ArtifactLink))
		b.WriteString("\n\n")
	}

	var footer string
	switch {
	case m.generating:
		footer = tui.DimStyle.Render("Generating presentation deck...")
	case m.snapshot.State == session.StateComplete:
		footer = tui.DimStyle.Render("c: Chat · r: New analysis · q: Quit")
	default:
		footer = tui.DimStyle.Render("g: Generate deck · n: Skip deck · c: Chat")
	}
	b.WriteString(footer)

	const maxBoxWidth = 90
	boxWidth := maxBoxWidth
	if m.width-4 < boxWidth {
		boxWidth = m.width - 4
	}

	boxed := tui.BoxStyle.
		Width(boxWidth).
		Render(b.String())

	contentHeight := lipgloss.Height(boxed)
	if m.height > contentHeight {
		padding := (m.height - contentHeight) / 3
		if padding > 0 {
			boxed = strings.Repeat("\n", padding) + boxed
		}
	}

	return boxed
}
