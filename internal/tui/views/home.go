// Package views provides TUI view components for the Provet application.
package views

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/provet-dev/provet/internal/tui"
)

// ============================================================================
// Message Types
// ============================================================================

// SubmitDocumentsMsg is sent when the user submits document paths for analysis.
type SubmitDocumentsMsg struct {
	Paths []string
}

// ============================================================================
// HomeModel
// ============================================================================

// HomeModel is the view model for the document upload screen.
type HomeModel struct {
	textInput textinput.Model
	Err       error
	width     int
	height    int
}

// NewHomeModel creates a new HomeModel. Initial paths (from the command
// line) pre-fill the input.
func NewHomeModel(initialPaths []string, width, height int) HomeModel {
	ti := textinput.New()
	ti.Placeholder = "bid.pdf terms.pdf ..."
	ti.CharLimit = 2000
	ti.Width = width - 10
	ti.Focus()
	if len(initialPaths) > 0 {
		ti.SetValue(strings.Join(initialPaths, " "))
	}

	return HomeModel{
		textInput: ti,
		width:     width,
		height:    height,
	}
}

// Init returns the initial command for the home view.
func (m HomeModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages for the home view.
func (m HomeModel) Update(msg tea.Msg) (HomeModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == tui.KeyEnter {
			paths := strings.Fields(m.textInput.Value())
			if len(paths) > 0 {
				return m, func() tea.Msg {
					return SubmitDocumentsMsg{Paths: paths}
				}
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.textInput.Width = msg.Width - 10
		return m, nil
	}

	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

// View renders the home view.
func (m HomeModel) View() string {
	var b strings.Builder

	header := tui.TitleStyle.Render("Provet - Procurement Document Review")
	b.WriteString(header)
	b.WriteString("\n\n")

	b.WriteString("Which documents should be analyzed? (PDF, space-separated)")
	b.WriteString("\n\n")

	b.WriteString(m.textInput.View())
	b.WriteString("\n\n")

	if m.Err != nil {
		b.WriteString(tui.ErrorStyle.Render("Error: " + m.Err.Error()))
		b.WriteString("\n\n")
	}

	footer := tui.DimStyle.Render("Enter: Analyze       Ctrl+C: Exit")
	b.WriteString(footer)

	content := b.String()
	boxed := tui.BoxStyle.
		Width(m.width - 4).
		Render(content)

	// Center vertically if there's space
	contentHeight := lipgloss.Height(boxed)
	if m.height > contentHeight {
		padding := (m.height - contentHeight) / 3
		if padding > 0 {
			boxed = strings.Repeat("\n", padding) + boxed
		}
	}

	return boxed
}
