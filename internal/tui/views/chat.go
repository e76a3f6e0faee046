package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/provet-dev/provet/internal/session"
	"github.com/provet-dev/provet/internal/tui"
)

// ============================================================================
// Message Types
// ============================================================================

// SendChatMsg is sent when the user submits a chat message.
type SendChatMsg struct {
	Content string
}

// ExitChatMsg signals that the user wants to leave the chat view.
type ExitChatMsg struct{}

// ============================================================================
// ChatModel
// ============================================================================

// ChatModel is the view model for the findings chat screen.
type ChatModel struct {
	snapshot session.Snapshot
	textarea textarea.Model
	viewport viewport.Model
	spinner  spinner.Model
	width    int
	height   int
}

// NewChatModel creates a new ChatModel from the current session snapshot.
func NewChatModel(snap session.Snapshot, width, height int) ChatModel {
	ta := textarea.New()
	ta.Placeholder = "Ask about the findings... (Enter to send)"
	ta.CharLimit = 5000
	ta.SetWidth(width - 8)
	ta.SetHeight(3)
	ta.ShowLineNumbers = false
	ta.Focus()

	// Shift+Enter for newline, Enter for submit.
	keyMap := ta.KeyMap
	keyMap.InsertNewline = key.NewBinding(
		key.WithKeys("shift+enter", "ctrl+j"),
		key.WithHelp("shift+enter", "new line"),
	)
	ta.KeyMap = keyMap

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#7C3AED"))

	vpHeight := height - 14
	if vpHeight < 5 {
		vpHeight = 5
	}
	vpWidth := width - 8
	if vpWidth < 20 {
		vpWidth = 20
	}

	vp := viewport.New(vpWidth, vpHeight)
	vp.SetContent(formatTranscript(snap.Transcript))

	return ChatModel{
		snapshot: snap,
		textarea: ta,
		viewport: vp,
		spinner:  sp,
		width:    width,
		height:   height,
	}
}

// SetSnapshot replaces the session snapshot and re-renders the transcript.
// Streaming deltas arrive here as successive snapshots.
func (m *ChatModel) SetSnapshot(snap session.Snapshot) {
	m.snapshot = snap
	m.viewport.SetContent(formatTranscript(snap.Transcript))
	m.viewport.GotoBottom()
}

// Init returns the initial command for the chat view.
func (m ChatModel) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spinner.Tick)
}

// Update handles messages for the chat view.
func (m ChatModel) Update(msg tea.Msg) (ChatModel, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		keyStr := msg.String()

		if keyStr == tui.KeyEnter && !m.snapshot.ChatBusy {
			content := strings.TrimSpace(m.textarea.Value())
			if content != "" {
				m.textarea.Reset()
				return m, func() tea.Msg {
					return SendChatMsg{Content: content}
				}
			}
			return m, nil
		}

		if keyStr == tui.KeyCtrlJ {
			m.textarea.InsertString("\n")
			return m, nil
		}

		if keyStr == tui.KeyEsc {
			return m, func() tea.Msg {
				return ExitChatMsg{}
			}
		}

	case spinner.TickMsg:
		if m.snapshot.ChatBusy {
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		vpHeight := msg.Height - 14
		if vpHeight < 5 {
			vpHeight = 5
		}
		vpWidth := msg.Width - 8
		if vpWidth < 20 {
			vpWidth = 20
		}

		m.viewport.Width = vpWidth
		m.viewport.Height = vpHeight
		m.textarea.SetWidth(vpWidth)
		m.viewport.SetContent(formatTranscript(m.snapshot.Transcript))
		return m, nil
	}

	if !m.snapshot.ChatBusy {
		m.textarea, cmd = m.textarea.Update(msg)
		cmds = append(cmds, cmd)
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// View renders the chat view.
func (m ChatModel) View() string {
	var b strings.Builder

	header := tui.TitleStyle.Render("Chat: Analysis Findings")
	b.WriteString(header)
	b.WriteString("\n\n")

	b.WriteString(m.viewport.View())
	b.WriteString("\n\n")

	if m.snapshot.ChatBusy {
		loadingLine := fmt.Sprintf("%s Thinking...", m.spinner.View())
		b.WriteString(loadingLine)
		b.WriteString("\n\n")
		b.WriteString(tui.DimStyle.Render(m.textarea.View()))
	} else {
		b.WriteString(m.textarea.View())
	}

	b.WriteString("\n\n")

	footer := tui.DimStyle.Render("Enter: Submit · Shift+Enter: New line · Esc: Back")
	b.WriteString(footer)

	content := b.String()
	boxed := tui.BoxStyle.
		Width(m.width - 4).
		Render(content)

	contentHeight := lipgloss.Height(boxed)
	if m.height > contentHeight {
		padding := (m.height - contentHeight) / 3
		if padding > 0 {
			boxed = strings.Repeat("\n", padding) + boxed
		}
	}

	return boxed
}

// formatTranscript formats the chat history for display in the viewport.
func formatTranscript(transcript []session.ChatTurn) string {
	if len(transcript) == 0 {
		return tui.DimStyle.Render("No messages yet. Ask about the verdict or any finding.")
	}

	var b strings.Builder

	userStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#10B981")).
		Bold(true)

	assistantStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#7C3AED")).
		Bold(true)

	for i, turn := range transcript {
		var prefix string
		var style lipgloss.Style

		switch turn.Role {
		case session.RoleUser:
			prefix = "You: "
			style = userStyle
		case session.RoleAssistant:
			prefix = "Analyst: "
			style = assistantStyle
		default:
			prefix = string(turn.Role) + ": "
			style = tui.DimStyle
		}

		b.WriteString(style.Render(prefix))
		b.WriteString(turn.Content)

		if i < len(transcript)-1 {
			b.WriteString("\n\n")
		}
	}

	return b.String()
}
