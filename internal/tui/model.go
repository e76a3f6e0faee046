// Package tui implements the terminal user interface using Bubble Tea.
package tui

import (
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"

	"github.com/provet-dev/provet/internal/config"
	"github.com/provet-dev/provet/internal/session"
)

// ViewState represents the current screen of the TUI.
type ViewState int

const (
	StateHome ViewState = iota // Waiting for documents
	StateAnalyzing
	StateVerdict
	StateGenerating
	StateChat
	StateComplete
)

// Model is the main TUI model that holds all application state.
type Model struct {
	// State management
	State ViewState
	Err   error

	// Configuration
	Cfg        *config.Config
	WorkingDir string

	// Latest session snapshot; refreshed on every SessionUpdatedMsg.
	Snapshot session.Snapshot

	// Bubbles components
	TextInput textinput.Model
	Textarea  textarea.Model
	Viewport  viewport.Model
	Spinner   spinner.Model

	// Terminal dimensions
	Width  int
	Height int

	// Ctrl+C confirmation state
	CtrlCPending bool // True when waiting for second Ctrl+C press
}

// NewModel creates a new Model with the given configuration.
func NewModel(cfg *config.Config, workingDir string) *Model {
	ti := textinput.New()
	ti.Placeholder = "path/to/document.pdf ..."
	ti.CharLimit = 2000
	ti.Width = 80

	ta := textarea.New()
	ta.Placeholder = "Ask about the findings..."
	ta.CharLimit = 5000

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(primaryColor))

	vp := viewport.New(80, 24)

	return &Model{
		State:      StateHome,
		Cfg:        cfg,
		WorkingDir: workingDir,

		TextInput: ti,
		Textarea:  ta,
		Spinner:   sp,
		Viewport:  vp,

		// Default dimensions (will be updated on WindowSizeMsg)
		Width:  80,
		Height: 24,
	}
}
