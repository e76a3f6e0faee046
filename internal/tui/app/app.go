// Package app provides the main TUI application that wires all views together.
package app

import (
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/provet-dev/provet/internal/config"
	"github.com/provet-dev/provet/internal/session"
	"github.com/provet-dev/provet/internal/tui"
	"github.com/provet-dev/provet/internal/tui/commands"
	"github.com/provet-dev/provet/internal/tui/views"
)

// App is the main TUI application that wires all views together.
type App struct {
	model   *tui.Model
	machine *session.Machine

	// View models
	homeView     views.HomeModel
	thinkingView views.ThinkingModel
	verdictView  views.VerdictModel
	chatView     views.ChatModel

	chatOpen bool
}

// New creates a new App driving the given session machine. Initial
// document paths (from the command line) pre-fill the upload screen.
func New(cfg *config.Config, machine *session.Machine, workingDir string, initialPaths []string) *App {
	model := tui.NewModel(cfg, workingDir)

	return &App{
		model:    model,
		machine:  machine,
		homeView: views.NewHomeModel(initialPaths, model.Width, model.Height),
	}
}

// Init returns the initial command for the TUI.
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		a.homeView.Init(),
		commands.ListenUpdatesCmd(a.machine.Updates()),
	)
}

// Update handles messages and updates the application state.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.model.Width = msg.Width
		a.model.Height = msg.Height
		var cmds []tea.Cmd
		var cmd tea.Cmd
		a.homeView, cmd = a.homeView.Update(msg)
		cmds = append(cmds, cmd)
		a.thinkingView, cmd = a.thinkingView.Update(msg)
		cmds = append(cmds, cmd)
		a.verdictView, cmd = a.verdictView.Update(msg)
		cmds = append(cmds, cmd)
		a.chatView, cmd = a.chatView.Update(msg)
		cmds = append(cmds, cmd)
		return a, tea.Batch(cmds...)

	case tea.KeyMsg:
		switch msg.String() {
		case tui.KeyCtrlC:
			if a.model.CtrlCPending {
				return a, tea.Quit
			}
			a.model.CtrlCPending = true
			return a, tea.Tick(time.Second, func(time.Time) tea.Msg {
				return tui.CtrlCResetMsg{}
			})

		case "q":
			// Plain quit only from terminal screens; elsewhere 'q' may be input.
			if !a.chatOpen && (a.model.State == tui.StateComplete || a.model.State == tui.StateVerdict) {
				return a, tea.Quit
			}

		case "r":
			if !a.chatOpen && a.model.State == tui.StateComplete {
				a.machine.Reset()
				a.refreshSnapshot()
				a.homeView = views.NewHomeModel(nil, a.model.Width, a.model.Height)
				return a, a.homeView.Init()
			}
		}

	case tui.CtrlCResetMsg:
		a.model.CtrlCPending = false
		return a, nil

	case tui.SessionUpdatedMsg:
		a.refreshSnapshot()
		// Keep listening for the next signal.
		return a, commands.ListenUpdatesCmd(a.machine.Updates())

	case tui.UploadDoneMsg:
		if msg.Err != nil {
			a.homeView.Err = msg.Err
			a.refreshSnapshot()
		}
		return a, nil

	case tui.ReviewDoneMsg:
		a.refreshSnapshot()
		return a, nil

	case tui.ChatTurnDoneMsg:
		a.refreshSnapshot()
		return a, nil
	}

	// Route messages to the active view.
	if a.chatOpen {
		return a.updateChat(msg)
	}

	switch a.model.State {
	case tui.StateHome:
		return a.updateHome(msg)

	case tui.StateAnalyzing:
		var cmd tea.Cmd
		a.thinkingView, cmd = a.thinkingView.Update(msg)
		return a, cmd

	case tui.StateVerdict, tui.StateGenerating, tui.StateComplete:
		return a.updateVerdict(msg)
	}

	return a, nil
}

// View renders the current application state.
func (a *App) View() string {
	if a.chatOpen {
		return a.chatView.View()
	}

	switch a.model.State {
	case tui.StateHome:
		return a.homeView.View()

	case tui.StateAnalyzing:
		return a.thinkingView.View()

	case tui.StateVerdict, tui.StateGenerating, tui.StateComplete:
		return a.verdictView.View()

	default:
		return "Unknown state"
	}
}

// ============================================================================
// State Update Handlers
// ============================================================================

func (a *App) updateHome(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	a.homeView, cmd = a.homeView.Update(msg)

	if submit, ok := msg.(views.SubmitDocumentsMsg); ok {
		a.homeView.Err = nil
		a.model.State = tui.StateAnalyzing
		a.thinkingView = views.NewThinkingModel(a.model.Width, a.model.Height)
		return a, tea.Batch(
			a.thinkingView.Init(),
			commands.UploadCmd(a.machine, submit.Paths),
		)
	}

	return a, cmd
}

func (a *App) updateVerdict(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	a.verdictView, cmd = a.verdictView.Update(msg)

	switch msg.(type) {
	case views.GenerateDeckMsg:
		return a, commands.GenerateArtifactCmd(a.machine)

	case views.DeclineDeckMsg:
		return a, commands.DeclineArtifactCmd(a.machine)

	case views.OpenChatMsg:
		a.chatOpen = true
		a.chatView = views.NewChatModel(a.model.Snapshot, a.model.Width, a.model.Height)
		return a, a.chatView.Init()
	}

	return a, cmd
}

func (a *App) updateChat(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	a.chatView, cmd = a.chatView.Update(msg)

	switch msg := msg.(type) {
	case views.SendChatMsg:
		return a, tea.Batch(
			a.chatView.Init(), // restart spinner while the turn runs
			commands.SendChatCmd(a.machine, msg.Content),
		)

	case views.ExitChatMsg:
		a.chatOpen = false
		return a, nil

	case spinner.TickMsg:
		return a, cmd
	}

	return a, cmd
}

// ============================================================================
// Helpers
// ============================================================================

// refreshSnapshot re-reads the session and maps its state onto the view
// state. The chat overlay survives snapshot refreshes.
func (a *App) refreshSnapshot() {
	snap := a.machine.Snapshot()
	a.model.Snapshot = snap

	switch snap.State {
	case session.StateIdle:
		a.model.State = tui.StateHome
		if snap.LastError != "" {
			a.chatOpen = false
			a.homeView.Err = errors.New(snap.LastError)
		}

	case session.StateUploading, session.StateThinking:
		a.model.State = tui.StateAnalyzing
		a.thinkingView.SetSnapshot(snap)

	case session.StateVerdict:
		a.enterVerdictScreen(snap, tui.StateVerdict)

	case session.StateGenerating:
		a.enterVerdictScreen(snap, tui.StateGenerating)

	case session.StateComplete:
		a.enterVerdictScreen(snap, tui.StateComplete)
	}

	if a.chatOpen {
		a.chatView.SetSnapshot(snap)
	}
}

// enterVerdictScreen switches to the verdict view, constructing it on
// first entry so it picks up the current terminal dimensions.
func (a *App) enterVerdictScreen(snap session.Snapshot, state tui.ViewState) {
	onVerdictScreen := a.model.State == tui.StateVerdict ||
		a.model.State == tui.StateGenerating ||
		a.model.State == tui.StateComplete
	a.model.State = state
	if !onVerdictScreen {
		a.verdictView = views.NewVerdictModel(snap, a.model.Width, a.model.Height)
		return
	}
	a.verdictView.SetSnapshot(snap)
}
