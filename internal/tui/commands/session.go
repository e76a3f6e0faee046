// Package commands provides tea.Cmd wrappers around session operations.
package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/provet-dev/provet/internal/api"
	"github.com/provet-dev/provet/internal/session"
	"github.com/provet-dev/provet/internal/tui"
)

// ListenUpdatesCmd waits for the next session update signal. The app
// re-issues it after every SessionUpdatedMsg, mirroring the channel
// listener pattern for streaming output.
func ListenUpdatesCmd(updates <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-updates
		return tui.SessionUpdatedMsg{}
	}
}

// UploadCmd reads the documents from disk and starts the analysis.
func UploadCmd(m *session.Machine, paths []string) tea.Cmd {
	return func() tea.Msg {
		files, err := ReadDocuments(paths)
		if err != nil {
			return tui.UploadDoneMsg{Err: err}
		}
		return tui.UploadDoneMsg{Err: m.UploadDocuments(context.Background(), files)}
	}
}

// SendChatCmd sends one chat turn over the streaming endpoint. It blocks
// until the turn finishes; progress arrives via session updates.
func SendChatCmd(m *session.Machine, message string) tea.Cmd {
	return func() tea.Msg {
		return tui.ChatTurnDoneMsg{Err: m.SendChatMessage(context.Background(), message)}
	}
}

// GenerateArtifactCmd requests deck generation for the current verdict.
func GenerateArtifactCmd(m *session.Machine) tea.Cmd {
	return func() tea.Msg {
		return tui.ReviewDoneMsg{Err: m.GenerateArtifact(context.Background())}
	}
}

// DeclineArtifactCmd accepts the verdict without generating a deck.
func DeclineArtifactCmd(m *session.Machine) tea.Cmd {
	return func() tea.Msg {
		return tui.ReviewDoneMsg{Err: m.DeclineArtifact(context.Background())}
	}
}

// ReadDocuments loads the given paths into upload files.
func ReadDocuments(paths []string) ([]api.File, error) {
	var files []api.File
	for _, p := range paths {
		content, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", p, err)
		}
		files = append(files, api.File{
			Name:    filepath.Base(p),
			Content: content,
		})
	}
	return files, nil
}
