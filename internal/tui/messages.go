// Package tui implements the terminal user interface using Bubble Tea.
package tui

// ============================================================================
// Session Messages
// ============================================================================

// SessionUpdatedMsg signals that the session changed and the snapshot
// should be re-read.
type SessionUpdatedMsg struct{}

// UploadDoneMsg signals that the upload call returned.
type UploadDoneMsg struct {
	Err error
}

// ChatTurnDoneMsg signals that a chat turn finished, successfully or not.
type ChatTurnDoneMsg struct {
	Err error
}

// ReviewDoneMsg signals that a review decision round-trip completed.
type ReviewDoneMsg struct {
	Err error
}

// ============================================================================
// Utility Messages
// ============================================================================

// CtrlCResetMsg clears the pending Ctrl+C confirmation after a timeout.
type CtrlCResetMsg struct{}

// ErrorMsg is a generic error message for unrecoverable errors.
type ErrorMsg struct {
	Err error
}
