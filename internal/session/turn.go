package session

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/provet-dev/provet/internal/api"
	"github.com/provet-dev/provet/internal/log"
)

// turnState tracks the single in-flight chat turn. The active message id
// is an explicit field rather than closure state so stale-delta rejection
// is inspectable and testable. Exactly one of finalized, errored, or a
// silent cancellation terminates a turn.
type turnState struct {
	inFlight    bool
	activeMsgID string
	finalized   bool
	errored     bool
	cancel      context.CancelFunc
}

// SendChatMessage sends one chat turn over the streaming endpoint and
// blocks until the turn terminates. The user turn is appended to the
// transcript before any network call. A second call while a turn is in
// flight is rejected with ErrTurnInFlight (reject-if-busy policy).
// Cancellation via CancelChat or ctx never surfaces as lastError.
func (m *Machine) SendChatMessage(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}

	m.mu.Lock()
	if m.threadID == "" {
		m.mu.Unlock()
		return ErrNoSession
	}
	if m.turn.inFlight {
		m.mu.Unlock()
		return ErrTurnInFlight
	}
	threadID := m.threadID
	turnCtx, cancel := context.WithCancel(ctx)
	m.turn = turnState{inFlight: true, cancel: cancel}
	m.lastError = ""
	m.transcript = append(m.transcript, ChatTurn{
		ID:        uuid.NewString(),
		Role:      RoleUser,
		Content:   text,
		Timestamp: time.Now(),
	})
	m.mu.Unlock()
	m.notify()
	defer cancel()

	err := m.transport.SendChatTurnStream(turnCtx, threadID, text, m.chatHandlers(threadID))

	m.mu.Lock()
	cancelled := api.IsCancellation(err) || turnCtx.Err() != nil
	switch {
	case err != nil && !cancelled:
		m.lastError = err.Error()
	case err == nil && !m.turn.finalized && !m.turn.errored && !cancelled:
		// The stream ended without a terminal event; the turn must not
		// end with neither a finalized entry nor an error.
		m.lastError = "chat stream ended unexpectedly"
	}
	m.turn = turnState{}
	m.mu.Unlock()
	m.notify()
	return err
}

// SendChatMessagePlain is the non-streaming variant: one request, one
// complete response. Same busy and transcript semantics as SendChatMessage.
func (m *Machine) SendChatMessagePlain(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}

	m.mu.Lock()
	if m.threadID == "" {
		m.mu.Unlock()
		return ErrNoSession
	}
	if m.turn.inFlight {
		m.mu.Unlock()
		return ErrTurnInFlight
	}
	threadID := m.threadID
	turnCtx, cancel := context.WithCancel(ctx)
	m.turn = turnState{inFlight: true, cancel: cancel}
	m.lastError = ""
	m.transcript = append(m.transcript, ChatTurn{
		ID:        uuid.NewString(),
		Role:      RoleUser,
		Content:   text,
		Timestamp: time.Now(),
	})
	m.mu.Unlock()
	m.notify()
	defer cancel()

	resp, err := m.transport.SendChatTurn(turnCtx, threadID, text)

	m.mu.Lock()
	if err != nil {
		if !api.IsCancellation(err) && turnCtx.Err() == nil {
			m.lastError = err.Error()
		}
	} else {
		m.transcript = append(m.transcript, ChatTurn{
			ID:        uuid.NewString(),
			Role:      RoleAssistant,
			Content:   resp.Response,
			Timestamp: time.Now(),
		})
	}
	m.turn = turnState{}
	m.mu.Unlock()
	m.notify()
	return err
}

// CancelChat aborts the in-flight chat turn, if any. The abort is silent:
// no error is surfaced and any late deltas from the aborted turn are
// discarded because the active message id has been cleared.
func (m *Machine) CancelChat() {
	m.mu.Lock()
	cancel := m.turn.cancel
	m.turn.activeMsgID = ""
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// chatHandlers builds the callbacks for one streaming chat turn.
func (m *Machine) chatHandlers(threadID string) api.ChatStreamHandlers {
	return api.ChatStreamHandlers{
		Start: func(messageID, _ string) {
			m.mu.Lock()
			m.turn.activeMsgID = messageID
			m.mu.Unlock()
		},

		Delta: func(messageID, delta string) {
			m.mu.Lock()
			defer m.mu.Unlock()
			if messageID == "" || messageID != m.turn.activeMsgID {
				// Late delta from a stale or aborted turn.
				return
			}
			idx := m.findTurnLocked(messageID)
			if idx < 0 {
				if delta == "" {
					// An empty first delta must not create a visible bubble.
					return
				}
				m.transcript = append(m.transcript, ChatTurn{
					ID:        messageID,
					Role:      RoleAssistant,
					Content:   delta,
					Timestamp: time.Now(),
				})
			} else {
				m.transcript[idx].Content += delta
			}
			m.notify()
		},

		Complete: func(messageID, response, timestamp string) {
			m.mu.Lock()
			if messageID != m.turn.activeMsgID {
				m.mu.Unlock()
				return
			}
			// The final text is canonical; it replaces accumulated deltas.
			idx := m.findTurnLocked(messageID)
			if idx < 0 {
				m.transcript = append(m.transcript, ChatTurn{
					ID:        messageID,
					Role:      RoleAssistant,
					Content:   response,
					Timestamp: parseTimestamp(timestamp),
				})
			} else {
				m.transcript[idx].Content = response
				m.transcript[idx].Timestamp = parseTimestamp(timestamp)
			}
			m.turn.activeMsgID = ""
			m.turn.finalized = true
			m.mu.Unlock()
			m.notify()
			m.logEvent(log.Event{Event: log.EventChatTurnCompleted, ThreadID: threadID, MessageID: messageID})
		},

		Error: func(message string) {
			m.mu.Lock()
			m.lastError = message
			m.turn.activeMsgID = ""
			m.turn.errored = true
			m.mu.Unlock()
			m.notify()
		},
	}
}

// findTurnLocked returns the transcript index of the turn with the given
// id, or -1. Caller holds m.mu.
func (m *Machine) findTurnLocked(id string) int {
	for i := range m.transcript {
		if m.transcript[i].ID == id {
			return i
		}
	}
	return -1
}
