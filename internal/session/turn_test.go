package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/provet-dev/provet/internal/api"
)

// lastAssistantTurn returns the most recent assistant turn, if any.
func lastAssistantTurn(snap Snapshot) (ChatTurn, bool) {
	for i := len(snap.Transcript) - 1; i >= 0; i-- {
		if snap.Transcript[i].Role == RoleAssistant {
			return snap.Transcript[i], true
		}
	}
	return ChatTurn{}, false
}

func TestChatStreamingHappyPath(t *testing.T) {
	m, ft := newTestMachine(t)
	uploadOne(t, m)

	ts := "2026-08-30T10:00:00Z"
	ft.chatScript = func(_ context.Context, h api.ChatStreamHandlers) error {
		h.Start("m1", ts)
		h.Delta("m1", "Be")
		h.Delta("m1", "cause")
		h.Complete("m1", "Because of X", ts)
		return nil
	}

	if err := m.SendChatMessage(context.Background(), "why?"); err != nil {
		t.Fatalf("SendChatMessage failed: %v", err)
	}

	snap := m.Snapshot()
	if snap.LastError != "" {
		t.Errorf("lastError: got %q, want empty", snap.LastError)
	}
	turn, ok := lastAssistantTurn(snap)
	if !ok {
		t.Fatal("no assistant turn in transcript")
	}
	// The final text is canonical, not the delta concatenation.
	if turn.Content != "Because of X" {
		t.Errorf("content: got %q, want %q", turn.Content, "Because of X")
	}
	want, _ := time.Parse(time.RFC3339, ts)
	if !turn.Timestamp.Equal(want) {
		t.Errorf("timestamp: got %v, want %v", turn.Timestamp, want)
	}
	if snap.ChatBusy {
		t.Error("turn still marked in flight after completion")
	}
}

func TestUserTurnAppendedBeforeNetwork(t *testing.T) {
	m, ft := newTestMachine(t)
	uploadOne(t, m)

	ft.chatScript = func(_ context.Context, _ api.ChatStreamHandlers) error {
		// By the time the transport runs, the user turn must be visible.
		snap := m.Snapshot()
		if len(snap.Transcript) == 0 || snap.Transcript[len(snap.Transcript)-1].Role != RoleUser {
			t.Error("user turn not appended before transport call")
		}
		return nil
	}

	_ = m.SendChatMessage(context.Background(), "hello")
}

func TestChatRequiresSession(t *testing.T) {
	m, _ := newTestMachine(t)

	if err := m.SendChatMessage(context.Background(), "hi"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("got %v, want ErrNoSession", err)
	}
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	m, _ := newTestMachine(t)
	uploadOne(t, m)

	if err := m.SendChatMessage(context.Background(), "   "); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("got %v, want ErrEmptyMessage", err)
	}
}

func TestAtMostOneTurnInFlight(t *testing.T) {
	m, ft := newTestMachine(t)
	uploadOne(t, m)

	release := make(chan struct{})
	started := make(chan struct{})
	ft.chatScript = func(_ context.Context, h api.ChatStreamHandlers) error {
		h.Start("m1", "")
		close(started)
		<-release
		h.Complete("m1", "done", "")
		return nil
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- m.SendChatMessage(context.Background(), "first")
	}()
	<-started

	if err := m.SendChatMessage(context.Background(), "second"); !errors.Is(err, ErrTurnInFlight) {
		t.Fatalf("concurrent send: got %v, want ErrTurnInFlight", err)
	}

	close(release)
	if err := <-errCh; err != nil {
		t.Fatalf("first turn failed: %v", err)
	}
}

func TestStaleDeltaRejection(t *testing.T) {
	m, ft := newTestMachine(t)
	uploadOne(t, m)

	ft.chatScript = func(ctx context.Context, h api.ChatStreamHandlers) error {
		h.Start("m1", "")
		// Turn is cancelled after chat_start; the active id is cleared.
		m.CancelChat()
		h.Delta("m1", "late delta")
		return ctx.Err()
	}

	_ = m.SendChatMessage(context.Background(), "why?")

	snap := m.Snapshot()
	if _, ok := lastAssistantTurn(snap); ok {
		t.Error("late delta created a transcript entry after cancellation")
	}
	if snap.LastError != "" {
		t.Errorf("cancellation surfaced as error: %q", snap.LastError)
	}
}

func TestEmptyFirstDeltaCreatesNoBubble(t *testing.T) {
	m, ft := newTestMachine(t)
	uploadOne(t, m)

	ft.chatScript = func(_ context.Context, h api.ChatStreamHandlers) error {
		h.Start("m1", "")
		h.Delta("m1", "")
		h.Delta("m1", "text")
		h.Complete("m1", "text", "")
		return nil
	}

	if err := m.SendChatMessage(context.Background(), "q"); err != nil {
		t.Fatalf("SendChatMessage failed: %v", err)
	}

	snap := m.Snapshot()
	assistant := 0
	for _, turn := range snap.Transcript {
		if turn.Role == RoleAssistant {
			assistant++
		}
	}
	if assistant != 1 {
		t.Errorf("assistant turns: got %d, want 1", assistant)
	}
}

func TestServerErrorEventSurfaces(t *testing.T) {
	m, ft := newTestMachine(t)
	uploadOne(t, m)

	ft.chatScript = func(_ context.Context, h api.ChatStreamHandlers) error {
		h.Start("m1", "")
		h.Error("model overloaded")
		return nil
	}

	if err := m.SendChatMessage(context.Background(), "q"); err != nil {
		t.Fatalf("SendChatMessage returned transport error for in-band event: %v", err)
	}

	snap := m.Snapshot()
	if snap.LastError != "model overloaded" {
		t.Errorf("lastError: got %q, want %q", snap.LastError, "model overloaded")
	}
	if _, ok := lastAssistantTurn(snap); ok {
		t.Error("errored turn also produced a finalized entry")
	}
}

func TestStreamEndWithoutTerminalSetsError(t *testing.T) {
	m, ft := newTestMachine(t)
	uploadOne(t, m)

	ft.chatScript = func(_ context.Context, h api.ChatStreamHandlers) error {
		h.Start("m1", "")
		h.Delta("m1", "partial")
		return nil // connection closed with no chat_complete or error
	}

	_ = m.SendChatMessage(context.Background(), "q")

	snap := m.Snapshot()
	if snap.LastError == "" {
		t.Error("turn ended with neither a finalized entry nor an error")
	}
}

func TestTransportErrorSurfaces(t *testing.T) {
	m, ft := newTestMachine(t)
	uploadOne(t, m)

	ft.chatScript = func(_ context.Context, _ api.ChatStreamHandlers) error {
		return &api.TransportError{Message: "connection refused"}
	}

	if err := m.SendChatMessage(context.Background(), "q"); err == nil {
		t.Fatal("expected transport error")
	}
	if m.Snapshot().LastError == "" {
		t.Error("lastError not set on transport failure")
	}
}

func TestCompleteWithoutDeltasCreatesEntry(t *testing.T) {
	m, ft := newTestMachine(t)
	uploadOne(t, m)

	ft.chatScript = func(_ context.Context, h api.ChatStreamHandlers) error {
		h.Start("m1", "")
		h.Complete("m1", "full answer", "2026-08-30T10:00:00Z")
		return nil
	}

	if err := m.SendChatMessage(context.Background(), "q"); err != nil {
		t.Fatalf("SendChatMessage failed: %v", err)
	}

	turn, ok := lastAssistantTurn(m.Snapshot())
	if !ok || turn.Content != "full answer" {
		t.Errorf("got %+v, want finalized entry with full answer", turn)
	}
}

func TestPlainChatFallback(t *testing.T) {
	m, ft := newTestMachine(t)
	uploadOne(t, m)
	ft.chatResp = &api.ChatResponse{Response: "plain answer"}

	if err := m.SendChatMessagePlain(context.Background(), "q"); err != nil {
		t.Fatalf("SendChatMessagePlain failed: %v", err)
	}

	turn, ok := lastAssistantTurn(m.Snapshot())
	if !ok || turn.Content != "plain answer" {
		t.Errorf("got %+v, want plain answer entry", turn)
	}
}

func TestResetCancelsInFlightTurn(t *testing.T) {
	m, ft := newTestMachine(t)
	uploadOne(t, m)

	started := make(chan struct{})
	ft.chatScript = func(ctx context.Context, h api.ChatStreamHandlers) error {
		h.Start("m1", "")
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}

	done := make(chan error, 1)
	go func() {
		done <- m.SendChatMessage(context.Background(), "q")
	}()
	<-started

	m.Reset()

	err := <-done
	if !api.IsCancellation(err) {
		t.Fatalf("got %v, want cancellation", err)
	}
	if got := m.Snapshot().LastError; got != "" {
		t.Errorf("reset cancellation surfaced as error: %q", got)
	}
}
