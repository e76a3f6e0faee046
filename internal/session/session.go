// Package session owns the single analysis session: its state machine,
// the progress log, the verdict, and the chat transcript. All mutation
// goes through Machine methods or its registered stream callbacks; the
// presentation layer only ever sees copies via Snapshot.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/provet-dev/provet/internal/api"
	"github.com/provet-dev/provet/internal/log"
)

// State is the session lifecycle state.
type State int

const (
	StateIdle State = iota
	StateUploading
	StateThinking
	StateVerdict
	StateGenerating
	StateComplete
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateUploading:
		return "uploading"
	case StateThinking:
		return "thinking"
	case StateVerdict:
		return "verdict"
	case StateGenerating:
		return "generating"
	case StateComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Validation errors returned before any network call is made.
var (
	ErrNoDocuments   = errors.New("session: no documents to upload")
	ErrSessionActive = errors.New("session: an analysis is already in progress")
	ErrNoSession     = errors.New("session: no active session")
	ErrTurnInFlight  = errors.New("session: a chat turn is already in flight")
	ErrEmptyMessage  = errors.New("session: empty chat message")
)

// Role identifies the author of a chat turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ProgressEntry is one visible unit of agent progress.
type ProgressEntry struct {
	ID        string
	Agent     string
	Message   string
	Timestamp time.Time
	Status    string // "pending" | "active" | "complete"
}

// ChatTurn is one message in the transcript. Assistant turns are keyed by
// the server-assigned message id and grow incrementally as deltas arrive.
type ChatTurn struct {
	ID        string
	Role      Role
	Content   string
	Timestamp time.Time
}

// StreamHandle is the part of an open analysis stream the machine needs.
type StreamHandle interface {
	Close()
}

// Transport is the network surface the machine drives. *api.Client
// satisfies it via WrapClient.
type Transport interface {
	Upload(ctx context.Context, files []api.File) (*api.AnalyzeResponse, error)
	OpenAnalysisStream(ctx context.Context, threadID string, h api.AnalysisHandlers) (StreamHandle, error)
	SubmitReview(ctx context.Context, threadID string, wantsArtifact bool) (*api.ReviewResponse, error)
	SendChatTurn(ctx context.Context, threadID, query string) (*api.ChatResponse, error)
	SendChatTurnStream(ctx context.Context, threadID, query string, h api.ChatStreamHandlers) error
}

// Recorder persists completed analyses for later listing. Optional.
type Recorder interface {
	RecordVerdict(threadID string, documents []string, v api.Verdict) error
	RecordArtifact(threadID, link string) error
}

// clientTransport adapts *api.Client to the Transport interface.
type clientTransport struct {
	c *api.Client
}

// WrapClient wraps an api.Client as a Transport.
func WrapClient(c *api.Client) Transport {
	return clientTransport{c: c}
}

func (t clientTransport) Upload(ctx context.Context, files []api.File) (*api.AnalyzeResponse, error) {
	return t.c.Upload(ctx, files)
}

func (t clientTransport) OpenAnalysisStream(ctx context.Context, threadID string, h api.AnalysisHandlers) (StreamHandle, error) {
	s, err := t.c.OpenAnalysisStream(ctx, threadID, h)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (t clientTransport) SubmitReview(ctx context.Context, threadID string, wantsArtifact bool) (*api.ReviewResponse, error) {
	return t.c.SubmitReview(ctx, threadID, wantsArtifact)
}

func (t clientTransport) SendChatTurn(ctx context.Context, threadID, query string) (*api.ChatResponse, error) {
	return t.c.SendChatTurn(ctx, threadID, query)
}

func (t clientTransport) SendChatTurnStream(ctx context.Context, threadID, query string, h api.ChatStreamHandlers) error {
	return t.c.SendChatTurnStream(ctx, threadID, query, h)
}

// Snapshot is a consistent copy of the session for rendering.
type Snapshot struct {
	State        State
	ThreadID     string
	Documents    []string
	ProgressLog  []ProgressEntry
	Verdict      *api.Verdict
	Transcript   []ChatTurn
	ArtifactLink string
	LastError    string
	ChatBusy     bool
}

// Machine drives one analysis session against a Transport.
type Machine struct {
	mu        sync.Mutex
	transport Transport
	events    *log.Logger // optional
	recorder  Recorder    // optional

	state        State
	threadID     string
	documents    []string
	progressLog  []ProgressEntry
	seenLogIDs   map[string]bool
	verdict      *api.Verdict
	transcript   []ChatTurn
	artifactLink string
	lastError    string

	stream StreamHandle
	turn   turnState

	updates chan struct{}
}

// Option configures a Machine.
type Option func(*Machine)

// WithEventLog attaches a JSONL event logger.
func WithEventLog(l *log.Logger) Option {
	return func(m *Machine) { m.events = l }
}

// WithRecorder attaches a history recorder.
func WithRecorder(r Recorder) Option {
	return func(m *Machine) { m.recorder = r }
}

// NewMachine creates a Machine in the idle state.
func NewMachine(t Transport, opts ...Option) *Machine {
	m := &Machine{
		transport:  t,
		state:      StateIdle,
		seenLogIDs: make(map[string]bool),
		updates:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Updates returns a channel that receives a (coalesced) signal whenever
// the session changes. The presentation layer re-reads Snapshot on each
// signal.
func (m *Machine) Updates() <-chan struct{} {
	return m.updates
}

// notify signals an update without blocking; pending signals coalesce.
func (m *Machine) notify() {
	select {
	case m.updates <- struct{}{}:
	default:
	}
}

// Snapshot returns a copy of the current session state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		State:        m.state,
		ThreadID:     m.threadID,
		ArtifactLink: m.artifactLink,
		LastError:    m.lastError,
		ChatBusy:     m.turn.inFlight,
	}
	snap.Documents = make([]string, len(m.documents))
	copy(snap.Documents, m.documents)
	snap.ProgressLog = make([]ProgressEntry, len(m.progressLog))
	copy(snap.ProgressLog, m.progressLog)
	snap.Transcript = make([]ChatTurn, len(m.transcript))
	copy(snap.Transcript, m.transcript)
	if m.verdict != nil {
		v := *m.verdict
		snap.Verdict = &v
	}
	return snap
}

// UploadDocuments validates files, uploads them, and on success opens the
// analysis stream. The synthetic progress entry appears before any network
// work so the UI reflects the upload immediately.
func (m *Machine) UploadDocuments(ctx context.Context, files []api.File) error {
	if len(files) == 0 {
		return ErrNoDocuments
	}

	m.mu.Lock()
	if m.state != StateIdle {
		m.mu.Unlock()
		return ErrSessionActive
	}
	m.lastError = ""
	m.documents = documentNames(files)
	m.appendProgressLocked(ProgressEntry{
		ID:        uuid.NewString(),
		Agent:     "client",
		Message:   uploadMessage(files),
		Timestamp: time.Now(),
		Status:    "active",
	})
	m.state = StateUploading
	m.mu.Unlock()
	m.notify()

	resp, err := m.transport.Upload(ctx, files)
	if err != nil {
		m.mu.Lock()
		m.state = StateIdle
		m.clearRunLocked()
		if !api.IsCancellation(err) {
			m.lastError = err.Error()
		}
		m.mu.Unlock()
		m.notify()
		return err
	}

	m.mu.Lock()
	m.threadID = resp.ThreadID
	m.state = StateThinking
	m.mu.Unlock()
	m.notify()
	m.logEvent(log.Event{Event: log.EventAnalysisStarted, ThreadID: resp.ThreadID, Documents: documentNames(files)})

	// The stream outlives the upload call's context; its lifetime is owned
	// by the machine and ended via Reset or the terminal events.
	stream, err := m.transport.OpenAnalysisStream(context.Background(), resp.ThreadID, m.analysisHandlers(resp.ThreadID))
	if err != nil {
		m.mu.Lock()
		m.state = StateIdle
		m.clearRunLocked()
		m.lastError = err.Error()
		m.mu.Unlock()
		m.notify()
		return err
	}

	m.mu.Lock()
	m.stream = stream
	m.mu.Unlock()
	return nil
}

// analysisHandlers builds the callbacks registered on the analysis stream.
// Each handler is bound to the thread id it was registered for: a late
// callback from a torn-down stream finds the id changed and drops the
// event instead of mutating a newer session.
func (m *Machine) analysisHandlers(threadID string) api.AnalysisHandlers {
	return api.AnalysisHandlers{
		ThinkingLog: func(tl api.ThinkingLog) {
			m.mu.Lock()
			if m.threadID != threadID || m.seenLogIDs[tl.ID] {
				// Stale stream, or a redelivered id; both are no-ops.
				m.mu.Unlock()
				return
			}
			m.appendProgressLocked(ProgressEntry{
				ID:        tl.ID,
				Agent:     tl.Agent,
				Message:   tl.Message,
				Timestamp: parseTimestamp(tl.Timestamp),
				Status:    tl.Status,
			})
			m.mu.Unlock()
			m.notify()
		},

		Verdict: func(v api.Verdict) {
			m.mu.Lock()
			if m.threadID != threadID || m.verdict != nil {
				m.mu.Unlock()
				return
			}
			m.verdict = &v
			m.state = StateVerdict
			m.transcript = append(m.transcript, ChatTurn{
				ID:        uuid.NewString(),
				Role:      RoleAssistant,
				Content:   verdictIntro(v),
				Timestamp: time.Now(),
			})
			documents := m.documents
			m.mu.Unlock()
			m.notify()
			m.logEvent(log.Event{Event: log.EventVerdictReceived, ThreadID: threadID, Verdict: v.Status, Confidence: v.Confidence})
			if m.recorder != nil {
				_ = m.recorder.RecordVerdict(threadID, documents, v)
			}
		},

		ArtifactLink: func(link string) {
			m.mu.Lock()
			if m.threadID != threadID {
				m.mu.Unlock()
				return
			}
			if m.artifactLink == "" {
				m.artifactLink = link
			}
			m.mu.Unlock()
			m.notify()
			if m.recorder != nil {
				_ = m.recorder.RecordArtifact(threadID, link)
			}
		},

		Complete: func() {
			m.mu.Lock()
			if m.threadID != threadID {
				m.mu.Unlock()
				return
			}
			stream := m.stream
			m.stream = nil
			m.mu.Unlock()
			if stream != nil {
				stream.Close()
			}
		},

		Error: func(err error) {
			m.mu.Lock()
			if m.threadID != threadID {
				m.mu.Unlock()
				return
			}
			m.lastError = err.Error()
			if m.verdict == nil {
				// The run failed before producing a verdict: tear down the
				// per-run state so a retry upload starts a clean session.
				m.state = StateIdle
				m.clearRunLocked()
			}
			// With a verdict in hand the state is kept: losing the stream
			// after the verdict does not invalidate it.
			stream := m.stream
			m.stream = nil
			m.mu.Unlock()
			if stream != nil {
				stream.Close()
			}
			m.notify()
			m.logEvent(log.Event{Event: log.EventStreamError, ThreadID: threadID, Error: err.Error()})
		},
	}
}

// GenerateArtifact requests presentation generation after the verdict.
// On failure the session returns to the verdict state: the verdict itself
// remains valid.
func (m *Machine) GenerateArtifact(ctx context.Context) error {
	m.mu.Lock()
	if m.threadID == "" {
		m.lastError = ErrNoSession.Error()
		m.mu.Unlock()
		m.notify()
		return ErrNoSession
	}
	threadID := m.threadID
	m.lastError = ""
	m.state = StateGenerating
	m.mu.Unlock()
	m.notify()
	m.logEvent(log.Event{Event: log.EventArtifactRequested, ThreadID: threadID})

	resp, err := m.transport.SubmitReview(ctx, threadID, true)
	if err != nil {
		m.mu.Lock()
		m.state = StateVerdict
		if !api.IsCancellation(err) {
			m.lastError = err.Error()
		}
		m.mu.Unlock()
		m.notify()
		return err
	}

	m.mu.Lock()
	if resp.GammaLink != "" {
		m.artifactLink = resp.GammaLink
	}
	link := m.artifactLink
	m.state = StateComplete
	m.mu.Unlock()
	m.notify()
	m.logEvent(log.Event{Event: log.EventArtifactReady, ThreadID: threadID, Link: link})
	if m.recorder != nil && link != "" {
		_ = m.recorder.RecordArtifact(threadID, link)
	}
	return nil
}

// DeclineArtifact continues in chat-only mode. On failure the state is
// unchanged and lastError is set.
func (m *Machine) DeclineArtifact(ctx context.Context) error {
	m.mu.Lock()
	if m.threadID == "" {
		m.lastError = ErrNoSession.Error()
		m.mu.Unlock()
		m.notify()
		return ErrNoSession
	}
	threadID := m.threadID
	m.lastError = ""
	m.mu.Unlock()

	if _, err := m.transport.SubmitReview(ctx, threadID, false); err != nil {
		m.mu.Lock()
		if !api.IsCancellation(err) {
			m.lastError = err.Error()
		}
		m.mu.Unlock()
		m.notify()
		return err
	}

	m.mu.Lock()
	m.state = StateComplete
	m.mu.Unlock()
	m.notify()
	return nil
}

// Reset tears the session down: closes the analysis stream, cancels any
// in-flight chat turn, clears every collection, and returns to idle.
func (m *Machine) Reset() {
	m.mu.Lock()
	stream := m.stream
	cancelTurn := m.turn.cancel
	threadID := m.threadID

	m.stream = nil
	m.turn = turnState{}
	m.state = StateIdle
	m.threadID = ""
	m.documents = nil
	m.progressLog = nil
	m.seenLogIDs = make(map[string]bool)
	m.verdict = nil
	m.transcript = nil
	m.artifactLink = ""
	m.lastError = ""
	m.mu.Unlock()

	if stream != nil {
		stream.Close()
	}
	if cancelTurn != nil {
		cancelTurn()
	}
	m.notify()
	if threadID != "" {
		m.logEvent(log.Event{Event: log.EventSessionReset, ThreadID: threadID})
	}
}

// clearRunLocked drops the state accumulated by a failed run so the next
// upload starts clean. The stored lastError survives. Caller holds m.mu.
func (m *Machine) clearRunLocked() {
	m.threadID = ""
	m.documents = nil
	m.progressLog = nil
	m.seenLogIDs = make(map[string]bool)
	m.transcript = nil
}

// appendProgressLocked appends an entry and marks its id seen.
// Caller holds m.mu.
func (m *Machine) appendProgressLocked(e ProgressEntry) {
	m.seenLogIDs[e.ID] = true
	m.progressLog = append(m.progressLog, e)
}

// logEvent appends to the event log when one is attached. Logging is
// best-effort and never affects session state.
func (m *Machine) logEvent(e log.Event) {
	if m.events == nil {
		return
	}
	_ = m.events.Append(e)
}

// verdictIntro builds the assistant message that introduces the verdict in
// the chat transcript.
func verdictIntro(v api.Verdict) string {
	msg := fmt.Sprintf("Analysis complete: %s at %.0f%% confidence.", v.Status, v.Confidence)

	var categories []string
	for _, f := range v.Findings {
		categories = append(categories, f.Category)
		if len(categories) == 2 {
			break
		}
	}
	switch len(categories) {
	case 1:
		msg += fmt.Sprintf(" Key area reviewed: %s.", categories[0])
	case 2:
		msg += fmt.Sprintf(" Key areas reviewed: %s and %s.", categories[0], categories[1])
	}

	return msg + " Ask me anything about the findings."
}

// uploadMessage describes the synthetic upload progress entry.
func uploadMessage(files []api.File) string {
	if len(files) == 1 {
		return fmt.Sprintf("Uploading %s for analysis", files[0].Name)
	}
	return fmt.Sprintf("Uploading %d documents for analysis", len(files))
}

func documentNames(files []api.File) []string {
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	return names
}

// parseTimestamp parses a wire timestamp, falling back to now. The backend
// emits RFC 3339.
func parseTimestamp(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Now()
}
