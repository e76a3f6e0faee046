// Package log provides structured event logging.
// This file appends JSON events to log.jsonl.
package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Event type constants.
const (
	EventAnalysisStarted   = "analysis_started"
	EventVerdictReceived   = "verdict_received"
	EventArtifactRequested = "artifact_requested"
	EventArtifactReady     = "artifact_ready"
	EventChatTurnCompleted = "chat_turn_completed"
	EventStreamError       = "stream_error"
	EventSessionReset      = "session_reset"
)

// Event represents a single structured event written to the log.
type Event struct {
	Time       time.Time `json:"time"`
	Event      string    `json:"event"`
	ThreadID   string    `json:"thread_id,omitempty"`
	Documents  []string  `json:"documents,omitempty"`
	Agent      string    `json:"agent,omitempty"`
	Verdict    string    `json:"verdict,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
	MessageID  string    `json:"message_id,omitempty"`
	Link       string    `json:"link,omitempty"`
	Error      string    `json:"error,omitempty"`
	DurationMs int64     `json:"duration_ms,omitempty"`
}

// Logger writes append-only JSONL events to a log file.
type Logger struct {
	path string
	mu   sync.Mutex
}

// NewLogger creates a Logger that writes to .provet/log.jsonl inside dir.
// Creates the .provet/ directory if it does not already exist.
// Does not truncate an existing log file.
func NewLogger(dir string) (*Logger, error) {
	provetDir := filepath.Join(dir, ".provet")
	if err := os.MkdirAll(provetDir, 0755); err != nil {
		return nil, fmt.Errorf("create .provet directory: %w", err)
	}

	return &Logger{
		path: filepath.Join(provetDir, "log.jsonl"),
	}, nil
}

// Append writes a single Event as one JSON line to the log file.
// If event.Time is the zero value, it is automatically set to time.Now().UTC().
// The file is opened in append mode, written to, and then closed.
// Thread-safe via mutex.
func (l *Logger) Append(event Event) error {
	if event.Time.IsZero() {
		event.Time = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal log event: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write log event: %w", err)
	}

	return nil
}

// ReadAll reads and parses all events from the log file.
// Returns an empty slice (not an error) if the file does not exist.
func (l *Logger) ReadAll() ([]Event, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Event{}, nil
		}
		return nil, fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var event Event
		if err := json.Unmarshal(line, &event); err != nil {
			return nil, fmt.Errorf("parse log line %d: %w", lineNum, err)
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log file: %w", err)
	}

	return events, nil
}
