// Package stub provides a scripted in-process analysis backend. It
// implements the same HTTP surface as the real service and is used by
// the demo command and integration tests.
package stub

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/provet-dev/provet/internal/api"
)

// Server is a scripted analysis backend bound to localhost.
type Server struct {
	listener net.Listener
	server   *http.Server

	// Delay is inserted between streamed events so the demo reads like
	// a live analysis. Zero means no delay.
	Delay time.Duration

	mu      sync.Mutex
	threads map[string]*thread
}

type thread struct {
	documents []string
	logs      []api.ThinkingLog
	verdict   *api.Verdict
	gammaLink string
	status    string // "processing" | "awaiting_review" | "complete"
}

// NewServer creates a stub backend bound to a random port on localhost.
func NewServer() (*Server, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("stub: binding listener: %w", err)
	}

	s := &Server{
		listener: ln,
		threads:  make(map[string]*thread),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/analyze", s.handleAnalyze)
	mux.HandleFunc("/stream/", s.handleStream)
	mux.HandleFunc("/review", s.handleReview)
	mux.HandleFunc("/chat", s.handleChat)
	mux.HandleFunc("/chat/stream", s.handleChatStream)
	mux.HandleFunc("/status/", s.handleStatus)
	mux.HandleFunc("/health", s.handleHealth)

	s.server = &http.Server{Handler: mux}
	return s, nil
}

// Addr returns the address the server is listening on (e.g. "127.0.0.1:12345").
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// URL returns the base URL clients should dial.
func (s *Server) URL() string {
	return "http://" + s.Addr()
}

// Start begins serving HTTP requests. Call in a goroutine.
func (s *Server) Start() error {
	return s.server.Serve(s.listener)
}

// Stop shuts down the server.
func (s *Server) Stop() error {
	return s.server.Close()
}

// --- Handlers ---

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		writeDetail(w, http.StatusBadRequest, "No files provided")
		return
	}

	var names []string
	for _, f := range files {
		if !strings.HasSuffix(strings.ToLower(f.Filename), ".pdf") {
			writeDetail(w, http.StatusBadRequest, "Only PDF files are supported")
			return
		}
		names = append(names, f.Filename)
	}

	id := uuid.New().String()
	s.mu.Lock()
	s.threads[id] = &thread{
		documents: names,
		logs:      scriptedLogs(names),
		status:    "processing",
	}
	s.mu.Unlock()

	writeJSON(w, api.AnalyzeResponse{ThreadID: id, Status: "processing"})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/stream/")
	s.mu.Lock()
	th, ok := s.threads[id]
	s.mu.Unlock()
	if !ok {
		writeDetail(w, http.StatusNotFound, "Analysis session not found")
		return
	}

	fl, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")

	for _, entry := range th.logs {
		if !s.sendEvent(w, fl, r, "thinking_log", entry) {
			return
		}
	}

	verdict := scriptedVerdict(th.documents)
	s.mu.Lock()
	th.verdict = &verdict
	th.status = "awaiting_review"
	s.mu.Unlock()

	if !s.sendEvent(w, fl, r, "verdict", verdict) {
		return
	}
	s.sendEvent(w, fl, r, "complete", map[string]string{"status": "complete"})
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ThreadID string `json:"thread_id"`
		Action   string `json:"action"`
	}
	if !readJSON(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	th, ok := s.threads[req.ThreadID]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Analysis session not found")
		return
	}

	th.status = "complete"
	resp := api.ReviewResponse{Status: "complete"}
	if req.Action == "generate_gamma" {
		th.gammaLink = "https://gamma.app/docs/" + req.ThreadID[:8]
		resp.GammaLink = th.gammaLink
	}
	writeJSON(w, resp)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	th, query, ok := s.chatThread(w, r)
	if !ok {
		return
	}
	writeJSON(w, api.ChatResponse{Response: scriptedAnswer(th, query)})
}

func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	th, query, ok := s.chatThread(w, r)
	if !ok {
		return
	}

	fl, flok := w.(http.Flusher)
	if !flok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")

	msgID := uuid.New().String()
	answer := scriptedAnswer(th, query)

	if !s.sendEvent(w, fl, r, "chat_start", map[string]string{
		"message_id": msgID,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	}) {
		return
	}

	words := strings.SplitAfter(answer, " ")
	for _, word := range words {
		if !s.sendEvent(w, fl, r, "chat_delta", map[string]string{
			"message_id": msgID,
			"delta":      word,
		}) {
			return
		}
	}

	s.sendEvent(w, fl, r, "chat_complete", map[string]string{
		"message_id": msgID,
		"response":   answer,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/status/")
	s.mu.Lock()
	defer s.mu.Unlock()

	th, ok := s.threads[id]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Analysis session not found")
		return
	}

	writeJSON(w, api.StatusResponse{
		ThreadID:      id,
		Status:        th.status,
		HasVerdict:    th.verdict != nil,
		HasGamma:      th.gammaLink != "",
		ThinkingCount: len(th.logs),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, api.HealthResponse{Status: "ok", LLMProvider: "stub", Model: "scripted"})
}

// chatThread validates a chat request and returns its thread.
func (s *Server) chatThread(w http.ResponseWriter, r *http.Request) (*thread, string, bool) {
	var req struct {
		ThreadID string `json:"thread_id"`
		Query    string `json:"query"`
	}
	if !readJSON(w, r, &req) {
		return nil, "", false
	}

	s.mu.Lock()
	th, ok := s.threads[req.ThreadID]
	s.mu.Unlock()
	if !ok {
		writeDetail(w, http.StatusNotFound, "Analysis session not found")
		return nil, "", false
	}
	if th.verdict == nil {
		writeDetail(w, http.StatusBadRequest, "Document not yet analyzed")
		return nil, "", false
	}
	return th, req.Query, true
}

// sendEvent writes one SSE frame and reports whether the client is
// still connected.
func (s *Server) sendEvent(w http.ResponseWriter, fl http.Flusher, r *http.Request, name string, v any) bool {
	if s.Delay > 0 {
		select {
		case <-r.Context().Done():
			return false
		case <-time.After(s.Delay):
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return false
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return false
	}
	fl.Flush()
	return true
}

// --- Script ---

// scriptedLogs produces the agent progress sequence for an upload.
func scriptedLogs(documents []string) []api.ThinkingLog {
	docs := strings.Join(documents, ", ")
	steps := []struct {
		agent   string
		message string
	}{
		{"parser", fmt.Sprintf("Extracting text and tables from %s", docs)},
		{"parser", "Document structure mapped, 14 sections identified"},
		{"compliance", "Checking mandatory clauses against procurement policy"},
		{"compliance", "All required certifications present"},
		{"budget", "Reconciling line items against the stated budget ceiling"},
		{"budget", "Total bid within limits, contingency at 8%"},
		{"risk", "Scanning for delivery and liability risk factors"},
		{"risk", "One medium risk flagged in the penalty schedule"},
		{"compiler", "Compiling findings into the final verdict"},
	}

	logs := make([]api.ThinkingLog, 0, len(steps))
	base := time.Now().UTC()
	for i, step := range steps {
		logs = append(logs, api.ThinkingLog{
			ID:        uuid.New().String(),
			Agent:     step.agent,
			Message:   step.message,
			Timestamp: base.Add(time.Duration(i) * time.Second).Format(time.RFC3339),
			Status:    "complete",
		})
	}
	return logs
}

func scriptedVerdict(documents []string) api.Verdict {
	return api.Verdict{
		Status:     "PASS",
		Title:      fmt.Sprintf("Procurement review of %s", strings.Join(documents, ", ")),
		Confidence: 92,
		Findings: []api.Finding{
			{Category: "Compliance", Items: []string{"All mandatory clauses present", "Certifications verified"}, Severity: "low"},
			{Category: "Budget", Items: []string{"Total within ceiling", "Contingency at 8%"}, Severity: "low"},
			{Category: "Risk", Items: []string{"Penalty schedule allows uncapped daily penalties"}, Severity: "medium"},
		},
	}
}

func scriptedAnswer(th *thread, query string) string {
	q := strings.TrimSpace(query)
	if q == "" {
		q = "your question"
	}
	return fmt.Sprintf(
		"Regarding %q: the %s verdict rests on the compliance and budget checks passing cleanly. "+
			"The one open concern is the penalty schedule, which allows uncapped daily penalties and was flagged as medium risk.",
		q, th.verdict.Status,
	)
}

// --- Helpers ---

func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeDetail(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, fmt.Sprintf("encoding response: %v", err), http.StatusInternalServerError)
	}
}

func writeDetail(w http.ResponseWriter, code int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
