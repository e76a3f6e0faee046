// Package api provides the HTTP client for the procurement analysis
// backend. It owns all network I/O: document upload, the analysis event
// stream, review decisions, chat (plain and streaming), and status.
package api

// File is one document to upload.
type File struct {
	Name    string
	Content []byte
}

// AnalyzeResponse is returned by POST /analyze.
type AnalyzeResponse struct {
	ThreadID string `json:"thread_id"`
	Status   string `json:"status"`
}

// ThinkingLog is one progress entry pushed on the analysis stream.
type ThinkingLog struct {
	ID        string `json:"id"`
	Agent     string `json:"agent"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Status    string `json:"status"` // "pending" | "active" | "complete"
}

// Finding is one categorized issue in a verdict.
type Finding struct {
	Category string   `json:"category"`
	Items    []string `json:"items"`
	Severity string   `json:"severity"` // "high" | "medium" | "low"
}

// Verdict is the terminal analysis result.
type Verdict struct {
	Status     string    `json:"status"` // "PASS" | "FAIL"
	Title      string    `json:"title"`
	Confidence float64   `json:"confidence"` // 0-100
	Findings   []Finding `json:"findings"`
}

// ReviewResponse is returned by POST /review.
type ReviewResponse struct {
	Status    string `json:"status"`
	GammaLink string `json:"gamma_link,omitempty"`
}

// ChatResponse is returned by the non-streaming POST /chat.
type ChatResponse struct {
	Response string `json:"response"`
}

// StatusResponse is returned by GET /status/{thread_id}.
type StatusResponse struct {
	ThreadID      string `json:"thread_id"`
	Status        string `json:"status"`
	HasVerdict    bool   `json:"has_verdict"`
	HasGamma      bool   `json:"has_gamma"`
	ThinkingCount int    `json:"thinking_logs_count"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status      string `json:"status"`
	LLMProvider string `json:"llm_provider,omitempty"`
	Model       string `json:"model,omitempty"`
}

// reviewRequest is the body of POST /review.
type reviewRequest struct {
	ThreadID string `json:"thread_id"`
	Action   string `json:"action"` // "generate_gamma" | "chat_only"
}

// chatRequest is the body of POST /chat and POST /chat/stream.
type chatRequest struct {
	ThreadID string `json:"thread_id"`
	Query    string `json:"query"`
}

// Payloads of the named analysis stream events.
type gammaLinkPayload struct {
	Link string `json:"link"`
}

type errorPayload struct {
	Error string `json:"error"`
}

// Payloads of the chat stream events.
type chatStartPayload struct {
	MessageID string `json:"message_id"`
	Timestamp string `json:"timestamp"`
}

type chatDeltaPayload struct {
	MessageID string `json:"message_id"`
	Delta     string `json:"delta"`
}

type chatCompletePayload struct {
	MessageID string `json:"message_id"`
	Response  string `json:"response"`
	Timestamp string `json:"timestamp"`
}
