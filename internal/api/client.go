package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// Timeouts holds per-operation deadlines. A zero value means the
// corresponding default applies. Streams are not subject to these:
// they live until closed or cancelled.
type Timeouts struct {
	Upload time.Duration
	Review time.Duration
	Chat   time.Duration
	Status time.Duration
}

// Default per-operation timeouts.
const (
	DefaultUploadTimeout = 60 * time.Second
	DefaultReviewTimeout = 120 * time.Second
	DefaultChatTimeout   = 120 * time.Second
	DefaultStatusTimeout = 10 * time.Second
)

// Client talks to the analysis backend. It holds no session state.
type Client struct {
	baseURL  string
	httpc    *http.Client
	timeouts Timeouts
}

// NewClient creates a Client for the backend at baseURL. Zero-valued
// timeouts fall back to the defaults above.
func NewClient(baseURL string, timeouts Timeouts) *Client {
	if timeouts.Upload == 0 {
		timeouts.Upload = DefaultUploadTimeout
	}
	if timeouts.Review == 0 {
		timeouts.Review = DefaultReviewTimeout
	}
	if timeouts.Chat == 0 {
		timeouts.Chat = DefaultChatTimeout
	}
	if timeouts.Status == 0 {
		timeouts.Status = DefaultStatusTimeout
	}

	return &Client{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		httpc:    &http.Client{},
		timeouts: timeouts,
	}
}

// Upload submits one or more documents to POST /analyze and returns the
// assigned thread id. files must be non-empty.
func (c *Client) Upload(ctx context.Context, files []File) (*AnalyzeResponse, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("api: upload requires at least one file")
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range files {
		part, err := mw.CreateFormFile("file", f.Name)
		if err != nil {
			return nil, fmt.Errorf("api: building multipart body: %w", err)
		}
		if _, err := part.Write(f.Content); err != nil {
			return nil, fmt.Errorf("api: writing multipart body: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("api: finishing multipart body: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Upload)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", &body)
	if err != nil {
		return nil, fmt.Errorf("api: building upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out AnalyzeResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitReview posts the human review decision. wantsArtifact selects
// presentation generation over chat-only continuation.
func (c *Client) SubmitReview(ctx context.Context, threadID string, wantsArtifact bool) (*ReviewResponse, error) {
	action := "chat_only"
	if wantsArtifact {
		action = "generate_gamma"
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Review)
	defer cancel()

	var out ReviewResponse
	if err := c.postJSON(ctx, "/review", reviewRequest{ThreadID: threadID, Action: action}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SendChatTurn sends one chat query and waits for the full response
// (non-streaming variant).
func (c *Client) SendChatTurn(ctx context.Context, threadID, query string) (*ChatResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Chat)
	defer cancel()

	var out ChatResponse
	if err := c.postJSON(ctx, "/chat", chatRequest{ThreadID: threadID, Query: query}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Status fetches the current backend-side state of a session.
func (c *Client) Status(ctx context.Context, threadID string) (*StatusResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Status)
	defer cancel()

	var out StatusResponse
	if err := c.getJSON(ctx, "/status/"+threadID, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health checks backend availability and reports provider info.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Status)
	defer cancel()

	var out HealthResponse
	if err := c.getJSON(ctx, "/health", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// postJSON sends a JSON body and decodes a JSON response into out.
func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("api: marshalling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("api: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

// getJSON fetches path and decodes a JSON response into out.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("api: building request: %w", err)
	}
	return c.do(req, out)
}

// do executes req, converting failures into the error taxonomy: network
// errors and expired per-operation deadlines become a TransportError,
// non-2xx responses become a TransportError with best-effort structured
// detail. User cancellation passes through as context.Canceled so callers
// can tell an abort from a failure.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpc.Do(req)
	if err != nil {
		ctxErr := req.Context().Err()
		switch {
		case errors.Is(ctxErr, context.Canceled):
			return ctxErr
		case errors.Is(ctxErr, context.DeadlineExceeded):
			return &TransportError{Message: fmt.Sprintf("request %s timed out", req.URL.Path)}
		}
		return &TransportError{Message: fmt.Sprintf("request %s failed: %v", req.URL.Path, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errorFromResponse(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &DecodeError{Event: "response", Err: err}
	}
	return nil
}
