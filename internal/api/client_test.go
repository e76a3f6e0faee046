package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestUpload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/analyze" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parsing multipart: %v", err)
		}
		files := r.MultipartForm.File["file"]
		if len(files) != 2 {
			t.Errorf("file parts: got %d, want 2", len(files))
		}
		json.NewEncoder(w).Encode(AnalyzeResponse{ThreadID: "t1", Status: "processing"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, Timeouts{})
	resp, err := c.Upload(context.Background(), []File{
		{Name: "bid.pdf", Content: []byte("%PDF-1")},
		{Name: "terms.pdf", Content: []byte("%PDF-2")},
	})
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if resp.ThreadID != "t1" {
		t.Errorf("threadID: got %q, want t1", resp.ThreadID)
	}
}

func TestUploadRequiresFiles(t *testing.T) {
	c := NewClient("http://127.0.0.1:0", Timeouts{})
	if _, err := c.Upload(context.Background(), nil); err == nil {
		t.Fatal("expected error for empty file list")
	}
}

func TestUploadStructuredErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"detail": "Only PDF files are supported"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, Timeouts{})
	_, err := c.Upload(context.Background(), []File{{Name: "doc.txt"}})

	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("got %T (%v), want *TransportError", err, err)
	}
	if te.StatusCode != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", te.StatusCode)
	}
	if te.Details != "Only PDF files are supported" {
		t.Errorf("details: got %q, want structured detail", te.Details)
	}
}

func TestUploadStatusLineFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, Timeouts{})
	_, err := c.Upload(context.Background(), []File{{Name: "bid.pdf"}})

	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("got %T, want *TransportError", err)
	}
	if te.Message == "" || te.Details != "" {
		t.Errorf("fallback error: got %+v, want status line only", te)
	}
}

func TestSubmitReviewAction(t *testing.T) {
	cases := []struct {
		wantsArtifact bool
		wantAction    string
	}{
		{true, "generate_gamma"},
		{false, "chat_only"},
	}

	for _, tc := range cases {
		var gotAction string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				ThreadID string `json:"thread_id"`
				Action   string `json:"action"`
			}
			json.NewDecoder(r.Body).Decode(&req)
			gotAction = req.Action
			json.NewEncoder(w).Encode(ReviewResponse{Status: "complete", GammaLink: "https://gamma.app/x"})
		}))

		c := NewClient(srv.URL, Timeouts{})
		resp, err := c.SubmitReview(context.Background(), "t1", tc.wantsArtifact)
		srv.Close()
		if err != nil {
			t.Fatalf("SubmitReview(%v) failed: %v", tc.wantsArtifact, err)
		}
		if gotAction != tc.wantAction {
			t.Errorf("action: got %q, want %q", gotAction, tc.wantAction)
		}
		if resp.GammaLink == "" {
			t.Error("gamma link not decoded")
		}
	}
}

func TestSendChatTurn(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat" {
			t.Errorf("path: got %s, want /chat", r.URL.Path)
		}
		json.NewEncoder(w).Encode(ChatResponse{Response: "answer"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, Timeouts{})
	resp, err := c.SendChatTurn(context.Background(), "t1", "why?")
	if err != nil {
		t.Fatalf("SendChatTurn failed: %v", err)
	}
	if resp.Response != "answer" {
		t.Errorf("response: got %q", resp.Response)
	}
}

func TestStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/status/t1" {
			t.Errorf("path: got %s, want /status/t1", r.URL.Path)
		}
		json.NewEncoder(w).Encode(StatusResponse{ThreadID: "t1", Status: "complete", HasVerdict: true, ThinkingCount: 5})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, Timeouts{})
	resp, err := c.Status(context.Background(), "t1")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if !resp.HasVerdict || resp.ThinkingCount != 5 {
		t.Errorf("status: got %+v", resp)
	}
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(HealthResponse{Status: "ok", LLMProvider: "stub", Model: "scripted"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, Timeouts{})
	resp, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if resp.Status != "ok" || resp.LLMProvider != "stub" {
		t.Errorf("health: got %+v", resp)
	}
}

func TestNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // connection refused from here on

	c := NewClient(srv.URL, Timeouts{})
	_, err := c.Health(context.Background())

	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("got %T (%v), want *TransportError", err, err)
	}
}

func TestUploadDeadlineBecomesTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		// Drain the body so the server notices the client disconnect and
		// cancels the request context; otherwise srv.Close hangs forever.
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := NewClient(srv.URL, Timeouts{Upload: 50 * time.Millisecond})
	_, err := c.Upload(context.Background(), []File{{Name: "bid.pdf", Content: []byte("%PDF")}})

	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("got %T (%v), want *TransportError for expired deadline", err, err)
	}
	if IsCancellation(err) {
		t.Error("expired deadline misreported as cancellation")
	}
}

func TestCancellationPassesThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	c := NewClient(srv.URL, Timeouts{})
	_, err := c.Health(ctx)
	if !IsCancellation(err) {
		t.Fatalf("got %v, want cancellation", err)
	}
}

func TestIsCancellation(t *testing.T) {
	if !IsCancellation(context.Canceled) {
		t.Error("context.Canceled not detected")
	}
	if IsCancellation(context.DeadlineExceeded) {
		t.Error("deadline expiry is a timeout, not a user abort")
	}
	if IsCancellation(&TransportError{Message: "context canceled"}) {
		t.Error("cancellation must be detected by sentinel, not message text")
	}
}
