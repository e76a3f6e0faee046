package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"

	"github.com/provet-dev/provet/internal/sse"
)

// AnalysisHandlers receive the named events of the analysis stream.
// Handlers run on the stream's reader goroutine; nil handlers are skipped.
type AnalysisHandlers struct {
	ThinkingLog  func(ThinkingLog)
	Verdict      func(Verdict)
	ArtifactLink func(string)
	Complete     func()
	Error        func(error)
}

// AnalysisStream is an open GET /stream/{thread_id} connection. Close is
// idempotent, safe to call from inside a handler, and suppresses all
// further event dispatch.
type AnalysisStream struct {
	cancel context.CancelFunc
	closed atomic.Bool
	done   chan struct{}
}

// Close tears the stream down. Safe to call multiple times and after the
// stream has already ended.
func (s *AnalysisStream) Close() {
	if s.closed.CompareAndSwap(false, true) {
		s.cancel()
	}
}

// Done is closed when the reader goroutine has exited.
func (s *AnalysisStream) Done() <-chan struct{} {
	return s.done
}

// dispatch runs fn unless the stream has been closed.
func (s *AnalysisStream) dispatch(fn func()) {
	if s.closed.Load() || fn == nil {
		return
	}
	fn()
}

// OpenAnalysisStream connects to the analysis event stream for threadID and
// begins delivering events to h asynchronously. The returned stream must be
// closed by the caller, including after the complete or error event.
func (c *Client) OpenAnalysisStream(ctx context.Context, threadID string, h AnalysisHandlers) (*AnalysisStream, error) {
	ctx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/stream/"+threadID, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("api: building stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpc.Do(req)
	if err != nil {
		cancel()
		return nil, &TransportError{Message: fmt.Sprintf("opening analysis stream: %v", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		te := errorFromResponse(resp)
		resp.Body.Close()
		cancel()
		return nil, te
	}

	s := &AnalysisStream{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go s.readLoop(resp.Body, h)
	return s, nil
}

// readLoop consumes the response body until a terminal event, a transport
// failure, or Close.
func (s *AnalysisStream) readLoop(body io.ReadCloser, h AnalysisHandlers) {
	defer close(s.done)
	defer body.Close()

	dec := sse.NewDecoder()
	buf := make([]byte, 4096)
	sawTerminal := false

	for {
		n, err := body.Read(buf)
		if n > 0 {
			for _, ev := range dec.Feed(buf[:n]) {
				terminal, evErr := s.handleEvent(ev, h)
				if evErr != nil {
					s.dispatch(func() { callError(h, evErr) })
					return
				}
				if terminal {
					sawTerminal = true
					return
				}
			}
		}
		if err == io.EOF {
			for _, ev := range dec.Flush() {
				if terminal, _ := s.handleEvent(ev, h); terminal {
					sawTerminal = true
				}
			}
			if !sawTerminal {
				s.dispatch(func() {
					callError(h, &StreamError{Message: "connection closed before analysis completed"})
				})
			}
			return
		}
		if err != nil {
			// A deliberate Close cancels the request context; that read
			// failure must not surface as an error.
			s.dispatch(func() {
				callError(h, &TransportError{Message: fmt.Sprintf("reading analysis stream: %v", err)})
			})
			return
		}
	}
}

// handleEvent dispatches one decoded frame. It returns whether the event
// terminates the stream, and a fatal decode error if the payload was
// malformed.
func (s *AnalysisStream) handleEvent(ev sse.Event, h AnalysisHandlers) (terminal bool, err error) {
	switch ev.Name {
	case "thinking_log":
		var tl ThinkingLog
		if err := json.Unmarshal([]byte(ev.Data), &tl); err != nil {
			return false, &DecodeError{Event: ev.Name, Err: err}
		}
		s.dispatch(func() {
			if h.ThinkingLog != nil {
				h.ThinkingLog(tl)
			}
		})

	case "verdict":
		var v Verdict
		if err := json.Unmarshal([]byte(ev.Data), &v); err != nil {
			return false, &DecodeError{Event: ev.Name, Err: err}
		}
		s.dispatch(func() {
			if h.Verdict != nil {
				h.Verdict(v)
			}
		})

	case "gamma_link":
		var gl gammaLinkPayload
		if err := json.Unmarshal([]byte(ev.Data), &gl); err != nil {
			return false, &DecodeError{Event: ev.Name, Err: err}
		}
		s.dispatch(func() {
			if h.ArtifactLink != nil {
				h.ArtifactLink(gl.Link)
			}
		})

	case "complete":
		s.dispatch(func() {
			if h.Complete != nil {
				h.Complete()
			}
		})
		return true, nil

	case "error":
		msg := "analysis failed"
		var ep errorPayload
		if jsonErr := json.Unmarshal([]byte(ev.Data), &ep); jsonErr == nil && ep.Error != "" {
			msg = ep.Error
		}
		s.dispatch(func() { callError(h, &StreamError{Message: msg}) })
		return true, nil
	}

	// Unknown event names are ignored for forward compatibility.
	return false, nil
}

func callError(h AnalysisHandlers, err error) {
	if h.Error != nil {
		h.Error(err)
	}
}

// ChatStreamHandlers receive the named events of a streaming chat turn.
// Handlers run on the calling goroutine; nil handlers are skipped.
type ChatStreamHandlers struct {
	Start    func(messageID, timestamp string)
	Delta    func(messageID, delta string)
	Complete func(messageID, response, timestamp string)
	Error    func(message string)
}

// SendChatTurnStream posts a chat query and streams the response events to
// h until the turn completes, the server pushes an error event, or ctx is
// cancelled. It returns nil on a naturally ended stream, ctx.Err() on
// cancellation, a DecodeError on a malformed payload, and a TransportError
// on network failure or a non-2xx response.
func (c *Client) SendChatTurnStream(ctx context.Context, threadID, query string, h ChatStreamHandlers) error {
	payload, err := json.Marshal(chatRequest{ThreadID: threadID, Query: query})
	if err != nil {
		return fmt.Errorf("api: marshalling chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/stream", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("api: building chat stream request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpc.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &TransportError{Message: fmt.Sprintf("opening chat stream: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errorFromResponse(resp)
	}

	dec := sse.NewDecoder()
	buf := make([]byte, 4096)

	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			for _, ev := range dec.Feed(buf[:n]) {
				terminal, evErr := dispatchChatEvent(ev, h)
				if evErr != nil {
					return evErr
				}
				if terminal {
					return nil
				}
			}
		}
		if err == io.EOF {
			// Flush a dangling partial frame once at end of stream.
			for _, ev := range dec.Flush() {
				if _, evErr := dispatchChatEvent(ev, h); evErr != nil {
					return evErr
				}
			}
			return nil
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return &TransportError{Message: fmt.Sprintf("reading chat stream: %v", err)}
		}
	}
}

// dispatchChatEvent routes one decoded chat frame. chat_complete and error
// are terminal for the turn.
func dispatchChatEvent(ev sse.Event, h ChatStreamHandlers) (terminal bool, err error) {
	switch ev.Name {
	case "chat_start":
		var p chatStartPayload
		if err := json.Unmarshal([]byte(ev.Data), &p); err != nil {
			return false, &DecodeError{Event: ev.Name, Err: err}
		}
		if h.Start != nil {
			h.Start(p.MessageID, p.Timestamp)
		}

	case "chat_delta":
		var p chatDeltaPayload
		if err := json.Unmarshal([]byte(ev.Data), &p); err != nil {
			return false, &DecodeError{Event: ev.Name, Err: err}
		}
		if h.Delta != nil {
			h.Delta(p.MessageID, p.Delta)
		}

	case "chat_complete":
		var p chatCompletePayload
		if err := json.Unmarshal([]byte(ev.Data), &p); err != nil {
			return false, &DecodeError{Event: ev.Name, Err: err}
		}
		if h.Complete != nil {
			h.Complete(p.MessageID, p.Response, p.Timestamp)
		}
		return true, nil

	case "error":
		msg := "chat failed"
		var ep errorPayload
		if jsonErr := json.Unmarshal([]byte(ev.Data), &ep); jsonErr == nil && ep.Error != "" {
			msg = ep.Error
		}
		if h.Error != nil {
			h.Error(msg)
		}
		return true, nil
	}

	return false, nil
}
