package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// TransportError is a non-success HTTP response or network failure.
// Details carries the structured error body when one could be parsed.
type TransportError struct {
	StatusCode int
	Message    string
	Details    string
}

func (e *TransportError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("api: %s: %s", e.Message, e.Details)
	}
	return fmt.Sprintf("api: %s", e.Message)
}

// DecodeError is a malformed stream payload. It is fatal to the current
// stream or turn but never to the process.
type DecodeError struct {
	Event string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("api: decoding %s payload: %v", e.Event, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// StreamError is a server-pushed error event.
type StreamError struct {
	Message string
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("api: stream error: %s", e.Message)
}

// IsCancellation reports whether err stems from a user-initiated abort.
// Deadline expiry is deliberately excluded: per-operation timeouts are the
// client's own policy and surface as TransportError, not cancellation.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled)
}

// errorBody matches the error shapes the backend produces: FastAPI-style
// {"detail": "..."} and stream-style {"error": "..."}.
type errorBody struct {
	Detail string `json:"detail"`
	Error  string `json:"error"`
}

// errorFromResponse builds a TransportError from a non-2xx response,
// preferring a structured body over the status line.
func errorFromResponse(resp *http.Response) *TransportError {
	te := &TransportError{
		StatusCode: resp.StatusCode,
		Message:    resp.Status,
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return te
	}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		switch {
		case eb.Detail != "":
			te.Details = eb.Detail
		case eb.Error != "":
			te.Details = eb.Error
		}
	}
	return te
}
