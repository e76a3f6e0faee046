package sse

import (
	"reflect"
	"testing"
)

func decodeAll(t *testing.T, chunks ...[]byte) []Event {
	t.Helper()
	d := NewDecoder()
	var events []Event
	for _, c := range chunks {
		events = append(events, d.Feed(c)...)
	}
	events = append(events, d.Flush()...)
	return events
}

func TestDecodeSingleFrame(t *testing.T) {
	events := decodeAll(t, []byte("event: thinking_log\ndata: {\"id\":\"1\"}\n\n"))

	want := []Event{{Name: "thinking_log", Data: `{"id":"1"}`}}
	if !reflect.DeepEqual(events, want) {
		t.Errorf("got %+v, want %+v", events, want)
	}
}

func TestDecodeMultiLineData(t *testing.T) {
	events := decodeAll(t, []byte("event: verdict\ndata: line1\ndata: line2\n\n"))

	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Data != "line1\nline2" {
		t.Errorf("data: got %q, want %q", events[0].Data, "line1\nline2")
	}
}

func TestCommentAndKeepaliveFramesIgnored(t *testing.T) {
	input := ": keepalive\n\nevent: complete\ndata: {}\n\nevent: noop\n\n"
	events := decodeAll(t, []byte(input))

	want := []Event{{Name: "complete", Data: "{}"}}
	if !reflect.DeepEqual(events, want) {
		t.Errorf("got %+v, want %+v", events, want)
	}
}

func TestDefaultEventName(t *testing.T) {
	events := decodeAll(t, []byte("data: hello\n\n"))

	if len(events) != 1 || events[0].Name != DefaultEventName {
		t.Errorf("got %+v, want one %q event", events, DefaultEventName)
	}
}

func TestCRLFLineEndings(t *testing.T) {
	events := decodeAll(t, []byte("event: chat_delta\r\ndata: hi\r\n\r\n"))

	want := []Event{{Name: "chat_delta", Data: "hi"}}
	if !reflect.DeepEqual(events, want) {
		t.Errorf("got %+v, want %+v", events, want)
	}
}

func TestFlushDanglingFrame(t *testing.T) {
	d := NewDecoder()
	if got := d.Feed([]byte("event: error\ndata: {\"error\":\"boom\"}")); len(got) != 0 {
		t.Fatalf("partial frame produced events: %+v", got)
	}

	events := d.Flush()
	want := []Event{{Name: "error", Data: `{"error":"boom"}`}}
	if !reflect.DeepEqual(events, want) {
		t.Errorf("flush: got %+v, want %+v", events, want)
	}

	// A second flush is a no-op.
	if got := d.Flush(); len(got) != 0 {
		t.Errorf("second flush produced events: %+v", got)
	}
}

func TestChunkBoundaryInvariance(t *testing.T) {
	// Includes multi-byte UTF-8 ("é", "日本") so splits can land inside an
	// encoded character, and a comment frame between real frames.
	input := []byte("event: chat_start\ndata: {\"message_id\":\"m1\"}\n\n" +
		": ping\n\n" +
		"event: chat_delta\ndata: café 日本\n\n" +
		"event: chat_complete\ndata: done\n\n")

	want := decodeAll(t, input)
	if len(want) != 3 {
		t.Fatalf("baseline: got %d events, want 3", len(want))
	}

	for split := 1; split < len(input); split++ {
		got := decodeAll(t, input[:split], input[split:])
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("split at %d: got %+v, want %+v", split, got, want)
		}
	}

	// Byte-at-a-time delivery.
	d := NewDecoder()
	var got []Event
	for _, b := range input {
		got = append(got, d.Feed([]byte{b})...)
	}
	got = append(got, d.Flush()...)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("byte-at-a-time: got %+v, want %+v", got, want)
	}
}

func TestEventOrderPreserved(t *testing.T) {
	input := []byte("event: a\ndata: 1\n\nevent: b\ndata: 2\n\nevent: c\ndata: 3\n\n")
	events := decodeAll(t, input)

	names := make([]string, len(events))
	for i, ev := range events {
		names[i] = ev.Name
	}
	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("order: got %v, want %v", names, want)
	}
}
