// Package sse implements an incremental decoder for server-sent event
// streams. The decoder is a pure function of the bytes fed to it and is
// independent of any network transport: feeding the same bytes split at
// arbitrary chunk boundaries yields the same sequence of events.
package sse

import "strings"

// DefaultEventName is used for frames that carry data but no event line.
const DefaultEventName = "message"

// Event is one decoded frame: an event name plus its data payload.
// Multi-line data is joined with newline.
type Event struct {
	Name string
	Data string
}

// Decoder buffers raw bytes across reads and emits complete frames.
// Frames are terminated by a blank line; lines starting with ':' are
// comments. A frame with no data lines produces no event.
type Decoder struct {
	buf []byte
}

// NewDecoder creates an empty Decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends chunk to the internal buffer and returns every event whose
// frame was completed by it. Splitting is done on raw bytes before any
// string conversion, so a chunk boundary can never fall inside a decoded
// character: only complete frames are converted to text.
func (d *Decoder) Feed(chunk []byte) []Event {
	d.buf = append(d.buf, chunk...)

	var events []Event
	for {
		frame, rest, ok := cutFrame(d.buf)
		if !ok {
			break
		}
		d.buf = rest
		if ev, ok := parseFrame(frame); ok {
			events = append(events, ev)
		}
	}
	return events
}

// Flush processes a dangling partial frame at end of stream, if any.
// Call once when the stream closes; afterwards the decoder is empty.
func (d *Decoder) Flush() []Event {
	if len(d.buf) == 0 {
		return nil
	}
	frame := d.buf
	d.buf = nil
	if ev, ok := parseFrame(frame); ok {
		return []Event{ev}
	}
	return nil
}

// cutFrame finds the first blank line in buf. It returns the frame content
// before it, the remaining bytes after it, and whether a complete frame was
// found. A line consisting of just "\r" also counts as blank.
func cutFrame(buf []byte) (frame, rest []byte, ok bool) {
	lineStart := 0
	for i := 0; i < len(buf); i++ {
		if buf[i] != '\n' {
			continue
		}
		line := buf[lineStart:i]
		if len(line) > 0 && line[len(line)-1] == '\r' {
			line = line[:len(line)-1]
		}
		if len(line) == 0 {
			return buf[:lineStart], buf[i+1:], true
		}
		lineStart = i + 1
	}
	return nil, nil, false
}

// parseFrame parses one frame's lines into an Event. Returns false for
// frames with no data lines (comments and keepalives).
func parseFrame(frame []byte) (Event, bool) {
	name := ""
	var data []string

	for _, line := range strings.Split(string(frame), "\n") {
		line = strings.TrimSuffix(line, "\r")
		switch {
		case line == "" || strings.HasPrefix(line, ":"):
			// Blank tail or comment line.
		case strings.HasPrefix(line, "event:"):
			name = trimFieldValue(line[len("event:"):])
		case strings.HasPrefix(line, "data:"):
			data = append(data, trimFieldValue(line[len("data:"):]))
		}
	}

	if len(data) == 0 {
		return Event{}, false
	}
	if name == "" {
		name = DefaultEventName
	}
	return Event{Name: name, Data: strings.Join(data, "\n")}, true
}

// trimFieldValue strips the single optional space after the field colon.
func trimFieldValue(v string) string {
	return strings.TrimPrefix(v, " ")
}
