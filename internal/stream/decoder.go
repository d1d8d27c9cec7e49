// Package stream decodes the newline-delimited progress records a child
// agent process writes to its standard output.
package stream

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
)

// EventType represents the type of a decoded progress event.
type EventType string

const (
	// EventText is an incremental text fragment.
	EventText EventType = "text"
	// EventTool marks the start of a tool invocation.
	EventTool EventType = "tool"
	// EventDone is the end-of-run marker carrying an exit status.
	EventDone EventType = "done"
)

// Event is one decoded progress record.
type Event struct {
	// Type discriminates the payload fields below.
	Type EventType
	// Delta is the text fragment for EventText.
	Delta string
	// Tool is the tool name for EventTool.
	Tool string
	// ExitStatus is the child's reported exit status for EventDone.
	ExitStatus int
}

// record mirrors the wire shape of one output line.
type record struct {
	Type  string `json:"type"`
	Delta string `json:"delta"`
	Name  string `json:"name"`
	Exit  int    `json:"exit"`
}

// parseLine attempts to decode one complete line as a progress record.
// Lines that are not valid records are reported as not ok; the stream may
// legitimately interleave plain diagnostic text with structured records.
func parseLine(line []byte) (Event, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return Event{}, false
	}

	var rec record
	if err := json.Unmarshal(line, &rec); err != nil {
		return Event{}, false
	}

	switch EventType(rec.Type) {
	case EventText:
		return Event{Type: EventText, Delta: rec.Delta}, true
	case EventTool:
		if rec.Name == "" {
			return Event{}, false
		}
		return Event{Type: EventTool, Tool: rec.Name}, true
	case EventDone:
		return Event{Type: EventDone, ExitStatus: rec.Exit}, true
	default:
		return Event{}, false
	}
}

// Decoder reassembles progress records from arbitrary-sized output chunks.
// It keeps exactly one pending-partial-line buffer, so the emitted event
// sequence is identical regardless of how the underlying byte stream was
// split into chunks.
type Decoder struct {
	emit func(Event)
	buf  []byte
}

// NewDecoder creates a Decoder that delivers each decoded event to emit,
// in exactly the order the source lines appeared.
func NewDecoder(emit func(Event)) *Decoder {
	return &Decoder{emit: emit}
}

// Feed appends a chunk to the pending buffer and emits every complete
// line's event. The trailing element after the final newline, possibly an
// incomplete line, is retained as the new buffer.
func (d *Decoder) Feed(chunk []byte) {
	d.buf = append(d.buf, chunk...)

	for {
		i := bytes.IndexByte(d.buf, '\n')
		if i < 0 {
			return
		}
		line := d.buf[:i]
		d.buf = d.buf[i+1:]

		if ev, ok := parseLine(line); ok {
			d.emit(ev)
		}
	}
}

// Close gives the buffered remainder one final parse attempt and drops it.
// Call it exactly once, when the stream has ended.
func (d *Decoder) Close() {
	if ev, ok := parseLine(d.buf); ok {
		d.emit(ev)
	}
	d.buf = nil
}

// Decode reads r to EOF, delivering decoded events to emit in stream
// order. It is the reader-driven form of Decoder used against a live
// child's stdout pipe.
func Decode(r io.Reader, emit func(Event)) error {
	d := NewDecoder(emit)

	reader := bufio.NewReaderSize(r, 64*1024)
	buf := make([]byte, 32*1024)
	for {
		n, err := reader.Read(buf)
		if n > 0 {
			d.Feed(buf[:n])
		}
		if err != nil {
			d.Close()
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}
