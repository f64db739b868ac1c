// Package eventstream serializes agent loop progress for transport. Each
// event is written as one discrete, independently parseable message the
// moment it is produced, in production order, flushed immediately. The
// package offers two wire formats: newline-delimited JSON for chunked HTTP
// responses and server-sent events for EventSource clients. A Broadcaster
// fans one loop's events out to multiple subscribers.
package eventstream

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/hatchpad/agentcore/agentloop"
)

// Encoder writes one message per event, in order, flushing after each.
type Encoder interface {
	Encode(ev agentloop.AgentEvent) error
}

// NDJSONEncoder writes events as newline-delimited JSON. When the
// underlying writer is an http.ResponseWriter with flush support, each
// event is flushed to the client as it is written.
type NDJSONEncoder struct {
	mu      sync.Mutex
	enc     *json.Encoder
	flusher http.Flusher
}

// NewNDJSONEncoder creates an encoder over w. Pass the http.ResponseWriter
// itself so flushing is detected.
func NewNDJSONEncoder(w io.Writer) *NDJSONEncoder {
	e := &NDJSONEncoder{enc: json.NewEncoder(w)}
	if f, ok := w.(http.Flusher); ok {
		e.flusher = f
	}
	return e
}

// Encode writes one event followed by a newline and flushes.
func (e *NDJSONEncoder) Encode(ev agentloop.AgentEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enc.Encode(ev); err != nil {
		return fmt.Errorf("encode event %s: %w", ev.ID, err)
	}
	if e.flusher != nil {
		e.flusher.Flush()
	}
	return nil
}

// SSEEncoder writes events in server-sent-events framing: the event kind as
// the SSE event name, the JSON payload as data, the ULID as the id.
type SSEEncoder struct {
	mu      sync.Mutex
	w       io.Writer
	flusher http.Flusher
}

// NewSSEEncoder creates an SSE encoder over w.
func NewSSEEncoder(w io.Writer) *SSEEncoder {
	e := &SSEEncoder{w: w}
	if f, ok := w.(http.Flusher); ok {
		e.flusher = f
	}
	return e
}

// Encode writes one SSE frame and flushes.
func (e *SSEEncoder) Encode(ev agentloop.AgentEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", ev.ID, err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := fmt.Fprintf(e.w, "id: %s\nevent: %s\ndata: %s\n\n", ev.ID, ev.Kind, payload); err != nil {
		return err
	}
	if e.flusher != nil {
		e.flusher.Flush()
	}
	return nil
}

// Stream drains events into enc until the channel closes or an encode
// fails, returning the first encode error.
func Stream(events <-chan agentloop.AgentEvent, enc Encoder) error {
	for ev := range events {
		if err := enc.Encode(ev); err != nil {
			return err
		}
	}
	return nil
}
