package agentloop

import (
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// EventKind identifies the variant carried by an AgentEvent.
type EventKind string

const (
	EventTextDelta  EventKind = "text_delta"
	EventToolUse    EventKind = "tool_use"
	EventToolResult EventKind = "tool_result"
	EventDone       EventKind = "done"
	EventError      EventKind = "error"
)

// TextDeltaEvent carries an incremental piece of assistant text.
type TextDeltaEvent struct {
	Text string `json:"text"`
}

// ToolUseEvent announces a tool invocation before it runs.
type ToolUseEvent struct {
	Name  ToolName          `json:"name"`
	Input map[string]string `json:"input"`
}

// ToolResultEvent reports a tool outcome. Output and Error are previews
// bounded to PreviewLimit characters; the untruncated result is what goes
// back into the model's context.
type ToolResultEvent struct {
	Name    ToolName `json:"name"`
	Success bool     `json:"success"`
	Output  string   `json:"output,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// DoneEvent is the terminal event for Completed and StepLimitReached runs.
type DoneEvent struct {
	FullText         string `json:"full_text"`
	Model            string `json:"model"`
	Steps            int    `json:"steps"`
	StepLimitReached bool   `json:"step_limit_reached"`
}

// ErrorEvent is the terminal event for Failed runs.
type ErrorEvent struct {
	Message string `json:"message"`
	Step    int    `json:"step"`
}

// AgentEvent is a tagged union: exactly one variant pointer is non-nil,
// matching Kind. Events are strictly ordered; a done or error event is
// terminal and nothing follows it.
type AgentEvent struct {
	ID         string           `json:"id"`
	Kind       EventKind        `json:"kind"`
	Timestamp  time.Time        `json:"timestamp"`
	TextDelta  *TextDeltaEvent  `json:"text_delta,omitempty"`
	ToolUse    *ToolUseEvent    `json:"tool_use,omitempty"`
	ToolResult *ToolResultEvent `json:"tool_result,omitempty"`
	Done       *DoneEvent       `json:"done,omitempty"`
	Error      *ErrorEvent      `json:"error,omitempty"`
}

var (
	eventEntropyMu sync.Mutex
	eventEntropy   = rand.New(rand.NewSource(time.Now().UnixNano()))
)

func newEventID(ts time.Time) string {
	eventEntropyMu.Lock()
	defer eventEntropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(ts), eventEntropy).String()
}

func newEvent(kind EventKind) AgentEvent {
	ts := time.Now().UTC()
	return AgentEvent{ID: newEventID(ts), Kind: kind, Timestamp: ts}
}

// NewTextDeltaEvent creates a text_delta event.
func NewTextDeltaEvent(text string) AgentEvent {
	ev := newEvent(EventTextDelta)
	ev.TextDelta = &TextDeltaEvent{Text: text}
	return ev
}

// NewToolUseEvent creates a tool_use event.
func NewToolUseEvent(call ToolCall) AgentEvent {
	ev := newEvent(EventToolUse)
	ev.ToolUse = &ToolUseEvent{Name: call.Name, Input: call.Input}
	return ev
}

// NewToolResultEvent creates a tool_result event with previewed output.
func NewToolResultEvent(name ToolName, result ToolResult) AgentEvent {
	ev := newEvent(EventToolResult)
	ev.ToolResult = &ToolResultEvent{
		Name:    name,
		Success: result.Success,
		Output:  Preview(result.Output, PreviewLimit),
		Error:   Preview(result.Error, PreviewLimit),
	}
	return ev
}

// NewDoneEvent creates the terminal done event.
func NewDoneEvent(fullText, model string, steps int, limitReached bool) AgentEvent {
	ev := newEvent(EventDone)
	ev.Done = &DoneEvent{
		FullText:         fullText,
		Model:            model,
		Steps:            steps,
		StepLimitReached: limitReached,
	}
	return ev
}

// NewErrorEvent creates the terminal error event.
func NewErrorEvent(message string, step int) AgentEvent {
	ev := newEvent(EventError)
	ev.Error = &ErrorEvent{Message: message, Step: step}
	return ev
}

// Terminal reports whether the event closes the stream.
func (e AgentEvent) Terminal() bool {
	return e.Kind == EventDone || e.Kind == EventError
}

// EventEmitter delivers events to the host application via a buffered
// channel. The channel is best-effort live delivery: if the consumer falls
// behind, events are dropped rather than blocking the loop. The Result
// returned by Loop.Run carries the complete ordered sequence.
type EventEmitter struct {
	ch     chan AgentEvent
	closed bool
	mu     sync.Mutex
}

// NewEventEmitter creates an EventEmitter with a buffered channel.
func NewEventEmitter(bufferSize int) *EventEmitter {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &EventEmitter{ch: make(chan AgentEvent, bufferSize)}
}

// Emit sends an event to the channel. If the emitter is closed the event is
// silently dropped.
func (e *EventEmitter) Emit(event AgentEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	select {
	case e.ch <- event:
	default:
		// Channel full; drop rather than block the loop.
	}
}

// Events returns the read-only event channel.
func (e *EventEmitter) Events() <-chan AgentEvent {
	return e.ch
}

// Close closes the event channel. Safe to call multiple times.
func (e *EventEmitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		close(e.ch)
	}
}
