package eventstream

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hatchpad/agentcore/agentloop"
)

func sampleEvents() []agentloop.AgentEvent {
	call := agentloop.ToolCall{
		ID:    "call_1",
		Name:  agentloop.ToolListFiles,
		Input: map[string]string{"path": "."},
	}
	return []agentloop.AgentEvent{
		agentloop.NewTextDeltaEvent("Looking at the project."),
		agentloop.NewToolUseEvent(call),
		agentloop.NewToolResultEvent(agentloop.ToolListFiles, agentloop.ToolResult{
			Success: true, Output: "a.ts\nlib/\nlib/b.ts",
		}),
		agentloop.NewDoneEvent("Done.", "claude-sonnet-4-5", 2, false),
	}
}

func TestNDJSONOneParseableLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	enc := NewNDJSONEncoder(&buf)

	events := sampleEvents()
	for _, ev := range events {
		require.NoError(t, enc.Encode(ev))
	}

	scanner := bufio.NewScanner(&buf)
	var decoded []agentloop.AgentEvent
	for scanner.Scan() {
		var ev agentloop.AgentEvent
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &ev), "each line must parse on its own")
		decoded = append(decoded, ev)
	}

	require.Len(t, decoded, len(events))
	for i := range events {
		assert.Equal(t, events[i].ID, decoded[i].ID, "order must match production order")
		assert.Equal(t, events[i].Kind, decoded[i].Kind)
	}
	assert.Equal(t, "Looking at the project.", decoded[0].TextDelta.Text)
	assert.True(t, decoded[3].Done != nil && decoded[3].Done.Steps == 2)
}

func TestSSEFraming(t *testing.T) {
	var buf bytes.Buffer
	enc := NewSSEEncoder(&buf)

	ev := agentloop.NewTextDeltaEvent("hello")
	require.NoError(t, enc.Encode(ev))

	out := buf.String()
	assert.Contains(t, out, "id: "+ev.ID+"\n")
	assert.Contains(t, out, "event: text_delta\n")
	assert.Contains(t, out, "data: {")
	assert.True(t, strings.HasSuffix(out, "\n\n"), "frames end with a blank line")
}

func TestStreamDrainsChannel(t *testing.T) {
	events := sampleEvents()
	ch := make(chan agentloop.AgentEvent, len(events))
	for _, ev := range events {
		ch <- ev
	}
	close(ch)

	var buf bytes.Buffer
	require.NoError(t, Stream(ch, NewNDJSONEncoder(&buf)))
	assert.Equal(t, len(events), strings.Count(buf.String(), "\n"))
}
