package agentloop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hatchpad/agentcore/modelgw"
)

// scriptedClient returns canned responses in order, then an error if the
// script runs out.
type scriptedClient struct {
	responses []*modelgw.Response
	errAt     int // 1-based call number that fails; 0 means never
	err       error
	calls     int
}

func (c *scriptedClient) Complete(_ context.Context, req modelgw.Request) (*modelgw.Response, error) {
	c.calls++
	if c.errAt > 0 && c.calls == c.errAt {
		return nil, c.err
	}
	if c.calls > len(c.responses) {
		return nil, errors.New("script exhausted")
	}
	resp := c.responses[c.calls-1]
	resp.Model = req.Model
	return resp, nil
}

func textResponse(text string) *modelgw.Response {
	return &modelgw.Response{
		ID:           "resp_test",
		Message:      modelgw.AssistantMessage(text),
		FinishReason: modelgw.FinishReason{Reason: "stop"},
	}
}

func toolResponse(text string, name ToolName, input map[string]string) *modelgw.Response {
	args, _ := json.Marshal(input)
	msg := modelgw.AssistantMessage(text)
	msg.Content = append(msg.Content, modelgw.ToolCallPart("call_1", string(name), args))
	return &modelgw.Response{
		ID:           "resp_test",
		Message:      msg,
		FinishReason: modelgw.FinishReason{Reason: "tool_calls"},
	}
}

func newTestLoop(t *testing.T, client modelgw.Client, maxSteps int) (*Loop, string) {
	t.Helper()
	project, err := NewProjectContext(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	loop := NewLoop(client, NewExecutor(project, ExecutorConfig{}), LoopConfig{
		Model:        "claude-sonnet-4-5",
		SystemPrompt: "You are a coding agent.",
		MaxSteps:     maxSteps,
	}, nil)
	return loop, project.Root
}

func runLoop(t *testing.T, loop *Loop, prompt string) Result {
	t.Helper()
	state := NewConversationState(nil)
	state.Append(NewUserTurn(prompt))
	return loop.Run(context.Background(), state)
}

func TestLoopCompletesAfterOneCallWithoutTools(t *testing.T) {
	client := &scriptedClient{responses: []*modelgw.Response{textResponse("All done.")}}
	loop, _ := newTestLoop(t, client, 10)

	result := runLoop(t, loop, "say hi")

	if result.State != StateCompleted {
		t.Fatalf("expected Completed, got %s", result.State)
	}
	if client.calls != 1 {
		t.Errorf("expected exactly one model invocation, got %d", client.calls)
	}
	if result.Steps != 1 {
		t.Errorf("expected 1 step, got %d", result.Steps)
	}
	if result.Text != "All done." {
		t.Errorf("unexpected text %q", result.Text)
	}
	if result.StepLimitReached {
		t.Error("step limit flag must be false on normal completion")
	}
}

// makeToolScript returns toolSteps responses that each request one tool
// call, followed by one plain-text response.
func makeToolScript(toolSteps int) []*modelgw.Response {
	var responses []*modelgw.Response
	for i := 0; i < toolSteps; i++ {
		responses = append(responses, toolResponse("", ToolListFiles, map[string]string{
			"path": fmt.Sprintf("dir%d", i), // vary the input to avoid the repeat nudge
		}))
	}
	responses = append(responses, textResponse("Finished."))
	return responses
}

func TestLoopCompletesJustUnderStepLimit(t *testing.T) {
	const maxSteps = 5
	client := &scriptedClient{responses: makeToolScript(maxSteps - 1)}
	loop, _ := newTestLoop(t, client, maxSteps)

	result := runLoop(t, loop, "poke around")

	if result.State != StateCompleted {
		t.Fatalf("expected Completed at the final step, got %s", result.State)
	}
	if result.Steps != maxSteps {
		t.Errorf("expected %d steps, got %d", maxSteps, result.Steps)
	}
	if result.StepLimitReached {
		t.Error("flag must be false when the model stops on its own")
	}
}

func TestLoopStopsAtStepLimit(t *testing.T) {
	const maxSteps = 4
	client := &scriptedClient{responses: makeToolScript(maxSteps + 3)}
	loop, _ := newTestLoop(t, client, maxSteps)

	result := runLoop(t, loop, "keep going forever")

	if result.State != StateStepLimitReached {
		t.Fatalf("expected StepLimitReached, got %s", result.State)
	}
	if !result.StepLimitReached {
		t.Error("flag must be true")
	}
	if result.Steps != maxSteps {
		t.Errorf("expected %d steps, got %d", maxSteps, result.Steps)
	}
	last := result.Events[len(result.Events)-1]
	if last.Kind != EventDone || last.Done == nil || !last.Done.StepLimitReached {
		t.Errorf("terminal event must be done with the limit flag, got %+v", last)
	}
}

func TestLoopFailureKeepsPartialText(t *testing.T) {
	client := &scriptedClient{
		responses: []*modelgw.Response{
			toolResponse("Let me look around.", ToolListFiles, map[string]string{}),
		},
		errAt: 2,
		err: &modelgw.NetworkError{GatewayError: modelgw.GatewayError{
			Message: "connection reset",
		}},
	}
	loop, _ := newTestLoop(t, client, 10)

	result := runLoop(t, loop, "do something")

	if result.State != StateFailed {
		t.Fatalf("expected Failed, got %s", result.State)
	}
	if result.Err == nil {
		t.Fatal("failed result must carry the error")
	}
	if result.Text != "Let me look around." {
		t.Errorf("partial text must survive the failure, got %q", result.Text)
	}

	last := result.Events[len(result.Events)-1]
	if last.Kind != EventError || last.Error == nil {
		t.Fatalf("terminal event must be error, got %+v", last)
	}
	if last.Error.Step != 1 {
		t.Errorf("error event should record the completed steps, got %d", last.Error.Step)
	}
}

func TestLoopCancellationFails(t *testing.T) {
	client := &scriptedClient{responses: makeToolScript(10)}
	loop, _ := newTestLoop(t, client, 20)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	state := NewConversationState(nil)
	state.Append(NewUserTurn("task"))
	result := loop.Run(ctx, state)

	if result.State != StateFailed {
		t.Fatalf("cancelled loop must fail, got %s", result.State)
	}
	var abort *modelgw.AbortError
	if !errors.As(result.Err, &abort) {
		t.Errorf("expected AbortError, got %T", result.Err)
	}
}

func TestLoopEventOrdering(t *testing.T) {
	client := &scriptedClient{responses: makeToolScript(2)}
	loop, _ := newTestLoop(t, client, 10)

	result := runLoop(t, loop, "task")

	pendingToolUse := false
	for i, ev := range result.Events {
		switch ev.Kind {
		case EventToolUse:
			if pendingToolUse {
				t.Fatalf("event %d: tool_use before the previous tool_result", i)
			}
			pendingToolUse = true
		case EventToolResult:
			if !pendingToolUse {
				t.Fatalf("event %d: tool_result without a preceding tool_use", i)
			}
			pendingToolUse = false
		}
		if ev.Terminal() && i != len(result.Events)-1 {
			t.Fatalf("terminal event at %d is not last of %d", i, len(result.Events))
		}
	}
	if pendingToolUse {
		t.Error("dangling tool_use without a result")
	}
}

func TestLoopListFilesScenario(t *testing.T) {
	client := &scriptedClient{
		responses: []*modelgw.Response{
			toolResponse("", ToolListFiles, map[string]string{}),
			textResponse("The project contains a.ts and lib/b.ts."),
		},
	}
	loop, root := newTestLoop(t, client, 10)

	if err := os.MkdirAll(filepath.Join(root, "lib"), 0o755); err != nil {
		t.Fatal(err)
	}
	os.WriteFile(filepath.Join(root, "a.ts"), []byte("a"), 0o644)
	os.WriteFile(filepath.Join(root, "lib", "b.ts"), []byte("b"), 0o644)

	result := runLoop(t, loop, "list files in the project")

	if result.State != StateCompleted {
		t.Fatalf("expected Completed, got %s (err: %v)", result.State, result.Err)
	}

	var kinds []EventKind
	for _, ev := range result.Events {
		kinds = append(kinds, ev.Kind)
	}

	var toolUse, toolResult *AgentEvent
	for i := range result.Events {
		switch result.Events[i].Kind {
		case EventToolUse:
			toolUse = &result.Events[i]
		case EventToolResult:
			toolResult = &result.Events[i]
		}
	}
	if toolUse == nil || toolUse.ToolUse.Name != ToolListFiles {
		t.Fatalf("expected one list_files tool_use, events: %v", kinds)
	}
	if toolResult == nil || !toolResult.ToolResult.Success {
		t.Fatalf("expected a successful tool_result, events: %v", kinds)
	}
	for _, want := range []string{"a.ts", "lib/b.ts"} {
		if !strings.Contains(toolResult.ToolResult.Output, want) {
			t.Errorf("tool_result output should contain %q, got %q", want, toolResult.ToolResult.Output)
		}
	}
	last := result.Events[len(result.Events)-1]
	if last.Kind != EventDone {
		t.Errorf("final event must be done, got %s", last.Kind)
	}
}

func TestLoopToolResultPreviewIsBounded(t *testing.T) {
	client := &scriptedClient{
		responses: []*modelgw.Response{
			toolResponse("", ToolReadFile, map[string]string{"path": "big.ts"}),
			textResponse("Read it."),
		},
	}
	loop, root := newTestLoop(t, client, 10)

	big := strings.Repeat("line of code\n", 200)
	os.WriteFile(filepath.Join(root, "big.ts"), []byte(big), 0o644)

	result := runLoop(t, loop, "read the big file")

	var preview string
	for _, ev := range result.Events {
		if ev.Kind == EventToolResult {
			preview = ev.ToolResult.Output
		}
	}
	if len(preview) > PreviewLimit+100 {
		t.Errorf("event preview must be bounded near %d chars, got %d", PreviewLimit, len(preview))
	}
}

func TestConversationCarriesFullToolOutput(t *testing.T) {
	client := &scriptedClient{
		responses: []*modelgw.Response{
			toolResponse("", ToolReadFile, map[string]string{"path": "big.ts"}),
			textResponse("Read it."),
		},
	}
	loop, root := newTestLoop(t, client, 10)

	big := strings.Repeat("line of code\n", 200)
	os.WriteFile(filepath.Join(root, "big.ts"), []byte(big), 0o644)

	state := NewConversationState(nil)
	state.Append(NewUserTurn("read the big file"))
	result := loop.Run(context.Background(), state)
	if result.State != StateCompleted {
		t.Fatalf("expected Completed, got %s", result.State)
	}

	messages := state.Messages()
	found := false
	for _, msg := range messages {
		for _, part := range msg.Content {
			if part.Kind == modelgw.ContentToolResult && part.ToolResult != nil &&
				len(part.ToolResult.Content) >= len(big) {
				found = true
			}
		}
	}
	if !found {
		t.Error("the untruncated tool output must re-enter the model's context")
	}
}

func TestLoopEmitterReceivesEvents(t *testing.T) {
	client := &scriptedClient{responses: []*modelgw.Response{textResponse("hi")}}
	project, err := NewProjectContext(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	emitter := NewEventEmitter(0)
	loop := NewLoop(client, NewExecutor(project, ExecutorConfig{}), LoopConfig{
		Model: "claude-sonnet-4-5", SystemPrompt: "x", MaxSteps: 5,
	}, emitter)

	state := NewConversationState(nil)
	state.Append(NewUserTurn("hi"))
	result := loop.Run(context.Background(), state)
	emitter.Close()

	var live []AgentEvent
	for ev := range emitter.Events() {
		live = append(live, ev)
	}
	if len(live) != len(result.Events) {
		t.Fatalf("live channel saw %d events, result has %d", len(live), len(result.Events))
	}
	for i := range live {
		if live[i].ID != result.Events[i].ID {
			t.Errorf("event %d out of order on the live channel", i)
		}
	}
}
