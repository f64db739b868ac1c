package agentloop

import (
	"context"
	"strings"

	"github.com/hatchpad/agentcore/modelgw"
)

// LoopState names a phase of the loop's state machine. Completed,
// StepLimitReached, and Failed are terminal.
type LoopState string

const (
	StateInit             LoopState = "init"
	StateRequesting       LoopState = "requesting"
	StateToolDispatch     LoopState = "tool_dispatch"
	StateCompleted        LoopState = "completed"
	StateStepLimitReached LoopState = "step_limit_reached"
	StateFailed           LoopState = "failed"
)

// Terminal reports whether the state ends the loop.
func (s LoopState) Terminal() bool {
	return s == StateCompleted || s == StateStepLimitReached || s == StateFailed
}

// LoopConfig is immutable for the duration of one loop invocation.
type LoopConfig struct {
	Model        modelgw.ModelID
	SystemPrompt string
	MaxSteps     int
	MaxTokens    int
}

// DefaultMaxSteps bounds runaway loops. Exceeding it is a defined outcome,
// not an error.
const DefaultMaxSteps = 25

func (c LoopConfig) withDefaults() LoopConfig {
	if c.MaxSteps <= 0 {
		c.MaxSteps = DefaultMaxSteps
	}
	return c
}

// Result is what one loop invocation returns: the accumulated assistant
// text, the complete ordered event sequence, and why the loop stopped. Err
// is non-nil only when State is Failed, and even then Text carries whatever
// the model produced before the failure.
type Result struct {
	Text             string
	Events           []AgentEvent
	Steps            int
	State            LoopState
	StepLimitReached bool
	Usage            modelgw.Usage
	Err              error
}

const loopNudge = "You appear to be repeating the same tool calls without " +
	"making progress. Step back, re-read the relevant files, and either take " +
	"a different approach or finish with a summary."

// Loop drives one conversation turn: model calls interleaved with tool
// dispatch until a terminal state is reached.
type Loop struct {
	client   modelgw.Client
	executor *Executor
	emitter  *EventEmitter
	config   LoopConfig
}

// NewLoop creates a Loop. The emitter is optional; pass nil when only the
// returned Result's event list is needed.
func NewLoop(client modelgw.Client, executor *Executor, config LoopConfig, emitter *EventEmitter) *Loop {
	return &Loop{
		client:   client,
		executor: executor,
		emitter:  emitter,
		config:   config.withDefaults(),
	}
}

// Run executes the loop over the given conversation state. The state must
// already contain the user's prompt as its final turn. Run always emits
// exactly one terminal event, and the returned event list is the complete
// ordered sequence.
func (l *Loop) Run(ctx context.Context, state *ConversationState) Result {
	var (
		events     []AgentEvent
		textParts  []string
		usage      modelgw.Usage
		steps      int
		loopNudged bool
	)

	emit := func(ev AgentEvent) {
		events = append(events, ev)
		if l.emitter != nil {
			l.emitter.Emit(ev)
		}
	}

	fail := func(err error) Result {
		text := strings.Join(textParts, "\n\n")
		emit(NewErrorEvent(err.Error(), steps))
		return Result{
			Text:   text,
			Events: events,
			Steps:  steps,
			State:  StateFailed,
			Usage:  usage,
			Err:    err,
		}
	}

	for {
		// Requesting: one model invocation with full conversation state.
		if err := ctx.Err(); err != nil {
			return fail(&modelgw.AbortError{GatewayError: modelgw.GatewayError{
				Message: "loop cancelled", Cause: err,
			}})
		}

		req := modelgw.Request{
			Model:     l.config.Model,
			Messages:  append([]modelgw.Message{modelgw.SystemMessage(l.config.SystemPrompt)}, state.Messages()...),
			ToolDefs:  Catalog(),
			MaxTokens: l.config.MaxTokens,
		}

		resp, err := l.client.Complete(ctx, req)
		if err != nil {
			// Transport/model failures are fatal; no retry inside the loop.
			return fail(err)
		}
		usage = usage.Add(resp.Usage)
		steps++

		text := resp.Text()
		if text != "" {
			emit(NewTextDeltaEvent(text))
			textParts = append(textParts, text)
		}

		var calls []ToolCall
		for _, tc := range resp.ToolCalls() {
			calls = append(calls, ParseToolCall(tc))
		}
		state.Append(NewAssistantTurn(text, calls, resp.Usage))

		if len(calls) == 0 {
			fullText := strings.Join(textParts, "\n\n")
			emit(NewDoneEvent(fullText, string(l.config.Model), steps, false))
			return Result{
				Text:   fullText,
				Events: events,
				Steps:  steps,
				State:  StateCompleted,
				Usage:  usage,
			}
		}

		// ToolDispatch: execute sequentially in the order the model emitted
		// them; a later call may depend on an earlier one.
		results := make([]ToolResultExchange, 0, len(calls))
		for _, call := range calls {
			emit(NewToolUseEvent(call))
			result := l.executor.Execute(ctx, call)
			emit(NewToolResultEvent(call.Name, result))
			results = append(results, ToolResultExchange{
				ToolUseID: call.ID,
				Name:      call.Name,
				Result:    result,
			})
		}
		state.Append(NewToolResultsTurn(results))

		if !loopNudged && DetectLoop(state.Turns(), loopDetectionWindow) {
			state.Append(NewUserTurn(loopNudge))
			loopNudged = true
		}

		if steps >= l.config.MaxSteps {
			fullText := strings.Join(textParts, "\n\n")
			emit(NewDoneEvent(fullText, string(l.config.Model), steps, true))
			return Result{
				Text:             fullText,
				Events:           events,
				Steps:            steps,
				State:            StateStepLimitReached,
				StepLimitReached: true,
				Usage:            usage,
			}
		}
	}
}
