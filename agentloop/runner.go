package agentloop

import (
	"context"

	"github.com/hatchpad/agentcore/modelgw"
)

// Runner is the surface a serving collaborator calls once per user message.
// It wires model selection, prompt construction, and the loop together. The
// caller persists the user prompt before SendMessage and the final
// assistant text after the returned channel closes.
type Runner struct {
	client   modelgw.Client
	selector *modelgw.Selector
	project  ProjectContext
	execCfg  ExecutorConfig
	maxSteps int
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithExecutorConfig overrides the tool execution limits.
func WithExecutorConfig(cfg ExecutorConfig) RunnerOption {
	return func(r *Runner) { r.execCfg = cfg }
}

// WithMaxSteps overrides the loop step budget.
func WithMaxSteps(n int) RunnerOption {
	return func(r *Runner) { r.maxSteps = n }
}

// NewRunner creates a Runner for one project.
func NewRunner(client modelgw.Client, selector *modelgw.Selector, project ProjectContext, opts ...RunnerOption) *Runner {
	r := &Runner{
		client:   client,
		selector: selector,
		project:  project,
		execCfg:  DefaultExecutorConfig(),
		maxSteps: DefaultMaxSteps,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SendMessageInput is one conversation turn submission.
type SendMessageInput struct {
	// History is the prior conversation, oldest first.
	History []Turn
	// Prompt is the new user message.
	Prompt string
	// ModelOverride, when set, wins over tier selection.
	ModelOverride modelgw.ModelID
	// Origin records how the run was initiated; chat-initiated agent runs
	// are served by the mid tier.
	Origin modelgw.Origin
	// Editor context injected into the system prompt, size-bounded.
	ActivePath    string
	ActiveContent string
}

// SendMessage starts one loop invocation and returns the live event channel
// plus a function that blocks until the loop finishes and yields the
// Result. The channel closes after the terminal event.
func (r *Runner) SendMessage(ctx context.Context, in SendMessageInput) (<-chan AgentEvent, func() Result) {
	model := r.selector.PickModel(modelgw.TaskAgent, in.Origin, in.ModelOverride)

	prompt := BuildSystemPrompt(PromptContext{
		FileTree:      CollectFileTree(r.project, maxTreeEntries),
		ActivePath:    in.ActivePath,
		ActiveContent: in.ActiveContent,
	})

	emitter := NewEventEmitter(0)
	loop := NewLoop(r.client, NewExecutor(r.project, r.execCfg), LoopConfig{
		Model:        model,
		SystemPrompt: prompt,
		MaxSteps:     r.maxSteps,
	}, emitter)

	state := NewConversationState(in.History)
	state.Append(NewUserTurn(in.Prompt))

	done := make(chan Result, 1)
	go func() {
		defer emitter.Close()
		done <- loop.Run(ctx, state)
	}()

	wait := func() Result { return <-done }
	return emitter.Events(), wait
}
