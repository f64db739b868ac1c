// Package agentloop implements the bounded tool-use loop that lets a model
// work on a project autonomously: it invokes the model, dispatches the tool
// calls the model requests, feeds results back, and terminates on
// completion, step-limit exhaustion, or a transport failure.
//
// The loop is a small state machine:
//
//	Init -> Requesting -> (ToolDispatch <-> Requesting) ->
//	        Completed | StepLimitReached | Failed
//
// Each step is one model invocation plus the sequential execution of every
// tool call in that response. Tool failures are values fed back into the
// conversation so the model can correct itself; only model/transport errors
// terminate the loop.
//
// Progress is reported as an ordered sequence of AgentEvent values, both on
// a live channel (EventEmitter) and in the returned Result. One loop
// instance serves one conversation turn; independent conversations run
// independent loops with no shared state beyond the filesystem, which the
// sandbox guard protects.
package agentloop
