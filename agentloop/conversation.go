package agentloop

import (
	"time"

	"github.com/hatchpad/agentcore/modelgw"
)

// TurnKind discriminates between turn types.
type TurnKind string

const (
	TurnUser        TurnKind = "user"
	TurnAssistant   TurnKind = "assistant"
	TurnToolResults TurnKind = "tool_results"
)

// Turn is a single entry in the conversation. Exactly one variant pointer is
// non-nil, matching Kind.
type Turn struct {
	Kind        TurnKind         `json:"kind"`
	Timestamp   time.Time        `json:"timestamp"`
	User        *UserTurn        `json:"user,omitempty"`
	Assistant   *AssistantTurn   `json:"assistant,omitempty"`
	ToolResults *ToolResultsTurn `json:"tool_results,omitempty"`
}

// UserTurn holds user input.
type UserTurn struct {
	Content string `json:"content"`
}

// AssistantTurn holds a model response, including any tool calls it made.
type AssistantTurn struct {
	Content   string        `json:"content"`
	ToolCalls []ToolCall    `json:"tool_calls,omitempty"`
	Usage     modelgw.Usage `json:"usage"`
}

// ToolResultExchange pairs a tool call with its full, untruncated result.
type ToolResultExchange struct {
	ToolUseID string     `json:"tool_use_id"`
	Name      ToolName   `json:"name"`
	Result    ToolResult `json:"result"`
}

// ToolResultsTurn carries the results of every tool call from the preceding
// assistant turn.
type ToolResultsTurn struct {
	Results []ToolResultExchange `json:"results"`
}

// NewUserTurn creates a Turn wrapping user input.
func NewUserTurn(content string) Turn {
	return Turn{Kind: TurnUser, Timestamp: time.Now(), User: &UserTurn{Content: content}}
}

// NewAssistantTurn creates a Turn wrapping a model response.
func NewAssistantTurn(content string, toolCalls []ToolCall, usage modelgw.Usage) Turn {
	return Turn{
		Kind:      TurnAssistant,
		Timestamp: time.Now(),
		Assistant: &AssistantTurn{Content: content, ToolCalls: toolCalls, Usage: usage},
	}
}

// NewToolResultsTurn creates a Turn wrapping tool results.
func NewToolResultsTurn(results []ToolResultExchange) Turn {
	return Turn{
		Kind:        TurnToolResults,
		Timestamp:   time.Now(),
		ToolResults: &ToolResultsTurn{Results: results},
	}
}

// ConversationState is the ordered turn sequence owned by one in-flight loop
// invocation. It grows monotonically during a loop and is never shared
// across concurrent runs.
type ConversationState struct {
	turns []Turn
}

// NewConversationState seeds state from prior history.
func NewConversationState(history []Turn) *ConversationState {
	s := &ConversationState{}
	s.turns = append(s.turns, history...)
	return s
}

// Append adds a turn.
func (s *ConversationState) Append(turn Turn) {
	s.turns = append(s.turns, turn)
}

// Turns returns the turn sequence. Callers must not mutate it.
func (s *ConversationState) Turns() []Turn {
	return s.turns
}

// Len returns the number of turns.
func (s *ConversationState) Len() int {
	return len(s.turns)
}

// Messages converts the turn history into the gateway's message shape. Tool
// results travel untruncated: the model sees the full output even though
// events only carry a preview.
func (s *ConversationState) Messages() []modelgw.Message {
	var messages []modelgw.Message
	for _, turn := range s.turns {
		switch turn.Kind {
		case TurnUser:
			if turn.User != nil {
				messages = append(messages, modelgw.UserMessage(turn.User.Content))
			}
		case TurnAssistant:
			if turn.Assistant != nil {
				msg := modelgw.AssistantMessage(turn.Assistant.Content)
				for _, tc := range turn.Assistant.ToolCalls {
					args := marshalInput(tc.Input)
					msg.Content = append(msg.Content, modelgw.ToolCallPart(tc.ID, string(tc.Name), args))
				}
				messages = append(messages, msg)
			}
		case TurnToolResults:
			if turn.ToolResults != nil {
				for _, ex := range turn.ToolResults.Results {
					messages = append(messages,
						modelgw.ToolResultMessage(ex.ToolUseID, ex.Result.Text(), !ex.Result.Success))
				}
			}
		}
	}
	return messages
}
