package modelgw

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/teilomillet/gollm"
)

// Client is the single model invocation point the agent loop depends on.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// GollmClient backs Client with a gollm.LLM instance, translating between
// the gateway's unified types and gollm's prompt API.
type GollmClient struct {
	provider string
	llm      gollm.LLM
}

// NewGollmClient creates a client for the given provider. If apiKey is
// empty, gollm reads it from the provider's environment variable.
func NewGollmClient(provider, apiKey string, defaultModel ModelID, maxTokens int) (*GollmClient, error) {
	if maxTokens <= 0 {
		maxTokens = 8192
	}
	opts := []gollm.ConfigOption{
		gollm.SetProvider(provider),
		gollm.SetModel(string(defaultModel)),
		gollm.SetMaxTokens(maxTokens),
		gollm.SetMaxRetries(0), // retries belong to the collaborator, not the transport
		gollm.SetLogLevel(gollm.LogLevelWarn),
	}
	if apiKey != "" {
		opts = append(opts, gollm.SetAPIKey(apiKey))
	}

	llm, err := gollm.NewLLM(opts...)
	if err != nil {
		return nil, &ConfigurationError{GatewayError: GatewayError{
			Message: fmt.Sprintf("create %s client", provider), Cause: err,
		}}
	}
	return &GollmClient{provider: provider, llm: llm}, nil
}

// NewGollmClientFromLLM wraps an existing gollm.LLM instance.
func NewGollmClientFromLLM(provider string, llm gollm.LLM) *GollmClient {
	return &GollmClient{provider: provider, llm: llm}
}

// Provider returns the provider identifier.
func (c *GollmClient) Provider() string { return c.provider }

// Complete sends a blocking request and returns the full response.
func (c *GollmClient) Complete(ctx context.Context, req Request) (*Response, error) {
	prompt := c.translateRequest(req)

	if req.Model != "" {
		c.llm.SetOption("model", string(req.Model))
	}
	if req.MaxTokens > 0 {
		c.llm.SetOption("max_tokens", req.MaxTokens)
	}

	text, err := c.llm.Generate(ctx, prompt)
	if err != nil {
		return nil, c.translateError(err)
	}

	return c.buildResponse(req, text), nil
}

// translateRequest converts a unified Request into a gollm Prompt.
func (c *GollmClient) translateRequest(req Request) *gollm.Prompt {
	var systemPrompt string
	var userParts []string

	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			systemPrompt += msg.TextContent() + "\n"
		case RoleUser:
			userParts = append(userParts, msg.TextContent())
		case RoleAssistant:
			text := msg.TextContent()
			if text != "" {
				userParts = append(userParts, "[Assistant]: "+text)
			}
			for _, part := range msg.Content {
				if part.Kind == ContentToolCall && part.ToolCall != nil {
					userParts = append(userParts, fmt.Sprintf("[Tool Call] %s(%s)", part.ToolCall.Name, string(part.ToolCall.Arguments)))
				}
			}
		case RoleTool:
			for _, part := range msg.Content {
				if part.Kind == ContentToolResult && part.ToolResult != nil {
					prefix := "[Tool Result]"
					if part.ToolResult.IsError {
						prefix = "[Tool Error]"
					}
					userParts = append(userParts, prefix+": "+part.ToolResult.Content)
				}
			}
		}
	}

	promptText := strings.Join(userParts, "\n")
	if promptText == "" {
		promptText = "Hello"
	}

	promptOpts := []gollm.PromptOption{}
	if systemPrompt != "" {
		promptOpts = append(promptOpts, gollm.WithSystemPrompt(strings.TrimSpace(systemPrompt), gollm.CacheTypeEphemeral))
	}
	if req.MaxTokens > 0 {
		promptOpts = append(promptOpts, gollm.WithMaxLength(req.MaxTokens))
	}

	if len(req.ToolDefs) > 0 {
		tools := make([]gollm.Tool, 0, len(req.ToolDefs))
		for _, t := range req.ToolDefs {
			tools = append(tools, gollm.Tool{
				Type: "function",
				Function: gollm.Function{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  t.Parameters,
				},
			})
		}
		promptOpts = append(promptOpts, gollm.WithTools(tools))
		promptOpts = append(promptOpts, gollm.WithToolChoice("auto"))
	}

	return gollm.NewPrompt(promptText, promptOpts...)
}

// buildResponse constructs a unified Response from the generated text.
func (c *GollmClient) buildResponse(req Request, text string) *Response {
	var contentParts []ContentPart
	toolCalls := parseToolCalls(text)

	for i := range toolCalls {
		contentParts = append(contentParts, ContentPart{
			Kind:     ContentToolCall,
			ToolCall: &toolCalls[i],
		})
	}

	cleanedText := removeToolCallJSON(text, toolCalls)
	if cleanedText != "" {
		contentParts = append([]ContentPart{TextPart(cleanedText)}, contentParts...)
	}
	if len(contentParts) == 0 {
		contentParts = []ContentPart{TextPart(text)}
	}

	finishReason := FinishReason{Reason: "stop", Raw: "stop"}
	if len(toolCalls) > 0 {
		finishReason = FinishReason{Reason: "tool_calls", Raw: "tool_calls"}
	}

	return &Response{
		ID:    "resp_" + uuid.New().String()[:8],
		Model: req.Model,
		Message: Message{
			Role:    RoleAssistant,
			Content: contentParts,
		},
		FinishReason: finishReason,
		Usage: Usage{
			// gollm does not expose detailed usage; estimate from text size.
			InputTokens:  estimateTokens(req),
			OutputTokens: len(text) / 4,
			TotalTokens:  estimateTokens(req) + len(text)/4,
		},
	}
}

// parseToolCalls extracts tool calls embedded as JSON in the response text.
func parseToolCalls(text string) []ToolCallData {
	start := strings.Index(text, `{"tool_calls"`)
	if start == -1 {
		start = strings.Index(text, `[{"name"`)
	}
	if start == -1 {
		return nil
	}

	var rawCalls []struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}

	var calls []ToolCallData
	if err := json.Unmarshal([]byte(text[start:]), &rawCalls); err == nil {
		for _, rc := range rawCalls {
			calls = append(calls, ToolCallData{
				ID:        "call_" + uuid.New().String()[:8],
				Name:      rc.Name,
				Arguments: rc.Arguments,
			})
		}
	}
	return calls
}

// removeToolCallJSON strips parsed tool call JSON from the text.
func removeToolCallJSON(text string, calls []ToolCallData) string {
	if len(calls) == 0 {
		return text
	}
	result := text
	for _, pattern := range []string{`{"tool_calls"`, `[{"name"`} {
		if idx := strings.Index(result, pattern); idx != -1 {
			result = strings.TrimSpace(result[:idx])
		}
	}
	return result
}

// translateError converts a gollm error into the gateway error hierarchy.
func (c *GollmClient) translateError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	msgLower := strings.ToLower(msg)

	switch {
	case strings.Contains(msgLower, "401") || strings.Contains(msgLower, "unauthorized") || strings.Contains(msgLower, "invalid api key"):
		return &AuthenticationError{ProviderError: ProviderError{
			GatewayError: GatewayError{Message: msg, Cause: err}, Provider: c.provider, StatusCode: 401,
		}}
	case strings.Contains(msgLower, "403") || strings.Contains(msgLower, "forbidden"):
		return &AccessDeniedError{ProviderError: ProviderError{
			GatewayError: GatewayError{Message: msg, Cause: err}, Provider: c.provider, StatusCode: 403,
		}}
	case strings.Contains(msgLower, "404") || strings.Contains(msgLower, "not found"):
		return &NotFoundError{ProviderError: ProviderError{
			GatewayError: GatewayError{Message: msg, Cause: err}, Provider: c.provider, StatusCode: 404,
		}}
	case strings.Contains(msgLower, "429") || strings.Contains(msgLower, "rate limit"):
		return &RateLimitError{ProviderError: ProviderError{
			GatewayError: GatewayError{Message: msg, Cause: err}, Provider: c.provider, StatusCode: 429, Retryable: true,
		}}
	case strings.Contains(msgLower, "context length") || strings.Contains(msgLower, "too many tokens"):
		return &ContextLengthError{ProviderError: ProviderError{
			GatewayError: GatewayError{Message: msg, Cause: err}, Provider: c.provider, StatusCode: 413,
		}}
	case strings.Contains(msgLower, "500") || strings.Contains(msgLower, "internal server"):
		return &ServerError{ProviderError: ProviderError{
			GatewayError: GatewayError{Message: msg, Cause: err}, Provider: c.provider, StatusCode: 500, Retryable: true,
		}}
	case strings.Contains(msgLower, "timeout"):
		return &RequestTimeoutError{GatewayError: GatewayError{Message: msg, Cause: err}}
	case strings.Contains(msgLower, "content filter") || strings.Contains(msgLower, "safety"):
		return &ContentFilterError{ProviderError: ProviderError{
			GatewayError: GatewayError{Message: msg, Cause: err}, Provider: c.provider,
		}}
	default:
		return &ProviderError{
			GatewayError: GatewayError{Message: msg, Cause: err},
			Provider:     c.provider,
			Retryable:    true,
		}
	}
}

// estimateTokens provides a rough token count estimate from request messages.
func estimateTokens(req Request) int {
	total := 0
	for _, msg := range req.Messages {
		for _, part := range msg.Content {
			if part.Kind == ContentText {
				total += len(part.Text) / 4
			}
		}
	}
	if total == 0 {
		total = 10
	}
	return total
}
