package ai

import (
	"context"
	"strings"

	"hypertrader/internal/tools"
	"hypertrader/pkg/errors"
)

// ChatProvider is one model backend with function calling. Implementations
// must return promptly once ctx is done.
type ChatProvider interface {
	Name() ProviderName
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

type ChatRequest struct {
	Model       string
	System      string
	Messages    []Message
	Tools       []tools.Definition
	Temperature float64
	MaxTokens   int
}

// Message is one transcript entry in provider-neutral form. Assistant
// messages may carry tool calls; tool messages answer exactly one of them.
type Message struct {
	Role       MessageRole
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
	Name       string
}

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
)

type ChatResponse struct {
	ID      string
	Model   string
	Choices []Choice
	Usage   Usage
}

type Choice struct {
	Index        int
	Message      Message
	FinishReason FinishReason
}

type FinishReason string

const (
	FinishReasonStop      FinishReason = "stop"
	FinishReasonLength    FinishReason = "length"
	FinishReasonToolCalls FinishReason = "tool_calls"
	FinishReasonError     FinishReason = "error"
)

// ToolCall is a request from the model to run a tool. Arguments is the raw
// JSON text the model produced and may be malformed.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Reply returns the first choice. A response with no choices, or whose first
// choice has neither text nor tool calls, is a backend failure.
func (r *ChatResponse) Reply() (Message, error) {
	if r == nil || len(r.Choices) == 0 {
		return Message{}, errors.Wrap(errors.ErrModelBackend, "model returned no choices")
	}
	c := r.Choices[0]
	if len(c.Message.ToolCalls) == 0 && strings.TrimSpace(c.Message.Content) == "" {
		return Message{}, errors.Wrapf(errors.ErrModelBackend, "model returned an empty response (finish reason %q)", c.FinishReason)
	}
	return c.Message, nil
}
