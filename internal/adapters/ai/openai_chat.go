package ai

import (
	"context"
	"net/http"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"hypertrader/pkg/errors"
	"hypertrader/pkg/logger"
)

const chatCompletionsPath = "chat/completions"

// OpenAIConfig configures the OpenAI chat provider
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string // optional, for OpenAI-compatible gateways
	MaxRetries int
	HTTPClient *http.Client
	Limiter    *RateLimiter
}

// OpenAIChat implements ChatProvider using the official OpenAI SDK
type OpenAIChat struct {
	client  openai.Client
	limiter *RateLimiter
	log     *logger.Logger
}

var _ ChatProvider = (*OpenAIChat)(nil)

// NewOpenAIChat creates an OpenAI chat provider
func NewOpenAIChat(cfg OpenAIConfig) (*OpenAIChat, error) {
	if cfg.APIKey == "" {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "openai API key is required")
	}
	if cfg.Limiter == nil {
		cfg.Limiter = NewRateLimiter(ProviderNameOpenAI, 0)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	return &OpenAIChat{
		client:  openai.NewClient(opts...),
		limiter: cfg.Limiter,
		log:     logger.Get().With("component", "openai_chat"),
	}, nil
}

// Name returns the provider name
func (p *OpenAIChat) Name() ProviderName { return ProviderNameOpenAI }

// Chat sends a chat completion request to the OpenAI API.
func (p *OpenAIChat) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var completion openai.ChatCompletion
	if err := p.client.Post(ctx, chatCompletionsPath, openAIRequestBody(req), &completion); err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, errors.Wrapf(errors.ErrExternal, "openai API error (%d): %s", apiErr.StatusCode, apiErr.Message)
		}
		return nil, errors.Wrap(err, "send openai request")
	}

	resp := &ChatResponse{
		ID:    completion.ID,
		Model: completion.Model,
		Usage: Usage{
			PromptTokens:     int(completion.Usage.PromptTokens),
			CompletionTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:      int(completion.Usage.TotalTokens),
		},
	}

	for i, choice := range completion.Choices {
		msg := Message{
			Role:    RoleAssistant,
			Content: choice.Message.Content,
		}
		for _, tc := range choice.Message.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}

		resp.Choices = append(resp.Choices, Choice{
			Index:        i,
			Message:      msg,
			FinishReason: openAIFinishReason(choice.FinishReason),
		})
	}

	p.log.Debugw("Chat completion",
		"model", resp.Model,
		"choices", len(resp.Choices),
		"total_tokens", resp.Usage.TotalTokens,
	)
	return resp, nil
}

// openAIRequestBody renders the request in the chat completions wire format
func openAIRequestBody(req ChatRequest) map[string]interface{} {
	messages := make([]map[string]interface{}, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, map[string]interface{}{"role": "system", "content": req.System})
	}

	for _, msg := range req.Messages {
		m := map[string]interface{}{"role": string(msg.Role)}
		switch msg.Role {
		case RoleAssistant:
			if msg.Content != "" {
				m["content"] = msg.Content
			} else {
				m["content"] = nil
			}
			if len(msg.ToolCalls) > 0 {
				calls := make([]map[string]interface{}, 0, len(msg.ToolCalls))
				for _, tc := range msg.ToolCalls {
					calls = append(calls, map[string]interface{}{
						"id":   tc.ID,
						"type": "function",
						"function": map[string]interface{}{
							"name":      tc.Name,
							"arguments": tc.Arguments,
						},
					})
				}
				m["tool_calls"] = calls
			}
		case RoleTool:
			m["tool_call_id"] = msg.ToolCallID
			m["content"] = msg.Content
		default:
			m["content"] = msg.Content
		}
		messages = append(messages, m)
	}

	body := map[string]interface{}{
		"model":       req.Model,
		"messages":    messages,
		"temperature": req.Temperature,
	}
	if req.MaxTokens > 0 {
		body["max_completion_tokens"] = req.MaxTokens
	}

	if len(req.Tools) > 0 {
		defs := make([]map[string]interface{}, 0, len(req.Tools))
		for _, t := range req.Tools {
			defs = append(defs, map[string]interface{}{
				"type": "function",
				"function": map[string]interface{}{
					"name":        t.Name,
					"description": t.Description,
					"parameters":  t.Parameters,
				},
			})
		}
		body["tools"] = defs
		body["tool_choice"] = "auto"
	}

	return body
}

func openAIFinishReason(reason string) FinishReason {
	switch reason {
	case "length":
		return FinishReasonLength
	case "tool_calls", "function_call":
		return FinishReasonToolCalls
	case "content_filter":
		return FinishReasonError
	default:
		return FinishReasonStop
	}
}
