package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"google.golang.org/genai"

	"hypertrader/pkg/errors"
	"hypertrader/pkg/logger"
)

// GeminiConfig configures the Gemini chat provider
type GeminiConfig struct {
	APIKey     string
	BaseURL    string // optional
	HTTPClient *http.Client
	Limiter    *RateLimiter
}

// GeminiChat implements ChatProvider using the Google GenAI SDK
type GeminiChat struct {
	client  *genai.Client
	limiter *RateLimiter
	log     *logger.Logger
}

var _ ChatProvider = (*GeminiChat)(nil)

// NewGeminiChat creates a Gemini chat provider
func NewGeminiChat(ctx context.Context, cfg GeminiConfig) (*GeminiChat, error) {
	if cfg.APIKey == "" {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "gemini API key is required")
	}
	if cfg.Limiter == nil {
		cfg.Limiter = NewRateLimiter(ProviderNameGemini, 0)
	}

	clientCfg := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, errors.Wrap(err, "create gemini client")
	}

	return &GeminiChat{
		client:  client,
		limiter: cfg.Limiter,
		log:     logger.Get().With("component", "gemini_chat"),
	}, nil
}

// Name returns the provider name
func (p *GeminiChat) Name() ProviderName { return ProviderNameGemini }

// Chat sends a generateContent request to the Gemini API.
func (p *GeminiChat) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	contents, err := geminiContents(req.Messages)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Models.GenerateContent(ctx, req.Model, contents, geminiConfig(req))
	if err != nil {
		return nil, errors.Wrapf(errors.ErrExternal, "gemini API error: %v", err)
	}

	out := fromGeminiResponse(resp)
	out.Model = req.Model

	p.log.Debugw("Chat completion",
		"model", req.Model,
		"choices", len(out.Choices),
		"total_tokens", out.Usage.TotalTokens,
	)
	return out, nil
}

func geminiConfig(req ChatRequest) *genai.GenerateContentConfig {
	temperature := float32(req.Temperature)
	cfg := &genai.GenerateContentConfig{
		Temperature: &temperature,
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, t := range req.Tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  geminiSchema(t.Parameters),
			})
		}
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}
	return cfg
}

// geminiContents maps the conversation to Gemini contents. Tool results are sent back
// as function responses in a user turn.
func geminiContents(messages []Message) ([]*genai.Content, error) {
	contents := make([]*genai.Content, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case RoleUser:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))

		case RoleAssistant:
			c := &genai.Content{Role: string(genai.RoleModel)}
			if msg.Content != "" {
				c.Parts = append(c.Parts, &genai.Part{Text: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				args := map[string]any{}
				if tc.Arguments != "" {
					if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
						return nil, errors.Wrapf(errors.ErrInvalidInput, "tool call %s arguments: %v", tc.ID, err)
					}
				}
				c.Parts = append(c.Parts, &genai.Part{FunctionCall: &genai.FunctionCall{
					ID:   tc.ID,
					Name: tc.Name,
					Args: args,
				}})
			}
			contents = append(contents, c)

		case RoleTool:
			response := map[string]any{}
			if err := json.Unmarshal([]byte(msg.Content), &response); err != nil {
				response = map[string]any{"output": msg.Content}
			}
			contents = append(contents, &genai.Content{
				Role: string(genai.RoleUser),
				Parts: []*genai.Part{{FunctionResponse: &genai.FunctionResponse{
					ID:       msg.ToolCallID,
					Name:     msg.Name,
					Response: response,
				}}},
			})
		}
	}
	return contents, nil
}

func fromGeminiResponse(resp *genai.GenerateContentResponse) *ChatResponse {
	out := &ChatResponse{ID: resp.ResponseID}
	if resp.UsageMetadata != nil {
		out.Usage = Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}

	for i, cand := range resp.Candidates {
		msg := Message{Role: RoleAssistant}
		if cand.Content != nil {
			for j, part := range cand.Content.Parts {
				if part == nil {
					continue
				}
				if part.Text != "" && !part.Thought {
					msg.Content += part.Text
				}
				if fc := part.FunctionCall; fc != nil {
					args, _ := json.Marshal(fc.Args)
					id := fc.ID
					if id == "" {
						id = fmt.Sprintf("call_%d_%d", i, j)
					}
					msg.ToolCalls = append(msg.ToolCalls, ToolCall{ID: id, Name: fc.Name, Arguments: string(args)})
				}
			}
		}

		reason := FinishReasonStop
		switch {
		case len(msg.ToolCalls) > 0:
			reason = FinishReasonToolCalls
		case cand.FinishReason == genai.FinishReasonMaxTokens:
			reason = FinishReasonLength
		case cand.FinishReason == genai.FinishReasonSafety:
			reason = FinishReasonError
		}
		out.Choices = append(out.Choices, Choice{Index: i, Message: msg, FinishReason: reason})
	}
	return out
}

// geminiSchema converts a JSON-schema object into a Gemini schema
func geminiSchema(s map[string]interface{}) *genai.Schema {
	if s == nil {
		return nil
	}
	schema := &genai.Schema{}

	switch t, _ := s["type"].(string); t {
	case "object":
		schema.Type = genai.TypeObject
	case "string":
		schema.Type = genai.TypeString
	case "number":
		schema.Type = genai.TypeNumber
	case "integer":
		schema.Type = genai.TypeInteger
	case "boolean":
		schema.Type = genai.TypeBoolean
	case "array":
		schema.Type = genai.TypeArray
	}
	if d, ok := s["description"].(string); ok {
		schema.Description = d
	}
	if enum, ok := s["enum"].([]string); ok {
		schema.Enum = enum
	}
	if required, ok := s["required"].([]string); ok && len(required) > 0 {
		schema.Required = required
	}
	if props, ok := s["properties"].(map[string]interface{}); ok {
		schema.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			if p, ok := raw.(map[string]interface{}); ok {
				schema.Properties[name] = geminiSchema(p)
			}
		}
	}
	return schema
}
