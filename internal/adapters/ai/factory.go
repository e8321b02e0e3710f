package ai

import (
	"context"
	"net/http"
	"strings"
	"time"

	"hypertrader/internal/adapters/config"
	"hypertrader/pkg/errors"
)

type ProviderName string

const (
	ProviderNameOpenAI ProviderName = "openai"
	ProviderNameGemini ProviderName = "gemini"
)

func (p ProviderName) String() string {
	return string(p)
}

// ParseProviderName accepts the AI_PROVIDER value in any case
func ParseProviderName(s string) (ProviderName, error) {
	switch name := ProviderName(strings.ToLower(strings.TrimSpace(s))); name {
	case ProviderNameOpenAI, ProviderNameGemini:
		return name, nil
	default:
		return "", errors.Wrapf(errors.ErrInvalidInput, "unsupported AI provider %q", s)
	}
}

// NewChatProvider builds the provider selected by cfg.Provider, rate limited and instrumented
func NewChatProvider(ctx context.Context, cfg config.AIConfig, timeout time.Duration) (ChatProvider, error) {
	name, err := ParseProviderName(cfg.Provider)
	if err != nil {
		return nil, err
	}

	limiter := NewRateLimiter(name, float64(cfg.RequestsPerMinute))
	httpClient := &http.Client{Timeout: timeout}

	var provider ChatProvider
	switch name {
	case ProviderNameOpenAI:
		provider, err = NewOpenAIChat(OpenAIConfig{
			APIKey:     cfg.OpenAIKey,
			BaseURL:    cfg.OpenAIBaseURL,
			MaxRetries: 2,
			HTTPClient: httpClient,
			Limiter:    limiter,
		})
	case ProviderNameGemini:
		provider, err = NewGeminiChat(ctx, GeminiConfig{
			APIKey:     cfg.GeminiKey,
			HTTPClient: httpClient,
			Limiter:    limiter,
		})
	}
	if err != nil {
		return nil, err
	}

	return Instrument(provider), nil
}
