package ai

import (
	"context"
	"time"

	"hypertrader/internal/metrics"
	"hypertrader/pkg/errors"
)

type instrumented struct {
	next ChatProvider
}

// Instrument records call counts, latency and token usage of p
func Instrument(p ChatProvider) ChatProvider {
	return &instrumented{next: p}
}

func (i *instrumented) Name() ProviderName { return i.next.Name() }

func (i *instrumented) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	provider := i.next.Name().String()
	start := time.Now()

	resp, err := i.next.Chat(ctx, req)
	metrics.ModelLatency.WithLabelValues(provider, req.Model).Observe(time.Since(start).Seconds())

	status := "success"
	switch {
	case err != nil && errors.Is(err, context.DeadlineExceeded):
		status = "timeout"
	case err != nil:
		status = "error"
	}
	metrics.ModelCalls.WithLabelValues(provider, req.Model, status).Inc()

	if resp != nil {
		metrics.ModelTokens.WithLabelValues(provider, req.Model, "prompt").Add(float64(resp.Usage.PromptTokens))
		metrics.ModelTokens.WithLabelValues(provider, req.Model, "completion").Add(float64(resp.Usage.CompletionTokens))
	}
	return resp, err
}
