package shared

import (
	"context"
	"time"

	"hypertrader/internal/domain/stats"
	"hypertrader/internal/metrics"
	"hypertrader/internal/tools"
	"hypertrader/pkg/errors"
)

const statsInsertTimeout = 5 * time.Second

// ToolBuilder provides a fluent API for creating tools with middleware
type ToolBuilder struct {
	spec tools.Spec
	fn   tools.HandlerFunc
	deps Deps

	withRetry bool
	attempts  int
	backoff   time.Duration

	timeout time.Duration

	withStats bool
}

// NewToolBuilder creates a new builder for a tool
func NewToolBuilder(spec tools.Spec, fn tools.HandlerFunc, deps Deps) *ToolBuilder {
	return &ToolBuilder{
		spec:     spec,
		fn:       fn,
		deps:     deps,
		attempts: 1,
		backoff:  500 * time.Millisecond,
	}
}

// WithRetry retries adapter failures. Trading tools are never retried.
func (b *ToolBuilder) WithRetry(attempts int, backoff time.Duration) *ToolBuilder {
	b.withRetry = true
	b.attempts = attempts
	b.backoff = backoff
	return b
}

// WithTimeout bounds every call
func (b *ToolBuilder) WithTimeout(timeout time.Duration) *ToolBuilder {
	b.timeout = timeout
	return b
}

// WithStats records metrics and tool usage events
func (b *ToolBuilder) WithStats() *ToolBuilder {
	b.withStats = true
	return b
}

// WithDefaults applies retry, timeout and stats from deps
func (b *ToolBuilder) WithDefaults() *ToolBuilder {
	if b.deps.ToolRetries > 0 {
		b.WithRetry(b.deps.ToolRetries+1, b.deps.RetryBackoff)
	}
	if b.deps.ToolTimeout > 0 {
		b.WithTimeout(b.deps.ToolTimeout)
	}
	return b.WithStats()
}

// Build creates the tool with middleware applied in order: retry -> timeout -> stats
func (b *ToolBuilder) Build() tools.Tool {
	fn := b.fn

	// Retry is innermost so a timeout bounds all attempts together
	if b.withRetry && b.attempts > 1 && !b.spec.Trading {
		fn = wrapWithRetry(b.attempts, b.backoff, fn)
	}

	if b.timeout > 0 {
		fn = wrapWithTimeout(b.timeout, fn)
	}

	if b.withStats {
		fn = wrapWithStats(b.spec.Name, b.deps, fn)
	}

	return tools.New(b.spec, fn)
}

func wrapWithRetry(attempts int, backoff time.Duration, fn tools.HandlerFunc) tools.HandlerFunc {
	return func(ctx context.Context, args tools.Args) (map[string]interface{}, error) {
		var result map[string]interface{}
		var err error

		for i := 0; i < attempts; i++ {
			result, err = fn(ctx, args)
			if err == nil {
				return result, nil
			}
			// Only failures of external collaborators are transient
			if errors.KindOf(err) != errors.KindAdapterExecution {
				return nil, err
			}

			if backoff > 0 && i < attempts-1 {
				select {
				case <-ctx.Done():
					return nil, err
				case <-time.After(backoff):
				}
			}
		}

		return result, err
	}
}

func wrapWithTimeout(timeout time.Duration, fn tools.HandlerFunc) tools.HandlerFunc {
	return func(ctx context.Context, args tools.Args) (map[string]interface{}, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		result, err := fn(ctx, args)
		if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, errors.Wrapf(errors.ErrTimeout, "tool timed out after %s: %v", timeout, err)
		}
		return result, err
	}
}

func wrapWithStats(name string, deps Deps, fn tools.HandlerFunc) tools.HandlerFunc {
	return func(ctx context.Context, args tools.Args) (map[string]interface{}, error) {
		start := time.Now()
		result, err := fn(ctx, args)
		duration := time.Since(start)

		status := "success"
		kind := errors.KindOf(err)
		if err != nil {
			status = "failure"
		}
		metrics.ToolExecutions.WithLabelValues(name, status, kind.String()).Inc()
		metrics.ToolLatency.WithLabelValues(name).Observe(duration.Seconds())

		if deps.StatsRepo == nil {
			return result, err
		}

		event := &stats.ToolUsageEvent{
			ToolName:   name,
			Timestamp:  start.UTC(),
			DurationMs: uint32(duration.Milliseconds()),
			Success:    err == nil,
			ErrorKind:  kind.String(),
			Symbol:     args.Symbol(),
		}
		if sim, ok := result["simulated"].(bool); ok {
			event.Simulated = sim
		}
		if meta, ok := MetadataFromContext(ctx); ok {
			event.AccountID = meta.AccountID
			event.SessionID = meta.SessionID
			if event.Symbol == "" {
				event.Symbol = meta.Symbol
			}
		}

		go func() {
			insertCtx, cancel := context.WithTimeout(context.Background(), statsInsertTimeout)
			defer cancel()
			if err := deps.StatsRepo.InsertToolUsage(insertCtx, event); err != nil {
				deps.Logger().Warnw("Failed to record tool usage", "tool", name, "error", err)
			}
		}()

		return result, err
	}
}
