package ai

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimiter bounds the request rate of a provider
type RateLimiter struct {
	provider     ProviderName
	reqPerMinute float64
	limiter      *rate.Limiter
}

// NewRateLimiter creates a limiter allowing reqPerMinute requests.
// A non-positive rate disables limiting.
func NewRateLimiter(provider ProviderName, reqPerMinute float64) *RateLimiter {
	l := &RateLimiter{provider: provider, reqPerMinute: reqPerMinute}
	if reqPerMinute <= 0 {
		l.limiter = rate.NewLimiter(rate.Inf, 1)
		return l
	}
	burst := int(reqPerMinute / 10)
	if burst < 1 {
		burst = 1
	}
	l.limiter = rate.NewLimiter(rate.Limit(reqPerMinute/60.0), burst)
	return l
}

// Wait blocks until a request may proceed or ctx is done
func (l *RateLimiter) Wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return &RateLimitError{Provider: l.provider, Limit: l.reqPerMinute, Err: err}
	}
	return nil
}

// Allow reports whether a request may proceed now and consumes a token if so
func (l *RateLimiter) Allow() bool {
	return l.limiter.Allow()
}

// Limit returns the configured rate in requests per minute, or -1 when unlimited
func (l *RateLimiter) Limit() float64 {
	if l.reqPerMinute <= 0 {
		return -1
	}
	return l.reqPerMinute
}

// RateLimitError wraps rate limit related errors with provider context.
type RateLimitError struct {
	Provider ProviderName
	Limit    float64
	Err      error
}

// Error implements error interface.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit error for provider %s (limit: %.0f req/min): %v", e.Provider, e.Limit, e.Err)
}

// Unwrap returns the underlying error.
func (e *RateLimitError) Unwrap() error {
	return e.Err
}
