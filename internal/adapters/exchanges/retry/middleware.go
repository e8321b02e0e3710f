package retry

import (
	"context"
	"math/rand/v2"
	"net"
	"strings"
	"time"

	"hypertrader/pkg/errors"
	"hypertrader/pkg/logger"
)

// Policy retries idempotent /info reads with capped exponential backoff.
// Order placement must never go through it: a retried order may fill twice.
type Policy struct {
	// Attempts counts every try, the first one included
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

func DefaultPolicy() Policy {
	return Policy{Attempts: 4, BaseDelay: 100 * time.Millisecond, MaxDelay: 5 * time.Second}
}

func (p Policy) normalized() Policy {
	d := DefaultPolicy()
	if p.Attempts <= 0 {
		p.Attempts = d.Attempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = d.BaseDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	return p
}

// Do runs fn until it succeeds, returns a permanent error, ctx ends or the
// attempts are used up. op names the call in logs and in the final error.
func (p Policy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	p = p.normalized()

	var err error
	for attempt := 0; attempt < p.Attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if !IsRetryable(err) || attempt == p.Attempts-1 {
			break
		}

		wait := p.Backoff(attempt)
		logger.Get().Debugw("Retrying exchange call", "op", op, "attempt", attempt+1, "wait", wait, "error", err)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Wrapf(ctx.Err(), "%s cancelled while backing off", op)
		case <-timer.C:
		}
	}

	if !IsRetryable(err) {
		return err
	}
	return errors.Wrapf(err, "%s failed after %d attempts", op, p.Attempts)
}

// Backoff is BaseDelay doubled per attempt, capped at MaxDelay, then
// jittered into [d/2, d) so parallel callers spread out
func (p Policy) Backoff(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 0; i < attempt && d < p.MaxDelay; i++ {
		d *= 2
	}
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	half := d / 2
	if half <= 0 {
		return d
	}
	return half + rand.N(half)
}

// IsRetryable reports whether err is a transient transport or server failure.
// 429 and 5xx responses carry their own sentinels via exchanges.APIError.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, errors.ErrRateLimitExceeded) || errors.Is(err, errors.ErrExchangeUnavailable) {
		return true
	}
	if errors.Is(err, errors.ErrOrderRejected) || errors.Is(err, errors.ErrInvalidInput) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection refused", "connection reset", "broken pipe", "eof"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
