package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"hypertrader/pkg/errors"
)

// Hyperliquid meters each IP by request weight rather than request count
const (
	DefaultWeightPerMinute = 1200

	// WeightInfo covers meta, metaAndAssetCtxs and the base cost of candleSnapshot
	WeightInfo = 20
	// WeightAction is one unbatched /exchange action
	WeightAction = 1
)

// CandleWeight is the cost of a candleSnapshot returning n candles
func CandleWeight(n int) int {
	return WeightInfo + n/60
}

// Limiter spends request weight against a per-minute budget
type Limiter struct {
	limiter *rate.Limiter
	name    string
}

// NewLimiter refills weightPerMinute evenly over the minute. The burst is a
// tenth of the budget but never less than one info request. A non-positive
// budget disables limiting.
func NewLimiter(name string, weightPerMinute int) *Limiter {
	if weightPerMinute <= 0 {
		return &Limiter{limiter: rate.NewLimiter(rate.Inf, WeightInfo), name: name}
	}
	burst := max(weightPerMinute/10, WeightInfo)
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(float64(weightPerMinute)/60.0), burst),
		name:    name,
	}
}

// Wait blocks until weight is available or ctx is done. Weights above the
// burst are charged at the burst.
func (l *Limiter) Wait(ctx context.Context, weight int) error {
	if err := l.limiter.WaitN(ctx, l.clamp(weight)); err != nil {
		return errors.Wrapf(err, "%s weight limiter", l.name)
	}
	return nil
}

func (l *Limiter) Allow(weight int) bool {
	return l.limiter.AllowN(time.Now(), l.clamp(weight))
}

func (l *Limiter) clamp(weight int) int {
	if weight < 1 {
		return 1
	}
	return min(weight, l.limiter.Burst())
}
