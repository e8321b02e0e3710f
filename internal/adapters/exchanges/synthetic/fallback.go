package synthetic

import (
	"context"

	"hypertrader/internal/adapters/exchanges"
	"hypertrader/pkg/logger"
)

// FallbackMarket reads from a primary source and switches to a fallback when the
// primary fails
type FallbackMarket struct {
	primary  exchanges.MarketData
	fallback exchanges.MarketData
	log      *logger.Logger
}

var _ exchanges.MarketData = (*FallbackMarket)(nil)

// NewFallbackMarket wraps primary with fallback
func NewFallbackMarket(primary, fallback exchanges.MarketData, log *logger.Logger) *FallbackMarket {
	return &FallbackMarket{
		primary:  primary,
		fallback: fallback,
		log:      log.With("component", "market_fallback"),
	}
}

// GetMarketSnapshot implements exchanges.MarketData
func (f *FallbackMarket) GetMarketSnapshot(ctx context.Context, symbol string) (*exchanges.MarketSnapshot, error) {
	snap, err := f.primary.GetMarketSnapshot(ctx, symbol)
	if err == nil {
		return snap, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}
	f.log.Warnw("Market snapshot unavailable, using fallback", "symbol", symbol, "error", err)
	return f.fallback.GetMarketSnapshot(ctx, symbol)
}

// GetOHLCV implements exchanges.MarketData
func (f *FallbackMarket) GetOHLCV(ctx context.Context, symbol string, interval string, limit int) ([]exchanges.OHLCV, error) {
	candles, err := f.primary.GetOHLCV(ctx, symbol, interval, limit)
	if err == nil && len(candles) > 0 {
		return candles, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	f.log.Warnw("Candles unavailable, using fallback", "symbol", symbol, "interval", interval, "error", err)
	return f.fallback.GetOHLCV(ctx, symbol, interval, limit)
}
