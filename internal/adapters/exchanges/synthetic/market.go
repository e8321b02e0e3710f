package synthetic

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"hypertrader/internal/adapters/exchanges"
	"hypertrader/pkg/errors"
)

const sourceName = "synthetic"

// basePrices anchor generated series near realistic levels
var basePrices = map[string]float64{
	"BTC":   48000,
	"ETH":   2800,
	"SOL":   110,
	"AVAX":  35,
	"DOT":   8,
	"LINK":  18,
	"ADA":   0.5,
	"XRP":   0.6,
	"BNB":   480,
	"MATIC": 0.9,
	"DOGE":  0.09,
	"SHIB":  0.00001,
	"PEPE":  0.00001,
	"NEAR":  6,
	"OP":    3,
	"ARB":   1.5,
}

var majors = map[string]bool{"BTC": true, "ETH": true}

var midCaps = map[string]bool{"SOL": true, "AVAX": true, "DOT": true, "LINK": true, "ADA": true, "XRP": true, "BNB": true}

var intervals = map[string]time.Duration{
	"1m":  time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"1h":  time.Hour,
	"4h":  4 * time.Hour,
	"1d":  24 * time.Hour,
}

// Market generates deterministic market data per symbol. It is used when the
// exchange API is disabled or unreachable.
type Market struct {
	now func() time.Time
}

// NewMarket creates a synthetic market data source
func NewMarket() *Market {
	return &Market{now: time.Now}
}

// BasePrice returns the anchor price for symbol
func BasePrice(symbol string) float64 {
	symbol = normalize(symbol)
	if p, ok := basePrices[symbol]; ok {
		return p
	}
	rng := newRand(symbol, "base")
	return math.Round((0.1+rng.Float64()*99.9)*100) / 100
}

// GetMarketSnapshot derives a snapshot from a synthetic hourly series
func (m *Market) GetMarketSnapshot(ctx context.Context, symbol string) (*exchanges.MarketSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	symbol = normalize(symbol)
	if symbol == "" {
		return nil, errors.Wrap(errors.ErrInvalidSymbol, "symbol is empty")
	}

	closes := series(symbol, "1h", 25)
	last := closes[len(closes)-1]
	prev := closes[0]

	rng := newRand(symbol, "snapshot")
	var volume float64
	switch {
	case majors[symbol]:
		volume = 500_000_000 + rng.Float64()*1_500_000_000
	case midCaps[symbol]:
		volume = 50_000_000 + rng.Float64()*450_000_000
	default:
		volume = 1_000_000 + rng.Float64()*49_000_000
	}
	funding := rng.NormFloat64() * 0.0005
	openInterest := volume * (0.1 + rng.Float64()*0.4)

	return &exchanges.MarketSnapshot{
		Symbol:       symbol,
		MarkPrice:    toDecimal(last),
		MidPrice:     toDecimal(last),
		PrevDayPrice: toDecimal(prev),
		Volume24hUSD: decimal.NewFromFloat(volume).Round(2),
		FundingRate:  decimal.NewFromFloat(funding).Round(6),
		OpenInterest: decimal.NewFromFloat(openInterest).Round(2),
		Source:       sourceName,
		Synthetic:    true,
		Timestamp:    m.now().UTC(),
	}, nil
}

// GetOHLCV returns limit synthetic candles, oldest first
func (m *Market) GetOHLCV(ctx context.Context, symbol string, interval string, limit int) ([]exchanges.OHLCV, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	step, ok := intervals[interval]
	if !ok {
		return nil, errors.Wrapf(exchanges.ErrInvalidRequest, "unsupported interval %q", interval)
	}
	if limit <= 0 {
		limit = 100
	}
	symbol = normalize(symbol)

	closes := series(symbol, interval, limit+1)
	rng := newRand(symbol, "wick:"+interval)
	end := m.now().UTC().Truncate(step)
	baseVolume := BasePrice(symbol)

	out := make([]exchanges.OHLCV, 0, limit)
	for i := 1; i <= limit; i++ {
		open, closePx := closes[i-1], closes[i]
		high := math.Max(open, closePx) * (1 + math.Abs(rng.NormFloat64())*0.003)
		low := math.Min(open, closePx) * (1 - math.Abs(rng.NormFloat64())*0.003)
		out = append(out, exchanges.OHLCV{
			OpenTime: end.Add(-time.Duration(limit-i+1) * step),
			Open:     toDecimal(open),
			High:     toDecimal(high),
			Low:      toDecimal(low),
			Close:    toDecimal(closePx),
			Volume:   decimal.NewFromFloat(1000 / baseVolume * (0.5 + rng.Float64())).Round(8),
		})
	}
	return out, nil
}

// series is a random walk of n closes ending near the symbol's base price
func series(symbol, interval string, n int) []float64 {
	rng := newRand(symbol, "walk:"+interval)
	base := BasePrice(symbol)

	closes := make([]float64, n)
	closes[n-1] = base * (1 + rng.NormFloat64()*0.02)
	for i := n - 2; i >= 0; i-- {
		closes[i] = closes[i+1] / (1 + rng.NormFloat64()*0.008)
	}
	return closes
}

func newRand(symbol, salt string) *rand.Rand {
	h := fnv.New64a()
	_, _ = h.Write([]byte(symbol + "|" + salt))
	return rand.New(rand.NewSource(int64(h.Sum64())))
}

func normalize(symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	symbol = strings.TrimSuffix(symbol, "-PERP")
	return strings.TrimSuffix(symbol, "USDT")
}

func toDecimal(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f).Round(8)
}
