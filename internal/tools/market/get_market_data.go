package market

import (
	"context"
	"math"

	"hypertrader/internal/tools"
	"hypertrader/internal/tools/indicators"
	"hypertrader/internal/tools/shared"
	"hypertrader/pkg/errors"
)

// ToolName is the registered name of the market data tool
const ToolName = "get_market_data"

// Spec describes get_market_data
func Spec() tools.Spec {
	return tools.NewSpec(ToolName,
		"Fetch the current market snapshot and technical indicators (SMA, EMA, MACD, RSI, Bollinger Bands, ATR) for a Hyperliquid perpetual.").
		Required("symbol", tools.TypeString, "Asset symbol, e.g. BTC").
		Optional("interval", tools.TypeString, "Candle interval for indicators (default 1h)").
		Enum("1m", "5m", "15m", "1h", "4h", "1d").
		Optional("lookback", tools.TypeInteger, "Number of candles used for indicators (default 100)").
		Build()
}

// NewGetMarketDataTool returns the market data tool
func NewGetMarketDataTool(deps shared.Deps) tools.Tool {
	return shared.NewToolBuilder(Spec(), handler(deps), deps).WithDefaults().Build()
}

func handler(deps shared.Deps) tools.HandlerFunc {
	log := deps.Logger().With("tool", ToolName)

	return func(ctx context.Context, args tools.Args) (map[string]interface{}, error) {
		if !deps.HasMarketData() {
			return nil, errors.Wrap(errors.ErrNotConfigured, "market data source not configured")
		}

		symbol := args.Symbol()
		interval := args.String("interval", "1h")
		lookback := args.Int("lookback", 100)
		if lookback < 20 || lookback > 500 {
			return nil, errors.Wrapf(errors.ErrInvalidArguments, "lookback must be between 20 and 500, got %d", lookback)
		}

		log.Debugw("Fetching market data", "symbol", symbol, "interval", interval)

		snap, err := deps.Market.GetMarketSnapshot(ctx, symbol)
		if err != nil {
			return nil, errors.Wrapf(err, "get_market_data: snapshot %s", symbol)
		}

		result := map[string]interface{}{
			"symbol":             snap.Symbol,
			"current_price":      snap.Price().InexactFloat64(),
			"mark_price":         snap.MarkPrice.InexactFloat64(),
			"24h_change_percent": round(snap.Change24hPct().InexactFloat64(), 2),
			"24h_volume":         snap.Volume24hUSD.InexactFloat64(),
			"funding_rate":       snap.FundingRate.InexactFloat64(),
			"open_interest":      snap.OpenInterest.InexactFloat64(),
			"timeframe":          interval,
			"timestamp":          snap.Timestamp.Unix(),
			"is_synthetic":       snap.Synthetic,
			"source":             snap.Source,
		}

		candles, err := deps.Market.GetOHLCV(ctx, symbol, interval, lookback)
		if err != nil {
			// Indicators are optional; the snapshot alone is still useful
			log.Warnw("Failed to load candles", "symbol", symbol, "interval", interval, "error", err)
			result["indicators"] = map[string]interface{}{}
			result["indicators_error"] = err.Error()
			return result, nil
		}

		values, err := indicators.Compute(candles)
		if err != nil {
			return nil, errors.Wrap(err, "get_market_data: indicators")
		}
		result["indicators"] = indicators.Payload(values)
		result["candles"] = len(candles)

		log.Infow("Market data fetched",
			"symbol", snap.Symbol,
			"price", snap.Price().String(),
			"synthetic", snap.Synthetic,
		)
		return result, nil
	}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
