package decision

import (
	"context"
	"fmt"
	"strings"

	"hypertrader/internal/domain/trade"
	"hypertrader/internal/tools"
	"hypertrader/internal/tools/market"
	"hypertrader/internal/tools/sentiment"
	"hypertrader/internal/tools/shared"
)

// ToolName is the registered name of the decision tool
const ToolName = "make_trading_decision"

const neutralRSI = 50.0

// Spec describes make_trading_decision
func Spec() tools.Spec {
	return tools.NewSpec(ToolName,
		"Decide LONG, SHORT or NEUTRAL for an asset from the market data and sentiment gathered earlier in this session. Call get_market_data and analyze_sentiment first.").
		Required("symbol", tools.TypeString, "Asset symbol, e.g. BTC").
		Optional("position_size", tools.TypeNumber, "Fraction of the trading amount to commit, e.g. 0.01").
		Optional("stop_loss", tools.TypeNumber, "Stop loss as a fraction of entry price, e.g. 0.02").
		Optional("take_profit", tools.TypeNumber, "Take profit as a fraction of entry price, e.g. 0.04").
		Build()
}

// Inputs are the signals the rules evaluate
type Inputs struct {
	RSI            float64
	Change24hPct   float64
	SentimentScore float64
}

// Decision is the rule outcome
type Decision struct {
	Direction  trade.Direction
	Confidence float64
	Reasoning  []string
}

// Decide applies the rule table to the inputs. The first matching rule wins.
func Decide(in Inputs) Decision {
	switch {
	case in.RSI > 80 && in.Change24hPct > 5:
		return Decision{trade.DirectionShort, 0.8, []string{
			fmt.Sprintf("RSI is overbought at %.2f", in.RSI),
			fmt.Sprintf("Price is up %.2f%% in 24h", in.Change24hPct),
		}}
	case in.RSI < 20 && in.Change24hPct < -5:
		return Decision{trade.DirectionLong, 0.8, []string{
			fmt.Sprintf("RSI is oversold at %.2f", in.RSI),
			fmt.Sprintf("Price is down %.2f%% in 24h", -in.Change24hPct),
		}}
	case in.SentimentScore > 0.5 && in.RSI < 70:
		return Decision{trade.DirectionLong, 0.7, []string{
			fmt.Sprintf("Social sentiment is strongly positive at %.2f", in.SentimentScore),
			fmt.Sprintf("RSI is not overbought at %.2f", in.RSI),
		}}
	case in.SentimentScore < -0.5 && in.RSI > 30:
		return Decision{trade.DirectionShort, 0.7, []string{
			fmt.Sprintf("Social sentiment is strongly negative at %.2f", in.SentimentScore),
			fmt.Sprintf("RSI is not oversold at %.2f", in.RSI),
		}}
	default:
		return Decision{trade.DirectionNeutral, 0.5, []string{
			fmt.Sprintf("No strong signal. Sentiment: %.2f, RSI: %.2f, 24h change: %.2f%%", in.SentimentScore, in.RSI, in.Change24hPct),
		}}
	}
}

// NewMakeTradingDecisionTool returns the decision tool
func NewMakeTradingDecisionTool(deps shared.Deps) tools.Tool {
	return shared.NewToolBuilder(Spec(), handler(deps), deps).WithDefaults().Build()
}

func handler(deps shared.Deps) tools.HandlerFunc {
	log := deps.Logger().With("tool", ToolName)

	return func(ctx context.Context, args tools.Args) (map[string]interface{}, error) {
		symbol := args.Symbol()
		in, sources := gatherInputs(ctx, symbol)
		d := Decide(in)

		meta, _ := shared.MetadataFromContext(ctx)
		sizing := shared.ResolveSizing(args, meta.Params, nil, deps.Defaults)

		result := map[string]interface{}{
			"symbol":        symbol,
			"direction":     string(d.Direction),
			"confidence":    d.Confidence,
			"reasoning":     strings.Join(d.Reasoning, ". "),
			"position_size": sizing.PositionSize.InexactFloat64(),
			"stop_loss":     sizing.StopLoss.InexactFloat64(),
			"take_profit":   sizing.TakeProfit.InexactFloat64(),
			"inputs": map[string]interface{}{
				"rsi_14":             in.RSI,
				"24h_change_percent": in.Change24hPct,
				"sentiment_score":    in.SentimentScore,
				"sources":            sources,
			},
		}

		side, actionable := d.Direction.Side()
		if actionable && deps.Risk != nil {
			intent := trade.Intent{
				Symbol:       symbol,
				Side:         side,
				Amount:       shared.ResolveAmount(args, meta.Params, deps.Defaults),
				PositionSize: sizing.PositionSize,
				StopLoss:     sizing.StopLoss,
				TakeProfit:   sizing.TakeProfit,
				Confidence:   d.Confidence,
			}
			checked, err := deps.Risk.Validate(intent)
			if err != nil {
				log.Warnw("Decision rejected by risk bounds", "symbol", symbol, "error", err)
				return nil, err
			}
			if checked.Clamped {
				result["position_size"] = checked.Intent.PositionSize.InexactFloat64()
				result["stop_loss"] = checked.Intent.StopLoss.InexactFloat64()
				result["clamped"] = true
			}
			if len(checked.Warnings) > 0 {
				result["risk_warnings"] = checked.Warnings
			}
			result["risk_check"] = "passed"
		}

		log.Infow("Trading decision", "symbol", symbol, "direction", d.Direction, "confidence", d.Confidence)
		return result, nil
	}
}

// gatherInputs reads earlier market and sentiment results for the same symbol
func gatherInputs(ctx context.Context, symbol string) (Inputs, []string) {
	in := Inputs{RSI: neutralRSI}
	var sources []string

	if md, ok := shared.LatestPayload(ctx, market.ToolName); ok && sameSymbol(md, symbol) {
		sources = append(sources, market.ToolName)
		if v, ok := shared.PayloadFloat(md, "24h_change_percent"); ok {
			in.Change24hPct = v
		}
		if ind, ok := md["indicators"].(map[string]interface{}); ok {
			if v, ok := shared.PayloadFloat(ind, "rsi_14"); ok {
				in.RSI = v
			}
		}
	}

	if sd, ok := shared.LatestPayload(ctx, sentiment.ToolName); ok && sameSymbol(sd, symbol) {
		sources = append(sources, sentiment.ToolName)
		if v, ok := shared.PayloadFloat(sd, "average_sentiment"); ok {
			in.SentimentScore = v
		}
	}

	return in, sources
}

func sameSymbol(payload map[string]interface{}, symbol string) bool {
	s, _ := payload["symbol"].(string)
	return s == "" || strings.EqualFold(s, symbol)
}
