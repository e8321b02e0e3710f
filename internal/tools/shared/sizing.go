package shared

import (
	"github.com/shopspring/decimal"

	"hypertrader/internal/tools"
)

// Sizing is the resolved risk sizing of a trade
type Sizing struct {
	PositionSize decimal.Decimal
	StopLoss     decimal.Decimal
	TakeProfit   decimal.Decimal
}

// ResolveSizing picks each field from, in order: the call arguments, the user's
// explicit request parameters, an earlier decision payload, the configured defaults.
// Take profit falls back to twice the stop loss.
func ResolveSizing(args tools.Args, params ExecParams, prior map[string]interface{}, defaults Defaults) Sizing {
	s := Sizing{
		PositionSize: pick(args, "position_size", params.PositionSize, prior, defaults.PositionSize),
		StopLoss:     pick(args, "stop_loss", params.StopLoss, prior, defaults.StopLoss),
	}
	s.TakeProfit = pick(args, "take_profit", params.TakeProfit, prior, s.StopLoss.Mul(decimal.NewFromInt(2)))
	return s
}

// ExplicitSizing reports whether position size and stop loss were stated by the model
// call or by the user, without falling back to defaults or earlier results
func ExplicitSizing(args tools.Args, params ExecParams) bool {
	return (args.Has("position_size") || params.PositionSize.Valid) &&
		(args.Has("stop_loss") || params.StopLoss.Valid)
}

// ResolveAmount picks the USD capital from the arguments, the request or the defaults
func ResolveAmount(args tools.Args, params ExecParams, defaults Defaults) decimal.Decimal {
	if v, ok := args.Decimal("amount"); ok {
		return v
	}
	if params.Amount.Valid {
		return params.Amount.Decimal
	}
	return defaults.Amount
}

func pick(args tools.Args, key string, param decimal.NullDecimal, prior map[string]interface{}, def decimal.Decimal) decimal.Decimal {
	if v, ok := args.Decimal(key); ok {
		return v
	}
	if param.Valid {
		return param.Decimal
	}
	if f, ok := PayloadFloat(prior, key); ok {
		return decimal.NewFromFloat(f)
	}
	return def
}
