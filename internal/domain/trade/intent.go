package trade

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of a position
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// ParseSide accepts long/short and the LONG/SHORT/BUY/SELL spellings models tend to use
func ParseSide(s string) (Side, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "long", "buy", "b":
		return SideLong, true
	case "short", "sell", "a":
		return SideShort, true
	default:
		return "", false
	}
}

// Opposite returns the closing side
func (s Side) Opposite() Side {
	if s == SideLong {
		return SideShort
	}
	return SideLong
}

// Direction is the output of the decision rules
type Direction string

const (
	DirectionLong    Direction = "LONG"
	DirectionShort   Direction = "SHORT"
	DirectionNeutral Direction = "NEUTRAL"
)

// Side maps an actionable direction to a position side
func (d Direction) Side() (Side, bool) {
	switch d {
	case DirectionLong:
		return SideLong, true
	case DirectionShort:
		return SideShort, true
	default:
		return "", false
	}
}

// Intent is a proposal to open a position. It must pass the risk bounds check
// before anything is sent to the exchange.
type Intent struct {
	Symbol string `json:"symbol"`
	Side   Side   `json:"side"`
	// Amount is the USD capital the user made available for this trade
	Amount decimal.Decimal `json:"amount"`
	// PositionSize is the fraction of Amount committed to the position
	PositionSize decimal.Decimal `json:"position_size"`
	// StopLoss and TakeProfit are fractions of the entry price
	StopLoss   decimal.Decimal `json:"stop_loss"`
	TakeProfit decimal.Decimal `json:"take_profit"`
	Confidence float64         `json:"confidence,omitempty"`
	Reasoning  string          `json:"reasoning,omitempty"`
}

// Notional is the USD value of the position
func (i Intent) Notional() decimal.Decimal {
	return i.Amount.Mul(i.PositionSize)
}

// Units converts the notional into base-asset units at the given price
func (i Intent) Units(price decimal.Decimal) decimal.Decimal {
	if !price.IsPositive() {
		return decimal.Zero
	}
	return i.Notional().DivRound(price, 8)
}

// StopLossPrice returns the protective stop price for an entry at price
func (i Intent) StopLossPrice(price decimal.Decimal) decimal.Decimal {
	one := decimal.NewFromInt(1)
	if i.Side == SideLong {
		return price.Mul(one.Sub(i.StopLoss))
	}
	return price.Mul(one.Add(i.StopLoss))
}

// TakeProfitPrice returns the profit target for an entry at price
func (i Intent) TakeProfitPrice(price decimal.Decimal) decimal.Decimal {
	one := decimal.NewFromInt(1)
	if i.Side == SideLong {
		return price.Mul(one.Add(i.TakeProfit))
	}
	return price.Mul(one.Sub(i.TakeProfit))
}

// Fingerprint identifies economically identical intents within a session
func (i Intent) Fingerprint() string {
	return fmt.Sprintf("%s|%s|%s|%s|%s|%s",
		strings.ToUpper(i.Symbol),
		i.Side,
		i.Amount.String(),
		i.PositionSize.String(),
		i.StopLoss.String(),
		i.TakeProfit.String(),
	)
}

// Execution is the normalized outcome of a trade, real or simulated
type Execution struct {
	ID              string          `json:"id"`
	SessionID       string          `json:"session_id"`
	AccountID       string          `json:"account_id"`
	Intent          Intent          `json:"intent"`
	Simulated       bool            `json:"simulated"`
	Clamped         bool            `json:"clamped,omitempty"`
	EntryPrice      decimal.Decimal `json:"entry_price"`
	Units           decimal.Decimal `json:"units"`
	StopLossPrice   decimal.Decimal `json:"stop_loss_price"`
	TakeProfitPrice decimal.Decimal `json:"take_profit_price"`
	EntryOrderID    string          `json:"entry_order_id,omitempty"`
	StopOrderID     string          `json:"stop_order_id,omitempty"`
	TakeOrderID     string          `json:"take_profit_order_id,omitempty"`
	// ProtectionError is set when the entry filled but a stop-loss or take-profit order failed
	ProtectionError string    `json:"protection_error,omitempty"`
	ExecutedAt      time.Time `json:"executed_at"`
}

// Payload renders the execution as a tool result payload
func (e Execution) Payload() map[string]interface{} {
	p := map[string]interface{}{
		"execution_id":      e.ID,
		"symbol":            e.Intent.Symbol,
		"side":              string(e.Intent.Side),
		"direction":         strings.ToUpper(string(e.Intent.Side)),
		"trading_amount":    e.Intent.Amount.InexactFloat64(),
		"position_size":     e.Intent.PositionSize.InexactFloat64(),
		"position_size_usd": e.Intent.Notional().InexactFloat64(),
		"position_units":    e.Units.InexactFloat64(),
		"entry_price":       e.EntryPrice.InexactFloat64(),
		"stop_loss_price":   e.StopLossPrice.InexactFloat64(),
		"take_profit_price": e.TakeProfitPrice.InexactFloat64(),
		"simulated":         e.Simulated,
		"executed_at_unix":  e.ExecutedAt.Unix(),
	}
	if e.Clamped {
		p["clamped"] = true
	}
	if e.EntryOrderID != "" {
		p["entry_order_id"] = e.EntryOrderID
	}
	if e.StopOrderID != "" {
		p["stop_loss_order_id"] = e.StopOrderID
	}
	if e.TakeOrderID != "" {
		p["take_profit_order_id"] = e.TakeOrderID
	}
	if e.ProtectionError != "" {
		p["protection_error"] = e.ProtectionError
	}
	return p
}
