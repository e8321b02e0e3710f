package exchanges

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide defines buy or sell direction.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// IsBuy reports whether the side is a buy
func (s OrderSide) IsBuy() bool { return s == OrderSideBuy }

// OrderType defines supported order execution types.
type OrderType string

const (
	OrderTypeMarket     OrderType = "market"
	OrderTypeLimit      OrderType = "limit"
	OrderTypeStopMarket OrderType = "stop_market"
	OrderTypeTakeProfit OrderType = "take_profit_market"
)

// IsTrigger reports whether the order rests until a trigger price is touched
func (t OrderType) IsTrigger() bool {
	return t == OrderTypeStopMarket || t == OrderTypeTakeProfit
}

// OrderStatus enumerates exchange level order lifecycle.
type OrderStatus string

const (
	OrderStatusOpen     OrderStatus = "open"
	OrderStatusFilled   OrderStatus = "filled"
	OrderStatusRejected OrderStatus = "rejected"
	OrderStatusUnknown  OrderStatus = "unknown"
)

// OrderRequest is the unified payload for order placement.
type OrderRequest struct {
	Symbol        string
	Side          OrderSide
	Type          OrderType
	Quantity      decimal.Decimal
	Price         decimal.Decimal // limit price, or reference price for market orders
	StopPrice     decimal.Decimal // trigger price for stop/take-profit orders
	ReduceOnly    bool
	ClientOrderID string
}

// Order represents a normalized exchange order.
type Order struct {
	ID            string
	ClientOrderID string
	Symbol        string
	Type          OrderType
	Side          OrderSide
	Status        OrderStatus
	Price         decimal.Decimal
	StopPrice     decimal.Decimal
	Quantity      decimal.Decimal
	Filled        decimal.Decimal
	AvgFillPrice  decimal.Decimal
	ReduceOnly    bool
	CreatedAt     time.Time
}

// OHLCV is one candle
type OHLCV struct {
	OpenTime time.Time
	Open     decimal.Decimal
	High     decimal.Decimal
	Low      decimal.Decimal
	Close    decimal.Decimal
	Volume   decimal.Decimal
}

// MarketSnapshot is the current state of one perpetual market
type MarketSnapshot struct {
	Symbol       string
	MarkPrice    decimal.Decimal
	MidPrice     decimal.Decimal
	PrevDayPrice decimal.Decimal
	Volume24hUSD decimal.Decimal
	FundingRate  decimal.Decimal
	OpenInterest decimal.Decimal
	Source       string
	Synthetic    bool
	Timestamp    time.Time
}

// Price returns the mid price, or the mark price when no book is available
func (s *MarketSnapshot) Price() decimal.Decimal {
	if s.MidPrice.IsPositive() {
		return s.MidPrice
	}
	return s.MarkPrice
}

// Change24hPct returns the 24h change in percent
func (s *MarketSnapshot) Change24hPct() decimal.Decimal {
	if !s.PrevDayPrice.IsPositive() {
		return decimal.Zero
	}
	return s.MarkPrice.Sub(s.PrevDayPrice).Div(s.PrevDayPrice).Mul(decimal.NewFromInt(100))
}

// Closes extracts close prices as float64 for indicator math
func Closes(candles []OHLCV) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close.InexactFloat64()
	}
	return out
}
