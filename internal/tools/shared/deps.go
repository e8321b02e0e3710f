package shared

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"hypertrader/internal/adapters/exchanges"
	"hypertrader/internal/domain/sentiment"
	"hypertrader/internal/domain/stats"
	"hypertrader/internal/domain/trade"
	riskservice "hypertrader/internal/services/risk"
	"hypertrader/internal/services/execution"
	"hypertrader/pkg/logger"
)

// TradeExecutor places or simulates an approved trade
type TradeExecutor interface {
	Execute(ctx context.Context, req execution.Request) (*trade.Execution, error)
	Simulate(ctx context.Context, req execution.Request) (*trade.Execution, error)
}

// Defaults are the configured fallbacks used when neither the model nor the user
// supplied a value
type Defaults struct {
	Amount       decimal.Decimal
	PositionSize decimal.Decimal
	StopLoss     decimal.Decimal
}

// Deps bundles dependencies required by concrete tool implementations
type Deps struct {
	Log       *logger.Logger
	Market    exchanges.MarketData
	Sentiment sentiment.Source
	Risk      *riskservice.PreTradeValidator
	Executor  TradeExecutor
	StatsRepo stats.Repository
	Defaults  Defaults

	ToolTimeout  time.Duration
	ToolRetries  int
	RetryBackoff time.Duration
}

// HasMarketData reports whether a market data source is available
func (d Deps) HasMarketData() bool {
	return d.Market != nil
}

// HasExecutor reports whether trades can be executed or simulated
func (d Deps) HasExecutor() bool {
	return d.Executor != nil
}

// Logger returns the configured logger or a no-op one
func (d Deps) Logger() *logger.Logger {
	if d.Log == nil {
		return logger.Nop()
	}
	return d.Log
}
