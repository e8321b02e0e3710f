package execution

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"hypertrader/internal/adapters/exchanges"
	"hypertrader/internal/domain/trade"
	"hypertrader/internal/metrics"
	"hypertrader/pkg/errors"
	"hypertrader/pkg/logger"
)

// Journal persists executions
type Journal interface {
	RecordExecution(ctx context.Context, exec *trade.Execution) error
}

// EventPublisher announces executions to downstream consumers
type EventPublisher interface {
	PublishTradeExecuted(ctx context.Context, exec *trade.Execution) error
}

// Notifier pushes a human-readable notice of an execution
type Notifier interface {
	NotifyTrade(ctx context.Context, exec *trade.Execution) error
}

// Sinks are the optional best-effort consumers of every execution
type Sinks struct {
	Journal  Journal
	Events   EventPublisher
	Notifier Notifier
}

// Config tunes the execution service
type Config struct {
	LockTimeout time.Duration
	SinkTimeout time.Duration
}

// Request is a risk-validated intent ready to be filled
type Request struct {
	SessionID string
	AccountID string
	Intent    trade.Intent
	Clamped   bool
	// ReferencePrice is the latest price the session observed. Simulations use it when set.
	ReferencePrice decimal.Decimal
}

// Service turns validated intents into fills, real or simulated.
type Service struct {
	exchange exchanges.Exchange
	market   exchanges.MarketData
	locker   AccountLocker
	sinks    Sinks
	cfg      Config
	log      *logger.Logger
	now      func() time.Time
}

// NewService creates a new execution service.
// exchange may be nil when trading is not configured; Execute then fails and Simulate still works.
func NewService(exchange exchanges.Exchange, market exchanges.MarketData, locker AccountLocker, sinks Sinks, cfg Config) *Service {
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = 15 * time.Second
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = 5 * time.Second
	}
	if locker == nil {
		locker = NewMemoryLocker()
	}
	if market == nil && exchange != nil {
		market = exchange
	}

	return &Service{
		exchange: exchange,
		market:   market,
		locker:   locker,
		sinks:    sinks,
		cfg:      cfg,
		log:      logger.Get().With("component", "execution_service"),
		now:      time.Now,
	}
}

// Simulate produces a fill at the reference price without touching the exchange's order API.
func (s *Service) Simulate(ctx context.Context, req Request) (*trade.Execution, error) {
	price := req.ReferencePrice
	if !price.IsPositive() {
		if s.market == nil {
			return nil, errors.Wrap(errors.ErrAdapterExecution, "no price available for simulation")
		}
		snap, err := s.market.GetMarketSnapshot(ctx, req.Intent.Symbol)
		if err != nil {
			return nil, errors.Wrap(err, "price for simulation")
		}
		price = snap.Price()
	}
	if !price.IsPositive() {
		return nil, errors.Wrapf(errors.ErrAdapterExecution, "no positive price for %s", req.Intent.Symbol)
	}

	exec := s.newExecution(req, price, req.Intent.Units(price))
	exec.Simulated = true

	metrics.Orders.WithLabelValues("simulated", "filled").Inc()
	s.log.Infow("Simulated trade",
		"session_id", req.SessionID,
		"symbol", req.Intent.Symbol,
		"side", req.Intent.Side,
		"notional_usd", req.Intent.Notional().StringFixed(2),
		"price", price.String(),
	)

	s.record(ctx, exec)
	return exec, nil
}

// Execute places the entry order and its protective orders while holding the account lock.
// At most one Execute runs per account at any time.
func (s *Service) Execute(ctx context.Context, req Request) (*trade.Execution, error) {
	if s.exchange == nil {
		return nil, exchanges.ErrTradingDisabled
	}

	waitStart := s.now()
	lockCtx, cancel := context.WithTimeout(ctx, s.cfg.LockTimeout)
	release, err := s.locker.Acquire(lockCtx, req.AccountID)
	cancel()
	metrics.LockWait.Observe(s.now().Sub(waitStart).Seconds())
	if err != nil {
		metrics.Orders.WithLabelValues("real", "lock_timeout").Inc()
		return nil, err
	}
	defer release()

	intent := req.Intent
	snap, err := s.exchange.GetMarketSnapshot(ctx, intent.Symbol)
	if err != nil {
		return nil, errors.Wrap(err, "price before entry")
	}
	price := snap.Price()
	units := intent.Units(price)
	if !units.IsPositive() {
		return nil, errors.Wrapf(exchanges.ErrInvalidRequest, "position of %s USD rounds to zero units", intent.Notional())
	}

	cloid := uuid.NewString()
	entry, err := s.exchange.PlaceOrder(ctx, &exchanges.OrderRequest{
		Symbol:        intent.Symbol,
		Side:          orderSide(intent.Side),
		Type:          exchanges.OrderTypeMarket,
		Quantity:      units,
		Price:         price,
		ClientOrderID: cloid,
	})
	if err != nil {
		if entryRejected(err) {
			metrics.Orders.WithLabelValues("real", "rejected").Inc()
			return nil, errors.Wrap(err, "entry order")
		}
		metrics.Orders.WithLabelValues("real", "unconfirmed").Inc()
		s.log.Errorw("Entry order outcome unknown",
			"session_id", req.SessionID,
			"symbol", intent.Symbol,
			"client_order_id", cloid,
			"error", err,
		)
		return nil, fmt.Errorf("entry order %s: %w: %w", cloid, errors.ErrOrderUnconfirmed, err)
	}
	metrics.Orders.WithLabelValues("real", string(entry.Status)).Inc()

	fillPrice := price
	if entry.AvgFillPrice.IsPositive() {
		fillPrice = entry.AvgFillPrice
	}
	filled := units
	if entry.Filled.IsPositive() {
		filled = entry.Filled
	}

	exec := s.newExecution(req, fillPrice, filled)
	exec.EntryOrderID = entry.ID

	var protectionErrs []string
	exit := orderSide(intent.Side.Opposite())

	stop, err := s.exchange.PlaceOrder(ctx, &exchanges.OrderRequest{
		Symbol:     intent.Symbol,
		Side:       exit,
		Type:       exchanges.OrderTypeStopMarket,
		Quantity:   filled,
		StopPrice:  exec.StopLossPrice,
		ReduceOnly: true,
	})
	if err != nil {
		protectionErrs = append(protectionErrs, "stop-loss: "+err.Error())
	} else {
		exec.StopOrderID = stop.ID
	}

	if intent.TakeProfit.IsPositive() {
		take, err := s.exchange.PlaceOrder(ctx, &exchanges.OrderRequest{
			Symbol:     intent.Symbol,
			Side:       exit,
			Type:       exchanges.OrderTypeTakeProfit,
			Quantity:   filled,
			StopPrice:  exec.TakeProfitPrice,
			ReduceOnly: true,
		})
		if err != nil {
			protectionErrs = append(protectionErrs, "take-profit: "+err.Error())
		} else {
			exec.TakeOrderID = take.ID
		}
	}

	if len(protectionErrs) > 0 {
		exec.ProtectionError = strings.Join(protectionErrs, "; ")
		s.log.Warnw("Entry filled but protective orders failed",
			"session_id", req.SessionID,
			"symbol", intent.Symbol,
			"entry_order_id", entry.ID,
			"error", exec.ProtectionError,
		)
	}

	s.log.Infow("Executed trade",
		"session_id", req.SessionID,
		"account_id", req.AccountID,
		"symbol", intent.Symbol,
		"side", intent.Side,
		"units", filled.String(),
		"entry_price", fillPrice.String(),
		"entry_order_id", entry.ID,
	)

	s.record(ctx, exec)
	return exec, nil
}

func (s *Service) newExecution(req Request, price, units decimal.Decimal) *trade.Execution {
	return &trade.Execution{
		ID:              uuid.NewString(),
		SessionID:       req.SessionID,
		AccountID:       req.AccountID,
		Intent:          req.Intent,
		Clamped:         req.Clamped,
		EntryPrice:      price,
		Units:           units,
		StopLossPrice:   req.Intent.StopLossPrice(price),
		TakeProfitPrice: req.Intent.TakeProfitPrice(price),
		ExecutedAt:      s.now().UTC(),
	}
}

// record fans the execution out to the configured sinks. Failures are logged and dropped.
func (s *Service) record(ctx context.Context, exec *trade.Execution) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.SinkTimeout)
	defer cancel()

	if s.sinks.Journal != nil {
		if err := s.sinks.Journal.RecordExecution(ctx, exec); err != nil {
			s.log.Warnw("Failed to journal execution", "execution_id", exec.ID, "error", err)
		}
	}
	if s.sinks.Events != nil {
		if err := s.sinks.Events.PublishTradeExecuted(ctx, exec); err != nil {
			s.log.Warnw("Failed to publish execution event", "execution_id", exec.ID, "error", err)
		}
	}
	if s.sinks.Notifier != nil {
		if err := s.sinks.Notifier.NotifyTrade(ctx, exec); err != nil {
			s.log.Warnw("Failed to send execution notification", "execution_id", exec.ID, "error", err)
		}
	}
}

// entryRejected reports whether the exchange definitely did not accept the order
func entryRejected(err error) bool {
	return errors.Is(err, errors.ErrOrderRejected) ||
		errors.Is(err, errors.ErrInvalidInput) ||
		errors.Is(err, errors.ErrInvalidSymbol) ||
		errors.Is(err, errors.ErrNotConfigured) ||
		errors.Is(err, errors.ErrRateLimitExceeded)
}

func orderSide(side trade.Side) exchanges.OrderSide {
	if side == trade.SideLong {
		return exchanges.OrderSideBuy
	}
	return exchanges.OrderSideSell
}
