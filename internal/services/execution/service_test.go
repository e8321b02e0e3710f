package execution

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hypertrader/internal/adapters/exchanges"
	"hypertrader/internal/domain/trade"
	"hypertrader/pkg/errors"
)

type fakeExchange struct {
	mu        sync.Mutex
	price     decimal.Decimal
	orders    []exchanges.OrderRequest
	failTypes map[exchanges.OrderType]error
	delay     time.Duration

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newFakeExchange(price int64) *fakeExchange {
	return &fakeExchange{price: decimal.NewFromInt(price), failTypes: map[exchanges.OrderType]error{}}
}

func (f *fakeExchange) Name() string { return "fake" }

func (f *fakeExchange) GetMarketSnapshot(ctx context.Context, symbol string) (*exchanges.MarketSnapshot, error) {
	return &exchanges.MarketSnapshot{Symbol: symbol, MarkPrice: f.price, MidPrice: f.price}, nil
}

func (f *fakeExchange) GetOHLCV(ctx context.Context, symbol, interval string, limit int) ([]exchanges.OHLCV, error) {
	return nil, nil
}

func (f *fakeExchange) PlaceOrder(ctx context.Context, req *exchanges.OrderRequest) (*exchanges.Order, error) {
	if req.Type == exchanges.OrderTypeMarket {
		n := f.inFlight.Add(1)
		defer f.inFlight.Add(-1)
		for {
			m := f.maxInFlight.Load()
			if n <= m || f.maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failTypes[req.Type]; err != nil {
		return nil, err
	}
	f.orders = append(f.orders, *req)

	order := &exchanges.Order{ID: strconv.Itoa(len(f.orders)), Symbol: req.Symbol, Side: req.Side, Type: req.Type, Status: exchanges.OrderStatusOpen}
	if req.Type == exchanges.OrderTypeMarket {
		order.Status = exchanges.OrderStatusFilled
		order.Filled = req.Quantity
		order.AvgFillPrice = f.price
	}
	return order, nil
}

func (f *fakeExchange) placed() []exchanges.OrderRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]exchanges.OrderRequest(nil), f.orders...)
}

type recordingSinks struct {
	mu       sync.Mutex
	journal  []*trade.Execution
	events   []*trade.Execution
	notified []*trade.Execution
	err      error
}

func (r *recordingSinks) RecordExecution(ctx context.Context, e *trade.Execution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.journal = append(r.journal, e)
	return r.err
}

func (r *recordingSinks) PublishTradeExecuted(ctx context.Context, e *trade.Execution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.err
}

func (r *recordingSinks) NotifyTrade(ctx context.Context, e *trade.Execution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notified = append(r.notified, e)
	return r.err
}

func longIntent() trade.Intent {
	return trade.Intent{
		Symbol:       "BTC",
		Side:         trade.SideLong,
		Amount:       decimal.NewFromInt(1000),
		PositionSize: decimal.RequireFromString("0.1"),
		StopLoss:     decimal.RequireFromString("0.02"),
		TakeProfit:   decimal.RequireFromString("0.04"),
	}
}

func TestService_Simulate(t *testing.T) {
	ex := newFakeExchange(50000)
	sinks := &recordingSinks{}
	svc := NewService(ex, nil, nil, Sinks{Journal: sinks, Events: sinks, Notifier: sinks}, Config{})

	exec, err := svc.Simulate(context.Background(), Request{SessionID: "s1", AccountID: "acct", Intent: longIntent(), ReferencePrice: decimal.NewFromInt(40000)})
	require.NoError(t, err)

	assert.True(t, exec.Simulated)
	assert.Empty(t, ex.placed(), "dry run must not place orders")
	assert.Equal(t, "40000", exec.EntryPrice.String(), "reference price wins over a fresh quote")
	assert.Equal(t, "0.0025", exec.Units.String())
	assert.Equal(t, "39200", exec.StopLossPrice.String())
	assert.Equal(t, "41600", exec.TakeProfitPrice.String())
	assert.Len(t, sinks.journal, 1)
	assert.Len(t, sinks.events, 1)
	assert.Len(t, sinks.notified, 1)
}

func TestService_SimulateFetchesPriceWithoutReference(t *testing.T) {
	svc := NewService(nil, newFakeExchange(2000), nil, Sinks{}, Config{})

	exec, err := svc.Simulate(context.Background(), Request{Intent: longIntent()})
	require.NoError(t, err)
	assert.Equal(t, "2000", exec.EntryPrice.String())
}

func TestService_ExecutePlacesEntryAndProtection(t *testing.T) {
	ex := newFakeExchange(50000)
	svc := NewService(ex, nil, NewMemoryLocker(), Sinks{}, Config{})

	exec, err := svc.Execute(context.Background(), Request{SessionID: "s1", AccountID: "acct", Intent: longIntent()})
	require.NoError(t, err)

	orders := ex.placed()
	require.Len(t, orders, 3)

	assert.Equal(t, exchanges.OrderTypeMarket, orders[0].Type)
	assert.Equal(t, exchanges.OrderSideBuy, orders[0].Side)
	assert.Equal(t, "0.002", orders[0].Quantity.String())
	assert.NotEmpty(t, orders[0].ClientOrderID)

	assert.Equal(t, exchanges.OrderTypeStopMarket, orders[1].Type)
	assert.Equal(t, exchanges.OrderSideSell, orders[1].Side)
	assert.True(t, orders[1].ReduceOnly)
	assert.Equal(t, "49000", orders[1].StopPrice.String())

	assert.Equal(t, exchanges.OrderTypeTakeProfit, orders[2].Type)
	assert.Equal(t, "52000", orders[2].StopPrice.String())

	assert.False(t, exec.Simulated)
	assert.Equal(t, "1", exec.EntryOrderID)
	assert.Equal(t, "2", exec.StopOrderID)
	assert.Equal(t, "3", exec.TakeOrderID)
	assert.Empty(t, exec.ProtectionError)
}

func TestService_ExecuteReportsProtectionFailure(t *testing.T) {
	ex := newFakeExchange(50000)
	ex.failTypes[exchanges.OrderTypeStopMarket] = errors.Wrap(errors.ErrOrderRejected, "trigger too close")
	svc := NewService(ex, nil, nil, Sinks{}, Config{})

	exec, err := svc.Execute(context.Background(), Request{AccountID: "acct", Intent: longIntent()})
	require.NoError(t, err, "the entry filled, so the execution is reported")
	assert.Contains(t, exec.ProtectionError, "stop-loss")
	assert.Empty(t, exec.StopOrderID)
	assert.NotEmpty(t, exec.TakeOrderID)
}

func TestService_ExecuteEntryRejected(t *testing.T) {
	ex := newFakeExchange(50000)
	ex.failTypes[exchanges.OrderTypeMarket] = errors.Wrap(errors.ErrOrderRejected, "insufficient margin")
	sinks := &recordingSinks{}
	svc := NewService(ex, nil, nil, Sinks{Journal: sinks}, Config{})

	_, err := svc.Execute(context.Background(), Request{AccountID: "acct", Intent: longIntent()})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrOrderRejected))
	assert.Equal(t, errors.KindAdapterExecution, errors.KindOf(err))
	assert.Empty(t, sinks.journal)
}

func TestService_ExecuteEntryOutcomeUnknown(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "exchange unavailable", err: errors.Wrap(errors.ErrExchangeUnavailable, "hyperliquid /exchange: 502")},
		{name: "deadline", err: context.DeadlineExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := newFakeExchange(50000)
			ex.failTypes[exchanges.OrderTypeMarket] = tt.err
			svc := NewService(ex, nil, nil, Sinks{}, Config{})

			_, err := svc.Execute(context.Background(), Request{AccountID: "acct", Intent: longIntent()})
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrOrderUnconfirmed))
			assert.True(t, errors.Is(err, tt.err))
			assert.Equal(t, errors.KindAdapterExecution, errors.KindOf(err))
		})
	}

	ex := newFakeExchange(50000)
	ex.failTypes[exchanges.OrderTypeMarket] = errors.Wrap(errors.ErrOrderRejected, "insufficient margin")
	_, err := NewService(ex, nil, nil, Sinks{}, Config{}).Execute(context.Background(), Request{AccountID: "acct", Intent: longIntent()})
	assert.False(t, errors.Is(err, errors.ErrOrderUnconfirmed), "a rejection is a definite outcome")
}

func TestService_ExecuteWithoutExchange(t *testing.T) {
	svc := NewService(nil, newFakeExchange(1), nil, Sinks{}, Config{})

	_, err := svc.Execute(context.Background(), Request{AccountID: "acct", Intent: longIntent()})
	assert.True(t, errors.Is(err, errors.ErrNotConfigured))
}

func TestService_OneInFlightOrderPerAccount(t *testing.T) {
	ex := newFakeExchange(50000)
	ex.delay = 5 * time.Millisecond
	svc := NewService(ex, nil, NewMemoryLocker(), Sinks{}, Config{LockTimeout: 5 * time.Second})

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Execute(context.Background(), Request{AccountID: "shared", Intent: longIntent()})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), ex.maxInFlight.Load())
	assert.Len(t, ex.placed(), 18)
}

func TestService_SinkFailuresAreIgnored(t *testing.T) {
	sinks := &recordingSinks{err: errors.New("broker down")}
	svc := NewService(nil, newFakeExchange(100), nil, Sinks{Journal: sinks, Events: sinks, Notifier: sinks}, Config{})

	exec, err := svc.Simulate(context.Background(), Request{Intent: longIntent()})
	require.NoError(t, err)
	assert.NotNil(t, exec)
	assert.Len(t, sinks.notified, 1)
}
