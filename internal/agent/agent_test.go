package agent

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"hypertrader/internal/adapters/ai"
	"hypertrader/internal/adapters/exchanges"
	"hypertrader/internal/adapters/exchanges/synthetic"
	sentimentsource "hypertrader/internal/adapters/sentiment"
	"hypertrader/internal/events"
	"hypertrader/internal/services/execution"
	riskservice "hypertrader/internal/services/risk"
	"hypertrader/internal/tools"
	"hypertrader/internal/tools/catalog"
	"hypertrader/internal/tools/shared"
	"hypertrader/pkg/errors"
	"hypertrader/pkg/logger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// --- scripted model backend ---

type step func(ctx context.Context, req ai.ChatRequest) (*ai.ChatResponse, error)

type scriptedProvider struct {
	mu       sync.Mutex
	steps    []step
	fallback step
	requests []ai.ChatRequest
}

func script(steps ...step) *scriptedProvider {
	return &scriptedProvider{steps: steps, fallback: reply("done")}
}

func (p *scriptedProvider) Name() ai.ProviderName { return ai.ProviderNameOpenAI }

func (p *scriptedProvider) Chat(ctx context.Context, req ai.ChatRequest) (*ai.ChatResponse, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	next := p.fallback
	if len(p.steps) > 0 {
		next = p.steps[0]
		p.steps = p.steps[1:]
	}
	p.mu.Unlock()
	return next(ctx, req)
}

func (p *scriptedProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

func (p *scriptedProvider) lastRequest() ai.ChatRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requests[len(p.requests)-1]
}

func reply(text string) step {
	return func(context.Context, ai.ChatRequest) (*ai.ChatResponse, error) {
		return &ai.ChatResponse{Choices: []ai.Choice{{
			Message:      ai.Message{Role: ai.RoleAssistant, Content: text},
			FinishReason: ai.FinishReasonStop,
		}}}, nil
	}
}

func callTools(calls ...ai.ToolCall) step {
	return func(context.Context, ai.ChatRequest) (*ai.ChatResponse, error) {
		return &ai.ChatResponse{Choices: []ai.Choice{{
			Message:      ai.Message{Role: ai.RoleAssistant, ToolCalls: calls},
			FinishReason: ai.FinishReasonToolCalls,
		}}}, nil
	}
}

func call(id, name string, args map[string]interface{}) ai.ToolCall {
	data, _ := json.Marshal(args)
	return ai.ToolCall{ID: id, Name: name, Arguments: string(data)}
}

// --- collaborators ---

type fakeExchange struct {
	mu     sync.Mutex
	price  decimal.Decimal
	orders []exchanges.OrderRequest
}

func (f *fakeExchange) Name() string { return "fake" }

func (f *fakeExchange) GetMarketSnapshot(ctx context.Context, symbol string) (*exchanges.MarketSnapshot, error) {
	return &exchanges.MarketSnapshot{Symbol: symbol, MarkPrice: f.price, MidPrice: f.price}, nil
}

func (f *fakeExchange) GetOHLCV(ctx context.Context, symbol, interval string, limit int) ([]exchanges.OHLCV, error) {
	return nil, nil
}

func (f *fakeExchange) PlaceOrder(ctx context.Context, req *exchanges.OrderRequest) (*exchanges.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
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

type recordingEvents struct {
	mu         sync.Mutex
	violations []events.RiskViolation
	sessions   []events.SessionCompleted
}

func (r *recordingEvents) PublishRiskViolation(ctx context.Context, ev events.RiskViolation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.violations = append(r.violations, ev)
	return nil
}

func (r *recordingEvents) PublishSessionCompleted(ctx context.Context, ev events.SessionCompleted) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = append(r.sessions, ev)
	return nil
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func nd(s string) decimal.NullDecimal { return decimal.NewNullDecimal(d(s)) }

type harness struct {
	exchange *fakeExchange
	events   *recordingEvents
	registry *tools.Registry
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	exchange := &fakeExchange{price: decimal.NewFromInt(100)}
	executor := execution.NewService(exchange, exchange, execution.NewMemoryLocker(), execution.Sinks{}, execution.Config{})

	registry := tools.NewRegistry()
	require.NoError(t, catalog.RegisterAll(registry, shared.Deps{
		Log:       logger.Nop(),
		Market:    synthetic.NewMarket(),
		Sentiment: sentimentsource.NewSyntheticSource(),
		Risk: riskservice.NewPreTradeValidator(riskservice.Bounds{
			MaxPositionSize: d("0.1"),
			MaxStopLoss:     d("0.05"),
			MaxNotionalUSD:  d("1000"),
		}),
		Executor: executor,
		Defaults: shared.Defaults{Amount: d("100"), PositionSize: d("0.01"), StopLoss: d("0.02")},
	}))

	return &harness{exchange: exchange, events: &recordingEvents{}, registry: registry}
}

func (h *harness) agent(t *testing.T, provider ai.ChatProvider, mutate ...func(*Config)) *Agent {
	t.Helper()
	return newAgent(t, provider, h.registry, h.events, mutate...)
}

func newAgent(t *testing.T, provider ai.ChatProvider, registry *tools.Registry, sink EventSink, mutate ...func(*Config)) *Agent {
	t.Helper()
	cfg := DefaultConfig()
	cfg.AccountID = "acct-1"
	for _, m := range mutate {
		m(&cfg)
	}
	a, err := New(provider, registry, cfg, WithEvents(sink), WithLogger(logger.Nop()))
	require.NoError(t, err)
	return a
}

func runWithSession(a *Agent, req Request) (Outcome, *Session) {
	s := NewSession(a.cfg.AccountID)
	return a.run(context.Background(), s, req), s
}

func results(s *Session) []tools.Result {
	var out []tools.Result
	for _, t := range s.Turns() {
		if t.Kind == TurnToolResult {
			out = append(out, *t.Result)
		}
	}
	return out
}

func resultTools(s *Session) []string {
	var names []string
	for _, r := range results(s) {
		names = append(names, r.Tool)
	}
	return names
}

// --- tests ---

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, tools.NewRegistry(), DefaultConfig())
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	_, err = New(script(), tools.NewRegistry(), DefaultConfig())
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestRun_FinalAnswer(t *testing.T) {
	h := newHarness(t)
	provider := script(reply("BTC looks neutral today."))
	a := h.agent(t, provider)

	out := a.Run(context.Background(), Request{Prompt: "how is btc", Symbol: "btc", DryRun: true})

	assert.Equal(t, StatusCompleted, out.Status)
	assert.Equal(t, "BTC looks neutral today.", out.Answer)
	assert.Equal(t, 1, out.Steps)
	assert.False(t, out.TradeExecuted)
	assert.Nil(t, out.Err())
	assert.NotEmpty(t, out.SessionID)

	req := provider.lastRequest()
	assert.Len(t, req.Tools, 4)
	assert.Equal(t, "get_market_data", req.Tools[0].Name)
	assert.Contains(t, req.System, "symbol: BTC")
	assert.Contains(t, req.System, "dry_run: true")
	require.Len(t, req.Messages, 1)
	assert.Equal(t, ai.RoleUser, req.Messages[0].Role)

	require.Len(t, h.events.sessions, 1)
	assert.Equal(t, "completed", h.events.sessions[0].Status)
}

func TestRun_EmptyPrompt(t *testing.T) {
	h := newHarness(t)
	provider := script()
	out := h.agent(t, provider).Run(context.Background(), Request{Prompt: "   ", Symbol: "BTC"})

	assert.True(t, out.Failed())
	assert.Equal(t, errors.KindInvalidArguments, out.ErrorKind)
	assert.Zero(t, provider.calls())
}

func TestRun_UnknownToolContinues(t *testing.T) {
	h := newHarness(t)
	provider := script(
		callTools(call("c1", "shortsell_unlimited", map[string]interface{}{"symbol": "BTC"})),
		reply("That tool does not exist, here is my analysis instead."),
	)
	a := h.agent(t, provider)

	out, session := runWithSession(a, Request{Prompt: "short everything", Symbol: "BTC", DryRun: true})

	assert.Equal(t, StatusCompleted, out.Status)
	assert.Equal(t, 2, out.Steps)

	res := results(session)
	require.Len(t, res, 1)
	assert.Equal(t, errors.KindUnknownTool, res[0].ErrorKind)
	assert.Equal(t, "c1", res[0].CallID)

	msgs := provider.lastRequest().Messages
	last := msgs[len(msgs)-1]
	assert.Equal(t, ai.RoleTool, last.Role)
	assert.Equal(t, "c1", last.ToolCallID)
	assert.Contains(t, last.Content, "UnknownToolError")
}

func TestRun_InvalidArgumentsContinue(t *testing.T) {
	tests := []struct {
		name string
		call ai.ToolCall
	}{
		{name: "wrong type", call: call("c1", "get_market_data", map[string]interface{}{"symbol": "BTC", "lookback": "lots"})},
		{name: "out of range", call: call("c1", "get_market_data", map[string]interface{}{"symbol": "BTC", "lookback": 5})},
		{name: "bad enum", call: call("c1", "get_market_data", map[string]interface{}{"symbol": "BTC", "interval": "7m"})},
		{name: "malformed json", call: ai.ToolCall{ID: "c1", Name: "get_market_data", Arguments: `{"symbol": "BTC"`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			a := h.agent(t, script(callTools(tt.call), reply("retrying later")))

			out, session := runWithSession(a, Request{Prompt: "market data", Symbol: "BTC", DryRun: true})

			assert.Equal(t, StatusCompleted, out.Status)
			res := results(session)
			require.Len(t, res, 1)
			assert.Equal(t, errors.KindInvalidArguments, res[0].ErrorKind)
		})
	}
}

func TestRun_MissingRequiredArgument(t *testing.T) {
	h := newHarness(t)
	a := h.agent(t, script(callTools(call("c1", "analyze_sentiment", nil)), reply("ok")))

	// no request symbol to inject
	out, session := runWithSession(a, Request{Prompt: "sentiment please"})

	assert.Equal(t, StatusCompleted, out.Status)
	res := results(session)
	require.Len(t, res, 1)
	assert.Equal(t, errors.KindInvalidArguments, res[0].ErrorKind)
	assert.Contains(t, res[0].Error, "symbol")
}

func TestRun_StepLimit(t *testing.T) {
	h := newHarness(t)
	provider := script()
	provider.fallback = callTools(call("", "get_market_data", map[string]interface{}{"symbol": "BTC"}))
	a := h.agent(t, provider, func(c *Config) { c.MaxSteps = 3 })

	out, session := runWithSession(a, Request{Prompt: "loop forever", Symbol: "BTC", DryRun: true})

	assert.True(t, out.Failed())
	assert.Equal(t, errors.KindStepLimitExceeded, out.ErrorKind)
	assert.ErrorIs(t, out.Err(), errors.ErrStepLimitExceeded)
	assert.Equal(t, 3, out.Steps)
	assert.Equal(t, 3, provider.calls())
	assert.Len(t, results(session), 3)
	assert.Zero(t, session.Pending())
}

func TestRun_DryRunNeverReachesExchange(t *testing.T) {
	h := newHarness(t)
	a := h.agent(t, script(
		// the model tries to switch the dry run off
		callTools(call("c1", "execute_trade", map[string]interface{}{"symbol": "BTC", "side": "long", "dry_run": false})),
		reply("Simulated a long."),
	))

	out := a.Run(context.Background(), Request{Prompt: "buy btc", Symbol: "BTC", DryRun: true})

	assert.Equal(t, StatusCompleted, out.Status)
	assert.True(t, out.TradeExecuted)
	assert.True(t, out.Simulated)
	assert.Equal(t, true, out.Trade["simulated"])
	assert.Empty(t, h.exchange.placed())
}

func TestRun_RiskViolationEndsRequest(t *testing.T) {
	for _, dryRun := range []bool{true, false} {
		t.Run("dry_run="+strconv.FormatBool(dryRun), func(t *testing.T) {
			h := newHarness(t)
			provider := script(
				callTools(call("c1", "execute_trade", map[string]interface{}{"symbol": "BTC", "side": "long"})),
				reply("should never be asked"),
			)
			a := h.agent(t, provider)

			out := a.Run(context.Background(), Request{
				Prompt:       "go big",
				Symbol:       "BTC",
				PositionSize: nd("0.5"),
				StopLoss:     nd("0.02"),
				DryRun:       dryRun,
			})

			assert.True(t, out.Failed())
			assert.Equal(t, errors.KindRiskBoundsViolation, out.ErrorKind)
			assert.Contains(t, out.Answer, "position_size")
			assert.False(t, out.TradeExecuted)
			assert.Equal(t, 1, provider.calls())
			assert.Empty(t, h.exchange.placed())

			require.Len(t, h.events.violations, 1)
			assert.Equal(t, "execute_trade", h.events.violations[0].Tool)
			assert.Equal(t, "acct-1", h.events.violations[0].AccountID)
			assert.NotEmpty(t, h.events.violations[0].Violations)
		})
	}
}

func TestRun_RealTradeGuard(t *testing.T) {
	h := newHarness(t)
	provider := script(
		callTools(
			call("c1", "execute_trade", map[string]interface{}{"symbol": "BTC", "side": "long"}),
			call("c2", "get_market_data", map[string]interface{}{"symbol": "BTC"}),
		),
	)
	a := h.agent(t, provider)

	out, session := runWithSession(a, Request{Prompt: "buy btc for real", Symbol: "BTC"})

	assert.True(t, out.Failed())
	assert.Equal(t, errors.KindRiskBoundsViolation, out.ErrorKind)
	assert.Empty(t, h.exchange.placed())

	res := results(session)
	require.Len(t, res, 2)
	assert.Contains(t, res[0].Error, "explicit position_size and stop_loss")
	assert.Equal(t, skippedCallMessage, res[1].Error)
	assert.Zero(t, session.Pending())
	_, err := session.Messages()
	assert.NoError(t, err)
}

func TestRun_RealTradeWithExplicitSizing(t *testing.T) {
	tests := []struct {
		name string
		args map[string]interface{}
		req  Request
	}{
		{
			name: "from request",
			args: map[string]interface{}{"symbol": "BTC", "side": "long"},
			req:  Request{PositionSize: nd("0.05"), StopLoss: nd("0.02")},
		},
		{
			name: "from arguments",
			args: map[string]interface{}{"symbol": "BTC", "side": "long", "position_size": 0.05, "stop_loss": 0.02},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			a := h.agent(t, script(callTools(call("c1", "execute_trade", tt.args)), reply("Bought BTC.")))

			req := tt.req
			req.Prompt = "buy btc"
			req.Symbol = "BTC"
			req.Amount = nd("100")
			out := a.Run(context.Background(), req)

			require.Equal(t, StatusCompleted, out.Status, out.Error)
			assert.True(t, out.TradeExecuted)
			assert.False(t, out.Simulated)
			assert.Equal(t, false, out.Trade["simulated"])

			orders := h.exchange.placed()
			require.NotEmpty(t, orders)
			assert.Equal(t, exchanges.OrderTypeMarket, orders[0].Type)
			assert.True(t, orders[0].Quantity.Equal(d("0.05")), orders[0].Quantity.String())
		})
	}
}

func TestRun_DuplicateTradeIntentRejected(t *testing.T) {
	h := newHarness(t)
	args := map[string]interface{}{"symbol": "BTC", "side": "long"}
	a := h.agent(t, script(
		callTools(call("c1", "execute_trade", args), call("c2", "execute_trade", args)),
		reply("One simulated long."),
	))

	out, session := runWithSession(a, Request{Prompt: "buy btc twice", Symbol: "BTC", DryRun: true})

	assert.Equal(t, StatusCompleted, out.Status)
	assert.True(t, out.TradeExecuted)
	res := results(session)
	require.Len(t, res, 2)
	assert.True(t, res[0].OK())
	assert.Equal(t, errors.KindDuplicateTradeIntent, res[1].ErrorKind)
}

func TestRun_AdapterFailureBudget(t *testing.T) {
	flakyRegistry := func(calls *int) *tools.Registry {
		registry := tools.NewRegistry()
		registry.MustRegister(tools.New(
			tools.NewSpec("flaky_feed", "Always fails").Build(),
			func(ctx context.Context, args tools.Args) (map[string]interface{}, error) {
				*calls++
				return nil, errors.New("feed connection reset")
			},
		))
		return registry
	}
	flaky := callTools(call("", "flaky_feed", nil))

	t.Run("within budget", func(t *testing.T) {
		var calls int
		a := newAgent(t, script(flaky, flaky, reply("feed is down")), flakyRegistry(&calls), &recordingEvents{})

		out := a.Run(context.Background(), Request{Prompt: "read the feed", DryRun: true})

		assert.Equal(t, StatusCompleted, out.Status)
		assert.Equal(t, "feed is down", out.Answer)
		assert.Equal(t, 2, calls)
	})

	t.Run("budget exceeded", func(t *testing.T) {
		var calls int
		provider := script(flaky, flaky, flaky, reply("never reached"))
		a := newAgent(t, provider, flakyRegistry(&calls), &recordingEvents{})

		out := a.Run(context.Background(), Request{Prompt: "read the feed", DryRun: true})

		assert.True(t, out.Failed())
		assert.Equal(t, errors.KindAdapterExecution, out.ErrorKind)
		assert.Contains(t, out.Answer, "feed connection reset")
		assert.Equal(t, 3, calls)
		assert.Equal(t, 3, provider.calls())
	})
}

func TestRun_ModelTimeout(t *testing.T) {
	h := newHarness(t)
	blocking := func(ctx context.Context, req ai.ChatRequest) (*ai.ChatResponse, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	a := h.agent(t, script(blocking), func(c *Config) { c.ModelTimeout = 20 * time.Millisecond })

	out := a.Run(context.Background(), Request{Prompt: "hello", Symbol: "BTC", DryRun: true})

	assert.True(t, out.Failed())
	assert.Equal(t, errors.KindModelBackend, out.ErrorKind)
	assert.Contains(t, out.Error, "timed out")
}

func TestRun_MalformedModelResponses(t *testing.T) {
	tests := []struct {
		name string
		step step
	}{
		{name: "backend error", step: func(context.Context, ai.ChatRequest) (*ai.ChatResponse, error) {
			return nil, errors.Wrap(errors.ErrExternal, "502 bad gateway")
		}},
		{name: "nil response", step: func(context.Context, ai.ChatRequest) (*ai.ChatResponse, error) { return nil, nil }},
		{name: "no choices", step: func(context.Context, ai.ChatRequest) (*ai.ChatResponse, error) {
			return &ai.ChatResponse{}, nil
		}},
		{name: "empty content", step: reply("   ")},
		{name: "nameless tool call", step: callTools(ai.ToolCall{ID: "c1", Arguments: "{}"})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			out := h.agent(t, script(tt.step)).Run(context.Background(), Request{Prompt: "hello", Symbol: "BTC", DryRun: true})

			assert.True(t, out.Failed())
			assert.Equal(t, errors.KindModelBackend, out.ErrorKind)
			assert.ErrorIs(t, out.Err(), errors.ErrModelBackend)
		})
	}
}

func TestRun_SequentialCallsSeeEarlierResults(t *testing.T) {
	var order []string
	registry := tools.NewRegistry()
	registry.MustRegister(tools.New(tools.NewSpec("first", "first").Build(),
		func(ctx context.Context, args tools.Args) (map[string]interface{}, error) {
			order = append(order, "first")
			return map[string]interface{}{"value": 42.0}, nil
		}))
	registry.MustRegister(tools.New(tools.NewSpec("second", "second").Build(),
		func(ctx context.Context, args tools.Args) (map[string]interface{}, error) {
			order = append(order, "second")
			p, ok := shared.LatestPayload(ctx, "first")
			if !ok {
				return nil, errors.Wrap(errors.ErrAdapterExecution, "first result not visible")
			}
			return map[string]interface{}{"saw": p["value"]}, nil
		}))

	a := newAgent(t, script(callTools(call("a", "first", nil), call("b", "second", nil)), reply("ok")), registry, &recordingEvents{})
	out, session := runWithSession(a, Request{Prompt: "chain", DryRun: true})

	assert.Equal(t, StatusCompleted, out.Status)
	assert.Equal(t, []string{"first", "second"}, order)
	res := results(session)
	require.Len(t, res, 2)
	assert.True(t, res[1].OK())
	assert.Equal(t, 42.0, res[1].Payload["saw"])
}

func TestRun_InjectsRequestContext(t *testing.T) {
	h := newHarness(t)
	a := h.agent(t, script(callTools(call("c1", "get_market_data", nil)), reply("ok")))

	out, session := runWithSession(a, Request{Prompt: "price", Symbol: "eth", DryRun: true})

	assert.Equal(t, StatusCompleted, out.Status)
	res := results(session)
	require.Len(t, res, 1)
	require.True(t, res[0].OK(), res[0].Error)
	assert.Equal(t, "ETH", res[0].Payload["symbol"])
}

func TestRun_InjectedAmountKeepsExactValue(t *testing.T) {
	var seen decimal.Decimal
	registry := tools.NewRegistry()
	registry.MustRegister(tools.New(
		tools.NewSpec("size_order", "size an order").Optional("amount", tools.TypeNumber, "USD capital").Build(),
		func(ctx context.Context, args tools.Args) (map[string]interface{}, error) {
			seen, _ = args.Decimal("amount")
			return map[string]interface{}{"amount": seen.String()}, nil
		}))

	a := newAgent(t, script(callTools(call("c1", "size_order", nil)), reply("ok")), registry, &recordingEvents{})
	out, _ := runWithSession(a, Request{Prompt: "size it", DryRun: true, Amount: nd("1234.567890123456789")})

	require.Equal(t, StatusCompleted, out.Status, out.Error)
	assert.Equal(t, "1234.567890123456789", seen.String())
}

func TestScenario_AnalyzeSentimentDryRun(t *testing.T) {
	h := newHarness(t)
	recommend := func(ctx context.Context, req ai.ChatRequest) (*ai.ChatResponse, error) {
		direction := "HOLD"
		for _, m := range req.Messages {
			if m.Role != ai.RoleTool || m.Name != "make_trading_decision" {
				continue
			}
			var content struct {
				Data map[string]interface{} `json:"data"`
			}
			if err := json.Unmarshal([]byte(m.Content), &content); err == nil {
				direction, _ = content.Data["direction"].(string)
			}
		}
		return reply("Recommendation for BTC: " + direction)(ctx, req)
	}
	a := h.agent(t, script(
		callTools(
			call("c1", "analyze_sentiment", map[string]interface{}{"symbol": "BTC"}),
			call("c2", "get_market_data", map[string]interface{}{"symbol": "BTC"}),
		),
		callTools(call("c3", "make_trading_decision", map[string]interface{}{"symbol": "BTC"})),
		recommend,
	))

	out, session := runWithSession(a, Request{Prompt: "analyze sentiment", Symbol: "BTC", DryRun: true})

	require.Equal(t, StatusCompleted, out.Status, out.Error)
	assert.Equal(t, []string{"analyze_sentiment", "get_market_data", "make_trading_decision"}, resultTools(session))
	for _, r := range results(session) {
		assert.True(t, r.OK(), "%s: %s", r.Tool, r.Error)
	}
	assert.Regexp(t, `Recommendation for BTC: (LONG|SHORT|NEUTRAL)$`, out.Answer)
	assert.False(t, out.TradeExecuted)
	assert.Empty(t, h.exchange.placed())
}

func TestScenario_PriceActionTradeOnETH(t *testing.T) {
	h := newHarness(t)
	a := h.agent(t, script(
		callTools(call("c1", "get_market_data", map[string]interface{}{"symbol": "ETH"})),
		callTools(call("c2", "make_trading_decision", map[string]interface{}{"symbol": "ETH"})),
		callTools(call("c3", "execute_trade", map[string]interface{}{"symbol": "ETH", "side": "long"})),
		reply("Opened a simulated LONG on ETH."),
	))

	out, session := runWithSession(a, Request{Prompt: "execute a trade based on price action", Symbol: "ETH", DryRun: true})

	require.Equal(t, StatusCompleted, out.Status, out.Error)
	assert.Equal(t, []string{"get_market_data", "make_trading_decision", "execute_trade"}, resultTools(session))
	assert.True(t, out.TradeExecuted)
	assert.True(t, out.Simulated)
	assert.Equal(t, "ETH", out.Trade["symbol"])
	assert.Equal(t, true, out.Trade["simulated"])
	assert.Empty(t, h.exchange.placed())
	assert.Equal(t, 4, out.Steps)
	assert.Equal(t, 3, out.ToolCalls)
}

func TestConversation_ReusesSession(t *testing.T) {
	h := newHarness(t)
	provider := script(reply("Hello."), reply("Still here."))
	conv := h.agent(t, provider).NewConversation(Request{Symbol: "BTC", DryRun: true})

	first := conv.Send(context.Background(), "hi")
	second := conv.Send(context.Background(), "again")

	assert.Equal(t, "Hello.", first.Answer)
	assert.Equal(t, "Still here.", second.Answer)
	assert.Equal(t, first.SessionID, second.SessionID)
	assert.Len(t, provider.lastRequest().Messages, 3)

	conv.Close()
	assert.Nil(t, conv.Session())
	closed := conv.Send(context.Background(), "anyone?")
	assert.True(t, closed.Failed())
	assert.Equal(t, ErrConversationClosed.Error(), closed.Error)
	assert.Equal(t, 2, provider.calls())
}

func TestRun_ConcurrentRequests(t *testing.T) {
	h := newHarness(t)
	provider := script()
	provider.fallback = func(ctx context.Context, req ai.ChatRequest) (*ai.ChatResponse, error) {
		if last := req.Messages[len(req.Messages)-1]; last.Role == ai.RoleTool {
			return reply("done")(ctx, req)
		}
		return callTools(call("c1", "get_market_data", nil))(ctx, req)
	}
	a := h.agent(t, provider)

	const n = 8
	outcomes := make([]Outcome, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i] = a.Run(context.Background(), Request{Prompt: "price", Symbol: "SOL", DryRun: true})
		}(i)
	}
	wg.Wait()

	ids := map[string]bool{}
	for _, out := range outcomes {
		assert.Equal(t, StatusCompleted, out.Status)
		assert.Equal(t, 2, out.Steps)
		ids[out.SessionID] = true
	}
	assert.Len(t, ids, n)
}

type recordingTracker struct {
	mu          sync.Mutex
	messages    []string
	tags        []map[string]string
	breadcrumbs []string
}

func (r *recordingTracker) CaptureError(context.Context, error, map[string]string) error { return nil }

func (r *recordingTracker) CaptureMessage(ctx context.Context, msg string, level errors.Level, tags map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
	r.tags = append(r.tags, tags)
	return nil
}

func (r *recordingTracker) SetAccount(context.Context, string) {}

func (r *recordingTracker) AddBreadcrumb(ctx context.Context, msg, category string, level errors.Level, data map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.breadcrumbs = append(r.breadcrumbs, category+":"+msg)
}

func (r *recordingTracker) Flush(context.Context) error { return nil }

func TestRun_TrackerReportsUnexpectedFailures(t *testing.T) {
	h := newHarness(t)
	provider := script()
	provider.fallback = callTools(call("", "get_market_data", map[string]interface{}{"symbol": "BTC"}))

	tracker := &recordingTracker{}
	cfg := DefaultConfig()
	cfg.MaxSteps = 2
	a, err := New(provider, h.registry, cfg, WithLogger(logger.Nop()), WithTracker(tracker))
	require.NoError(t, err)

	out := a.Run(context.Background(), Request{Prompt: "loop", Symbol: "BTC", DryRun: true})
	require.Equal(t, errors.KindStepLimitExceeded, out.ErrorKind)

	require.Len(t, tracker.messages, 1)
	assert.Equal(t, "StepLimitExceeded", tracker.tags[0]["error_kind"])
	assert.Equal(t, out.SessionID, tracker.tags[0]["session_id"])
	assert.Equal(t, []string{
		"model:model replied", "tool:get_market_data",
		"model:model replied", "tool:get_market_data",
	}, tracker.breadcrumbs)
}

func TestRun_TrackerIgnoresGuardRejections(t *testing.T) {
	h := newHarness(t)
	tracker := &recordingTracker{}
	a, err := New(script(
		callTools(call("c1", "execute_trade", map[string]interface{}{"symbol": "BTC", "side": "long", "position_size": 0.9})),
	), h.registry, DefaultConfig(), WithLogger(logger.Nop()), WithTracker(tracker))
	require.NoError(t, err)

	out := a.Run(context.Background(), Request{Prompt: "all in", Symbol: "BTC", DryRun: true})
	require.Equal(t, errors.KindRiskBoundsViolation, out.ErrorKind)
	assert.Empty(t, tracker.messages)
	assert.Contains(t, tracker.breadcrumbs, "tool:execute_trade")
}
