package agent

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"hypertrader/internal/adapters/ai"
	"hypertrader/internal/events"
	"hypertrader/internal/metrics"
	"hypertrader/internal/tools"
	"hypertrader/internal/tools/shared"
	"hypertrader/pkg/errors"
	"hypertrader/pkg/logger"
)

// Config bounds the dispatch loop
type Config struct {
	Model       string
	Temperature float64
	MaxTokens   int

	// MaxSteps is the number of model round trips allowed per request
	MaxSteps     int
	ModelTimeout time.Duration
	// AdapterFailureBudget is how many AdapterExecutionError results are fed back
	// to the model before the request ends
	AdapterFailureBudget int
	AccountID            string
	// SinkTimeout bounds best-effort event publishing after a request
	SinkTimeout time.Duration
}

// DefaultConfig returns the loop defaults
func DefaultConfig() Config {
	return Config{
		Temperature:          0.1,
		MaxTokens:            1024,
		MaxSteps:             10,
		ModelTimeout:         60 * time.Second,
		AdapterFailureBudget: 2,
		AccountID:            "default",
		SinkTimeout:          5 * time.Second,
	}
}

// EventSink receives agent-level events. Publishing is best effort.
type EventSink interface {
	PublishRiskViolation(ctx context.Context, ev events.RiskViolation) error
	PublishSessionCompleted(ctx context.Context, ev events.SessionCompleted) error
}

var _ EventSink = (*events.Publisher)(nil)

// Request is one user request
type Request struct {
	Prompt string
	Symbol string
	// Explicit execution parameters. Unset fields were not given by the user.
	Amount       decimal.NullDecimal
	PositionSize decimal.NullDecimal
	StopLoss     decimal.NullDecimal
	TakeProfit   decimal.NullDecimal
	DryRun       bool
}

func (r Request) normalized() Request {
	r.Prompt = strings.TrimSpace(r.Prompt)
	r.Symbol = strings.ToUpper(strings.TrimSpace(r.Symbol))
	return r
}

func (r Request) params() shared.ExecParams {
	return shared.ExecParams{
		Amount:       r.Amount,
		PositionSize: r.PositionSize,
		StopLoss:     r.StopLoss,
		TakeProfit:   r.TakeProfit,
	}
}

// Status is the terminal status of a request
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Outcome is what the caller always gets back from a request
type Outcome struct {
	SessionID     string
	Status        Status
	Answer        string
	TradeExecuted bool
	Trade         map[string]interface{}
	Simulated     bool
	ErrorKind     errors.Kind
	Error         string
	Steps         int
	ToolCalls     int
	Duration      time.Duration
}

// Failed reports whether the request ended with an error
func (o Outcome) Failed() bool {
	return o.Status == StatusFailed
}

// Err returns the failure as an error matching the kind's sentinel, or nil
func (o Outcome) Err() error {
	if !o.Failed() {
		return nil
	}
	if sentinel := o.ErrorKind.Sentinel(); sentinel != nil {
		return errors.Wrap(sentinel, o.Error)
	}
	return errors.New(o.Error)
}

// Option configures an Agent
type Option func(*Agent)

// WithEvents publishes risk violations and session summaries to sink
func WithEvents(sink EventSink) Option {
	return func(a *Agent) { a.events = sink }
}

// WithTracker records model and tool steps as breadcrumbs and reports
// requests that fail for reasons other than a guard rejecting them
func WithTracker(t errors.Tracker) Option {
	return func(a *Agent) { a.tracker = t }
}

// WithLogger overrides the component logger
func WithLogger(log *logger.Logger) Option {
	return func(a *Agent) { a.log = log }
}

// Agent drives the model/tool dispatch loop. It is safe for concurrent requests:
// each request owns its Session and the registry is read-only.
type Agent struct {
	provider ai.ChatProvider
	registry *tools.Registry
	cfg      Config
	events   EventSink
	tracker  errors.Tracker
	log      *logger.Logger
}

// New creates an agent over a populated registry
func New(provider ai.ChatProvider, registry *tools.Registry, cfg Config, opts ...Option) (*Agent, error) {
	if provider == nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "chat provider is required")
	}
	if registry == nil || registry.Len() == 0 {
		return nil, errors.Wrap(errors.ErrInvalidInput, "tool registry is empty")
	}

	def := DefaultConfig()
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = def.MaxSteps
	}
	if cfg.AdapterFailureBudget < 0 {
		cfg.AdapterFailureBudget = def.AdapterFailureBudget
	}
	if cfg.AccountID == "" {
		cfg.AccountID = def.AccountID
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = def.SinkTimeout
	}

	a := &Agent{
		provider: provider,
		registry: registry,
		cfg:      cfg,
		log:      logger.Get().With("component", "agent"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Run handles a single-shot request in a fresh session that is discarded afterwards
func (a *Agent) Run(ctx context.Context, req Request) Outcome {
	return a.run(ctx, NewSession(a.cfg.AccountID), req)
}

func (a *Agent) run(ctx context.Context, session *Session, req Request) Outcome {
	start := time.Now()
	req = req.normalized()

	var out Outcome
	if req.Prompt == "" {
		out = failed(errors.KindInvalidArguments, "prompt is empty")
	} else {
		session.AddUserMessage(userMessage(req))
		l := &loop{
			agent:   a,
			session: session,
			req:     req,
			log:     a.log.With("session_id", session.ID, "symbol", req.Symbol, "dry_run", req.DryRun),
		}
		out = l.run(ctx)
	}

	out.SessionID = session.ID
	out.Duration = time.Since(start)
	a.finish(ctx, session, out)
	return out
}

func (a *Agent) finish(ctx context.Context, session *Session, out Outcome) {
	metrics.Sessions.WithLabelValues(string(out.Status), out.ErrorKind.String()).Inc()
	metrics.SessionSteps.WithLabelValues(string(out.Status)).Observe(float64(out.Steps))

	a.log.Infow("Request finished",
		"session_id", session.ID,
		"status", out.Status,
		"error_kind", out.ErrorKind,
		"steps", out.Steps,
		"tool_calls", out.ToolCalls,
		"trade_executed", out.TradeExecuted,
		"simulated", out.Simulated,
		"duration", out.Duration,
	)

	if a.tracker != nil && out.Failed() && reportable(out.ErrorKind) {
		_ = a.tracker.CaptureMessage(ctx, out.Error, errors.LevelWarning, map[string]string{
			"session_id": session.ID,
			"error_kind": out.ErrorKind.String(),
		})
	}

	if a.events == nil {
		return
	}
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.SinkTimeout)
	defer cancel()
	if err := a.events.PublishSessionCompleted(sctx, events.SessionCompleted{
		SessionID:     session.ID,
		AccountID:     session.AccountID,
		Status:        string(out.Status),
		ErrorKind:     out.ErrorKind.String(),
		Steps:         out.Steps,
		ToolCalls:     out.ToolCalls,
		TradeExecuted: out.TradeExecuted,
		Simulated:     out.Simulated,
		Duration:      out.Duration,
		OccurredAt:    time.Now(),
	}); err != nil {
		a.log.Warnw("Failed to publish session summary", "session_id", session.ID, "error", err)
	}
}

func (a *Agent) publishRiskViolation(ctx context.Context, session *Session, symbol string, res tools.Result) {
	fields, _ := res.Payload["fields"].([]string)
	if len(fields) == 0 {
		fields = []string{"intent"}
	}
	for _, f := range fields {
		metrics.RiskViolations.WithLabelValues(f).Inc()
	}

	if a.events == nil {
		return
	}
	violations, _ := res.Payload["violations"].([]string)
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.SinkTimeout)
	defer cancel()
	if err := a.events.PublishRiskViolation(sctx, events.RiskViolation{
		SessionID:  session.ID,
		AccountID:  session.AccountID,
		Symbol:     symbol,
		Tool:       res.Tool,
		Message:    res.Error,
		Violations: violations,
		OccurredAt: time.Now(),
	}); err != nil {
		a.log.Warnw("Failed to publish risk violation", "session_id", session.ID, "error", err)
	}
}

// reportable excludes the kinds that mean a guard or validation did its job
func reportable(kind errors.Kind) bool {
	switch kind {
	case errors.KindRiskBoundsViolation, errors.KindInvalidArguments, errors.KindDuplicateTradeIntent:
		return false
	default:
		return true
	}
}

func (a *Agent) breadcrumb(ctx context.Context, category, message string, level errors.Level, data map[string]interface{}) {
	if a.tracker != nil {
		a.tracker.AddBreadcrumb(ctx, message, category, level, data)
	}
}

func failed(kind errors.Kind, message string) Outcome {
	return Outcome{
		Status:    StatusFailed,
		Answer:    "Request failed (" + kind.String() + "): " + message,
		ErrorKind: kind,
		Error:     message,
	}
}
