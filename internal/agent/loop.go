package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"hypertrader/internal/adapters/ai"
	"hypertrader/internal/tools"
	"hypertrader/internal/tools/shared"
	"hypertrader/pkg/errors"
	"hypertrader/pkg/logger"
)

// State is a dispatch loop state
type State string

const (
	StateAwaitingModel  State = "AWAITING_MODEL"
	StateExecutingTools State = "EXECUTING_TOOLS"
	StateDone           State = "DONE"
)

const skippedCallMessage = "not executed: the request ended after an earlier tool failure"

// loop is the state of one request. It runs on the caller's goroutine and executes
// tool calls one at a time in the order the model gave them.
type loop struct {
	agent   *Agent
	session *Session
	req     Request
	log     *logger.Logger

	state           State
	steps           int
	toolCalls       int
	adapterFailures int
	pending         []ai.ToolCall

	tradeExecuted bool
	trade         map[string]interface{}
	simulated     bool
}

func (l *loop) run(ctx context.Context) Outcome {
	l.state = StateAwaitingModel
	var out Outcome

	for l.state != StateDone {
		switch l.state {
		case StateAwaitingModel:
			out = l.awaitModel(ctx)
		case StateExecutingTools:
			out = l.executeTools(ctx)
		}
	}

	out.Steps = l.steps
	out.ToolCalls = l.toolCalls
	out.TradeExecuted = l.tradeExecuted
	out.Trade = l.trade
	out.Simulated = l.simulated
	return out
}

// awaitModel performs one model round trip and picks the next state from the reply
func (l *loop) awaitModel(ctx context.Context) Outcome {
	if l.steps >= l.agent.cfg.MaxSteps {
		l.state = StateDone
		l.log.Warnw("Step limit reached", "max_steps", l.agent.cfg.MaxSteps)
		return failed(errors.KindStepLimitExceeded,
			fmt.Sprintf("no final answer after %d model round trips", l.agent.cfg.MaxSteps))
	}
	l.steps++

	msg, err := l.callModel(ctx)
	if err != nil {
		l.state = StateDone
		l.log.Warnw("Model call failed", "step", l.steps, "error", err)
		return failed(errors.KindOf(err), err.Error())
	}

	l.agent.breadcrumb(ctx, "model", "model replied", errors.LevelInfo, map[string]interface{}{
		"session_id": l.session.ID,
		"step":       l.steps,
		"tool_calls": len(msg.ToolCalls),
	})

	if len(msg.ToolCalls) == 0 {
		l.session.AddModelMessage(msg.Content, nil)
		l.state = StateDone
		return Outcome{Status: StatusCompleted, Answer: strings.TrimSpace(msg.Content)}
	}

	l.session.AddModelMessage(msg.Content, msg.ToolCalls)
	l.pending = msg.ToolCalls
	l.state = StateExecutingTools
	return Outcome{}
}

func (l *loop) callModel(ctx context.Context) (ai.Message, error) {
	msgs, err := l.session.Messages()
	if err != nil {
		return ai.Message{}, errors.Wrap(errors.ErrModelBackend, err.Error())
	}

	cfg := l.agent.cfg
	mctx := ctx
	if cfg.ModelTimeout > 0 {
		var cancel context.CancelFunc
		mctx, cancel = context.WithTimeout(ctx, cfg.ModelTimeout)
		defer cancel()
	}

	resp, err := l.agent.provider.Chat(mctx, ai.ChatRequest{
		Model:       cfg.Model,
		System:      SystemPrompt(l.agent.registry.Specs(), l.req),
		Messages:    msgs,
		Tools:       l.agent.registry.Definitions(),
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	})
	if err != nil {
		if errors.Is(mctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return ai.Message{}, fmt.Errorf("%w: model call timed out after %s: %w", errors.ErrModelBackend, cfg.ModelTimeout, errors.ErrTimeout)
		}
		return ai.Message{}, fmt.Errorf("%w: %w", errors.ErrModelBackend, err)
	}
	msg, err := resp.Reply()
	if err != nil {
		return ai.Message{}, err
	}

	seen := make(map[string]bool, len(msg.ToolCalls))
	calls := make([]ai.ToolCall, 0, len(msg.ToolCalls))
	for i, call := range msg.ToolCalls {
		if strings.TrimSpace(call.Name) == "" {
			return ai.Message{}, errors.Wrapf(errors.ErrModelBackend, "tool call %d has no name", i)
		}
		if call.ID == "" || seen[call.ID] {
			call.ID = fmt.Sprintf("call_%d_%d", l.steps, i)
		}
		seen[call.ID] = true
		calls = append(calls, call)
	}
	msg.ToolCalls = calls
	return msg, nil
}

// executeTools runs the pending calls in order. A fatal result ends the request;
// calls after it still get a result so the transcript stays consistent.
func (l *loop) executeTools(ctx context.Context) Outcome {
	calls := l.pending
	l.pending = nil

	for i, call := range calls {
		l.toolCalls++
		res, fatal := l.dispatch(ctx, call)
		l.record(call, res)
		l.breadcrumb(ctx, call, res)

		if !fatal {
			continue
		}
		for _, rest := range calls[i+1:] {
			l.record(rest, tools.Failure(rest.Name, res.ErrorKind, skippedCallMessage))
		}
		l.state = StateDone
		return failed(res.ErrorKind, res.Error)
	}

	l.state = StateAwaitingModel
	return Outcome{}
}

func (l *loop) breadcrumb(ctx context.Context, call ai.ToolCall, res tools.Result) {
	level := errors.LevelInfo
	if !res.OK() {
		level = errors.LevelWarning
	}
	l.agent.breadcrumb(ctx, "tool", call.Name, level, map[string]interface{}{
		"session_id": l.session.ID,
		"call_id":    call.ID,
		"status":     string(res.Status),
		"error_kind": res.ErrorKind.String(),
	})
}

func (l *loop) record(call ai.ToolCall, res tools.Result) {
	if err := l.session.AddToolResult(call, res); err != nil {
		l.log.Errorw("Failed to record tool result", "tool", call.Name, "call_id", call.ID, "error", err)
	}
}

// dispatch resolves, validates and executes one call. The second return value
// reports whether the result ends the request.
func (l *loop) dispatch(ctx context.Context, call ai.ToolCall) (tools.Result, bool) {
	log := l.log.With("tool", call.Name, "call_id", call.ID)

	tool, err := l.agent.registry.Get(call.Name)
	if err != nil {
		log.Warnw("Model requested an unknown tool")
		return tools.FailureFromError(call.Name, err), false
	}
	spec := tool.Spec()

	raw, err := parseArguments(call.Arguments)
	if err != nil {
		log.Warnw("Malformed tool arguments", "error", err)
		return tools.FailureFromError(spec.Name, err), false
	}
	l.inject(spec, raw)

	args, err := spec.Validate(raw)
	if err != nil {
		log.Warnw("Tool arguments rejected", "error", err)
		return tools.FailureFromError(spec.Name, err), false
	}

	if spec.Trading && !l.req.DryRun && !shared.ExplicitSizing(args, l.req.params()) {
		res := tools.Failure(spec.Name, errors.KindRiskBoundsViolation,
			"refusing to place a real order without explicit position_size and stop_loss; set them on the request or pass them as arguments")
		log.Warnw("Real trade refused", "reason", res.Error)
		l.agent.publishRiskViolation(ctx, l.session, args.Symbol(), res)
		return res, true
	}

	log.Debugw("Executing tool", "args", args)
	res := tool.Execute(shared.WithInvocationMetadata(ctx, shared.InvocationMetadata{
		SessionID: l.session.ID,
		AccountID: l.session.AccountID,
		Symbol:    l.req.Symbol,
		DryRun:    l.req.DryRun,
		Params:    l.req.params(),
		Session:   l.session,
	}), args)

	if res.OK() {
		if spec.Trading {
			l.tradeExecuted = true
			l.trade = res.Payload
			l.simulated = res.Simulated
		}
		log.Infow("Tool succeeded", "simulated", res.Simulated)
		return res, false
	}

	log.Warnw("Tool failed", "error_kind", res.ErrorKind, "error", res.Error)
	switch res.ErrorKind {
	case errors.KindRiskBoundsViolation:
		l.agent.publishRiskViolation(ctx, l.session, args.Symbol(), res)
		return res, true
	case errors.KindAdapterExecution:
		l.adapterFailures++
		if l.adapterFailures > l.agent.cfg.AdapterFailureBudget {
			return res, true
		}
	}
	return res, !res.ErrorKind.Recoverable()
}

// inject fills request context into the arguments the tool declares. dry_run from
// the request always wins so the model cannot turn a dry run into a real trade.
func (l *loop) inject(spec tools.Spec, args tools.Args) {
	if _, ok := spec.Param("symbol"); ok && l.req.Symbol != "" && !args.Has("symbol") {
		args["symbol"] = l.req.Symbol
	}
	if _, ok := spec.Param("dry_run"); ok {
		args["dry_run"] = l.req.DryRun
	}
	if _, ok := spec.Param("amount"); ok && l.req.Amount.Valid && !args.Has("amount") {
		args["amount"] = l.req.Amount.Decimal.String()
	}
}

func parseArguments(raw string) (tools.Args, error) {
	args := tools.Args{}
	if strings.TrimSpace(raw) == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidArguments, "arguments are not a JSON object: %v", err)
	}
	if args == nil {
		args = tools.Args{}
	}
	return args, nil
}
