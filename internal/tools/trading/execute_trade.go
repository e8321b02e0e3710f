package trading

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"hypertrader/internal/domain/trade"
	"hypertrader/internal/services/execution"
	"hypertrader/internal/tools"
	"hypertrader/internal/tools/decision"
	"hypertrader/internal/tools/market"
	"hypertrader/internal/tools/shared"
	"hypertrader/pkg/errors"
)

// ToolName is the registered name of the trade execution tool
const ToolName = "execute_trade"

// Spec describes execute_trade
func Spec() tools.Spec {
	return tools.NewSpec(ToolName,
		"Execute a trade on Hyperliquid. Side and sizing default to the latest make_trading_decision result for the symbol. Respects dry-run mode.").
		Required("symbol", tools.TypeString, "Asset symbol, e.g. BTC").
		Optional("side", tools.TypeString, "Position side; defaults to the latest decision").
		Enum("long", "short").
		Optional("amount", tools.TypeNumber, "USD capital available for the trade").
		Optional("position_size", tools.TypeNumber, "Fraction of the amount to commit, e.g. 0.01").
		Optional("stop_loss", tools.TypeNumber, "Stop loss as a fraction of entry price, e.g. 0.02").
		Optional("take_profit", tools.TypeNumber, "Take profit as a fraction of entry price, e.g. 0.04").
		Optional("dry_run", tools.TypeBoolean, "Simulate the trade without placing orders").
		Trading().
		Build()
}

// NewExecuteTradeTool returns the trade execution tool
func NewExecuteTradeTool(deps shared.Deps) tools.Tool {
	return shared.NewToolBuilder(Spec(), handler(deps), deps).WithDefaults().Build()
}

func handler(deps shared.Deps) tools.HandlerFunc {
	log := deps.Logger().With("tool", ToolName)

	return func(ctx context.Context, args tools.Args) (map[string]interface{}, error) {
		meta, _ := shared.MetadataFromContext(ctx)
		symbol := args.Symbol()
		dryRun := meta.DryRun || args.Bool("dry_run", false)

		prior, _ := latestFor(ctx, decision.ToolName, symbol)
		intent, err := buildIntent(args, meta, prior, deps.Defaults)
		if err != nil {
			return nil, err
		}
		requested := intent.Fingerprint()

		// 1. Duplicate check against the session ledger
		if meta.Session != nil && meta.Session.HasTrade(requested) {
			return nil, duplicateError(intent)
		}

		// 2. Risk bounds
		if deps.Risk == nil {
			return nil, errors.Wrap(errors.ErrNotConfigured, "risk validator not configured")
		}
		checked, err := deps.Risk.Validate(intent)
		if err != nil {
			log.Warnw("Trade rejected by risk bounds", "symbol", symbol, "error", err)
			return nil, err
		}

		// Clamped intents that differ only in the requested size are the same trade
		fingerprints := []string{requested}
		if clamped := checked.Intent.Fingerprint(); clamped != requested {
			if meta.Session != nil && meta.Session.HasTrade(clamped) {
				return nil, duplicateError(checked.Intent)
			}
			fingerprints = append(fingerprints, clamped)
		}
		record := func() {
			if meta.Session == nil {
				return
			}
			for _, fp := range fingerprints {
				meta.Session.RecordTrade(fp)
			}
		}

		if !deps.HasExecutor() {
			return nil, errors.Wrap(errors.ErrNotConfigured, "trade executor not configured")
		}

		req := execution.Request{
			SessionID:      meta.SessionID,
			AccountID:      meta.AccountID,
			Intent:         checked.Intent,
			Clamped:        checked.Clamped,
			ReferencePrice: referencePrice(ctx, symbol),
		}

		// 3. Dry run never reaches the order API. 4. Real execution otherwise.
		var exec *trade.Execution
		if dryRun {
			exec, err = deps.Executor.Simulate(ctx, req)
		} else {
			exec, err = deps.Executor.Execute(ctx, req)
		}
		if err != nil {
			if !dryRun && orderMayExist(ctx, err) {
				record()
				log.Errorw("Trade outcome unknown, intent blocked for this session",
					"session_id", meta.SessionID, "symbol", symbol, "error", err)
				return nil, errors.Wrapf(err,
					"execute_trade %s %s: the order may have been placed; check the account before trading again",
					intent.Side, intent.Symbol)
			}
			return nil, errors.Wrapf(err, "execute_trade %s %s", intent.Side, intent.Symbol)
		}

		record()

		payload := exec.Payload()
		if len(checked.Warnings) > 0 {
			payload["risk_warnings"] = checked.Warnings
		}
		return payload, nil
	}
}

func duplicateError(intent trade.Intent) error {
	return errors.Wrapf(errors.ErrDuplicateTradeIntent,
		"an identical %s %s trade was already executed in this session", intent.Side, intent.Symbol)
}

// orderMayExist reports whether a failed real execution could have left an order on the exchange.
// Failures before the account lock is held or a definite exchange rejection leave nothing behind.
func orderMayExist(ctx context.Context, err error) bool {
	switch {
	case errors.Is(err, errors.ErrOrderUnconfirmed):
		return true
	case errors.Is(err, errors.ErrOrderInFlight),
		errors.Is(err, errors.ErrOrderRejected),
		errors.Is(err, errors.ErrInvalidInput),
		errors.Is(err, errors.ErrNotConfigured):
		return false
	}
	return ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

func buildIntent(args tools.Args, meta shared.InvocationMetadata, prior map[string]interface{}, defaults shared.Defaults) (trade.Intent, error) {
	symbol := args.Symbol()

	var side trade.Side
	if raw := args.String("side", ""); raw != "" {
		s, ok := trade.ParseSide(raw)
		if !ok {
			return trade.Intent{}, errors.NewValidationError("side", "must be long or short", raw)
		}
		side = s
	} else if prior != nil {
		direction, _ := prior["direction"].(string)
		s, ok := trade.Direction(strings.ToUpper(direction)).Side()
		if !ok {
			return trade.Intent{}, errors.Wrapf(errors.ErrInvalidArguments,
				"latest decision for %s is %s; pass side explicitly to trade anyway", symbol, direction)
		}
		side = s
	} else {
		return trade.Intent{}, errors.Wrapf(errors.ErrInvalidArguments,
			"side is required when no trading decision exists for %s", symbol)
	}

	sizing := shared.ResolveSizing(args, meta.Params, prior, defaults)
	intent := trade.Intent{
		Symbol:       symbol,
		Side:         side,
		Amount:       shared.ResolveAmount(args, meta.Params, defaults),
		PositionSize: sizing.PositionSize,
		StopLoss:     sizing.StopLoss,
		TakeProfit:   sizing.TakeProfit,
	}
	if prior != nil {
		if c, ok := shared.PayloadFloat(prior, "confidence"); ok {
			intent.Confidence = c
		}
		intent.Reasoning, _ = prior["reasoning"].(string)
	}
	return intent, nil
}

// referencePrice is the latest price observed for symbol in this session
func referencePrice(ctx context.Context, symbol string) decimal.Decimal {
	md, ok := latestFor(ctx, market.ToolName, symbol)
	if !ok {
		return decimal.Zero
	}
	if f, ok := shared.PayloadFloat(md, "current_price"); ok && f > 0 {
		return decimal.NewFromFloat(f)
	}
	return decimal.Zero
}

func latestFor(ctx context.Context, tool, symbol string) (map[string]interface{}, bool) {
	p, ok := shared.LatestPayload(ctx, tool)
	if !ok {
		return nil, false
	}
	if s, _ := p["symbol"].(string); s != "" && !strings.EqualFold(s, symbol) {
		return nil, false
	}
	return p, true
}
