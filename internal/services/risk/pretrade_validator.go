package riskservice

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"hypertrader/internal/domain/trade"
	"hypertrader/pkg/errors"
)

// Bounds are the configured ceilings a trade intent must respect
type Bounds struct {
	MaxPositionSize decimal.Decimal
	MaxStopLoss     decimal.Decimal
	// MaxNotionalUSD caps Amount*PositionSize; zero disables the check
	MaxNotionalUSD decimal.Decimal
	// ClampToBounds shrinks violating sizes to the ceiling instead of rejecting
	ClampToBounds bool
}

// Violation describes one breached bound
type Violation struct {
	Field string          `json:"field"`
	Value decimal.Decimal `json:"value"`
	Limit decimal.Decimal `json:"limit"`
	Rule  string          `json:"rule"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s %s: %s (limit %s)", v.Field, v.Rule, v.Value.String(), v.Limit.String())
}

// BoundsViolationError is returned when an intent breaches the configured risk bounds.
// It matches errors.ErrRiskBoundsViolation.
type BoundsViolationError struct {
	Symbol     string
	Violations []Violation
}

func (e *BoundsViolationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.String())
	}
	return fmt.Sprintf("risk bounds violation for %s: %s", e.Symbol, strings.Join(parts, "; "))
}

func (e *BoundsViolationError) Unwrap() error {
	return errors.ErrRiskBoundsViolation
}

// Details lists the breached fields and rules for the failure payload
func (e *BoundsViolationError) Details() map[string]interface{} {
	fields := make([]string, 0, len(e.Violations))
	rules := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		fields = append(fields, v.Field)
		rules = append(rules, v.String())
	}
	return map[string]interface{}{
		"symbol":     e.Symbol,
		"fields":     fields,
		"violations": rules,
	}
}

// ValidationResult is the outcome of an accepted intent
type ValidationResult struct {
	Intent   trade.Intent
	Clamped  bool
	Warnings []string
}

// PreTradeValidator checks trade intents against risk bounds before any order is placed
type PreTradeValidator struct {
	bounds Bounds
}

// NewPreTradeValidator creates a validator for the given bounds
func NewPreTradeValidator(bounds Bounds) *PreTradeValidator {
	return &PreTradeValidator{bounds: bounds}
}

// Bounds returns the configured ceilings
func (v *PreTradeValidator) Bounds() Bounds {
	return v.bounds
}

// Validate checks the intent. Structural problems (missing side, non-positive amount)
// are InvalidArguments; ceiling breaches are a *BoundsViolationError unless clamping is
// enabled, in which case the returned intent carries the clamped sizes.
func (v *PreTradeValidator) Validate(intent trade.Intent) (*ValidationResult, error) {
	if intent.Symbol == "" {
		return nil, errors.NewValidationError("symbol", "is required", intent.Symbol)
	}
	if intent.Side != trade.SideLong && intent.Side != trade.SideShort {
		return nil, errors.NewValidationError("side", "must be long or short", intent.Side)
	}
	if !intent.Amount.IsPositive() {
		return nil, errors.NewValidationError("amount", "must be positive", intent.Amount)
	}
	if !intent.PositionSize.IsPositive() {
		return nil, errors.NewValidationError("position_size", "must be positive", intent.PositionSize)
	}
	if !intent.StopLoss.IsPositive() {
		return nil, errors.NewValidationError("stop_loss", "must be positive", intent.StopLoss)
	}
	if intent.TakeProfit.IsNegative() {
		return nil, errors.NewValidationError("take_profit", "must not be negative", intent.TakeProfit)
	}

	result := &ValidationResult{Intent: intent}
	var violations []Violation

	// 1. Position size ceiling
	if intent.PositionSize.GreaterThan(v.bounds.MaxPositionSize) {
		violations = append(violations, Violation{
			Field: "position_size",
			Value: intent.PositionSize,
			Limit: v.bounds.MaxPositionSize,
			Rule:  "exceeds max position size",
		})
	}

	// 2. Stop-loss ceiling
	if intent.StopLoss.GreaterThan(v.bounds.MaxStopLoss) {
		violations = append(violations, Violation{
			Field: "stop_loss",
			Value: intent.StopLoss,
			Limit: v.bounds.MaxStopLoss,
			Rule:  "exceeds max stop loss",
		})
	}

	// 3. Notional ceiling, evaluated on the size that would actually be used
	size := decimal.Min(intent.PositionSize, v.bounds.MaxPositionSize)
	if !v.bounds.ClampToBounds {
		size = intent.PositionSize
	}
	notional := intent.Amount.Mul(size)
	if v.bounds.MaxNotionalUSD.IsPositive() && notional.GreaterThan(v.bounds.MaxNotionalUSD) {
		violations = append(violations, Violation{
			Field: "notional_usd",
			Value: notional,
			Limit: v.bounds.MaxNotionalUSD,
			Rule:  "exceeds max notional",
		})
	}

	// 4. Short take-profit at or beyond 100% would target a non-positive price
	if intent.Side == trade.SideShort && intent.TakeProfit.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		violations = append(violations, Violation{
			Field: "take_profit",
			Value: intent.TakeProfit,
			Limit: decimal.NewFromInt(1),
			Rule:  "short target below zero",
		})
	}

	if len(violations) == 0 {
		if intent.TakeProfit.IsPositive() && intent.TakeProfit.LessThan(intent.StopLoss) {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("reward_below_risk: take_profit %s < stop_loss %s", intent.TakeProfit, intent.StopLoss))
		}
		return result, nil
	}

	if !v.bounds.ClampToBounds {
		return nil, &BoundsViolationError{Symbol: intent.Symbol, Violations: violations}
	}

	return v.clamp(result, violations)
}

// clamp shrinks sizes to the ceilings. Violations that cannot be fixed by shrinking
// are still rejected.
func (v *PreTradeValidator) clamp(result *ValidationResult, violations []Violation) (*ValidationResult, error) {
	var unfixable []Violation

	for _, viol := range violations {
		switch viol.Field {
		case "position_size":
			result.Intent.PositionSize = v.bounds.MaxPositionSize
		case "stop_loss":
			result.Intent.StopLoss = v.bounds.MaxStopLoss
		case "notional_usd":
			result.Intent.PositionSize = v.bounds.MaxNotionalUSD.DivRound(result.Intent.Amount, 8)
		default:
			unfixable = append(unfixable, viol)
			continue
		}
		result.Warnings = append(result.Warnings, "clamped: "+viol.String())
	}

	if len(unfixable) > 0 {
		return nil, &BoundsViolationError{Symbol: result.Intent.Symbol, Violations: unfixable}
	}

	result.Clamped = true
	return result, nil
}
