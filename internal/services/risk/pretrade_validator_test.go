package riskservice

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hypertrader/internal/domain/trade"
	"hypertrader/pkg/errors"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testBounds() Bounds {
	return Bounds{
		MaxPositionSize: dec("0.10"),
		MaxStopLoss:     dec("0.05"),
		MaxNotionalUSD:  dec("1000"),
	}
}

func baseIntent() trade.Intent {
	return trade.Intent{
		Symbol:       "BTC",
		Side:         trade.SideLong,
		Amount:       dec("1000"),
		PositionSize: dec("0.01"),
		StopLoss:     dec("0.02"),
		TakeProfit:   dec("0.04"),
	}
}

func TestPreTradeValidator_Accepts(t *testing.T) {
	v := NewPreTradeValidator(testBounds())

	res, err := v.Validate(baseIntent())
	require.NoError(t, err)
	assert.False(t, res.Clamped)
	assert.Empty(t, res.Warnings)
	assert.True(t, res.Intent.PositionSize.Equal(dec("0.01")))
}

func TestPreTradeValidator_RejectsNeverClamps(t *testing.T) {
	v := NewPreTradeValidator(testBounds())

	tests := []struct {
		name   string
		mutate func(*trade.Intent)
		field  string
	}{
		{name: "position size above ceiling", mutate: func(i *trade.Intent) { i.PositionSize = dec("0.5") }, field: "position_size"},
		{name: "stop loss above ceiling", mutate: func(i *trade.Intent) { i.StopLoss = dec("0.2") }, field: "stop_loss"},
		{name: "notional above ceiling", mutate: func(i *trade.Intent) { i.Amount = dec("50000"); i.PositionSize = dec("0.05") }, field: "notional_usd"},
		{name: "short target below zero", mutate: func(i *trade.Intent) { i.Side = trade.SideShort; i.TakeProfit = dec("1.5") }, field: "take_profit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intent := baseIntent()
			tt.mutate(&intent)

			res, err := v.Validate(intent)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.True(t, errors.Is(err, errors.ErrRiskBoundsViolation))
			assert.Equal(t, errors.KindRiskBoundsViolation, errors.KindOf(err))

			var bErr *BoundsViolationError
			require.True(t, errors.As(err, &bErr))
			require.NotEmpty(t, bErr.Violations)
			assert.Equal(t, tt.field, bErr.Violations[0].Field)
		})
	}
}

func TestPreTradeValidator_StructuralErrors(t *testing.T) {
	v := NewPreTradeValidator(testBounds())

	tests := []struct {
		name   string
		mutate func(*trade.Intent)
	}{
		{name: "missing symbol", mutate: func(i *trade.Intent) { i.Symbol = "" }},
		{name: "missing side", mutate: func(i *trade.Intent) { i.Side = "" }},
		{name: "zero amount", mutate: func(i *trade.Intent) { i.Amount = decimal.Zero }},
		{name: "negative size", mutate: func(i *trade.Intent) { i.PositionSize = dec("-0.01") }},
		{name: "zero stop", mutate: func(i *trade.Intent) { i.StopLoss = decimal.Zero }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intent := baseIntent()
			tt.mutate(&intent)

			_, err := v.Validate(intent)
			require.Error(t, err)
			assert.Equal(t, errors.KindInvalidArguments, errors.KindOf(err))
		})
	}
}

func TestPreTradeValidator_ClampWhenConfigured(t *testing.T) {
	bounds := testBounds()
	bounds.ClampToBounds = true
	v := NewPreTradeValidator(bounds)

	intent := baseIntent()
	intent.PositionSize = dec("0.5")
	intent.StopLoss = dec("0.2")

	res, err := v.Validate(intent)
	require.NoError(t, err)
	assert.True(t, res.Clamped)
	assert.True(t, res.Intent.PositionSize.Equal(dec("0.10")))
	assert.True(t, res.Intent.StopLoss.Equal(dec("0.05")))
	assert.Len(t, res.Warnings, 2)

	t.Run("notional clamp uses the smaller size", func(t *testing.T) {
		intent := baseIntent()
		intent.Amount = dec("100000")
		intent.PositionSize = dec("0.5")

		res, err := v.Validate(intent)
		require.NoError(t, err)
		assert.True(t, res.Intent.Notional().Equal(dec("1000")))
	})

	t.Run("unfixable violation still rejected", func(t *testing.T) {
		intent := baseIntent()
		intent.Side = trade.SideShort
		intent.TakeProfit = dec("2")

		_, err := v.Validate(intent)
		assert.True(t, errors.Is(err, errors.ErrRiskBoundsViolation))
	})
}

func TestPreTradeValidator_RewardWarning(t *testing.T) {
	v := NewPreTradeValidator(testBounds())

	intent := baseIntent()
	intent.TakeProfit = dec("0.01")

	res, err := v.Validate(intent)
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "reward_below_risk")
}
