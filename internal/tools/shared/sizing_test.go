package shared

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"hypertrader/internal/tools"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestResolveSizing_Precedence(t *testing.T) {
	defaults := Defaults{PositionSize: dec("0.01"), StopLoss: dec("0.02")}
	params := ExecParams{StopLoss: decimal.NewNullDecimal(dec("0.03"))}
	prior := map[string]interface{}{"position_size": 0.05, "stop_loss": 0.04, "take_profit": 0.09}
	args := tools.Args{"position_size": 0.07}

	s := ResolveSizing(args, params, prior, defaults)
	assert.Equal(t, "0.07", s.PositionSize.String())
	assert.Equal(t, "0.03", s.StopLoss.String())
	assert.Equal(t, "0.09", s.TakeProfit.String())
}

func TestResolveSizing_Defaults(t *testing.T) {
	defaults := Defaults{PositionSize: dec("0.01"), StopLoss: dec("0.02")}

	s := ResolveSizing(tools.Args{}, ExecParams{}, nil, defaults)
	assert.Equal(t, "0.01", s.PositionSize.String())
	assert.Equal(t, "0.02", s.StopLoss.String())
	assert.Equal(t, "0.04", s.TakeProfit.String())
}

func TestExplicitSizing(t *testing.T) {
	assert.False(t, ExplicitSizing(tools.Args{}, ExecParams{}))
	assert.False(t, ExplicitSizing(tools.Args{"position_size": 0.01}, ExecParams{}))
	assert.True(t, ExplicitSizing(
		tools.Args{"position_size": 0.01},
		ExecParams{StopLoss: decimal.NewNullDecimal(dec("0.02"))},
	))
	assert.True(t, ExplicitSizing(tools.Args{}, ExecParams{
		PositionSize: decimal.NewNullDecimal(dec("0.01")),
		StopLoss:     decimal.NewNullDecimal(dec("0.02")),
	}))
}

func TestResolveAmount(t *testing.T) {
	defaults := Defaults{Amount: dec("0.01")}
	assert.Equal(t, "25", ResolveAmount(tools.Args{"amount": 25.0}, ExecParams{}, defaults).String())
	assert.Equal(t, "50", ResolveAmount(tools.Args{}, ExecParams{Amount: decimal.NewNullDecimal(dec("50"))}, defaults).String())
	assert.Equal(t, "0.01", ResolveAmount(tools.Args{}, ExecParams{}, defaults).String())
}
