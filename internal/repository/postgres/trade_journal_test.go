package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hypertrader/internal/domain/trade"
	"hypertrader/internal/testsupport"
)

func TestTradeJournalRepository_RecordAndList(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	repo := NewTradeJournalRepository(testsupport.NewTestPostgres(t).Tx())
	ctx := context.Background()
	require.NoError(t, repo.Migrate(ctx))

	sessionID := uuid.NewString()
	exec := &trade.Execution{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		AccountID: "default",
		Intent: trade.Intent{
			Symbol:       "BTC",
			Side:         trade.SideLong,
			Amount:       decimal.NewFromInt(1000),
			PositionSize: decimal.RequireFromString("0.05"),
			StopLoss:     decimal.RequireFromString("0.02"),
			TakeProfit:   decimal.RequireFromString("0.04"),
			Reasoning:    "oversold bounce",
		},
		Simulated:       true,
		EntryPrice:      decimal.NewFromInt(48000),
		Units:           decimal.RequireFromString("0.00104167"),
		StopLossPrice:   decimal.NewFromInt(47040),
		TakeProfitPrice: decimal.NewFromInt(49920),
		ExecutedAt:      time.Now().UTC().Truncate(time.Millisecond),
	}

	require.NoError(t, repo.RecordExecution(ctx, exec))

	got, err := repo.ListBySession(ctx, sessionID)
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, exec.ID, got[0].ID)
	assert.Equal(t, trade.SideLong, got[0].Intent.Side)
	assert.True(t, got[0].Intent.PositionSize.Equal(exec.Intent.PositionSize))
	assert.True(t, got[0].Simulated)
	assert.Equal(t, "oversold bounce", got[0].Intent.Reasoning)
}
