package postgres

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"hypertrader/internal/domain/trade"
	"hypertrader/internal/services/execution"
	"hypertrader/pkg/errors"
)

// Compile-time check
var _ execution.Journal = (*TradeJournalRepository)(nil)

const tradeJournalSchema = `
	CREATE TABLE IF NOT EXISTS trade_executions (
		id                   UUID PRIMARY KEY,
		session_id           TEXT NOT NULL,
		account_id           TEXT NOT NULL,
		symbol               TEXT NOT NULL,
		side                 TEXT NOT NULL,
		amount               NUMERIC NOT NULL,
		position_size        NUMERIC NOT NULL,
		stop_loss            NUMERIC NOT NULL,
		take_profit          NUMERIC NOT NULL,
		entry_price          NUMERIC NOT NULL,
		units                NUMERIC NOT NULL,
		stop_loss_price      NUMERIC NOT NULL,
		take_profit_price    NUMERIC NOT NULL,
		simulated            BOOLEAN NOT NULL,
		clamped              BOOLEAN NOT NULL DEFAULT FALSE,
		entry_order_id       TEXT NOT NULL DEFAULT '',
		stop_order_id        TEXT NOT NULL DEFAULT '',
		take_profit_order_id TEXT NOT NULL DEFAULT '',
		protection_error     TEXT NOT NULL DEFAULT '',
		reasoning            TEXT NOT NULL DEFAULT '',
		executed_at          TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS trade_executions_session_idx ON trade_executions (session_id);
	CREATE INDEX IF NOT EXISTS trade_executions_executed_at_idx ON trade_executions (executed_at)`

// tradeRow mirrors one trade_executions row
type tradeRow struct {
	ID                string          `db:"id"`
	SessionID         string          `db:"session_id"`
	AccountID         string          `db:"account_id"`
	Symbol            string          `db:"symbol"`
	Side              string          `db:"side"`
	Amount            decimal.Decimal `db:"amount"`
	PositionSize      decimal.Decimal `db:"position_size"`
	StopLoss          decimal.Decimal `db:"stop_loss"`
	TakeProfit        decimal.Decimal `db:"take_profit"`
	EntryPrice        decimal.Decimal `db:"entry_price"`
	Units             decimal.Decimal `db:"units"`
	StopLossPrice     decimal.Decimal `db:"stop_loss_price"`
	TakeProfitPrice   decimal.Decimal `db:"take_profit_price"`
	Simulated         bool            `db:"simulated"`
	Clamped           bool            `db:"clamped"`
	EntryOrderID      string          `db:"entry_order_id"`
	StopOrderID       string          `db:"stop_order_id"`
	TakeProfitOrderID string          `db:"take_profit_order_id"`
	ProtectionError   string          `db:"protection_error"`
	Reasoning         string          `db:"reasoning"`
	ExecutedAt        time.Time       `db:"executed_at"`
}

func (r tradeRow) toExecution() trade.Execution {
	return trade.Execution{
		ID:        r.ID,
		SessionID: r.SessionID,
		AccountID: r.AccountID,
		Intent: trade.Intent{
			Symbol:       r.Symbol,
			Side:         trade.Side(r.Side),
			Amount:       r.Amount,
			PositionSize: r.PositionSize,
			StopLoss:     r.StopLoss,
			TakeProfit:   r.TakeProfit,
			Reasoning:    r.Reasoning,
		},
		Simulated:       r.Simulated,
		Clamped:         r.Clamped,
		EntryPrice:      r.EntryPrice,
		Units:           r.Units,
		StopLossPrice:   r.StopLossPrice,
		TakeProfitPrice: r.TakeProfitPrice,
		EntryOrderID:    r.EntryOrderID,
		StopOrderID:     r.StopOrderID,
		TakeOrderID:     r.TakeProfitOrderID,
		ProtectionError: r.ProtectionError,
		ExecutedAt:      r.ExecutedAt,
	}
}

// TradeJournalRepository stores executions in Postgres using sqlx
type TradeJournalRepository struct {
	db DBTX
}

// NewTradeJournalRepository creates a new trade journal repository
func NewTradeJournalRepository(db DBTX) *TradeJournalRepository {
	return &TradeJournalRepository{db: db}
}

// Migrate creates the journal table when missing
func (r *TradeJournalRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, tradeJournalSchema); err != nil {
		return errors.Wrap(err, "migrate trade_executions")
	}
	return nil
}

// RecordExecution inserts one execution
func (r *TradeJournalRepository) RecordExecution(ctx context.Context, exec *trade.Execution) error {
	query := `
		INSERT INTO trade_executions (
			id, session_id, account_id, symbol, side,
			amount, position_size, stop_loss, take_profit,
			entry_price, units, stop_loss_price, take_profit_price,
			simulated, clamped, entry_order_id, stop_order_id, take_profit_order_id,
			protection_error, reasoning, executed_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21
		)`

	_, err := r.db.ExecContext(ctx, query,
		exec.ID, exec.SessionID, exec.AccountID, exec.Intent.Symbol, string(exec.Intent.Side),
		exec.Intent.Amount, exec.Intent.PositionSize, exec.Intent.StopLoss, exec.Intent.TakeProfit,
		exec.EntryPrice, exec.Units, exec.StopLossPrice, exec.TakeProfitPrice,
		exec.Simulated, exec.Clamped, exec.EntryOrderID, exec.StopOrderID, exec.TakeOrderID,
		exec.ProtectionError, exec.Intent.Reasoning, exec.ExecutedAt,
	)
	if err != nil {
		return errors.Wrap(err, "insert trade execution")
	}
	return nil
}

// ListBySession returns a session's executions, oldest first
func (r *TradeJournalRepository) ListBySession(ctx context.Context, sessionID string) ([]trade.Execution, error) {
	var rows []tradeRow

	query := `
		SELECT * FROM trade_executions
		WHERE session_id = $1
		ORDER BY executed_at ASC`

	if err := r.db.SelectContext(ctx, &rows, query, sessionID); err != nil {
		return nil, errors.Wrap(err, "select trade executions")
	}

	out := make([]trade.Execution, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toExecution())
	}
	return out, nil
}
