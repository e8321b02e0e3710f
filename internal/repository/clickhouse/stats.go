package clickhouse

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"hypertrader/internal/domain/stats"
	"hypertrader/pkg/errors"
)

// Compile-time check
var _ stats.Repository = (*StatsRepository)(nil)

var statsSchema = []string{
	`CREATE TABLE IF NOT EXISTS tool_usage_stats (
		account_id  String,
		session_id  String,
		tool_name   LowCardinality(String),
		timestamp   DateTime64(3),
		duration_ms UInt32,
		success     Bool,
		error_kind  LowCardinality(String),
		simulated   Bool,
		symbol      LowCardinality(String)
	) ENGINE = MergeTree()
	ORDER BY (tool_name, timestamp)
	TTL toDateTime(timestamp) + INTERVAL 90 DAY`,
}

// StatsRepository implements stats.Repository using ClickHouse
type StatsRepository struct {
	conn driver.Conn
}

// NewStatsRepository creates a new stats repository
func NewStatsRepository(conn driver.Conn) *StatsRepository {
	return &StatsRepository{conn: conn}
}

// Migrate creates the tool usage table when missing
func (r *StatsRepository) Migrate(ctx context.Context) error {
	for _, ddl := range statsSchema {
		if err := r.conn.Exec(ctx, ddl); err != nil {
			return errors.Wrap(err, "migrate tool_usage_stats")
		}
	}
	return nil
}

// InsertToolUsage inserts a single tool usage event
func (r *StatsRepository) InsertToolUsage(ctx context.Context, event *stats.ToolUsageEvent) error {
	query := `
		INSERT INTO tool_usage_stats (
			account_id, session_id, tool_name, timestamp,
			duration_ms, success, error_kind, simulated, symbol
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)`

	return r.conn.Exec(ctx, query,
		event.AccountID, event.SessionID, event.ToolName, event.Timestamp,
		event.DurationMs, event.Success, event.ErrorKind, event.Simulated, event.Symbol,
	)
}

// InsertToolUsageBatch inserts multiple tool usage events
func (r *StatsRepository) InsertToolUsageBatch(ctx context.Context, events []stats.ToolUsageEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := r.conn.PrepareBatch(ctx, `INSERT INTO tool_usage_stats`)
	if err != nil {
		return err
	}

	for i := range events {
		if err := batch.AppendStruct(&events[i]); err != nil {
			return err
		}
	}

	return batch.Send()
}

// GetByTool aggregates a tool's usage per hour
func (r *StatsRepository) GetByTool(ctx context.Context, toolName string, since time.Time) ([]stats.ToolUsageAggregated, error) {
	var usage []stats.ToolUsageAggregated

	query := `
		SELECT
			tool_name,
			toStartOfHour(timestamp) AS hour,
			count() AS call_count,
			countIf(success) AS success_count,
			countIf(NOT success) AS error_count,
			avg(duration_ms) AS avg_duration_ms
		FROM tool_usage_stats
		WHERE tool_name = $1 AND timestamp >= $2
		GROUP BY tool_name, hour
		ORDER BY hour DESC`

	err := r.conn.Select(ctx, &usage, query, toolName, since)
	return usage, err
}
