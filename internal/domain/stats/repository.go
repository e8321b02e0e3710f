package stats

import (
	"context"
	"time"
)

// Repository defines tool usage statistics data access (ClickHouse)
type Repository interface {
	InsertToolUsage(ctx context.Context, event *ToolUsageEvent) error
	InsertToolUsageBatch(ctx context.Context, events []ToolUsageEvent) error

	// GetByTool reads hourly aggregates from the materialized view
	GetByTool(ctx context.Context, toolName string, since time.Time) ([]ToolUsageAggregated, error)
}
