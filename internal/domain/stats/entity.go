package stats

import (
	"time"
)

// ToolUsageEvent represents a single tool call of an agent session (for insertion)
type ToolUsageEvent struct {
	AccountID string    `ch:"account_id"`
	SessionID string    `ch:"session_id"`
	ToolName  string    `ch:"tool_name"`
	Timestamp time.Time `ch:"timestamp"`

	DurationMs uint32 `ch:"duration_ms"`
	Success    bool   `ch:"success"`
	ErrorKind  string `ch:"error_kind"`
	Simulated  bool   `ch:"simulated"`

	Symbol string `ch:"symbol"`
}

// ToolUsageAggregated represents hourly tool usage (from materialized view)
type ToolUsageAggregated struct {
	ToolName string    `ch:"tool_name"`
	Hour     time.Time `ch:"hour"`

	CallCount     uint64  `ch:"call_count"`
	SuccessCount  uint64  `ch:"success_count"`
	ErrorCount    uint64  `ch:"error_count"`
	AvgDurationMs float64 `ch:"avg_duration_ms"`
}
