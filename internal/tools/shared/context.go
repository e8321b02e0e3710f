package shared

import (
	"context"

	"github.com/shopspring/decimal"
)

type contextKey struct{}

// ExecParams are the execution parameters the user stated explicitly for the request.
// Invalid fields were not supplied; configured defaults never populate them.
type ExecParams struct {
	Amount       decimal.NullDecimal
	PositionSize decimal.NullDecimal
	StopLoss     decimal.NullDecimal
	TakeProfit   decimal.NullDecimal
}

// InvocationMetadata captures request-scoped identifiers and state for tool calls
type InvocationMetadata struct {
	SessionID string
	AccountID string
	Symbol    string
	DryRun    bool
	Params    ExecParams
	Session   SessionView
}

// SessionView exposes the parts of the running session that tools read and update
type SessionView interface {
	// LatestPayload returns the payload of the most recent successful result of a tool
	LatestPayload(tool string) (map[string]interface{}, bool)
	// HasTrade reports whether an intent with this fingerprint was already executed
	HasTrade(fingerprint string) bool
	// RecordTrade adds an executed intent to the session ledger
	RecordTrade(fingerprint string)
}

// WithInvocationMetadata injects tool invocation metadata into a context.
func WithInvocationMetadata(ctx context.Context, meta InvocationMetadata) context.Context {
	return context.WithValue(ctx, contextKey{}, meta)
}

// MetadataFromContext extracts invocation metadata if present.
func MetadataFromContext(ctx context.Context) (InvocationMetadata, bool) {
	meta, ok := ctx.Value(contextKey{}).(InvocationMetadata)
	return meta, ok
}

// LatestPayload reads an earlier tool result from the session carried by ctx
func LatestPayload(ctx context.Context, tool string) (map[string]interface{}, bool) {
	meta, ok := MetadataFromContext(ctx)
	if !ok || meta.Session == nil {
		return nil, false
	}
	return meta.Session.LatestPayload(tool)
}

// PayloadFloat reads a numeric field from a tool payload
func PayloadFloat(payload map[string]interface{}, key string) (float64, bool) {
	switch v := payload[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case decimal.Decimal:
		return v.InexactFloat64(), true
	default:
		return 0, false
	}
}
