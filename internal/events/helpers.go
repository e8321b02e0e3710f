package events

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

const envelopeVersion = "1.0"

// NewEnvelope wraps payload in the common event envelope.
// Strings are sanitized because structpb rejects invalid UTF-8.
func NewEnvelope(eventType, source string, occurredAt time.Time, payload map[string]interface{}) (*structpb.Struct, error) {
	ts := timestamppb.New(occurredAt)
	if err := ts.CheckValid(); err != nil {
		ts = timestamppb.Now()
	}

	return structpb.NewStruct(map[string]interface{}{
		"id":          uuid.NewString(),
		"type":        eventType,
		"source":      source,
		"version":     envelopeVersion,
		"occurred_at": ts.AsTime().UTC().Format(time.RFC3339Nano),
		"payload":     sanitize(payload),
	})
}

func sanitize(v interface{}) interface{} {
	switch t := v.(type) {
	case string:
		return strings.ToValidUTF8(t, "")
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[strings.ToValidUTF8(k, "")] = sanitize(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = sanitize(val)
		}
		return out
	case []string:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = strings.ToValidUTF8(val, "")
		}
		return out
	case int64:
		return float64(t)
	case uint32:
		return float64(t)
	default:
		return v
	}
}
