package events

import (
	"context"
	"time"

	"google.golang.org/protobuf/proto"

	"hypertrader/internal/adapters/kafka"
	"hypertrader/internal/domain/trade"
	"hypertrader/pkg/errors"
	"hypertrader/pkg/logger"
)

// BinaryProducer sends serialized messages to a topic
type BinaryProducer interface {
	PublishBinary(ctx context.Context, topic string, key []byte, data []byte) error
}

// RiskViolation describes a rejected trade intent
type RiskViolation struct {
	SessionID  string
	AccountID  string
	Symbol     string
	Tool       string
	Message    string
	Violations []string
	OccurredAt time.Time
}

// SessionCompleted summarizes one finished request
type SessionCompleted struct {
	SessionID     string
	AccountID     string
	Status        string
	ErrorKind     string
	Steps         int
	ToolCalls     int
	TradeExecuted bool
	Simulated     bool
	Duration      time.Duration
	OccurredAt    time.Time
}

// Publisher publishes protobuf-encoded events to Kafka
type Publisher struct {
	producer BinaryProducer
	source   string
	log      *logger.Logger
}

// NewPublisher creates a new event publisher
func NewPublisher(producer BinaryProducer, source string, log *logger.Logger) *Publisher {
	return &Publisher{
		producer: producer,
		source:   source,
		log:      log.With("component", "event_publisher"),
	}
}

// PublishTradeExecuted publishes a real or simulated execution
func (p *Publisher) PublishTradeExecuted(ctx context.Context, exec *trade.Execution) error {
	payload := exec.Payload()
	payload["session_id"] = exec.SessionID
	payload["account_id"] = exec.AccountID
	return p.publish(ctx, kafka.TopicTradeExecuted, exec.AccountID, exec.ExecutedAt, payload)
}

// PublishRiskViolation publishes a rejected intent
func (p *Publisher) PublishRiskViolation(ctx context.Context, ev RiskViolation) error {
	return p.publish(ctx, kafka.TopicRiskViolation, ev.AccountID, ev.OccurredAt, map[string]interface{}{
		"session_id": ev.SessionID,
		"account_id": ev.AccountID,
		"symbol":     ev.Symbol,
		"tool":       ev.Tool,
		"message":    ev.Message,
		"violations": ev.Violations,
	})
}

// PublishSessionCompleted publishes a request summary
func (p *Publisher) PublishSessionCompleted(ctx context.Context, ev SessionCompleted) error {
	return p.publish(ctx, kafka.TopicSessionCompleted, ev.SessionID, ev.OccurredAt, map[string]interface{}{
		"session_id":     ev.SessionID,
		"account_id":     ev.AccountID,
		"status":         ev.Status,
		"error_kind":     ev.ErrorKind,
		"steps":          ev.Steps,
		"tool_calls":     ev.ToolCalls,
		"trade_executed": ev.TradeExecuted,
		"simulated":      ev.Simulated,
		"duration_ms":    ev.Duration.Milliseconds(),
	})
}

func (p *Publisher) publish(ctx context.Context, topic, key string, at time.Time, payload map[string]interface{}) error {
	envelope, err := NewEnvelope(topic, p.source, at, payload)
	if err != nil {
		return errors.Wrap(err, "build envelope")
	}

	data, err := proto.Marshal(envelope)
	if err != nil {
		return errors.Wrap(err, "marshal protobuf")
	}

	if err := p.producer.PublishBinary(ctx, topic, []byte(key), data); err != nil {
		return errors.Wrap(err, "send to kafka")
	}

	p.log.Debugw("Event published", "topic", topic, "size_bytes", len(data))
	return nil
}
