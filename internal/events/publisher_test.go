package events

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"hypertrader/internal/adapters/kafka"
	"hypertrader/internal/domain/trade"
	"hypertrader/pkg/errors"
	"hypertrader/pkg/logger"
)

type message struct {
	topic string
	key   string
	data  []byte
}

type fakeProducer struct {
	messages []message
	err      error
}

func (f *fakeProducer) PublishBinary(ctx context.Context, topic string, key []byte, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, message{topic: topic, key: string(key), data: data})
	return nil
}

func decode(t *testing.T, data []byte) map[string]interface{} {
	t.Helper()
	var s structpb.Struct
	require.NoError(t, proto.Unmarshal(data, &s))
	return s.AsMap()
}

func TestPublisher_TradeExecuted(t *testing.T) {
	producer := &fakeProducer{}
	pub := NewPublisher(producer, "hypertrader", logger.Nop())

	exec := &trade.Execution{
		ID:        "exec-1",
		SessionID: "sess-1",
		AccountID: "acct",
		Intent: trade.Intent{
			Symbol:       "ETH",
			Side:         trade.SideShort,
			Amount:       decimal.NewFromInt(500),
			PositionSize: decimal.RequireFromString("0.05"),
		},
		Simulated:  true,
		EntryPrice: decimal.NewFromInt(2800),
		ExecutedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	require.NoError(t, pub.PublishTradeExecuted(context.Background(), exec))
	require.Len(t, producer.messages, 1)

	msg := producer.messages[0]
	assert.Equal(t, kafka.TopicTradeExecuted, msg.topic)
	assert.Equal(t, "acct", msg.key)

	env := decode(t, msg.data)
	assert.Equal(t, kafka.TopicTradeExecuted, env["type"])
	assert.Equal(t, "2026-01-02T03:04:05Z", env["occurred_at"])
	payload := env["payload"].(map[string]interface{})
	assert.Equal(t, "ETH", payload["symbol"])
	assert.Equal(t, true, payload["simulated"])
	assert.Equal(t, "sess-1", payload["session_id"])
}

func TestPublisher_SanitizesInvalidUTF8(t *testing.T) {
	producer := &fakeProducer{}
	pub := NewPublisher(producer, "hypertrader", logger.Nop())

	err := pub.PublishRiskViolation(context.Background(), RiskViolation{
		SessionID:  "s",
		Symbol:     "BTC",
		Message:    "position\xff too large",
		Violations: []string{"position_size 0.5 > 0.1"},
		OccurredAt: time.Now(),
	})
	require.NoError(t, err)

	payload := decode(t, producer.messages[0].data)["payload"].(map[string]interface{})
	assert.Equal(t, "position too large", payload["message"])
	assert.Equal(t, []interface{}{"position_size 0.5 > 0.1"}, payload["violations"])
}

func TestPublisher_SessionCompleted(t *testing.T) {
	producer := &fakeProducer{}
	pub := NewPublisher(producer, "hypertrader", logger.Nop())

	require.NoError(t, pub.PublishSessionCompleted(context.Background(), SessionCompleted{
		SessionID: "s", Status: "failed", ErrorKind: "StepLimitExceeded", Steps: 10, Duration: 1500 * time.Millisecond,
	}))

	payload := decode(t, producer.messages[0].data)["payload"].(map[string]interface{})
	assert.Equal(t, float64(10), payload["steps"])
	assert.Equal(t, float64(1500), payload["duration_ms"])
	assert.Equal(t, "StepLimitExceeded", payload["error_kind"])
}

func TestPublisher_ProducerError(t *testing.T) {
	pub := NewPublisher(&fakeProducer{err: errors.New("broker down")}, "hypertrader", logger.Nop())

	err := pub.PublishSessionCompleted(context.Background(), SessionCompleted{SessionID: "s"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}
