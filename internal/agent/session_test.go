package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hypertrader/internal/adapters/ai"
	"hypertrader/internal/tools"
	"hypertrader/pkg/errors"
)

func TestSession_Transcript(t *testing.T) {
	s := NewSession("acct")
	s.AddUserMessage("analyze BTC")
	calls := []ai.ToolCall{
		{ID: "a", Name: "get_market_data", Arguments: `{"symbol":"BTC"}`},
		{ID: "b", Name: "analyze_sentiment", Arguments: `{"symbol":"BTC"}`},
	}
	s.AddModelMessage("", calls)

	assert.Equal(t, 2, s.Pending())
	_, err := s.Messages()
	assert.Error(t, err, "model must not be queried with unanswered calls")

	require.NoError(t, s.AddToolResult(calls[0], tools.Success("get_market_data", map[string]interface{}{"current_price": 100.0})))
	require.NoError(t, s.AddToolResult(calls[1], tools.Failure("analyze_sentiment", errors.KindAdapterExecution, "feed down")))
	assert.Error(t, s.AddToolResult(calls[1], tools.Success("analyze_sentiment", nil)), "second result for the same call")

	msgs, err := s.Messages()
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	assert.Equal(t, ai.RoleUser, msgs[0].Role)
	assert.Equal(t, ai.RoleAssistant, msgs[1].Role)
	assert.Len(t, msgs[1].ToolCalls, 2)
	assert.Equal(t, "a", msgs[2].ToolCallID)
	assert.Equal(t, "b", msgs[3].ToolCallID)
	assert.Contains(t, msgs[3].Content, "failure")

	kinds := []TurnKind{}
	for _, turn := range s.Turns() {
		kinds = append(kinds, turn.Kind)
	}
	assert.Equal(t, []TurnKind{TurnUser, TurnModel, TurnToolCall, TurnToolCall, TurnToolResult, TurnToolResult}, kinds)
}

func TestSession_LatestPayloadOnlyFromSuccess(t *testing.T) {
	s := NewSession("acct")
	first := ai.ToolCall{ID: "1", Name: "get_market_data"}
	second := ai.ToolCall{ID: "2", Name: "get_market_data"}
	s.AddModelMessage("", []ai.ToolCall{first, second})

	require.NoError(t, s.AddToolResult(first, tools.Success("get_market_data", map[string]interface{}{"current_price": 1.0})))
	require.NoError(t, s.AddToolResult(second, tools.Failure("get_market_data", errors.KindAdapterExecution, "timeout")))

	p, ok := s.LatestPayload("get_market_data")
	require.True(t, ok)
	assert.Equal(t, 1.0, p["current_price"])

	_, ok = s.LatestPayload("analyze_sentiment")
	assert.False(t, ok)
}

func TestSession_TradeLedger(t *testing.T) {
	s := NewSession("acct")
	assert.False(t, s.HasTrade("BTC|long"))
	s.RecordTrade("BTC|long")
	assert.True(t, s.HasTrade("BTC|long"))
	assert.False(t, s.HasTrade("BTC|short"))
}

func TestSystemPrompt(t *testing.T) {
	specs := []tools.Spec{tools.NewSpec("get_market_data", "Fetch prices").Build()}
	prompt := SystemPrompt(specs, Request{Symbol: "ETH", DryRun: false, Amount: nd("250")})

	assert.Contains(t, prompt, "- get_market_data: Fetch prices")
	assert.Contains(t, prompt, "symbol: ETH")
	assert.Contains(t, prompt, "dry_run: false")
	assert.Contains(t, prompt, "amount: 250 USD")
	assert.NotContains(t, prompt, "position_size:")
}
