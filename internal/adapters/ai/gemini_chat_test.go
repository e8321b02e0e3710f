package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"hypertrader/internal/tools"
)

func TestGeminiContents(t *testing.T) {
	contents, err := geminiContents([]Message{
		{Role: RoleUser, Content: "trade ETH"},
		{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "c1", Name: "get_market_data", Arguments: `{"symbol":"ETH"}`}}},
		{Role: RoleTool, ToolCallID: "c1", Name: "get_market_data", Content: `{"status":"success"}`},
	})
	require.NoError(t, err)
	require.Len(t, contents, 3)

	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, "model", contents[1].Role)
	fc := contents[1].Parts[0].FunctionCall
	require.NotNil(t, fc)
	assert.Equal(t, "ETH", fc.Args["symbol"])

	fr := contents[2].Parts[0].FunctionResponse
	require.NotNil(t, fr)
	assert.Equal(t, "get_market_data", fr.Name)
	assert.Equal(t, "success", fr.Response["status"])
}

func TestGeminiContents_BadArguments(t *testing.T) {
	_, err := geminiContents([]Message{
		{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "c1", Name: "x", Arguments: `{`}}},
	})
	assert.Error(t, err)
}

func TestFromGeminiResponse(t *testing.T) {
	resp := fromGeminiResponse(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				{Text: "Checking the market. "},
				{FunctionCall: &genai.FunctionCall{Name: "get_market_data", Args: map[string]any{"symbol": "BTC"}}},
			}},
			FinishReason: genai.FinishReasonStop,
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{PromptTokenCount: 10, CandidatesTokenCount: 5, TotalTokenCount: 15},
	})

	require.Len(t, resp.Choices, 1)
	msg := resp.Choices[0].Message
	assert.Equal(t, FinishReasonToolCalls, resp.Choices[0].FinishReason)
	assert.Equal(t, "Checking the market. ", msg.Content)
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "call_0_1", msg.ToolCalls[0].ID)
	assert.JSONEq(t, `{"symbol":"BTC"}`, msg.ToolCalls[0].Arguments)
	assert.Equal(t, 15, resp.Usage.TotalTokens)
}

func TestGeminiSchema(t *testing.T) {
	spec := tools.NewSpec("execute_trade", "trade").
		Required("symbol", tools.TypeString, "symbol").
		Optional("side", tools.TypeString, "side").Enum("long", "short").
		Optional("dry_run", tools.TypeBoolean, "dry").
		Build()

	schema := geminiSchema(spec.JSONSchema())
	assert.Equal(t, genai.TypeObject, schema.Type)
	assert.Equal(t, []string{"symbol"}, schema.Required)
	assert.Equal(t, genai.TypeBoolean, schema.Properties["dry_run"].Type)
	assert.Equal(t, []string{"long", "short"}, schema.Properties["side"].Enum)
}
