package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hypertrader/pkg/errors"
)

func TestChatResponse_Reply(t *testing.T) {
	tests := []struct {
		name    string
		resp    *ChatResponse
		wantErr bool
	}{
		{name: "nil", resp: nil, wantErr: true},
		{name: "no choices", resp: &ChatResponse{}, wantErr: true},
		{name: "blank text", resp: &ChatResponse{Choices: []Choice{{Message: Message{Content: "  \n"}, FinishReason: FinishReasonLength}}}, wantErr: true},
		{name: "text", resp: &ChatResponse{Choices: []Choice{{Message: Message{Content: "done"}}}}},
		{name: "tool calls only", resp: &ChatResponse{Choices: []Choice{{Message: Message{ToolCalls: []ToolCall{{ID: "1", Name: "x"}}}}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := tt.resp.Reply()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, errors.ErrModelBackend))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.resp.Choices[0].Message, msg)
		})
	}
}

func TestParseProviderName(t *testing.T) {
	name, err := ParseProviderName(" Gemini ")
	require.NoError(t, err)
	assert.Equal(t, ProviderNameGemini, name)

	_, err = ParseProviderName("claude")
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}
