// internal/llm/claude/claude_test.go
package claude

import (
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/papertrader/internal/llm"
)

func TestProvider_ImplementsInterface(t *testing.T) {
	var _ llm.Provider = (*Provider)(nil)
}

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New("", "model")
	assert.Error(t, err)
}

func TestNew_DefaultModel(t *testing.T) {
	p, err := New("key", "")
	require.NoError(t, err)
	assert.Equal(t, "claude", p.Name())
	assert.NotEmpty(t, p.model)
}

func TestBuildParams(t *testing.T) {
	params := buildParams("claude-test", llm.ChatRequest{
		SystemPrompt: "coach",
		Messages:     []llm.Message{{Role: "user", Content: "grade this session"}},
		Temperature:  0.3,
	})

	assert.Equal(t, anthropic.Model("claude-test"), params.Model)
	assert.Equal(t, int64(1024), params.MaxTokens)
	require.Len(t, params.System, 1)
	assert.Equal(t, "coach", params.System[0].Text)
	require.Len(t, params.Messages, 1)
	assert.Equal(t, anthropic.MessageParamRoleUser, params.Messages[0].Role)
}

func TestBuildParams_JSONModePrefillsAssistant(t *testing.T) {
	params := buildParams("claude-test", llm.ChatRequest{
		Messages:  []llm.Message{{Role: "user", Content: "grade this session"}},
		MaxTokens: 2048,
		JSONMode:  true,
	})

	assert.Equal(t, int64(2048), params.MaxTokens)
	assert.Empty(t, params.System)
	require.Len(t, params.Messages, 2)
	last := params.Messages[1]
	assert.Equal(t, anthropic.MessageParamRoleAssistant, last.Role)
	require.Len(t, last.Content, 1)
	require.NotNil(t, last.Content[0].OfText)
	assert.Equal(t, jsonPrefill, last.Content[0].OfText.Text)
}
