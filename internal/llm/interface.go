package llm

import (
	"context"
	"strings"
)

// Provider is a chat model backend. Review grading is its only caller.
type Provider interface {
	Name() string
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// ChatRequest is one completion call. JSONMode asks the backend for a
// single JSON object where it supports that.
type ChatRequest struct {
	SystemPrompt string
	Messages     []Message
	MaxTokens    int
	Temperature  float64
	JSONMode     bool
}

// Message represents a chat message
type Message struct {
	Role    string // "user" or "assistant"
	Content string
}

// ChatResponse is a completion and the accounting the backend reported
// for it. FinishReason is the backend's own stop reason string.
type ChatResponse struct {
	Content      string
	Usage        Usage
	FinishReason string
}

// Truncated reports whether the reply stopped at the token limit. Claude
// and Gemini say max_tokens, OpenAI says length.
func (r *ChatResponse) Truncated() bool {
	switch strings.ToLower(r.FinishReason) {
	case "max_tokens", "length":
		return true
	}
	return false
}

// Usage counts the tokens billed for one call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}
