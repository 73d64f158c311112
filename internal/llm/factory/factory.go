// internal/llm/factory/factory.go
package factory

import (
	"context"
	"fmt"

	"github.com/newthinker/papertrader/internal/config"
	"github.com/newthinker/papertrader/internal/llm"
	"github.com/newthinker/papertrader/internal/llm/claude"
	"github.com/newthinker/papertrader/internal/llm/gemini"
	"github.com/newthinker/papertrader/internal/llm/openai"
)

// New creates an LLM provider based on configuration.
func New(ctx context.Context, cfg config.LLMConfig) (llm.Provider, error) {
	switch cfg.Provider {
	case "claude":
		return claude.New(cfg.Claude.APIKey, cfg.Claude.Model)
	case "openai":
		return openai.New(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.BaseURL)
	case "gemini":
		return gemini.New(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", cfg.Provider)
	}
}
