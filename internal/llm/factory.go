package llm

import (
	"context"
	"fmt"

	"parley/agent/internal/config"
)

// New picks the backend named by cfg.LLM.Provider.
func New(ctx context.Context, cfg config.Config) (Generator, error) {
	p := Params{MaxTokens: cfg.LLM.MaxTokens, Temperature: cfg.LLM.Temperature}
	switch cfg.LLM.Provider {
	case "", "openai":
		p.Model = cfg.OpenAI.Model
		return NewOpenAI(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, p), nil
	case "gemini":
		p.Model = cfg.Gemini.Model
		return NewGemini(ctx, cfg.Gemini.APIKey, "", p)
	}
	return nil, fmt.Errorf("llm: unknown provider %q", cfg.LLM.Provider)
}
