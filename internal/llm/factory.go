package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/a3tai/survey-pdf-processor/internal/config"
)

// NewVisionClient creates the client for cfg.Provider
func NewVisionClient(ctx context.Context, cfg config.LLMConfig) (VisionClient, error) {
	provider := strings.ToLower(cfg.Provider)

	switch provider {
	case config.ProviderClaude:
		return NewClaudeClient(cfg.APIKey, cfg.Model, cfg.BaseURL, cfg.MaxTokens), nil

	case config.ProviderOpenAI:
		return NewOpenAIClient(cfg.APIKey, cfg.Model, cfg.BaseURL, cfg.MaxTokens), nil

	case config.ProviderGemini:
		c, err := NewGeminiClient(ctx, cfg.APIKey, cfg.Model, cfg.BaseURL, cfg.MaxTokens)
		if err != nil {
			return nil, err
		}
		return c, nil

	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", provider)
	}
}
