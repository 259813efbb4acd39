package ai

import (
    "fmt"

    "github.com/local/docextract/internal/config"
)

// NewClientFromConfig builds the configured provider client. VISION_USE_MOCK
// overrides the engine choice.
func NewClientFromConfig(cfg config.ProvidersConfig) (Client, error) {
    if cfg.UseMock {
        return NewMockClient(), nil
    }
    switch cfg.Engine {
    case "gemini", "":
        return NewGeminiClient(GeminiOptions{
            APIKey:      cfg.Gemini.APIKey,
            AccessToken: cfg.Gemini.AccessToken,
            Project:     cfg.Gemini.Project,
            Location:    cfg.Gemini.Location,
        }), nil
    case "openai":
        return NewOpenAIClient(cfg.OpenAI.APIKey), nil
    case "mock":
        return NewMockClient(), nil
    default:
        return nil, fmt.Errorf("unknown vision engine %q", cfg.Engine)
    }
}

// DefaultModel returns the configured model name for the chosen engine.
func DefaultModel(cfg config.ProvidersConfig) string {
    switch cfg.Engine {
    case "openai":
        return cfg.OpenAI.Model
    default:
        return cfg.Gemini.Model
    }
}
