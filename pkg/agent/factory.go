// Package agent constructs provider-specific LLM clients behind the
// llm.Client interface.
package agent

import (
	"fmt"

	"voxcrew/pkg/agent/internal/llmimpl/anthropic"
	"voxcrew/pkg/agent/internal/llmimpl/google"
	"voxcrew/pkg/agent/internal/llmimpl/ollama"
	"voxcrew/pkg/agent/internal/llmimpl/openaiofficial"
	"voxcrew/pkg/agent/llm"
	"voxcrew/pkg/config"
)

// NewClient creates the LLM client for the configured provider. Called once
// at startup; the returned client is passed by reference to everything that
// needs model access.
func NewClient(cfg *config.Config) (llm.Client, error) {
	switch cfg.Provider {
	case config.ProviderGoogle, config.ProviderAnthropic, config.ProviderOpenAI:
		apiKey, err := config.GetSecret(config.APIKeyEnvVar(cfg.Provider))
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", cfg.Provider, err)
		}
		switch cfg.Provider {
		case config.ProviderGoogle:
			return google.NewClient(apiKey, cfg.Models.Fast, cfg.Models.Quality), nil
		case config.ProviderAnthropic:
			return anthropic.NewClient(apiKey, cfg.Models.Fast, cfg.Models.Quality), nil
		default:
			return openaiofficial.NewClient(apiKey, cfg.Models.Fast, cfg.Models.Quality), nil
		}
	case config.ProviderOllama:
		// Local runtime, no API key needed.
		return ollama.NewClient(cfg.OllamaHost, cfg.Models.Fast), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
}
