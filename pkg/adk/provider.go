package adk

import (
	"context"
	"fmt"
)

// Provider defines the interface for different AI models. The hardening
// workflow drives fixed prompts, so a provider only needs single-shot text
// generation plus model discovery for the setup wizard.
type Provider interface {
	Generate(ctx context.Context, system, prompt string, temperature float32) (string, error)
	ListModels(ctx context.Context) ([]string, error)
}

func NewProvider(ctx context.Context, providerName, apiKey, modelName string) (Provider, error) {
	switch providerName {
	case "gemini":
		return NewGeminiProvider(ctx, apiKey, modelName)
	case "openai":
		return NewOpenAIProvider(apiKey, modelName), nil
	case "anthropic":
		return NewAnthropicProvider(apiKey, modelName), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", providerName)
	}
}
