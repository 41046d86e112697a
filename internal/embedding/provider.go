package embedding

import (
	"context"
	"fmt"
	"strings"
)

// Supported embedding backends.
const (
	ProviderHashing = "hashing"
	ProviderOpenAI  = "openai"
	ProviderOllama  = "ollama"
	ProviderGemini  = "gemini"
)

var defaultModels = map[string]string{
	ProviderHashing: "ngram-hashing",
	ProviderOpenAI:  "text-embedding-3-small",
	ProviderOllama:  "all-minilm",
	ProviderGemini:  "text-embedding-004",
}

// ProviderConfig selects and configures a backend.
type ProviderConfig struct {
	Provider   string
	Model      string
	BaseURL    string
	APIKey     string
	Dimensions int
}

// ValidProvider reports whether name is a known backend.
func ValidProvider(name string) bool {
	_, ok := defaultModels[strings.ToLower(name)]
	return ok
}

// NewFactory returns a Factory for the configured backend. Nothing is
// contacted until the factory runs.
func NewFactory(cfg ProviderConfig) (Factory, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = ProviderHashing
	}
	modelName := cfg.Model
	if modelName == "" {
		modelName = defaultModels[provider]
	}

	switch provider {
	case ProviderHashing:
		return func(context.Context) (Model, error) {
			return NewHashing(cfg.Dimensions), nil
		}, nil
	case ProviderOpenAI:
		return func(ctx context.Context) (Model, error) {
			m, err := NewOpenAI(ctx, cfg.BaseURL, cfg.APIKey, modelName)
			if err != nil {
				return nil, err
			}
			return m, nil
		}, nil
	case ProviderOllama:
		return func(ctx context.Context) (Model, error) {
			m, err := NewOllama(ctx, cfg.BaseURL, modelName)
			if err != nil {
				return nil, err
			}
			return m, nil
		}, nil
	case ProviderGemini:
		return func(ctx context.Context) (Model, error) {
			m, err := NewGemini(ctx, cfg.APIKey, modelName)
			if err != nil {
				return nil, err
			}
			return m, nil
		}, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}
