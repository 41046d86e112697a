package embedding

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
)

// OllamaModel embeds texts with a local Ollama server through langchaingo.
type OllamaModel struct {
	embedder embeddings.Embedder
	dim      int
}

// NewOllama connects to serverURL (the Ollama default when empty) and
// probes the model once.
func NewOllama(ctx context.Context, serverURL, modelName string) (*OllamaModel, error) {
	opts := []ollama.Option{ollama.WithModel(modelName)}
	if serverURL != "" {
		opts = append(opts, ollama.WithServerURL(serverURL))
	}
	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}

	probe, err := embedder.EmbedQuery(ctx, "dimension probe")
	if err != nil {
		return nil, fmt.Errorf("probe ollama model %q: %w", modelName, err)
	}
	return &OllamaModel{embedder: embedder, dim: len(probe)}, nil
}

// Dimension returns the probed vector length.
func (m *OllamaModel) Dimension() int { return m.dim }

// Embed embeds texts as documents.
func (m *OllamaModel) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vs, err := m.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	return vs, nil
}
