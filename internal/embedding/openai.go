package embedding

import (
	"context"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIModel embeds texts through an OpenAI-compatible embeddings API.
type OpenAIModel struct {
	api   *openai.Client
	model string
	dim   int
}

// NewOpenAI creates a client and probes the endpoint once to learn the
// vector dimension.
func NewOpenAI(ctx context.Context, baseURL, apiKey, modelName string) (*OpenAIModel, error) {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	m := &OpenAIModel{
		api:   openai.NewClientWithConfig(config),
		model: modelName,
	}
	probe, err := m.Embed(ctx, []string{"dimension probe"})
	if err != nil {
		return nil, fmt.Errorf("probe embedding model %q: %w", modelName, err)
	}
	m.dim = len(probe[0])
	return m, nil
}

// Dimension returns the vector length reported by the endpoint.
func (m *OpenAIModel) Dimension() int { return m.dim }

// Embed sends all texts in one request.
func (m *OpenAIModel) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := m.api.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: texts,
		Model: openai.EmbeddingModel(m.model),
	})
	if err != nil {
		return nil, fmt.Errorf("embeddings API call: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings API returned %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("embeddings API returned index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	slog.Debug("openai embeddings", "model", m.model, "inputs", len(texts), "tokens", resp.Usage.TotalTokens)
	return out, nil
}
