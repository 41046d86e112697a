package embedding

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiModel embeds texts with the Gemini API.
type GeminiModel struct {
	client *genai.Client
	model  string
	dim    int
}

// NewGemini creates a Gemini client and probes the model once.
func NewGemini(ctx context.Context, apiKey, modelName string) (*GeminiModel, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create Gemini client: %w", err)
	}

	m := &GeminiModel{client: client, model: modelName}
	probe, err := m.Embed(ctx, []string{"dimension probe"})
	if err != nil {
		return nil, fmt.Errorf("probe gemini model %q: %w", modelName, err)
	}
	m.dim = len(probe[0])
	return m, nil
}

// Dimension returns the probed vector length.
func (m *GeminiModel) Dimension() int { return m.dim }

// Embed sends all texts in one EmbedContent request.
func (m *GeminiModel) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = &genai.Content{
			Role:  "user",
			Parts: []*genai.Part{{Text: t}},
		}
	}

	resp, err := m.client.Models.EmbedContent(ctx, m.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini returned %d vectors for %d inputs", len(resp.Embeddings), len(texts))
	}

	out := make([][]float32, len(texts))
	for i, e := range resp.Embeddings {
		out[i] = e.Values
	}
	return out, nil
}
