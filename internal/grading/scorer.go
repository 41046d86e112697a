// Package grading scores student answers: short answers by semantic
// similarity plus rubric keyword coverage, multiple choice by exact match.
package grading

import (
	"context"
	"log/slog"
	"math"
	"strings"

	"github.com/Axinion/DynamicActive-Task/internal/embedding"
	"github.com/Axinion/DynamicActive-Task/internal/i18n"
)

// Short-answer score weights. They sum to 1.
const (
	SemanticWeight = 0.7
	KeywordWeight  = 0.3
)

// Similarity tiers used in explanations.
const (
	HighSimilarity   = 0.8
	MediumSimilarity = 0.6
)

// Similarity levels reported in Result.Level.
const (
	LevelHigh   = "high"
	LevelMedium = "medium"
	LevelLow    = "low"
)

// Embedder produces embeddings for answer texts.
type Embedder interface {
	Embed(ctx context.Context, text string) (embedding.Vector, error)
}

// Result is the outcome of scoring one short answer.
type Result struct {
	Score           float64  `json:"score"`
	Confidence      float64  `json:"confidence"`
	Explanation     string   `json:"explanation"`
	MatchedKeywords []string `json:"matched_keywords"`
	Semantic        float64  `json:"semantic_similarity"`
	Coverage        float64  `json:"keyword_coverage"`
	Level           string   `json:"similarity_level,omitempty"`
	Degraded        bool     `json:"degraded,omitempty"`
}

// Scorer grades answers. It holds no state besides its embedder.
type Scorer struct {
	embedder Embedder
}

// NewScorer creates a scorer backed by e.
func NewScorer(e Embedder) *Scorer {
	return &Scorer{embedder: e}
}

// Score grades a short answer against a model answer and rubric keywords.
// When embeddings are unavailable the semantic term is zero and the result
// is marked degraded.
func (s *Scorer) Score(ctx context.Context, studentAnswer, modelAnswer string, keywords []string) Result {
	if strings.TrimSpace(studentAnswer) == "" {
		return Result{
			Explanation:     i18n.T(ctx, "GradingNoAnswer"),
			MatchedKeywords: []string{},
		}
	}

	semantic, degraded := s.semantic(ctx, studentAnswer, modelAnswer)
	coverage, matched := KeywordCoverage(studentAnswer, keywords)
	level := SimilarityLevel(semantic)

	return Result{
		Score:           clip01(SemanticWeight*semantic + KeywordWeight*coverage),
		Confidence:      (semantic + coverage) / 2,
		Explanation:     explain(ctx, level, matched, degraded),
		MatchedKeywords: matched,
		Semantic:        semantic,
		Coverage:        coverage,
		Level:           level,
		Degraded:        degraded,
	}
}

func (s *Scorer) semantic(ctx context.Context, studentAnswer, modelAnswer string) (float64, bool) {
	if s.embedder == nil {
		return 0, true
	}
	a, err := s.embedder.Embed(ctx, studentAnswer)
	if err == nil {
		var b embedding.Vector
		b, err = s.embedder.Embed(ctx, modelAnswer)
		if err == nil {
			return embedding.Cosine(a, b), false
		}
	}
	if embedding.IsUnavailable(err) {
		slog.Warn("embedding unavailable, scoring keywords only", "error", err)
	} else {
		slog.Error("embed answer", "error", err)
	}
	return 0, true
}

// SimilarityLevel buckets a similarity into high, medium or low.
func SimilarityLevel(sim float64) string {
	switch {
	case sim >= HighSimilarity:
		return LevelHigh
	case sim >= MediumSimilarity:
		return LevelMedium
	default:
		return LevelLow
	}
}

var levelMessages = map[string]string{
	LevelHigh:   "SimilarityHigh",
	LevelMedium: "SimilarityMedium",
	LevelLow:    "SimilarityLow",
}

func explain(ctx context.Context, level string, matched []string, degraded bool) string {
	concepts := i18n.T(ctx, "GradingConceptsNone")
	if len(matched) > 0 {
		concepts = i18n.Td(ctx, "GradingConceptsMatched", map[string]any{
			"Keywords": strings.Join(matched, ", "),
		})
	}
	out := i18n.Td(ctx, "GradingExplanation", map[string]any{
		"Level":    i18n.T(ctx, levelMessages[level]),
		"Concepts": concepts,
	})
	if degraded {
		out += " " + i18n.T(ctx, "GradingDegraded")
	}
	return out
}

func clip01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}
