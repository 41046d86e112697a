// Package insights groups a class's low-scoring answers into misconception
// clusters for teachers.
package insights

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/Axinion/DynamicActive-Task/internal/embedding"
	"github.com/Axinion/DynamicActive-Task/internal/i18n"
	"github.com/Axinion/DynamicActive-Task/internal/model"
)

const (
	// DefaultPassThreshold is the short-answer score at or above which an
	// answer is not treated as a misconception.
	DefaultPassThreshold = 0.7

	// MinItems is the fewest qualifying answers worth clustering.
	MinItems = 3

	maxClusters  = 3
	maxExamples  = 2
	topKeywords  = 3
	labelWords   = 2
	topSkillTags = 3
)

// Source reads class data for analysis.
type Source interface {
	ClassExists(ctx context.Context, classID int64) (bool, error)
	ListClassResponses(ctx context.Context, classID int64, from, to time.Time) ([]model.ResponseRecord, error)
}

// Embedder embeds many texts at once.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([]embedding.Vector, error)
}

// Example is a representative answer shown for a cluster.
type Example struct {
	StudentAnswer   string  `json:"student_answer"`
	QuestionPrompt  string  `json:"question_prompt"`
	Score           float64 `json:"score"`
	AssignmentTitle string  `json:"assignment_title"`
}

// Cluster is one group of similar wrong answers.
type Cluster struct {
	Label              string    `json:"label"`
	Examples           []Example `json:"examples"`
	SuggestedSkillTags []string  `json:"suggested_skill_tags"`
	CommonKeywords     []string  `json:"common_keywords"`
	Size               int       `json:"cluster_size"`
}

// ClusterResult is the answer to one analysis request. Clusters is empty,
// never nil, and Message explains why when nothing was clustered.
type ClusterResult struct {
	ClassID       int64     `json:"class_id"`
	Period        Period    `json:"period"`
	WindowStart   time.Time `json:"window_start"`
	WindowEnd     time.Time `json:"window_end"`
	TotalItems    int       `json:"total_items"`
	Clusters      []Cluster `json:"clusters"`
	Message       string    `json:"message,omitempty"`
	ThresholdUsed float64   `json:"threshold_used"`
}

// Engine runs misconception analysis.
type Engine struct {
	source        Source
	embedder      Embedder
	clusterer     Clusterer
	passThreshold float64
	now           func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClusterer replaces the default seeded k-means.
func WithClusterer(c Clusterer) Option {
	return func(e *Engine) { e.clusterer = c }
}

// WithPassThreshold sets the short-answer pass threshold.
func WithPassThreshold(t float64) Option {
	return func(e *Engine) { e.passThreshold = t }
}

// WithClock sets the time source used to compute windows.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an engine reading from src and embedding with emb.
func NewEngine(src Source, emb Embedder, opts ...Option) *Engine {
	e := &Engine{
		source:        src,
		embedder:      emb,
		clusterer:     NewKMeans(DefaultSeed),
		passThreshold: DefaultPassThreshold,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ClusterMisconceptions clusters the class's wrong MCQ answers and failing
// short answers submitted within period. Unknown periods and classes are
// validation errors. Too little data, unavailable embeddings and clustering
// failures all yield a result with no clusters.
func (e *Engine) ClusterMisconceptions(ctx context.Context, classID int64, period string) (*ClusterResult, error) {
	p, err := ParsePeriod(period)
	if err != nil {
		return nil, err
	}
	ok, err := e.source.ClassExists(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("check class %d: %w", classID, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %d", model.ErrClassNotFound, classID)
	}

	start, end := p.Window(e.now().UTC())
	records, err := e.source.ListClassResponses(ctx, classID, start, end)
	if err != nil {
		return nil, fmt.Errorf("list responses for class %d: %w", classID, err)
	}
	items := lo.Filter(records, func(r model.ResponseRecord, _ int) bool {
		return e.qualifies(r)
	})

	res := &ClusterResult{
		ClassID:       classID,
		Period:        p,
		WindowStart:   start,
		WindowEnd:     end,
		TotalItems:    len(items),
		Clusters:      []Cluster{},
		ThresholdUsed: e.passThreshold,
	}
	if len(items) < MinItems {
		res.Message = i18n.T(ctx, "InsightsInsufficientData")
		return res, nil
	}

	vectors, err := e.embedder.EmbedBatch(ctx, lo.Map(items, func(r model.ResponseRecord, _ int) string {
		return embeddingText(r)
	}))
	if err != nil {
		slog.Warn("misconception analysis without embeddings", "class_id", classID, "error", err)
		res.Message = i18n.T(ctx, "InsightsEmbeddingUnavailable")
		return res, nil
	}

	k := min(maxClusters, max(1, len(items)/3))
	labels, err := e.clusterer.Cluster(vectors, k)
	if err == nil && len(labels) != len(items) {
		err = fmt.Errorf("clusterer returned %d labels for %d items", len(labels), len(items))
	}
	if err != nil {
		slog.Warn("clustering failed", "class_id", classID, "items", len(items), "k", k, "error", err)
		res.Message = i18n.T(ctx, "InsightsClusteringFailed")
		return res, nil
	}

	res.Clusters = buildClusters(ctx, items, labels)
	slog.Debug("misconception clusters", "class_id", classID, "items", len(items), "clusters", len(res.Clusters))
	return res, nil
}

// qualifies reports whether a response counts as a misconception: a wrong
// MCQ answer or a short answer below the pass threshold.
func (e *Engine) qualifies(r model.ResponseRecord) bool {
	score := r.Response.EffectiveScore()
	if score == nil {
		return false
	}
	switch r.Question.Type {
	case model.QuestionMCQ:
		return *score < 1
	case model.QuestionShort:
		return *score < e.passThreshold
	default:
		return false
	}
}

// embeddingText pairs a wrong MCQ option with its prompt since the option
// alone carries little meaning.
func embeddingText(r model.ResponseRecord) string {
	answer := r.Response.Answer.Canonical()
	if r.Question.Type == model.QuestionMCQ {
		return r.Question.Prompt + " Wrong answer: " + answer
	}
	return answer
}

func buildClusters(ctx context.Context, items []model.ResponseRecord, labels []int) []Cluster {
	var order []int
	members := make(map[int][]model.ResponseRecord)
	for i, l := range labels {
		if _, seen := members[l]; !seen {
			order = append(order, l)
		}
		members[l] = append(members[l], items[i])
	}

	clusters := make([]Cluster, 0, len(order))
	for _, l := range order {
		ms := members[l]
		answers := lo.Map(ms, func(r model.ResponseRecord, _ int) string {
			return r.Response.Answer.Canonical()
		})
		keywords := ExtractKeywords(strings.Join(answers, " "), topKeywords)
		tags := mostCommon(lo.FlatMap(ms, func(r model.ResponseRecord, _ int) []string {
			return lo.Uniq(r.Question.SkillTags)
		}), topSkillTags)

		clusters = append(clusters, Cluster{
			Label:              clusterLabel(ctx, l, keywords),
			Examples:           lo.Map(ms[:min(maxExamples, len(ms))], toExample),
			SuggestedSkillTags: tags,
			CommonKeywords:     keywords,
			Size:               len(ms),
		})
	}
	return clusters
}

func clusterLabel(ctx context.Context, label int, keywords []string) string {
	if len(keywords) == 0 {
		return i18n.Td(ctx, "InsightsLabelFallback", map[string]any{"N": label + 1})
	}
	return i18n.Td(ctx, "InsightsLabelKeywords", map[string]any{
		"Keywords": strings.Join(keywords[:min(labelWords, len(keywords))], ", "),
	})
}

func toExample(r model.ResponseRecord, _ int) Example {
	var score float64
	if s := r.Response.EffectiveScore(); s != nil {
		score = *s
	}
	return Example{
		StudentAnswer:   r.Response.Answer.Canonical(),
		QuestionPrompt:  r.Question.Prompt,
		Score:           score,
		AssignmentTitle: r.AssignmentTitle,
	}
}
