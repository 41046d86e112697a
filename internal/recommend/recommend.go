// Package recommend ranks a class's lessons for a student by how much they
// target the student's weak skills and how close they are to what the
// student has been studying.
package recommend

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/Axinion/DynamicActive-Task/internal/embedding"
	"github.com/Axinion/DynamicActive-Task/internal/i18n"
	"github.com/Axinion/DynamicActive-Task/internal/mastery"
	"github.com/Axinion/DynamicActive-Task/internal/model"
)

const (
	SkillWeight      = 0.6
	SimilarityWeight = 0.4

	// WeakMasteryThreshold is the mastery below which a tag is named as a
	// struggle in the reason.
	WeakMasteryThreshold = 0.7

	// DefaultRecentLessons is how many recent lessons describe what the
	// student is currently studying.
	DefaultRecentLessons = 3

	reasonTags = 2
)

// MasteryProvider computes a student's skill mastery. It also validates the
// class and the enrollment.
type MasteryProvider interface {
	SkillMastery(ctx context.Context, classID, studentID int64) (*mastery.Result, error)
}

// LessonSource reads lessons and stores computed lesson embeddings.
type LessonSource interface {
	// ListClassLessons returns the class's lessons in creation order.
	ListClassLessons(ctx context.Context, classID int64) ([]model.Lesson, error)
	// RecentLessons returns up to n lessons the student viewed most recently,
	// or the class's newest lessons when the student has viewed none.
	RecentLessons(ctx context.Context, classID, studentID int64, n int) ([]model.Lesson, error)
	SaveLessonEmbedding(ctx context.Context, lessonID int64, v embedding.Vector) error
}

// Embedder embeds a single text.
type Embedder interface {
	Embed(ctx context.Context, text string) (embedding.Vector, error)
}

// Recommendation is one ranked lesson.
type Recommendation struct {
	LessonID     int64              `json:"lesson_id"`
	Title        string             `json:"title"`
	Score        float64            `json:"score"`
	Reason       string             `json:"reason"`
	SkillTags    []string           `json:"skill_tags"`
	SkillMastery map[string]float64 `json:"skill_mastery"`
}

// Report wraps recommendations with the mastery they were derived from.
type Report struct {
	StudentID       int64              `json:"student_id"`
	ClassID         int64              `json:"class_id"`
	SkillMastery    map[string]float64 `json:"skill_mastery"`
	Recommendations []Recommendation   `json:"recommendations"`
	TotalLessons    int                `json:"total_lessons_available"`
}

// Ranker ranks lessons.
type Ranker struct {
	mastery  MasteryProvider
	lessons  LessonSource
	embedder Embedder
	recent   int
}

// Option configures a Ranker.
type Option func(*Ranker)

// WithRecentLessons sets how many recent lessons are averaged.
func WithRecentLessons(n int) Option {
	return func(r *Ranker) { r.recent = n }
}

// NewRanker creates a ranker.
func NewRanker(m MasteryProvider, lessons LessonSource, emb Embedder, opts ...Option) *Ranker {
	r := &Ranker{mastery: m, lessons: lessons, embedder: emb, recent: DefaultRecentLessons}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RankLessons returns at most k lessons, best first.
func (r *Ranker) RankLessons(ctx context.Context, studentID, classID int64, k int) ([]Recommendation, error) {
	rep, err := r.Recommend(ctx, studentID, classID, k)
	if err != nil {
		return nil, err
	}
	return rep.Recommendations, nil
}

// Recommend ranks lessons and reports the mastery map used.
func (r *Ranker) Recommend(ctx context.Context, studentID, classID int64, k int) (*Report, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: k must be at least 1, got %d", model.ErrInvalidParameter, k)
	}
	m, err := r.mastery.SkillMastery(ctx, classID, studentID)
	if err != nil {
		return nil, err
	}
	masteryByTag := m.Map()

	lessons, err := r.lessons.ListClassLessons(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}
	rep := &Report{
		StudentID:       studentID,
		ClassID:         classID,
		SkillMastery:    masteryByTag,
		Recommendations: []Recommendation{},
		TotalLessons:    len(lessons),
	}
	candidates := lo.Filter(lessons, func(l model.Lesson, _ int) bool {
		return len(l.SkillTags) > 0
	})
	if len(candidates) == 0 {
		return rep, nil
	}

	vectors := make(map[int64]embedding.Vector)
	profile, err := r.recentProfile(ctx, classID, studentID, vectors)
	if err != nil {
		return nil, err
	}

	recs := lo.Map(candidates, func(l model.Lesson, _ int) Recommendation {
		skill := skillScore(l.SkillTags, masteryByTag)
		var sim float64
		if !embedding.IsZero(profile) {
			sim = embedding.Cosine(profile, r.lessonVector(ctx, l, vectors))
		}
		return Recommendation{
			LessonID:  l.ID,
			Title:     l.Title,
			Score:     SkillWeight*skill + SimilarityWeight*sim,
			Reason:    reason(ctx, l.SkillTags, masteryByTag),
			SkillTags: l.SkillTags,
			SkillMastery: lo.SliceToMap(l.SkillTags, func(tag string) (string, float64) {
				return tag, masteryByTag[tag]
			}),
		}
	})
	slices.SortStableFunc(recs, func(a, b Recommendation) int {
		return cmp.Compare(b.Score, a.Score)
	})
	rep.Recommendations = recs[:min(k, len(recs))]
	return rep, nil
}

// skillScore favours lessons on weak skills. A tag with no evidence counts
// as mastery 0.
func skillScore(tags []string, masteryByTag map[string]float64) float64 {
	gaps := lo.Map(tags, func(tag string, _ int) float64 {
		return 1 - masteryByTag[tag]
	})
	return lo.Sum(gaps) / float64(len(gaps))
}

// recentProfile averages the embeddings of the student's recent lessons.
// It returns nil when there is no usable history.
func (r *Ranker) recentProfile(ctx context.Context, classID, studentID int64, vectors map[int64]embedding.Vector) (embedding.Vector, error) {
	recent, err := r.lessons.RecentLessons(ctx, classID, studentID, r.recent)
	if err != nil {
		return nil, fmt.Errorf("recent lessons: %w", err)
	}
	vs := lo.FilterMap(recent, func(l model.Lesson, _ int) (embedding.Vector, bool) {
		v := r.lessonVector(ctx, l, vectors)
		return v, !embedding.IsZero(v)
	})
	return embedding.Mean(vs), nil
}

// lessonVector returns the stored embedding or computes and stores one.
// Failures give a nil vector so the lesson scores on skills alone.
func (r *Ranker) lessonVector(ctx context.Context, l model.Lesson, vectors map[int64]embedding.Vector) embedding.Vector {
	if v, ok := vectors[l.ID]; ok {
		return v
	}
	v := embedding.Vector(l.Embedding)
	if len(v) == 0 && r.embedder != nil {
		var err error
		v, err = r.embedder.Embed(ctx, l.Content)
		if err != nil {
			slog.Warn("lesson embedding unavailable", "lesson_id", l.ID, "error", err)
			v = nil
		} else if !embedding.IsZero(v) {
			if err := r.lessons.SaveLessonEmbedding(ctx, l.ID, v); err != nil {
				slog.Warn("save lesson embedding", "lesson_id", l.ID, "error", err)
			}
		}
	}
	vectors[l.ID] = v
	return v
}

func reason(ctx context.Context, tags []string, masteryByTag map[string]float64) string {
	weak := lo.Filter(tags, func(tag string, _ int) bool {
		return masteryByTag[tag] < WeakMasteryThreshold
	})
	if len(weak) > 0 {
		return i18n.Td(ctx, "RecommendStruggled", map[string]any{
			"Tags": strings.Join(weak[:min(reasonTags, len(weak))], ", "),
		})
	}
	return i18n.Td(ctx, "RecommendLearning", map[string]any{
		"Tags": strings.Join(tags[:min(reasonTags, len(tags))], ", "),
	})
}
