// Package mastery aggregates graded responses into per-skill mastery.
package mastery

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/samber/lo"

	"github.com/Axinion/DynamicActive-Task/internal/model"
)

// MCQPassScore is the effective score an MCQ response needs to count as
// mastered. Anything lower contributes 0.
const MCQPassScore = 1.0

// Source reads enrollment and graded responses.
type Source interface {
	ClassExists(ctx context.Context, classID int64) (bool, error)
	IsEnrolled(ctx context.Context, classID, studentID int64) (bool, error)
	ListClassStudents(ctx context.Context, classID int64) ([]model.User, error)
	ListStudentResponses(ctx context.Context, classID, studentID int64) ([]model.ResponseRecord, error)
}

// SkillEntry is the mastery of one skill tag.
type SkillEntry struct {
	Tag     string  `json:"tag"`
	Mastery float64 `json:"mastery"`
	Samples int     `json:"samples"`
}

// Result is a student's mastery profile, weakest skill first.
type Result struct {
	ClassID        int64        `json:"class_id"`
	StudentID      int64        `json:"student_id"`
	Skills         []SkillEntry `json:"skill_mastery"`
	Overall        float64      `json:"overall_mastery_avg"`
	TotalResponses int          `json:"total_responses"`
	SkillsAnalyzed int          `json:"skills_analyzed"`
}

// Map returns mastery keyed by tag.
func (r *Result) Map() map[string]float64 {
	return lo.SliceToMap(r.Skills, func(s SkillEntry) (string, float64) {
		return s.Tag, s.Mastery
	})
}

// Aggregator computes mastery from stored responses.
type Aggregator struct {
	source Source
}

// NewAggregator creates an aggregator reading from src.
func NewAggregator(src Source) *Aggregator {
	return &Aggregator{source: src}
}

// SkillMastery computes the student's mastery in the class. The class must
// exist and the student must be enrolled in it.
func (a *Aggregator) SkillMastery(ctx context.Context, classID, studentID int64) (*Result, error) {
	if err := a.checkClass(ctx, classID); err != nil {
		return nil, err
	}
	enrolled, err := a.source.IsEnrolled(ctx, classID, studentID)
	if err != nil {
		return nil, fmt.Errorf("check enrollment: %w", err)
	}
	if !enrolled {
		return nil, fmt.Errorf("%w: student %d, class %d", model.ErrNotEnrolled, studentID, classID)
	}

	records, err := a.source.ListStudentResponses(ctx, classID, studentID)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	res := Compute(records)
	res.ClassID, res.StudentID = classID, studentID
	return res, nil
}

func (a *Aggregator) checkClass(ctx context.Context, classID int64) error {
	ok, err := a.source.ClassExists(ctx, classID)
	if err != nil {
		return fmt.Errorf("check class %d: %w", classID, err)
	}
	if !ok {
		return fmt.Errorf("%w: %d", model.ErrClassNotFound, classID)
	}
	return nil
}

// Compute aggregates graded records. Each record contributes its score to
// every distinct tag on its question, and Overall averages all of those
// contributions. Ungraded records and untagged questions contribute nothing.
func Compute(records []model.ResponseRecord) *Result {
	var order []string
	buckets := make(map[string][]float64)
	var all []float64

	for _, r := range records {
		score, ok := contribution(r)
		if !ok {
			continue
		}
		for _, tag := range lo.Uniq(r.Question.SkillTags) {
			if _, seen := buckets[tag]; !seen {
				order = append(order, tag)
			}
			buckets[tag] = append(buckets[tag], score)
			all = append(all, score)
		}
	}

	skills := lo.Map(order, func(tag string, _ int) SkillEntry {
		return SkillEntry{Tag: tag, Mastery: round3(mean(buckets[tag])), Samples: len(buckets[tag])}
	})
	slices.SortStableFunc(skills, func(a, b SkillEntry) int {
		return cmp.Or(cmp.Compare(a.Mastery, b.Mastery), cmp.Compare(a.Tag, b.Tag))
	})

	return &Result{
		Skills:         skills,
		Overall:        round3(mean(all)),
		TotalResponses: len(all),
		SkillsAnalyzed: len(skills),
	}
}

func contribution(r model.ResponseRecord) (float64, bool) {
	eff := r.Response.EffectiveScore()
	if eff == nil {
		return 0, false
	}
	if r.Question.Type == model.QuestionMCQ {
		if *eff >= MCQPassScore {
			return 1, true
		}
		return 0, true
	}
	return *eff, true
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return lo.Sum(xs) / float64(len(xs))
}

func round3(x float64) float64 {
	return math.Round(x*1000) / 1000
}
