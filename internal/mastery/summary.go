package mastery

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/samber/lo"
)

// ClassSkill is the class-wide view of one skill.
type ClassSkill struct {
	Tag              string  `json:"tag"`
	AverageMastery   float64 `json:"avg_mastery"`
	StudentsWithData int     `json:"students_with_data"`
	Coverage         float64 `json:"coverage"`
}

// ClassSummary averages student mastery per skill across a class.
type ClassSummary struct {
	ClassID        int64        `json:"class_id"`
	Skills         []ClassSkill `json:"skill_summary"`
	TotalStudents  int          `json:"total_students"`
	SkillsAnalyzed int          `json:"skills_analyzed"`
}

// ClassSummary computes per-skill averages over students with graded work.
// Coverage is the percentage of those students who have data on the skill.
func (a *Aggregator) ClassSummary(ctx context.Context, classID int64) (*ClassSummary, error) {
	if err := a.checkClass(ctx, classID); err != nil {
		return nil, err
	}
	students, err := a.source.ListClassStudents(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}

	var order []string
	perTag := make(map[string][]float64)
	withData := 0
	for _, st := range students {
		records, err := a.source.ListStudentResponses(ctx, classID, st.ID)
		if err != nil {
			return nil, fmt.Errorf("list responses for student %d: %w", st.ID, err)
		}
		res := Compute(records)
		if res.TotalResponses == 0 {
			continue
		}
		withData++
		for _, s := range res.Skills {
			if _, seen := perTag[s.Tag]; !seen {
				order = append(order, s.Tag)
			}
			perTag[s.Tag] = append(perTag[s.Tag], s.Mastery)
		}
	}

	skills := lo.Map(order, func(tag string, _ int) ClassSkill {
		n := len(perTag[tag])
		return ClassSkill{
			Tag:              tag,
			AverageMastery:   round3(mean(perTag[tag])),
			StudentsWithData: n,
			Coverage:         math.Round(float64(n)/float64(withData)*1000) / 10,
		}
	})
	slices.SortStableFunc(skills, func(a, b ClassSkill) int {
		return cmp.Or(cmp.Compare(a.AverageMastery, b.AverageMastery), cmp.Compare(a.Tag, b.Tag))
	})

	return &ClassSummary{
		ClassID:        classID,
		Skills:         skills,
		TotalStudents:  withData,
		SkillsAnalyzed: len(skills),
	}, nil
}
