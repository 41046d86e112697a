package store

import (
	"context"
	"fmt"
	"time"

	"github.com/Axinion/DynamicActive-Task/internal/model"
)

// ExportGradebook builds the export-ready gradebook of a class. Every score
// is reported both raw and as the effective score, so teacher overrides win.
func (s *Store) ExportGradebook(ctx context.Context, classID int64) (*model.GradebookExport, error) {
	class, err := s.GetClass(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("get class %d: %w", classID, err)
	}
	if class == nil {
		return nil, fmt.Errorf("%w: %d", model.ErrClassNotFound, classID)
	}

	rows, err := s.db.QueryContext(ctx, s.q(
		`SELECT sub.id, a.title, sub.student_id, u.name, sub.submitted_at, sub.ai_score, sub.teacher_score
		 FROM submissions sub
		 JOIN assignments a ON a.id = sub.assignment_id
		 JOIN users u ON u.id = sub.student_id
		 WHERE a.class_id = ?
		 ORDER BY sub.submitted_at, sub.id`), classID,
	)
	if err != nil {
		return nil, err
	}
	var out []model.GradebookRow
	index := make(map[int64]int)
	for rows.Next() {
		var row model.GradebookRow
		var submitted int64
		if err := rows.Scan(&row.SubmissionID, &row.AssignmentTitle, &row.StudentID, &row.StudentName,
			&submitted, &row.AIScore, &row.TeacherScore); err != nil {
			rows.Close()
			return nil, err
		}
		row.SubmittedAt = fromUnix(submitted)
		row.EffectiveScore = model.EffectiveScore(row.AIScore, row.TeacherScore)
		row.Responses = []model.ResponseResult{}
		index[row.SubmissionID] = len(out)
		out = append(out, row)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, err
	}

	// Responses are read after the submission cursor is closed; SQLite runs
	// on a single connection.
	records, err := s.queryRecords(ctx, `a.class_id = ?`, classID)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	for _, rec := range records {
		i, ok := index[rec.Response.SubmissionID]
		if !ok {
			continue
		}
		r := rec.Response
		feedback := r.TeacherFeedback
		if feedback == "" {
			feedback = r.AIFeedback
		}
		out[i].Responses = append(out[i].Responses, model.ResponseResult{
			QuestionID:     r.QuestionID,
			Type:           rec.Question.Type,
			Prompt:         rec.Question.Prompt,
			Answer:         r.Answer,
			AIScore:        r.AIScore,
			TeacherScore:   r.TeacherScore,
			EffectiveScore: r.EffectiveScore(),
			Feedback:       feedback,
		})
	}

	if out == nil {
		out = []model.GradebookRow{}
	}
	return &model.GradebookExport{
		ClassID:     class.ID,
		ClassName:   class.Name,
		GeneratedAt: time.Now().UTC(),
		Rows:        out,
	}, nil
}
