package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/Axinion/DynamicActive-Task/internal/model"
)

// ImportStats counts the rows written by ImportDataset.
type ImportStats struct {
	Users       int `json:"users"`
	Classes     int `json:"classes"`
	Enrollments int `json:"enrollments"`
	Assignments int `json:"assignments"`
	Questions   int `json:"questions"`
	Lessons     int `json:"lessons"`
	Submissions int `json:"submissions"`
	Responses   int `json:"responses"`
}

// idMap translates IDs used inside a dataset file to database IDs.
type idMap map[int64]int64

func (m idMap) resolve(kind string, id int64) (int64, error) {
	dbID, ok := m[id]
	if !ok {
		return 0, fmt.Errorf("%w: unknown %s %d in dataset", model.ErrInvalidParameter, kind, id)
	}
	return dbID, nil
}

// ImportDataset writes a whole dataset in one transaction. IDs in the
// dataset only link its records together; rows get fresh database IDs.
func (s *Store) ImportDataset(ctx context.Context, ds model.Dataset) (ImportStats, error) {
	var st ImportStats
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		users, classes, questions, assignments := idMap{}, idMap{}, idMap{}, idMap{}

		for _, u := range ds.Users {
			id, err := s.createUser(ctx, tx, u)
			if err != nil {
				return fmt.Errorf("user %d: %w", u.ID, err)
			}
			users[u.ID] = id
			st.Users++
		}
		for _, c := range ds.Classes {
			var err error
			if c.TeacherID, err = users.resolve("user", c.TeacherID); err != nil {
				return err
			}
			id, err := s.createClass(ctx, tx, c)
			if err != nil {
				return fmt.Errorf("class %d: %w", c.ID, err)
			}
			classes[c.ID] = id
			st.Classes++
		}
		for _, e := range ds.Enrollments {
			var err error
			if e.ClassID, err = classes.resolve("class", e.ClassID); err != nil {
				return err
			}
			if e.StudentID, err = users.resolve("user", e.StudentID); err != nil {
				return err
			}
			if err := s.enroll(ctx, tx, e); err != nil {
				return err
			}
			st.Enrollments++
		}
		for _, a := range ds.Assignments {
			var err error
			if a.ClassID, err = classes.resolve("class", a.ClassID); err != nil {
				return err
			}
			id, err := s.createAssignment(ctx, tx, a.Assignment)
			if err != nil {
				return fmt.Errorf("assignment %d: %w", a.ID, err)
			}
			assignments[a.ID] = id
			st.Assignments++
			for _, q := range a.Questions {
				q.AssignmentID = id
				qid, err := s.createQuestion(ctx, tx, q)
				if err != nil {
					return fmt.Errorf("question %d: %w", q.ID, err)
				}
				questions[q.ID] = qid
				st.Questions++
			}
		}
		for _, l := range ds.Lessons {
			var err error
			if l.ClassID, err = classes.resolve("class", l.ClassID); err != nil {
				return err
			}
			if _, err := s.createLesson(ctx, tx, l); err != nil {
				return fmt.Errorf("lesson %d: %w", l.ID, err)
			}
			st.Lessons++
		}
		for _, sub := range ds.Submissions {
			var err error
			if sub.AssignmentID, err = assignments.resolve("assignment", sub.AssignmentID); err != nil {
				return err
			}
			if sub.StudentID, err = users.resolve("user", sub.StudentID); err != nil {
				return err
			}
			responses := make([]model.Response, len(sub.Responses))
			for i, r := range sub.Responses {
				if r.QuestionID, err = questions.resolve("question", r.QuestionID); err != nil {
					return err
				}
				responses[i] = r
			}
			if _, err := s.createSubmission(ctx, tx, sub.Submission, responses); err != nil {
				return fmt.Errorf("submission %d: %w", sub.ID, err)
			}
			st.Submissions++
			st.Responses += len(responses)
		}
		return nil
	})
	if err != nil {
		return ImportStats{}, err
	}
	slog.Info("imported dataset", "users", st.Users, "classes", st.Classes,
		"assignments", st.Assignments, "lessons", st.Lessons, "submissions", st.Submissions)
	return st, nil
}
