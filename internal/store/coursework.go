package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Axinion/DynamicActive-Task/internal/model"
)

// CreateAssignment inserts an assignment.
func (s *Store) CreateAssignment(ctx context.Context, a model.Assignment) (int64, error) {
	return s.createAssignment(ctx, s.db, a)
}

func (s *Store) createAssignment(ctx context.Context, db querier, a model.Assignment) (int64, error) {
	if a.Type == "" {
		a.Type = model.AssignmentQuiz
	}
	return s.insert(ctx, db,
		`INSERT INTO assignments (class_id, title, type, created_at) VALUES (?, ?, ?, ?)`,
		a.ClassID, a.Title, a.Type, unixOrNow(a.CreatedAt),
	)
}

// CreateQuestion inserts a question. A nil rubric is stored as NULL so it
// reads back as "not configured".
func (s *Store) CreateQuestion(ctx context.Context, q model.Question) (int64, error) {
	return s.createQuestion(ctx, s.db, q)
}

func (s *Store) createQuestion(ctx context.Context, db querier, q model.Question) (int64, error) {
	if q.Type != model.QuestionMCQ && q.Type != model.QuestionShort {
		return 0, fmt.Errorf("%w: question type %q", model.ErrInvalidParameter, q.Type)
	}
	return s.insert(ctx, db,
		`INSERT INTO questions (assignment_id, type, prompt, options_json, answer_key, rubric_json, skill_tags_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		q.AssignmentID, q.Type, q.Prompt, encodeList(q.Options), q.AnswerKey,
		encodeNullableList(q.RubricKeywords), encodeList(q.SkillTags),
	)
}

const questionColumns = `q.id, q.assignment_id, q.type, q.prompt, q.options_json, q.answer_key, q.rubric_json, q.skill_tags_json`

// GetQuestion returns a question by ID.
func (s *Store) GetQuestion(ctx context.Context, id int64) (model.Question, error) {
	var q model.Question
	var options, rubric, tags sql.NullString
	err := s.db.QueryRowContext(ctx, s.q(`SELECT `+questionColumns+` FROM questions q WHERE q.id = ?`), id).
		Scan(&q.ID, &q.AssignmentID, &q.Type, &q.Prompt, &options, &q.AnswerKey, &rubric, &tags)
	if errors.Is(err, sql.ErrNoRows) {
		return q, fmt.Errorf("question %d: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return q, err
	}
	return q, decodeQuestionLists(&q, options, rubric, tags)
}

func decodeQuestionLists(q *model.Question, options, rubric, tags sql.NullString) error {
	var err error
	if q.Options, err = decodeList(options); err != nil {
		return err
	}
	if len(q.Options) == 0 {
		q.Options = nil
	}
	if q.RubricKeywords, err = decodeList(rubric); err != nil {
		return err
	}
	q.SkillTags, err = decodeList(tags)
	return err
}

// CreateSubmission stores a submission and its responses in one transaction.
func (s *Store) CreateSubmission(ctx context.Context, sub model.Submission, responses []model.Response) (int64, error) {
	var id int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = s.createSubmission(ctx, tx, sub, responses)
		return err
	})
	return id, err
}

func (s *Store) createSubmission(ctx context.Context, db querier, sub model.Submission, responses []model.Response) (int64, error) {
	subID, err := s.insert(ctx, db,
		`INSERT INTO submissions (assignment_id, student_id, submitted_at, ai_score, teacher_score, ai_explanation)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sub.AssignmentID, sub.StudentID, unixOrNow(sub.SubmittedAt), sub.AIScore, sub.TeacherScore, sub.AIExplanation,
	)
	if err != nil {
		return 0, fmt.Errorf("insert submission: %w", err)
	}
	for _, r := range responses {
		answer, err := json.Marshal(r.Answer)
		if err != nil {
			return 0, fmt.Errorf("encode answer: %w", err)
		}
		_, err = s.insert(ctx, db,
			`INSERT INTO responses (submission_id, question_id, answer_json, ai_score, teacher_score,
			                        ai_feedback, teacher_feedback, matched_json)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			subID, r.QuestionID, string(answer), r.AIScore, r.TeacherScore,
			r.AIFeedback, r.TeacherFeedback, encodeList(r.MatchedKeywords),
		)
		if err != nil {
			return 0, fmt.Errorf("insert response for question %d: %w", r.QuestionID, err)
		}
	}
	return subID, nil
}

// GetSubmission returns a submission by ID.
func (s *Store) GetSubmission(ctx context.Context, id int64) (model.Submission, error) {
	var sub model.Submission
	var submitted int64
	err := s.db.QueryRowContext(ctx, s.q(
		`SELECT id, assignment_id, student_id, submitted_at, ai_score, teacher_score, ai_explanation
		 FROM submissions WHERE id = ?`), id,
	).Scan(&sub.ID, &sub.AssignmentID, &sub.StudentID, &submitted, &sub.AIScore, &sub.TeacherScore, &sub.AIExplanation)
	if errors.Is(err, sql.ErrNoRows) {
		return sub, fmt.Errorf("submission %d: %w", id, model.ErrNotFound)
	}
	sub.SubmittedAt = fromUnix(submitted)
	return sub, err
}

// GetSubmissionForGrading loads a submission with its responses and the
// questions they answer, keyed by question ID.
func (s *Store) GetSubmissionForGrading(ctx context.Context, id int64) (model.Submission, map[int64]model.Question, []model.Response, error) {
	sub, err := s.GetSubmission(ctx, id)
	if err != nil {
		return sub, nil, nil, err
	}
	records, err := s.queryRecords(ctx, `r.submission_id = ?`, id)
	if err != nil {
		return sub, nil, nil, err
	}
	questions := make(map[int64]model.Question, len(records))
	responses := make([]model.Response, 0, len(records))
	for _, rec := range records {
		questions[rec.Question.ID] = rec.Question
		responses = append(responses, rec.Response)
	}
	return sub, questions, responses, nil
}

// ResponseGrade is the automated grade of one response.
type ResponseGrade struct {
	ResponseID int64
	Score      *float64
	Feedback   string
	Matched    []string
}

// SaveResponseGrade writes the automated grade of a response. The teacher
// override is left alone.
func (s *Store) SaveResponseGrade(ctx context.Context, responseID int64, score *float64, feedback string, matched []string) error {
	return s.saveResponseGrade(ctx, s.db, ResponseGrade{responseID, score, feedback, matched})
}

func (s *Store) saveResponseGrade(ctx context.Context, db querier, g ResponseGrade) error {
	res, err := db.ExecContext(ctx, s.q(
		`UPDATE responses SET ai_score = ?, ai_feedback = ?, matched_json = ? WHERE id = ?`),
		g.Score, g.Feedback, encodeList(g.Matched), g.ResponseID,
	)
	if err != nil {
		return err
	}
	return checkAffected(res, "response", g.ResponseID)
}

// SaveSubmissionGrade writes the automated aggregate of a submission.
func (s *Store) SaveSubmissionGrade(ctx context.Context, submissionID int64, score *float64, explanation string) error {
	return s.saveSubmissionGrade(ctx, s.db, submissionID, score, explanation)
}

func (s *Store) saveSubmissionGrade(ctx context.Context, db querier, submissionID int64, score *float64, explanation string) error {
	res, err := db.ExecContext(ctx, s.q(
		`UPDATE submissions SET ai_score = ?, ai_explanation = ? WHERE id = ?`),
		score, explanation, submissionID,
	)
	if err != nil {
		return err
	}
	return checkAffected(res, "submission", submissionID)
}

// SaveGrades writes the response grades and the submission aggregate in one
// transaction. Either all of them land or none do.
func (s *Store) SaveGrades(ctx context.Context, submissionID int64, score *float64, explanation string, responses []ResponseGrade) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, g := range responses {
			if err := s.saveResponseGrade(ctx, tx, g); err != nil {
				return fmt.Errorf("save grade of response %d: %w", g.ResponseID, err)
			}
		}
		if err := s.saveSubmissionGrade(ctx, tx, submissionID, score, explanation); err != nil {
			return fmt.Errorf("save grade of submission %d: %w", submissionID, err)
		}
		return nil
	})
}

// SetResponseOverride records a teacher's score and feedback for a
// response. The automated score is kept.
func (s *Store) SetResponseOverride(ctx context.Context, responseID int64, score float64, feedback string) error {
	if score < 0 || score > 1 {
		return fmt.Errorf("%w: score %v outside [0, 1]", model.ErrInvalidParameter, score)
	}
	res, err := s.db.ExecContext(ctx, s.q(
		`UPDATE responses SET teacher_score = ?, teacher_feedback = ? WHERE id = ?`),
		score, feedback, responseID,
	)
	if err != nil {
		return err
	}
	return checkAffected(res, "response", responseID)
}

// SetSubmissionOverride records a teacher's score for a whole submission.
func (s *Store) SetSubmissionOverride(ctx context.Context, submissionID int64, score float64) error {
	if score < 0 || score > 1 {
		return fmt.Errorf("%w: score %v outside [0, 1]", model.ErrInvalidParameter, score)
	}
	res, err := s.db.ExecContext(ctx, s.q(
		`UPDATE submissions SET teacher_score = ? WHERE id = ?`), score, submissionID,
	)
	if err != nil {
		return err
	}
	return checkAffected(res, "submission", submissionID)
}

// ListClassResponses returns the class's responses submitted in [from, to],
// oldest first.
func (s *Store) ListClassResponses(ctx context.Context, classID int64, from, to time.Time) ([]model.ResponseRecord, error) {
	return s.queryRecords(ctx,
		`a.class_id = ? AND sub.submitted_at >= ? AND sub.submitted_at <= ?`,
		classID, from.Unix(), to.Unix(),
	)
}

// ListStudentResponses returns every response the student submitted in the
// class, oldest first.
func (s *Store) ListStudentResponses(ctx context.Context, classID, studentID int64) ([]model.ResponseRecord, error) {
	return s.queryRecords(ctx, `a.class_id = ? AND sub.student_id = ?`, classID, studentID)
}

func (s *Store) queryRecords(ctx context.Context, where string, args ...any) ([]model.ResponseRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.q(
		`SELECT r.id, r.submission_id, r.question_id, r.answer_json, r.ai_score, r.teacher_score,
		        r.ai_feedback, r.teacher_feedback, r.matched_json,
		        `+questionColumns+`,
		        a.title, sub.student_id, sub.submitted_at
		 FROM responses r
		 JOIN questions q ON q.id = r.question_id
		 JOIN submissions sub ON sub.id = r.submission_id
		 JOIN assignments a ON a.id = sub.assignment_id
		 WHERE `+where+`
		 ORDER BY sub.submitted_at, r.id`), args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.ResponseRecord
	for rows.Next() {
		var rec model.ResponseRecord
		var answer string
		var matched, options, rubric, tags sql.NullString
		var submitted int64
		r, q := &rec.Response, &rec.Question
		if err := rows.Scan(
			&r.ID, &r.SubmissionID, &r.QuestionID, &answer, &r.AIScore, &r.TeacherScore,
			&r.AIFeedback, &r.TeacherFeedback, &matched,
			&q.ID, &q.AssignmentID, &q.Type, &q.Prompt, &options, &q.AnswerKey, &rubric, &tags,
			&rec.AssignmentTitle, &rec.StudentID, &submitted,
		); err != nil {
			return nil, err
		}
		r.Answer = model.ParseAnswer(answer)
		if r.MatchedKeywords, err = decodeList(matched); err != nil {
			return nil, err
		}
		if err := decodeQuestionLists(q, options, rubric, tags); err != nil {
			return nil, err
		}
		rec.SubmittedAt = fromUnix(submitted)
		records = append(records, rec)
	}
	return records, rows.Err()
}
