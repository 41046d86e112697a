package model

import (
	"time"
)

// UserRole represents a user's access level.
type UserRole string

const (
	// UserRoleStudent is a student user role.
	UserRoleStudent UserRole = "student"
	// UserRoleTeacher is a teacher user role.
	UserRoleTeacher UserRole = "teacher"
)

// User represents a system user.
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      UserRole  `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Class groups students under one teacher.
type Class struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	TeacherID int64     `json:"teacher_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Enrollment links a student to a class.
type Enrollment struct {
	ClassID   int64     `json:"class_id"`
	StudentID int64     `json:"student_id"`
	CreatedAt time.Time `json:"created_at"`
}

// AssignmentType describes how an assignment is delivered.
type AssignmentType string

const (
	AssignmentQuiz     AssignmentType = "quiz"
	AssignmentHomework AssignmentType = "homework"
)

// Assignment is a set of questions handed out to a class.
type Assignment struct {
	ID        int64          `json:"id"`
	ClassID   int64          `json:"class_id"`
	Title     string         `json:"title"`
	Type      AssignmentType `json:"type"`
	CreatedAt time.Time      `json:"created_at"`
}

// QuestionType is the kind of question.
type QuestionType string

const (
	QuestionMCQ   QuestionType = "mcq"
	QuestionShort QuestionType = "short"
)

// Question is one item of an assignment.
//
// For MCQ the AnswerKey is the correct option. For short answers it is the
// model answer. RubricKeywords distinguishes nil (no rubric configured) from
// an empty list.
type Question struct {
	ID             int64        `json:"id"`
	AssignmentID   int64        `json:"assignment_id"`
	Type           QuestionType `json:"type"`
	Prompt         string       `json:"prompt"`
	Options        []string     `json:"options,omitempty"`
	AnswerKey      string       `json:"answer_key,omitempty"`
	RubricKeywords []string     `json:"rubric_keywords"`
	SkillTags      []string     `json:"skill_tags"`
}

// Configured reports whether a short-answer question carries both a model
// answer and a rubric. MCQ questions only need an answer key.
func (q Question) Configured() bool {
	if q.Type == QuestionMCQ {
		return q.AnswerKey != ""
	}
	return q.AnswerKey != "" && q.RubricKeywords != nil
}

// Submission is one student's attempt at an assignment.
type Submission struct {
	ID            int64     `json:"id"`
	AssignmentID  int64     `json:"assignment_id"`
	StudentID     int64     `json:"student_id"`
	SubmittedAt   time.Time `json:"submitted_at"`
	AIScore       *float64  `json:"ai_score,omitempty"`
	TeacherScore  *float64  `json:"teacher_score,omitempty"`
	AIExplanation string    `json:"ai_explanation,omitempty"`
}

// EffectiveScore returns the teacher override when present, else the
// automated score.
func (s Submission) EffectiveScore() *float64 {
	return EffectiveScore(s.AIScore, s.TeacherScore)
}

// Response is a student's answer to one question within a submission.
type Response struct {
	ID              int64    `json:"id"`
	SubmissionID    int64    `json:"submission_id"`
	QuestionID      int64    `json:"question_id"`
	Answer          Answer   `json:"answer"`
	AIScore         *float64 `json:"ai_score,omitempty"`
	TeacherScore    *float64 `json:"teacher_score,omitempty"`
	AIFeedback      string   `json:"ai_feedback,omitempty"`
	TeacherFeedback string   `json:"teacher_feedback,omitempty"`
	MatchedKeywords []string `json:"matched_keywords,omitempty"`
}

// EffectiveScore returns the teacher override when present, else the
// automated score. Nil means the response is not graded yet.
func (r Response) EffectiveScore() *float64 {
	return EffectiveScore(r.AIScore, r.TeacherScore)
}

// EffectiveScore is the single rule every consumer of scores goes through:
// a teacher override always wins over the automated score.
func EffectiveScore(automated, override *float64) *float64 {
	if override != nil {
		return override
	}
	return automated
}

// Lesson is a piece of instructional content tagged with skills.
// Embedding is nil until the lesson has been embedded once.
type Lesson struct {
	ID        int64     `json:"id"`
	ClassID   int64     `json:"class_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	SkillTags []string  `json:"skill_tags"`
	Embedding []float64 `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// ResponseRecord is a response joined with the question, assignment and
// submission it belongs to. Analytics read these rather than walking the
// tables one by one.
type ResponseRecord struct {
	Response        Response
	Question        Question
	AssignmentTitle string
	StudentID       int64
	SubmittedAt     time.Time
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
