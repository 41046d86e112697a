package model

import "time"

// GradebookExport is the top-level JSON structure for a class gradebook export.
type GradebookExport struct {
	ClassID     int64          `json:"class_id"`
	ClassName   string         `json:"class_name"`
	GeneratedAt time.Time      `json:"generated_at"`
	Rows        []GradebookRow `json:"rows"`
}

// GradebookRow holds one submission with its scores.
type GradebookRow struct {
	SubmissionID    int64            `json:"submission_id"`
	AssignmentTitle string           `json:"assignment_title"`
	StudentID       int64            `json:"student_id"`
	StudentName     string           `json:"student_name"`
	SubmittedAt     time.Time        `json:"submitted_at"`
	AIScore         *float64         `json:"ai_score"`
	TeacherScore    *float64         `json:"teacher_score"`
	EffectiveScore  *float64         `json:"effective_score"`
	Responses       []ResponseResult `json:"responses"`
}

// ResponseResult holds per-response data for export.
type ResponseResult struct {
	QuestionID     int64        `json:"question_id"`
	Type           QuestionType `json:"type"`
	Prompt         string       `json:"prompt"`
	Answer         Answer       `json:"answer"`
	AIScore        *float64     `json:"ai_score"`
	TeacherScore   *float64     `json:"teacher_score"`
	EffectiveScore *float64     `json:"effective_score"`
	Feedback       string       `json:"feedback"`
}

// Dataset is the JSON fixture format read by the import command.
type Dataset struct {
	Users       []User             `json:"users"`
	Classes     []Class            `json:"classes"`
	Enrollments []Enrollment       `json:"enrollments"`
	Assignments []AssignmentImport `json:"assignments"`
	Lessons     []Lesson           `json:"lessons"`
	Submissions []SubmissionImport `json:"submissions"`
}

// AssignmentImport is an assignment together with its questions.
type AssignmentImport struct {
	Assignment
	Questions []Question `json:"questions"`
}

// SubmissionImport is a submission together with its responses.
type SubmissionImport struct {
	Submission
	Responses []Response `json:"responses"`
}
