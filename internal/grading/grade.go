package grading

import (
	"context"
	"strings"

	"github.com/samber/lo"

	"github.com/Axinion/DynamicActive-Task/internal/i18n"
	"github.com/Axinion/DynamicActive-Task/internal/model"
)

// Outcome is the grade for one response. A nil Score means the question is
// not configured for automated grading and needs a teacher.
type Outcome struct {
	Score           *float64 `json:"score"`
	Confidence      float64  `json:"confidence"`
	Explanation     string   `json:"explanation"`
	MatchedKeywords []string `json:"matched_keywords"`
	NeedsManual     bool     `json:"needs_manual,omitempty"`
	Degraded        bool     `json:"degraded,omitempty"`
}

// ScoreMCQ returns 1 when the answer equals the key after normalization,
// else 0.
func ScoreMCQ(answer model.Answer, key string) float64 {
	got := normalizeChoice(answer.Canonical())
	if got != "" && got == normalizeChoice(key) {
		return 1
	}
	return 0
}

// NotConfigured is the outcome for a question that lacks a model answer or
// rubric. It carries no score.
func NotConfigured(ctx context.Context) Outcome {
	return Outcome{
		Explanation:     i18n.T(ctx, "GradingNotConfigured"),
		MatchedKeywords: []string{},
		NeedsManual:     true,
	}
}

// ShortAnswerConfigured reports whether a short answer can be scored: it
// needs a non-blank model answer and a rubric, which may be empty but not
// absent.
func ShortAnswerConfigured(modelAnswer string, keywords []string) bool {
	return model.Question{
		Type:           model.QuestionShort,
		AnswerKey:      strings.TrimSpace(modelAnswer),
		RubricKeywords: keywords,
	}.Configured()
}

// GradeResponse grades one answer to q.
func (s *Scorer) GradeResponse(ctx context.Context, q model.Question, a model.Answer) Outcome {
	if !q.Configured() {
		return NotConfigured(ctx)
	}

	if q.Type == model.QuestionMCQ {
		score := ScoreMCQ(a, q.AnswerKey)
		msg := "GradingIncorrect"
		switch {
		case a.IsEmpty():
			msg = "GradingNoAnswer"
		case score == 1:
			msg = "GradingCorrect"
		}
		return Outcome{
			Score:           &score,
			Confidence:      1,
			Explanation:     i18n.T(ctx, msg),
			MatchedKeywords: []string{},
		}
	}

	r := s.Score(ctx, a.Canonical(), q.AnswerKey, q.RubricKeywords)
	return Outcome{
		Score:           &r.Score,
		Confidence:      r.Confidence,
		Explanation:     r.Explanation,
		MatchedKeywords: r.MatchedKeywords,
		Degraded:        r.Degraded,
	}
}

// ResponseGrade ties an outcome to the response it grades.
type ResponseGrade struct {
	ResponseID int64 `json:"response_id"`
	QuestionID int64 `json:"question_id"`
	Outcome
}

// SubmissionGrade is the automated grade for a whole submission.
type SubmissionGrade struct {
	Responses     []ResponseGrade `json:"responses"`
	Score         *float64        `json:"score"`
	Explanation   string          `json:"explanation"`
	PendingReview int             `json:"pending_review"`
}

// GradeSubmission grades every response. The submission score is the mean
// of the multiple-choice scores; short answers wait for teacher review.
func (s *Scorer) GradeSubmission(ctx context.Context, questions map[int64]model.Question, responses []model.Response) SubmissionGrade {
	graded := make([]model.Response, 0, len(responses))
	out := SubmissionGrade{Responses: make([]ResponseGrade, 0, len(responses))}
	for _, r := range responses {
		q, ok := questions[r.QuestionID]
		if !ok {
			continue
		}
		o := s.GradeResponse(ctx, q, r.Answer)
		out.Responses = append(out.Responses, ResponseGrade{ResponseID: r.ID, QuestionID: r.QuestionID, Outcome: o})
		r.AIScore = o.Score
		graded = append(graded, r)
		if q.Type == model.QuestionShort {
			out.PendingReview++
		}
	}

	out.Score = SubmissionScore(questions, graded)
	mcq := lo.CountBy(graded, func(r model.Response) bool {
		return questions[r.QuestionID].Type == model.QuestionMCQ && r.AIScore != nil
	})
	if out.Score == nil {
		out.Explanation = i18n.T(ctx, "SubmissionNoMCQ")
	} else {
		out.Explanation = i18n.Tp(ctx, "SubmissionScored", mcq, nil)
	}
	if out.PendingReview > 0 {
		out.Explanation += " " + i18n.Tp(ctx, "SubmissionPending", out.PendingReview, nil)
	}
	return out
}

// SubmissionScore is the mean automated score over multiple-choice
// responses. It is nil when there are none.
func SubmissionScore(questions map[int64]model.Question, responses []model.Response) *float64 {
	scores := lo.FilterMap(responses, func(r model.Response, _ int) (float64, bool) {
		q, ok := questions[r.QuestionID]
		if !ok || q.Type != model.QuestionMCQ || r.AIScore == nil {
			return 0, false
		}
		return *r.AIScore, true
	})
	if len(scores) == 0 {
		return nil
	}
	mean := lo.Sum(scores) / float64(len(scores))
	return &mean
}
