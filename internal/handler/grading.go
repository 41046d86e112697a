package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Axinion/DynamicActive-Task/internal/grading"
	"github.com/Axinion/DynamicActive-Task/internal/model"
	"github.com/Axinion/DynamicActive-Task/internal/store"
)

type scoreRequest struct {
	StudentAnswer  string   `json:"student_answer"`
	ModelAnswer    string   `json:"model_answer"`
	RubricKeywords []string `json:"rubric_keywords"`
}

func (h *Handler) handleScore(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if !grading.ShortAnswerConfigured(req.ModelAnswer, req.RubricKeywords) {
		writeJSON(w, http.StatusOK, grading.NotConfigured(r.Context()))
		return
	}
	writeJSON(w, http.StatusOK, h.scorer.Score(r.Context(), req.StudentAnswer, req.ModelAnswer, req.RubricKeywords))
}

// handleGradeSubmission grades a stored submission and writes the automated
// scores back. Teacher overrides are untouched.
func (h *Handler) handleGradeSubmission(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "submissionID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx := r.Context()
	sub, questions, responses, err := h.store.GetSubmissionForGrading(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	grade := h.scorer.GradeSubmission(ctx, questions, responses)
	updates := make([]store.ResponseGrade, 0, len(grade.Responses))
	for _, rg := range grade.Responses {
		updates = append(updates, store.ResponseGrade{
			ResponseID: rg.ResponseID,
			Score:      rg.Score,
			Feedback:   rg.Explanation,
			Matched:    rg.MatchedKeywords,
		})
	}
	if err := h.store.SaveGrades(ctx, sub.ID, grade.Score, grade.Explanation, updates); err != nil {
		writeError(w, r, err)
		return
	}
	slog.Info("graded submission", "submission_id", sub.ID, "responses", len(grade.Responses),
		"pending_review", grade.PendingReview)
	writeJSON(w, http.StatusOK, grade)
}

type overrideRequest struct {
	TeacherScore    *float64 `json:"teacher_score"`
	TeacherFeedback string   `json:"teacher_feedback"`
}

func (req overrideRequest) score() (float64, error) {
	if req.TeacherScore == nil {
		return 0, fmt.Errorf("%w: teacher_score is required", model.ErrInvalidParameter)
	}
	return *req.TeacherScore, nil
}

func (h *Handler) handleResponseOverride(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "responseID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req overrideRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	score, err := req.score()
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.store.SetResponseOverride(r.Context(), id, score, req.TeacherFeedback); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "teacher_score": score, "teacher_feedback": req.TeacherFeedback})
}

func (h *Handler) handleSubmissionOverride(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "submissionID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req overrideRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	score, err := req.score()
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.store.SetSubmissionOverride(r.Context(), id, score); err != nil {
		writeError(w, r, err)
		return
	}
	sub, err := h.store.GetSubmission(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}
