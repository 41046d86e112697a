package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Axinion/DynamicActive-Task/internal/model"
)

func (h *Handler) handleMisconceptions(w http.ResponseWriter, r *http.Request) {
	classID, err := queryID(r, "class_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	period := r.URL.Query().Get("period")
	if period == "" {
		period = "week"
	}
	res, err := h.insights.ClusterMisconceptions(r.Context(), classID, period)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleStudentSkills(w http.ResponseWriter, r *http.Request) {
	classID, err := queryID(r, "class_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	studentID, err := queryID(r, "student_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.mastery.SkillMastery(r.Context(), classID, studentID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleClassSkills(w http.ResponseWriter, r *http.Request) {
	classID, err := pathID(r, "classID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.mastery.ClassSummary(r.Context(), classID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	classID, err := queryID(r, "class_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	studentID, err := queryID(r, "student_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	k := defaultRecommendations
	if raw := r.URL.Query().Get("k"); raw != "" {
		k, err = strconv.Atoi(raw)
		if err != nil || k < 1 || k > maxRecommendations {
			writeError(w, r, fmt.Errorf("%w: k must be between 1 and %d", model.ErrInvalidParameter, maxRecommendations))
			return
		}
	}
	rep, err := h.ranker.Recommend(r.Context(), studentID, classID, k)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

type lessonViewRequest struct {
	StudentID int64 `json:"student_id"`
}

func (h *Handler) handleLessonView(w http.ResponseWriter, r *http.Request) {
	lessonID, err := pathID(r, "lessonID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req lessonViewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.store.RecordLessonView(r.Context(), lessonID, req.StudentID, time.Now()); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
