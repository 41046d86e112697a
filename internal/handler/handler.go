// Package handler exposes the analytics core as a JSON API.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Axinion/DynamicActive-Task/internal/embedding"
	"github.com/Axinion/DynamicActive-Task/internal/grading"
	"github.com/Axinion/DynamicActive-Task/internal/insights"
	"github.com/Axinion/DynamicActive-Task/internal/mastery"
	"github.com/Axinion/DynamicActive-Task/internal/model"
	"github.com/Axinion/DynamicActive-Task/internal/recommend"
	"github.com/Axinion/DynamicActive-Task/internal/store"
)

const (
	defaultRecommendations = 3
	maxRecommendations     = 10
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store    *store.Store
	scorer   *grading.Scorer
	insights *insights.Engine
	mastery  *mastery.Aggregator
	ranker   *recommend.Ranker
}

// New wires the analytics components over one store and one embedding
// service.
func New(s *store.Store, emb *embedding.Service, opts ...insights.Option) *Handler {
	agg := mastery.NewAggregator(s)
	return &Handler{
		store:    s,
		scorer:   grading.NewScorer(emb),
		insights: insights.NewEngine(s, emb, opts...),
		mastery:  agg,
		ranker:   recommend.NewRanker(agg, s, emb),
	}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/grading/score", h.handleScore)
		r.Post("/submissions/{submissionID}/grade", h.handleGradeSubmission)
		r.Post("/submissions/{submissionID}/override", h.handleSubmissionOverride)
		r.Post("/responses/{responseID}/override", h.handleResponseOverride)
		r.Get("/insights/misconceptions", h.handleMisconceptions)
		r.Get("/progress/skills", h.handleStudentSkills)
		r.Get("/progress/classes/{classID}/skills", h.handleClassSkills)
		r.Get("/recommendations", h.handleRecommendations)
		r.Post("/lessons/{lessonID}/views", h.handleLessonView)
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// writeError maps core errors to HTTP statuses. Anything unrecognized is a
// server error and is logged rather than echoed.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrInvalidParameter), errors.Is(err, model.ErrInvalidPeriod):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrClassNotFound), errors.Is(err, model.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, model.ErrNotEnrolled):
		status = http.StatusForbidden
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorBody{Error: msg})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: request body: %v", model.ErrInvalidParameter, err)
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", model.ErrInvalidParameter, name)
	}
	return id, nil
}

func queryID(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, fmt.Errorf("%w: %s is required", model.ErrInvalidParameter, name)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", model.ErrInvalidParameter, name)
	}
	return id, nil
}
