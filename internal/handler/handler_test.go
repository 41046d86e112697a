package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Axinion/DynamicActive-Task/internal/embedding"
	"github.com/Axinion/DynamicActive-Task/internal/model"
	"github.com/Axinion/DynamicActive-Task/internal/store"
)

type env struct {
	store   *store.Store
	router  http.Handler
	class   int64
	assign  int64
	alice   int64
	outside int64
	mcq     int64
	short   int64
	lesson  int64
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()

	s, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	factory, err := embedding.NewFactory(embedding.ProviderConfig{Provider: embedding.ProviderHashing, Dimensions: 64})
	require.NoError(t, err)
	emb, err := embedding.NewService(factory, 64)
	require.NoError(t, err)
	t.Cleanup(func() { _ = emb.Shutdown() })

	e := &env{store: s}
	must := func(id int64, err error) int64 {
		t.Helper()
		require.NoError(t, err)
		return id
	}
	teacher := must(s.CreateUser(ctx, model.User{Name: "Mr. Okafor", Role: model.UserRoleTeacher}))
	e.alice = must(s.CreateUser(ctx, model.User{Name: "Alice", Role: model.UserRoleStudent}))
	e.outside = must(s.CreateUser(ctx, model.User{Name: "Zed", Role: model.UserRoleStudent}))
	e.class = must(s.CreateClass(ctx, model.Class{Name: "Grade 6 Science", TeacherID: teacher}))
	require.NoError(t, s.Enroll(ctx, model.Enrollment{ClassID: e.class, StudentID: e.alice}))

	e.assign = must(s.CreateAssignment(ctx, model.Assignment{ClassID: e.class, Title: "Week 1"}))
	a := e.assign
	e.mcq = must(s.CreateQuestion(ctx, model.Question{
		AssignmentID: a, Type: model.QuestionMCQ, Prompt: "1/2 + 1/4?",
		Options: []string{"3/4", "2/6"}, AnswerKey: "3/4", SkillTags: []string{"fractions"},
	}))
	e.short = must(s.CreateQuestion(ctx, model.Question{
		AssignmentID: a, Type: model.QuestionShort, Prompt: "Where do plants get energy?",
		AnswerKey: "From sunlight through photosynthesis", RubricKeywords: []string{"sunlight"},
		SkillTags: []string{"photosynthesis"},
	}))
	e.lesson = must(s.CreateLesson(ctx, model.Lesson{
		ClassID: e.class, Title: "Adding fractions", Content: "Use a common denominator",
		SkillTags: []string{"fractions"},
	}))

	h := New(s, emb)
	r := chi.NewRouter()
	h.Routes(r)
	e.router = r
	return e
}

func (e *env) submit(t *testing.T) int64 {
	t.Helper()
	id, err := e.store.CreateSubmission(context.Background(),
		model.Submission{AssignmentID: e.assign, StudentID: e.alice},
		[]model.Response{
			{QuestionID: e.mcq, Answer: model.TextAnswer("3/4")},
			{QuestionID: e.short, Answer: model.TextAnswer("Plants use sunlight")},
		})
	require.NoError(t, err)
	return id
}

func (e *env) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestScore(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodPost, "/api/grading/score", map[string]any{
		"student_answer":  "Plants get energy from sunlight",
		"model_answer":    "From sunlight through photosynthesis",
		"rubric_keywords": []string{"Sunlight", "chlorophyll"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := decode[struct {
		Score           float64  `json:"score"`
		MatchedKeywords []string `json:"matched_keywords"`
		KeywordCoverage float64  `json:"keyword_coverage"`
	}](t, rec)
	assert.GreaterOrEqual(t, got.Score, 0.0)
	assert.LessOrEqual(t, got.Score, 1.0)
	assert.Equal(t, []string{"Sunlight"}, got.MatchedKeywords)
	assert.InDelta(t, 0.5, got.KeywordCoverage, 1e-9)
}

func TestScoreNotConfigured(t *testing.T) {
	e := newEnv(t)
	tests := []struct {
		name string
		body map[string]any
	}{
		{"answer only", map[string]any{"student_answer": "Plants get energy from sunlight"}},
		{"no rubric", map[string]any{"student_answer": "sunlight", "model_answer": "From sunlight"}},
		{"blank model answer", map[string]any{"student_answer": "sunlight", "model_answer": "  ", "rubric_keywords": []string{"sunlight"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(t, http.MethodPost, "/api/grading/score", tt.body)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			got := decode[map[string]any](t, rec)
			assert.Contains(t, got, "score")
			assert.Nil(t, got["score"])
			assert.Equal(t, "Model/rubric missing; manual grading required.", got["explanation"])
			assert.Equal(t, true, got["needs_manual"])
		})
	}

	rec := e.do(t, http.MethodPost, "/api/grading/score", map[string]any{
		"student_answer": "sunlight", "model_answer": "From sunlight", "rubric_keywords": []string{},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[map[string]any](t, rec)
	assert.NotNil(t, got["score"], "an empty rubric is still a rubric")
}

func TestScoreRejectsBadBody(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodPost, "/api/grading/score", map[string]any{"answer": "x"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestGradeSubmission(t *testing.T) {
	e := newEnv(t)
	id := e.submit(t)

	rec := e.do(t, http.MethodPost, "/api/submissions/"+itoa(id)+"/grade", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[struct {
		Responses     []json.RawMessage `json:"responses"`
		Score         *float64          `json:"score"`
		PendingReview int               `json:"pending_review"`
	}](t, rec)
	assert.Len(t, got.Responses, 2)
	require.NotNil(t, got.Score)
	assert.Equal(t, 1.0, *got.Score)
	assert.Equal(t, 1, got.PendingReview)

	sub, err := e.store.GetSubmission(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, sub.AIScore)
	assert.Equal(t, 1.0, *sub.AIScore)

	rec = e.do(t, http.MethodPost, "/api/submissions/999/grade", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = e.do(t, http.MethodPost, "/api/submissions/abc/grade", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestOverrides(t *testing.T) {
	e := newEnv(t)
	id := e.submit(t)
	_, _, responses, err := e.store.GetSubmissionForGrading(context.Background(), id)
	require.NoError(t, err)
	respID := responses[1].ID

	rec := e.do(t, http.MethodPost, "/api/responses/"+itoa(respID)+"/override",
		map[string]any{"teacher_score": 0.9, "teacher_feedback": "Good"})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = e.do(t, http.MethodPost, "/api/responses/"+itoa(respID)+"/override",
		map[string]any{"teacher_score": 1.5})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/responses/"+itoa(respID)+"/override",
		map[string]any{"teacher_feedback": "missing score"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/responses/999/override", map[string]any{"teacher_score": 0.5})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/submissions/"+itoa(id)+"/override", map[string]any{"teacher_score": 0.8})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sub := decode[model.Submission](t, rec)
	require.NotNil(t, sub.TeacherScore)
	assert.Equal(t, 0.8, *sub.TeacherScore)
}

func TestMisconceptions(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodGet, "/api/insights/misconceptions?class_id="+itoa(e.class), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[struct {
		Period   string            `json:"period"`
		Clusters []json.RawMessage `json:"clusters"`
		Message  string            `json:"message"`
	}](t, rec)
	assert.Equal(t, "week", got.Period)
	assert.Empty(t, got.Clusters)
	assert.NotEmpty(t, got.Message)

	rec = e.do(t, http.MethodGet, "/api/insights/misconceptions?class_id="+itoa(e.class)+"&period=year", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	rec = e.do(t, http.MethodGet, "/api/insights/misconceptions?class_id=999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = e.do(t, http.MethodGet, "/api/insights/misconceptions", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestStudentSkills(t *testing.T) {
	e := newEnv(t)
	id := e.submit(t)
	rec := e.do(t, http.MethodPost, "/api/submissions/"+itoa(id)+"/grade", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/progress/skills?class_id="+itoa(e.class)+"&student_id="+itoa(e.alice), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[struct {
		Skills []struct {
			Tag     string  `json:"tag"`
			Mastery float64 `json:"mastery"`
		} `json:"skill_mastery"`
		Overall        *float64 `json:"overall_mastery_avg"`
		TotalResponses int      `json:"total_responses"`
	}](t, rec)
	assert.Equal(t, 2, got.TotalResponses)
	require.NotNil(t, got.Overall)
	assert.Greater(t, *got.Overall, 0.5)
	tags := map[string]float64{}
	for _, s := range got.Skills {
		tags[s.Tag] = s.Mastery
	}
	assert.Equal(t, 1.0, tags["fractions"])
	assert.Contains(t, tags, "photosynthesis")

	rec = e.do(t, http.MethodGet, "/api/progress/skills?class_id="+itoa(e.class)+"&student_id="+itoa(e.outside), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/progress/classes/"+itoa(e.class)+"/skills", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	summary := decode[struct {
		TotalStudents int `json:"total_students"`
	}](t, rec)
	assert.Equal(t, 1, summary.TotalStudents)

	rec = e.do(t, http.MethodGet, "/api/progress/classes/999/skills", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecommendations(t *testing.T) {
	e := newEnv(t)
	base := "/api/recommendations?class_id=" + itoa(e.class) + "&student_id=" + itoa(e.alice)

	rec := e.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[struct {
		Recommendations []struct {
			LessonID int64   `json:"lesson_id"`
			Score    float64 `json:"score"`
			Reason   string  `json:"reason"`
		} `json:"recommendations"`
		TotalLessons int `json:"total_lessons_available"`
	}](t, rec)
	assert.Equal(t, 1, got.TotalLessons)
	require.Len(t, got.Recommendations, 1)
	assert.Equal(t, e.lesson, got.Recommendations[0].LessonID)
	assert.NotEmpty(t, got.Recommendations[0].Reason)

	for _, k := range []string{"0", "11", "two"} {
		rec = e.do(t, http.MethodGet, base+"&k="+k, nil)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "k=%s", k)
	}

	rec = e.do(t, http.MethodGet, "/api/recommendations?class_id="+itoa(e.class)+"&student_id="+itoa(e.outside), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLessonView(t *testing.T) {
	e := newEnv(t)
	path := "/api/lessons/" + itoa(e.lesson) + "/views"

	rec := e.do(t, http.MethodPost, path, map[string]any{"student_id": e.alice})
	assert.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = e.do(t, http.MethodPost, path, map[string]any{"student_id": e.outside})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/lessons/999/views", map[string]any{"student_id": e.alice})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
