package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Axinion/DynamicActive-Task/internal/embedding"
	"github.com/Axinion/DynamicActive-Task/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

type fixture struct {
	teacher, alice, bob int64
	class               int64
	assignment          int64
	mcq, short, bare    int64
}

var base = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func seed(t *testing.T, s *Store) fixture {
	t.Helper()
	ctx := context.Background()
	var f fixture
	var err error

	mustID := func(id int64, err error) int64 {
		t.Helper()
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
		return id
	}

	f.teacher = mustID(s.CreateUser(ctx, model.User{Name: "Ms. Rivera", Role: model.UserRoleTeacher}))
	f.alice = mustID(s.CreateUser(ctx, model.User{Name: "Alice", Role: model.UserRoleStudent}))
	f.bob = mustID(s.CreateUser(ctx, model.User{Name: "Bob", Role: model.UserRoleStudent}))
	f.class = mustID(s.CreateClass(ctx, model.Class{Name: "Grade 7 Math", TeacherID: f.teacher}))
	for _, st := range []int64{f.alice, f.bob} {
		if err = s.Enroll(ctx, model.Enrollment{ClassID: f.class, StudentID: st}); err != nil {
			t.Fatalf("Enroll: %v", err)
		}
	}
	f.assignment = mustID(s.CreateAssignment(ctx, model.Assignment{ClassID: f.class, Title: "Fractions Quiz"}))
	f.mcq = mustID(s.CreateQuestion(ctx, model.Question{
		AssignmentID: f.assignment, Type: model.QuestionMCQ, Prompt: "1/2 + 1/4?",
		Options: []string{"3/4", "2/6"}, AnswerKey: "3/4", SkillTags: []string{"fractions"},
	}))
	f.short = mustID(s.CreateQuestion(ctx, model.Question{
		AssignmentID: f.assignment, Type: model.QuestionShort, Prompt: "Explain common denominators",
		AnswerKey: "Rewrite both fractions over the same denominator", RubricKeywords: []string{},
		SkillTags: []string{"fractions", "reasoning"},
	}))
	f.bare = mustID(s.CreateQuestion(ctx, model.Question{
		AssignmentID: f.assignment, Type: model.QuestionShort, Prompt: "Why?",
	}))
	return f
}

func TestQuestionRubricRoundTrip(t *testing.T) {
	s := newTestStore(t)
	f := seed(t, s)
	ctx := context.Background()

	q, err := s.GetQuestion(ctx, f.short)
	if err != nil {
		t.Fatalf("GetQuestion: %v", err)
	}
	if q.RubricKeywords == nil || len(q.RubricKeywords) != 0 {
		t.Errorf("expected empty non-nil rubric, got %#v", q.RubricKeywords)
	}
	if !q.Configured() {
		t.Errorf("expected short question with empty rubric to be configured")
	}

	bare, err := s.GetQuestion(ctx, f.bare)
	if err != nil {
		t.Fatalf("GetQuestion: %v", err)
	}
	if bare.RubricKeywords != nil {
		t.Errorf("expected nil rubric, got %#v", bare.RubricKeywords)
	}
	if bare.Configured() {
		t.Errorf("expected question without rubric to be unconfigured")
	}

	mcq, _ := s.GetQuestion(ctx, f.mcq)
	if len(mcq.Options) != 2 || mcq.SkillTags[0] != "fractions" {
		t.Errorf("unexpected mcq %+v", mcq)
	}

	_, err = s.GetQuestion(ctx, 9999)
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateQuestionRejectsUnknownType(t *testing.T) {
	s := newTestStore(t)
	f := seed(t, s)
	_, err := s.CreateQuestion(context.Background(), model.Question{AssignmentID: f.assignment, Type: "essay"})
	if !errors.Is(err, model.ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter, got %v", err)
	}
}

func TestClassesAndEnrollment(t *testing.T) {
	s := newTestStore(t)
	f := seed(t, s)
	ctx := context.Background()

	ok, err := s.ClassExists(ctx, f.class)
	if err != nil || !ok {
		t.Fatalf("ClassExists = %v, %v", ok, err)
	}
	if ok, _ := s.ClassExists(ctx, 404); ok {
		t.Errorf("expected class 404 to be missing")
	}

	// Enrolling twice is harmless.
	if err := s.Enroll(ctx, model.Enrollment{ClassID: f.class, StudentID: f.alice}); err != nil {
		t.Fatalf("Enroll again: %v", err)
	}
	students, err := s.ListClassStudents(ctx, f.class)
	if err != nil {
		t.Fatalf("ListClassStudents: %v", err)
	}
	if len(students) != 2 || students[0].Name != "Alice" || students[1].Name != "Bob" {
		t.Errorf("unexpected students %+v", students)
	}

	if ok, _ := s.IsEnrolled(ctx, f.class, f.teacher); ok {
		t.Errorf("teacher should not be enrolled")
	}

	c, err := s.GetClass(ctx, f.class)
	if err != nil || c == nil || c.Name != "Grade 7 Math" {
		t.Errorf("GetClass = %+v, %v", c, err)
	}
	if c, _ := s.GetClass(ctx, 404); c != nil {
		t.Errorf("expected nil class, got %+v", c)
	}
	u, _ := s.GetUser(ctx, f.alice)
	if u == nil || u.Role != model.UserRoleStudent {
		t.Errorf("GetUser = %+v", u)
	}
}

func submit(t *testing.T, s *Store, f fixture, student int64, at time.Time, mcqAnswer, shortAnswer string) int64 {
	t.Helper()
	id, err := s.CreateSubmission(context.Background(),
		model.Submission{AssignmentID: f.assignment, StudentID: student, SubmittedAt: at},
		[]model.Response{
			{QuestionID: f.mcq, Answer: model.TextAnswer(mcqAnswer)},
			{QuestionID: f.short, Answer: model.TextAnswer(shortAnswer)},
		},
	)
	if err != nil {
		t.Fatalf("CreateSubmission: %v", err)
	}
	return id
}

func TestSubmissionGradingRoundTrip(t *testing.T) {
	s := newTestStore(t)
	f := seed(t, s)
	ctx := context.Background()
	subID := submit(t, s, f, f.alice, base, "3/4", "use the same denominator")

	sub, questions, responses, err := s.GetSubmissionForGrading(ctx, subID)
	if err != nil {
		t.Fatalf("GetSubmissionForGrading: %v", err)
	}
	if sub.StudentID != f.alice || !sub.SubmittedAt.Equal(base) {
		t.Errorf("unexpected submission %+v", sub)
	}
	if len(questions) != 2 || len(responses) != 2 {
		t.Fatalf("expected 2 questions and responses, got %d and %d", len(questions), len(responses))
	}
	if responses[0].Answer.Canonical() != "3/4" {
		t.Errorf("expected answer 3/4, got %q", responses[0].Answer.Canonical())
	}
	if responses[0].AIScore != nil {
		t.Errorf("expected ungraded response")
	}

	if err := s.SaveResponseGrade(ctx, responses[0].ID, model.Ptr(1.0), "Correct.", nil); err != nil {
		t.Fatalf("SaveResponseGrade: %v", err)
	}
	if err := s.SaveResponseGrade(ctx, responses[1].ID, model.Ptr(0.4), "partial", []string{"denominator"}); err != nil {
		t.Fatalf("SaveResponseGrade: %v", err)
	}
	if err := s.SaveSubmissionGrade(ctx, subID, model.Ptr(1.0), "scored"); err != nil {
		t.Fatalf("SaveSubmissionGrade: %v", err)
	}
	if err := s.SaveResponseGrade(ctx, 9999, nil, "", nil); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	_, _, responses, _ = s.GetSubmissionForGrading(ctx, subID)
	if got := responses[1].MatchedKeywords; len(got) != 1 || got[0] != "denominator" {
		t.Errorf("unexpected matched keywords %v", got)
	}
	if *responses[1].AIScore != 0.4 {
		t.Errorf("expected ai score 0.4, got %v", *responses[1].AIScore)
	}

	_, _, _, err = s.GetSubmissionForGrading(ctx, 9999)
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestOverridesKeepAutomatedScore(t *testing.T) {
	s := newTestStore(t)
	f := seed(t, s)
	ctx := context.Background()
	subID := submit(t, s, f, f.alice, base, "2/6", "no idea")
	_, _, responses, _ := s.GetSubmissionForGrading(ctx, subID)
	if err := s.SaveResponseGrade(ctx, responses[1].ID, model.Ptr(0.2), "weak", nil); err != nil {
		t.Fatalf("SaveResponseGrade: %v", err)
	}

	if err := s.SetResponseOverride(ctx, responses[1].ID, 0.9, "good enough"); err != nil {
		t.Fatalf("SetResponseOverride: %v", err)
	}
	if err := s.SetSubmissionOverride(ctx, subID, 0.75); err != nil {
		t.Fatalf("SetSubmissionOverride: %v", err)
	}
	if err := s.SetResponseOverride(ctx, responses[1].ID, 1.5, ""); !errors.Is(err, model.ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter, got %v", err)
	}
	if err := s.SetSubmissionOverride(ctx, 9999, 0.5); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	sub, _, responses, _ := s.GetSubmissionForGrading(ctx, subID)
	r := responses[1]
	if *r.AIScore != 0.2 || *r.TeacherScore != 0.9 || *r.EffectiveScore() != 0.9 {
		t.Errorf("unexpected scores ai=%v teacher=%v", r.AIScore, r.TeacherScore)
	}
	if *sub.EffectiveScore() != 0.75 || sub.AIScore != nil {
		t.Errorf("unexpected submission scores %+v", sub)
	}
}

func TestSaveGradesAllOrNothing(t *testing.T) {
	s := newTestStore(t)
	f := seed(t, s)
	ctx := context.Background()
	subID := submit(t, s, f, f.alice, base, "3/4", "same denominator")
	_, _, responses, _ := s.GetSubmissionForGrading(ctx, subID)

	err := s.SaveGrades(ctx, subID, model.Ptr(1.0), "scored", []ResponseGrade{
		{ResponseID: responses[0].ID, Score: model.Ptr(1.0), Feedback: "Correct."},
		{ResponseID: 9999, Score: model.Ptr(0.5)},
	})
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	sub, _, responses, _ := s.GetSubmissionForGrading(ctx, subID)
	if responses[0].AIScore != nil || sub.AIScore != nil {
		t.Errorf("failed save left partial grades: response=%v submission=%v", responses[0].AIScore, sub.AIScore)
	}

	err = s.SaveGrades(ctx, subID, model.Ptr(1.0), "scored", []ResponseGrade{
		{ResponseID: responses[0].ID, Score: model.Ptr(1.0), Feedback: "Correct."},
		{ResponseID: responses[1].ID, Score: model.Ptr(0.4), Feedback: "partial", Matched: []string{"denominator"}},
	})
	if err != nil {
		t.Fatalf("SaveGrades: %v", err)
	}
	sub, _, responses, _ = s.GetSubmissionForGrading(ctx, subID)
	if sub.AIScore == nil || *sub.AIScore != 1.0 || sub.AIExplanation != "scored" {
		t.Errorf("unexpected submission %+v", sub)
	}
	if responses[1].AIScore == nil || *responses[1].AIScore != 0.4 || len(responses[1].MatchedKeywords) != 1 {
		t.Errorf("unexpected response %+v", responses[1])
	}
}

func TestLegacyRawStringAnswer(t *testing.T) {
	s := newTestStore(t)
	f := seed(t, s)
	ctx := context.Background()
	subID := submit(t, s, f, f.alice, base, "3/4", "placeholder")
	_, _, responses, _ := s.GetSubmissionForGrading(ctx, subID)

	// Rows written before answers were JSON-encoded hold the bare text.
	if _, err := s.db.ExecContext(ctx, s.q(`UPDATE responses SET answer_json = ? WHERE id = ?`),
		"light from the sun", responses[1].ID); err != nil {
		t.Fatalf("update: %v", err)
	}

	records, err := s.ListStudentResponses(ctx, f.class, f.alice)
	if err != nil {
		t.Fatalf("ListStudentResponses: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if got := records[1].Response.Answer.Canonical(); got != "light from the sun" {
		t.Errorf("expected raw text answer, got %q", got)
	}
}

func TestListResponses(t *testing.T) {
	s := newTestStore(t)
	f := seed(t, s)
	ctx := context.Background()
	submit(t, s, f, f.alice, base, "3/4", "a")
	submit(t, s, f, f.bob, base.Add(48*time.Hour), "2/6", "b")
	submit(t, s, f, f.alice, base.AddDate(0, 2, 0), "2/6", "c")

	recs, err := s.ListClassResponses(ctx, f.class, base, base.Add(72*time.Hour))
	if err != nil {
		t.Fatalf("ListClassResponses: %v", err)
	}
	if len(recs) != 4 {
		t.Fatalf("expected 4 records in window, got %d", len(recs))
	}
	if recs[0].StudentID != f.alice || recs[3].StudentID != f.bob {
		t.Errorf("records not in submission order")
	}
	if recs[0].AssignmentTitle != "Fractions Quiz" || recs[0].Question.Prompt != "1/2 + 1/4?" {
		t.Errorf("unexpected join %+v", recs[0])
	}

	recs, err = s.ListStudentResponses(ctx, f.class, f.alice)
	if err != nil {
		t.Fatalf("ListStudentResponses: %v", err)
	}
	if len(recs) != 4 {
		t.Errorf("expected 4 records for alice, got %d", len(recs))
	}

	recs, _ = s.ListStudentResponses(ctx, 404, f.alice)
	if len(recs) != 0 {
		t.Errorf("expected no records for unknown class, got %d", len(recs))
	}
}

func TestLessons(t *testing.T) {
	s := newTestStore(t)
	f := seed(t, s)
	ctx := context.Background()

	var ids []int64
	for i, title := range []string{"Halves", "Quarters", "Eighths", "Mixed numbers"} {
		id, err := s.CreateLesson(ctx, model.Lesson{
			ClassID: f.class, Title: title, Content: title + " explained",
			SkillTags: []string{"fractions"}, CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatalf("CreateLesson: %v", err)
		}
		ids = append(ids, id)
	}

	lessons, err := s.ListClassLessons(ctx, f.class)
	if err != nil {
		t.Fatalf("ListClassLessons: %v", err)
	}
	if len(lessons) != 4 || lessons[0].Title != "Halves" || lessons[0].Embedding != nil {
		t.Fatalf("unexpected lessons %+v", lessons)
	}

	// No views yet: newest lessons first.
	recent, err := s.RecentLessons(ctx, f.class, f.alice, 3)
	if err != nil {
		t.Fatalf("RecentLessons: %v", err)
	}
	if len(recent) != 3 || recent[0].ID != ids[3] || recent[2].ID != ids[1] {
		t.Errorf("expected newest three lessons, got %+v", recent)
	}

	if err := s.RecordLessonView(ctx, ids[0], f.alice, base.Add(10*time.Hour)); err != nil {
		t.Fatalf("RecordLessonView: %v", err)
	}
	if err := s.RecordLessonView(ctx, ids[2], f.alice, base.Add(11*time.Hour)); err != nil {
		t.Fatalf("RecordLessonView: %v", err)
	}
	recent, _ = s.RecentLessons(ctx, f.class, f.alice, 3)
	if len(recent) != 2 || recent[0].ID != ids[2] || recent[1].ID != ids[0] {
		t.Errorf("expected viewed lessons most recent first, got %+v", recent)
	}

	if err := s.RecordLessonView(ctx, ids[0], f.teacher, time.Time{}); !errors.Is(err, model.ErrNotEnrolled) {
		t.Errorf("expected ErrNotEnrolled, got %v", err)
	}
	if err := s.RecordLessonView(ctx, 9999, f.alice, time.Time{}); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	v := embedding.Vector{0.5, -0.25, 1}
	if err := s.SaveLessonEmbedding(ctx, ids[1], v); err != nil {
		t.Fatalf("SaveLessonEmbedding: %v", err)
	}
	lessons, _ = s.ListClassLessons(ctx, f.class)
	got := lessons[1].Embedding
	if len(got) != 3 || got[0] != 0.5 || got[1] != -0.25 || got[2] != 1 {
		t.Errorf("embedding round trip: got %v", got)
	}
}

func TestMetadata(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Missing key returns empty string.
	v, err := s.GetMetadata(ctx, "import:/data/seed.json")
	if err != nil {
		t.Fatalf("GetMetadata: %v", err)
	}
	if v != "" {
		t.Errorf("expected empty value, got %q", v)
	}

	if err := s.SetMetadata(ctx, "import:/data/seed.json", "abc123"); err != nil {
		t.Fatalf("SetMetadata: %v", err)
	}
	if err := s.SetMetadata(ctx, "import:/data/seed.json", "def456"); err != nil {
		t.Fatalf("SetMetadata update: %v", err)
	}
	v, _ = s.GetMetadata(ctx, "import:/data/seed.json")
	if v != "def456" {
		t.Errorf("expected 'def456', got %q", v)
	}
}

func TestExportGradebookPrefersOverrides(t *testing.T) {
	s := newTestStore(t)
	f := seed(t, s)
	ctx := context.Background()
	subID := submit(t, s, f, f.bob, base, "3/4", "same denominator")
	_, _, responses, _ := s.GetSubmissionForGrading(ctx, subID)
	s.SaveResponseGrade(ctx, responses[0].ID, model.Ptr(1.0), "Correct.", nil)
	s.SaveResponseGrade(ctx, responses[1].ID, model.Ptr(0.3), "auto", nil)
	s.SaveSubmissionGrade(ctx, subID, model.Ptr(1.0), "scored")
	s.SetResponseOverride(ctx, responses[1].ID, 0.8, "teacher says fine")
	s.SetSubmissionOverride(ctx, subID, 0.9)

	exp, err := s.ExportGradebook(ctx, f.class)
	if err != nil {
		t.Fatalf("ExportGradebook: %v", err)
	}
	if exp.ClassName != "Grade 7 Math" || len(exp.Rows) != 1 {
		t.Fatalf("unexpected export %+v", exp)
	}
	row := exp.Rows[0]
	if row.StudentName != "Bob" || *row.EffectiveScore != 0.9 || *row.AIScore != 1.0 {
		t.Errorf("unexpected row %+v", row)
	}
	if len(row.Responses) != 2 {
		t.Fatalf("expected 2 responses, got %d", len(row.Responses))
	}
	short := row.Responses[1]
	if *short.EffectiveScore != 0.8 || *short.AIScore != 0.3 || short.Feedback != "teacher says fine" {
		t.Errorf("unexpected response result %+v", short)
	}

	_, err = s.ExportGradebook(ctx, 404)
	if !errors.Is(err, model.ErrClassNotFound) {
		t.Errorf("expected ErrClassNotFound, got %v", err)
	}
}

func TestImportDataset(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ds := model.Dataset{
		Users: []model.User{
			{ID: 1, Name: "Teacher", Role: model.UserRoleTeacher},
			{ID: 2, Name: "Student", Role: model.UserRoleStudent},
		},
		Classes:     []model.Class{{ID: 10, Name: "Biology", TeacherID: 1}},
		Enrollments: []model.Enrollment{{ClassID: 10, StudentID: 2}},
		Assignments: []model.AssignmentImport{{
			Assignment: model.Assignment{ID: 20, ClassID: 10, Title: "Plants"},
			Questions: []model.Question{{
				ID: 30, Type: model.QuestionShort, Prompt: "Where do plants get energy?",
				AnswerKey: "sunlight", RubricKeywords: []string{"sunlight"}, SkillTags: []string{"photosynthesis"},
			}},
		}},
		Lessons: []model.Lesson{{ID: 40, ClassID: 10, Title: "Light", Content: "Plants use light", SkillTags: []string{"photosynthesis"}}},
		Submissions: []model.SubmissionImport{{
			Submission: model.Submission{ID: 50, AssignmentID: 20, StudentID: 2, SubmittedAt: base},
			Responses:  []model.Response{{QuestionID: 30, Answer: model.TextAnswer("from soil"), AIScore: model.Ptr(0.1)}},
		}},
	}

	st, err := s.ImportDataset(ctx, ds)
	if err != nil {
		t.Fatalf("ImportDataset: %v", err)
	}
	if st.Users != 2 || st.Questions != 1 || st.Responses != 1 || st.Lessons != 1 {
		t.Errorf("unexpected stats %+v", st)
	}

	students, _ := s.ListClassStudents(ctx, 1)
	if len(students) != 1 || students[0].Name != "Student" {
		t.Fatalf("expected imported enrollment, got %+v", students)
	}
	recs, err := s.ListStudentResponses(ctx, 1, students[0].ID)
	if err != nil || len(recs) != 1 {
		t.Fatalf("ListStudentResponses = %d, %v", len(recs), err)
	}
	if recs[0].Question.SkillTags[0] != "photosynthesis" || *recs[0].Response.AIScore != 0.1 {
		t.Errorf("unexpected record %+v", recs[0])
	}

	// A dangling reference rolls the whole import back.
	bad := model.Dataset{
		Users:       []model.User{{ID: 1, Name: "Ghost"}},
		Enrollments: []model.Enrollment{{ClassID: 99, StudentID: 1}},
	}
	if _, err := s.ImportDataset(ctx, bad); !errors.Is(err, model.ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter, got %v", err)
	}
	if u, _ := s.GetUser(ctx, 3); u != nil {
		t.Errorf("expected rollback, found user %+v", u)
	}
}
