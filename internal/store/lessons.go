package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Axinion/DynamicActive-Task/internal/embedding"
	"github.com/Axinion/DynamicActive-Task/internal/model"
)

// CreateLesson inserts a lesson, with its embedding when one is set.
func (s *Store) CreateLesson(ctx context.Context, l model.Lesson) (int64, error) {
	return s.createLesson(ctx, s.db, l)
}

func (s *Store) createLesson(ctx context.Context, db querier, l model.Lesson) (int64, error) {
	var blob any
	if len(l.Embedding) > 0 {
		blob = embedding.Encode(l.Embedding)
	}
	return s.insert(ctx, db,
		`INSERT INTO lessons (class_id, title, content, skill_tags_json, embedding, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		l.ClassID, l.Title, l.Content, encodeList(l.SkillTags), blob, unixOrNow(l.CreatedAt),
	)
}

const lessonColumns = `l.id, l.class_id, l.title, l.content, l.skill_tags_json, l.embedding, l.created_at`

// ListClassLessons returns a class's lessons in creation order.
func (s *Store) ListClassLessons(ctx context.Context, classID int64) ([]model.Lesson, error) {
	return s.queryLessons(ctx,
		`SELECT `+lessonColumns+` FROM lessons l WHERE l.class_id = ? ORDER BY l.created_at, l.id`,
		classID,
	)
}

// RecentLessons returns up to n lessons the student viewed most recently.
// A student with no views gets the class's newest lessons instead.
func (s *Store) RecentLessons(ctx context.Context, classID, studentID int64, n int) ([]model.Lesson, error) {
	viewed, err := s.queryLessons(ctx,
		`SELECT `+lessonColumns+`
		 FROM lessons l JOIN (
		     SELECT lesson_id, MAX(viewed_at) AS last_viewed, MAX(id) AS last_view
		     FROM lesson_views WHERE student_id = ? GROUP BY lesson_id
		 ) v ON v.lesson_id = l.id
		 WHERE l.class_id = ?
		 ORDER BY v.last_viewed DESC, v.last_view DESC
		 LIMIT ?`,
		studentID, classID, n,
	)
	if err != nil || len(viewed) > 0 {
		return viewed, err
	}
	return s.queryLessons(ctx,
		`SELECT `+lessonColumns+` FROM lessons l WHERE l.class_id = ?
		 ORDER BY l.created_at DESC, l.id DESC LIMIT ?`,
		classID, n,
	)
}

// SaveLessonEmbedding caches a lesson's embedding.
func (s *Store) SaveLessonEmbedding(ctx context.Context, lessonID int64, v embedding.Vector) error {
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE lessons SET embedding = ? WHERE id = ?`),
		embedding.Encode(v), lessonID,
	)
	if err != nil {
		return err
	}
	return checkAffected(res, "lesson", lessonID)
}

// RecordLessonView notes that a student opened a lesson. The student must
// be enrolled in the lesson's class.
func (s *Store) RecordLessonView(ctx context.Context, lessonID, studentID int64, at time.Time) error {
	var classID int64
	err := s.db.QueryRowContext(ctx, s.q(`SELECT class_id FROM lessons WHERE id = ?`), lessonID).Scan(&classID)
	if err == sql.ErrNoRows {
		return fmt.Errorf("lesson %d: %w", lessonID, model.ErrNotFound)
	}
	if err != nil {
		return err
	}
	enrolled, err := s.IsEnrolled(ctx, classID, studentID)
	if err != nil {
		return err
	}
	if !enrolled {
		return fmt.Errorf("%w: student %d, class %d", model.ErrNotEnrolled, studentID, classID)
	}
	_, err = s.db.ExecContext(ctx, s.q(
		`INSERT INTO lesson_views (lesson_id, student_id, viewed_at) VALUES (?, ?, ?)`),
		lessonID, studentID, unixOrNow(at),
	)
	return err
}

func (s *Store) queryLessons(ctx context.Context, query string, args ...any) ([]model.Lesson, error) {
	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lessons []model.Lesson
	for rows.Next() {
		var l model.Lesson
		var tags sql.NullString
		var blob []byte
		var created int64
		if err := rows.Scan(&l.ID, &l.ClassID, &l.Title, &l.Content, &tags, &blob, &created); err != nil {
			return nil, err
		}
		if l.SkillTags, err = decodeList(tags); err != nil {
			return nil, err
		}
		if len(blob) > 0 {
			v, err := embedding.Decode(blob)
			if err != nil {
				return nil, fmt.Errorf("lesson %d: %w", l.ID, err)
			}
			l.Embedding = v
		}
		l.CreatedAt = fromUnix(created)
		lessons = append(lessons, l)
	}
	return lessons, rows.Err()
}
