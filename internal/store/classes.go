package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Axinion/DynamicActive-Task/internal/model"
)

// CreateUser inserts a new user.
func (s *Store) CreateUser(ctx context.Context, u model.User) (int64, error) {
	return s.createUser(ctx, s.db, u)
}

func (s *Store) createUser(ctx context.Context, db querier, u model.User) (int64, error) {
	id, err := s.insert(ctx, db,
		`INSERT INTO users (name, email, role, created_at) VALUES (?, ?, ?, ?)`,
		u.Name, u.Email, u.Role, unixOrNow(u.CreatedAt),
	)
	if err != nil {
		slog.Error("failed to create user", "name", u.Name, "error", err)
		return 0, err
	}
	slog.Debug("created user", "id", id, "name", u.Name, "role", u.Role)
	return id, nil
}

// GetUser returns a user by ID, or nil if there is none.
func (s *Store) GetUser(ctx context.Context, id int64) (*model.User, error) {
	var u model.User
	var created int64
	err := s.db.QueryRowContext(ctx, s.q(
		`SELECT id, name, email, role, created_at FROM users WHERE id = ?`), id,
	).Scan(&u.ID, &u.Name, &u.Email, &u.Role, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.CreatedAt = fromUnix(created)
	return &u, nil
}

// CreateClass inserts a new class.
func (s *Store) CreateClass(ctx context.Context, c model.Class) (int64, error) {
	return s.createClass(ctx, s.db, c)
}

func (s *Store) createClass(ctx context.Context, db querier, c model.Class) (int64, error) {
	return s.insert(ctx, db,
		`INSERT INTO classes (name, teacher_id, created_at) VALUES (?, ?, ?)`,
		c.Name, c.TeacherID, unixOrNow(c.CreatedAt),
	)
}

// GetClass returns a class by ID, or nil if there is none.
func (s *Store) GetClass(ctx context.Context, id int64) (*model.Class, error) {
	var c model.Class
	var created int64
	err := s.db.QueryRowContext(ctx, s.q(
		`SELECT id, name, teacher_id, created_at FROM classes WHERE id = ?`), id,
	).Scan(&c.ID, &c.Name, &c.TeacherID, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.CreatedAt = fromUnix(created)
	return &c, nil
}

// ClassExists reports whether the class exists.
func (s *Store) ClassExists(ctx context.Context, classID int64) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.q(`SELECT COUNT(*) FROM classes WHERE id = ?`), classID).Scan(&n)
	return n > 0, err
}

// Enroll adds a student to a class. Enrolling twice is a no-op.
func (s *Store) Enroll(ctx context.Context, e model.Enrollment) error {
	return s.enroll(ctx, s.db, e)
}

func (s *Store) enroll(ctx context.Context, db querier, e model.Enrollment) error {
	_, err := db.ExecContext(ctx, s.q(
		`INSERT INTO enrollments (class_id, student_id, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(class_id, student_id) DO NOTHING`),
		e.ClassID, e.StudentID, unixOrNow(e.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("enroll student %d in class %d: %w", e.StudentID, e.ClassID, err)
	}
	return nil
}

// IsEnrolled reports whether the student is enrolled in the class.
func (s *Store) IsEnrolled(ctx context.Context, classID, studentID int64) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.q(
		`SELECT COUNT(*) FROM enrollments WHERE class_id = ? AND student_id = ?`),
		classID, studentID,
	).Scan(&n)
	return n > 0, err
}

// ListClassStudents returns the students enrolled in a class ordered by ID.
func (s *Store) ListClassStudents(ctx context.Context, classID int64) ([]model.User, error) {
	rows, err := s.db.QueryContext(ctx, s.q(
		`SELECT u.id, u.name, u.email, u.role, u.created_at
		 FROM enrollments e JOIN users u ON u.id = e.student_id
		 WHERE e.class_id = ? ORDER BY u.id`), classID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []model.User
	for rows.Next() {
		var u model.User
		var created int64
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &created); err != nil {
			return nil, err
		}
		u.CreatedAt = fromUnix(created)
		users = append(users, u)
	}
	return users, rows.Err()
}
