package store

const schemaSQLite = `
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	email TEXT NOT NULL DEFAULT '',
	role TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS classes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	teacher_id INTEGER NOT NULL REFERENCES users(id),
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS enrollments (
	class_id INTEGER NOT NULL REFERENCES classes(id) ON DELETE CASCADE,
	student_id INTEGER NOT NULL REFERENCES users(id),
	created_at INTEGER NOT NULL,
	PRIMARY KEY (class_id, student_id)
);

CREATE TABLE IF NOT EXISTS assignments (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	class_id INTEGER NOT NULL REFERENCES classes(id) ON DELETE CASCADE,
	title TEXT NOT NULL,
	type TEXT NOT NULL DEFAULT 'quiz',
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS questions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	assignment_id INTEGER NOT NULL REFERENCES assignments(id) ON DELETE CASCADE,
	type TEXT NOT NULL,
	prompt TEXT NOT NULL,
	options_json TEXT NOT NULL DEFAULT '[]',
	answer_key TEXT NOT NULL DEFAULT '',
	rubric_json TEXT,
	skill_tags_json TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS submissions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	assignment_id INTEGER NOT NULL REFERENCES assignments(id) ON DELETE CASCADE,
	student_id INTEGER NOT NULL REFERENCES users(id),
	submitted_at INTEGER NOT NULL,
	ai_score REAL,
	teacher_score REAL,
	ai_explanation TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS responses (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	submission_id INTEGER NOT NULL REFERENCES submissions(id) ON DELETE CASCADE,
	question_id INTEGER NOT NULL REFERENCES questions(id),
	answer_json TEXT NOT NULL,
	ai_score REAL,
	teacher_score REAL,
	ai_feedback TEXT NOT NULL DEFAULT '',
	teacher_feedback TEXT NOT NULL DEFAULT '',
	matched_json TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS lessons (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	class_id INTEGER NOT NULL REFERENCES classes(id) ON DELETE CASCADE,
	title TEXT NOT NULL,
	content TEXT NOT NULL DEFAULT '',
	skill_tags_json TEXT NOT NULL DEFAULT '[]',
	embedding BLOB,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS lesson_views (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	lesson_id INTEGER NOT NULL REFERENCES lessons(id) ON DELETE CASCADE,
	student_id INTEGER NOT NULL REFERENCES users(id),
	viewed_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS metadata (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_submissions_assignment ON submissions(assignment_id, submitted_at);
CREATE INDEX IF NOT EXISTS idx_responses_submission ON responses(submission_id);
CREATE INDEX IF NOT EXISTS idx_lesson_views_student ON lesson_views(student_id, viewed_at);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS users (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT NOT NULL DEFAULT '',
	role TEXT NOT NULL,
	created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS classes (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	teacher_id BIGINT NOT NULL REFERENCES users(id),
	created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS enrollments (
	class_id BIGINT NOT NULL REFERENCES classes(id) ON DELETE CASCADE,
	student_id BIGINT NOT NULL REFERENCES users(id),
	created_at BIGINT NOT NULL,
	PRIMARY KEY (class_id, student_id)
);

CREATE TABLE IF NOT EXISTS assignments (
	id BIGSERIAL PRIMARY KEY,
	class_id BIGINT NOT NULL REFERENCES classes(id) ON DELETE CASCADE,
	title TEXT NOT NULL,
	type TEXT NOT NULL DEFAULT 'quiz',
	created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS questions (
	id BIGSERIAL PRIMARY KEY,
	assignment_id BIGINT NOT NULL REFERENCES assignments(id) ON DELETE CASCADE,
	type TEXT NOT NULL,
	prompt TEXT NOT NULL,
	options_json TEXT NOT NULL DEFAULT '[]',
	answer_key TEXT NOT NULL DEFAULT '',
	rubric_json TEXT,
	skill_tags_json TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS submissions (
	id BIGSERIAL PRIMARY KEY,
	assignment_id BIGINT NOT NULL REFERENCES assignments(id) ON DELETE CASCADE,
	student_id BIGINT NOT NULL REFERENCES users(id),
	submitted_at BIGINT NOT NULL,
	ai_score DOUBLE PRECISION,
	teacher_score DOUBLE PRECISION,
	ai_explanation TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS responses (
	id BIGSERIAL PRIMARY KEY,
	submission_id BIGINT NOT NULL REFERENCES submissions(id) ON DELETE CASCADE,
	question_id BIGINT NOT NULL REFERENCES questions(id),
	answer_json TEXT NOT NULL,
	ai_score DOUBLE PRECISION,
	teacher_score DOUBLE PRECISION,
	ai_feedback TEXT NOT NULL DEFAULT '',
	teacher_feedback TEXT NOT NULL DEFAULT '',
	matched_json TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS lessons (
	id BIGSERIAL PRIMARY KEY,
	class_id BIGINT NOT NULL REFERENCES classes(id) ON DELETE CASCADE,
	title TEXT NOT NULL,
	content TEXT NOT NULL DEFAULT '',
	skill_tags_json TEXT NOT NULL DEFAULT '[]',
	embedding BYTEA,
	created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS lesson_views (
	id BIGSERIAL PRIMARY KEY,
	lesson_id BIGINT NOT NULL REFERENCES lessons(id) ON DELETE CASCADE,
	student_id BIGINT NOT NULL REFERENCES users(id),
	viewed_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS metadata (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_submissions_assignment ON submissions(assignment_id, submitted_at);
CREATE INDEX IF NOT EXISTS idx_responses_submission ON responses(submission_id);
CREATE INDEX IF NOT EXISTS idx_lesson_views_student ON lesson_views(student_id, viewed_at);
`
