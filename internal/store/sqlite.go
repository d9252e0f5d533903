package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/courseforge/courseforge/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Used for local
// development and the one-shot CLI; the server deployment target is Postgres.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	name          TEXT NOT NULL DEFAULT '',
	password_hash TEXT NOT NULL,
	created_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS user_sessions (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	created_at DATETIME NOT NULL,
	expires_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS courses (
	id               TEXT PRIMARY KEY,
	user_id          TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	title            TEXT NOT NULL,
	context          TEXT NOT NULL DEFAULT '',
	duration         TEXT NOT NULL DEFAULT '',
	difficulty_level TEXT NOT NULL DEFAULT '',
	content          TEXT NOT NULL DEFAULT '',
	status           TEXT NOT NULL DEFAULT 'draft',
	created_at       DATETIME NOT NULL,
	updated_at       DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS course_generations (
	id            TEXT PRIMARY KEY,
	course_id     TEXT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
	user_id       TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	provider      TEXT NOT NULL,
	model         TEXT NOT NULL,
	status        TEXT NOT NULL DEFAULT 'running',
	input_tokens  INTEGER NOT NULL DEFAULT 0,
	output_tokens INTEGER NOT NULL DEFAULT 0,
	cost_usd      REAL NOT NULL DEFAULT 0,
	duration_ms   INTEGER NOT NULL DEFAULT 0,
	quality       TEXT,
	error         TEXT,
	created_at    DATETIME NOT NULL,
	completed_at  DATETIME
);

CREATE TABLE IF NOT EXISTS user_api_keys (
	id            TEXT PRIMARY KEY,
	user_id       TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	provider      TEXT NOT NULL,
	encrypted_key BLOB NOT NULL,
	masked_key    TEXT NOT NULL,
	verified      INTEGER NOT NULL DEFAULT 0,
	created_at    DATETIME NOT NULL,
	updated_at    DATETIME NOT NULL,
	UNIQUE (user_id, provider)
);

CREATE TABLE IF NOT EXISTS usage_analytics (
	id            TEXT PRIMARY KEY,
	user_id       TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	provider      TEXT NOT NULL,
	model         TEXT NOT NULL,
	operation     TEXT NOT NULL,
	input_tokens  INTEGER NOT NULL DEFAULT 0,
	output_tokens INTEGER NOT NULL DEFAULT 0,
	cost_usd      REAL NOT NULL DEFAULT 0,
	created_at    DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_user_sessions_user_id ON user_sessions(user_id);
CREATE INDEX IF NOT EXISTS idx_courses_user_id ON courses(user_id);
CREATE INDEX IF NOT EXISTS idx_generations_course_id ON course_generations(course_id);
CREATE INDEX IF NOT EXISTS idx_usage_user_created ON usage_analytics(user_id, created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateUser(ctx context.Context, email, name, passwordHash string) (*model.User, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, password_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, email, name, passwordHash, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert user")
	}

	return &model.User{ID: id, Email: email, Name: name, PasswordHash: passwordHash, CreatedAt: now}, nil
}

func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, name, password_hash, created_at FROM users WHERE id = ?`,
		id,
	).Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "sqlite: get user %s", id)
	}
	return &u, nil
}

func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, name, password_hash, created_at FROM users WHERE email = ?`,
		email,
	).Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrap(err, "sqlite: get user by email")
	}
	return &u, nil
}

func (s *SQLiteStore) CreateSession(ctx context.Context, userID string, ttl time.Duration) (*model.Session, error) {
	id := uuid.New().String()
	now := time.Now().UTC()
	expiresAt := now.Add(ttl)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_sessions (id, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		id, userID, now, expiresAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert session")
	}

	return &model.Session{ID: id, UserID: userID, CreatedAt: now, ExpiresAt: expiresAt}, nil
}

func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*model.Session, error) {
	var sess model.Session
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, created_at, expires_at FROM user_sessions WHERE id = ? AND expires_at > ?`,
		id, time.Now().UTC(),
	).Scan(&sess.ID, &sess.UserID, &sess.CreatedAt, &sess.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "sqlite: get session %s", id)
	}
	return &sess, nil
}

func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM user_sessions WHERE id = ?`, id)
	return eris.Wrap(err, "sqlite: delete session")
}

func (s *SQLiteStore) DeleteExpiredSessions(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM user_sessions WHERE expires_at <= ?`, time.Now().UTC(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired sessions")
	}
	n, _ := res.RowsAffected() //nolint:errcheck
	return int(n), nil
}

func (s *SQLiteStore) CreateCourse(ctx context.Context, userID string, input model.CourseInput) (*model.Course, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO courses (id, user_id, title, context, duration, difficulty_level, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, userID, input.Title, input.Context, input.Duration, input.DifficultyLevel,
		string(model.CourseStatusDraft), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert course")
	}

	return &model.Course{
		ID:              id,
		UserID:          userID,
		Title:           input.Title,
		Context:         input.Context,
		Duration:        input.Duration,
		DifficultyLevel: input.DifficultyLevel,
		Status:          model.CourseStatusDraft,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

func (s *SQLiteStore) GetCourse(ctx context.Context, userID, id string) (*model.Course, error) {
	var c model.Course
	err := s.db.QueryRowContext(ctx,
		`SELECT `+courseColumns+` FROM courses WHERE id = ? AND user_id = ?`,
		id, userID,
	).Scan(&c.ID, &c.UserID, &c.Title, &c.Context, &c.Duration,
		&c.DifficultyLevel, &c.Content, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "sqlite: get course %s", id)
	}
	return &c, nil
}

func (s *SQLiteStore) ListCourses(ctx context.Context, userID string, filter CourseFilter) ([]model.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses WHERE user_id = ?`
	args := []any{userID}

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY updated_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list courses")
	}
	defer rows.Close()

	var courses []model.Course
	for rows.Next() {
		var c model.Course
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.Context, &c.Duration,
			&c.DifficultyLevel, &c.Content, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan course")
		}
		courses = append(courses, c)
	}
	return courses, eris.Wrap(rows.Err(), "sqlite: list courses iterate")
}

func (s *SQLiteStore) UpdateCourse(ctx context.Context, userID, id string, input model.CourseInput) (*model.Course, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE courses SET title = ?, context = ?, duration = ?, difficulty_level = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		input.Title, input.Context, input.Duration, input.DifficultyLevel, time.Now().UTC(), id, userID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: update course %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 { //nolint:errcheck
		return nil, ErrNotFound
	}
	return s.GetCourse(ctx, userID, id)
}

func (s *SQLiteStore) SetCourseContent(ctx context.Context, userID, id, content string, status model.CourseStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE courses SET content = ?, status = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		content, string(status), time.Now().UTC(), id, userID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set course content %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 { //nolint:errcheck
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) DeleteCourse(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM courses WHERE id = ? AND user_id = ?`, id, userID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete course %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 { //nolint:errcheck
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) CreateGeneration(ctx context.Context, gen *model.Generation) error {
	if gen.ID == "" {
		gen.ID = uuid.New().String()
	}
	if gen.CreatedAt.IsZero() {
		gen.CreatedAt = time.Now().UTC()
	}
	if gen.Status == "" {
		gen.Status = model.GenerationStatusRunning
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO course_generations (id, course_id, user_id, provider, model, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		gen.ID, gen.CourseID, gen.UserID, gen.Provider, gen.Model, string(gen.Status), gen.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert generation")
}

func (s *SQLiteStore) CompleteGeneration(ctx context.Context, gen *model.Generation) error {
	var qualityJSON []byte
	if gen.Quality != nil {
		var err error
		qualityJSON, err = json.Marshal(gen.Quality)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal quality report")
		}
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE course_generations
		 SET status = ?, provider = ?, model = ?, input_tokens = ?, output_tokens = ?,
		     cost_usd = ?, duration_ms = ?, quality = ?, completed_at = ?
		 WHERE id = ?`,
		string(model.GenerationStatusComplete), gen.Provider, gen.Model,
		gen.InputTokens, gen.OutputTokens, gen.CostUSD, gen.DurationMS, qualityJSON, now, gen.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete generation %s", gen.ID)
	}
	if n, _ := res.RowsAffected(); n == 0 { //nolint:errcheck
		return ErrNotFound
	}
	gen.Status = model.GenerationStatusComplete
	gen.CompletedAt = &now
	return nil
}

func (s *SQLiteStore) FailGeneration(ctx context.Context, id, reason string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE course_generations SET status = ?, error = ?, completed_at = ? WHERE id = ?`,
		string(model.GenerationStatusFailed), reason, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail generation %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 { //nolint:errcheck
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) ListGenerations(ctx context.Context, userID, courseID string) ([]model.Generation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, course_id, user_id, provider, model, status, input_tokens, output_tokens,
		        cost_usd, duration_ms, quality, error, created_at, completed_at
		 FROM course_generations
		 WHERE user_id = ? AND course_id = ?
		 ORDER BY created_at DESC`,
		userID, courseID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list generations")
	}
	defer rows.Close()

	var gens []model.Generation
	for rows.Next() {
		var g model.Generation
		var qualityJSON []byte
		var errMsg sql.NullString
		var completedAt sql.NullTime
		if err := rows.Scan(&g.ID, &g.CourseID, &g.UserID, &g.Provider, &g.Model, &g.Status,
			&g.InputTokens, &g.OutputTokens, &g.CostUSD, &g.DurationMS,
			&qualityJSON, &errMsg, &g.CreatedAt, &completedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan generation")
		}
		if len(qualityJSON) > 0 {
			g.Quality = &model.QualityReport{}
			if err := json.Unmarshal(qualityJSON, g.Quality); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal quality report")
			}
		}
		if errMsg.Valid {
			g.Error = errMsg.String
		}
		if completedAt.Valid {
			t := completedAt.Time
			g.CompletedAt = &t
		}
		gens = append(gens, g)
	}
	return gens, eris.Wrap(rows.Err(), "sqlite: list generations iterate")
}

func (s *SQLiteStore) UpsertAPIKey(ctx context.Context, userID, provider string, encryptedKey []byte, maskedKey string) (*model.APIKey, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_api_keys (id, user_id, provider, encrypted_key, masked_key, verified, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, 0, ?, ?)
		 ON CONFLICT (user_id, provider) DO UPDATE SET
		   encrypted_key = excluded.encrypted_key, masked_key = excluded.masked_key,
		   verified = 0, updated_at = excluded.updated_at`,
		id, userID, provider, encryptedKey, maskedKey, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: upsert api key")
	}

	return s.GetAPIKey(ctx, userID, provider)
}

func (s *SQLiteStore) GetAPIKey(ctx context.Context, userID, provider string) (*model.APIKey, error) {
	var k model.APIKey
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, provider, encrypted_key, masked_key, verified, created_at, updated_at
		 FROM user_api_keys WHERE user_id = ? AND provider = ?`,
		userID, provider,
	).Scan(&k.ID, &k.UserID, &k.Provider, &k.EncryptedKey, &k.MaskedKey, &k.Verified, &k.CreatedAt, &k.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrap(err, "sqlite: get api key")
	}
	return &k, nil
}

func (s *SQLiteStore) ListAPIKeys(ctx context.Context, userID string) ([]model.APIKey, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, provider, encrypted_key, masked_key, verified, created_at, updated_at
		 FROM user_api_keys WHERE user_id = ? ORDER BY provider`,
		userID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list api keys")
	}
	defer rows.Close()

	var keys []model.APIKey
	for rows.Next() {
		var k model.APIKey
		if err := rows.Scan(&k.ID, &k.UserID, &k.Provider, &k.EncryptedKey, &k.MaskedKey,
			&k.Verified, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan api key")
		}
		keys = append(keys, k)
	}
	return keys, eris.Wrap(rows.Err(), "sqlite: list api keys iterate")
}

func (s *SQLiteStore) SetAPIKeyVerified(ctx context.Context, userID, provider string, verified bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE user_api_keys SET verified = ?, updated_at = ? WHERE user_id = ? AND provider = ?`,
		verified, time.Now().UTC(), userID, provider,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: set api key verified")
	}
	if n, _ := res.RowsAffected(); n == 0 { //nolint:errcheck
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) DeleteAPIKey(ctx context.Context, userID, provider string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM user_api_keys WHERE user_id = ? AND provider = ?`,
		userID, provider,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: delete api key")
	}
	if n, _ := res.RowsAffected(); n == 0 { //nolint:errcheck
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) RecordUsage(ctx context.Context, rec model.UsageRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO usage_analytics (id, user_id, provider, model, operation, input_tokens, output_tokens, cost_usd, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.Provider, rec.Model, rec.Operation,
		rec.InputTokens, rec.OutputTokens, rec.CostUSD, rec.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert usage")
}

func (s *SQLiteStore) SummarizeUsage(ctx context.Context, userID string, since time.Time) (*model.UsageSummary, error) {
	var sum model.UsageSummary
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(input_tokens), 0), COALESCE(SUM(output_tokens), 0), COALESCE(SUM(cost_usd), 0)
		 FROM usage_analytics WHERE user_id = ? AND created_at >= ?`,
		userID, since,
	).Scan(&sum.Requests, &sum.InputTokens, &sum.OutputTokens, &sum.CostUSD)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: summarize usage")
	}
	return &sum, nil
}

var _ Store = (*SQLiteStore)(nil)
var _ Store = (*PostgresStore)(nil)
