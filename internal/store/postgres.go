package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/courseforge/courseforge/internal/db"
	"github.com/courseforge/courseforge/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hottest store operations.
var preparedStatements = map[string]string{
	"get_session":     `SELECT id, user_id, created_at, expires_at FROM user_sessions WHERE id = $1 AND expires_at > now()`,
	"get_course":      `SELECT id, user_id, title, context, duration, difficulty_level, content, status, created_at, updated_at FROM courses WHERE id = $1 AND user_id = $2`,
	"get_api_key":     `SELECT id, user_id, provider, encrypted_key, masked_key, verified, created_at, updated_at FROM user_api_keys WHERE user_id = $1 AND provider = $2`,
	"insert_usage":    `INSERT INTO usage_analytics (id, user_id, provider, model, operation, input_tokens, output_tokens, cost_usd, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
	"summarize_usage": `SELECT COUNT(*), COALESCE(SUM(input_tokens), 0), COALESCE(SUM(output_tokens), 0), COALESCE(SUM(cost_usd), 0) FROM usage_analytics WHERE user_id = $1 AND created_at >= $2`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool. Used by tests with pgxmock.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	email         TEXT NOT NULL UNIQUE,
	name          TEXT NOT NULL DEFAULT '',
	password_hash TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS user_sessions (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS courses (
	id               TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	user_id          TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	title            TEXT NOT NULL,
	context          TEXT NOT NULL DEFAULT '',
	duration         TEXT NOT NULL DEFAULT '',
	difficulty_level TEXT NOT NULL DEFAULT '',
	content          TEXT NOT NULL DEFAULT '',
	status           TEXT NOT NULL DEFAULT 'draft',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS course_generations (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	course_id     TEXT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
	user_id       TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	provider      TEXT NOT NULL,
	model         TEXT NOT NULL,
	status        TEXT NOT NULL DEFAULT 'running',
	input_tokens  BIGINT NOT NULL DEFAULT 0,
	output_tokens BIGINT NOT NULL DEFAULT 0,
	cost_usd      DOUBLE PRECISION NOT NULL DEFAULT 0,
	duration_ms   BIGINT NOT NULL DEFAULT 0,
	quality       JSONB,
	error         TEXT,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at  TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS user_api_keys (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	user_id       TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	provider      TEXT NOT NULL,
	encrypted_key BYTEA NOT NULL,
	masked_key    TEXT NOT NULL,
	verified      BOOLEAN NOT NULL DEFAULT false,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (user_id, provider)
);

CREATE TABLE IF NOT EXISTS usage_analytics (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	user_id       TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	provider      TEXT NOT NULL,
	model         TEXT NOT NULL,
	operation     TEXT NOT NULL,
	input_tokens  BIGINT NOT NULL DEFAULT 0,
	output_tokens BIGINT NOT NULL DEFAULT 0,
	cost_usd      DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_user_sessions_user_id ON user_sessions(user_id);
CREATE INDEX IF NOT EXISTS idx_user_sessions_expires_at ON user_sessions(expires_at);
CREATE INDEX IF NOT EXISTS idx_courses_user_id ON courses(user_id);
CREATE INDEX IF NOT EXISTS idx_courses_user_status ON courses(user_id, status);
CREATE INDEX IF NOT EXISTS idx_generations_course_id ON course_generations(course_id);
CREATE INDEX IF NOT EXISTS idx_generations_user_id ON course_generations(user_id);
CREATE INDEX IF NOT EXISTS idx_api_keys_user_id ON user_api_keys(user_id);
CREATE INDEX IF NOT EXISTS idx_usage_user_created ON usage_analytics(user_id, created_at DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, email, name, passwordHash string) (*model.User, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, email, name, password_hash, created_at) VALUES ($1, $2, $3, $4, $5)`,
		id, email, name, passwordHash, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert user")
	}

	return &model.User{
		ID:           id,
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		CreatedAt:    now,
	}, nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, name, password_hash, created_at FROM users WHERE id = $1`,
		id,
	).Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "postgres: get user %s", id)
	}
	return &u, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, name, password_hash, created_at FROM users WHERE email = $1`,
		email,
	).Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrap(err, "postgres: get user by email")
	}
	return &u, nil
}

func (s *PostgresStore) CreateSession(ctx context.Context, userID string, ttl time.Duration) (*model.Session, error) {
	id := uuid.New().String()
	now := time.Now().UTC()
	expiresAt := now.Add(ttl)

	_, err := s.pool.Exec(ctx,
		`INSERT INTO user_sessions (id, user_id, created_at, expires_at) VALUES ($1, $2, $3, $4)`,
		id, userID, now, expiresAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert session")
	}

	return &model.Session{
		ID:        id,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: expiresAt,
	}, nil
}

func (s *PostgresStore) GetSession(ctx context.Context, id string) (*model.Session, error) {
	var sess model.Session
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, created_at, expires_at FROM user_sessions WHERE id = $1 AND expires_at > now()`,
		id,
	).Scan(&sess.ID, &sess.UserID, &sess.CreatedAt, &sess.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "postgres: get session %s", id)
	}
	return &sess, nil
}

func (s *PostgresStore) DeleteSession(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM user_sessions WHERE id = $1`, id)
	return eris.Wrap(err, "postgres: delete session")
}

func (s *PostgresStore) DeleteExpiredSessions(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM user_sessions WHERE expires_at <= now()`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired sessions")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) CreateCourse(ctx context.Context, userID string, input model.CourseInput) (*model.Course, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO courses (id, user_id, title, context, duration, difficulty_level, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, userID, input.Title, input.Context, input.Duration, input.DifficultyLevel,
		string(model.CourseStatusDraft), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert course")
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

const courseColumns = `id, user_id, title, context, duration, difficulty_level, content, status, created_at, updated_at`

func scanCourse(row pgx.Row) (*model.Course, error) {
	var c model.Course
	err := row.Scan(&c.ID, &c.UserID, &c.Title, &c.Context, &c.Duration,
		&c.DifficultyLevel, &c.Content, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *PostgresStore) GetCourse(ctx context.Context, userID, id string) (*model.Course, error) {
	c, err := scanCourse(s.pool.QueryRow(ctx,
		`SELECT `+courseColumns+` FROM courses WHERE id = $1 AND user_id = $2`,
		id, userID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "postgres: get course %s", id)
	}
	return c, nil
}

func (s *PostgresStore) ListCourses(ctx context.Context, userID string, filter CourseFilter) ([]model.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses WHERE user_id = $1`
	args := []any{userID}
	argIdx := 2

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY updated_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list courses")
	}
	defer rows.Close()

	var courses []model.Course
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan course")
		}
		courses = append(courses, *c)
	}
	return courses, eris.Wrap(rows.Err(), "postgres: list courses iterate")
}

func (s *PostgresStore) UpdateCourse(ctx context.Context, userID, id string, input model.CourseInput) (*model.Course, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE courses SET title = $1, context = $2, duration = $3, difficulty_level = $4, updated_at = $5
		 WHERE id = $6 AND user_id = $7`,
		input.Title, input.Context, input.Duration, input.DifficultyLevel, time.Now().UTC(), id, userID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: update course %s", id)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return s.GetCourse(ctx, userID, id)
}

func (s *PostgresStore) SetCourseContent(ctx context.Context, userID, id, content string, status model.CourseStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE courses SET content = $1, status = $2, updated_at = $3 WHERE id = $4 AND user_id = $5`,
		content, string(status), time.Now().UTC(), id, userID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set course content %s", id)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteCourse(ctx context.Context, userID, id string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM courses WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete course %s", id)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CreateGeneration(ctx context.Context, gen *model.Generation) error {
	if gen.ID == "" {
		gen.ID = uuid.New().String()
	}
	if gen.CreatedAt.IsZero() {
		gen.CreatedAt = time.Now().UTC()
	}
	if gen.Status == "" {
		gen.Status = model.GenerationStatusRunning
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO course_generations (id, course_id, user_id, provider, model, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		gen.ID, gen.CourseID, gen.UserID, gen.Provider, gen.Model, string(gen.Status), gen.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert generation")
}

func (s *PostgresStore) CompleteGeneration(ctx context.Context, gen *model.Generation) error {
	var qualityJSON []byte
	if gen.Quality != nil {
		var err error
		qualityJSON, err = json.Marshal(gen.Quality)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal quality report")
		}
	}

	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE course_generations
		 SET status = $1, provider = $2, model = $3, input_tokens = $4, output_tokens = $5,
		     cost_usd = $6, duration_ms = $7, quality = $8, completed_at = $9
		 WHERE id = $10`,
		string(model.GenerationStatusComplete), gen.Provider, gen.Model,
		gen.InputTokens, gen.OutputTokens, gen.CostUSD, gen.DurationMS, qualityJSON, now, gen.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete generation %s", gen.ID)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	gen.Status = model.GenerationStatusComplete
	gen.CompletedAt = &now
	return nil
}

func (s *PostgresStore) FailGeneration(ctx context.Context, id, reason string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE course_generations SET status = $1, error = $2, completed_at = $3 WHERE id = $4`,
		string(model.GenerationStatusFailed), reason, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail generation %s", id)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListGenerations(ctx context.Context, userID, courseID string) ([]model.Generation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, course_id, user_id, provider, model, status, input_tokens, output_tokens,
		        cost_usd, duration_ms, quality, error, created_at, completed_at
		 FROM course_generations
		 WHERE user_id = $1 AND course_id = $2
		 ORDER BY created_at DESC`,
		userID, courseID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list generations")
	}
	defer rows.Close()

	var gens []model.Generation
	for rows.Next() {
		var g model.Generation
		var qualityJSON []byte
		var errMsg *string
		if err := rows.Scan(&g.ID, &g.CourseID, &g.UserID, &g.Provider, &g.Model, &g.Status,
			&g.InputTokens, &g.OutputTokens, &g.CostUSD, &g.DurationMS,
			&qualityJSON, &errMsg, &g.CreatedAt, &g.CompletedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan generation")
		}
		if len(qualityJSON) > 0 {
			g.Quality = &model.QualityReport{}
			if err := json.Unmarshal(qualityJSON, g.Quality); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal quality report")
			}
		}
		if errMsg != nil {
			g.Error = *errMsg
		}
		gens = append(gens, g)
	}
	return gens, eris.Wrap(rows.Err(), "postgres: list generations iterate")
}

func (s *PostgresStore) UpsertAPIKey(ctx context.Context, userID, provider string, encryptedKey []byte, maskedKey string) (*model.APIKey, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO user_api_keys (id, user_id, provider, encrypted_key, masked_key, verified, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, false, $6, $7)
		 ON CONFLICT (user_id, provider) DO UPDATE SET
		   encrypted_key = $4, masked_key = $5, verified = false, updated_at = $7`,
		id, userID, provider, encryptedKey, maskedKey, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: upsert api key")
	}

	return s.GetAPIKey(ctx, userID, provider)
}

func (s *PostgresStore) GetAPIKey(ctx context.Context, userID, provider string) (*model.APIKey, error) {
	var k model.APIKey
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, provider, encrypted_key, masked_key, verified, created_at, updated_at
		 FROM user_api_keys WHERE user_id = $1 AND provider = $2`,
		userID, provider,
	).Scan(&k.ID, &k.UserID, &k.Provider, &k.EncryptedKey, &k.MaskedKey, &k.Verified, &k.CreatedAt, &k.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrap(err, "postgres: get api key")
	}
	return &k, nil
}

func (s *PostgresStore) ListAPIKeys(ctx context.Context, userID string) ([]model.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, provider, encrypted_key, masked_key, verified, created_at, updated_at
		 FROM user_api_keys WHERE user_id = $1 ORDER BY provider`,
		userID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list api keys")
	}
	defer rows.Close()

	var keys []model.APIKey
	for rows.Next() {
		var k model.APIKey
		if err := rows.Scan(&k.ID, &k.UserID, &k.Provider, &k.EncryptedKey, &k.MaskedKey,
			&k.Verified, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan api key")
		}
		keys = append(keys, k)
	}
	return keys, eris.Wrap(rows.Err(), "postgres: list api keys iterate")
}

func (s *PostgresStore) SetAPIKeyVerified(ctx context.Context, userID, provider string, verified bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE user_api_keys SET verified = $1, updated_at = $2 WHERE user_id = $3 AND provider = $4`,
		verified, time.Now().UTC(), userID, provider,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: set api key verified")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteAPIKey(ctx context.Context, userID, provider string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM user_api_keys WHERE user_id = $1 AND provider = $2`,
		userID, provider,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: delete api key")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) RecordUsage(ctx context.Context, rec model.UsageRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO usage_analytics (id, user_id, provider, model, operation, input_tokens, output_tokens, cost_usd, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.ID, rec.UserID, rec.Provider, rec.Model, rec.Operation,
		rec.InputTokens, rec.OutputTokens, rec.CostUSD, rec.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert usage")
}

func (s *PostgresStore) SummarizeUsage(ctx context.Context, userID string, since time.Time) (*model.UsageSummary, error) {
	var sum model.UsageSummary
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(input_tokens), 0), COALESCE(SUM(output_tokens), 0), COALESCE(SUM(cost_usd), 0)
		 FROM usage_analytics WHERE user_id = $1 AND created_at >= $2`,
		userID, since,
	).Scan(&sum.Requests, &sum.InputTokens, &sum.OutputTokens, &sum.CostUSD)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: summarize usage")
	}
	return &sum, nil
}
