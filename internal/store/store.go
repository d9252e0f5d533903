// Package store persists users, sessions, courses, generations, API keys,
// and usage analytics behind a backend-neutral interface.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/courseforge/courseforge/internal/model"
)

// ErrNotFound is returned when a row lookup scoped by user misses. Handlers
// map it to 404 without distinguishing absent from foreign-owned rows.
var ErrNotFound = eris.New("not found")

// CourseFilter specifies criteria for listing a user's courses.
type CourseFilter struct {
	Status model.CourseStatus `json:"status,omitempty"`
	Limit  int                `json:"limit,omitempty"`
	Offset int                `json:"offset,omitempty"`
}

// Store defines the persistence interface for the CourseForge service.
// Every course, generation, and key operation is scoped by user id; lookups
// of rows owned by another user report ErrNotFound.
type Store interface {
	// Users
	CreateUser(ctx context.Context, email, name, passwordHash string) (*model.User, error)
	GetUser(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)

	// Sessions
	CreateSession(ctx context.Context, userID string, ttl time.Duration) (*model.Session, error)
	GetSession(ctx context.Context, id string) (*model.Session, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context) (int, error)

	// Courses
	CreateCourse(ctx context.Context, userID string, input model.CourseInput) (*model.Course, error)
	GetCourse(ctx context.Context, userID, id string) (*model.Course, error)
	ListCourses(ctx context.Context, userID string, filter CourseFilter) ([]model.Course, error)
	UpdateCourse(ctx context.Context, userID, id string, input model.CourseInput) (*model.Course, error)
	SetCourseContent(ctx context.Context, userID, id, content string, status model.CourseStatus) error
	DeleteCourse(ctx context.Context, userID, id string) error

	// Generations
	CreateGeneration(ctx context.Context, gen *model.Generation) error
	CompleteGeneration(ctx context.Context, gen *model.Generation) error
	FailGeneration(ctx context.Context, id, reason string) error
	ListGenerations(ctx context.Context, userID, courseID string) ([]model.Generation, error)

	// API keys (BYOK)
	UpsertAPIKey(ctx context.Context, userID, provider string, encryptedKey []byte, maskedKey string) (*model.APIKey, error)
	GetAPIKey(ctx context.Context, userID, provider string) (*model.APIKey, error)
	ListAPIKeys(ctx context.Context, userID string) ([]model.APIKey, error)
	SetAPIKeyVerified(ctx context.Context, userID, provider string, verified bool) error
	DeleteAPIKey(ctx context.Context, userID, provider string) error

	// Usage analytics
	RecordUsage(ctx context.Context, rec model.UsageRecord) error
	SummarizeUsage(ctx context.Context, userID string, since time.Time) (*model.UsageSummary, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}
