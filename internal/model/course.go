// Package model defines the domain types shared across the CourseForge service.
package model

import "time"

// CourseStatus is the lifecycle state of a course.
type CourseStatus string

const (
	CourseStatusDraft     CourseStatus = "draft"
	CourseStatusGenerated CourseStatus = "generated"
	CourseStatusArchived  CourseStatus = "archived"
)

// Course is a persisted course row, owned by a user.
type Course struct {
	ID              string       `json:"id"`
	UserID          string       `json:"user_id"`
	Title           string       `json:"title"`
	Context         string       `json:"context,omitempty"`
	Duration        string       `json:"duration,omitempty"`
	DifficultyLevel string       `json:"difficulty_level,omitempty"`
	Content         string       `json:"content,omitempty"`
	Status          CourseStatus `json:"status"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// CourseInput carries the user-supplied fields for creating or generating a course.
type CourseInput struct {
	Title           string `json:"title"`
	Context         string `json:"context"`
	Duration        string `json:"duration"`
	DifficultyLevel string `json:"difficulty_level"`
}

// GenerationStatus is the lifecycle state of a single generation attempt.
type GenerationStatus string

const (
	GenerationStatusRunning  GenerationStatus = "running"
	GenerationStatusComplete GenerationStatus = "complete"
	GenerationStatusFailed   GenerationStatus = "failed"
)

// Generation is a persisted record of one generation attempt for a course.
type Generation struct {
	ID           string           `json:"id"`
	CourseID     string           `json:"course_id"`
	UserID       string           `json:"user_id"`
	Provider     string           `json:"provider"`
	Model        string           `json:"model"`
	Status       GenerationStatus `json:"status"`
	InputTokens  int64            `json:"input_tokens"`
	OutputTokens int64            `json:"output_tokens"`
	CostUSD      float64          `json:"cost_usd"`
	DurationMS   int64            `json:"duration_ms"`
	Quality      *QualityReport   `json:"quality,omitempty"`
	Error        string           `json:"error,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	CompletedAt  *time.Time       `json:"completed_at,omitempty"`
}

// QualityReport is the heuristic quality assessment attached to a completed
// generation. Score is in [0,1]; Passed reflects the configured threshold.
type QualityReport struct {
	Score           float64        `json:"score"`
	Passed          bool           `json:"passed"`
	Metrics         QualityMetrics `json:"metrics"`
	Recommendations []string       `json:"recommendations,omitempty"`
}

// QualityMetrics holds the individual lexical signals behind a quality score.
type QualityMetrics struct {
	SpecificityRatio float64 `json:"specificity_ratio"`
	ExampleDensity   float64 `json:"example_density"`
	AIPatternScore   float64 `json:"ai_pattern_score"`
	ActionableRatio  float64 `json:"actionable_ratio"`
	StructureScore   float64 `json:"structure_score"`
}
