// Package prompt builds course generation prompts.
//
// Two builder variants exist: the legacy single-block prompt and the
// advanced prompt with explicit pedagogy constraints. The variant is chosen
// once at construction rather than per call.
package prompt

import (
	"fmt"
	"strings"

	"github.com/courseforge/courseforge/internal/model"
)

// Variant selects the prompt-building strategy.
type Variant string

const (
	VariantLegacy   Variant = "legacy"
	VariantAdvanced Variant = "advanced"
)

// Builder renders prompts for a course request.
type Builder interface {
	Variant() Variant
	System() string
	Course(in model.CourseInput) string
	Assist(instruction, draft string) string
}

// New returns the builder for the given variant. Unknown variants fall back
// to the advanced builder.
func New(v Variant) Builder {
	if v == VariantLegacy {
		return legacyBuilder{}
	}
	return advancedBuilder{}
}

type legacyBuilder struct{}

func (legacyBuilder) Variant() Variant { return VariantLegacy }

func (legacyBuilder) System() string {
	return "You are an experienced curriculum designer. Produce complete, well-structured course content in markdown."
}

func (legacyBuilder) Course(in model.CourseInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create a complete course curriculum titled %q.\n", in.Title)
	if in.Context != "" {
		fmt.Fprintf(&b, "Background: %s\n", in.Context)
	}
	if in.Duration != "" {
		fmt.Fprintf(&b, "Duration: %s\n", in.Duration)
	}
	if in.DifficultyLevel != "" {
		fmt.Fprintf(&b, "Difficulty: %s\n", in.DifficultyLevel)
	}
	b.WriteString("Include learning objectives, weekly modules, and exercises.")
	return b.String()
}

func (legacyBuilder) Assist(instruction, draft string) string {
	return fmt.Sprintf("%s\n\n---\n%s", instruction, draft)
}

type advancedBuilder struct{}

func (advancedBuilder) Variant() Variant { return VariantAdvanced }

func (advancedBuilder) System() string {
	return strings.Join([]string{
		"You are an expert instructional designer.",
		"Write concrete, actionable course content: specific techniques, named tools, numeric targets.",
		"Every module ends with hands-on exercises a learner can complete and self-check.",
		"Avoid filler and stock phrases. Use markdown headings and lists.",
	}, " ")
}

func (advancedBuilder) Course(in model.CourseInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Design a course curriculum.\n\nTitle: %s\n", in.Title)
	if in.Context != "" {
		fmt.Fprintf(&b, "Learner context: %s\n", in.Context)
	}
	if in.Duration != "" {
		fmt.Fprintf(&b, "Total duration: %s — divide it into concrete sessions.\n", in.Duration)
	}
	if in.DifficultyLevel != "" {
		fmt.Fprintf(&b, "Difficulty: %s — calibrate prerequisites and pacing accordingly.\n", in.DifficultyLevel)
	}
	b.WriteString(`
Structure:
1. Course overview with measurable learning outcomes.
2. Module breakdown (one per session) with topics and time allocations.
3. Per-module exercises with expected results.
4. A final capstone project with an assessment rubric.`)
	return b.String()
}

func (advancedBuilder) Assist(instruction, draft string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Revise the draft below. Instruction: %s\n", instruction)
	b.WriteString("Keep the author's structure; return only the revised text.\n\n")
	b.WriteString(draft)
	return b.String()
}
