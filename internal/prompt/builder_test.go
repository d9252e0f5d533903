package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/courseforge/courseforge/internal/model"
)

var input = model.CourseInput{
	Title:           "Intro to Spreadsheets",
	Context:         "Office workers with no prior training",
	Duration:        "1-2 weeks",
	DifficultyLevel: "beginner",
}

func TestNew_VariantSelection(t *testing.T) {
	assert.Equal(t, VariantLegacy, New(VariantLegacy).Variant())
	assert.Equal(t, VariantAdvanced, New(VariantAdvanced).Variant())
	// Unknown variants resolve to advanced.
	assert.Equal(t, VariantAdvanced, New("experimental").Variant())
}

func TestCourse_IncludesAllFields(t *testing.T) {
	for _, v := range []Variant{VariantLegacy, VariantAdvanced} {
		p := New(v).Course(input)
		assert.Contains(t, p, input.Title, "variant %s", v)
		assert.Contains(t, p, input.Context, "variant %s", v)
		assert.Contains(t, p, input.Duration, "variant %s", v)
		assert.Contains(t, p, input.DifficultyLevel, "variant %s", v)
	}
}

func TestCourse_OmitsEmptyFields(t *testing.T) {
	p := New(VariantAdvanced).Course(model.CourseInput{Title: "Bare"})
	assert.NotContains(t, p, "Learner context")
	assert.NotContains(t, p, "Total duration")
	assert.NotContains(t, p, "Difficulty:")
}

func TestAssist_CarriesInstructionAndDraft(t *testing.T) {
	for _, v := range []Variant{VariantLegacy, VariantAdvanced} {
		p := New(v).Assist("shorten the intro", "Once upon a time...")
		assert.Contains(t, p, "shorten the intro")
		assert.Contains(t, p, "Once upon a time...")
	}
}
