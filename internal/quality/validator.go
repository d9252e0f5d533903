// Package quality scores generated course text with lexical heuristics.
//
// The validator is a proxy for "non-generic, actionable" content, not a
// semantic judgment: it counts pattern matches against fixed word lists and
// can be gamed by keyword stuffing. It sits behind the Scorer interface so a
// real classifier can replace it without touching callers.
package quality

import (
	"math"
	"regexp"
	"strings"

	"github.com/courseforge/courseforge/internal/model"
)

// Scorer assesses a completed generation. Implementations never fail: any
// input, including empty text, produces a report.
type Scorer interface {
	Validate(text string) model.QualityReport
}

// PassThreshold is the minimum combined score considered acceptable.
const PassThreshold = 0.7

// Signal weights. The AI-pattern signal is inverted: matches subtract.
const (
	weightSpecificity = 0.25
	weightExamples    = 0.20
	weightAIPattern   = 0.30
	weightActionable  = 0.25
	weightStructure   = 0.10
)

// specificWords mark concrete, domain-anchored prose.
var specificWords = []string{
	"specifically", "precisely", "exactly", "measured", "step-by-step",
	"algorithm", "formula", "protocol", "dataset", "metric", "benchmark",
	"checklist", "template", "syntax", "parameter", "workflow",
}

// genericWords mark filler prose that says nothing in particular.
var genericWords = []string{
	"important", "importance", "comprehensive", "various", "numerous",
	"significant", "overall", "general", "effective", "essential",
	"valuable", "great", "good", "many", "things", "stuff", "aspects",
}

// exampleMarkers introduce worked examples.
var exampleMarkers = []string{
	"for example", "for instance", "such as", "e.g.", "case study",
	"consider the", "imagine", "suppose", "in practice", "walkthrough",
}

// aiCliches are stock phrases characteristic of generic LLM output.
var aiCliches = []string{
	"in today's digital world", "in today's fast-paced world",
	"dive into", "let's dive in", "delve into",
	"comprehensive guide", "as we've seen", "as we have seen",
	"cannot be overstated", "it's important to note",
	"in conclusion", "ever-evolving", "in the realm of",
	"unlock the power", "game-changer", "at the end of the day",
	"whether you're a beginner or",
}

// actionableVerbs mark instructions a learner can act on.
var actionableVerbs = []string{
	"create", "build", "implement", "write", "practice", "apply",
	"configure", "design", "measure", "test", "review", "complete",
	"draft", "identify", "compare", "calculate", "record", "set up",
}

var (
	wordRe      = regexp.MustCompile(`[A-Za-z0-9'%-]+`)
	numberRe    = regexp.MustCompile(`\b\d+(\.\d+)?%?\b`)
	headingRe   = regexp.MustCompile(`(?m)^#{1,6}\s`)
	listItemRe  = regexp.MustCompile(`(?m)^\s*([-*+]|\d+[.)])\s`)
	paragraphRe = regexp.MustCompile(`\n\s*\n`)
)

// Validator is the lexical Scorer implementation.
type Validator struct{}

// NewValidator returns a Validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate scores text and returns the report with per-signal metrics and
// canned recommendations for weak signals. Never errors; empty input yields
// score 0 with a non-empty recommendations list.
func (v *Validator) Validate(text string) model.QualityReport {
	lower := strings.ToLower(text)
	words := wordRe.FindAllString(lower, -1)
	wordCount := len(words)

	m := model.QualityMetrics{
		SpecificityRatio: specificityRatio(lower, words),
		ExampleDensity:   normalizedDensity(countOccurrences(lower, exampleMarkers), wordCount, 3),
		AIPatternScore:   math.Min(float64(countOccurrences(lower, aiCliches))/5, 1),
		ActionableRatio:  normalizedDensity(countOccurrences(lower, actionableVerbs), wordCount, 8),
		StructureScore:   structureScore(text),
	}

	score := weightSpecificity*m.SpecificityRatio +
		weightExamples*m.ExampleDensity +
		weightActionable*m.ActionableRatio +
		weightStructure*m.StructureScore -
		weightAIPattern*m.AIPatternScore
	score = clamp01(score)

	return model.QualityReport{
		Score:           round2(score),
		Passed:          score >= PassThreshold,
		Metrics:         m,
		Recommendations: recommend(m),
	}
}

// specificityRatio weighs specific vocabulary (plus numeric facts) against
// generic filler. No matches on either side scores 0.
func specificityRatio(lower string, words []string) float64 {
	specific := countOccurrences(lower, specificWords)
	specific += len(numberRe.FindAllString(strings.Join(words, " "), -1))
	generic := countOccurrences(lower, genericWords)

	total := specific + generic
	if total == 0 {
		return 0
	}
	return float64(specific) / float64(total)
}

// normalizedDensity converts a raw match count to a per-100-words rate,
// normalized to [0,1] against a saturation rate.
func normalizedDensity(matches, wordCount, saturationPer100 int) float64 {
	if wordCount == 0 || matches == 0 {
		return 0
	}
	per100 := float64(matches) * 100 / float64(wordCount)
	return math.Min(per100/float64(saturationPer100), 1)
}

// structureScore rewards markdown structure: headings, lists, paragraphs.
func structureScore(text string) float64 {
	score := 0.0
	if headingRe.MatchString(text) {
		score += 0.4
	}
	if listItemRe.MatchString(text) {
		score += 0.4
	}
	if len(paragraphRe.FindAllString(text, -1)) >= 1 {
		score += 0.2
	}
	return score
}

func countOccurrences(lower string, patterns []string) int {
	total := 0
	for _, p := range patterns {
		total += strings.Count(lower, p)
	}
	return total
}

func recommend(m model.QualityMetrics) []string {
	var recs []string
	if m.SpecificityRatio < 0.5 {
		recs = append(recs, "Replace generic statements with concrete facts, numbers, and named techniques.")
	}
	if m.ExampleDensity < 0.3 {
		recs = append(recs, "Add worked examples or case studies to each section.")
	}
	if m.AIPatternScore > 0.2 {
		recs = append(recs, "Remove stock filler phrases; state the point directly.")
	}
	if m.ActionableRatio < 0.3 {
		recs = append(recs, "Add exercises with actionable verbs so learners can practice each concept.")
	}
	if m.StructureScore < 0.5 {
		recs = append(recs, "Organize content with headings and lists.")
	}
	return recs
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
