// Package cost computes estimated and actual USD costs for model calls.
package cost

import "github.com/courseforge/courseforge/internal/catalog"

// Estimate returns the USD cost of the given token counts against a model's
// per-1K pricing. Pure; monotone non-decreasing in both token counts.
func Estimate(d catalog.ModelDescriptor, inputTokens, outputTokens int64) float64 {
	inCost := (float64(inputTokens) / 1000) * d.InputPer1K
	outCost := (float64(outputTokens) / 1000) * d.OutputPer1K
	return inCost + outCost
}

// EstimateSymmetric estimates cost assuming the request consumes roughly the
// same number of input and output tokens. Used pre-generation when only a
// single expected token count is known.
func EstimateSymmetric(d catalog.ModelDescriptor, tokens int64) float64 {
	return Estimate(d, tokens, tokens)
}

// Usage holds token counts reported by a provider after a call.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Actual returns the USD cost of a completed call from reported usage.
func Actual(d catalog.ModelDescriptor, u Usage) float64 {
	return Estimate(d, u.InputTokens, u.OutputTokens)
}
