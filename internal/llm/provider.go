// Package llm selects models, tracks provider health, and executes
// generation calls with circuit breaking and fallback.
package llm

import (
	"context"

	"github.com/courseforge/courseforge/internal/cost"
)

// Request is a single generation call against a selected model.
type Request struct {
	Model       string
	System      string
	Prompt      string
	MaxTokens   int64
	Temperature float64
}

// Completion is the full result of a generation call. For streamed calls the
// content is the concatenation of all emitted chunks.
type Completion struct {
	Content string
	Usage   cost.Usage
}

// Client is the provider-neutral surface the executor calls. One
// implementation exists per provider, wrapping that provider's API client.
type Client interface {
	// Complete performs a blocking generation and returns the full text.
	Complete(ctx context.Context, req Request) (*Completion, error)

	// Stream performs a streaming generation, invoking onChunk for each text
	// fragment in arrival order. A non-nil error from onChunk aborts the
	// stream. The returned completion carries the accumulated content and
	// final usage counts.
	Stream(ctx context.Context, req Request, onChunk func(chunk string) error) (*Completion, error)
}
