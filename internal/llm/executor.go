package llm

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/courseforge/courseforge/internal/catalog"
	"github.com/courseforge/courseforge/internal/cost"
)

// ErrNoHealthyModel is returned when the scorer finds no candidate before
// any call has been attempted.
var ErrNoHealthyModel = eris.New("no healthy model available")

// ErrAllProvidersFailed is the terminal error after the fallback cascade is
// exhausted. Callers surface it as-is; there is no further retry or backoff.
var ErrAllProvidersFailed = eris.New("all providers failed")

// Result is a finished generation with attribution.
type Result struct {
	Model    catalog.ModelDescriptor
	Content  string
	Usage    cost.Usage
	CostUSD  float64
	Duration time.Duration
}

// Executor runs generation calls against the best available model, recording
// outcomes against the circuit breakers and usage stats, and falling back
// through remaining healthy candidates on failure.
type Executor struct {
	scorer  *Scorer
	clients map[string]Client
}

// NewExecutor creates an Executor. clients maps provider id to its API client.
func NewExecutor(scorer *Scorer, clients map[string]Client) *Executor {
	return &Executor{scorer: scorer, clients: clients}
}

// Complete selects a model and performs a blocking generation, falling back
// to the next-best healthy model on failure until candidates are exhausted.
func (e *Executor) Complete(ctx context.Context, sel SelectRequest, req Request) (*Result, error) {
	return e.run(ctx, sel, req, nil)
}

// Stream is like Complete but relays text fragments through onChunk in
// arrival order. Fallback only happens before the first fragment is emitted:
// once content has reached the caller, a mid-stream failure is terminal for
// the request rather than silently restarting with another model.
func (e *Executor) Stream(ctx context.Context, sel SelectRequest, req Request, onChunk func(string) error) (*Result, error) {
	return e.run(ctx, sel, req, onChunk)
}

func (e *Executor) run(ctx context.Context, sel SelectRequest, req Request, onChunk func(string) error) (*Result, error) {
	exclude := make(map[string]bool, len(sel.Exclude))
	for k, v := range sel.Exclude {
		exclude[k] = v
	}
	sel.Exclude = exclude

	var lastErr error
	attempts := 0
	for {
		pick := e.scorer.Select(sel)
		if pick == nil {
			if attempts == 0 {
				return nil, ErrNoHealthyModel
			}
			if lastErr != nil {
				return nil, eris.Wrap(lastErr, ErrAllProvidersFailed.Error())
			}
			return nil, ErrAllProvidersFailed
		}
		attempts++

		result, emitted, err := e.attempt(ctx, pick.Model, req, onChunk)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, err
		}
		if emitted {
			// Partial content already relayed; a silent model switch would
			// duplicate or garble the stream.
			return nil, err
		}

		zap.L().Warn("model call failed, trying next candidate",
			zap.String("model", pick.Model.Key()),
			zap.Int("attempt", attempts),
			zap.Error(err),
		)
		sel.Exclude[pick.Model.Key()] = true
	}
}

// attempt runs one call against one model, recording breaker and stats
// outcomes for its (provider, model) pair. emitted reports whether any
// streamed fragment reached the caller before the error.
func (e *Executor) attempt(ctx context.Context, m catalog.ModelDescriptor, req Request, onChunk func(string) error) (result *Result, emitted bool, err error) {
	client, ok := e.clients[m.Provider]
	if !ok {
		return nil, false, eris.Errorf("llm: no client configured for provider %s", m.Provider)
	}

	callReq := req
	callReq.Model = m.Model
	if callReq.MaxTokens <= 0 || callReq.MaxTokens > int64(m.MaxTokens) {
		callReq.MaxTokens = int64(m.MaxTokens)
	}

	start := time.Now()

	var completion *Completion
	if onChunk == nil {
		completion, err = client.Complete(ctx, callReq)
	} else {
		counting := func(chunk string) error {
			if chunk != "" {
				emitted = true
			}
			return onChunk(chunk)
		}
		completion, err = client.Stream(ctx, callReq, counting)
	}

	elapsed := time.Since(start)
	breaker := e.scorer.breakers.Get(m.Key())

	if err != nil {
		breaker.RecordFailure()
		e.scorer.stats.RecordFailure(m.Provider, elapsed)
		return nil, emitted, eris.Wrapf(err, "llm: %s call", m.Key())
	}

	actualCost := cost.Actual(m, completion.Usage)
	totalTokens := completion.Usage.InputTokens + completion.Usage.OutputTokens
	breaker.RecordSuccess()
	e.scorer.stats.RecordSuccess(m.Provider, elapsed, totalTokens, actualCost)

	zap.L().Info("generation complete",
		zap.String("model", m.Key()),
		zap.Int64("input_tokens", completion.Usage.InputTokens),
		zap.Int64("output_tokens", completion.Usage.OutputTokens),
		zap.Float64("cost_usd", actualCost),
		zap.Duration("duration", elapsed),
	)

	return &Result{
		Model:    m,
		Content:  completion.Content,
		Usage:    completion.Usage,
		CostUSD:  actualCost,
		Duration: elapsed,
	}, emitted, nil
}
