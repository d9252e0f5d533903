package llm

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courseforge/courseforge/internal/catalog"
	"github.com/courseforge/courseforge/internal/cost"
	"github.com/courseforge/courseforge/internal/resilience"
)

// fakeClient scripts per-model outcomes and records the call order.
type fakeClient struct {
	results map[string]*Completion
	errs    map[string]error
	chunks  map[string][]string
	calls   []string
}

func (f *fakeClient) Complete(_ context.Context, req Request) (*Completion, error) {
	f.calls = append(f.calls, req.Model)
	if err := f.errs[req.Model]; err != nil {
		return nil, err
	}
	if c := f.results[req.Model]; c != nil {
		return c, nil
	}
	return &Completion{Content: "ok", Usage: cost.Usage{InputTokens: 10, OutputTokens: 20}}, nil
}

func (f *fakeClient) Stream(ctx context.Context, req Request, onChunk func(string) error) (*Completion, error) {
	f.calls = append(f.calls, req.Model)
	var content string
	for _, chunk := range f.chunks[req.Model] {
		if err := onChunk(chunk); err != nil {
			return nil, err
		}
		content += chunk
	}
	if err := f.errs[req.Model]; err != nil {
		return nil, err
	}
	return &Completion{Content: content, Usage: cost.Usage{OutputTokens: int64(len(content) / 4)}}, nil
}

func newTestExecutor(openaiFake, anthropicFake *fakeClient) *Executor {
	scorer := newTestScorer()
	return NewExecutor(scorer, map[string]Client{
		catalog.ProviderOpenAI:    openaiFake,
		catalog.ProviderAnthropic: anthropicFake,
	})
}

func TestExecutor_CompleteHappyPath(t *testing.T) {
	openai := &fakeClient{results: map[string]*Completion{
		"gpt-4o-mini": {Content: "module outline", Usage: cost.Usage{InputTokens: 100, OutputTokens: 400}},
	}}
	anthropic := &fakeClient{}
	exec := newTestExecutor(openai, anthropic)

	res, err := exec.Complete(context.Background(),
		SelectRequest{Strategy: StrategyBudget, EstimatedTokens: 1000},
		Request{Prompt: "outline a course"})
	require.NoError(t, err)
	assert.Equal(t, "openai/gpt-4o-mini", res.Model.Key())
	assert.Equal(t, "module outline", res.Content)
	assert.InDelta(t, cost.Actual(res.Model, res.Usage), res.CostUSD, 1e-12)
	assert.Equal(t, []string{"gpt-4o-mini"}, openai.calls)
	assert.Empty(t, anthropic.calls)
}

func TestExecutor_FallsBackToNextModel(t *testing.T) {
	openai := &fakeClient{errs: map[string]error{
		"gpt-4o-mini": eris.New("upstream 529"),
	}}
	anthropic := &fakeClient{results: map[string]*Completion{
		"claude-haiku-4-5-20251001": {Content: "rescued", Usage: cost.Usage{OutputTokens: 50}},
	}}
	exec := newTestExecutor(openai, anthropic)

	res, err := exec.Complete(context.Background(),
		SelectRequest{Strategy: StrategyBudget, EstimatedTokens: 1000},
		Request{Prompt: "outline a course"})
	require.NoError(t, err)
	assert.Equal(t, "anthropic/claude-haiku-4-5-20251001", res.Model.Key())
	assert.Equal(t, "rescued", res.Content)
	assert.Equal(t, []string{"gpt-4o-mini"}, openai.calls)
	assert.Equal(t, []string{"claude-haiku-4-5-20251001"}, anthropic.calls)
}

func TestExecutor_ExhaustionIsTerminal(t *testing.T) {
	boom := eris.New("boom")
	openai := &fakeClient{errs: map[string]error{"gpt-4o": boom, "gpt-4o-mini": boom}}
	anthropic := &fakeClient{errs: map[string]error{
		"claude-opus-4-6":            boom,
		"claude-sonnet-4-5-20250929": boom,
		"claude-haiku-4-5-20251001":  boom,
	}}
	exec := newTestExecutor(openai, anthropic)

	_, err := exec.Complete(context.Background(),
		SelectRequest{Strategy: StrategyBudget, EstimatedTokens: 1000},
		Request{Prompt: "outline a course"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrAllProvidersFailed.Error())

	// Every catalog model was attempted exactly once: no retries, no backoff.
	assert.Len(t, append(openai.calls, anthropic.calls...), 5)
}

func TestExecutor_NoHealthyModelBeforeAnyAttempt(t *testing.T) {
	breakers := resilience.NewBreakerSet(resilience.CircuitBreakerConfig{FailureThreshold: 1})
	models := catalog.Default()
	for _, m := range models {
		breakers.Get(m.Key()).RecordFailure()
	}
	scorer := NewScorer(models, DefaultStrategies(), breakers, NewStats())
	exec := NewExecutor(scorer, map[string]Client{})

	_, err := exec.Complete(context.Background(),
		SelectRequest{Strategy: StrategyBalanced, EstimatedTokens: 500}, Request{})
	assert.ErrorIs(t, err, ErrNoHealthyModel)
}

func TestExecutor_StreamRelaysChunks(t *testing.T) {
	openai := &fakeClient{chunks: map[string][]string{
		"gpt-4o-mini": {"Hello ", "world", "!"},
	}}
	exec := newTestExecutor(openai, &fakeClient{})

	var got []string
	res, err := exec.Stream(context.Background(),
		SelectRequest{Strategy: StrategyBudget, EstimatedTokens: 1000},
		Request{Prompt: "hi"},
		func(chunk string) error {
			got = append(got, chunk)
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, []string{"Hello ", "world", "!"}, got)
	assert.Equal(t, "Hello world!", res.Content)
}

// A failure after content has reached the caller must not fall back: a
// silent model switch would duplicate what was already streamed.
func TestExecutor_NoFallbackAfterFirstChunk(t *testing.T) {
	openai := &fakeClient{
		chunks: map[string][]string{"gpt-4o-mini": {"partial "}},
		errs:   map[string]error{"gpt-4o-mini": eris.New("connection reset")},
	}
	anthropic := &fakeClient{}
	exec := newTestExecutor(openai, anthropic)

	_, err := exec.Stream(context.Background(),
		SelectRequest{Strategy: StrategyBudget, EstimatedTokens: 1000},
		Request{Prompt: "hi"},
		func(string) error { return nil })
	require.Error(t, err)
	assert.Empty(t, anthropic.calls, "must not retry on another model mid-stream")
}

func TestExecutor_StreamFailureBeforeFirstChunkFallsBack(t *testing.T) {
	openai := &fakeClient{errs: map[string]error{"gpt-4o-mini": eris.New("503")}}
	anthropic := &fakeClient{chunks: map[string][]string{
		"claude-haiku-4-5-20251001": {"from ", "fallback"},
	}}
	exec := newTestExecutor(openai, anthropic)

	res, err := exec.Stream(context.Background(),
		SelectRequest{Strategy: StrategyBudget, EstimatedTokens: 1000},
		Request{Prompt: "hi"},
		func(string) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, "from fallback", res.Content)
}

func TestExecutor_ContextCancellationIsTerminal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	openai := &fakeClient{errs: map[string]error{"gpt-4o-mini": context.Canceled}}
	anthropic := &fakeClient{}
	exec := newTestExecutor(openai, anthropic)

	cancel()
	_, err := exec.Complete(ctx,
		SelectRequest{Strategy: StrategyBudget, EstimatedTokens: 1000}, Request{})
	require.Error(t, err)
	assert.Empty(t, anthropic.calls)
}

func TestExecutor_FailuresOpenBreaker(t *testing.T) {
	boom := eris.New("boom")
	openai := &fakeClient{errs: map[string]error{"gpt-4o": boom, "gpt-4o-mini": boom}}
	anthropic := &fakeClient{errs: map[string]error{
		"claude-opus-4-6":            boom,
		"claude-sonnet-4-5-20250929": boom,
		"claude-haiku-4-5-20251001":  boom,
	}}
	exec := newTestExecutor(openai, anthropic)

	// Three exhausted cascades leave every model with three consecutive
	// failures, so every breaker is open and the next call finds nothing.
	for i := 0; i < 3; i++ {
		_, err := exec.Complete(context.Background(),
			SelectRequest{Strategy: StrategyBudget, EstimatedTokens: 1000}, Request{})
		require.Error(t, err)
	}

	_, err := exec.Complete(context.Background(),
		SelectRequest{Strategy: StrategyBudget, EstimatedTokens: 1000}, Request{})
	assert.ErrorIs(t, err, ErrNoHealthyModel)
}
