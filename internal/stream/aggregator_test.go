package stream

import (
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courseforge/courseforge/internal/quality"
)

func collectSink(events *[]Event) func(Event) error {
	return func(ev Event) error {
		*events = append(*events, ev)
		return nil
	}
}

func TestAggregator_KnownFragmentSequence(t *testing.T) {
	var events []Event
	agg := NewAggregator(collectSink(&events), quality.NewValidator(), 1000)

	require.NoError(t, agg.Start("openai/gpt-4o-mini"))
	for _, fragment := range []string{"Hello ", "world", "!"} {
		require.NoError(t, agg.Feed(fragment))
	}
	_, err := agg.Complete("openai/gpt-4o-mini", 0.0012)
	require.NoError(t, err)

	var completes []Event
	for _, ev := range events {
		if ev.Type == EventComplete {
			completes = append(completes, ev)
		}
	}
	require.Len(t, completes, 1, "exactly one complete event")
	assert.Equal(t, "Hello world!", completes[0].Content)
	assert.Equal(t, int64(3), completes[0].Tokens, "12 chars at 4 chars per token")
	assert.Equal(t, 100, completes[0].Progress)
	assert.InDelta(t, 0.0012, completes[0].CostUSD, 1e-12)
}

func TestAggregator_ContentEventsInArrivalOrder(t *testing.T) {
	var events []Event
	agg := NewAggregator(collectSink(&events), quality.NewValidator(), 1000)

	fragments := []string{"one ", "two ", "three"}
	for _, fragment := range fragments {
		require.NoError(t, agg.Feed(fragment))
	}

	var got []string
	for _, ev := range events {
		if ev.Type == EventContent {
			got = append(got, ev.Content)
		}
	}
	assert.Equal(t, fragments, got)
	assert.Equal(t, "one two three", agg.Content())
}

func TestAggregator_QualityCheckPrecedesComplete(t *testing.T) {
	var events []Event
	agg := NewAggregator(collectSink(&events), quality.NewValidator(), 1000)

	require.NoError(t, agg.Feed("Step 1: configure the database with 3 retries."))
	report, err := agg.Complete("anthropic/claude-haiku-4-5-20251001", 0.001)
	require.NoError(t, err)
	require.NotNil(t, report)

	var sequence []EventType
	for _, ev := range events {
		sequence = append(sequence, ev.Type)
	}
	require.GreaterOrEqual(t, len(sequence), 3)
	assert.Equal(t, EventQualityCheck, sequence[len(sequence)-2])
	assert.Equal(t, EventComplete, sequence[len(sequence)-1])

	for _, ev := range events {
		if ev.Type == EventQualityCheck {
			require.NotNil(t, ev.Quality)
			assert.Equal(t, report.Score, ev.Quality.Score)
		}
	}
}

func TestAggregator_PeriodicStatusEvents(t *testing.T) {
	var events []Event
	agg := NewAggregator(collectSink(&events), quality.NewValidator(), 10000)

	// 50 fragments of 8 chars = 100 estimated tokens: status at 50 and 100.
	for i := 0; i < 50; i++ {
		require.NoError(t, agg.Feed("12345678"))
	}

	statuses := 0
	for _, ev := range events {
		if ev.Type == EventStatus {
			statuses++
			assert.Equal(t, "generating", ev.Message)
		}
	}
	assert.Equal(t, 2, statuses)
}

func TestAggregator_ProgressCapsAt90DuringStreaming(t *testing.T) {
	var events []Event
	agg := NewAggregator(collectSink(&events), quality.NewValidator(), 10)

	// 100 chars = 25 estimated tokens, far past maxTokens of 10.
	require.NoError(t, agg.Feed(strings.Repeat("x", 100)))

	for _, ev := range events {
		if ev.Type == EventContent {
			assert.LessOrEqual(t, ev.Progress, 90)
		}
	}
}

func TestAggregator_EmptyFragmentEmitsNothing(t *testing.T) {
	var events []Event
	agg := NewAggregator(collectSink(&events), quality.NewValidator(), 1000)

	require.NoError(t, agg.Feed(""))
	assert.Empty(t, events)
}

func TestAggregator_SinkErrorPropagates(t *testing.T) {
	agg := NewAggregator(func(Event) error {
		return eris.New("client went away")
	}, quality.NewValidator(), 1000)

	err := agg.Feed("hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stream: push event")
}

func TestAggregator_Fail(t *testing.T) {
	var events []Event
	agg := NewAggregator(collectSink(&events), quality.NewValidator(), 1000)

	require.NoError(t, agg.Feed("partial "))
	require.NoError(t, agg.Fail("all providers failed"))

	last := events[len(events)-1]
	assert.Equal(t, EventError, last.Type)
	assert.Equal(t, "all providers failed", last.Message)
}
