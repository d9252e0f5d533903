// Package stream re-assembles a model's text fragment stream into progress,
// content, and completion events for server-sent event consumers.
package stream

import (
	"time"

	"github.com/rotisserie/eris"

	"github.com/courseforge/courseforge/internal/model"
	"github.com/courseforge/courseforge/internal/quality"
)

// EventType discriminates the events pushed to the client.
type EventType string

const (
	EventStatus       EventType = "status"
	EventContent      EventType = "content"
	EventQualityCheck EventType = "quality_check"
	EventComplete     EventType = "complete"
	EventError        EventType = "error"
)

// Event is one server-push frame. Fields are populated per type: content
// events carry the fragment, status events a message and progress, the
// complete event the full accumulated text with token and cost totals.
type Event struct {
	Type     EventType            `json:"type"`
	Content  string               `json:"content,omitempty"`
	Message  string               `json:"message,omitempty"`
	Progress int                  `json:"progress,omitempty"`
	Tokens   int64                `json:"tokens,omitempty"`
	CostUSD  float64              `json:"cost_usd,omitempty"`
	Model    string               `json:"model,omitempty"`
	Quality  *model.QualityReport `json:"quality,omitempty"`
}

// statusInterval is the estimated-token spacing between periodic status
// events during streaming.
const statusInterval = 50

// Aggregator consumes text fragments in arrival order, accumulates the full
// text, and forwards one event per fragment plus periodic status events to
// its sink. It is request-scoped and not safe for concurrent use; the
// executor delivers fragments sequentially.
type Aggregator struct {
	sink      func(Event) error
	validator quality.Scorer
	maxTokens int64

	buf        []byte
	tokens     int64
	lastStatus int64
	started    time.Time
}

// NewAggregator creates an Aggregator pushing events to sink. maxTokens
// bounds the progress estimate; non-positive values disable the
// token-derived portion of progress.
func NewAggregator(sink func(Event) error, validator quality.Scorer, maxTokens int64) *Aggregator {
	return &Aggregator{
		sink:      sink,
		validator: validator,
		maxTokens: maxTokens,
		started:   time.Now(),
	}
}

// Start emits the initial status event naming the model handling the
// generation.
func (a *Aggregator) Start(modelKey string) error {
	return a.send(Event{
		Type:     EventStatus,
		Message:  "generation started",
		Model:    modelKey,
		Progress: a.progress(),
	})
}

// Feed appends one fragment and relays it as a content event. Every
// statusInterval estimated tokens an additional status event is emitted.
// Fragments are forwarded strictly in arrival order.
func (a *Aggregator) Feed(fragment string) error {
	if fragment == "" {
		return nil
	}
	a.buf = append(a.buf, fragment...)
	a.tokens = estimateTokens(len(a.buf))

	if err := a.send(Event{
		Type:     EventContent,
		Content:  fragment,
		Progress: a.progress(),
	}); err != nil {
		return err
	}

	if a.tokens-a.lastStatus >= statusInterval {
		a.lastStatus = a.tokens
		return a.send(Event{
			Type:     EventStatus,
			Message:  "generating",
			Tokens:   a.tokens,
			Progress: a.progress(),
		})
	}
	return nil
}

// Complete runs the quality validator over the accumulated text, emits one
// quality_check event, then the terminal complete event at progress 100
// carrying the full text, token estimate, and cost.
func (a *Aggregator) Complete(modelKey string, costUSD float64) (*model.QualityReport, error) {
	content := string(a.buf)

	report := a.validator.Validate(content)
	if err := a.send(Event{
		Type:    EventQualityCheck,
		Quality: &report,
	}); err != nil {
		return nil, err
	}

	if err := a.send(Event{
		Type:     EventComplete,
		Content:  content,
		Tokens:   a.tokens,
		CostUSD:  costUSD,
		Model:    modelKey,
		Progress: 100,
	}); err != nil {
		return nil, err
	}
	return &report, nil
}

// Fail emits the terminal error event. The accumulated buffer is left as-is
// and discarded with the request.
func (a *Aggregator) Fail(reason string) error {
	return a.send(Event{
		Type:    EventError,
		Message: reason,
	})
}

// Content returns the text accumulated so far.
func (a *Aggregator) Content() string {
	return string(a.buf)
}

// Tokens returns the current token estimate.
func (a *Aggregator) Tokens() int64 {
	return a.tokens
}

// Elapsed returns the time since the aggregator was created.
func (a *Aggregator) Elapsed() time.Duration {
	return time.Since(a.started)
}

func (a *Aggregator) send(ev Event) error {
	if err := a.sink(ev); err != nil {
		return eris.Wrap(err, "stream: push event")
	}
	return nil
}

// progress maps the token estimate into [10,90] during streaming; only the
// terminal complete event reports 100.
func (a *Aggregator) progress() int {
	if a.maxTokens <= 0 {
		return 10
	}
	p := 10 + int(80*a.tokens/a.maxTokens)
	if p > 90 {
		p = 90
	}
	return p
}

// estimateTokens approximates a token count as length/4, rounding up. A
// fixed heuristic, not a tokenizer.
func estimateTokens(chars int) int64 {
	return int64((chars + 3) / 4)
}
