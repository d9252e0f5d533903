package stream

import (
	"encoding/json"
	"net/http"

	"github.com/rotisserie/eris"
)

// SSEWriter encodes events as server-sent event frames on an HTTP response,
// flushing after every frame so fragments reach the client as they arrive.
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSEWriter prepares w for server-sent events and returns a writer over
// it. The response writer must support flushing.
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, eris.New("stream: response writer does not support flushing")
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	return &SSEWriter{w: w, flusher: flusher}, nil
}

// Send writes one event as a data frame and flushes it.
func (s *SSEWriter) Send(ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return eris.Wrap(err, "stream: marshal event")
	}
	if _, err := s.w.Write([]byte("data: ")); err != nil {
		return eris.Wrap(err, "stream: write event")
	}
	if _, err := s.w.Write(payload); err != nil {
		return eris.Wrap(err, "stream: write event")
	}
	if _, err := s.w.Write([]byte("\n\n")); err != nil {
		return eris.Wrap(err, "stream: write event")
	}
	s.flusher.Flush()
	return nil
}
