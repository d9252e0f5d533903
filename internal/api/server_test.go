package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/courseforge/courseforge/internal/auth"
	"github.com/courseforge/courseforge/internal/catalog"
	"github.com/courseforge/courseforge/internal/keys"
	"github.com/courseforge/courseforge/internal/llm"
	"github.com/courseforge/courseforge/internal/prompt"
	"github.com/courseforge/courseforge/internal/quality"
	"github.com/courseforge/courseforge/internal/resilience"
	"github.com/courseforge/courseforge/internal/store"
	"github.com/courseforge/courseforge/internal/stream"
)

// fakeLLMClient is a canned provider client for handler tests.
type fakeLLMClient struct {
	mu         sync.Mutex
	completion *llm.Completion
	chunks     []string
	err        error
	calls      int
	lastReq    llm.Request
}

func (f *fakeLLMClient) Complete(ctx context.Context, req llm.Request) (*llm.Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.completion, nil
}

func (f *fakeLLMClient) Stream(ctx context.Context, req llm.Request, onChunk func(string) error) (*llm.Completion, error) {
	f.mu.Lock()
	f.calls++
	f.lastReq = req
	err := f.err
	chunks := f.chunks
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	for _, chunk := range chunks {
		if err := onChunk(chunk); err != nil {
			return nil, err
		}
	}
	return f.completion, nil
}

type testEnv struct {
	srv    *Server
	store  store.Store
	ts     *httptest.Server
	openai *fakeLLMClient
	claude *fakeLLMClient
}

var testCipherKey = []byte("0123456789abcdef0123456789abcdef")

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })

	cipher, err := keys.NewCipher(testCipherKey)
	require.NoError(t, err)

	stats := llm.NewStats()
	breakers := resilience.NewBreakerSet(resilience.DefaultCircuitBreakerConfig())
	scorer := llm.NewScorer(catalog.Default(), nil, breakers, stats)

	openaiFake := &fakeLLMClient{
		completion: &llm.Completion{Content: "done"},
	}
	claudeFake := &fakeLLMClient{
		completion: &llm.Completion{Content: "done"},
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 4
	}
	if cfg.RequestsPerMinute == 0 {
		cfg.RequestsPerMinute = 6000
	}
	if cfg.Burst == 0 {
		cfg.Burst = 1000
	}
	cfg.DevMode = true

	srv := NewServer(Deps{
		Store:     st,
		Auth:      auth.NewManager("test-secret", time.Hour, st),
		Cipher:    cipher,
		Scorer:    scorer,
		Stats:     stats,
		Prompts:   prompt.New(prompt.VariantAdvanced),
		Validator: quality.NewValidator(),
		Clients: map[string]llm.Client{
			catalog.ProviderOpenAI:    openaiFake,
			catalog.ProviderAnthropic: claudeFake,
		},
	}, cfg)

	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)

	return &testEnv{srv: srv, store: st, ts: ts, openai: openaiFake, claude: claudeFake}
}

// request performs a JSON request and returns the raw response.
func (e *testEnv) request(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, e.ts.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.ts.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// requestJSON performs a request and decodes the JSON response into out.
func (e *testEnv) requestJSON(t *testing.T, method, path, token string, body, out any) int {
	t.Helper()
	resp := e.request(t, method, path, token, body)
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

var userSeq int

// register creates a fresh user and returns its bearer token.
func (e *testEnv) register(t *testing.T) string {
	t.Helper()
	userSeq++
	var out authResponse
	status := e.requestJSON(t, http.MethodPost, "/api/auth/register", "", registerRequest{
		Email:    fmt.Sprintf("user%d@example.com", userSeq),
		Name:     "Test User",
		Password: "correct horse",
	}, &out)
	require.Equal(t, http.StatusCreated, status)
	require.NotEmpty(t, out.Token)
	return out.Token
}

func decodeBody(resp *http.Response, out any) error {
	return json.NewDecoder(resp.Body).Decode(out)
}

// sseEvents parses an SSE response body into events.
func sseEvents(t *testing.T, body io.Reader) []stream.Event {
	t.Helper()
	raw, err := io.ReadAll(body)
	require.NoError(t, err)

	var events []stream.Event
	for _, frame := range strings.Split(string(raw), "\n\n") {
		frame = strings.TrimSpace(frame)
		if frame == "" {
			continue
		}
		require.True(t, strings.HasPrefix(frame, "data: "), "frame %q", frame)
		var ev stream.Event
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(frame, "data: ")), &ev))
		events = append(events, ev)
	}
	return events
}
