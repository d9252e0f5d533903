package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequireAuth_MissingToken(t *testing.T) {
	env := newTestEnv(t, Config{})

	for _, path := range []string{"/api/auth/me", "/api/courses", "/api/settings/byok"} {
		resp := env.request(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "path %s", path)
	}
}

func TestRequireAuth_MalformedHeader(t *testing.T) {
	env := newTestEnv(t, Config{})

	req, err := http.NewRequest(http.MethodGet, env.ts.URL+"/api/auth/me", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")

	resp, err := env.ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, Config{RequestsPerMinute: 60, Burst: 2})
	token := env.register(t)

	// Burst admits the first two; the third is throttled.
	for i := 0; i < 2; i++ {
		resp := env.request(t, http.MethodGet, "/api/auth/me", token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	var out errorResponse
	resp := env.request(t, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
	require.NoError(t, decodeBody(resp, &out))
	assert.Equal(t, "rate limit exceeded", out.Error)
	assert.GreaterOrEqual(t, out.RetryAfter, 1)
}

func TestRateLimit_PerUser(t *testing.T) {
	env := newTestEnv(t, Config{RequestsPerMinute: 60, Burst: 1})
	alice := env.register(t)
	bob := env.register(t)

	resp := env.request(t, http.MethodGet, "/api/auth/me", alice, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = env.request(t, http.MethodGet, "/api/auth/me", alice, nil)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	// A different user has their own bucket.
	resp = env.request(t, http.MethodGet, "/api/auth/me", bob, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRecoverPanics(t *testing.T) {
	env := newTestEnv(t, Config{})

	handler := env.srv.recoverPanics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/courses", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal server error")
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, Config{})

	var out map[string]string
	status := env.requestJSON(t, http.MethodGet, "/health", "", nil, &out)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", out["status"])
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, Config{FrontendURL: "http://localhost:5173"})

	req, err := http.NewRequest(http.MethodOptions, env.ts.URL+"/api/courses", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := env.ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "http://localhost:5173",
		resp.Header.Get("Access-Control-Allow-Origin"))
}
