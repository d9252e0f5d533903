package api

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/courseforge/courseforge/internal/catalog"
	"github.com/courseforge/courseforge/internal/keys"
	"github.com/courseforge/courseforge/internal/llm"
	"github.com/courseforge/courseforge/internal/model"
)

// testModels maps a provider to the cheap model used for key verification.
var testModels = map[string]string{
	catalog.ProviderOpenAI:    "gpt-4o-mini",
	catalog.ProviderAnthropic: "claude-haiku-4-5-20251001",
}

func (s *Server) handleListKeys(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	stored, err := s.store.ListAPIKeys(r.Context(), user.ID)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, "internal server error", err)
		return
	}
	if stored == nil {
		stored = []model.APIKey{}
	}
	s.respond(w, http.StatusOK, map[string]any{"keys": stored})
}

type upsertKeyRequest struct {
	Provider string `json:"provider"`
	Key      string `json:"key"`
}

func (s *Server) handleUpsertKey(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	var req upsertKeyRequest
	if !s.decode(w, r, &req) {
		return
	}
	if _, ok := testModels[req.Provider]; !ok {
		s.fail(w, http.StatusBadRequest, "unknown provider", nil)
		return
	}
	if !keys.ValidateKeyFormat(req.Provider, req.Key) {
		s.fail(w, http.StatusBadRequest, "invalid key format for provider", nil)
		return
	}

	encrypted, err := s.cipher.Encrypt(req.Key)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, "internal server error", err)
		return
	}

	stored, err := s.store.UpsertAPIKey(r.Context(), user.ID, req.Provider, encrypted, keys.MaskKey(req.Key))
	if err != nil {
		s.fail(w, http.StatusInternalServerError, "internal server error", err)
		return
	}
	s.respond(w, http.StatusOK, stored)
}

func (s *Server) handleDeleteKey(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	provider := r.URL.Query().Get("provider")
	if provider == "" {
		s.fail(w, http.StatusBadRequest, "provider query parameter is required", nil)
		return
	}

	if err := s.store.DeleteAPIKey(r.Context(), user.ID, provider); err != nil {
		s.storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type testKeyRequest struct {
	Provider string `json:"provider"`
	// Key, when set, is tested directly without touching stored keys.
	Key string `json:"key"`
}

type testKeyResult struct {
	Provider string `json:"provider"`
	Verified bool   `json:"verified"`
	Error    string `json:"error,omitempty"`
}

// handleTestKey verifies provider keys with one minimal live completion per
// key, bounded by a hard timeout. With a provider it tests that key (raw or
// stored); without one it tests every stored key concurrently. Stored keys
// have their verified flag updated with the outcome.
func (s *Server) handleTestKey(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	var req testKeyRequest
	if !s.decode(w, r, &req) {
		return
	}

	if req.Provider != "" {
		if _, ok := testModels[req.Provider]; !ok {
			s.fail(w, http.StatusBadRequest, "unknown provider", nil)
			return
		}
		if req.Key != "" {
			if !keys.ValidateKeyFormat(req.Provider, req.Key) {
				s.fail(w, http.StatusBadRequest, "invalid key format for provider", nil)
				return
			}
			result := s.testLiveKey(r.Context(), req.Provider, req.Key)
			s.respond(w, http.StatusOK, result)
			return
		}

		result, err := s.testStoredKey(r.Context(), user.ID, req.Provider)
		if err != nil {
			s.storeError(w, err)
			return
		}
		s.respond(w, http.StatusOK, result)
		return
	}

	// No provider: fan out over every stored key.
	stored, err := s.store.ListAPIKeys(r.Context(), user.ID)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, "internal server error", err)
		return
	}

	results := make([]testKeyResult, 0, len(stored))
	var mu sync.Mutex
	g, ctx := errgroup.WithContext(r.Context())
	for _, key := range stored {
		provider := key.Provider
		g.Go(func() error {
			result, err := s.testStoredKey(ctx, user.ID, provider)
			if err != nil {
				result = testKeyResult{Provider: provider, Error: err.Error()}
			}
			mu.Lock()
			results = append(results, result)
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	s.respond(w, http.StatusOK, map[string]any{"results": results})
}

// testStoredKey decrypts and live-tests a stored key, persisting the outcome
// on the key's verified flag.
func (s *Server) testStoredKey(ctx context.Context, userID, provider string) (testKeyResult, error) {
	stored, err := s.store.GetAPIKey(ctx, userID, provider)
	if err != nil {
		return testKeyResult{}, err
	}
	plain, err := s.cipher.Decrypt(stored.EncryptedKey)
	if err != nil {
		return testKeyResult{Provider: provider, Error: "stored key is unreadable"}, nil
	}

	result := s.testLiveKey(ctx, provider, plain)
	if err := s.store.SetAPIKeyVerified(ctx, userID, provider, result.Verified); err != nil {
		return testKeyResult{}, err
	}
	return result, nil
}

// testLiveKey makes one minimal completion call with the key under a hard
// timeout.
func (s *Server) testLiveKey(ctx context.Context, provider, key string) testKeyResult {
	client := s.newClient(provider, key)
	if client == nil {
		return testKeyResult{Provider: provider, Error: "unknown provider"}
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.KeyTestTimeout)
	defer cancel()

	_, err := client.Complete(ctx, llm.Request{
		Model:     testModels[provider],
		Prompt:    "Reply with OK.",
		MaxTokens: 8,
	})
	if err != nil {
		return testKeyResult{Provider: provider, Error: err.Error()}
	}
	return testKeyResult{Provider: provider, Verified: true}
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			days = parsed
		}
	}
	since := time.Now().UTC().AddDate(0, 0, -days)

	summary, err := s.store.SummarizeUsage(r.Context(), user.ID, since)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, "internal server error", err)
		return
	}
	s.respond(w, http.StatusOK, map[string]any{
		"summary":   summary,
		"providers": s.stats.Snapshot(),
	})
}
