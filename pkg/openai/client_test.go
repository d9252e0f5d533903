package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatCompletion(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4o-mini", body["model"])
		assert.Nil(t, body["stream"])
		assert.InDelta(t, float64(500), body["max_completion_tokens"], 1e-9)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"id":    "chatcmpl-001",
			"model": "gpt-4o-mini",
			"choices": []map[string]any{
				{
					"index":         0,
					"message":       map[string]any{"role": "assistant", "content": "Module 1: Basics"},
					"finish_reason": "stop",
				},
			},
			"usage": map[string]any{
				"prompt_tokens":     12,
				"completion_tokens": 8,
				"total_tokens":      20,
			},
		})
	}))
	defer ts.Close()

	maxTokens := int64(500)
	client := NewClient("sk-test", WithBaseURL(ts.URL))
	resp, err := client.ChatCompletion(context.Background(), ChatCompletionRequest{
		Messages: []Message{
			{Role: "system", Content: "You build curricula"},
			{Role: "user", Content: "Outline a course"},
		},
		MaxTokens: &maxTokens,
	})
	require.NoError(t, err)
	assert.Equal(t, "chatcmpl-001", resp.ID)
	assert.Equal(t, "Module 1: Basics", resp.Text())
	assert.Equal(t, int64(12), resp.Usage.PromptTokens)
	assert.Equal(t, int64(8), resp.Usage.CompletionTokens)
}

func TestChatCompletion_APIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"error": map[string]any{
				"message": "Rate limit reached",
				"type":    "rate_limit_error",
			},
		})
	}))
	defer ts.Close()

	client := NewClient("sk-test", WithBaseURL(ts.URL))
	_, err := client.ChatCompletion(context.Background(), ChatCompletionRequest{
		Messages: []Message{{Role: "user", Content: "Hi"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 429")
	assert.Contains(t, err.Error(), "Rate limit reached")
}

func writeChunk(w http.ResponseWriter, chunk map[string]any) {
	payload, _ := json.Marshal(chunk) //nolint:errcheck
	fmt.Fprintf(w, "data: %s\n\n", payload)
}

func TestStreamChatCompletion(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, true, body["stream"])
		opts, ok := body["stream_options"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, true, opts["include_usage"])

		w.Header().Set("Content-Type", "text/event-stream")
		writeChunk(w, map[string]any{
			"id": "chatcmpl-s1", "model": "gpt-4o-mini",
			"choices": []map[string]any{
				{"index": 0, "delta": map[string]any{"content": "Hello "}},
			},
		})
		writeChunk(w, map[string]any{
			"id": "chatcmpl-s1", "model": "gpt-4o-mini",
			"choices": []map[string]any{
				{"index": 0, "delta": map[string]any{"content": "world!"}},
			},
		})
		writeChunk(w, map[string]any{
			"id": "chatcmpl-s1", "model": "gpt-4o-mini",
			"choices": []map[string]any{
				{"index": 0, "delta": map[string]any{}, "finish_reason": "stop"},
			},
		})
		writeChunk(w, map[string]any{
			"id": "chatcmpl-s1", "model": "gpt-4o-mini",
			"choices": []map[string]any{},
			"usage": map[string]any{
				"prompt_tokens":     9,
				"completion_tokens": 4,
				"total_tokens":      13,
			},
		})
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer ts.Close()

	client := NewClient("sk-test", WithBaseURL(ts.URL))

	var chunks []string
	resp, err := client.StreamChatCompletion(context.Background(), ChatCompletionRequest{
		Messages: []Message{{Role: "user", Content: "Hi"}},
	}, func(text string) error {
		chunks = append(chunks, text)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Hello ", "world!"}, chunks)
	assert.Equal(t, "Hello world!", resp.Text())
	assert.Equal(t, "stop", resp.Choices[0].FinishReason)
	assert.Equal(t, int64(9), resp.Usage.PromptTokens)
	assert.Equal(t, int64(4), resp.Usage.CompletionTokens)
}

func TestStreamChatCompletion_ConsumerAbort(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		writeChunk(w, map[string]any{
			"id": "chatcmpl-s2", "model": "gpt-4o-mini",
			"choices": []map[string]any{
				{"index": 0, "delta": map[string]any{"content": "first"}},
			},
		})
		writeChunk(w, map[string]any{
			"id": "chatcmpl-s2", "model": "gpt-4o-mini",
			"choices": []map[string]any{
				{"index": 0, "delta": map[string]any{"content": "second"}},
			},
		})
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer ts.Close()

	client := NewClient("sk-test", WithBaseURL(ts.URL))

	calls := 0
	_, err := client.StreamChatCompletion(context.Background(), ChatCompletionRequest{
		Messages: []Message{{Role: "user", Content: "Hi"}},
	}, func(string) error {
		calls++
		return fmt.Errorf("stop")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Contains(t, err.Error(), "openai: stream consumer")
}

func TestStreamChatCompletion_HTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "upstream overloaded")
	}))
	defer ts.Close()

	client := NewClient("sk-test", WithBaseURL(ts.URL))
	_, err := client.StreamChatCompletion(context.Background(), ChatCompletionRequest{
		Messages: []Message{{Role: "user", Content: "Hi"}},
	}, func(string) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 503")
}
