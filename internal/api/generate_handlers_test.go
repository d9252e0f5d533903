package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courseforge/courseforge/internal/cost"
	"github.com/courseforge/courseforge/internal/llm"
	"github.com/courseforge/courseforge/internal/model"
	"github.com/courseforge/courseforge/internal/store"
	"github.com/courseforge/courseforge/internal/stream"
)

func TestGenerate_StreamsAndPersists(t *testing.T) {
	env := newTestEnv(t, Config{})
	token := env.register(t)

	// Budget strategy routes to gpt-4o-mini, so the openai fake handles it.
	env.openai.chunks = []string{"# Course\n\n", "Build a parser. ", "Measure it."}
	env.openai.completion = &llm.Completion{
		Content: "# Course\n\nBuild a parser. Measure it.",
		Usage:   cost.Usage{InputTokens: 120, OutputTokens: 40},
	}

	resp := env.request(t, http.MethodPost, "/api/courses/generate", token, generateRequest{
		Title:    "Compilers",
		Strategy: "budget",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := sseEvents(t, resp.Body)
	require.NotEmpty(t, events)

	assert.Equal(t, stream.EventStatus, events[0].Type)
	assert.Equal(t, "openai/gpt-4o-mini", events[0].Model)

	var contents, completes int
	var qualitySeen bool
	var final stream.Event
	for _, ev := range events {
		switch ev.Type {
		case stream.EventContent:
			contents++
		case stream.EventQualityCheck:
			qualitySeen = true
			require.NotNil(t, ev.Quality)
		case stream.EventComplete:
			completes++
			final = ev
		case stream.EventError:
			t.Fatalf("unexpected error event: %s", ev.Message)
		}
	}
	assert.Equal(t, 3, contents)
	assert.True(t, qualitySeen)
	require.Equal(t, 1, completes)
	assert.Equal(t, "# Course\n\nBuild a parser. Measure it.", final.Content)
	assert.Equal(t, 100, final.Progress)
	assert.Greater(t, final.CostUSD, 0.0)

	// Course content and generation row persisted.
	ctx := context.Background()
	courses, err := env.store.ListCourses(ctx, currentUserID(t, env, token), store.CourseFilter{})
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, model.CourseStatusGenerated, courses[0].Status)
	assert.Equal(t, final.Content, courses[0].Content)

	gens, err := env.store.ListGenerations(ctx, courses[0].UserID, courses[0].ID)
	require.NoError(t, err)
	require.Len(t, gens, 1)
	assert.Equal(t, model.GenerationStatusComplete, gens[0].Status)
	assert.Equal(t, int64(120), gens[0].InputTokens)
	assert.NotNil(t, gens[0].Quality)

	summary, err := env.store.SummarizeUsage(ctx, courses[0].UserID, courses[0].CreatedAt.AddDate(0, 0, -1))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Requests)
}

func TestGenerate_AllProvidersFailing(t *testing.T) {
	env := newTestEnv(t, Config{})
	token := env.register(t)

	boom := eris.New("upstream unavailable")
	env.openai.err = boom
	env.claude.err = boom

	resp := env.request(t, http.MethodPost, "/api/courses/generate", token, generateRequest{
		Title:    "Doomed Course",
		Strategy: "budget",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	events := sseEvents(t, resp.Body)
	require.NotEmpty(t, events)
	final := events[len(events)-1]
	assert.Equal(t, stream.EventError, final.Type)
	assert.Contains(t, final.Message, "all providers failed")

	userID := currentUserID(t, env, token)
	courses, err := env.store.ListCourses(context.Background(), userID, store.CourseFilter{})
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, model.CourseStatusDraft, courses[0].Status)

	gens, err := env.store.ListGenerations(context.Background(), userID, courses[0].ID)
	require.NoError(t, err)
	require.Len(t, gens, 1)
	assert.Equal(t, model.GenerationStatusFailed, gens[0].Status)
	assert.Contains(t, gens[0].Error, "all providers failed")
}

func TestGenerate_ExistingCourse(t *testing.T) {
	env := newTestEnv(t, Config{})
	token := env.register(t)
	course := createCourse(t, env, token, "Existing")

	env.openai.chunks = []string{"content"}
	env.openai.completion = &llm.Completion{
		Content: "content",
		Usage:   cost.Usage{InputTokens: 10, OutputTokens: 2},
	}

	resp := env.request(t, http.MethodPost, "/api/courses/generate", token, generateRequest{
		CourseID: course.ID,
		Strategy: "budget",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	events := sseEvents(t, resp.Body)
	assert.Equal(t, stream.EventComplete, events[len(events)-1].Type)

	got, err := env.store.GetCourse(context.Background(), course.UserID, course.ID)
	require.NoError(t, err)
	assert.Equal(t, "content", got.Content)
}

func TestGenerate_UnknownCourseIs404(t *testing.T) {
	env := newTestEnv(t, Config{})
	token := env.register(t)

	resp := env.request(t, http.MethodPost, "/api/courses/generate", token, generateRequest{
		CourseID: "no-such-course",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGenerate_MissingTitleAndCourse(t *testing.T) {
	env := newTestEnv(t, Config{})
	token := env.register(t)

	resp := env.request(t, http.MethodPost, "/api/courses/generate", token, generateRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestExport_StreamsStoredContent(t *testing.T) {
	env := newTestEnv(t, Config{})
	token := env.register(t)
	course := createCourse(t, env, token, "Exportable")

	content := "# Exportable\n\nSection one.\n"
	require.NoError(t, env.store.SetCourseContent(context.Background(),
		course.UserID, course.ID, content, model.CourseStatusGenerated))

	resp := env.request(t, http.MethodPost, "/api/export/generate", token, exportRequest{
		CourseID: course.ID,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	events := sseEvents(t, resp.Body)
	require.NotEmpty(t, events)
	assert.Equal(t, stream.EventStatus, events[0].Type)

	final := events[len(events)-1]
	assert.Equal(t, stream.EventComplete, final.Type)
	assert.Equal(t, content, final.Content)
	assert.Equal(t, 100, final.Progress)

	// None of the fakes were called: export never touches a model.
	assert.Zero(t, env.openai.calls)
	assert.Zero(t, env.claude.calls)
}

func TestExport_NoContentIs400(t *testing.T) {
	env := newTestEnv(t, Config{})
	token := env.register(t)
	course := createCourse(t, env, token, "Empty Draft")

	resp := env.request(t, http.MethodPost, "/api/export/generate", token, exportRequest{
		CourseID: course.ID,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAssist(t *testing.T) {
	env := newTestEnv(t, Config{})
	token := env.register(t)

	env.openai.completion = &llm.Completion{
		Content: "Tightened draft.",
		Usage:   cost.Usage{InputTokens: 50, OutputTokens: 12},
	}

	var out assistResponse
	status := env.requestJSON(t, http.MethodPost, "/api/ai/assist", token, assistRequest{
		Instruction: "Tighten this paragraph",
		Draft:       "Some rambling draft text.",
		Strategy:    "budget",
	}, &out)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Tightened draft.", out.Content)
	assert.Equal(t, "openai/gpt-4o-mini", out.Model)
	assert.Greater(t, out.CostUSD, 0.0)
}

func TestAssist_MissingInstruction(t *testing.T) {
	env := newTestEnv(t, Config{})
	token := env.register(t)

	resp := env.request(t, http.MethodPost, "/api/ai/assist", token, assistRequest{Draft: "text"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// currentUserID resolves the token's user via the me endpoint.
func currentUserID(t *testing.T, env *testEnv, token string) string {
	t.Helper()
	var user model.User
	status := env.requestJSON(t, http.MethodGet, "/api/auth/me", token, nil, &user)
	require.Equal(t, http.StatusOK, status)
	return user.ID
}
