package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courseforge/courseforge/internal/model"
)

func createCourse(t *testing.T, env *testEnv, token, title string) model.Course {
	t.Helper()
	var course model.Course
	status := env.requestJSON(t, http.MethodPost, "/api/courses", token, model.CourseInput{
		Title:           title,
		Context:         "for working engineers",
		Duration:        "6 weeks",
		DifficultyLevel: "intermediate",
	}, &course)
	require.Equal(t, http.StatusCreated, status)
	return course
}

func TestCourseCRUD(t *testing.T) {
	env := newTestEnv(t, Config{})
	token := env.register(t)

	course := createCourse(t, env, token, "Distributed Systems")
	assert.Equal(t, model.CourseStatusDraft, course.Status)

	var got model.Course
	status := env.requestJSON(t, http.MethodGet, "/api/courses/"+course.ID, token, nil, &got)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Distributed Systems", got.Title)

	var updated model.Course
	status = env.requestJSON(t, http.MethodPut, "/api/courses/"+course.ID, token, model.CourseInput{
		Title: "Distributed Systems, Revised",
	}, &updated)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Distributed Systems, Revised", updated.Title)

	resp := env.request(t, http.MethodDelete, "/api/courses/"+course.ID, token, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.request(t, http.MethodGet, "/api/courses/"+course.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateCourse_MissingTitle(t *testing.T) {
	env := newTestEnv(t, Config{})
	token := env.register(t)

	resp := env.request(t, http.MethodPost, "/api/courses", token, model.CourseInput{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetCourse_ForeignUserIs404(t *testing.T) {
	env := newTestEnv(t, Config{})
	owner := env.register(t)
	other := env.register(t)

	course := createCourse(t, env, owner, "Private Course")

	resp := env.request(t, http.MethodGet, "/api/courses/"+course.ID, other, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.request(t, http.MethodDelete, "/api/courses/"+course.ID, other, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListCourses(t *testing.T) {
	env := newTestEnv(t, Config{})
	token := env.register(t)

	createCourse(t, env, token, "Course A")
	courseB := createCourse(t, env, token, "Course B")
	require.NoError(t, env.store.SetCourseContent(context.Background(), courseB.UserID, courseB.ID,
		"# Course B", model.CourseStatusGenerated))

	var out struct {
		Courses []model.Course `json:"courses"`
	}
	status := env.requestJSON(t, http.MethodGet, "/api/courses", token, nil, &out)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, out.Courses, 2)

	status = env.requestJSON(t, http.MethodGet, "/api/courses?status=generated", token, nil, &out)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, out.Courses, 1)
	assert.Equal(t, courseB.ID, out.Courses[0].ID)
}

func TestListCourses_EmptyIsArray(t *testing.T) {
	env := newTestEnv(t, Config{})
	token := env.register(t)

	var out map[string]any
	status := env.requestJSON(t, http.MethodGet, "/api/courses", token, nil, &out)
	require.Equal(t, http.StatusOK, status)
	assert.NotNil(t, out["courses"])
}

func TestListGenerations_ForeignCourseIs404(t *testing.T) {
	env := newTestEnv(t, Config{})
	owner := env.register(t)
	other := env.register(t)

	course := createCourse(t, env, owner, "Mine")

	resp := env.request(t, http.MethodGet, "/api/courses/"+course.ID+"/generations", other, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var out map[string]any
	status := env.requestJSON(t, http.MethodGet, "/api/courses/"+course.ID+"/generations", owner, nil, &out)
	require.Equal(t, http.StatusOK, status)
	assert.NotNil(t, out["generations"])
}
