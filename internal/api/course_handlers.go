package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"

	"github.com/courseforge/courseforge/internal/model"
	"github.com/courseforge/courseforge/internal/store"
)

func (s *Server) handleListCourses(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	filter := store.CourseFilter{
		Status: model.CourseStatus(r.URL.Query().Get("status")),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		filter.Limit, _ = strconv.Atoi(v)
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		filter.Offset, _ = strconv.Atoi(v)
	}

	courses, err := s.store.ListCourses(r.Context(), user.ID, filter)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, "internal server error", err)
		return
	}
	if courses == nil {
		courses = []model.Course{}
	}
	s.respond(w, http.StatusOK, map[string]any{"courses": courses})
}

func (s *Server) handleCreateCourse(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	var input model.CourseInput
	if !s.decode(w, r, &input) {
		return
	}
	if input.Title == "" {
		s.fail(w, http.StatusBadRequest, "title is required", nil)
		return
	}

	course, err := s.store.CreateCourse(r.Context(), user.ID, input)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, "internal server error", err)
		return
	}
	s.respond(w, http.StatusCreated, course)
}

func (s *Server) handleGetCourse(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	course, err := s.store.GetCourse(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.respond(w, http.StatusOK, course)
}

func (s *Server) handleUpdateCourse(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	var input model.CourseInput
	if !s.decode(w, r, &input) {
		return
	}
	if input.Title == "" {
		s.fail(w, http.StatusBadRequest, "title is required", nil)
		return
	}

	course, err := s.store.UpdateCourse(r.Context(), user.ID, chi.URLParam(r, "id"), input)
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.respond(w, http.StatusOK, course)
}

func (s *Server) handleDeleteCourse(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	if err := s.store.DeleteCourse(r.Context(), user.ID, chi.URLParam(r, "id")); err != nil {
		s.storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListGenerations(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	courseID := chi.URLParam(r, "id")

	// Scope check first so a foreign course id reads as 404, not an empty list.
	if _, err := s.store.GetCourse(r.Context(), user.ID, courseID); err != nil {
		s.storeError(w, err)
		return
	}

	gens, err := s.store.ListGenerations(r.Context(), user.ID, courseID)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, "internal server error", err)
		return
	}
	if gens == nil {
		gens = []model.Generation{}
	}
	s.respond(w, http.StatusOK, map[string]any{"generations": gens})
}

// storeError maps store errors onto the response taxonomy.
func (s *Server) storeError(w http.ResponseWriter, err error) {
	if eris.Is(err, store.ErrNotFound) {
		s.fail(w, http.StatusNotFound, "not found", nil)
		return
	}
	s.fail(w, http.StatusInternalServerError, "internal server error", err)
}
