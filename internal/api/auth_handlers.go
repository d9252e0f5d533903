package api

import (
	"net/http"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/courseforge/courseforge/internal/auth"
	"github.com/courseforge/courseforge/internal/model"
	"github.com/courseforge/courseforge/internal/store"
)

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !s.decode(w, r, &req) {
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		s.fail(w, http.StatusBadRequest, "a valid email is required", nil)
		return
	}
	if len(req.Password) < 8 {
		s.fail(w, http.StatusBadRequest, "password must be at least 8 characters", nil)
		return
	}

	hash, err := auth.HashPassword(req.Password, s.cfg.BcryptCost)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, "internal server error", err)
		return
	}

	user, err := s.store.CreateUser(r.Context(), req.Email, req.Name, hash)
	if err != nil {
		if isUniqueViolation(err) {
			s.fail(w, http.StatusBadRequest, "email already registered", nil)
			return
		}
		s.fail(w, http.StatusInternalServerError, "internal server error", err)
		return
	}

	token, _, err := s.auth.Issue(r.Context(), user.ID)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, "internal server error", err)
		return
	}
	s.respond(w, http.StatusCreated, authResponse{Token: token, User: user})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.decode(w, r, &req) {
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	user, err := s.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if eris.Is(err, store.ErrNotFound) {
			s.fail(w, http.StatusUnauthorized, "invalid email or password", nil)
			return
		}
		s.fail(w, http.StatusInternalServerError, "internal server error", err)
		return
	}
	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		s.fail(w, http.StatusUnauthorized, "invalid email or password", nil)
		return
	}

	token, _, err := s.auth.Issue(r.Context(), user.ID)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, "internal server error", err)
		return
	}
	s.respond(w, http.StatusOK, authResponse{Token: token, User: user})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.Revoke(r.Context(), bearerToken(r)); err != nil {
		s.fail(w, http.StatusInternalServerError, "internal server error", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, userFrom(r.Context()))
}

// isUniqueViolation matches duplicate-key errors from both backends.
func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
