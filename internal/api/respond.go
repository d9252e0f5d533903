package api

import (
	"encoding/json"
	"net/http"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// errorResponse is the JSON body for every non-2xx response.
type errorResponse struct {
	Error      string `json:"error"`
	Detail     string `json:"detail,omitempty"`
	RetryAfter int    `json:"retry_after,omitempty"`
}

func (s *Server) respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("encode response", zap.Error(err))
	}
}

// fail writes an error body. Internal errors are logged; their detail only
// reaches the client in dev mode.
func (s *Server) fail(w http.ResponseWriter, status int, msg string, err error) {
	body := errorResponse{Error: msg}
	if err != nil {
		if status >= http.StatusInternalServerError {
			zap.L().Error(msg, zap.Error(err))
		}
		if s.cfg.DevMode {
			body.Detail = eris.ToString(err, false)
		}
	}
	s.respond(w, status, body)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.fail(w, http.StatusBadRequest, "invalid request body", err)
		return false
	}
	return true
}
