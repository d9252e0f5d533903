// Package api exposes the CourseForge HTTP surface: auth, course CRUD,
// SSE generation streaming, BYOK key management, and usage reporting.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/courseforge/courseforge/internal/auth"
	"github.com/courseforge/courseforge/internal/catalog"
	"github.com/courseforge/courseforge/internal/keys"
	"github.com/courseforge/courseforge/internal/llm"
	"github.com/courseforge/courseforge/internal/prompt"
	"github.com/courseforge/courseforge/internal/quality"
	"github.com/courseforge/courseforge/internal/store"
	"github.com/courseforge/courseforge/pkg/anthropic"
	"github.com/courseforge/courseforge/pkg/openai"
)

// defaultMaxTokens bounds a generation when the request does not say.
const defaultMaxTokens = 8000

// Config holds the server's behavioral settings.
type Config struct {
	// FrontendURL is the allowed CORS origin.
	FrontendURL string
	// DevMode includes error detail in 500 responses.
	DevMode bool
	// BcryptCost is the password hashing cost.
	BcryptCost int
	// KeyTestTimeout bounds the live provider call made when testing a BYOK
	// key. This is the only per-call timeout the server enforces.
	KeyTestTimeout time.Duration
	// RequestsPerMinute and Burst configure the per-user rate limiter.
	RequestsPerMinute int
	Burst             int
}

// Deps are the collaborators the server routes requests through.
type Deps struct {
	Store     store.Store
	Auth      *auth.Manager
	Cipher    *keys.Cipher
	Scorer    *llm.Scorer
	Stats     *llm.Stats
	Prompts   prompt.Builder
	Validator quality.Scorer
	// Clients are the server-credentialed provider clients. Verified BYOK
	// keys override them per user at request time.
	Clients map[string]llm.Client
}

// Server is the HTTP API server.
type Server struct {
	store     store.Store
	auth      *auth.Manager
	cipher    *keys.Cipher
	scorer    *llm.Scorer
	stats     *llm.Stats
	prompts   prompt.Builder
	validator quality.Scorer
	clients   map[string]llm.Client
	cfg       Config
	limiters  *limiterPool

	// newClient builds a provider client from a raw key, overridable in tests.
	newClient func(provider, key string) llm.Client
}

// NewServer wires a Server from its dependencies.
func NewServer(deps Deps, cfg Config) *Server {
	if cfg.KeyTestTimeout <= 0 {
		cfg.KeyTestTimeout = 10 * time.Second
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 60
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 10
	}
	return &Server{
		store:     deps.Store,
		auth:      deps.Auth,
		cipher:    deps.Cipher,
		scorer:    deps.Scorer,
		stats:     deps.Stats,
		prompts:   deps.Prompts,
		validator: deps.Validator,
		clients:   deps.Clients,
		cfg:       cfg,
		limiters:  newLimiterPool(cfg.RequestsPerMinute, cfg.Burst),
		newClient: newProviderClient,
	}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(s.recoverPanics)
	r.Use(s.logRequests)
	if s.cfg.FrontendURL != "" {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{s.cfg.FrontendURL},
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Use(s.rateLimit)

			r.Post("/auth/logout", s.handleLogout)
			r.Get("/auth/me", s.handleMe)

			r.Route("/courses", func(r chi.Router) {
				r.Get("/", s.handleListCourses)
				r.Post("/", s.handleCreateCourse)
				r.Post("/generate", s.handleGenerate)
				r.Get("/{id}", s.handleGetCourse)
				r.Put("/{id}", s.handleUpdateCourse)
				r.Delete("/{id}", s.handleDeleteCourse)
				r.Get("/{id}/generations", s.handleListGenerations)
			})

			r.Post("/export/generate", s.handleExport)
			r.Post("/ai/assist", s.handleAssist)

			r.Route("/settings", func(r chi.Router) {
				r.Get("/byok", s.handleListKeys)
				r.Post("/byok", s.handleUpsertKey)
				r.Delete("/byok", s.handleDeleteKey)
				r.Post("/byok/test", s.handleTestKey)
				r.Get("/usage", s.handleUsage)
			})
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := s.store.Ping(r.Context()); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	s.respond(w, code, map[string]string{"status": status})
}

// newProviderClient builds a real provider client for a raw API key.
func newProviderClient(provider, key string) llm.Client {
	switch provider {
	case catalog.ProviderOpenAI:
		return llm.NewOpenAIClient(openai.NewClient(key))
	case catalog.ProviderAnthropic:
		return llm.NewAnthropicClient(anthropic.NewClient(key))
	}
	return nil
}
