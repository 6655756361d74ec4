package http

import (
	"net/http"
	"time"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"signin/internal/auth"
	"signin/internal/config"
	"signin/internal/platform/metrics"
)

// RouterDeps are the collaborators the HTTP layer is wired with.
type RouterDeps struct {
	Google         Authenticator
	Users          *auth.Service
	Sessions       *SessionManager
	Renderer       *Renderer
	Metrics        metrics.Recorder
	MetricsHandler http.Handler
	// LoginLimiter throttles /login and /callback; nil disables throttling.
	LoginLimiter *RateLimiter
	Logger       *slog.Logger
}

// NewRouter wires application routes and middleware using chi.
func NewRouter(cfg config.Config, deps RouterDeps) http.Handler {
	logger := deps.Logger

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	if cfg.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(newRecoverMiddleware(deps.Renderer, logger))
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(newSlogMiddleware(logger))
	r.Use(newSecurityHeadersMiddleware(cfg.Environment))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":      "ok",
			"environment": cfg.Environment,
		})
	})
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	oauthHandler := NewOAuthHandler(deps.Google, deps.Users, deps.Sessions, deps.Renderer, deps.Metrics, logger)
	pageHandler := NewPageHandler(deps.Sessions, deps.Renderer, logger)

	r.Group(func(r chi.Router) {
		r.Use(deps.Sessions.LoadUser)

		r.Get("/", pageHandler.Index)

		r.Group(func(r chi.Router) {
			if deps.LoginLimiter != nil {
				r.Use(deps.LoginLimiter.Middleware)
			}
			r.Get("/login", oauthHandler.Login)
			r.Get("/callback", oauthHandler.Callback)
		})

		r.Group(func(r chi.Router) {
			r.Use(deps.Sessions.RequireSession)
			r.Get("/profile", pageHandler.Profile)
			r.Get("/logout", pageHandler.Logout)
		})
	})

	r.NotFound(http.NotFoundHandler().ServeHTTP)

	return r
}
