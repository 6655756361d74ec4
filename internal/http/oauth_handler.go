package http

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/google/uuid"

	"signin/internal/auth"
	"signin/internal/platform/metrics"
)

const (
	msgProviderUnreachable = "Cannot connect to Google servers. Please check your internet connection and try again."
	msgLoginFailed         = "An error occurred during login. Please try again."
	msgAuthFailed          = "An error occurred during authentication. Please try again."

	msgNoCode         = "Authentication failed: No code received."
	msgInvalidState   = "Authentication failed: Invalid state."
	msgEmailUnusable  = "User email not available or not verified by Google."
	msgUserStoreError = "Error creating user"
)

// Authenticator runs the provider side of the authorization code flow.
type Authenticator interface {
	AuthURL(ctx context.Context, state string) (string, error)
	Exchange(ctx context.Context, code string) (*auth.GoogleClaims, error)
}

type userUpserter interface {
	CreateOrUpdateUser(ctx context.Context, claims *auth.GoogleClaims) (*auth.User, error)
}

// OAuthHandler handles the /login and /callback endpoints.
type OAuthHandler struct {
	google   Authenticator
	users    userUpserter
	sessions *SessionManager
	renderer *Renderer
	metrics  metrics.Recorder
	logger   *slog.Logger
}

// NewOAuthHandler creates a new OAuthHandler.
func NewOAuthHandler(google Authenticator, users userUpserter, sessions *SessionManager, renderer *Renderer, recorder metrics.Recorder, logger *slog.Logger) *OAuthHandler {
	if recorder == nil {
		recorder = metrics.Noop{}
	}
	return &OAuthHandler{
		google:   google,
		users:    users,
		sessions: sessions,
		renderer: renderer,
		metrics:  recorder,
		logger:   logger,
	}
}

// Login handles GET /login.
// Redirects the user to Google's consent screen.
func (h *OAuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	defer h.recoverFlow(w, r, "login", msgLoginFailed)

	flowID := uuid.NewString()
	logger := h.logger.With("flow_id", flowID)

	state, err := auth.GenerateState()
	if err != nil {
		logger.Error("oauth login: failed to generate state", "error", err)
		h.renderer.Error(w, r, http.StatusInternalServerError, msgLoginFailed)
		return
	}

	authURL, err := h.google.AuthURL(r.Context(), state)
	if err != nil {
		logger.Error("oauth login: provider configuration unavailable", "error", err)
		h.renderer.Error(w, r, http.StatusServiceUnavailable, msgProviderUnreachable)
		return
	}

	if err := h.sessions.SaveFlow(w, r, state, flowID); err != nil {
		logger.Error("oauth login: failed to store state", "error", err)
		h.renderer.Error(w, r, http.StatusInternalServerError, msgLoginFailed)
		return
	}

	logger.Info("oauth login: redirecting to provider")
	http.Redirect(w, r, authURL, http.StatusFound)
}

// Callback handles GET /callback.
// Exchanges the authorization code, upserts the user and starts a session.
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	defer h.recoverFlow(w, r, "callback", msgAuthFailed)

	query := r.URL.Query()
	code := query.Get("code")
	if code == "" {
		h.logger.Warn("oauth callback: missing code", "provider_error", query.Get("error"))
		h.metrics.RecordCallback("missing_code")
		http.Error(w, msgNoCode, http.StatusBadRequest)
		return
	}

	expectedState, flowID := h.sessions.TakeFlow(w, r)
	logger := h.logger.With("flow_id", flowID)

	state := query.Get("state")
	if expectedState == "" || subtle.ConstantTimeCompare([]byte(state), []byte(expectedState)) != 1 {
		logger.Warn("oauth callback: state mismatch")
		h.metrics.RecordCallback("invalid_state")
		http.Error(w, msgInvalidState, http.StatusBadRequest)
		return
	}

	claims, err := h.google.Exchange(r.Context(), code)
	if err != nil {
		logger.Error("oauth callback: provider exchange failed", "error", err)
		h.metrics.RecordCallback("provider_error")
		h.renderer.Error(w, r, http.StatusBadGateway, msgAuthFailed)
		return
	}
	logger.Debug("oauth callback: user info received", "sub", claims.Sub)

	user, err := h.users.CreateOrUpdateUser(r.Context(), claims)
	switch {
	case errors.Is(err, auth.ErrEmailNotVerified):
		logger.Warn("oauth callback: email not verified", "sub", claims.Sub)
		h.metrics.RecordCallback("email_not_verified")
		http.Error(w, msgEmailUnusable, http.StatusBadRequest)
		return
	case err != nil:
		logger.Error("oauth callback: user upsert failed", "sub", claims.Sub, "error", err)
		h.metrics.RecordCallback("store_error")
		http.Error(w, msgUserStoreError, http.StatusInternalServerError)
		return
	}

	if err := h.sessions.StartSession(w, r, user); err != nil {
		logger.Error("oauth callback: session start failed", "user_id", user.ID, "error", err)
		h.metrics.RecordCallback("session_error")
		h.renderer.Error(w, r, http.StatusInternalServerError, msgAuthFailed)
		return
	}

	logger.Info("oauth login successful", "user_id", user.ID)
	h.metrics.RecordCallback("success")
	http.Redirect(w, r, "/", http.StatusFound)
}

// recoverFlow converts a panic in a flow step into that flow's generic error page.
func (h *OAuthHandler) recoverFlow(w http.ResponseWriter, r *http.Request, step, message string) {
	rec := recover()
	if rec == nil {
		return
	}
	if rec == http.ErrAbortHandler {
		panic(rec)
	}
	h.logger.Error("oauth "+step+": panic recovered", "panic", rec, "stack", string(debug.Stack()))
	if step == "callback" {
		h.metrics.RecordCallback("panic")
	}
	h.renderer.Error(w, r, http.StatusInternalServerError, message)
}
