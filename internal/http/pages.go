package http

import (
	"log/slog"
	"net/http"
)

// PageHandler serves the HTML pages around the sign-in flow.
type PageHandler struct {
	sessions *SessionManager
	renderer *Renderer
	logger   *slog.Logger
}

// NewPageHandler creates a new PageHandler.
func NewPageHandler(sessions *SessionManager, renderer *Renderer, logger *slog.Logger) *PageHandler {
	return &PageHandler{
		sessions: sessions,
		renderer: renderer,
		logger:   logger,
	}
}

// Index shows the signed-in view, or a sign-in prompt for anonymous visitors.
func (h *PageHandler) Index(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, http.StatusOK, pageIndex, pageData{User: UserFromContext(r.Context())})
}

// Profile shows the signed-in user's profile.
func (h *PageHandler) Profile(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, http.StatusOK, pageProfile, pageData{User: UserFromContext(r.Context())})
}

// Logout ends the session and returns to the landing page.
func (h *PageHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.EndSession(w, r); err != nil {
		h.logger.Error("logout failed", "error", err)
		h.renderer.Error(w, r, http.StatusInternalServerError, genericErrorMessage)
		return
	}

	if user := UserFromContext(r.Context()); user != nil {
		h.logger.Info("user logged out", "user_id", user.ID)
	}
	http.Redirect(w, r, "/", http.StatusFound)
}
