package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/sessions"

	"signin/internal/auth"
)

const (
	sessionCookieName = "signin_session"
	flowCookieName    = "signin_oauth"
	flowCookieTTL     = 10 * time.Minute

	sessionUserKey = "user_id"
	flowStateKey   = "state"
	flowIDKey      = "flow_id"
)

// Subject is anything a browser session can be bound to.
type Subject interface {
	SessionSubject() string
}

type userLookup interface {
	GetUser(ctx context.Context, id string) (*auth.User, error)
}

// NewSessionStore builds the signed cookie store for the sign-in session.
func NewSessionStore(secret string, maxAge time.Duration, secure bool) *sessions.CookieStore {
	return newCookieStore(secret, maxAge, secure)
}

// NewFlowStore builds the signed cookie store for the OAuth state cookie.
// Cookies older than the flow lifetime fail verification.
func NewFlowStore(secret string, secure bool) *sessions.CookieStore {
	return newCookieStore(secret, flowCookieTTL, secure)
}

func newCookieStore(secret string, maxAge time.Duration, secure bool) *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(secret))
	store.MaxAge(int(maxAge.Seconds()))
	store.Options.Path = "/"
	store.Options.HttpOnly = true
	store.Options.Secure = secure
	store.Options.SameSite = http.SameSiteLaxMode
	return store
}

// SessionManager binds authenticated users to browser sessions and carries
// the transient OAuth state between /login and /callback.
type SessionManager struct {
	store  sessions.Store
	flows  sessions.Store
	users  userLookup
	logger *slog.Logger
}

// NewSessionManager creates a SessionManager. store holds the sign-in
// session and flows holds the OAuth state cookie.
func NewSessionManager(store, flows sessions.Store, users userLookup, logger *slog.Logger) *SessionManager {
	return &SessionManager{
		store:  store,
		flows:  flows,
		users:  users,
		logger: logger,
	}
}

// StartSession marks the browser as signed in as subject.
func (m *SessionManager) StartSession(w http.ResponseWriter, r *http.Request, subject Subject) error {
	session := m.session(m.store, r, sessionCookieName)
	session.Values[sessionUserKey] = subject.SessionSubject()
	if err := session.Save(r, w); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// EndSession clears the browser session.
func (m *SessionManager) EndSession(w http.ResponseWriter, r *http.Request) error {
	session := m.session(m.store, r, sessionCookieName)
	delete(session.Values, sessionUserKey)
	session.Options.MaxAge = -1
	if err := session.Save(r, w); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// CurrentUser returns the signed-in user, or nil for anonymous requests and
// sessions whose user no longer exists.
func (m *SessionManager) CurrentUser(r *http.Request) (*auth.User, error) {
	session := m.session(m.store, r, sessionCookieName)
	id, _ := session.Values[sessionUserKey].(string)
	if id == "" {
		return nil, nil
	}
	return m.users.GetUser(r.Context(), id)
}

// SaveFlow stores the OAuth state and flow id for the callback to verify.
func (m *SessionManager) SaveFlow(w http.ResponseWriter, r *http.Request, state, flowID string) error {
	session := m.session(m.flows, r, flowCookieName)
	session.Values[flowStateKey] = state
	session.Values[flowIDKey] = flowID
	if err := session.Save(r, w); err != nil {
		return fmt.Errorf("save oauth state: %w", err)
	}
	return nil
}

// TakeFlow returns the stored OAuth state and flow id and clears them, so a
// state value can be used once.
func (m *SessionManager) TakeFlow(w http.ResponseWriter, r *http.Request) (state, flowID string) {
	session := m.session(m.flows, r, flowCookieName)
	state, _ = session.Values[flowStateKey].(string)
	flowID, _ = session.Values[flowIDKey].(string)
	if session.IsNew {
		return state, flowID
	}

	session.Values = map[interface{}]interface{}{}
	session.Options.MaxAge = -1
	if err := session.Save(r, w); err != nil {
		m.logger.Warn("failed to clear oauth state", "error", err)
	}
	return state, flowID
}

// LoadUser injects the signed-in user, if any, into the request context.
func (m *SessionManager) LoadUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := m.CurrentUser(r)
		if err != nil {
			m.logger.Error("session user lookup failed", "error", err)
		}
		if user != nil {
			r = r.WithContext(context.WithValue(r.Context(), userContextKey, user))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSession redirects anonymous requests to /login. It expects LoadUser
// to have run first.
func (m *SessionManager) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserFromContext(r.Context()) == nil {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// session returns the named session. A cookie that fails verification yields
// a fresh session; the stale cookie is overwritten on the next save.
func (m *SessionManager) session(store sessions.Store, r *http.Request, name string) *sessions.Session {
	session, err := store.Get(r, name)
	if err != nil {
		m.logger.Debug("discarding unreadable session cookie", "name", name, "error", err)
	}
	return session
}
