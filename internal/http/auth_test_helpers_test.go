package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"signin/internal/auth"
	"signin/internal/config"
	"signin/internal/platform/metrics"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type authRepoStub struct {
	getUser    func(ctx context.Context, id string) (*auth.User, error)
	upsertUser func(ctx context.Context, user auth.User) error
}

func (r *authRepoStub) GetUser(ctx context.Context, id string) (*auth.User, error) {
	if r.getUser != nil {
		return r.getUser(ctx, id)
	}
	return nil, nil
}

func (r *authRepoStub) UpsertUser(ctx context.Context, user auth.User) error {
	if r.upsertUser != nil {
		return r.upsertUser(ctx, user)
	}
	return nil
}

// fakeProvider stands in for Google's discovery, token and userinfo endpoints.
type fakeProvider struct {
	server         *httptest.Server
	discoveryCalls atomic.Int32
	tokenCalls     atomic.Int32
	userInfoCalls  atomic.Int32

	discoveryStatus int
	tokenStatus     int
	userInfo        map[string]any
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()

	p := &fakeProvider{
		discoveryStatus: http.StatusOK,
		tokenStatus:     http.StatusOK,
		userInfo: map[string]any{
			"sub":            "u1",
			"email":          "a@b.com",
			"email_verified": true,
			"name":           "A",
			"picture":        "http://x/y.png",
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		p.discoveryCalls.Add(1)
		if p.discoveryStatus != http.StatusOK {
			http.Error(w, "unavailable", p.discoveryStatus)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"authorization_endpoint": p.server.URL + "/o/oauth2/v2/auth",
			"token_endpoint":         p.server.URL + "/token",
			"userinfo_endpoint":      p.server.URL + "/userinfo",
		})
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		p.tokenCalls.Add(1)
		if p.tokenStatus != http.StatusOK {
			writeJSON(w, p.tokenStatus, map[string]string{"error": "invalid_grant", "error_description": "provider secret detail"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"access_token": "tok"})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		p.userInfoCalls.Add(1)
		if r.Header.Get("Authorization") != "Bearer tok" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(p.userInfo)
	})

	p.server = httptest.NewTLSServer(mux)
	t.Cleanup(p.server.Close)
	return p
}

func (p *fakeProvider) networkCalls() int32 {
	return p.discoveryCalls.Load() + p.tokenCalls.Load() + p.userInfoCalls.Load()
}

type testApp struct {
	handler  http.Handler
	provider *fakeProvider
	repo     auth.Repository
	registry *prometheus.Registry
}

type testAppOption func(*testAppConfig)

type testAppConfig struct {
	repo       auth.Repository
	google     Authenticator
	rateLimit  int
	trustProxy bool
}

func withRepository(repo auth.Repository) testAppOption {
	return func(c *testAppConfig) { c.repo = repo }
}

func withAuthenticator(google Authenticator) testAppOption {
	return func(c *testAppConfig) { c.google = google }
}

func withRateLimit(perMinute int) testAppOption {
	return func(c *testAppConfig) { c.rateLimit = perMinute }
}

func withTrustedProxyHeaders() testAppOption {
	return func(c *testAppConfig) { c.trustProxy = true }
}

func newTestApp(t *testing.T, opts ...testAppOption) *testApp {
	t.Helper()

	provider := newFakeProvider(t)
	logger := discardLogger()

	tc := testAppConfig{repo: auth.NewInMemoryRepository()}
	for _, opt := range opts {
		opt(&tc)
	}

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	if tc.google == nil {
		resolver := auth.NewMetadataResolver(provider.server.Client(), logger,
			auth.WithDiscoveryURL(provider.server.URL+"/.well-known/openid-configuration"),
			auth.WithResolverMetrics(collector),
		)
		tc.google = auth.NewGoogleAuthenticator("X", "secret", "https://localhost:5000/callback", resolver, provider.server.Client())
	}

	renderer, err := NewRenderer(logger)
	if err != nil {
		t.Fatalf("NewRenderer returned error: %v", err)
	}

	service := auth.NewService(tc.repo, collector)
	sessions := NewSessionManager(
		NewSessionStore("test-session-secret", 12*time.Hour, false),
		NewFlowStore("test-session-secret", false),
		service, logger,
	)

	var limiter *RateLimiter
	if tc.rateLimit > 0 {
		limiter = NewRateLimiter(tc.rateLimit, logger)
		t.Cleanup(limiter.Stop)
	}

	cfg := config.Config{
		Environment:       "development",
		AllowedOrigins:    []string{"https://localhost:5000"},
		TrustProxyHeaders: tc.trustProxy,
	}
	handler := NewRouter(cfg, RouterDeps{
		Google:         tc.google,
		Users:          service,
		Sessions:       sessions,
		Renderer:       renderer,
		Metrics:        collector,
		MetricsHandler: metrics.Handler(registry),
		LoginLimiter:   limiter,
		Logger:         logger,
	})

	return &testApp{
		handler:  handler,
		provider: provider,
		repo:     tc.repo,
		registry: registry,
	}
}

// do serves a GET for target carrying cookies and returns the recorder.
func (a *testApp) do(t *testing.T, target string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

// login runs /login and returns the state sent to the provider and the flow cookies.
func (a *testApp) login(t *testing.T) (string, []*http.Cookie) {
	t.Helper()

	rec := a.do(t, "/login", nil)
	if rec.Code != http.StatusFound {
		t.Fatalf("expected /login to redirect, got %d: %s", rec.Code, rec.Body.String())
	}
	location, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("failed to parse redirect: %v", err)
	}
	state := location.Query().Get("state")
	if state == "" {
		t.Fatal("expected state in authorization URL")
	}
	return state, rec.Result().Cookies()
}

// signIn completes the full flow and returns the session cookies.
func (a *testApp) signIn(t *testing.T) []*http.Cookie {
	t.Helper()

	state, cookies := a.login(t)
	rec := a.do(t, "/callback?code=abc123&state="+url.QueryEscape(state), cookies)
	if rec.Code != http.StatusFound {
		t.Fatalf("expected callback redirect, got %d: %s", rec.Code, rec.Body.String())
	}
	session := findCookie(rec.Result().Cookies(), sessionCookieName)
	if session == nil {
		t.Fatal("expected session cookie")
	}
	return []*http.Cookie{session}
}

func findCookie(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// hasLiveSession reports whether the response set a session cookie that is not a deletion.
func hasLiveSession(rec *httptest.ResponseRecorder) bool {
	c := findCookie(rec.Result().Cookies(), sessionCookieName)
	return c != nil && c.MaxAge >= 0 && c.Value != ""
}
