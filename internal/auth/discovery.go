package auth

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"signin/internal/platform/metrics"
)

// GoogleDiscoveryURL is Google's OpenID Connect discovery document.
const GoogleDiscoveryURL = "https://accounts.google.com/.well-known/openid-configuration"

// DefaultGoogleMetadata holds Google's long-standing endpoints, used whenever
// discovery cannot be completed.
var DefaultGoogleMetadata = ProviderMetadata{
	AuthorizationEndpoint: "https://accounts.google.com/o/oauth2/v2/auth",
	TokenEndpoint:         "https://oauth2.googleapis.com/token",
	UserInfoEndpoint:      "https://openidconnect.googleapis.com/v1/userinfo",
}

// Discovery failure categories, reported in logs and metrics.
const (
	discoveryFailureTLS     = "tls"
	discoveryFailureNetwork = "network"
	discoveryFailureTimeout = "timeout"
	discoveryFailureStatus  = "status"
	discoveryFailureDecode  = "decode"
	discoveryFailureOther   = "other"
)

var errMalformedDiscovery = errors.New("malformed discovery document")

// maxDiscoveryBytes bounds the discovery document read into memory.
const maxDiscoveryBytes = 1 << 20

// ProviderMetadata is the subset of the discovery document the sign-in flow needs.
type ProviderMetadata struct {
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserInfoEndpoint      string `json:"userinfo_endpoint"`
}

// Validate reports the first required endpoint that is missing.
func (m ProviderMetadata) Validate() error {
	switch {
	case m.AuthorizationEndpoint == "":
		return errors.New("authorization_endpoint is required")
	case m.TokenEndpoint == "":
		return errors.New("token_endpoint is required")
	case m.UserInfoEndpoint == "":
		return errors.New("userinfo_endpoint is required")
	}
	return nil
}

type discoveryStatusError struct {
	code int
}

func (e *discoveryStatusError) Error() string {
	return fmt.Sprintf("discovery returned HTTP %d", e.code)
}

// MetadataResolver fetches the provider discovery document. Resolve never
// fails: any error falls back to DefaultGoogleMetadata.
type MetadataResolver struct {
	client       *http.Client
	discoveryURL string
	fallback     ProviderMetadata
	cache        MetadataCache
	cacheTTL     time.Duration
	logger       *slog.Logger
	metrics      metrics.Recorder
}

// ResolverOption customises a MetadataResolver.
type ResolverOption func(*MetadataResolver)

// WithDiscoveryURL overrides the discovery document location.
func WithDiscoveryURL(url string) ResolverOption {
	return func(r *MetadataResolver) {
		r.discoveryURL = url
	}
}

// WithMetadataCache caches successful discoveries in cache for ttl.
// A non-positive ttl leaves caching disabled.
func WithMetadataCache(cache MetadataCache, ttl time.Duration) ResolverOption {
	return func(r *MetadataResolver) {
		if cache != nil && ttl > 0 {
			r.cache = cache
			r.cacheTTL = ttl
		}
	}
}

// WithResolverMetrics records each resolution outcome on rec.
func WithResolverMetrics(rec metrics.Recorder) ResolverOption {
	return func(r *MetadataResolver) {
		if rec != nil {
			r.metrics = rec
		}
	}
}

// NewMetadataResolver creates a resolver for Google's discovery document using client.
func NewMetadataResolver(client *http.Client, logger *slog.Logger, opts ...ResolverOption) *MetadataResolver {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	r := &MetadataResolver{
		client:       client,
		discoveryURL: GoogleDiscoveryURL,
		fallback:     DefaultGoogleMetadata,
		logger:       logger,
		metrics:      metrics.Noop{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the provider endpoints, from cache, discovery or the fallback defaults.
func (r *MetadataResolver) Resolve(ctx context.Context) ProviderMetadata {
	if r.cache != nil {
		md, ok, err := r.cache.Get(ctx)
		switch {
		case err != nil:
			r.logger.Warn("provider metadata cache read failed", "error", err)
		case ok:
			r.metrics.RecordDiscovery("cache_hit")
			return md
		}
	}

	r.logger.Debug("fetching provider metadata", "url", r.discoveryURL)
	md, err := r.fetch(ctx)
	if err != nil {
		reason := classifyDiscoveryError(err)
		r.logger.Warn("provider discovery failed, using default endpoints",
			"url", r.discoveryURL,
			"reason", reason,
			"error", err,
		)
		r.metrics.RecordDiscovery("fallback_" + reason)
		return r.fallback
	}

	r.logger.Info("provider metadata fetched", "url", r.discoveryURL)
	r.metrics.RecordDiscovery("success")

	if r.cache != nil {
		if err := r.cache.Set(ctx, md, r.cacheTTL); err != nil {
			r.logger.Warn("provider metadata cache write failed", "error", err)
		}
	}
	return md
}

func (r *MetadataResolver) fetch(ctx context.Context) (ProviderMetadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.discoveryURL, nil)
	if err != nil {
		return ProviderMetadata{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return ProviderMetadata{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDiscoveryBytes))
		return ProviderMetadata{}, &discoveryStatusError{code: resp.StatusCode}
	}

	var md ProviderMetadata
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxDiscoveryBytes)).Decode(&md); err != nil {
		return ProviderMetadata{}, fmt.Errorf("%w: %v", errMalformedDiscovery, err)
	}
	if err := md.Validate(); err != nil {
		return ProviderMetadata{}, fmt.Errorf("%w: %v", errMalformedDiscovery, err)
	}
	return md, nil
}

func classifyDiscoveryError(err error) string {
	var (
		statusErr   *discoveryStatusError
		certErr     *tls.CertificateVerificationError
		recordErr   tls.RecordHeaderError
		unknownAuth x509.UnknownAuthorityError
		hostnameErr x509.HostnameError
		invalidCert x509.CertificateInvalidError
		netErr      net.Error
	)

	switch {
	case errors.As(err, &statusErr):
		return discoveryFailureStatus
	case errors.Is(err, errMalformedDiscovery):
		return discoveryFailureDecode
	case errors.As(err, &certErr),
		errors.As(err, &recordErr),
		errors.As(err, &unknownAuth),
		errors.As(err, &hostnameErr),
		errors.As(err, &invalidCert):
		return discoveryFailureTLS
	case errors.Is(err, context.DeadlineExceeded):
		return discoveryFailureTimeout
	case errors.As(err, &netErr):
		if netErr.Timeout() {
			return discoveryFailureTimeout
		}
		return discoveryFailureNetwork
	default:
		return discoveryFailureOther
	}
}
