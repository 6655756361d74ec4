package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

var (
	// ErrProviderUnavailable means no usable endpoints could be resolved.
	ErrProviderUnavailable = errors.New("provider configuration unavailable")
	// ErrTokenExchange wraps failures of the authorization code exchange.
	ErrTokenExchange = errors.New("token exchange failed")
	// ErrUserInfo wraps failures fetching the user-info document.
	ErrUserInfo = errors.New("user info request failed")
	// ErrInvalidUserInfo means the user-info document lacks a required field.
	ErrInvalidUserInfo = errors.New("invalid user info response")
)

type metadataResolver interface {
	Resolve(ctx context.Context) ProviderMetadata
}

// GoogleAuthenticator drives the OAuth 2.0 authorization code flow against Google.
type GoogleAuthenticator struct {
	clientID     string
	clientSecret string
	redirectURL  string
	scopes       []string
	resolver     metadataResolver
	client       *http.Client
}

// NewGoogleAuthenticator creates a new GoogleAuthenticator. client carries the
// timeout and TLS settings for the token and user-info calls.
func NewGoogleAuthenticator(clientID, clientSecret, redirectURL string, resolver metadataResolver, client *http.Client) *GoogleAuthenticator {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &GoogleAuthenticator{
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURL:  redirectURL,
		scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
		resolver:     resolver,
		client:       client,
	}
}

// AuthURL resolves the provider endpoints and generates the Google consent URL with the given state.
func (g *GoogleAuthenticator) AuthURL(ctx context.Context, state string) (string, error) {
	md := g.resolver.Resolve(ctx)
	if err := md.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	return g.oauthConfig(md).AuthCodeURL(
		state,
		oauth2.SetAuthURLParam("prompt", "select_account"),
	), nil
}

// Exchange trades the authorization code for an access token and returns the
// claims from the user-info endpoint. The id_token in the token response is
// not verified; identity comes from the user-info call.
func (g *GoogleAuthenticator) Exchange(ctx context.Context, code string) (*GoogleClaims, error) {
	md := g.resolver.Resolve(ctx)
	if err := md.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	ctx = oidc.ClientContext(ctx, g.client)

	token, err := g.oauthConfig(md).Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenExchange, err)
	}

	provider := (&oidc.ProviderConfig{
		AuthURL:     md.AuthorizationEndpoint,
		TokenURL:    md.TokenEndpoint,
		UserInfoURL: md.UserInfoEndpoint,
	}).NewProvider(ctx)

	info, err := provider.UserInfo(ctx, oauth2.StaticTokenSource(token))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUserInfo, err)
	}

	var claims GoogleClaims
	if err := info.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidUserInfo, err)
	}
	claims.Sub = info.Subject
	claims.Email = info.Email
	claims.EmailVerified = info.EmailVerified

	if claims.Sub == "" {
		return nil, fmt.Errorf("%w: sub is required", ErrInvalidUserInfo)
	}
	if claims.EmailVerified && claims.Email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidUserInfo)
	}

	return &claims, nil
}

func (g *GoogleAuthenticator) oauthConfig(md ProviderMetadata) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     g.clientID,
		ClientSecret: g.clientSecret,
		RedirectURL:  g.redirectURL,
		Scopes:       g.scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   md.AuthorizationEndpoint,
			TokenURL:  md.TokenEndpoint,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
}

// GenerateState generates a cryptographically secure random state string.
func GenerateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
