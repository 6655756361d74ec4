package config

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the sign-in service.
type Config struct {
	Environment      string        `env:"APP_ENV" envDefault:"development"`
	HTTPPort         int           `env:"PORT" envDefault:"5000"`
	BaseURL          string        `env:"BASE_URL" envDefault:"https://localhost:5000"`
	RedirectURL      string        `env:"OAUTH_REDIRECT_URL"`
	DataStore        string        `env:"DATA_STORE" envDefault:"sqlite"`
	DatabasePath     string        `env:"DATABASE_PATH" envDefault:"users.db"`
	LogLevel         string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat        string        `env:"LOG_FORMAT" envDefault:"text"`
	AllowedOrigins   []string      `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"https://localhost:5000"`
	TLSCertFile      string        `env:"TLS_CERT_FILE" envDefault:"cert.pem"`
	TLSKeyFile       string        `env:"TLS_KEY_FILE" envDefault:"key.pem"`
	RedisURL         string        `env:"REDIS_URL"`
	ProviderTimeout  time.Duration `env:"PROVIDER_HTTP_TIMEOUT" envDefault:"10s"`
	MetadataCacheTTL time.Duration `env:"METADATA_CACHE_TTL" envDefault:"0s"`
	SessionMaxAge    time.Duration `env:"SESSION_MAX_AGE" envDefault:"12h"`
	LoginRateLimit   int           `env:"LOGIN_RATE_LIMIT" envDefault:"30"`

	// TrustProxyHeaders lets X-Forwarded-For and X-Real-IP replace the peer
	// address. Enable only behind a proxy that overwrites them.
	TrustProxyHeaders bool `env:"TRUST_PROXY_HEADERS" envDefault:"false"`

	// Secrets are read by getEnvOrFile so they can come from mounted files.
	GoogleClientID     string
	GoogleClientSecret string
	DatabaseURL        string
	SessionSecret      string

	// SessionKeyGenerated reports that SECRET_KEY was absent and a random
	// development key was generated; sessions will not survive a restart.
	SessionKeyGenerated bool
}

// Load reads configuration from an optional .env file and environment variables
// with sensible defaults for local development.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}

	var err error
	if cfg.GoogleClientID, err = getEnvOrFile("GOOGLE_CLIENT_ID", ""); err != nil {
		return Config{}, err
	}
	if cfg.GoogleClientSecret, err = getEnvOrFile("GOOGLE_CLIENT_SECRET", "/run/secrets/google_client_secret"); err != nil {
		return Config{}, err
	}
	if cfg.SessionSecret, err = getEnvOrFile("SECRET_KEY", "/run/secrets/session_secret"); err != nil {
		return Config{}, err
	}
	if cfg.DatabaseURL, err = getEnvOrFile("DATABASE_URL", "/run/secrets/database_url"); err != nil {
		return Config{}, err
	}

	cfg.Environment = strings.ToLower(strings.TrimSpace(cfg.Environment))
	cfg.DataStore = strings.ToLower(strings.TrimSpace(cfg.DataStore))
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.BaseURL = strings.TrimSuffix(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.AllowedOrigins = trimAll(cfg.AllowedOrigins)
	if cfg.RedirectURL == "" {
		cfg.RedirectURL = cfg.BaseURL + "/callback"
	}

	switch cfg.DataStore {
	case "sqlite", "memory":
	case "postgres":
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATA_STORE is postgres but DATABASE_URL is not set")
		}
	default:
		return Config{}, fmt.Errorf("config: unsupported DATA_STORE %q", cfg.DataStore)
	}

	if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
		return Config{}, fmt.Errorf("invalid port %d", cfg.HTTPPort)
	}
	if cfg.ProviderTimeout <= 0 {
		return Config{}, fmt.Errorf("PROVIDER_HTTP_TIMEOUT must be positive")
	}
	if cfg.LoginRateLimit < 0 {
		return Config{}, fmt.Errorf("LOGIN_RATE_LIMIT must not be negative")
	}

	if !cfg.IsDevelopment() {
		if cfg.GoogleClientID == "" {
			return Config{}, fmt.Errorf("GOOGLE_CLIENT_ID is required outside development")
		}
		if cfg.GoogleClientSecret == "" {
			return Config{}, fmt.Errorf("GOOGLE_CLIENT_SECRET is required outside development")
		}
		if cfg.SessionSecret == "" {
			return Config{}, fmt.Errorf("SECRET_KEY is required outside development")
		}
	}

	if cfg.SessionSecret == "" {
		key, err := randomKey(32)
		if err != nil {
			return Config{}, fmt.Errorf("config: generate session key: %w", err)
		}
		cfg.SessionSecret = key
		cfg.SessionKeyGenerated = true
	}

	return cfg, nil
}

// HTTPAddress returns the address the HTTP server should bind to.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// IsDevelopment reports whether the service runs in the development environment.
func (c Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// UseInMemoryStore returns true if the in-memory repository should be used.
func (c Config) UseInMemoryStore() bool {
	return c.DataStore == "memory"
}

// OAuthEnabled reports whether Google client credentials are configured.
func (c Config) OAuthEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func randomKey(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func getEnvOrFile(key, defaultPath string) (string, error) {
	if value := os.Getenv(key); value != "" {
		return strings.TrimSpace(value), nil
	}

	fileKey := key + "_FILE"
	if path := os.Getenv(fileKey); path != "" {
		return readSecret(path, fileKey)
	}

	if defaultPath != "" {
		return readSecret(defaultPath, key)
	}

	return "", nil
}

func readSecret(path, name string) (string, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("config: reading %s (%s): %w", name, path, err)
	}

	value := strings.TrimSpace(string(contents))
	if value == "" {
		return "", fmt.Errorf("config: %s (%s) is empty", name, path)
	}
	return value, nil
}
