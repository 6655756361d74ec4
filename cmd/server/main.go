package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"signin/internal/auth"
	"signin/internal/config"
	transporthttp "signin/internal/http"
	"signin/internal/platform/logging"
	"signin/internal/platform/metrics"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	if cfg.SessionKeyGenerated {
		logger.Warn("SECRET_KEY not set; using a random session key, sessions will not survive a restart")
	}
	if !cfg.OAuthEnabled() {
		logger.Warn("GOOGLE_CLIENT_ID or GOOGLE_CLIENT_SECRET not set; Google sign-in will fail")
	}

	repo, cleanup, err := buildRepository(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize user store", "error", err)
		os.Exit(1)
	}
	if cleanup != nil {
		defer cleanup()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	providerClient := &http.Client{Timeout: cfg.ProviderTimeout}

	resolverOpts := []auth.ResolverOption{auth.WithResolverMetrics(collector)}
	metadataCache, closeCache, err := buildMetadataCache(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize metadata cache", "error", err)
		os.Exit(1)
	}
	if closeCache != nil {
		defer closeCache()
	}
	if metadataCache != nil {
		resolverOpts = append(resolverOpts, auth.WithMetadataCache(metadataCache, cfg.MetadataCacheTTL))
	}

	resolver := auth.NewMetadataResolver(providerClient, logger, resolverOpts...)
	google := auth.NewGoogleAuthenticator(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.RedirectURL, resolver, providerClient)
	authService := auth.NewService(repo, collector)

	renderer, err := transporthttp.NewRenderer(logger)
	if err != nil {
		logger.Error("failed to load templates", "error", err)
		os.Exit(1)
	}

	sessionStore := transporthttp.NewSessionStore(cfg.SessionSecret, cfg.SessionMaxAge, !cfg.IsDevelopment())
	flowStore := transporthttp.NewFlowStore(cfg.SessionSecret, !cfg.IsDevelopment())
	sessions := transporthttp.NewSessionManager(sessionStore, flowStore, authService, logger)

	var limiter *transporthttp.RateLimiter
	if cfg.LoginRateLimit > 0 {
		limiter = transporthttp.NewRateLimiter(cfg.LoginRateLimit, logger)
		defer limiter.Stop()
	}

	router := transporthttp.NewRouter(cfg, transporthttp.RouterDeps{
		Google:         google,
		Users:          authService,
		Sessions:       sessions,
		Renderer:       renderer,
		Metrics:        collector,
		MetricsHandler: metrics.Handler(registry),
		LoginLimiter:   limiter,
		Logger:         logger,
	})

	go probeProvider(ctx, providerClient, googleProbeURL, logger)

	srv := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    http.DefaultMaxHeaderBytes,
	}

	useTLS := tlsFilesPresent(cfg.TLSCertFile, cfg.TLSKeyFile)
	if !useTLS {
		logger.Warn("TLS certificate or key not found; serving plain HTTP",
			"cert", cfg.TLSCertFile,
			"key", cfg.TLSKeyFile,
		)
	}

	go func() {
		logger.Info("sign-in server listening",
			"addr", srv.Addr,
			"tls", useTLS,
			"store", cfg.DataStore,
			"redirect_url", cfg.RedirectURL,
		)
		var err error
		if useTLS {
			err = srv.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

func tlsFilesPresent(certFile, keyFile string) bool {
	for _, path := range []string{certFile, keyFile} {
		if path == "" {
			return false
		}
		if _, err := os.Stat(path); err != nil {
			return false
		}
	}
	return true
}
