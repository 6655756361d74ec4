package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// googleProbeURL is fetched once at startup to report provider reachability.
const googleProbeURL = "https://accounts.google.com"

// probeProvider logs whether the provider is reachable. It never fails startup.
func probeProvider(ctx context.Context, client *http.Client, url string, logger *slog.Logger) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		logger.Warn("provider connectivity check failed", "url", url, "error", err)
		return false
	}

	resp, err := client.Do(req)
	if err != nil {
		logger.Warn("provider connectivity check failed", "url", url, "error", err)
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	logger.Info("provider reachable", "url", url, "status", resp.StatusCode)
	return true
}
