// Package metrics exposes Prometheus counters for the sign-in flow.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the metrics surface used by the auth and transport layers.
type Recorder interface {
	RecordDiscovery(outcome string)
	RecordCallback(result string)
	RecordUpsert(success bool)
}

// Collector records sign-in metrics into a Prometheus registry.
type Collector struct {
	discovery *prometheus.CounterVec
	callbacks *prometheus.CounterVec
	upserts   *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		discovery: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signin_discovery_total",
			Help: "Provider metadata resolutions by outcome.",
		}, []string{"outcome"}),
		callbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signin_callback_total",
			Help: "OAuth callback requests by result.",
		}, []string{"result"}),
		upserts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signin_user_upserts_total",
			Help: "User store upserts by status.",
		}, []string{"status"}),
	}

	reg.MustRegister(c.discovery, c.callbacks, c.upserts)
	return c
}

// RecordDiscovery counts a metadata resolution outcome.
func (c *Collector) RecordDiscovery(outcome string) {
	c.discovery.WithLabelValues(outcome).Inc()
}

// RecordCallback counts a callback result.
func (c *Collector) RecordCallback(result string) {
	c.callbacks.WithLabelValues(result).Inc()
}

// RecordUpsert counts a user store upsert.
func (c *Collector) RecordUpsert(success bool) {
	status := "ok"
	if !success {
		status = "error"
	}
	c.upserts.WithLabelValues(status).Inc()
}

// Handler returns the Prometheus scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Noop discards all measurements.
type Noop struct{}

func (Noop) RecordDiscovery(string) {}
func (Noop) RecordCallback(string)  {}
func (Noop) RecordUpsert(bool)      {}
