// Package metrics holds the proxy's Prometheus counters and the admin
// endpoints that expose them.
package metrics

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const ServiceName = "seo-edge-proxy"

type Metrics struct {
	registry         *prometheus.Registry
	Requests         *prometheus.CounterVec
	MetadataFailures prometheus.Counter
	TransformErrors  prometheus.Counter
	OriginFailures   prometheus.Counter
}

// New registers the proxy counters on a fresh registry, so tests and
// multiple handlers in one process do not collide on the global one.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "requests_total",
			Help: "Requests handled, by route.",
		}, []string{"route"}),
		MetadataFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "metadata_failures_total",
			Help: "Metadata fetches that failed and were served without metadata.",
		}),
		TransformErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "transform_errors_total",
			Help: "HTML elements whose mutation was skipped after an error.",
		}),
		OriginFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "origin_failures_total",
			Help: "Origin fetches that failed at the transport level.",
		}),
	}
	m.registry.MustRegister(
		m.Requests,
		m.MetadataFailures,
		m.TransformErrors,
		m.OriginFailures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// HealthHandler answers liveness probes.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": ServiceName,
	})
}

// AdminMux routes /healthz and /metrics.
func (m *Metrics) AdminMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", HealthHandler)
	mux.Handle("/metrics", m.Handler())
	return mux
}
