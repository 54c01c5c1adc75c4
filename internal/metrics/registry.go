package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry wraps a dedicated Prometheus registry for the scanner's
// /metrics endpoint. The package-level collectors are registered with it
// as well as with the default global registry (through promauto).
type Registry struct {
	registry *prometheus.Registry
}

// NewRegistry creates a registry with the standard Go runtime and
// process collectors and this package's scanner collectors attached.
func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	r.MustRegister(prometheus.NewGoCollector())
	r.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	r.MustRegister(
		TargetsGenerated, ProbesAttempted, ProbesSucceeded, ProbeErrors, ProbeLatency,
		TargetsBlacklisted, ConcurrencyInFlight, MemoryPressureLevel, StoreWrites,
	)
	return &Registry{registry: r}
}

// Register registers a collector, returning an error if it's already
// registered under a colliding name.
func (r *Registry) Register(collector prometheus.Collector) error {
	return r.registry.Register(collector)
}

// MustRegister registers collectors and panics on error.
func (r *Registry) MustRegister(collectors ...prometheus.Collector) {
	r.registry.MustRegister(collectors...)
}

// Handler returns an http.Handler serving this registry's metrics in
// the Prometheus text exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
