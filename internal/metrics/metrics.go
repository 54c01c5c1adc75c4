// Package metrics exposes the scanner's Prometheus instrumentation,
// grounded on the teacher's internal/metrics: package-level
// promauto-registered collectors, counter/gauge/histogram per concern.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TargetsGenerated tracks how many targets the discovery layer has
	// produced, labeled by strategy (range/file/external).
	TargetsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voxelwatch_targets_generated_total",
			Help: "Targets produced by the discovery layer",
		},
		[]string{"strategy"},
	)

	// ProbesAttempted tracks every dial attempt, labeled by protocol
	// path (modern/legacy) regardless of outcome.
	ProbesAttempted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voxelwatch_probes_attempted_total",
			Help: "Probe attempts issued",
		},
		[]string{"protocol"},
	)

	// ProbesSucceeded tracks probes that produced a parsed status reply.
	ProbesSucceeded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voxelwatch_probes_succeeded_total",
			Help: "Probes that produced a parsed status reply",
		},
		[]string{"protocol"},
	)

	// ProbeErrors tracks failures by apperr.Kind, excluding NoResponse
	// timeouts, which the coordinator tracks separately.
	ProbeErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voxelwatch_probe_errors_total",
			Help: "Probe failures by error kind",
		},
		[]string{"kind"},
	)

	// ProbeLatency tracks round-trip latency for successful probes.
	ProbeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voxelwatch_probe_latency_seconds",
			Help:    "Probe round-trip latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"protocol"},
	)

	// TargetsBlacklisted tracks targets skipped by the blacklist filter.
	TargetsBlacklisted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "voxelwatch_targets_blacklisted_total",
			Help: "Targets skipped because they matched the blacklist",
		},
	)

	// ConcurrencyInFlight tracks the current number of active probes.
	ConcurrencyInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "voxelwatch_concurrency_in_flight",
			Help: "Currently active probe goroutines",
		},
	)

	// MemoryPressureLevel tracks the memguard's last sampled level as a
	// 0/1/2 gauge (normal/gentle/critical) for dashboards that can't
	// easily chart an enum.
	MemoryPressureLevel = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "voxelwatch_memory_pressure_level",
			Help: "Current memory pressure level: 0=normal, 1=gentle, 2=critical",
		},
	)

	// StoreWrites tracks persisted scan results by outcome.
	StoreWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voxelwatch_store_writes_total",
			Help: "Endpoint scans written to the store",
		},
		[]string{"outcome"},
	)
)
