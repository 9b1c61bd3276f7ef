// Package metrics instruments the curation pipeline for Prometheus.
// Collectors are package-level and registered on the default registry;
// the status server exposes them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/phenix995/ai-instagram-organizer/internal/governor"
)

var (
	// Rate governor metrics.
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "organizer_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"target"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "organizer_circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"target", "from", "to"},
	)

	ThrottleFactor = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "organizer_throttle_factor",
			Help: "Adaptive throttle factor applied to the nominal request quota",
		},
		[]string{"target"},
	)

	RequestsInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "organizer_requests_in_flight",
			Help: "Remote scoring calls currently holding a concurrency slot",
		},
		[]string{"target"},
	)

	// Scoring metrics.
	ScoringRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "organizer_scoring_requests_total",
			Help: "Total number of remote scoring calls by outcome",
		},
		[]string{"target", "outcome"}, // outcome: success, failure
	)

	PhotosDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "organizer_photos_dropped_total",
			Help: "Photos dropped from the pipeline by reason",
		},
		[]string{"reason"}, // duplicate, context_similar, read_failure, remote_failure, malformed_response
	)

	DecodeFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "organizer_fingerprint_decode_failures_total",
			Help: "Images that could not be decoded for fingerprinting and passed through as unique",
		},
	)

	// Pipeline stage counters.
	PhotosProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "organizer_photos_processed_total",
			Help: "Photos flowing through each pipeline stage",
		},
		[]string{"stage"}, // scanned, deduplicated, scored, curated
	)
)

// ObserveGovernor refreshes the point-in-time governor gauges. Callers
// invoke it after each released call and on status scrapes.
func ObserveGovernor(snap governor.Snapshot) {
	CircuitBreakerState.WithLabelValues(snap.Target).Set(stateToFloat(snap.CircuitState))
	ThrottleFactor.WithLabelValues(snap.Target).Set(snap.ThrottleFactor)
	RequestsInFlight.WithLabelValues(snap.Target).Set(float64(snap.InFlight))
}

// RecordTransition feeds the governor's OnStateChange hook.
func RecordTransition(target string, from, to governor.State) {
	CircuitBreakerState.WithLabelValues(target).Set(stateToFloat(to.String()))
	CircuitBreakerTransitions.WithLabelValues(target, from.String(), to.String()).Inc()
}

func stateToFloat(state string) float64 {
	switch state {
	case governor.StateClosed.String():
		return 0
	case governor.StateHalfOpen.String():
		return 1
	case governor.StateOpen.String():
		return 2
	default:
		return -1
	}
}
