// Package metrics provides the Prometheus collectors for the tutor backend.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DurationBuckets covers fast dispatches up to slow judge round-trips.
var DurationBuckets = []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60}

var (
	// CommandsTotal counts dispatched commands by name and terminal status.
	CommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codetutor_commands_total",
			Help: "Dispatched commands",
		},
		[]string{"command", "status"},
	)

	// CommandDuration records handler latency in seconds.
	CommandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "codetutor_command_duration_seconds",
			Help:    "Command handling duration",
			Buckets: DurationBuckets,
		},
		[]string{"command"},
	)

	// ExecutionsTotal counts snippet executions by outcome
	// (success, error, timeout, infra).
	ExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codetutor_executions_total",
			Help: "Snippet executions",
		},
		[]string{"outcome"},
	)

	// JudgeRequestsTotal counts calls to the equivalence judge.
	JudgeRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codetutor_judge_requests_total",
			Help: "Judge requests",
		},
		[]string{"outcome"},
	)

	// EvaluationsTotal counts verdicts by source (judge, fallback) and result.
	EvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codetutor_evaluations_total",
			Help: "Evaluation verdicts",
		},
		[]string{"source", "verdict"},
	)

	// StreamChunksTotal counts stream_chunk envelopes written.
	StreamChunksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "codetutor_stream_chunks_total",
			Help: "Stream chunks written",
		},
	)
)

// Registry holds all collectors. It is separate from the global default
// registry so tests and embedders get a clean set.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		CommandsTotal,
		CommandDuration,
		ExecutionsTotal,
		JudgeRequestsTotal,
		EvaluationsTotal,
		StreamChunksTotal,
	)
}

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
