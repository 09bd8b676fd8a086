// Package metrics provides Prometheus instrumentation for agent turns and
// services for querying aggregated metrics back out of a Prometheus server.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Turn status labels.
const (
	StatusOK           = "ok"
	StatusResearchOnly = "research_only"
	StatusError        = "error"
)

// Auxiliary service labels for degraded-path counting.
const (
	ServiceHistory     = "history"
	ServiceResearch    = "research"
	ServiceSpeech      = "speech"
	ServicePersistence = "persistence"
)

//nolint:gochecknoglobals // Prometheus metrics are process-wide by design
var (
	agentTurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voxcrew_agent_turns_total",
			Help: "Total agent turns processed, by role and outcome status",
		},
		[]string{"role", "status"},
	)

	llmRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voxcrew_llm_requests_total",
			Help: "Total LLM completion requests, by model and outcome status",
		},
		[]string{"model", "status"},
	)

	llmTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voxcrew_llm_tokens_total",
			Help: "Estimated prompt tokens and allocated completion tokens, by role and type",
		},
		[]string{"role", "type"},
	)

	auxFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voxcrew_aux_failures_total",
			Help: "Auxiliary service failures absorbed as degraded responses, by service",
		},
		[]string{"service"},
	)

	turnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voxcrew_agent_turn_duration_seconds",
			Help:    "Wall-clock duration of agent turns, by role",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"role"},
	)

	truncationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voxcrew_truncated_responses_total",
			Help: "Responses cut off by the output-token ceiling, by role",
		},
		[]string{"role"},
	)
)

// Recorder is the instrumentation handle injected into the orchestrator.
// A nil *Recorder is valid and records nothing, so tests can skip wiring it.
type Recorder struct{}

// NewRecorder creates a Recorder. Metric registration happens at package
// init via promauto; the Recorder only provides the recording interface.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// RecordTurn records a completed (or failed) agent turn.
func (r *Recorder) RecordTurn(role, status string, duration time.Duration) {
	if r == nil {
		return
	}
	agentTurnsTotal.WithLabelValues(role, status).Inc()
	turnDuration.WithLabelValues(role).Observe(duration.Seconds())
}

// RecordLLMRequest records one completion request against a model.
func (r *Recorder) RecordLLMRequest(model, status string) {
	if r == nil {
		return
	}
	llmRequestsTotal.WithLabelValues(model, status).Inc()
}

// RecordTokens records estimated prompt tokens and the allocated output budget.
func (r *Recorder) RecordTokens(role string, promptTokens, allocatedTokens int) {
	if r == nil {
		return
	}
	llmTokensTotal.WithLabelValues(role, "prompt").Add(float64(promptTokens))
	llmTokensTotal.WithLabelValues(role, "allocated").Add(float64(allocatedTokens))
}

// RecordAuxFailure records an absorbed auxiliary-service failure.
func (r *Recorder) RecordAuxFailure(service string) {
	if r == nil {
		return
	}
	auxFailuresTotal.WithLabelValues(service).Inc()
}

// RecordTruncation records a response cut off at the output ceiling.
func (r *Recorder) RecordTruncation(role string) {
	if r == nil {
		return
	}
	truncationsTotal.WithLabelValues(role).Inc()
}
