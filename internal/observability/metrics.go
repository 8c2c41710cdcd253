package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides a centralized interface for collecting engine metrics:
// turn throughput, tool latency, delegation depth, and event-bus health.
//
// Usage:
//
//	metrics := observability.NewMetrics()
//	defer metrics.ToolExecutionDuration.WithLabelValues("Bash").Observe(time.Since(start).Seconds())
type Metrics struct {
	// TurnCounter counts finished runs by terminal outcome
	// (completed|plan_proposed|failed|cancelled|iteration_cap_exceeded).
	TurnCounter *prometheus.CounterVec

	// TurnDuration measures one model→parse→tool→observation cycle in seconds.
	TurnDuration prometheus.Histogram

	// LLMRequestDuration measures LLM API call latency in seconds.
	// Labels: provider, model.
	LLMRequestDuration *prometheus.HistogramVec

	// LLMRequestCounter counts LLM requests by provider/model/status.
	LLMRequestCounter *prometheus.CounterVec

	// ToolExecutionCounter counts tool invocations by tool_name and status
	// (ok|error).
	ToolExecutionCounter *prometheus.CounterVec

	// ToolExecutionDuration measures tool execution time in seconds.
	// Labels: tool_name.
	ToolExecutionDuration *prometheus.HistogramVec

	// DelegationDepth is a gauge of the deepest currently active run in the
	// run tree.
	DelegationDepth prometheus.Gauge

	// ActiveRuns is a gauge of runs currently in the Running state.
	ActiveRuns prometheus.Gauge

	// EventBusDropped counts events of either priority dropped by the
	// broadcast sink under backpressure.
	EventBusDropped prometheus.Counter

	// NudgesInjected counts synthetic nudge messages injected between turns,
	// labeled by nudge kind (invalid_json|redundant_tool|plan_only|repetition).
	NudgesInjected *prometheus.CounterVec
}

// NewMetrics registers and returns the engine's Prometheus collectors
// against the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		TurnCounter: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "linggen_turns_total",
			Help: "Finished runs by terminal outcome.",
		}, []string{"outcome"}),

		TurnDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "linggen_turn_duration_seconds",
			Help:    "Duration of one turn loop iteration.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),

		LLMRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "linggen_llm_request_duration_seconds",
			Help:    "LLM completion request latency.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"provider", "model"}),

		LLMRequestCounter: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "linggen_llm_requests_total",
			Help: "LLM completion requests by provider/model/status.",
		}, []string{"provider", "model", "status"}),

		ToolExecutionCounter: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "linggen_tool_executions_total",
			Help: "Tool invocations by tool name and status.",
		}, []string{"tool_name", "status"}),

		ToolExecutionDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "linggen_tool_execution_duration_seconds",
			Help:    "Tool execution latency.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}, []string{"tool_name"}),

		DelegationDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "linggen_delegation_depth",
			Help: "Deepest currently active run in the delegation tree.",
		}),

		ActiveRuns: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "linggen_active_runs",
			Help: "Runs currently in the Running state.",
		}),

		EventBusDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "linggen_event_bus_dropped_total",
			Help: "Events dropped under backpressure.",
		}),

		NudgesInjected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "linggen_nudges_injected_total",
			Help: "Synthetic nudge messages injected between turns, by kind.",
		}, []string{"kind"}),
	}
}
