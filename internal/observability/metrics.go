package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	stepTotal    *prometheus.CounterVec
	nodeDuration *prometheus.HistogramVec
	nodeErrors   *prometheus.CounterVec

	graphRunTotal    *prometheus.CounterVec
	graphRunDuration *prometheus.HistogramVec

	checkpointWriteTotal    *prometheus.CounterVec
	checkpointWriteDuration prometheus.Histogram
	checkpointErrorsTotal   prometheus.Counter

	toolExecutionTotal    *prometheus.CounterVec
	toolExecutionDuration *prometheus.HistogramVec
	toolErrorsTotal       *prometheus.CounterVec

	activeSessions       prometheus.Gauge
	sessionExecTotal     *prometheus.CounterVec
	sessionExecDuration  *prometheus.HistogramVec
	generateTotal        *prometheus.CounterVec
	generateDuration     *prometheus.HistogramVec
	summarizationTotal   *prometheus.CounterVec
	memorySearchDuration prometheus.Histogram
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			stepTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "graph_steps_total",
					Help: "Total executed graph steps by graph and node.",
				},
				[]string{"graph", "node"},
			),
			nodeDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "graph_node_duration_seconds",
					Help:    "Duration of node executions in seconds.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"graph", "node"},
			),
			nodeErrors: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "graph_node_errors_total",
					Help: "Total node execution errors by graph and node.",
				},
				[]string{"graph", "node"},
			),
			graphRunTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "graph_runs_total",
					Help: "Total graph runs by graph and terminal status.",
				},
				[]string{"graph", "status"},
			),
			graphRunDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "graph_run_duration_seconds",
					Help:    "Duration of complete graph runs in seconds.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"graph"},
			),
			checkpointWriteTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "checkpoint_writes_total",
					Help: "Total checkpoint writes by status.",
				},
				[]string{"status"},
			),
			checkpointWriteDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "checkpoint_write_duration_seconds",
					Help:    "Duration of checkpoint writes in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			checkpointErrorsTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "checkpoint_write_errors_total",
					Help: "Total failed checkpoint writes.",
				},
			),
			toolExecutionTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tool_executions_total",
					Help: "Total tool executions by tool and status.",
				},
				[]string{"tool", "status"},
			),
			toolExecutionDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "tool_execution_duration_seconds",
					Help:    "Duration of tool executions in seconds.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"tool"},
			),
			toolErrorsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tool_errors_total",
					Help: "Total tool errors by tool.",
				},
				[]string{"tool"},
			),
			activeSessions: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "sessions_active",
					Help: "Current number of active sessions.",
				},
			),
			sessionExecTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "session_executions_total",
					Help: "Total session executions by graph and status.",
				},
				[]string{"graph", "status"},
			),
			sessionExecDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "session_execution_duration_seconds",
					Help:    "Duration of session executions in seconds.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"graph"},
			),
			generateTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "llm_generations_total",
					Help: "Total LLM generations by provider and status.",
				},
				[]string{"provider", "status"},
			),
			generateDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "llm_generation_duration_seconds",
					Help:    "Duration of LLM generations in seconds.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"provider"},
			),
			summarizationTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "memory_summarizations_total",
					Help: "Total memory summarizations by outcome.",
				},
				[]string{"outcome"},
			),
			memorySearchDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "memory_search_duration_seconds",
					Help:    "Duration of memory retrieval in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
		}

		prometheus.MustRegister(
			m.stepTotal,
			m.nodeDuration,
			m.nodeErrors,
			m.graphRunTotal,
			m.graphRunDuration,
			m.checkpointWriteTotal,
			m.checkpointWriteDuration,
			m.checkpointErrorsTotal,
			m.toolExecutionTotal,
			m.toolExecutionDuration,
			m.toolErrorsTotal,
			m.activeSessions,
			m.sessionExecTotal,
			m.sessionExecDuration,
			m.generateTotal,
			m.generateDuration,
			m.summarizationTotal,
			m.memorySearchDuration,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

// MetricsHandler returns the /metrics HTTP handler.
func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordStep counts one executed node step.
func RecordStep(graph, node string, duration time.Duration, success bool) {
	m := getMetrics()
	m.stepTotal.WithLabelValues(graph, node).Inc()
	m.nodeDuration.WithLabelValues(graph, node).Observe(duration.Seconds())
	if !success {
		m.nodeErrors.WithLabelValues(graph, node).Inc()
	}
}

// RecordGraphRun counts one terminal graph run outcome.
func RecordGraphRun(graph, status string, duration time.Duration) {
	m := getMetrics()
	m.graphRunTotal.WithLabelValues(graph, status).Inc()
	m.graphRunDuration.WithLabelValues(graph).Observe(duration.Seconds())
}

// RecordCheckpointWrite records one checkpoint store write.
func RecordCheckpointWrite(duration time.Duration, success bool) {
	m := getMetrics()
	m.checkpointWriteTotal.WithLabelValues(statusLabel(success)).Inc()
	m.checkpointWriteDuration.Observe(duration.Seconds())
	if !success {
		m.checkpointErrorsTotal.Inc()
	}
}

// RecordToolExecution records one tool invocation.
func RecordToolExecution(tool string, duration time.Duration, success bool) {
	m := getMetrics()
	m.toolExecutionTotal.WithLabelValues(tool, statusLabel(success)).Inc()
	m.toolExecutionDuration.WithLabelValues(tool).Observe(duration.Seconds())
	if !success {
		m.toolErrorsTotal.WithLabelValues(tool).Inc()
	}
}

// SetActiveSessions updates the active session gauge.
func SetActiveSessions(count int) {
	m := getMetrics()
	m.activeSessions.Set(float64(count))
}

// RecordSessionExecution records one session execution outcome.
func RecordSessionExecution(graph string, duration time.Duration, success bool) {
	m := getMetrics()
	m.sessionExecTotal.WithLabelValues(graph, statusLabel(success)).Inc()
	m.sessionExecDuration.WithLabelValues(graph).Observe(duration.Seconds())
}

// RecordGeneration records one LLM generate call.
func RecordGeneration(provider string, duration time.Duration, success bool) {
	m := getMetrics()
	m.generateTotal.WithLabelValues(provider, statusLabel(success)).Inc()
	m.generateDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordSummarization records one summarization outcome
// ("summarized", "truncated" or "skipped").
func RecordSummarization(outcome string) {
	m := getMetrics()
	m.summarizationTotal.WithLabelValues(outcome).Inc()
}

// RecordMemorySearch records one memory retrieval.
func RecordMemorySearch(duration time.Duration) {
	m := getMetrics()
	m.memorySearchDuration.Observe(duration.Seconds())
}
