package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// AnalysisMetrics records duplicate-detection executions. It satisfies
// ports.AnalysisObserver.
type AnalysisMetrics struct {
	registry *prometheus.Registry
	service  string

	executionTotal    *prometheus.CounterVec
	executionDuration *prometheus.HistogramVec
	strategyFindings  *prometheus.CounterVec
	strategyFailures  *prometheus.CounterVec
	degradedBatches   prometheus.Counter
	eligibleClusters  prometheus.Histogram
}

func NewAnalysisMetrics(service string, registry *prometheus.Registry) *AnalysisMetrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	executionTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dupdetect",
			Subsystem: "analysis",
			Name:      "executions_total",
			Help:      "Total analysis executions by status.",
		},
		[]string{"service", "status"},
	)
	executionDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dupdetect",
			Subsystem: "analysis",
			Name:      "execution_duration_seconds",
			Help:      "Analysis execution duration in seconds by status.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service", "status"},
	)
	strategyFindings := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dupdetect",
			Subsystem: "strategy",
			Name:      "findings_total",
			Help:      "Findings produced by each detection strategy before merge.",
		},
		[]string{"service", "strategy"},
	)
	strategyFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dupdetect",
			Subsystem: "strategy",
			Name:      "failures_total",
			Help:      "Detection strategy runs that failed or timed out.",
		},
		[]string{"service", "strategy"},
	)
	degradedBatches := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "dupdetect",
			Subsystem: "embedding",
			Name:      "degraded_batches_total",
			Help:      "Embedding batches replaced by sentinel vectors.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	eligibleClusters := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "dupdetect",
			Subsystem: "clustering",
			Name:      "eligible_clusters",
			Help:      "Multi-document clusters sent to verification per execution.",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100},
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(
		executionTotal,
		executionDuration,
		strategyFindings,
		strategyFailures,
		degradedBatches,
		eligibleClusters,
	)

	return &AnalysisMetrics{
		registry:          registry,
		service:           service,
		executionTotal:    executionTotal,
		executionDuration: executionDuration,
		strategyFindings:  strategyFindings,
		strategyFailures:  strategyFailures,
		degradedBatches:   degradedBatches,
		eligibleClusters:  eligibleClusters,
	}
}

func (m *AnalysisMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *AnalysisMetrics) ObserveExecution(status string, duration time.Duration) {
	if status == "" {
		status = "unknown"
	}
	m.executionTotal.WithLabelValues(m.service, status).Inc()
	m.executionDuration.WithLabelValues(m.service, status).Observe(duration.Seconds())
}

func (m *AnalysisMetrics) ObserveStrategy(strategy string, findings int, err error) {
	if err != nil {
		m.strategyFailures.WithLabelValues(m.service, strategy).Inc()
		return
	}
	m.strategyFindings.WithLabelValues(m.service, strategy).Add(float64(findings))
}

func (m *AnalysisMetrics) ObserveDegradedEmbeddingBatch() {
	m.degradedBatches.Inc()
}

func (m *AnalysisMetrics) ObserveEligibleClusters(count int) {
	m.eligibleClusters.Observe(float64(count))
}
