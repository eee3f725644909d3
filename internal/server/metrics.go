// Prometheus metrics for the HTTP server and the helpers handlers use to
// record them.
package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/evidentia/policyrag/internal/rag"
)

// serverMetrics holds all Prometheus metrics owned by the HTTP server.
// A single instance is created in New and stored on Server so that tests can
// inject a fresh prometheus.Registry without polluting the default one.
type serverMetrics struct {
	// askRequestsTotal counts completed /api/ask requests, partitioned by
	// outcome: "ok" or "error".
	askRequestsTotal *prometheus.CounterVec

	// askDurationSeconds records the wall-clock duration of each /api/ask
	// request from first byte received to response completion.
	askDurationSeconds *prometheus.HistogramVec

	// askActiveStreams is the number of /api/ask SSE streams currently open.
	askActiveStreams prometheus.Gauge

	// stageDurationSeconds records the per-stage pipeline latency,
	// partitioned by stage: "retrieval", "rerank", "generation".
	stageDurationSeconds *prometheus.HistogramVec

	// faithfulnessScore records the distribution of faithfulness scores.
	faithfulnessScore prometheus.Histogram

	// unanswerableTotal counts responses whose faithfulness fell below the
	// answerable threshold.
	unanswerableTotal prometheus.Counter
}

// newServerMetrics registers all server metrics against reg and returns the
// populated serverMetrics. promauto.With(reg) is used so that each call
// registers into the provided registry rather than the global default,
// which keeps unit tests hermetic.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		askRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "policyrag",
			Subsystem: "ask",
			Name:      "requests_total",
			Help:      "Total number of /api/ask requests completed, partitioned by outcome.",
		}, []string{"outcome"}),

		askDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "policyrag",
			Subsystem: "ask",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of /api/ask requests from receipt to completion.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"outcome"}),

		askActiveStreams: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "policyrag",
			Subsystem: "ask",
			Name:      "active_streams",
			Help:      "Number of /api/ask SSE streams currently open.",
		}),

		stageDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "policyrag",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Latency of individual pipeline stages, partitioned by stage.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"stage"}),

		faithfulnessScore: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "policyrag",
			Subsystem: "pipeline",
			Name:      "faithfulness_score",
			Help:      "Distribution of answer faithfulness scores.",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}),

		unanswerableTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "policyrag",
			Subsystem: "pipeline",
			Name:      "unanswerable_total",
			Help:      "Total responses whose faithfulness fell below the answerable threshold.",
		}),
	}
}

// observeAsk records one completed /api/ask request.
func (m *serverMetrics) observeAsk(outcome string, elapsed time.Duration) {
	m.askRequestsTotal.WithLabelValues(outcome).Inc()
	m.askDurationSeconds.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// observeResponse records the pipeline stage timings and evaluation
// outcome carried by a successful response.
func (m *serverMetrics) observeResponse(resp *rag.Response) {
	m.stageDurationSeconds.WithLabelValues("retrieval").Observe(resp.Metrics.RetrievalTimeMs / 1000)
	m.stageDurationSeconds.WithLabelValues("rerank").Observe(resp.Metrics.RerankTimeMs / 1000)
	m.stageDurationSeconds.WithLabelValues("generation").Observe(resp.Metrics.GenerationTimeMs / 1000)
	m.faithfulnessScore.Observe(resp.Metrics.FaithfulnessScore)
	if !resp.Metrics.Answerable {
		m.unanswerableTotal.Inc()
	}
}
