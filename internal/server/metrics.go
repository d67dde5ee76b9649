package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/54b3r/caselaw-rag/internal/rag"
)

// labelHandler partitions HTTP metrics by route pattern rather than raw path.
const labelHandler = "handler"

// serverMetrics holds all Prometheus metrics owned by the HTTP server.
// A single instance is created in New so that tests can inject a fresh
// prometheus.Registry without polluting the default one.
type serverMetrics struct {
	// chatRequestsTotal counts POST /rag-chat turns by outcome: responded,
	// degraded, rejected or failed.
	chatRequestsTotal *prometheus.CounterVec

	// chatDurationSeconds records the wall-clock duration of each turn.
	chatDurationSeconds *prometheus.HistogramVec

	// chatSources records how many sources a responded turn returned.
	chatSources prometheus.Histogram

	// httpRequestsTotal counts all HTTP requests by method, route and status.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of all HTTP requests.
	httpDurationSeconds *prometheus.HistogramVec

	// rateLimitedTotal counts requests rejected with 429.
	rateLimitedTotal prometheus.Counter
}

// newServerMetrics registers all server metrics against reg.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		chatRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "caselaw",
			Subsystem: "chat",
			Name:      "requests_total",
			Help:      "Total number of /rag-chat turns, partitioned by outcome.",
		}, []string{"outcome"}),

		chatDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "caselaw",
			Subsystem: "chat",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of /rag-chat turns.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"outcome"}),

		chatSources: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "caselaw",
			Subsystem: "chat",
			Name:      "sources",
			Help:      "Number of sources returned by responded /rag-chat turns.",
			Buckets:   []float64{0, 1, 2, 3, 4, 5, 6},
		}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "caselaw",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", labelHandler, "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "caselaw",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", labelHandler}),

		rateLimitedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "caselaw",
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Total number of requests rejected by the per-client rate limit.",
		}),
	}
}

// observeChat records one finished turn.
func (m *serverMetrics) observeChat(outcome rag.Outcome, d time.Duration, sources int) {
	m.chatRequestsTotal.WithLabelValues(string(outcome)).Inc()
	m.chatDurationSeconds.WithLabelValues(string(outcome)).Observe(d.Seconds())
	if outcome == rag.OutcomeResponded {
		m.chatSources.Observe(float64(sources))
	}
}
