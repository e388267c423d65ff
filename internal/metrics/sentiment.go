package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Run statuses.
const (
	RunSuccess = "success"
	RunError   = "error"
)

// SentimentMetrics covers provider calls, batch and retry outcomes, and
// whole runs.
type SentimentMetrics struct {
	llmRequestsTotal   *prometheus.CounterVec
	llmRequestDuration *prometheus.HistogramVec

	batchesTotal      *prometheus.CounterVec
	batchReviewsTotal *prometheus.CounterVec
	retriesTotal      *prometheus.CounterVec
	runsTotal         *prometheus.CounterVec
	reviewsTotal      *prometheus.CounterVec
}

func NewSentimentMetrics(registry *prometheus.Registry) (*SentimentMetrics, error) {
	m := &SentimentMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *SentimentMetrics) initMetrics() {
	m.llmRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of classify calls to the LLM provider",
		},
		[]string{"provider", "status"}, // status: success, error, timeout
	)

	m.llmRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Time taken by classify calls",
			// 100ms to ~51s
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
		[]string{"provider"},
	)

	m.batchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Total number of classified batches by outcome",
		},
		[]string{"outcome"},
	)

	m.batchReviewsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_reviews_total",
			Help:      "Total number of reviews sent in batches by batch outcome",
		},
		[]string{"outcome"},
	)

	m.retriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Total number of individual retries by outcome",
		},
		[]string{"outcome"},
	)

	m.runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total number of analysis runs",
		},
		[]string{"origin", "status"},
	)

	m.reviewsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reviews_total",
			Help:      "Total number of reviews by final outcome",
		},
		[]string{"outcome"}, // outcome: classified, unclassified
	)
}

func (m *SentimentMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.llmRequestsTotal.Describe(ch)
	m.llmRequestDuration.Describe(ch)
	m.batchesTotal.Describe(ch)
	m.batchReviewsTotal.Describe(ch)
	m.retriesTotal.Describe(ch)
	m.runsTotal.Describe(ch)
	m.reviewsTotal.Describe(ch)
}

func (m *SentimentMetrics) Collect(ch chan<- prometheus.Metric) {
	m.llmRequestsTotal.Collect(ch)
	m.llmRequestDuration.Collect(ch)
	m.batchesTotal.Collect(ch)
	m.batchReviewsTotal.Collect(ch)
	m.retriesTotal.Collect(ch)
	m.runsTotal.Collect(ch)
	m.reviewsTotal.Collect(ch)
}

// ObserveLLMCall implements llm.CallObserver.
func (m *SentimentMetrics) ObserveLLMCall(provider, status string, duration time.Duration) {
	m.llmRequestsTotal.WithLabelValues(provider, status).Inc()
	m.llmRequestDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

func (m *SentimentMetrics) ObserveBatch(outcome string, size int) {
	m.batchesTotal.WithLabelValues(outcome).Inc()
	m.batchReviewsTotal.WithLabelValues(outcome).Add(float64(size))
}

func (m *SentimentMetrics) ObserveRetry(outcome string) {
	m.retriesTotal.WithLabelValues(outcome).Inc()
}

func (m *SentimentMetrics) ObserveRun(origin, status string) {
	m.runsTotal.WithLabelValues(origin, status).Inc()
}

func (m *SentimentMetrics) ObserveReviews(classified, unclassified int) {
	m.reviewsTotal.WithLabelValues("classified").Add(float64(classified))
	m.reviewsTotal.WithLabelValues("unclassified").Add(float64(unclassified))
}
