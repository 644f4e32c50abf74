package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics records the verified query pipeline.
type PipelineMetrics struct {
	service string

	queriesTotal         *prometheus.CounterVec
	confidence           *prometheus.HistogramVec
	gateTripped          *prometheus.CounterVec
	verificationFallback *prometheus.CounterVec
	retrievalDegraded    *prometheus.CounterVec
	rerankFallback       *prometheus.CounterVec
	retrievedChunks      *prometheus.HistogramVec
	duration             *prometheus.HistogramVec
}

func NewPipelineMetrics(service string, registry prometheus.Registerer) *PipelineMetrics {
	m := &PipelineMetrics{
		service: service,
		queriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rag",
			Name:      "queries_total",
			Help:      "Total queries by outcome.",
		}, []string{"service", "outcome"}),
		confidence: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rag",
			Name:      "confidence",
			Help:      "Distribution of verified answer confidence.",
			Buckets:   []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
		}, []string{"service"}),
		gateTripped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rag",
			Name:      "gate_tripped_total",
			Help:      "Answers returned with the low confidence notice.",
		}, []string{"service"}),
		verificationFallback: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rag",
			Name:      "verification_fallback_total",
			Help:      "Judge responses that could not be parsed.",
		}, []string{"service"}),
		retrievalDegraded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rag",
			Name:      "retrieval_degraded_total",
			Help:      "Retrievals that ran without one of the backends.",
		}, []string{"service", "backend"}),
		rerankFallback: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rag",
			Name:      "rerank_fallback_total",
			Help:      "Reranks that fell back to lexical overlap.",
		}, []string{"service", "scorer"}),
		retrievedChunks: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rag",
			Name:      "retrieved_chunks",
			Help:      "Distribution of retrieved chunks per query.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21, 34},
		}, []string{"service"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rag",
			Name:      "duration_seconds",
			Help:      "Query pipeline duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service", "outcome"}),
	}

	registry.MustRegister(
		m.queriesTotal,
		m.confidence,
		m.gateTripped,
		m.verificationFallback,
		m.retrievalDegraded,
		m.rerankFallback,
		m.retrievedChunks,
		m.duration,
	)
	return m
}

func (m *PipelineMetrics) RetrievalDegraded(backend string) {
	m.retrievalDegraded.WithLabelValues(m.service, backend).Inc()
}

func (m *PipelineMetrics) RerankFallback(scorer string) {
	m.rerankFallback.WithLabelValues(m.service, scorer).Inc()
}

func (m *PipelineMetrics) VerificationFallback() {
	m.verificationFallback.WithLabelValues(m.service).Inc()
}

func (m *PipelineMetrics) GateTripped() {
	m.gateTripped.WithLabelValues(m.service).Inc()
}

func (m *PipelineMetrics) QueryCompleted(outcome string, confidence int, retrieved int, duration time.Duration) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.queriesTotal.WithLabelValues(m.service, outcome).Inc()
	m.duration.WithLabelValues(m.service, outcome).Observe(duration.Seconds())
	m.retrievedChunks.WithLabelValues(m.service).Observe(float64(retrieved))
	if confidence > 0 {
		m.confidence.WithLabelValues(m.service).Observe(float64(confidence))
	}
}
