package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/paperdex/internal/domain/stats"
)

// Indexing pipeline Prometheus metrics.
var (
	PapersIndexedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_indexed_total",
			Help:      "Papers run through the indexing pipeline",
		},
		[]string{"status"}, // "ok" / "error"
	)

	ChunksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_total",
			Help:      "Chunks by pipeline stage",
		},
		[]string{"stage"}, // "created" / "embedded" / "indexed" / "failed"
	)

	PaperIndexDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "paper_index_duration_seconds",
			Help:      "Time to chunk, embed and store one paper",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)
)

var indexingMetricsRegistered bool

// RegisterIndexingMetrics registers the indexing metrics. Must be called once from main.
func RegisterIndexingMetrics() {
	if indexingMetricsRegistered {
		return
	}
	prometheus.MustRegister(PapersIndexedTotal, ChunksTotal, PaperIndexDuration)
	indexingMetricsRegistered = true
}

// ObservePaper records the outcome of one paper.
func ObservePaper(s stats.Stats, seconds float64) {
	status := "ok"
	if s.Errors > 0 {
		status = "error"
	}
	PapersIndexedTotal.WithLabelValues(status).Inc()
	ChunksTotal.WithLabelValues("created").Add(float64(s.ChunksCreated))
	ChunksTotal.WithLabelValues("embedded").Add(float64(s.EmbeddingsGenerated))
	ChunksTotal.WithLabelValues("indexed").Add(float64(s.ChunksIndexed))
	ChunksTotal.WithLabelValues("failed").Add(float64(s.Errors))
	PaperIndexDuration.Observe(seconds)
}
