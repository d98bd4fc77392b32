package metrics

import "github.com/prometheus/client_golang/prometheus"

// Ingestion Prometheus metrics.
var (
	IngestChunksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragserver",
			Name:      "ingest_chunks_total",
			Help:      "Total number of chunks indexed",
		},
		[]string{"source_type"},
	)

	IngestSourcesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragserver",
			Name:      "ingest_sources_total",
			Help:      "Total number of sources ingested",
		},
		[]string{"source_type", "status"},
	)
)

var ingestMetricsRegistered bool

// RegisterIngestMetrics registers ingestion metrics. Must be called once from main.
func RegisterIngestMetrics() {
	if ingestMetricsRegistered {
		return
	}
	prometheus.MustRegister(IngestChunksTotal)
	prometheus.MustRegister(IngestSourcesTotal)
	ingestMetricsRegistered = true
}

// RegisterIndexSizeGauge exposes the live chunk count of the vector index.
// The callback is invoked at scrape time.
func RegisterIndexSizeGauge(size func() float64) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "ragserver",
			Name:      "index_chunks",
			Help:      "Number of chunks currently in the vector index",
		},
		size,
	))
}
