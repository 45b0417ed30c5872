// Package metrics provides Prometheus metrics for the RepoSage API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the indexing and query paths.
type Metrics struct {
	// Indexing metrics
	IndexRuns       *prometheus.CounterVec
	DocumentsLoaded prometheus.Counter
	ChunksCreated   prometheus.Counter
	VectorsUpserted prometheus.Counter
	BatchesFailed   prometheus.Counter
	IndexDuration   prometheus.Histogram

	// Query metrics
	Queries       *prometheus.CounterVec
	CacheHits     prometheus.Counter
	CacheMisses   prometheus.Counter
	QueryDuration prometheus.Histogram
}

// NewMetrics creates all metrics and registers them on reg. Tests pass a
// fresh registry so parallel packages never collide.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		IndexRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reposage_index_runs_total",
			Help: "Total number of background indexing runs by terminal status",
		}, []string{"status"}),
		DocumentsLoaded: factory.NewCounter(prometheus.CounterOpts{
			Name: "reposage_documents_loaded_total",
			Help: "Total number of documents loaded from repositories",
		}),
		ChunksCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "reposage_chunks_created_total",
			Help: "Total number of chunks created",
		}),
		VectorsUpserted: factory.NewCounter(prometheus.CounterOpts{
			Name: "reposage_vectors_upserted_total",
			Help: "Total number of vectors upserted into the vector index",
		}),
		BatchesFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "reposage_embed_batches_failed_total",
			Help: "Total number of embedding/upsert batches skipped after errors",
		}),
		IndexDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "reposage_index_duration_seconds",
			Help:    "Duration of background indexing runs in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1s to ~17min
		}),
		Queries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reposage_queries_total",
			Help: "Total number of query requests by outcome",
		}, []string{"served_from"}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "reposage_cache_hits_total",
			Help: "Total number of answers served from the response cache",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "reposage_cache_misses_total",
			Help: "Total number of cache lookups that missed",
		}),
		QueryDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "reposage_query_duration_seconds",
			Help:    "Duration of query handling in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
