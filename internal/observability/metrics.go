package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	GraphBuildsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "repolens_graph_builds_total",
		Help: "Total number of file graphs built, by source.",
	}, []string{"source"})

	GraphNodes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "repolens_graph_nodes",
		Help:    "Number of nodes in built file graphs.",
		Buckets: []float64{1, 10, 25, 50, 100, 150, 200, 300},
	})

	GraphTruncatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "repolens_graph_truncated_total",
		Help: "Total number of graph builds whose listing exceeded the entry bound.",
	})

	ListingRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "repolens_listing_requests_total",
		Help: "Repository listing requests by outcome (ok, not_found, no_files, error, cache_hit).",
	}, []string{"outcome"})

	ArticleFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "repolens_article_fetches_total",
		Help: "Article fetches by outcome.",
	}, []string{"outcome"})

	LLMCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "repolens_llm_calls_total",
		Help: "Generative model calls by operation and outcome.",
	}, []string{"op", "outcome"})

	LLMCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "repolens_llm_call_seconds",
		Help:    "Latency of generative model calls.",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
	}, []string{"op"})

	AnalysisRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "repolens_analysis_runs_total",
		Help: "Finished analysis runs by kind and outcome.",
	}, []string{"kind", "outcome"})

	AnalysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "repolens_analysis_seconds",
		Help:    "Wall time of analysis runs.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	AnalysisRunsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "repolens_analysis_runs_active",
		Help: "Analysis runs currently executing.",
	})

	ArtifactCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "repolens_artifact_cache_total",
		Help: "Artifact cache lookups by cache (blob, list, url) and result (hit, miss).",
	}, []string{"cache", "result"})
)

// ObserveGraph records one graph build.
func ObserveGraph(source string, nodes int, truncated bool) {
	GraphBuildsTotal.WithLabelValues(source).Inc()
	GraphNodes.Observe(float64(nodes))
	if truncated {
		GraphTruncatedTotal.Inc()
	}
}
