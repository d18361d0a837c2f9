// Package metrics defines Prometheus collectors for retrieval and oracle calls.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RetrievalRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clinbrief",
			Name:      "retrieval_requests_total",
			Help:      "Total number of retrieval requests",
		},
		[]string{"outcome"}, // "ok" / "degraded" / "error"
	)

	RetrievalDegradedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clinbrief",
			Name:      "retrieval_degraded_total",
			Help:      "Retrieval requests that lost a signal, by signal",
		},
		[]string{"signal"}, // "lexical" / "semantic" / "rerank"
	)

	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clinbrief",
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding oracle requests",
		},
		[]string{"status"}, // "success" / "error"
	)

	RerankRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clinbrief",
			Name:      "rerank_requests_total",
			Help:      "Total number of pairwise scoring oracle requests",
		},
		[]string{"status"}, // "success" / "error"
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clinbrief",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

var registered bool

// Register registers all collectors with the default registry. Must be called
// once from main before the server starts.
func Register() {
	if registered {
		return
	}
	prometheus.MustRegister(RetrievalRequestsTotal)
	prometheus.MustRegister(RetrievalDegradedTotal)
	prometheus.MustRegister(EmbeddingRequestsTotal)
	prometheus.MustRegister(RerankRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	registered = true
}
