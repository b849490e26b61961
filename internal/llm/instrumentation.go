package llm

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

const scopeName = "parley/agent/internal/llm"

var tracer = otel.Tracer(scopeName)

var (
	metricRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_requests_total",
		Help: "Generation requests by provider and outcome",
	}, []string{"provider", "status"})

	metricLatencyMS = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "llm_latency_ms",
		Help:    "Generation latency in milliseconds",
		Buckets: prometheus.ExponentialBuckets(100, 1.6, 12),
	}, []string{"provider"})
)
