// Package middleware – Prometheus instrumentation.
//
// Transport metrics are labelled by method, registered route, and status to
// keep cardinality bounded (raw URLs are only used when no route matched).
// On top of the HTTP surface, two pipeline counters track the tutoring
// outcomes that matter operationally: whether an exchange produced an
// answer, and whether a wanted document actually compiled.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	// Status is omitted from the latency histogram to keep its cardinality low.
	httpLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	httpInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_inflight",
			Help: "Current number of in-flight HTTP requests.",
		},
	)

	exchangeOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tutor_exchanges_total",
			Help: "Tutoring exchanges by outcome (answered, answered_unsaved, failed).",
		},
		[]string{"outcome"},
	)

	documentOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tutor_documents_total",
			Help: "Document pipeline outcomes for exchanges that wanted one (compiled, degraded).",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(httpReqs, httpLat, httpInflight, exchangeOutcomes, documentOutcomes)
}

// Metrics instruments every request with the transport collectors. Mount
// promhttp on /metrics alongside it.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInflight.Inc()
		defer httpInflight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		method := c.Request.Method
		httpReqs.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpLat.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}

// ObserveExchange records the outcome of one tutoring exchange. Valid
// outcomes: "answered", "answered_unsaved", "failed".
func ObserveExchange(outcome string) {
	exchangeOutcomes.WithLabelValues(outcome).Inc()
}

// ObserveDocument records the document pipeline outcome of an exchange that
// asked for one. Valid outcomes: "compiled", "degraded".
func ObserveDocument(outcome string) {
	documentOutcomes.WithLabelValues(outcome).Inc()
}
