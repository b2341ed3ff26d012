// Package observability wires Prometheus metrics and OpenTelemetry tracing.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	feedServedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "casefeed",
		Subsystem: "api",
		Name:      "last_feed_served_timestamp_seconds",
		Help:      "Unix timestamp of the most recent activity feed response.",
	})

	requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "casefeed",
		Subsystem: "api",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by method and status code.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "code"})

	inFlightGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "casefeed",
		Subsystem: "api",
		Name:      "requests_in_flight",
		Help:      "HTTP requests currently being served.",
	})

	buildInfo = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "casefeed",
		Name:      "build_info",
		Help:      "Constant 1, labelled with the running service and version.",
	}, []string{"service", "version"})
)

func init() {
	prometheus.MustRegister(feedServedGauge, requestDuration, inFlightGauge, buildInfo)
}

// RecordFeedServed updates the feed watermark gauge.
func RecordFeedServed(ts time.Time) {
	if ts.IsZero() {
		return
	}
	feedServedGauge.Set(float64(ts.Unix()))
}

// RecordBuildInfo publishes the service identity.
func RecordBuildInfo(service, version string) {
	buildInfo.WithLabelValues(service, version).Set(1)
}

// InstrumentHandler records latency and concurrency for every request served by next.
func InstrumentHandler(next http.Handler) http.Handler {
	return promhttp.InstrumentHandlerInFlight(inFlightGauge,
		promhttp.InstrumentHandlerDuration(requestDuration, next))
}
