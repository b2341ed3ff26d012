package audit

import "github.com/prometheus/client_golang/prometheus"

var (
	eventsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "casefeed",
		Subsystem: "audit",
		Name:      "events_total",
		Help:      "Audit events by type and delivery outcome.",
	}, []string{"event_type", "outcome"})

	publishDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "casefeed",
		Subsystem: "audit",
		Name:      "publish_duration_seconds",
		Help:      "Time spent publishing one audit event to Kafka.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "casefeed",
		Subsystem: "audit",
		Name:      "queue_depth",
		Help:      "Audit events buffered for publication.",
	})
)

func init() {
	prometheus.MustRegister(eventsCounter, publishDuration, queueDepth)
}

func recordOutcome(eventType, outcome string) {
	eventsCounter.WithLabelValues(eventType, outcome).Inc()
}
