package feed

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	requestsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "casefeed",
		Subsystem: "feed",
		Name:      "requests_total",
		Help:      "Feed requests by mode and outcome.",
	}, []string{"mode", "outcome"})

	sourceFetchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "casefeed",
		Subsystem: "feed",
		Name:      "source_fetch_duration_seconds",
		Help:      "Time spent fetching one activity source.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"source"})

	sourceFailureCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "casefeed",
		Subsystem: "feed",
		Name:      "source_failures_total",
		Help:      "Activity source fetches that failed and were left out of the feed.",
	}, []string{"source"})

	partialCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "casefeed",
		Subsystem: "feed",
		Name:      "partial_responses_total",
		Help:      "Feed responses served without one or more sources.",
	})
)

func init() {
	prometheus.MustRegister(requestsCounter, sourceFetchDuration, sourceFailureCounter, partialCounter)
}

func observeSourceFetch(source string, elapsed time.Duration) {
	sourceFetchDuration.WithLabelValues(source).Observe(elapsed.Seconds())
}

func recordSourceFailure(source string) {
	sourceFailureCounter.WithLabelValues(source).Inc()
}

func recordRequest(mode Mode, outcome string) {
	requestsCounter.WithLabelValues(string(mode), outcome).Inc()
}
