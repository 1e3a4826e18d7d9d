package intake

import "github.com/prometheus/client_golang/prometheus"

var (
	// eventsTotal counts processed messages by topic and final outcome.
	eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_events_total",
			Help: "Total number of consumed events by topic and outcome.",
		},
		[]string{"topic", "outcome"},
	)

	// attemptsTotal counts individual handling attempts (ok, error, permanent, aborted).
	attemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_attempts_total",
			Help: "Total number of event handling attempts by topic and result.",
		},
		[]string{"topic", "result"},
	)

	// processingSeconds records time from first attempt to final outcome,
	// including backoff and dead-lettering.
	processingSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "intake_processing_seconds",
			Help:    "Time spent processing one event in seconds.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"topic"},
	)

	// partitionBacklog is the number of fetched messages waiting for their
	// partition worker.
	partitionBacklog = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "intake_partition_backlog",
			Help: "Fetched messages waiting to be processed, by topic and partition.",
		},
		[]string{"topic", "partition"},
	)
)

func init() {
	prometheus.MustRegister(eventsTotal, attemptsTotal, processingSeconds, partitionBacklog)
}
