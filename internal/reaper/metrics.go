package reaper

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "valentine",
		Subsystem: "reaper",
		Name:      "runs_total",
		Help:      "Number of expiry sweeps executed.",
	})

	pagesDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "valentine",
		Subsystem: "reaper",
		Name:      "pages_deleted_total",
		Help:      "Number of expired pages removed.",
	})

	mediaFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "valentine",
		Subsystem: "reaper",
		Name:      "media_failures_total",
		Help:      "Number of page media objects that could not be deleted.",
	})

	recordFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "valentine",
		Subsystem: "reaper",
		Name:      "record_failures_total",
		Help:      "Number of expired page records that could not be deleted.",
	})

	durationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "valentine",
		Subsystem: "reaper",
		Name:      "duration_seconds",
		Help:      "Duration of expiry sweeps in seconds.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	})
)
