// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Punches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gym_punches_total",
		Help: "Committed punches by resolved action and source.",
	}, []string{"action", "source"})

	PunchRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gym_punch_rejections_total",
		Help: "Punches refused before commit, by reason.",
	}, []string{"reason"})

	LockWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gym_punch_lock_wait_seconds",
		Help:    "Time spent waiting for the per-fighter punch lock.",
		Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5},
	})

	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gym_rate_limited_total",
		Help: "Requests rejected by the per-IP rate limiter.",
	})
)
