// Package metrics exposes Prometheus collectors for reconciliation jobs and
// provider calls.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var JobRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "jaxspot",
	Subsystem: "billing",
	Name:      "job_runs_total",
	Help:      "Count of reconciliation job runs by outcome",
}, []string{"job", "outcome"})

var JobProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "jaxspot",
	Subsystem: "billing",
	Name:      "job_processed_total",
	Help:      "Count of subscriptions changed by reconciliation jobs",
}, []string{"job"})

var JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "jaxspot",
	Subsystem: "billing",
	Name:      "job_duration_seconds",
	Help:      "Duration of reconciliation job runs",
	Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
}, []string{"job"})

var CallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "jaxspot",
	Subsystem: "billing",
	Name:      "callbacks_total",
	Help:      "Count of inbound provider callbacks by provider and result",
}, []string{"provider", "result"})

// JobRecorder records job runs into the package collectors.
type JobRecorder struct{}

func (JobRecorder) ObserveRun(job string, processed int, err error, elapsed time.Duration) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	JobRunsTotal.WithLabelValues(job, outcome).Inc()
	JobProcessedTotal.WithLabelValues(job).Add(float64(processed))
	JobDuration.WithLabelValues(job).Observe(elapsed.Seconds())
}
