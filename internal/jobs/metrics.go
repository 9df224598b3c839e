package jobs

import "github.com/prometheus/client_golang/prometheus"

var (
	submittedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "reconstructd",
		Subsystem: "jobs",
		Name:      "submitted_total",
		Help:      "Total number of jobs submitted",
	})

	completedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reconstructd",
		Subsystem: "jobs",
		Name:      "finished_total",
		Help:      "Total number of jobs that reached a terminal status",
	}, []string{"status"})

	jobDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "reconstructd",
		Subsystem: "jobs",
		Name:      "duration_seconds",
		Help:      "Time from submission to terminal status in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "reconstructd",
		Subsystem: "jobs",
		Name:      "queue_depth",
		Help:      "Jobs admitted but not yet dispatched",
	})

	runningGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "reconstructd",
		Subsystem: "jobs",
		Name:      "running",
		Help:      "Jobs currently executing",
	})

	reapedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "reconstructd",
		Subsystem: "jobs",
		Name:      "reaped_total",
		Help:      "Terminal jobs removed by the cleanup reaper",
	})
)

func init() {
	prometheus.MustRegister(submittedTotal, completedTotal, jobDuration, queueDepth, runningGauge, reapedTotal)
}
