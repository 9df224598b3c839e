package backend

import "github.com/prometheus/client_golang/prometheus"

var (
	loadsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "reconstructd",
		Subsystem: "backend",
		Name:      "loads_total",
		Help:      "Total number of model loads",
	})

	swapsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "reconstructd",
		Subsystem: "backend",
		Name:      "swaps_total",
		Help:      "Total number of model swaps (a load replacing a different loaded model)",
	})

	loadFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reconstructd",
		Subsystem: "backend",
		Name:      "load_failures_total",
		Help:      "Total number of failed model loads",
	}, []string{"backend"})
)

func init() {
	prometheus.MustRegister(loadsTotal, swapsTotal, loadFailuresTotal)
}
