package driver

import "github.com/prometheus/client_golang/prometheus"

var (
	tickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "dvhost",
			Subsystem: "driver",
			Name:      "tick_duration_seconds",
			Help:      "Wall-clock time spent running one full mainloop tick.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	packetsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dvhost",
			Subsystem: "driver",
			Name:      "packets_dropped_total",
			Help:      "Packets dropped by a source module applying backpressure configuration.",
		},
		[]string{"module"},
	)

	moduleTickErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dvhost",
			Subsystem: "driver",
			Name:      "module_tick_errors_total",
			Help:      "Errors returned by a module's Run function.",
		},
		[]string{"module"},
	)
)

func init() {
	prometheus.MustRegister(tickDuration, packetsDropped, moduleTickErrors)
}
