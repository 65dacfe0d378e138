package confserver

import "github.com/prometheus/client_golang/prometheus"

var (
	connectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "dvhost",
			Subsystem: "confserver",
			Name:      "connections_active",
			Help:      "Number of currently open config-server connections.",
		},
	)

	pushQueueDepthGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "dvhost",
			Subsystem: "confserver",
			Name:      "push_queue_depth",
			Help:      "Number of undelivered push messages queued for a client.",
		},
		[]string{"client_id"},
	)

	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dvhost",
			Subsystem: "confserver",
			Name:      "requests_total",
			Help:      "Requests dispatched, by action and outcome.",
		},
		[]string{"action", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(connectionsActive, pushQueueDepthGauge, requestsTotal)
}
