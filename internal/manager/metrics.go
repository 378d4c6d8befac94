package manager

import "github.com/prometheus/client_golang/prometheus"

var (
	activeSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "sitecnd",
		Subsystem: "model",
		Name:      "active_sessions",
		Help:      "Live model sessions.",
	})
	probesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sitecnd",
		Subsystem: "model",
		Name:      "availability_probes_total",
		Help:      "Availability probes by result.",
	}, []string{"availability"})
)

func init() {
	prometheus.MustRegister(activeSessions, probesTotal)
}
