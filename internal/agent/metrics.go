package agent

import "github.com/prometheus/client_golang/prometheus"

var (
	lateResponses = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sitecnd",
		Subsystem: "agent",
		Name:      "late_responses_total",
		Help:      "Agent responses that arrived after their request settled.",
	})
	droppedCommands = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sitecnd",
		Subsystem: "agent",
		Name:      "dropped_commands_total",
		Help:      "Commands dropped from a full queue.",
	}, []string{"queue"})
	attempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sitecnd",
		Subsystem: "agent",
		Name:      "extract_attempts_total",
		Help:      "Single extraction attempts by final state.",
	}, []string{"state"})
)

func init() {
	prometheus.MustRegister(lateResponses, droppedCommands, attempts)
}
