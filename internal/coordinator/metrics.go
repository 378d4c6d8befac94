package coordinator

import "github.com/prometheus/client_golang/prometheus"

var (
	inboundTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sitecnd",
		Name:      "inbound_messages_total",
		Help:      "Inbound messages by kind and result.",
	}, []string{"kind", "result"})
	outcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sitecnd",
		Name:      "request_outcomes_total",
		Help:      "Terminal outcomes of background requests by kind and status.",
	}, []string{"kind", "status"})
	panicsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sitecnd",
		Name:      "handler_panics_total",
		Help:      "Recovered panics in background request handlers.",
	}, []string{"kind"})
	subscribersGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "sitecnd",
		Name:      "sidepanel_subscribers",
		Help:      "Registered side panel subscribers.",
	})
)

func init() {
	prometheus.MustRegister(inboundTotal, outcomesTotal, panicsTotal, subscribersGauge)
}
