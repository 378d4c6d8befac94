package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsSubsystem = "http"

var (
	requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sitecnd",
		Subsystem: metricsSubsystem,
		Name:      "requests_total",
		Help:      "HTTP requests by route, method and status code.",
	}, []string{"route", "method", "code"})

	requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sitecnd",
		Subsystem: metricsSubsystem,
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency. Long polls and event streams land in the top buckets.",
		Buckets:   []float64{.005, .025, .1, .5, 1, 5, 15, 30, 120},
	}, []string{"route", "method"})

	inflightRequests = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "sitecnd",
		Subsystem: metricsSubsystem,
		Name:      "inflight_requests",
		Help:      "Requests being served, including open long polls.",
	}, []string{"method"})

	rejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sitecnd",
		Subsystem: metricsSubsystem,
		Name:      "rejected_total",
		Help:      "Requests refused before reaching the daemon, by reason.",
	}, []string{"reason"})

	eventStreams = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "sitecnd",
		Subsystem: metricsSubsystem,
		Name:      "event_streams",
		Help:      "Open /v1/events connections.",
	})

	agentDeliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sitecnd",
		Subsystem: metricsSubsystem,
		Name:      "agent_responses_total",
		Help:      "Agent responses posted, by whether an attempt was waiting for them.",
	}, []string{"matched"})
)

func init() {
	prometheus.MustRegister(requestsTotal, requestDuration, inflightRequests, rejectedTotal, eventStreams, agentDeliveries)
}

// statusRecorder captures the status code written by the handler.
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (sr *statusRecorder) WriteHeader(code int) {
	if sr.code == 0 {
		sr.code = code
	}
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.code == 0 {
		sr.code = http.StatusOK
	}
	return sr.ResponseWriter.Write(b)
}

// Flush keeps event streams working behind the middleware.
func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// MetricsMiddleware records request counts, latency and concurrency.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inflight := inflightRequests.WithLabelValues(r.Method)
		inflight.Inc()
		defer inflight.Dec()

		sr := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next.ServeHTTP(sr, r)
		if sr.code == 0 {
			sr.code = http.StatusOK
		}
		// chi fills the pattern in while routing, so read it afterwards.
		route := routeLabel(r)
		requestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(sr.code)).Inc()
		requestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

// routeLabel keeps label cardinality bounded: tab ids stay inside the
// pattern and unmatched paths collapse into one value.
func routeLabel(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

func countRejected(reason string) {
	rejectedTotal.WithLabelValues(reason).Inc()
}
