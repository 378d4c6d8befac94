package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"sitecnd/internal/coordinator"
	"sitecnd/internal/events"
	"sitecnd/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Handle(ctx context.Context, msg types.Message) (coordinator.Reply, error)
	OnTabEvent(ctx context.Context, ev types.TabEvent) error
	Subscribe(ctx context.Context, id string) (string, types.Availability)
	Unsubscribe(id string)
	Events(ctx context.Context) <-chan events.Envelope
	PollAgent(ctx context.Context, tabID int, wait time.Duration) []types.AgentCommand
	PollHost(ctx context.Context, wait time.Duration) []types.AgentCommand
	DeliverAgent(tabID int, resp types.AgentResponse) bool
	Status() types.StatusResponse
	Ready() bool
}

// observers counts open event streams across muxes.
var observers atomic.Int64

// NewMux mounts the daemon API on a chi router.
func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
			MaxAge:         300,
		}))
	}
	// Compression for JSON endpoints; NDJSON streams are not compressed.
	r.Use(middleware.Compress(5, "application/json"))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/messages", func(w http.ResponseWriter, r *http.Request) { handleMessage(svc, w, r) })
		r.Get("/events", func(w http.ResponseWriter, r *http.Request) { handleEvents(svc, w, r) })
		r.Post("/tabs/events", func(w http.ResponseWriter, r *http.Request) { handleTabEvent(svc, w, r) })

		r.Get("/agents/{tabID}/commands", func(w http.ResponseWriter, r *http.Request) {
			tabID, ok := tabParam(w, r)
			if !ok {
				return
			}
			ctx, cancel := requestContext(r)
			defer cancel()
			writeJSON(w, http.StatusOK, nonNil(svc.PollAgent(ctx, tabID, waitParam(r))))
		})
		r.Post("/agents/{tabID}/responses", func(w http.ResponseWriter, r *http.Request) {
			tabID, ok := tabParam(w, r)
			if !ok {
				return
			}
			var resp types.AgentResponse
			if !decodeBody(w, r, &resp) {
				return
			}
			if resp.Domain == "" {
				writeJSONError(w, http.StatusBadRequest, "domain is required")
				return
			}
			ok = svc.DeliverAgent(tabID, resp)
			agentDeliveries.WithLabelValues(strconv.FormatBool(ok)).Inc()
			writeJSON(w, http.StatusOK, types.Ack{Accepted: ok})
		})
		r.Get("/host/commands", func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := requestContext(r)
			defer cancel()
			writeJSON(w, http.StatusOK, nonNil(svc.PollHost(ctx, waitParam(r))))
		})

		r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, svc.Status())
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("model unavailable"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

// handleMessage answers synchronous kinds with 200 and the reply message,
// and asynchronous kinds with 202 and an ack; their results arrive on
// /v1/events.
func handleMessage(svc Service, w http.ResponseWriter, r *http.Request) {
	var msg types.Message
	if !decodeBody(w, r, &msg) {
		return
	}
	if msg.Kind == "" {
		writeJSONError(w, http.StatusBadRequest, "kind is required")
		return
	}
	if msg.Origin == "" {
		msg.Origin = types.OriginSidepanel
	}
	lvl := requestLevel(r)
	start := time.Now()

	ctx, cancel := requestContext(r)
	defer cancel()
	if messageTimeout > 0 {
		var tcancel context.CancelFunc
		ctx, tcancel = context.WithTimeout(ctx, messageTimeout)
		defer tcancel()
	}
	rep, err := svc.Handle(ctx, msg)
	if err != nil {
		status := statusFor(err)
		writeJSONError(w, status, err.Error())
		logEnd(r, lvl, string(msg.Kind), status, start, err)
		return
	}
	switch {
	case rep.Message != nil:
		writeJSON(w, http.StatusOK, rep.Message)
		logEnd(r, lvl, string(msg.Kind), http.StatusOK, start, nil)
	case rep.Ack != nil:
		writeJSON(w, http.StatusAccepted, rep.Ack)
		logEnd(r, lvl, string(msg.Kind), http.StatusAccepted, start, nil)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleEvents streams every broadcast as one NDJSON line. With
// ?subscriber=<id> the stream also counts as a side panel subscription for
// its lifetime.
func handleEvents(svc Service, w http.ResponseWriter, r *http.Request) {
	if n := observers.Add(1); maxObservers > 0 && n > int64(maxObservers) {
		observers.Add(-1)
		countRejected("event_streams")
		writeJSONError(w, http.StatusTooManyRequests, "too many event streams")
		return
	}
	defer observers.Add(-1)
	eventStreams.Inc()
	defer eventStreams.Dec()

	ctx, cancel := requestContext(r)
	defer cancel()
	stream := svc.Events(ctx)

	var (
		writer = io.Writer(w)
		flush  = func() {}
	)
	if f, ok := w.(http.Flusher); ok {
		flush = f.Flush
	}
	if requestLevel(r) <= zerolog.DebugLevel {
		writer = io.MultiWriter(w, &eventTap{stream: middleware.GetReqID(r.Context())})
	}
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(writer)

	if id := r.URL.Query().Get("subscriber"); id != "" {
		sid, a := svc.Subscribe(ctx, id)
		defer svc.Unsubscribe(sid)
		first := types.NewMessage(types.KindModelStatus, types.ModelStatusPayload{Availability: a, SubscriberID: sid})
		first.Origin = types.OriginBackground
		if err := enc.Encode(events.Envelope{Message: first}); err != nil {
			return
		}
	}
	flush()

	for env := range stream {
		if err := enc.Encode(env); err != nil {
			return
		}
		flush()
	}
}

func handleTabEvent(svc Service, w http.ResponseWriter, r *http.Request) {
	var ev types.TabEvent
	if !decodeBody(w, r, &ev) {
		return
	}
	if err := svc.OnTabEvent(r.Context(), ev); err != nil {
		writeJSONError(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decodeBody enforces a JSON content type and the body limit.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		countRejected("content_type")
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			countRejected("body_too_large")
			writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func tabParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "tabID"))
	if err != nil || id < 0 {
		writeJSONError(w, http.StatusBadRequest, "invalid tab id")
		return 0, false
	}
	return id, true
}

// waitParam reads ?wait= as a Go duration ("20s") or whole seconds.
func waitParam(r *http.Request) time.Duration {
	v := r.URL.Query().Get("wait")
	if v == "" {
		return 0
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return 0
}

func nonNil(cmds []types.AgentCommand) []types.AgentCommand {
	if cmds == nil {
		return []types.AgentCommand{}
	}
	return cmds
}
