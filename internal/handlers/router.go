package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ukydev/geolock/internal/middleware"
)

const (
	connectRate  = 5
	connectBurst = 10
)

// NewRouter wires the broadcast server's HTTP surface:
//
//	GET /, /ws   websocket coordinate stream
//	GET /healthz server state
//	GET /metrics Prometheus exposition
func NewRouter(state StateReader, hub SessionHub, coords CoordinateSource) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestLogger)

	limiter := middleware.NewRateLimitMiddleware(connectRate, connectBurst)
	stream := NewStreamHandler(hub)
	r.With(limiter.RateLimit).Get("/", stream.ServeHTTP)
	r.With(limiter.RateLimit).Get("/ws", stream.ServeHTTP)

	r.Get("/healthz", NewHealthHandler(state, hub, coords).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
	return r
}
