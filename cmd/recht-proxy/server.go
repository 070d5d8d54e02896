package main

import (
	"context"
	"net/http"

	"github.com/Sternrassler/recht-proxy/pkg/lookup"
	"github.com/Sternrassler/recht-proxy/pkg/metrics"
	"github.com/Sternrassler/recht-proxy/pkg/ratelimit"
	"github.com/rs/zerolog"
)

// Lookuper resolves a raw citation query into an API response.
type Lookuper interface {
	Lookup(ctx context.Context, raw string) lookup.Response
}

// ReadyFunc reports whether the proxy can serve lookups.
type ReadyFunc func() error

// handlerDeps are the collaborators of the HTTP handler.
type handlerDeps struct {
	Lookup    Lookuper
	Ready     ReadyFunc
	Limiter   *ratelimit.Tracker
	PublicDir string
	Logger    zerolog.Logger
}

// newHandler builds the routed, middleware-wrapped HTTP handler.
func newHandler(deps handlerDeps) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /map", RateLimit(deps.Limiter)(mapHandler(deps.Lookup)))
	mux.HandleFunc("GET /health", healthHandler)
	mux.Handle("GET /ready", readyHandler(deps.Ready, deps.Logger))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.Handle("GET /", http.FileServer(http.Dir(deps.PublicDir)))

	return Chain(mux,
		RequestID(),
		Recovery(deps.Logger),
		Tracing(),
		RequestLogger(deps.Logger),
	)
}

// mapHandler serves GET /map?q=<query>.
func mapHandler(svc Lookuper) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := svc.Lookup(r.Context(), r.URL.Query().Get("q"))
		writeJSON(w, resp.Status, resp.Body)
	})
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// readyHandler returns 503 while the recht binary cannot be resolved.
func readyHandler(ready ReadyFunc, logger zerolog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ready != nil {
			if err := ready(); err != nil {
				logger.Warn().Err(err).Msg("Readiness check failed")
				writeError(w, http.StatusServiceUnavailable, lookup.MessageBinaryMissing)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("READY"))
	})
}
