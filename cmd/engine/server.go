package main

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/flowforge/runtime/pkg/metrics"
)

// healthServer exposes /healthz and /metrics over HTTP while a workflow
// run executes, so an operator or orchestrator can observe the process
// without waiting for it to exit.
type healthServer struct {
	http *http.Server
}

func newHealthServer(addr string) *healthServer {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", metrics.InstrumentHandler(metrics.Handler()))

	srv := &http.Server{Addr: addr, Handler: r}
	go func() {
		_ = srv.ListenAndServe()
	}()
	return &healthServer{http: srv}
}

func (s *healthServer) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
