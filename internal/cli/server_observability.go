package cli

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"forestry/internal/store"
)

type ObservabilityServer struct {
	addr   string
	st     store.Store
	server *http.Server
}

func NewObservabilityServer(addr string, st store.Store) *ObservabilityServer {
	return &ObservabilityServer{addr: addr, st: st}
}

func (s *ObservabilityServer) Start(ctx context.Context) error {
	mux := http.NewServeMux()

	// Prometheus metrics
	mux.Handle("/metrics", promhttp.Handler())

	// Health check: the store answering a count means we are up.
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{"status": "up"}
		if _, err := s.st.Count(r.Context(), store.Query{}); err != nil {
			status["status"] = "down"
			status["error"] = err.Error()
		}
		w.Header().Set("Content-Type", "application/json")
		if status["status"] != "up" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(status)
	})

	s.server = &http.Server{
		Addr:    s.addr,
		Handler: mux,
	}

	slog.Info("observability server starting", "addr", s.addr)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("observability server failed", "error", err)
		}
	}()

	return nil
}

func (s *ObservabilityServer) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
