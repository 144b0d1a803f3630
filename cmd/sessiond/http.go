// cmd/sessiond/http.go
package main

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/SyedDaiam9101/session-service/internal/engine"
	"github.com/SyedDaiam9101/session-service/internal/handler"
)

// modelView is the /v1/model response body.
type modelView struct {
	Inputs   []engine.ValueInfo   `json:"inputs"`
	Outputs  []engine.ValueInfo   `json:"outputs"`
	Metadata engine.ModelMetadata `json:"metadata"`
}

// newAdminRouter serves metrics, health checks and the loaded model signature.
func newAdminRouter(healthServer *health.Server, h *handler.Handler, log *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	// Prometheus metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		resp, err := healthServer.Check(r.Context(), &healthpb.HealthCheckRequest{})
		if err != nil || resp.Status != healthpb.HealthCheckResponse_SERVING {
			http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("OK"))
	})

	// Ready once serving and a session is installed
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		resp, err := healthServer.Check(r.Context(), &healthpb.HealthCheckRequest{})
		if err != nil || resp.Status != healthpb.HealthCheckResponse_SERVING || h.Session() == nil {
			http.Error(w, "Not Ready", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("Ready"))
	})

	r.Get("/v1/model", func(w http.ResponseWriter, r *http.Request) {
		s := h.Session()
		if s == nil {
			http.Error(w, "no model loaded", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(modelView{
			Inputs:   s.Inputs(),
			Outputs:  s.Outputs(),
			Metadata: s.ModelMeta(),
		}); err != nil {
			log.Error("Failed to encode model", "error", err)
		}
	})

	return r
}

func startHTTPServer(addr string, router http.Handler, log *slog.Logger) *http.Server {
	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		log.Info("HTTP server listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", "error", err)
		}
	}()

	return server
}
