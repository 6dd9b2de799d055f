package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// HealthCheck reports whether one dependency is usable.
type HealthCheck func(ctx context.Context) error

func RegisterHealthRoutes(mux *http.ServeMux, logger *slog.Logger, checks map[string]HealthCheck) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := map[string]string{}
		healthy := true
		for name, check := range checks {
			if err := check(ctx); err != nil {
				logger.Warn("health check failed", "check", name, "error", err)
				status[name] = "down"
				healthy = false
				continue
			}
			status[name] = "up"
		}

		if !healthy {
			respondWithJSON(w, http.StatusServiceUnavailable, &APIError{
				Code:    "UNHEALTHY",
				Message: "one or more dependencies are unavailable",
			})
			return
		}
		respondWithJSON(w, http.StatusOK, status)
	})
}
