package handler

import (
	"context"
	"net/http"
	"time"
)

// HealthCheck probes one backing dependency.
type HealthCheck func(ctx context.Context) error

// HealthHandler returns a health check endpoint. Every named check must pass.
func HealthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		failed := map[string]string{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				failed[name] = err.Error()
			}
		}
		if len(failed) > 0 {
			RespondJSON(w, http.StatusServiceUnavailable, Envelope{
				ErrorKind: "UNHEALTHY",
				Message:   "unhealthy",
				Fields:    failed,
			})
			return
		}
		RespondOK(w, http.StatusOK, "healthy", nil)
	}
}
