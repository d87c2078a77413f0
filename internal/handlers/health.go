package handlers

import (
	"context"
	"net/http"
	"time"
)

const healthTimeout = 2 * time.Second

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Healthz reports liveness together with database reachability.
func Healthz(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		if db != nil {
			if err := db.PingContext(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable", Message: "database unreachable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Message: "SafeHer API is running"})
	}
}

type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
