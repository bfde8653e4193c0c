// Package handler exposes liveness and readiness for load balancers and CI.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"wellness-at-work/backend/internal/httpapi"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves GET /health.
type HealthHandler struct {
	db Pinger
}

// NewHealthHandler returns a HealthHandler. db may be nil; then readiness only
// reports liveness.
func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

// Register mounts the health route on r. Public, never audited.
func (h *HealthHandler) Register(r chi.Router) {
	r.Get("/health", h.check)
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

func (h *HealthHandler) check(rw http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			httpapi.Write(rw, http.StatusServiceUnavailable, healthResponse{
				Status:    "degraded",
				Timestamp: time.Now().UTC(),
			})
			return
		}
	}
	httpapi.Write(rw, http.StatusOK, healthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
	})
}
