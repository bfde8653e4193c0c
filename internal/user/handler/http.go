// Package handler exposes the current-user profile and erasure endpoints.
package handler

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"wellness-at-work/backend/internal/audit"
	"wellness-at-work/backend/internal/httpapi"
	"wellness-at-work/backend/internal/platform/authz"
	userrepo "wellness-at-work/backend/internal/user/repository"
)

// SampleEraser removes a user's stored samples. Returns the number of rows removed.
type SampleEraser interface {
	DeleteByUser(ctx context.Context, userID string) (int64, error)
}

// SessionEraser removes a user's declared sessions. Returns the number of rows removed.
type SessionEraser interface {
	DeleteByUser(ctx context.Context, userID string) (int64, error)
}

// UserHandler serves GET /v1/me and DELETE /v1/me.
type UserHandler struct {
	users    userrepo.Repository
	samples  SampleEraser
	sessions SessionEraser
	auditor  audit.AuditLogger
}

// NewUserHandler returns a UserHandler with the given dependencies. auditor may be nil.
func NewUserHandler(users userrepo.Repository, samples SampleEraser, sessions SessionEraser, auditor audit.AuditLogger) *UserHandler {
	return &UserHandler{users: users, samples: samples, sessions: sessions, auditor: auditor}
}

// Register mounts the user routes on r. The router must already apply auth middleware.
func (h *UserHandler) Register(r chi.Router) {
	r.Get("/v1/me", h.me)
	r.Delete("/v1/me", h.erase)
}

type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Consent   bool      `json:"consent"`
	IsAdmin   bool      `json:"is_admin,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *UserHandler) me(rw http.ResponseWriter, r *http.Request) {
	userID, err := authz.RequireUser(r.Context())
	if err != nil {
		httpapi.Unauthorized(rw)
		return
	}
	u, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		log.Printf("user: get %s: %v", userID, err)
		httpapi.InternalError(rw)
		return
	}
	if u == nil {
		httpapi.Write(rw, http.StatusNotFound, httpapi.Response{Message: "user not found"})
		return
	}
	httpapi.Write(rw, http.StatusOK, userResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Consent:   u.HasConsent(),
		IsAdmin:   u.IsAdmin,
		CreatedAt: u.CreatedAt,
	})
}

type erasureResponse struct {
	SamplesDeleted  int64 `json:"samples_deleted"`
	SessionsDeleted int64 `json:"sessions_deleted"`
}

// erase implements right-to-erasure: all samples, declared sessions, and the
// account row are removed. The audit entry is written before the user row
// disappears so the trail survives the cascade.
func (h *UserHandler) erase(rw http.ResponseWriter, r *http.Request) {
	userID, err := authz.RequireUser(r.Context())
	if err != nil {
		httpapi.Unauthorized(rw)
		return
	}
	samples, err := h.samples.DeleteByUser(r.Context(), userID)
	if err != nil {
		log.Printf("user: erase samples for %s: %v", userID, err)
		httpapi.InternalError(rw)
		return
	}
	sessions, err := h.sessions.DeleteByUser(r.Context(), userID)
	if err != nil {
		log.Printf("user: erase sessions for %s: %v", userID, err)
		httpapi.InternalError(rw)
		return
	}
	if h.auditor != nil {
		h.auditor.LogEvent(r.Context(), userID, "account_erasure", "user",
			fmt.Sprintf("samples=%d sessions=%d", samples, sessions))
	}
	if err := h.users.Delete(r.Context(), userID); err != nil {
		log.Printf("user: erase account %s: %v", userID, err)
		httpapi.InternalError(rw)
		return
	}
	httpapi.Write(rw, http.StatusOK, erasureResponse{
		SamplesDeleted:  samples,
		SessionsDeleted: sessions,
	})
}
