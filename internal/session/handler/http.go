// Package handler exposes the tracking-session endpoints: declared-session
// upload and the derived summary reads.
package handler

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"wellness-at-work/backend/internal/audit"
	"wellness-at-work/backend/internal/httpapi"
	"wellness-at-work/backend/internal/platform/authz"
	"wellness-at-work/backend/internal/session/domain"
	sessionrepo "wellness-at-work/backend/internal/session/repository"
	"wellness-at-work/backend/internal/session/service"
)

// SessionHandler serves the /v1/sessions routes.
type SessionHandler struct {
	sessions   sessionrepo.Repository
	aggregator *service.Aggregator
	auditor    audit.AuditLogger
}

// NewSessionHandler returns a SessionHandler. auditor may be nil.
func NewSessionHandler(sessions sessionrepo.Repository, aggregator *service.Aggregator, auditor audit.AuditLogger) *SessionHandler {
	return &SessionHandler{sessions: sessions, aggregator: aggregator, auditor: auditor}
}

// Register mounts the session routes on r. The router must already apply auth middleware.
func (h *SessionHandler) Register(r chi.Router) {
	r.Post("/v1/sessions", h.upload)
	r.Get("/v1/sessions", h.list)
	r.Get("/v1/sessions/summary", h.summary)
	r.Get("/v1/sessions/{clientSessionID}", h.get)
}

// sessionRequest fields are validated per item in toDomain; a malformed
// declaration is counted as rejected, not a request-level 400.
type sessionRequest struct {
	ClientSessionID string  `json:"client_session_id"`
	StartedAt       string  `json:"started_at_utc"`
	EndedAt         *string `json:"ended_at_utc,omitempty"`
	TotalBlinks     *int    `json:"total_blinks,omitempty"`
	DeviceID        string  `json:"device_id"`
	AppVersion      string  `json:"app_version"`
}

type sessionBatchRequest struct {
	Sessions []sessionRequest `json:"sessions" validate:"required"`
}

type sessionUploadResponse struct {
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`
}

// upload upserts client-declared session metadata, last writer wins per
// (user, client_session_id). Retransmitting the same declarations is a no-op,
// so the client can resend after a lost ack.
func (h *SessionHandler) upload(rw http.ResponseWriter, r *http.Request) {
	userID, err := authz.RequireUser(r.Context())
	if err != nil {
		httpapi.Unauthorized(rw)
		return
	}
	var req sessionBatchRequest
	if !httpapi.Read(rw, r, &req) {
		return
	}

	var accepted, rejected int
	for _, sr := range req.Sessions {
		s, err := sr.toDomain(userID)
		if err != nil {
			rejected++
			continue
		}
		if err := h.sessions.Upsert(r.Context(), s); err != nil {
			log.Printf("sessions: upsert %s/%s: %v", userID, s.ClientSessionID, err)
			rejected++
			continue
		}
		accepted++
	}
	if h.auditor != nil {
		h.auditor.LogEvent(r.Context(), userID, "sessions_uploaded", "tracking_sessions",
			fmt.Sprintf("accepted=%d rejected=%d", accepted, rejected))
	}
	httpapi.Write(rw, http.StatusOK, sessionUploadResponse{Accepted: accepted, Rejected: rejected})
}

func (sr *sessionRequest) toDomain(userID string) (*domain.Session, error) {
	startedAt, err := time.Parse(time.RFC3339, sr.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("parse started_at_utc: %w", err)
	}
	var endedAt *time.Time
	if sr.EndedAt != nil {
		t, err := time.Parse(time.RFC3339, *sr.EndedAt)
		if err != nil {
			return nil, fmt.Errorf("parse ended_at_utc: %w", err)
		}
		endedAt = &t
	}
	s := &domain.Session{
		UserID:              userID,
		ClientSessionID:     sr.ClientSessionID,
		DeviceID:            sr.DeviceID,
		AppVersion:          sr.AppVersion,
		StartedAt:           startedAt,
		EndedAt:             endedAt,
		DeclaredTotalBlinks: sr.TotalBlinks,
		UpdatedAt:           time.Now().UTC(),
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

type sessionSummaryResponse struct {
	ClientSessionID     string   `json:"client_session_id"`
	DeviceID            string   `json:"device_id"`
	AppVersion          string   `json:"app_version"`
	StartedAt           string   `json:"started_at_utc"`
	EndedAt             *string  `json:"ended_at_utc,omitempty"`
	TotalBlinks         int64    `json:"total_blinks"`
	SampleCount         int64    `json:"sample_count"`
	AvgCPUPercent       *float64 `json:"avg_cpu_percent,omitempty"`
	AvgMemoryMB         *float64 `json:"avg_memory_mb,omitempty"`
	DeclaredTotalBlinks *int     `json:"declared_total_blinks,omitempty"`
}

func toSessionSummaryResponse(s *domain.Summary) sessionSummaryResponse {
	resp := sessionSummaryResponse{
		ClientSessionID:     s.ClientSessionID,
		DeviceID:            s.DeviceID,
		AppVersion:          s.AppVersion,
		StartedAt:           s.StartedAt.UTC().Format(time.RFC3339),
		TotalBlinks:         s.TotalBlinks,
		SampleCount:         s.SampleCount,
		AvgCPUPercent:       s.AvgCPUPercent,
		AvgMemoryMB:         s.AvgMemoryMB,
		DeclaredTotalBlinks: s.DeclaredTotalBlinks,
	}
	if s.EndedAt != nil {
		v := s.EndedAt.UTC().Format(time.RFC3339)
		resp.EndedAt = &v
	}
	return resp
}

func (h *SessionHandler) list(rw http.ResponseWriter, r *http.Request) {
	userID, err := authz.RequireUser(r.Context())
	if err != nil {
		httpapi.Unauthorized(rw)
		return
	}
	limit, offset, ok := httpapi.PageParams(rw, r)
	if !ok {
		return
	}
	sums, err := h.aggregator.SessionSummaries(r.Context(), userID, limit, offset)
	if err != nil {
		log.Printf("sessions: list for %s: %v", userID, err)
		httpapi.InternalError(rw)
		return
	}
	out := make([]sessionSummaryResponse, len(sums))
	for i, s := range sums {
		out[i] = toSessionSummaryResponse(s)
	}
	httpapi.Write(rw, http.StatusOK, out)
}

func (h *SessionHandler) get(rw http.ResponseWriter, r *http.Request) {
	userID, err := authz.RequireUser(r.Context())
	if err != nil {
		httpapi.Unauthorized(rw)
		return
	}
	clientSessionID := chi.URLParam(r, "clientSessionID")
	sum, err := h.aggregator.SessionSummary(r.Context(), userID, clientSessionID)
	if err != nil {
		log.Printf("sessions: get %s/%s: %v", userID, clientSessionID, err)
		httpapi.InternalError(rw)
		return
	}
	httpapi.Write(rw, http.StatusOK, toSessionSummaryResponse(sum))
}

type overallSummaryResponse struct {
	TotalBlinks   int64    `json:"total_blinks"`
	TotalSessions int64    `json:"total_sessions"`
	TotalSamples  int64    `json:"total_samples"`
	AvgCPUPercent *float64 `json:"avg_cpu_percent"`
	AvgMemoryMB   *float64 `json:"avg_memory_mb"`
}

func (h *SessionHandler) summary(rw http.ResponseWriter, r *http.Request) {
	userID, err := authz.RequireUser(r.Context())
	if err != nil {
		httpapi.Unauthorized(rw)
		return
	}
	from, ok := httpapi.TimeParam(rw, r, "from")
	if !ok {
		return
	}
	to, ok := httpapi.TimeParam(rw, r, "to")
	if !ok {
		return
	}
	sum, err := h.aggregator.Overall(r.Context(), userID, from, to)
	if err != nil {
		log.Printf("sessions: summary for %s: %v", userID, err)
		httpapi.InternalError(rw)
		return
	}
	httpapi.Write(rw, http.StatusOK, overallSummaryResponse{
		TotalBlinks:   sum.TotalBlinks,
		TotalSessions: sum.TotalSessions,
		TotalSamples:  sum.TotalSamples,
		AvgCPUPercent: sum.AvgCPUPercent,
		AvgMemoryMB:   sum.AvgMemoryMB,
	})
}
