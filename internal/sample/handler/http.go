// Package handler exposes the blink-sample endpoints: batch ingestion, raw
// reads, date-range summary, and the admin elevated read.
package handler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"wellness-at-work/backend/internal/audit"
	"wellness-at-work/backend/internal/httpapi"
	"wellness-at-work/backend/internal/platform/authz"
	"wellness-at-work/backend/internal/sample/domain"
	"wellness-at-work/backend/internal/sample/repository"
	"wellness-at-work/backend/internal/sample/service"
	"wellness-at-work/backend/internal/telemetry"
)

// defaultListLimit caps GET /v1/blinks pages when the client does not ask for one.
const defaultListLimit = 1000

// Reader is the read-only slice of the sample repository the handler needs.
type Reader interface {
	ListByUser(ctx context.Context, userID string, f repository.ListFilter) ([]*domain.Sample, error)
	SummarizeRange(ctx context.Context, userID string, from, to *time.Time) (*domain.RangeSummary, error)
}

// SampleHandler serves the /v1/blinks routes.
type SampleHandler struct {
	ingestor *service.Ingestor
	reader   Reader
	auditor  audit.AuditLogger
	emitter  telemetry.EventEmitter
}

// NewSampleHandler returns a SampleHandler. auditor and emitter may be nil.
func NewSampleHandler(ingestor *service.Ingestor, reader Reader, auditor audit.AuditLogger, emitter telemetry.EventEmitter) *SampleHandler {
	return &SampleHandler{ingestor: ingestor, reader: reader, auditor: auditor, emitter: emitter}
}

// Register mounts the sample routes on r. The router must already apply auth middleware.
func (h *SampleHandler) Register(r chi.Router) {
	r.Post("/v1/blinks", h.upload)
	r.Get("/v1/blinks", h.list)
	r.Get("/v1/blinks/summary", h.summary)
}

// RegisterAdmin mounts the elevated read for the dashboard's admin view.
func (h *SampleHandler) RegisterAdmin(r chi.Router) {
	r.Get("/v1/admin/users/{userID}/blinks", h.adminList)
}

// sampleRequest carries no validate tags on purpose: item problems are
// per-item rejections from the ingestor, never a request-level 400.
type sampleRequest struct {
	ClientSequence  int64    `json:"client_sequence"`
	ClientSessionID *string  `json:"client_session_id,omitempty"`
	CapturedAt      string   `json:"captured_at_utc"`
	BlinkCount      int      `json:"blink_count"`
	DeviceID        string   `json:"device_id"`
	AppVersion      string   `json:"app_version"`
	CPUPercent      *float64 `json:"cpu_percent,omitempty"`
	MemoryMB        *float64 `json:"memory_mb,omitempty"`
	EnergyImpact    *string  `json:"energy_impact,omitempty"`
}

type batchRequest struct {
	Samples []sampleRequest `json:"samples" validate:"required"`
}

type itemResultResponse struct {
	Index  int    `json:"index"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

type batchResponse struct {
	Results    []itemResultResponse `json:"results"`
	Inserted   int                  `json:"inserted"`
	Duplicates int                  `json:"duplicates"`
	Rejected   int                  `json:"rejected"`
}

// toDomain maps the wire sample onto the domain type. An unparseable
// captured_at_utc becomes a zero time, which item validation rejects with
// missing_captured_at rather than failing the whole batch.
func (sr *sampleRequest) toDomain() domain.Sample {
	capturedAt, _ := time.Parse(time.RFC3339, sr.CapturedAt)
	return domain.Sample{
		DeviceID:        sr.DeviceID,
		ClientSequence:  sr.ClientSequence,
		ClientSessionID: sr.ClientSessionID,
		CapturedAt:      capturedAt,
		BlinkCount:      sr.BlinkCount,
		AppVersion:      sr.AppVersion,
		CPUPercent:      sr.CPUPercent,
		MemoryMB:        sr.MemoryMB,
		EnergyImpact:    sr.EnergyImpact,
	}
}

func (h *SampleHandler) upload(rw http.ResponseWriter, r *http.Request) {
	userID, err := authz.RequireUser(r.Context())
	if err != nil {
		httpapi.Unauthorized(rw)
		return
	}
	var req batchRequest
	if !httpapi.Read(rw, r, &req) {
		return
	}
	items := make([]domain.Sample, len(req.Samples))
	for i := range req.Samples {
		items[i] = req.Samples[i].toDomain()
	}

	res, err := h.ingestor.IngestBatch(r.Context(), userID, items)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrConsentRequired):
			httpapi.Forbidden(rw, "user consent required for data collection")
		case errors.Is(err, service.ErrBatchTooLarge):
			httpapi.Write(rw, http.StatusRequestEntityTooLarge, httpapi.Response{
				Message: "batch exceeds maximum size; split and resubmit",
			})
		case errors.Is(err, service.ErrServiceUnavailable):
			httpapi.ServiceUnavailable(rw)
		default:
			log.Printf("blinks: ingest for %s: %v", userID, err)
			httpapi.InternalError(rw)
		}
		return
	}

	if h.auditor != nil {
		h.auditor.LogEvent(r.Context(), userID, "batch_ingested", "blink_samples",
			fmt.Sprintf("inserted=%d duplicates=%d rejected=%d", res.Inserted, res.Duplicates, res.Rejected))
	}
	telemetry.EmitAsync(h.emitter, r.Context(), &telemetry.Event{
		UserID:    userID,
		EventType: "batch_ingested",
		Source:    "http_handler",
		Metadata:  []byte(fmt.Sprintf(`{"inserted":%d,"duplicates":%d,"rejected":%d}`, res.Inserted, res.Duplicates, res.Rejected)),
		CreatedAt: time.Now().UTC(),
	})

	results := make([]itemResultResponse, len(res.Results))
	for i, item := range res.Results {
		results[i] = itemResultResponse{
			Index:  item.Index,
			Status: string(item.Status),
			Reason: item.Reason,
		}
	}
	httpapi.Write(rw, http.StatusOK, batchResponse{
		Results:    results,
		Inserted:   res.Inserted,
		Duplicates: res.Duplicates,
		Rejected:   res.Rejected,
	})
}

type sampleResponse struct {
	ID              int64    `json:"id"`
	ClientSequence  int64    `json:"client_sequence"`
	ClientSessionID *string  `json:"client_session_id,omitempty"`
	CapturedAt      string   `json:"captured_at_utc"`
	BlinkCount      int      `json:"blink_count"`
	DeviceID        string   `json:"device_id"`
	AppVersion      string   `json:"app_version"`
	CPUPercent      *float64 `json:"cpu_percent,omitempty"`
	MemoryMB        *float64 `json:"memory_mb,omitempty"`
	EnergyImpact    *string  `json:"energy_impact,omitempty"`
	CreatedAt       string   `json:"created_at"`
}

func toSampleResponse(s *domain.Sample) sampleResponse {
	return sampleResponse{
		ID:              s.ID,
		ClientSequence:  s.ClientSequence,
		ClientSessionID: s.ClientSessionID,
		CapturedAt:      s.CapturedAt.UTC().Format(time.RFC3339),
		BlinkCount:      s.BlinkCount,
		DeviceID:        s.DeviceID,
		AppVersion:      s.AppVersion,
		CPUPercent:      s.CPUPercent,
		MemoryMB:        s.MemoryMB,
		EnergyImpact:    s.EnergyImpact,
		CreatedAt:       s.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *SampleHandler) list(rw http.ResponseWriter, r *http.Request) {
	userID, err := authz.RequireUser(r.Context())
	if err != nil {
		httpapi.Unauthorized(rw)
		return
	}
	h.writeList(rw, r, userID)
}

// adminList is the same read as list but scoped to the user named in the
// path. Requires the admin claim.
func (h *SampleHandler) adminList(rw http.ResponseWriter, r *http.Request) {
	if _, err := authz.RequireAdmin(r.Context()); err != nil {
		if errors.Is(err, authz.ErrAdminRequired) {
			httpapi.Forbidden(rw, "admin access required")
			return
		}
		httpapi.Unauthorized(rw)
		return
	}
	targetID := chi.URLParam(r, "userID")
	if targetID == "" {
		httpapi.Write(rw, http.StatusBadRequest, httpapi.Response{Message: "userID is required"})
		return
	}
	h.writeList(rw, r, targetID)
}

func (h *SampleHandler) writeList(rw http.ResponseWriter, r *http.Request, userID string) {
	filter, ok := parseListFilter(rw, r)
	if !ok {
		return
	}
	samples, err := h.reader.ListByUser(r.Context(), userID, filter)
	if err != nil {
		log.Printf("blinks: list for %s: %v", userID, err)
		httpapi.InternalError(rw)
		return
	}
	out := make([]sampleResponse, len(samples))
	for i, s := range samples {
		out[i] = toSampleResponse(s)
	}
	httpapi.Write(rw, http.StatusOK, out)
}

type periodResponse struct {
	StartDate *string `json:"start_date"`
	EndDate   *string `json:"end_date"`
}

type summaryResponse struct {
	TotalBlinks            int64          `json:"total_blinks"`
	AverageBlinksPerSample float64        `json:"average_blinks_per_sample"`
	TotalSamples           int64          `json:"total_samples"`
	AverageCPUPercent      *float64       `json:"average_cpu_percent"`
	AverageMemoryMB        *float64       `json:"average_memory_mb"`
	Period                 periodResponse `json:"period"`
}

func (h *SampleHandler) summary(rw http.ResponseWriter, r *http.Request) {
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
	sum, err := h.reader.SummarizeRange(r.Context(), userID, from, to)
	if err != nil {
		log.Printf("blinks: summarize for %s: %v", userID, err)
		httpapi.InternalError(rw)
		return
	}
	resp := summaryResponse{
		TotalBlinks:       sum.TotalBlinks,
		TotalSamples:      sum.SampleCount,
		AverageCPUPercent: sum.AvgCPUPercent,
		AverageMemoryMB:   sum.AvgMemoryMB,
		Period: periodResponse{
			StartDate: formatTimePtr(from),
			EndDate:   formatTimePtr(to),
		},
	}
	if sum.AvgBlinks != nil {
		resp.AverageBlinksPerSample = *sum.AvgBlinks
	}
	httpapi.Write(rw, http.StatusOK, resp)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func parseListFilter(rw http.ResponseWriter, r *http.Request) (repository.ListFilter, bool) {
	f := repository.ListFilter{}
	var ok bool
	if f.From, ok = httpapi.TimeParam(rw, r, "from"); !ok {
		return f, false
	}
	if f.To, ok = httpapi.TimeParam(rw, r, "to"); !ok {
		return f, false
	}
	if f.Limit, f.Offset, ok = httpapi.PageParams(rw, r); !ok {
		return f, false
	}
	if f.Limit == 0 {
		f.Limit = defaultListLimit
	}
	switch order := r.URL.Query().Get("order"); order {
	case "", "asc":
	case "desc":
		f.Descending = true
	default:
		httpapi.Write(rw, http.StatusBadRequest, httpapi.Response{Message: "order must be asc or desc"})
		return f, false
	}
	return f, true
}
