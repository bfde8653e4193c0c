package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	sampledomain "wellness-at-work/backend/internal/sample/domain"
	"wellness-at-work/backend/internal/server/middleware"
	"wellness-at-work/backend/internal/session/domain"
	"wellness-at-work/backend/internal/session/service"
)

type fakeSessionRepo struct {
	sessions map[string]*domain.Session
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: map[string]*domain.Session{}}
}

func (f *fakeSessionRepo) Upsert(_ context.Context, s *domain.Session) error {
	cp := *s
	f.sessions[s.ClientSessionID] = &cp
	return nil
}

func (f *fakeSessionRepo) GetByID(_ context.Context, _, clientSessionID string) (*domain.Session, error) {
	return f.sessions[clientSessionID], nil
}

func (f *fakeSessionRepo) ListByUser(context.Context, string) ([]*domain.Session, error) {
	out := make([]*domain.Session, 0, len(f.sessions))
	for _, s := range f.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}

func (f *fakeSessionRepo) DeleteByUser(context.Context, string) (int64, error) {
	n := int64(len(f.sessions))
	f.sessions = map[string]*domain.Session{}
	return n, nil
}

// fakeAggregates returns fixed per-session aggregates keyed by session id.
type fakeAggregates struct {
	byID map[string]*sampledomain.SessionAggregate
}

func (f *fakeAggregates) AggregateSession(_ context.Context, _, id string) (*sampledomain.SessionAggregate, error) {
	return f.byID[id], nil
}

func (f *fakeAggregates) AggregateSessions(context.Context, string) ([]*sampledomain.SessionAggregate, error) {
	out := make([]*sampledomain.SessionAggregate, 0, len(f.byID))
	for _, a := range f.byID {
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeAggregates) SummarizeRange(context.Context, string, *time.Time, *time.Time) (*sampledomain.RangeSummary, error) {
	sum := &sampledomain.RangeSummary{}
	for _, a := range f.byID {
		sum.TotalBlinks += a.TotalBlinks
		sum.SampleCount += a.SampleCount
	}
	return sum, nil
}

func newTestRouter(repo *fakeSessionRepo, aggs *fakeAggregates) http.Handler {
	if aggs.byID == nil {
		aggs.byID = map[string]*sampledomain.SessionAggregate{}
	}
	agg := service.NewAggregator(repo, aggs, time.Second)
	h := NewSessionHandler(repo, agg, nil)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(rw, req.WithContext(middleware.WithIdentity(req.Context(), "u1", false)))
		})
	})
	h.Register(r)
	return r
}

const declaredSessionJSON = `{
	"sessions": [{
		"client_session_id": "1_20250101",
		"started_at_utc": "2025-01-01T10:00:00Z",
		"ended_at_utc": "2025-01-01T10:10:00Z",
		"total_blinks": 42,
		"device_id": "dev1",
		"app_version": "1.0.0"
	}]
}`

func TestUpload_DeclaredSession(t *testing.T) {
	repo := newFakeSessionRepo()
	router := newTestRouter(repo, &fakeAggregates{})

	req := httptest.NewRequest(http.MethodPost, "/v1/sessions", bytes.NewBufferString(declaredSessionJSON))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp sessionUploadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Accepted != 1 || resp.Rejected != 0 {
		t.Errorf("accepted=%d rejected=%d, want 1/0", resp.Accepted, resp.Rejected)
	}
	s := repo.sessions["1_20250101"]
	if s == nil {
		t.Fatal("session not stored")
	}
	if s.DeclaredTotalBlinks == nil || *s.DeclaredTotalBlinks != 42 {
		t.Errorf("declared total blinks = %v, want 42", s.DeclaredTotalBlinks)
	}
}

func TestUpload_IdempotentRetransmit(t *testing.T) {
	repo := newFakeSessionRepo()
	router := newTestRouter(repo, &fakeAggregates{})

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/v1/sessions", bytes.NewBufferString(declaredSessionJSON))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("attempt %d: status = %d", i, rec.Code)
		}
	}
	if len(repo.sessions) != 1 {
		t.Errorf("stored sessions = %d, want 1 after retransmits", len(repo.sessions))
	}
}

func TestUpload_RejectsMalformedItem(t *testing.T) {
	repo := newFakeSessionRepo()
	router := newTestRouter(repo, &fakeAggregates{})

	body := `{"sessions": [
		{"client_session_id": "ok", "started_at_utc": "2025-01-01T10:00:00Z", "device_id": "dev1"},
		{"client_session_id": "", "started_at_utc": "2025-01-01T10:00:00Z", "device_id": "dev1"}
	]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/sessions", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	var resp sessionUploadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Accepted != 1 || resp.Rejected != 1 {
		t.Errorf("accepted=%d rejected=%d, want 1/1", resp.Accepted, resp.Rejected)
	}
}

func TestList_DerivedTotalsWinOverDeclared(t *testing.T) {
	repo := newFakeSessionRepo()
	started := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	declared := 42
	repo.sessions["1_20250101"] = &domain.Session{
		UserID: "u1", ClientSessionID: "1_20250101", DeviceID: "dev1",
		AppVersion: "1.0.0", StartedAt: started, DeclaredTotalBlinks: &declared,
	}
	aggs := &fakeAggregates{byID: map[string]*sampledomain.SessionAggregate{
		"1_20250101": {
			ClientSessionID: "1_20250101", TotalBlinks: 37, SampleCount: 5,
			FirstCapturedAt: started, LastCapturedAt: started.Add(10 * time.Minute),
		},
	}}
	router := newTestRouter(repo, aggs)

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var out []sessionSummaryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("got %d sessions, want 1", len(out))
	}
	if out[0].TotalBlinks != 37 {
		t.Errorf("total_blinks = %d, want sample-derived 37", out[0].TotalBlinks)
	}
	if out[0].DeclaredTotalBlinks == nil || *out[0].DeclaredTotalBlinks != 42 {
		t.Errorf("declared_total_blinks = %v, want 42", out[0].DeclaredTotalBlinks)
	}
}

func TestGet_UnknownSessionYieldsZeroSummary(t *testing.T) {
	router := newTestRouter(newFakeSessionRepo(), &fakeAggregates{})
	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/never-seen", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp sessionSummaryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.ClientSessionID != "never-seen" || resp.TotalBlinks != 0 || resp.SampleCount != 0 {
		t.Errorf("summary = %+v, want zero summary", resp)
	}
}

func TestSummary_Overall(t *testing.T) {
	repo := newFakeSessionRepo()
	started := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	aggs := &fakeAggregates{byID: map[string]*sampledomain.SessionAggregate{
		"s1": {ClientSessionID: "s1", TotalBlinks: 10, SampleCount: 2, FirstCapturedAt: started, LastCapturedAt: started},
		"s2": {ClientSessionID: "s2", TotalBlinks: 5, SampleCount: 1, FirstCapturedAt: started.Add(time.Hour), LastCapturedAt: started.Add(time.Hour)},
	}}
	router := newTestRouter(repo, aggs)

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/summary", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp overallSummaryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.TotalBlinks != 15 || resp.TotalSessions != 2 || resp.TotalSamples != 3 {
		t.Errorf("summary = %+v, want 15 blinks, 2 sessions, 3 samples", resp)
	}
}
