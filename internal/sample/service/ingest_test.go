package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"wellness-at-work/backend/internal/sample/domain"
)

type sampleKey struct {
	userID   string
	deviceID string
	seq      int64
}

// fakeStore keeps samples keyed by the idempotency tuple, mirroring the
// unique-constraint behavior of the Postgres store.
type fakeStore struct {
	rows     map[sampleKey]domain.Sample
	pingErr  error
	failures map[sampleKey]int // remaining InsertIfAbsent errors per key
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: map[sampleKey]domain.Sample{}, failures: map[sampleKey]int{}}
}

func (f *fakeStore) InsertIfAbsent(_ context.Context, s *domain.Sample) (bool, error) {
	k := sampleKey{s.UserID, s.DeviceID, s.ClientSequence}
	if n := f.failures[k]; n > 0 {
		f.failures[k] = n - 1
		return false, errors.New("boom")
	}
	if _, ok := f.rows[k]; ok {
		return false, nil
	}
	f.rows[k] = *s
	return true, nil
}

func (f *fakeStore) Ping(context.Context) error { return f.pingErr }

func (f *fakeStore) totalBlinks(sessionID string) int {
	total := 0
	for _, s := range f.rows {
		if s.ClientSessionID != nil && *s.ClientSessionID == sessionID {
			total += s.BlinkCount
		}
	}
	return total
}

type fakeConsent struct {
	granted bool
	err     error
}

func (f *fakeConsent) HasConsent(context.Context, string) (bool, error) {
	return f.granted, f.err
}

func newTestIngestor(store *fakeStore, consent bool) *Ingestor {
	return NewIngestor(store, &fakeConsent{granted: consent}, 1000, time.Second)
}

func sampleItem(deviceID string, seq int64, blinks int, sessionID string) domain.Sample {
	s := domain.Sample{
		DeviceID:       deviceID,
		ClientSequence: seq,
		CapturedAt:     time.Date(2025, 1, 1, 10, 0, int(seq), 0, time.UTC),
		BlinkCount:     blinks,
		AppVersion:     "1.0.0",
	}
	if sessionID != "" {
		s.ClientSessionID = &sessionID
	}
	return s
}

func TestIngestBatch_Idempotence(t *testing.T) {
	store := newFakeStore()
	ing := newTestIngestor(store, true)
	item := sampleItem("d1", 1, 5, "s1")

	res, err := ing.IngestBatch(context.Background(), "u1", []domain.Sample{item})
	if err != nil {
		t.Fatalf("IngestBatch: %v", err)
	}
	if res.Results[0].Status != domain.StatusInserted {
		t.Fatalf("first submit = %v, want inserted", res.Results[0].Status)
	}

	// Resubmit the same key with different content; first write wins and the
	// item still counts as delivered.
	changed := item
	changed.BlinkCount = 99
	for i := 0; i < 3; i++ {
		res, err = ing.IngestBatch(context.Background(), "u1", []domain.Sample{changed})
		if err != nil {
			t.Fatalf("resubmit %d: %v", i, err)
		}
		if res.Results[0].Status != domain.StatusDuplicate {
			t.Fatalf("resubmit %d = %v, want duplicate", i, res.Results[0].Status)
		}
	}
	if len(store.rows) != 1 {
		t.Errorf("stored rows = %d, want 1", len(store.rows))
	}
	stored := store.rows[sampleKey{"u1", "d1", 1}]
	if stored.BlinkCount != 5 {
		t.Errorf("stored blink_count = %d, want first-write value 5", stored.BlinkCount)
	}
}

func TestIngestBatch_OrderIndependence(t *testing.T) {
	items := make([]domain.Sample, 0, 50)
	for i := 1; i <= 50; i++ {
		items = append(items, sampleItem("d1", int64(i), i, "s1"))
	}
	want := 0
	for _, it := range items {
		want += it.BlinkCount
	}

	// One batch, singleton batches, and reverse order must agree.
	groupings := []func(*Ingestor) error{
		func(ing *Ingestor) error {
			_, err := ing.IngestBatch(context.Background(), "u1", items)
			return err
		},
		func(ing *Ingestor) error {
			for _, it := range items {
				if _, err := ing.IngestBatch(context.Background(), "u1", []domain.Sample{it}); err != nil {
					return err
				}
			}
			return nil
		},
		func(ing *Ingestor) error {
			for i := len(items) - 1; i >= 0; i-- {
				if _, err := ing.IngestBatch(context.Background(), "u1", []domain.Sample{items[i]}); err != nil {
					return err
				}
			}
			return nil
		},
	}
	for i, run := range groupings {
		store := newFakeStore()
		if err := run(newTestIngestor(store, true)); err != nil {
			t.Fatalf("grouping %d: %v", i, err)
		}
		if got := store.totalBlinks("s1"); got != want {
			t.Errorf("grouping %d: total blinks = %d, want %d", i, got, want)
		}
	}
}

func TestIngestBatch_PerItemAtomicity(t *testing.T) {
	store := newFakeStore()
	ing := newTestIngestor(store, true)

	items := []domain.Sample{
		sampleItem("d1", 1, 1, ""),
		sampleItem("d1", 2, 2, ""),
		sampleItem("", 3, 3, ""), // invalid: missing device_id
		sampleItem("d1", 4, 4, ""),
		sampleItem("d1", 5, 5, ""),
	}
	res, err := ing.IngestBatch(context.Background(), "u1", items)
	if err != nil {
		t.Fatalf("IngestBatch: %v", err)
	}
	if len(res.Results) != 5 {
		t.Fatalf("results = %d entries, want 5", len(res.Results))
	}
	for _, idx := range []int{0, 1, 3, 4} {
		if res.Results[idx].Status != domain.StatusInserted {
			t.Errorf("item %d = %v, want inserted", idx, res.Results[idx].Status)
		}
	}
	if res.Results[2].Status != domain.StatusRejected {
		t.Errorf("item 2 = %v, want rejected", res.Results[2].Status)
	}
	if res.Results[2].Reason != domain.ErrMissingDeviceID.Error() {
		t.Errorf("item 2 reason = %q, want %q", res.Results[2].Reason, domain.ErrMissingDeviceID.Error())
	}
	if res.Inserted != 4 || res.Rejected != 1 {
		t.Errorf("counts = %d inserted, %d rejected; want 4, 1", res.Inserted, res.Rejected)
	}
	if len(store.rows) != 4 {
		t.Errorf("stored rows = %d, want 4", len(store.rows))
	}
}

func TestIngestBatch_ConsentGate(t *testing.T) {
	store := newFakeStore()
	ing := newTestIngestor(store, false)

	_, err := ing.IngestBatch(context.Background(), "u1", []domain.Sample{
		sampleItem("d1", 1, 5, "s1"),
	})
	if !errors.Is(err, ErrConsentRequired) {
		t.Fatalf("err = %v, want ErrConsentRequired", err)
	}
	if len(store.rows) != 0 {
		t.Errorf("stored rows = %d, want 0", len(store.rows))
	}
}

func TestIngestBatch_ConsentCheckFailure(t *testing.T) {
	ing := NewIngestor(newFakeStore(), &fakeConsent{err: errors.New("db down")}, 1000, time.Second)
	_, err := ing.IngestBatch(context.Background(), "u1", nil)
	if !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("err = %v, want ErrServiceUnavailable", err)
	}
}

func TestIngestBatch_BatchTooLarge(t *testing.T) {
	store := newFakeStore()
	ing := NewIngestor(store, &fakeConsent{granted: true}, 2, time.Second)

	items := []domain.Sample{
		sampleItem("d1", 1, 1, ""),
		sampleItem("d1", 2, 2, ""),
		sampleItem("d1", 3, 3, ""),
	}
	_, err := ing.IngestBatch(context.Background(), "u1", items)
	if !errors.Is(err, ErrBatchTooLarge) {
		t.Fatalf("err = %v, want ErrBatchTooLarge", err)
	}
	if len(store.rows) != 0 {
		t.Errorf("stored rows = %d, want 0 (nothing partially applied)", len(store.rows))
	}
}

func TestIngestBatch_TotalOutage(t *testing.T) {
	store := newFakeStore()
	store.pingErr = errors.New("connection refused")
	ing := newTestIngestor(store, true)

	_, err := ing.IngestBatch(context.Background(), "u1", []domain.Sample{sampleItem("d1", 1, 1, "")})
	if !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("err = %v, want ErrServiceUnavailable", err)
	}
}

func TestIngestBatch_StorageErrorRetriedOnce(t *testing.T) {
	store := newFakeStore()
	ing := newTestIngestor(store, true)

	// First attempt fails, retry succeeds.
	store.failures[sampleKey{"u1", "d1", 1}] = 1
	// Both attempts fail.
	store.failures[sampleKey{"u1", "d1", 2}] = 2

	res, err := ing.IngestBatch(context.Background(), "u1", []domain.Sample{
		sampleItem("d1", 1, 1, ""),
		sampleItem("d1", 2, 2, ""),
		sampleItem("d1", 3, 3, ""),
	})
	if err != nil {
		t.Fatalf("IngestBatch: %v", err)
	}
	if res.Results[0].Status != domain.StatusInserted {
		t.Errorf("item 0 = %v, want inserted after retry", res.Results[0].Status)
	}
	if res.Results[1].Status != domain.StatusRejected || res.Results[1].Reason != domain.ReasonStorageError {
		t.Errorf("item 1 = %v/%q, want rejected/storage_error", res.Results[1].Status, res.Results[1].Reason)
	}
	if res.Results[2].Status != domain.StatusInserted {
		t.Errorf("item 2 = %v, want inserted (siblings unaffected)", res.Results[2].Status)
	}
}

// Lost-ack retransmission: the client resends an identical batch and must see
// every item as duplicate with the aggregate unchanged.
func TestIngestBatch_RetransmissionScenario(t *testing.T) {
	store := newFakeStore()
	ing := newTestIngestor(store, true)

	batch := []domain.Sample{
		sampleItem("d1", 1, 5, "s1"),
		sampleItem("d1", 2, 3, "s1"),
	}
	if _, err := ing.IngestBatch(context.Background(), "u1", batch); err != nil {
		t.Fatalf("first send: %v", err)
	}
	if got := store.totalBlinks("s1"); got != 8 {
		t.Fatalf("total blinks = %d, want 8", got)
	}

	res, err := ing.IngestBatch(context.Background(), "u1", batch)
	if err != nil {
		t.Fatalf("resend: %v", err)
	}
	for i, r := range res.Results {
		if r.Status != domain.StatusDuplicate {
			t.Errorf("resend item %d = %v, want duplicate", i, r.Status)
		}
	}
	if got := store.totalBlinks("s1"); got != 8 {
		t.Errorf("total blinks after resend = %d, want 8", got)
	}
}

func TestIngestBatch_OutOfOrderScenario(t *testing.T) {
	store := newFakeStore()
	ing := newTestIngestor(store, true)

	// Batch A carries seq 5, batch B (arriving later) carries seq 1.
	a := []domain.Sample{sampleItem("d1", 5, 7, "s1")}
	b := []domain.Sample{sampleItem("d1", 1, 2, "s1")}
	if _, err := ing.IngestBatch(context.Background(), "u1", a); err != nil {
		t.Fatalf("batch A: %v", err)
	}
	if _, err := ing.IngestBatch(context.Background(), "u1", b); err != nil {
		t.Fatalf("batch B: %v", err)
	}
	if got := store.totalBlinks("s1"); got != 9 {
		t.Errorf("total blinks = %d, want 9", got)
	}
}

func TestIngestBatch_EmptyBatch(t *testing.T) {
	ing := newTestIngestor(newFakeStore(), true)
	res, err := ing.IngestBatch(context.Background(), "u1", nil)
	if err != nil {
		t.Fatalf("IngestBatch: %v", err)
	}
	if len(res.Results) != 0 || res.Inserted != 0 {
		t.Errorf("result = %+v, want empty", res)
	}
}

func TestIngestBatch_ResultsInSubmissionOrder(t *testing.T) {
	store := newFakeStore()
	ing := newTestIngestor(store, true)
	var items []domain.Sample
	for i := 10; i >= 1; i-- { // deliberately descending sequences
		items = append(items, sampleItem("d1", int64(i), i, ""))
	}
	res, err := ing.IngestBatch(context.Background(), "u1", items)
	if err != nil {
		t.Fatalf("IngestBatch: %v", err)
	}
	for i, r := range res.Results {
		if r.Index != i {
			t.Fatalf("result %d has index %d; want submission order preserved", i, r.Index)
		}
	}
}

func ExampleIngestor_IngestBatch() {
	ing := NewIngestor(newFakeStore(), &fakeConsent{granted: true}, 1000, time.Second)
	res, _ := ing.IngestBatch(context.Background(), "u1", []domain.Sample{
		sampleItem("d1", 1, 5, "s1"),
	})
	fmt.Println(res.Results[0].Status)
	// Output: inserted
}
