// Package service implements the idempotent batch-ingestion pipeline for blink samples.
package service

import (
	"context"
	"errors"
	"time"

	"wellness-at-work/backend/internal/sample/domain"
)

// Request-level errors; the handler maps them to HTTP statuses.
var (
	// ErrConsentRequired rejects the whole batch before any row is touched.
	// The client must not retry until consent is (re)granted.
	ErrConsentRequired = errors.New("user consent required")
	// ErrBatchTooLarge rejects the whole batch; nothing is applied and the
	// client must split and resubmit.
	ErrBatchTooLarge = errors.New("batch exceeds maximum size")
	// ErrServiceUnavailable signals a total storage outage; retryable.
	// Items flushed before the outage stay committed.
	ErrServiceUnavailable = errors.New("storage unavailable")
)

// Store is the minimal sample store needed for ingestion.
type Store interface {
	InsertIfAbsent(ctx context.Context, s *domain.Sample) (bool, error)
	Ping(ctx context.Context) error
}

// ConsentChecker reports whether the user has granted data-collection consent.
type ConsentChecker interface {
	HasConsent(ctx context.Context, userID string) (bool, error)
}

// Ingestor validates, deduplicates, and persists sample batches.
type Ingestor struct {
	store          Store
	consent        ConsentChecker
	maxBatchSize   int
	storageTimeout time.Duration
}

// NewIngestor returns an Ingestor. maxBatchSize bounds one request;
// storageTimeout bounds each individual storage call.
func NewIngestor(store Store, consent ConsentChecker, maxBatchSize int, storageTimeout time.Duration) *Ingestor {
	if maxBatchSize <= 0 {
		maxBatchSize = 1000
	}
	if storageTimeout <= 0 {
		storageTimeout = 5 * time.Second
	}
	return &Ingestor{
		store:          store,
		consent:        consent,
		maxBatchSize:   maxBatchSize,
		storageTimeout: storageTimeout,
	}
}

// IngestBatch processes one batch for userID and returns per-item outcomes in
// submission order.
//
// The consent gate and size bound are checked before any row is written. Each
// item then validates and inserts independently: a rejected item never unwinds
// its siblings, and a duplicate idempotency key is a successful no-op so the
// client can safely retransmit a whole batch after a lost ack. Storage
// failures are retried once per item, then reported as rejected:storage_error
// for that item only.
func (i *Ingestor) IngestBatch(ctx context.Context, userID string, items []domain.Sample) (*domain.BatchResult, error) {
	ok, err := i.hasConsent(ctx, userID)
	if err != nil {
		return nil, ErrServiceUnavailable
	}
	if !ok {
		return nil, ErrConsentRequired
	}

	if len(items) > i.maxBatchSize {
		return nil, ErrBatchTooLarge
	}

	// Distinguish a total outage (whole request retryable) from per-item
	// storage faults before flushing anything.
	if err := i.ping(ctx); err != nil {
		return nil, ErrServiceUnavailable
	}

	res := &domain.BatchResult{Results: make([]domain.ItemResult, len(items))}
	for idx := range items {
		s := items[idx]
		s.UserID = userID
		res.Results[idx] = i.ingestOne(ctx, idx, &s)
		switch res.Results[idx].Status {
		case domain.StatusInserted:
			res.Inserted++
		case domain.StatusDuplicate:
			res.Duplicates++
		case domain.StatusRejected:
			res.Rejected++
		}
	}
	return res, nil
}

func (i *Ingestor) ingestOne(ctx context.Context, idx int, s *domain.Sample) domain.ItemResult {
	if err := s.Validate(); err != nil {
		return domain.ItemResult{Index: idx, Status: domain.StatusRejected, Reason: err.Error()}
	}

	inserted, err := i.insert(ctx, s)
	if err != nil {
		// One internal retry; a concurrent racer inserting the same key
		// surfaces here as inserted=false on the retry, which is correct.
		inserted, err = i.insert(ctx, s)
	}
	if err != nil {
		return domain.ItemResult{Index: idx, Status: domain.StatusRejected, Reason: domain.ReasonStorageError}
	}
	if inserted {
		return domain.ItemResult{Index: idx, Status: domain.StatusInserted}
	}
	return domain.ItemResult{Index: idx, Status: domain.StatusDuplicate}
}

func (i *Ingestor) insert(ctx context.Context, s *domain.Sample) (bool, error) {
	callCtx, cancel := context.WithTimeout(ctx, i.storageTimeout)
	defer cancel()
	return i.store.InsertIfAbsent(callCtx, s)
}

func (i *Ingestor) hasConsent(ctx context.Context, userID string) (bool, error) {
	callCtx, cancel := context.WithTimeout(ctx, i.storageTimeout)
	defer cancel()
	return i.consent.HasConsent(callCtx, userID)
}

func (i *Ingestor) ping(ctx context.Context) error {
	callCtx, cancel := context.WithTimeout(ctx, i.storageTimeout)
	defer cancel()
	return i.store.Ping(callCtx)
}
