package repository

import (
	"context"
	"time"

	"wellness-at-work/backend/internal/sample/domain"
)

// ListFilter narrows and pages a raw-sample read.
type ListFilter struct {
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
	Descending bool
}

// Repository defines persistence for blink samples. Samples are insert-only;
// the aggregate methods read, never mutate.
type Repository interface {
	// InsertIfAbsent persists the sample unless a row with the same
	// (user_id, device_id, client_sequence) already exists. Returns whether a
	// new row was written. The insert is atomic: of two concurrent submissions
	// of the same key exactly one observes inserted=true.
	InsertIfAbsent(ctx context.Context, s *domain.Sample) (inserted bool, err error)

	// ListByUser returns the user's samples ordered by captured_at (ascending
	// unless f.Descending), ties broken by device_id then client_sequence.
	ListByUser(ctx context.Context, userID string, f ListFilter) ([]*domain.Sample, error)

	// SummarizeRange aggregates the user's samples between from and to
	// (either may be nil). Zero samples yield a zero summary, not an error.
	SummarizeRange(ctx context.Context, userID string, from, to *time.Time) (*domain.RangeSummary, error)

	// AggregateSessions groups the user's session-tagged samples by
	// client_session_id, most recently started first.
	AggregateSessions(ctx context.Context, userID string) ([]*domain.SessionAggregate, error)

	// AggregateSession aggregates one session's samples, or nil if the session
	// has no stored samples.
	AggregateSession(ctx context.Context, userID, clientSessionID string) (*domain.SessionAggregate, error)

	// DeleteByUser removes all of the user's samples (right-to-erasure).
	DeleteByUser(ctx context.Context, userID string) (int64, error)

	// Ping verifies the store is reachable; used to distinguish a total outage
	// from per-item failures during batch ingestion.
	Ping(ctx context.Context) error
}
