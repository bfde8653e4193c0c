package repository

import (
	"context"

	"wellness-at-work/backend/internal/session/domain"
)

// Repository defines persistence for client-declared tracking sessions.
type Repository interface {
	// Upsert writes the declared session, replacing any previous declaration
	// for the same (user_id, client_session_id). Last writer wins; safe to
	// retransmit.
	Upsert(ctx context.Context, s *domain.Session) error

	// GetByID returns the declared session, or nil if the client never
	// declared one. It returns an error only for database failures.
	GetByID(ctx context.Context, userID, clientSessionID string) (*domain.Session, error)

	// ListByUser returns the user's declared sessions, most recently started first.
	ListByUser(ctx context.Context, userID string) ([]*domain.Session, error)

	// DeleteByUser removes all declared sessions for the user (right-to-erasure).
	DeleteByUser(ctx context.Context, userID string) (int64, error)
}
