package repository

import (
	"context"
	"time"

	"wellness-at-work/backend/internal/user/domain"
)

// Repository defines persistence for users.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	// SetPassword replaces the user's password hash. No-op if the user does not exist.
	SetPassword(ctx context.Context, userID, passwordHash string) error
	// GrantConsent records telemetry consent at the given time, only if not already granted.
	GrantConsent(ctx context.Context, userID string, at time.Time) error
	// HasConsent reports whether the user exists and has granted telemetry consent.
	HasConsent(ctx context.Context, userID string) (bool, error)
	// Delete removes the user row. Samples and sessions cascade at the schema level.
	Delete(ctx context.Context, userID string) error
}
