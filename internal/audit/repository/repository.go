package repository

import (
	"context"

	"wellness-at-work/backend/internal/audit/domain"
)

// Repository defines persistence for audit logs.
type Repository interface {
	// Create persists the audit log. The entry must have ID set.
	Create(ctx context.Context, a *domain.AuditLog) error

	// ListByUser returns the user's audit logs, newest first, paginated by limit and offset.
	ListByUser(ctx context.Context, userID string, limit, offset int32) ([]*domain.AuditLog, error)
}
