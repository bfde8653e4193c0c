// Package authz holds request-level authorization checks shared by handlers.
package authz

import (
	"context"
	"errors"

	"wellness-at-work/backend/internal/server/middleware"
)

var (
	// ErrUnauthenticated means no identity was attached to the request context.
	ErrUnauthenticated = errors.New("user context required")
	// ErrAdminRequired means the caller is authenticated but lacks the admin claim.
	ErrAdminRequired = errors.New("admin access required")
)

// RequireUser ensures the caller is authenticated. Returns the user ID.
func RequireUser(ctx context.Context) (string, error) {
	userID, ok := middleware.GetUserID(ctx)
	if !ok || userID == "" {
		return "", ErrUnauthenticated
	}
	return userID, nil
}

// RequireAdmin ensures the caller is authenticated and carries the admin
// claim. Returns the caller's user ID on success.
func RequireAdmin(ctx context.Context) (string, error) {
	userID, err := RequireUser(ctx)
	if err != nil {
		return "", err
	}
	if !middleware.IsAdmin(ctx) {
		return "", ErrAdminRequired
	}
	return userID, nil
}
