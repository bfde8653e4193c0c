package authz

import (
	"context"
	"errors"
	"testing"

	"wellness-at-work/backend/internal/server/middleware"
)

func TestRequireUser(t *testing.T) {
	ctx := middleware.WithIdentity(context.Background(), "u1", false)
	userID, err := RequireUser(ctx)
	if err != nil {
		t.Fatalf("RequireUser: %v", err)
	}
	if userID != "u1" {
		t.Errorf("userID = %q, want u1", userID)
	}
}

func TestRequireUser_NoIdentity(t *testing.T) {
	_, err := RequireUser(context.Background())
	if !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("err = %v, want ErrUnauthenticated", err)
	}
}

func TestRequireAdmin(t *testing.T) {
	ctx := middleware.WithIdentity(context.Background(), "admin-1", true)
	userID, err := RequireAdmin(ctx)
	if err != nil {
		t.Fatalf("RequireAdmin: %v", err)
	}
	if userID != "admin-1" {
		t.Errorf("userID = %q, want admin-1", userID)
	}
}

func TestRequireAdmin_NonAdmin(t *testing.T) {
	ctx := middleware.WithIdentity(context.Background(), "u1", false)
	_, err := RequireAdmin(ctx)
	if !errors.Is(err, ErrAdminRequired) {
		t.Errorf("err = %v, want ErrAdminRequired", err)
	}
}

func TestRequireAdmin_Unauthenticated(t *testing.T) {
	_, err := RequireAdmin(context.Background())
	if !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("err = %v, want ErrUnauthenticated", err)
	}
}
