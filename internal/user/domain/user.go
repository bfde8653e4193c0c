// Package domain defines the core user entity.
package domain

import (
	"errors"
	"time"
)

// User is the core user entity. ConsentGrantedAt is nil until the user
// accepts telemetry collection; no sample is stored before that.
type User struct {
	ID               string
	Email            string
	Name             string
	PasswordHash     string
	IsAdmin          bool
	ConsentGrantedAt *time.Time
	CreatedAt        time.Time
}

// HasConsent reports whether the user has granted telemetry consent.
func (u *User) HasConsent() bool {
	return u.ConsentGrantedAt != nil
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.Email == "" {
		return errors.New("email is required")
	}
	// The users.name column is NOT NULL; catch it here, not as a constraint error.
	if u.Name == "" {
		return errors.New("name is required")
	}
	return nil
}
