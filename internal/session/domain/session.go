// Package domain defines tracking sessions and their derived summaries.
package domain

import (
	"errors"
	"time"
)

// Session is the client-declared metadata for one contiguous tracking
// interval. It is a rebuildable cache keyed by (UserID, ClientSessionID):
// derived statistics always come from the stored samples, never from here.
type Session struct {
	UserID              string
	ClientSessionID     string
	DeviceID            string
	AppVersion          string
	StartedAt           time.Time
	EndedAt             *time.Time // nil while the session is still active
	DeclaredTotalBlinks *int       // client's own count; informational only
	UpdatedAt           time.Time
}

// Validate checks a client-declared session for persistence.
func (s *Session) Validate() error {
	if s.ClientSessionID == "" {
		return errors.New("client_session_id is required")
	}
	if s.DeviceID == "" {
		return errors.New("device_id is required")
	}
	if s.StartedAt.IsZero() {
		return errors.New("started_at_utc is required")
	}
	if s.EndedAt != nil && s.EndedAt.Before(s.StartedAt) {
		return errors.New("ended_at_utc must not precede started_at_utc")
	}
	return nil
}

// Summary is a session plus its sample-derived aggregates. TotalBlinks is the
// exact sum over member samples regardless of how many batches delivered
// them; averages are nil when no member sample carries the field.
type Summary struct {
	ClientSessionID     string
	DeviceID            string
	AppVersion          string
	StartedAt           time.Time
	EndedAt             *time.Time
	TotalBlinks         int64
	SampleCount         int64
	AvgCPUPercent       *float64
	AvgMemoryMB         *float64
	DeclaredTotalBlinks *int
}

// OverallSummary aggregates across all of a user's sessions for the dashboard.
type OverallSummary struct {
	TotalBlinks   int64
	TotalSessions int64
	TotalSamples  int64
	AvgCPUPercent *float64
	AvgMemoryMB   *float64
}
