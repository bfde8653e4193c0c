// Package domain defines the blink sample entity and its batch-ingestion outcomes.
package domain

import (
	"errors"
	"time"
)

// Energy impact values reported by the desktop client.
const (
	EnergyImpactLow    = "Low"
	EnergyImpactMedium = "Medium"
	EnergyImpactHigh   = "High"
)

// Validation reasons surfaced as the per-item rejection reason.
var (
	ErrMissingDeviceID       = errors.New("missing_device_id")
	ErrMissingClientSequence = errors.New("missing_client_sequence")
	ErrMissingCapturedAt     = errors.New("missing_captured_at")
	ErrNegativeBlinkCount    = errors.New("negative_blink_count")
	ErrInvalidCPUPercent     = errors.New("invalid_cpu_percent")
	ErrInvalidMemoryMB       = errors.New("invalid_memory_mb")
	ErrInvalidEnergyImpact   = errors.New("invalid_energy_impact")
)

// Sample is one telemetry observation captured by the desktop client.
// The tuple (UserID, DeviceID, ClientSequence) is the idempotency key:
// re-submitting it must not create a second row or change the stored one.
// Rows are immutable after insert and removed only by user erasure.
type Sample struct {
	ID              int64
	UserID          string
	DeviceID        string
	ClientSequence  int64
	ClientSessionID *string // nil for samples captured outside a tracking session
	CapturedAt      time.Time
	BlinkCount      int
	AppVersion      string
	CPUPercent      *float64 // 0–100, nil when the client did not report it
	MemoryMB        *float64
	EnergyImpact    *string // Low|Medium|High
	CreatedAt       time.Time
}

// Validate checks a client-submitted sample. The returned error message is the
// machine-readable rejection reason for the per-item batch result.
func (s *Sample) Validate() error {
	if s.DeviceID == "" {
		return ErrMissingDeviceID
	}
	if s.ClientSequence <= 0 {
		return ErrMissingClientSequence
	}
	if s.CapturedAt.IsZero() {
		return ErrMissingCapturedAt
	}
	if s.BlinkCount < 0 {
		return ErrNegativeBlinkCount
	}
	if s.CPUPercent != nil && (*s.CPUPercent < 0 || *s.CPUPercent > 100) {
		return ErrInvalidCPUPercent
	}
	if s.MemoryMB != nil && *s.MemoryMB < 0 {
		return ErrInvalidMemoryMB
	}
	if s.EnergyImpact != nil {
		switch *s.EnergyImpact {
		case EnergyImpactLow, EnergyImpactMedium, EnergyImpactHigh:
		default:
			return ErrInvalidEnergyImpact
		}
	}
	return nil
}

// ItemStatus is the per-item outcome of a batch submission.
type ItemStatus string

const (
	// StatusInserted means the sample was persisted for the first time.
	StatusInserted ItemStatus = "inserted"
	// StatusDuplicate means a row with the same idempotency key already
	// existed; the item counts as delivered and the client may advance its
	// watermark past it.
	StatusDuplicate ItemStatus = "duplicate"
	// StatusRejected means the item was not persisted; Reason says why and the
	// client must keep it queued for retry (or fix it) rather than advance.
	StatusRejected ItemStatus = "rejected"
)

// ReasonStorageError marks an item that failed persistence after the internal retry.
const ReasonStorageError = "storage_error"

// ItemResult is the outcome for one submitted item, reported in submission order.
type ItemResult struct {
	Index  int
	Status ItemStatus
	Reason string // set only when Status is StatusRejected
}

// BatchResult is the outcome of one batch submission.
type BatchResult struct {
	Results    []ItemResult
	Inserted   int
	Duplicates int
	Rejected   int
}

// RangeSummary aggregates a user's samples over an optional date range.
// Averages are nil when no sample in range carries the field, so a missing
// metric is never reported as a misleading zero.
type RangeSummary struct {
	TotalBlinks   int64
	SampleCount   int64
	AvgBlinks     *float64
	AvgCPUPercent *float64
	AvgMemoryMB   *float64
}

// SessionAggregate is the order-independent reduction over the stored samples
// sharing one client_session_id. Recomputing it after any batch split or
// reordering of the same sample set yields identical values.
type SessionAggregate struct {
	ClientSessionID string
	TotalBlinks     int64
	SampleCount     int64
	FirstCapturedAt time.Time
	LastCapturedAt  time.Time
	AvgCPUPercent   *float64
	AvgMemoryMB     *float64
}
