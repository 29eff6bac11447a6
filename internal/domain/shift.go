// Package domain defines the shift lifecycle and the clock engine that
// guards it.
package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"example.com/timeclock/internal/geo"
)

var (
	// ErrActiveShiftExists indicates the store refused to create a second
	// ACTIVE shift for the same worker.
	ErrActiveShiftExists = errors.New("worker already has an active shift")
	// ErrShiftNotActive indicates a completion targeted a shift that is no
	// longer ACTIVE.
	ErrShiftNotActive = errors.New("shift is not active")
	// ErrShiftNotFound is returned when a shift cannot be located.
	ErrShiftNotFound = errors.New("shift not found")
)

// ShiftStatus is the lifecycle state of a shift record.
type ShiftStatus string

const (
	ShiftStatusActive    ShiftStatus = "ACTIVE"
	ShiftStatusCompleted ShiftStatus = "COMPLETED"
	ShiftStatusCancelled ShiftStatus = "CANCELLED"
)

// SyncState tracks downstream event propagation for optimistic UI flows.
// The dispatcher moves pending to synced after publishing; the DLQ manager
// moves pending to failed when a shift's events exhaust their retries.
type SyncState string

const (
	SyncStatePending SyncState = "pending"
	SyncStateSynced  SyncState = "synced"
	SyncStateFailed  SyncState = "failed"
)

// ClockStamp records one end of a shift: when and where, plus an optional
// worker note.
type ClockStamp struct {
	Time     time.Time
	Location geo.Coordinate
	Note     string
}

// Shift is one clock-in-to-clock-out work session for a single worker.
// ClockOut and DurationMinutes are set exactly once, at completion.
type Shift struct {
	ID              string
	OrganizationID  string
	WorkerID        string
	Status          ShiftStatus
	ClockIn         ClockStamp
	ClockOut        *ClockStamp
	DurationMinutes *int
	SyncState       SyncState
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Cursor models the pagination token for shift history listings.
type Cursor struct {
	ClockInAt time.Time
	ID        string
}

// ShiftStore captures the persistence contract the engine depends on. The
// implementation must guarantee that CreateActive fails with
// ErrActiveShiftExists while an ACTIVE shift exists for the worker, and that
// Complete fails with ErrShiftNotActive once the shift left the ACTIVE
// state. Those two guarantees make the check-then-act sequences in the
// engine safe under concurrent requests.
type ShiftStore interface {
	FindActive(ctx context.Context, organizationID, workerID string) (*Shift, error)
	CreateActive(ctx context.Context, shift Shift) error
	Complete(ctx context.Context, organizationID, shiftID string, clockOut ClockStamp, durationMinutes int) (*Shift, error)
	ListByWorker(ctx context.Context, organizationID, workerID string, cursor *Cursor, limit int) ([]Shift, *Cursor, error)
	ActiveByOrganization(ctx context.Context, organizationID string) ([]Shift, error)
}

// PerimeterStore is the single source of truth for where an organization's
// workers may clock in. Get returns (nil, nil) when no perimeter is
// configured. Set replaces any existing perimeter atomically.
type PerimeterStore interface {
	Get(ctx context.Context, organizationID string) (*geo.Perimeter, error)
	Set(ctx context.Context, perimeter geo.Perimeter) (*geo.Perimeter, error)
}

// ValidationError reports input rejected before any state mutation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// DurationLabel renders whole minutes as the "3h 27m" form shown to workers.
func DurationLabel(minutes int) string {
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}
