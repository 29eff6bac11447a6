// Package events defines the event payloads emitted through the outbox.
package events

import "time"

// ShiftClockedIn is emitted when a worker starts a shift.
type ShiftClockedIn struct {
	ShiftID        string    `json:"shift_id"`
	OrganizationID string    `json:"organization_id"`
	WorkerID       string    `json:"worker_id"`
	ClockInAt      time.Time `json:"clock_in_at"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	Note           string    `json:"note,omitempty"`
}

// ShiftClockedOut is emitted when a worker completes a shift.
type ShiftClockedOut struct {
	ShiftID         string    `json:"shift_id"`
	OrganizationID  string    `json:"organization_id"`
	WorkerID        string    `json:"worker_id"`
	ClockOutAt      time.Time `json:"clock_out_at"`
	Latitude        float64   `json:"latitude"`
	Longitude       float64   `json:"longitude"`
	DurationMinutes int       `json:"duration_minutes"`
	Note            string    `json:"note,omitempty"`
}

// ShiftStateChanged tracks sync-state transitions (pending, synced, failed)
// for optimistic UI flows in the offline-capable client.
type ShiftStateChanged struct {
	ShiftID        string    `json:"shift_id"`
	OrganizationID string    `json:"organization_id"`
	WorkerID       string    `json:"worker_id"`
	State          string    `json:"state"`
	OccurredAt     time.Time `json:"occurred_at"`
	Reason         string    `json:"reason,omitempty"`
}
