package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"example.com/timeclock/internal/geo"
)

// maxNoteLength caps clock notes at 500 characters, not bytes. Longer notes
// are rejected rather than truncated so nothing is lost silently.
const maxNoteLength = 500

// Outcome is the business result of a clock operation. Outcomes are normal
// return values, not errors; only storage and validation failures surface
// through the error channel.
type Outcome string

const (
	OutcomeSuccess               Outcome = "success"
	OutcomeAlreadyClockedIn      Outcome = "already_clocked_in"
	OutcomeNoActiveShift         Outcome = "no_active_shift"
	OutcomeNoPerimeterConfigured Outcome = "no_perimeter_configured"
	OutcomeOutsidePerimeter      Outcome = "outside_perimeter"
)

// Engine is the clock-in/clock-out state machine. All collaborators are
// injected; the engine holds no mutable state of its own, so a single
// instance serves concurrent requests.
type Engine struct {
	shifts     ShiftStore
	perimeters PerimeterStore
	now        func() time.Time
}

// NewEngine constructs an Engine over the provided stores.
func NewEngine(shifts ShiftStore, perimeters PerimeterStore) *Engine {
	return &Engine{
		shifts:     shifts,
		perimeters: perimeters,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// ClockInInput carries a clock-in request from the API layer. Identity
// fields come from verified claims, never from the request body.
type ClockInInput struct {
	OrganizationID string
	WorkerID       string
	Location       geo.Coordinate
	Note           string
}

// ClockOutInput carries a clock-out request from the API layer.
type ClockOutInput struct {
	OrganizationID string
	WorkerID       string
	Location       geo.Coordinate
	Note           string
}

// ClockInResult reports the outcome of a clock-in attempt. DistanceMeters is
// populated only for OutcomeOutsidePerimeter so the UI can tell the worker
// how far off they are.
type ClockInResult struct {
	Outcome        Outcome
	Shift          *Shift
	DistanceMeters float64
	Message        string
}

// ClockOutResult reports the outcome of a clock-out attempt.
type ClockOutResult struct {
	Outcome       Outcome
	Shift         *Shift
	DurationLabel string
	Message       string
}

// ClockIn attempts the OFF_SHIFT -> ON_SHIFT transition. Exactly one of N
// concurrent attempts for the same worker succeeds: the store's uniqueness
// guarantee turns the losers' creates into ErrActiveShiftExists, which is
// reported as OutcomeAlreadyClockedIn.
func (e *Engine) ClockIn(ctx context.Context, input ClockInInput) (*ClockInResult, error) {
	if err := validateClockInput(input.Location, input.Note); err != nil {
		return nil, err
	}

	existing, err := e.shifts.FindActive(ctx, input.OrganizationID, input.WorkerID)
	if err != nil {
		return nil, fmt.Errorf("find active shift: %w", err)
	}
	if existing != nil {
		return &ClockInResult{
			Outcome: OutcomeAlreadyClockedIn,
			Shift:   existing,
			Message: "You already have an active shift. Please clock out first.",
		}, nil
	}

	perimeter, err := e.perimeters.Get(ctx, input.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("load perimeter: %w", err)
	}
	if perimeter == nil {
		return &ClockInResult{
			Outcome: OutcomeNoPerimeterConfigured,
			Message: "No location perimeter is set for your organization. Please contact your manager.",
		}, nil
	}

	if !perimeter.Contains(input.Location) {
		return &ClockInResult{
			Outcome:        OutcomeOutsidePerimeter,
			DistanceMeters: perimeter.Distance(input.Location),
			Message:        "You are outside the designated perimeter and cannot clock in.",
		}, nil
	}

	now := e.now()
	shift := Shift{
		ID:             uuid.NewString(),
		OrganizationID: input.OrganizationID,
		WorkerID:       input.WorkerID,
		Status:         ShiftStatusActive,
		ClockIn: ClockStamp{
			Time:     now,
			Location: input.Location,
			Note:     input.Note,
		},
		SyncState: SyncStatePending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := e.shifts.CreateActive(ctx, shift); err != nil {
		if errors.Is(err, ErrActiveShiftExists) {
			// Lost the race to a concurrent clock-in.
			winner, findErr := e.shifts.FindActive(ctx, input.OrganizationID, input.WorkerID)
			if findErr != nil {
				return nil, fmt.Errorf("find winning shift: %w", findErr)
			}
			return &ClockInResult{
				Outcome: OutcomeAlreadyClockedIn,
				Shift:   winner,
				Message: "You already have an active shift. Please clock out first.",
			}, nil
		}
		return nil, fmt.Errorf("create shift: %w", err)
	}

	return &ClockInResult{
		Outcome: OutcomeSuccess,
		Shift:   &shift,
		Message: "Successfully clocked in!",
	}, nil
}

// ClockOut attempts the ON_SHIFT -> OFF_SHIFT transition. There is no
// perimeter check on exit: a worker whose device lost GPS accuracy away
// from the site must still be able to end the shift.
func (e *Engine) ClockOut(ctx context.Context, input ClockOutInput) (*ClockOutResult, error) {
	if err := validateClockInput(input.Location, input.Note); err != nil {
		return nil, err
	}

	active, err := e.shifts.FindActive(ctx, input.OrganizationID, input.WorkerID)
	if err != nil {
		return nil, fmt.Errorf("find active shift: %w", err)
	}
	if active == nil {
		return &ClockOutResult{
			Outcome: OutcomeNoActiveShift,
			Message: "No active shift found. Please clock in first.",
		}, nil
	}

	now := e.now()
	elapsed := now.Sub(active.ClockIn.Time)
	if elapsed < 0 {
		elapsed = 0
	}
	durationMinutes := int(elapsed / time.Minute)

	stamp := ClockStamp{
		Time:     now,
		Location: input.Location,
		Note:     input.Note,
	}

	completed, err := e.shifts.Complete(ctx, input.OrganizationID, active.ID, stamp, durationMinutes)
	if err != nil {
		if errors.Is(err, ErrShiftNotActive) || errors.Is(err, ErrShiftNotFound) {
			// A concurrent clock-out finished the shift first.
			return &ClockOutResult{
				Outcome: OutcomeNoActiveShift,
				Message: "No active shift found. Please clock in first.",
			}, nil
		}
		return nil, fmt.Errorf("complete shift: %w", err)
	}

	label := DurationLabel(durationMinutes)
	return &ClockOutResult{
		Outcome:       OutcomeSuccess,
		Shift:         completed,
		DurationLabel: label,
		Message:       fmt.Sprintf("Successfully clocked out! Total time: %s", label),
	}, nil
}

// ActiveShift returns the worker's ACTIVE shift, or nil when off shift.
func (e *Engine) ActiveShift(ctx context.Context, organizationID, workerID string) (*Shift, error) {
	return e.shifts.FindActive(ctx, organizationID, workerID)
}

// ListShifts returns a worker's shift history, newest first.
func (e *Engine) ListShifts(ctx context.Context, organizationID, workerID string, cursor *Cursor, limit int) ([]Shift, *Cursor, error) {
	return e.shifts.ListByWorker(ctx, organizationID, workerID, cursor, limit)
}

// ActiveRoster returns every ACTIVE shift in the organization for the
// manager live-status view.
func (e *Engine) ActiveRoster(ctx context.Context, organizationID string) ([]Shift, error) {
	return e.shifts.ActiveByOrganization(ctx, organizationID)
}

// Perimeter returns the organization's configured perimeter, or nil.
func (e *Engine) Perimeter(ctx context.Context, organizationID string) (*geo.Perimeter, error) {
	return e.perimeters.Get(ctx, organizationID)
}

// UpdatePerimeter replaces the organization's geofence. Manager-only at the
// API boundary.
func (e *Engine) UpdatePerimeter(ctx context.Context, perimeter geo.Perimeter) (*geo.Perimeter, error) {
	if err := perimeter.Center.Validate(); err != nil {
		return nil, &ValidationError{Field: "center", Reason: err.Error()}
	}
	if perimeter.RadiusMeters <= 0 {
		return nil, &ValidationError{Field: "radius_meters", Reason: "must be greater than zero"}
	}
	if perimeter.DisplayName == "" {
		return nil, &ValidationError{Field: "display_name", Reason: "is required"}
	}
	return e.perimeters.Set(ctx, perimeter)
}

func validateClockInput(location geo.Coordinate, note string) error {
	if err := location.Validate(); err != nil {
		return &ValidationError{Field: "location", Reason: err.Error()}
	}
	if utf8.RuneCountInString(note) > maxNoteLength {
		return &ValidationError{Field: "note", Reason: fmt.Sprintf("exceeds %d characters", maxNoteLength)}
	}
	return nil
}
