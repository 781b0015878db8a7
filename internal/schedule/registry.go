package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrDepartmentNotFound  = errors.New("department not found")
	ErrSlotNotFound        = errors.New("slot not found")
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrVersionConflict means the slot moved on since the caller last read it:
	// either the version is stale or the slot is no longer in the expected
	// state. Callers reselect and retry; the transition is never forced.
	ErrVersionConflict = errors.New("slot version conflict")

	// ErrAppointmentNotCancellable means the appointment is already cancelled.
	ErrAppointmentNotCancellable = errors.New("appointment cannot be cancelled")
)

// NewAppointment carries the data Commit needs to create the appointment row
// in the same transaction as the slot transition.
type NewAppointment struct {
	PatientID    string
	PatientEmail *string
}

// BookingStats aggregates appointment counts for the operations view.
type BookingStats struct {
	Total        int64
	ByStatus     map[AppointmentStatus]int64
	ByDepartment map[string]int64
}

// Registry is the authoritative model of departments, doctors and slots.
// All slot transitions are guarded by a per-slot compare-and-set on Version;
// a mismatch reports ErrVersionConflict and changes nothing.
type Registry interface {
	ListDepartments(ctx context.Context) ([]Department, error)
	GetDepartment(ctx context.Context, id string) (*Department, error)

	// ListAvailable returns FREE slots for the department on the given UTC
	// day, ordered by start time then slot id ascending. limit <= 0 means no
	// limit; a positive limit lets callers read a prefix of the schedule.
	ListAvailable(ctx context.Context, departmentID string, day time.Time, limit int) ([]Slot, error)

	GetSlot(ctx context.Context, id uuid.UUID) (*Slot, error)

	// Hold transitions FREE -> HELD (an expired hold counts as free) and
	// reserves the slot for owner until heldUntil.
	Hold(ctx context.Context, slotID uuid.UUID, expectedVersion int64, owner string, heldUntil time.Time) (*Slot, error)

	// Release transitions HELD -> FREE, clearing the owner.
	Release(ctx context.Context, slotID uuid.UUID, expectedVersion int64) (*Slot, error)

	// Commit transitions HELD -> BOOKED and creates the appointment record in
	// the same transaction: either both happen or neither does.
	Commit(ctx context.Context, slotID uuid.UUID, expectedVersion int64, appt NewAppointment) (*Slot, *Appointment, error)

	GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// CancelAppointment marks the appointment cancelled and frees its slot in
	// one transaction. The appointment row is kept as an audit trail.
	CancelAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// AppointmentStats counts appointments by department and status.
	AppointmentStats(ctx context.Context) (*BookingStats, error)

	// ReleaseExpiredHolds frees held slots whose reservation lapsed before now.
	ReleaseExpiredHolds(ctx context.Context, now time.Time) (int64, error)

	// ArchivePastSlots archives free slots whose start time has passed.
	ArchivePastSlots(ctx context.Context, now time.Time) (int64, error)
}
