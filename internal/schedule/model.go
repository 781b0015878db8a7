package schedule

import (
	"time"

	"github.com/google/uuid"
)

type SlotState string

const (
	SlotFree     SlotState = "free"
	SlotHeld     SlotState = "held"
	SlotBooked   SlotState = "booked"
	SlotArchived SlotState = "archived"
)

type AppointmentStatus string

const (
	AppointmentBooked    AppointmentStatus = "booked"
	AppointmentCancelled AppointmentStatus = "cancelled"
)

// Department is immutable reference data created at bootstrap.
// Names maps a language tag to the localized display name.
type Department struct {
	ID        string
	Names     map[string]string
	CreatedAt time.Time
}

// Name returns the display name for lang, falling back to fallbackLang.
func (d *Department) Name(lang, fallbackLang string) string {
	if n, ok := d.Names[lang]; ok {
		return n
	}
	return d.Names[fallbackLang]
}

type Doctor struct {
	ID           uuid.UUID
	DepartmentID string
	Name         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Slot is a single bookable time unit for one doctor. Owner is set iff the
// slot is not free. Version increments on every state transition and is the
// compare-and-set guard against concurrent bookings.
type Slot struct {
	ID           uuid.UUID
	DoctorID     uuid.UUID
	DepartmentID string
	StartTime    time.Time
	Duration     time.Duration
	State        SlotState
	Owner        *string
	HeldUntil    *time.Time
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HoldExpired reports whether a held slot's reservation window has lapsed.
// An expired hold is treated as free by the hold transition and by the sweeper.
func (s *Slot) HoldExpired(now time.Time) bool {
	return s.State == SlotHeld && s.HeldUntil != nil && !s.HeldUntil.After(now)
}

type Appointment struct {
	ID           uuid.UUID
	SlotID       uuid.UUID
	DepartmentID string
	PatientID    string
	PatientEmail *string
	Status       AppointmentStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
