package api

import (
	"time"

	"github.com/google/uuid"
)

type SymptomCheckRequest struct {
	Symptom  string `json:"symptom"`
	Language string `json:"language"`
}

type SymptomCheckResponse struct {
	Department     string  `json:"department"`
	DepartmentName string  `json:"department_name"`
	Guidance       string  `json:"guidance"`
	LanguageUsed   string  `json:"language_used"`
	Source         string  `json:"source"`
	Confidence     float64 `json:"confidence"`
}

type DepartmentResponse struct {
	ID    string            `json:"id"`
	Names map[string]string `json:"names"`
}

type SlotResponse struct {
	SlotID          uuid.UUID `json:"slot_id"`
	DoctorID        uuid.UUID `json:"doctor_id"`
	StartTime       time.Time `json:"start_time"`
	DurationMinutes int       `json:"duration_minutes"`
}

type ListSlotsResponse struct {
	Department string         `json:"department"`
	Date       string         `json:"date"`
	Slots      []SlotResponse `json:"slots"`
}

type BookAppointmentRequest struct {
	PatientIdentifier string  `json:"patient_identifier"`
	PatientEmail      *string `json:"patient_email,omitempty"`
	Department        string  `json:"department"`
	PreferredDate     string  `json:"preferred_date"` // YYYY-MM-DD
	IdempotencyKey    string  `json:"idempotency_key"`
}

type AppointmentResponse struct {
	AppointmentID uuid.UUID  `json:"appointment_id"`
	SlotID        uuid.UUID  `json:"slot_id"`
	DoctorID      *uuid.UUID `json:"doctor_id,omitempty"`
	Department    string     `json:"department"`
	PatientID     string     `json:"patient_id"`
	StartTime     *time.Time `json:"start_time,omitempty"`
	Status        string     `json:"status"`
}

type AppointmentStatsResponse struct {
	Total        int64            `json:"total"`
	ByStatus     map[string]int64 `json:"by_status"`
	ByDepartment map[string]int64 `json:"by_department"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
