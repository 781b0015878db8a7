package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/careroute/triage-booking/internal/booking"
	"github.com/careroute/triage-booking/internal/schedule"
	"github.com/careroute/triage-booking/internal/triage"
)

func checkSymptomHandler(svc *triage.Service, registry schedule.Registry, defaultLang string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SymptomCheckRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		result, err := svc.CheckSymptom(r.Context(), req.Symptom, req.Language)
		if err != nil {
			if errors.Is(err, triage.ErrInvalidInput) {
				writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		resp := SymptomCheckResponse{
			Department:   result.DepartmentID,
			Guidance:     result.Guidance,
			LanguageUsed: result.Language,
			Source:       string(result.Source),
			Confidence:   result.Confidence,
		}
		if dept, derr := registry.GetDepartment(r.Context(), result.DepartmentID); derr == nil {
			resp.DepartmentName = dept.Name(result.Language, defaultLang)
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func listDepartmentsHandler(registry schedule.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		depts, err := registry.ListDepartments(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		resp := make([]DepartmentResponse, 0, len(depts))
		for _, d := range depts {
			resp = append(resp, DepartmentResponse{ID: d.ID, Names: d.Names})
		}
		writeJSON(w, http.StatusOK, map[string]any{"departments": resp})
	}
}

func listSlotsHandler(registry schedule.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		departmentID := chi.URLParam(r, "id")

		dateStr := r.URL.Query().Get("date")
		day := time.Now().UTC()
		if dateStr != "" {
			parsed, err := time.Parse("2006-01-02", dateStr)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
				return
			}
			day = parsed
		}

		limit := 0
		if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
			n, err := strconv.Atoi(limitStr)
			if err != nil || n < 1 {
				writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
				return
			}
			limit = n
		}

		if _, err := registry.GetDepartment(r.Context(), departmentID); err != nil {
			handleScheduleError(w, err)
			return
		}

		slots, err := registry.ListAvailable(r.Context(), departmentID, day, limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		resp := ListSlotsResponse{
			Department: departmentID,
			Date:       day.Format("2006-01-02"),
			Slots:      make([]SlotResponse, 0, len(slots)),
		}
		for _, s := range slots {
			resp.Slots = append(resp.Slots, SlotResponse{
				SlotID:          s.ID,
				DoctorID:        s.DoctorID,
				StartTime:       s.StartTime,
				DurationMinutes: int(s.Duration / time.Minute),
			})
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func bookAppointmentHandler(coordinator *booking.Coordinator, registry schedule.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		preferredDate, err := time.Parse("2006-01-02", req.PreferredDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "preferred_date must be YYYY-MM-DD")
			return
		}

		appt, err := coordinator.Book(r.Context(), booking.Request{
			PatientID:      req.PatientIdentifier,
			PatientEmail:   req.PatientEmail,
			DepartmentID:   req.Department,
			PreferredDate:  preferredDate,
			IdempotencyKey: req.IdempotencyKey,
		})
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, appointmentResponse(r, registry, appt))
	}
}

func appointmentStatsHandler(registry schedule.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := registry.AppointmentStats(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		resp := AppointmentStatsResponse{
			Total:        stats.Total,
			ByStatus:     make(map[string]int64, len(stats.ByStatus)),
			ByDepartment: stats.ByDepartment,
		}
		for status, count := range stats.ByStatus {
			resp.ByStatus[string(status)] = count
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func getAppointmentHandler(registry schedule.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		appt, err := registry.GetAppointment(r.Context(), id)
		if err != nil {
			handleScheduleError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, appointmentResponse(r, registry, appt))
	}
}

func cancelAppointmentHandler(registry schedule.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		appt, err := registry.CancelAppointment(r.Context(), id)
		if err != nil {
			handleScheduleError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, appointmentResponse(r, registry, appt))
	}
}

// appointmentResponse hydrates the slot so callers get the start time back.
func appointmentResponse(r *http.Request, registry schedule.Registry, appt *schedule.Appointment) AppointmentResponse {
	resp := AppointmentResponse{
		AppointmentID: appt.ID,
		SlotID:        appt.SlotID,
		Department:    appt.DepartmentID,
		PatientID:     appt.PatientID,
		Status:        string(appt.Status),
	}
	if slot, err := registry.GetSlot(r.Context(), appt.SlotID); err == nil {
		resp.DoctorID = &slot.DoctorID
		resp.StartTime = &slot.StartTime
	}
	return resp
}

func handleBookingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, schedule.ErrDepartmentNotFound):
		writeError(w, http.StatusNotFound, "department_not_found", err.Error())
	case errors.Is(err, booking.ErrNoAvailability):
		writeError(w, http.StatusConflict, "no_availability", "no free slot for that department and date, try another date")
	case errors.Is(err, booking.ErrBookingInFlight):
		writeError(w, http.StatusConflict, "booking_in_flight", "a booking with this idempotency key is in progress, retry shortly")
	default:
		writeError(w, http.StatusInternalServerError, "booking_error", err.Error())
	}
}

func handleScheduleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, schedule.ErrDepartmentNotFound):
		writeError(w, http.StatusNotFound, "department_not_found", err.Error())
	case errors.Is(err, schedule.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, schedule.ErrSlotNotFound):
		writeError(w, http.StatusNotFound, "slot_not_found", err.Error())
	case errors.Is(err, schedule.ErrAppointmentNotCancellable):
		writeError(w, http.StatusConflict, "appointment_not_cancellable", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
