package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careroute/triage-booking/internal/booking"
	redisclient "github.com/careroute/triage-booking/internal/redis"
	"github.com/careroute/triage-booking/internal/schedule"
	"github.com/careroute/triage-booking/internal/triage"
)

const testDay = "2024-06-01"

func newTestServer(t *testing.T) (http.Handler, *schedule.MemoryRegistry) {
	t.Helper()

	registry := schedule.NewMemoryRegistry()
	registry.AddDepartment(schedule.Department{ID: "cardiology", Names: map[string]string{"en": "Cardiology", "es": "Cardiología"}})
	registry.AddDepartment(schedule.Department{ID: "gastroenterology", Names: map[string]string{"en": "Gastroenterology"}})

	doctor := schedule.Doctor{ID: uuid.New(), DepartmentID: "cardiology", Name: "Dr. Rao"}
	registry.AddDoctor(doctor)

	day, err := time.Parse("2006-01-02", testDay)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		registry.AddSlot(schedule.Slot{
			ID:           uuid.New(),
			DoctorID:     doctor.ID,
			DepartmentID: "cardiology",
			StartTime:    day.Add(time.Duration(9*60+30*i) * time.Minute),
			Duration:     30 * time.Minute,
		})
	}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	idem := redisclient.NewRedisIdempotencyStore(client, 30*time.Second, 24*time.Hour)

	coordinator := booking.NewCoordinator(registry, idem, 2*time.Minute, 3)

	// No oracle configured: symptom checks run entirely on the fallback path.
	normalizer, err := triage.NewNormalizer([]string{"en", "es", "hi", "te", "fr"}, "en")
	require.NoError(t, err)
	classifier := triage.NewClassifier(nil, triage.DefaultLexicon("general-medicine"),
		[]string{"cardiology", "gastroenterology", "general-medicine"}, 0.5, time.Second, nil)
	localizer := triage.NewLocalizer(nil, triage.DefaultGuidancePhrases(), "en", time.Second, nil)
	svc := triage.NewService(normalizer, classifier, localizer)

	router := NewRouter(RouterConfig{
		Triage:          svc,
		Coordinator:     coordinator,
		Registry:        registry,
		DefaultLanguage: "en",
		Env:             "test",
		Version:         "test",
	})
	return router, registry
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeAs[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func TestCheckSymptomEndpoint_Fallback(t *testing.T) {
	handler, _ := newTestServer(t)

	rec := doJSON(t, handler, http.MethodPost, "/v1/symptom-checks", SymptomCheckRequest{
		Symptom:  "me duele el pecho y tengo palpitaciones",
		Language: "es",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeAs[SymptomCheckResponse](t, rec)
	assert.Equal(t, "cardiology", resp.Department)
	assert.Equal(t, "Cardiología", resp.DepartmentName)
	assert.Equal(t, "fallback", resp.Source)
	assert.Equal(t, "es", resp.LanguageUsed)
	assert.NotEmpty(t, resp.Guidance)
}

func TestCheckSymptomEndpoint_EmptySymptom(t *testing.T) {
	handler, _ := newTestServer(t)

	rec := doJSON(t, handler, http.MethodPost, "/v1/symptom-checks", SymptomCheckRequest{Symptom: "   ", Language: "en"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	resp := decodeAs[ErrorResponse](t, rec)
	assert.Equal(t, "invalid_input", resp.Error)
}

func TestListDepartmentsEndpoint(t *testing.T) {
	handler, _ := newTestServer(t)

	rec := doJSON(t, handler, http.MethodGet, "/v1/departments", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeAs[map[string][]DepartmentResponse](t, rec)
	require.Len(t, resp["departments"], 2)
	assert.Equal(t, "cardiology", resp["departments"][0].ID)
}

func TestListSlotsEndpoint(t *testing.T) {
	handler, _ := newTestServer(t)

	rec := doJSON(t, handler, http.MethodGet, "/v1/departments/cardiology/slots?date="+testDay, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeAs[ListSlotsResponse](t, rec)
	assert.Equal(t, "cardiology", resp.Department)
	assert.Equal(t, testDay, resp.Date)
	require.Len(t, resp.Slots, 3)
	for i := 1; i < len(resp.Slots); i++ {
		assert.False(t, resp.Slots[i].StartTime.Before(resp.Slots[i-1].StartTime))
	}
	assert.Equal(t, 30, resp.Slots[0].DurationMinutes)
}

func TestListSlotsEndpoint_Validation(t *testing.T) {
	handler, _ := newTestServer(t)

	rec := doJSON(t, handler, http.MethodGet, "/v1/departments/cardiology/slots?date=not-a-date", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, "/v1/departments/cardiology/slots?limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, "/v1/departments/sports-medicine/slots?date="+testDay, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBookAppointmentEndpoint(t *testing.T) {
	handler, registry := newTestServer(t)

	rec := doJSON(t, handler, http.MethodPost, "/v1/appointments", BookAppointmentRequest{
		PatientIdentifier: "patient-1",
		Department:        "cardiology",
		PreferredDate:     testDay,
		IdempotencyKey:    "key-1",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	resp := decodeAs[AppointmentResponse](t, rec)
	assert.Equal(t, "cardiology", resp.Department)
	assert.Equal(t, "patient-1", resp.PatientID)
	assert.Equal(t, "booked", resp.Status)
	require.NotNil(t, resp.StartTime)
	require.NotNil(t, resp.DoctorID)

	slot, err := registry.GetSlot(context.Background(), resp.SlotID)
	require.NoError(t, err)
	assert.Equal(t, schedule.SlotBooked, slot.State)
}

func TestBookAppointmentEndpoint_IdempotentReplay(t *testing.T) {
	handler, _ := newTestServer(t)

	body := BookAppointmentRequest{
		PatientIdentifier: "patient-1",
		Department:        "cardiology",
		PreferredDate:     testDay,
		IdempotencyKey:    "key-1",
	}

	first := decodeAs[AppointmentResponse](t, doJSON(t, handler, http.MethodPost, "/v1/appointments", body))
	rec := doJSON(t, handler, http.MethodPost, "/v1/appointments", body)
	require.Equal(t, http.StatusCreated, rec.Code)
	replay := decodeAs[AppointmentResponse](t, rec)

	assert.Equal(t, first.AppointmentID, replay.AppointmentID)
	assert.Equal(t, first.SlotID, replay.SlotID)
}

func TestBookAppointmentEndpoint_Errors(t *testing.T) {
	handler, _ := newTestServer(t)

	// Unknown department.
	rec := doJSON(t, handler, http.MethodPost, "/v1/appointments", BookAppointmentRequest{
		PatientIdentifier: "patient-1",
		Department:        "sports-medicine",
		PreferredDate:     testDay,
		IdempotencyKey:    "key-1",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Bad date format.
	rec = doJSON(t, handler, http.MethodPost, "/v1/appointments", BookAppointmentRequest{
		PatientIdentifier: "patient-1",
		Department:        "cardiology",
		PreferredDate:     "06/01/2024",
		IdempotencyKey:    "key-2",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Missing patient identifier.
	rec = doJSON(t, handler, http.MethodPost, "/v1/appointments", BookAppointmentRequest{
		Department:     "cardiology",
		PreferredDate:  testDay,
		IdempotencyKey: "key-3",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", decodeAs[ErrorResponse](t, rec).Error)
}

func TestBookAppointmentEndpoint_NoAvailability(t *testing.T) {
	handler, _ := newTestServer(t)

	// Exhaust all three slots.
	for i := 0; i < 3; i++ {
		rec := doJSON(t, handler, http.MethodPost, "/v1/appointments", BookAppointmentRequest{
			PatientIdentifier: fmt.Sprintf("patient-%d", i),
			Department:        "cardiology",
			PreferredDate:     testDay,
			IdempotencyKey:    fmt.Sprintf("key-%d", i),
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := doJSON(t, handler, http.MethodPost, "/v1/appointments", BookAppointmentRequest{
		PatientIdentifier: "patient-late",
		Department:        "cardiology",
		PreferredDate:     testDay,
		IdempotencyKey:    "key-late",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "no_availability", decodeAs[ErrorResponse](t, rec).Error)
}

func TestAppointmentLifecycleEndpoints(t *testing.T) {
	handler, _ := newTestServer(t)

	booked := decodeAs[AppointmentResponse](t, doJSON(t, handler, http.MethodPost, "/v1/appointments", BookAppointmentRequest{
		PatientIdentifier: "patient-1",
		Department:        "cardiology",
		PreferredDate:     testDay,
		IdempotencyKey:    "key-1",
	}))

	rec := doJSON(t, handler, http.MethodGet, "/v1/appointments/"+booked.AppointmentID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "booked", decodeAs[AppointmentResponse](t, rec).Status)

	rec = doJSON(t, handler, http.MethodPost, "/v1/appointments/"+booked.AppointmentID.String()+"/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cancelled", decodeAs[AppointmentResponse](t, rec).Status)

	// Cancelling twice conflicts.
	rec = doJSON(t, handler, http.MethodPost, "/v1/appointments/"+booked.AppointmentID.String()+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// The freed slot is listed again.
	slots := decodeAs[ListSlotsResponse](t, doJSON(t, handler, http.MethodGet, "/v1/departments/cardiology/slots?date="+testDay, nil))
	assert.Len(t, slots.Slots, 3)
}

func TestAppointmentStatsEndpoint(t *testing.T) {
	handler, _ := newTestServer(t)

	empty := decodeAs[AppointmentStatsResponse](t, doJSON(t, handler, http.MethodGet, "/v1/appointments/stats", nil))
	assert.Zero(t, empty.Total)

	for i := 0; i < 2; i++ {
		rec := doJSON(t, handler, http.MethodPost, "/v1/appointments", BookAppointmentRequest{
			PatientIdentifier: fmt.Sprintf("patient-%d", i),
			Department:        "cardiology",
			PreferredDate:     testDay,
			IdempotencyKey:    fmt.Sprintf("key-%d", i),
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	booked := decodeAs[AppointmentResponse](t, doJSON(t, handler, http.MethodPost, "/v1/appointments", BookAppointmentRequest{
		PatientIdentifier: "patient-cancelled",
		Department:        "cardiology",
		PreferredDate:     testDay,
		IdempotencyKey:    "key-cancelled",
	}))
	rec := doJSON(t, handler, http.MethodPost, "/v1/appointments/"+booked.AppointmentID.String()+"/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, "/v1/appointments/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	stats := decodeAs[AppointmentStatsResponse](t, rec)
	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, int64(2), stats.ByStatus["booked"])
	assert.Equal(t, int64(1), stats.ByStatus["cancelled"])
	assert.Equal(t, int64(3), stats.ByDepartment["cardiology"])
}

func TestGetAppointmentEndpoint_Errors(t *testing.T) {
	handler, _ := newTestServer(t)

	rec := doJSON(t, handler, http.MethodGet, "/v1/appointments/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, "/v1/appointments/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "appointment_not_found", decodeAs[ErrorResponse](t, rec).Error)
}

func TestLivenessEndpoint(t *testing.T) {
	handler, _ := newTestServer(t)

	rec := doJSON(t, handler, http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
