package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicbase/appointment-scheduling/internal/scheduling"
)

// fakeService overrides only the methods a test exercises; calling anything
// else panics on the embedded nil interface, which is what we want.
type fakeService struct {
	SchedulingService
	book    func(ctx context.Context, in scheduling.BookInput) (*scheduling.Appointment, error)
	get     func(ctx context.Context, id uuid.UUID) (*scheduling.AppointmentDetail, error)
	confirm func(ctx context.Context, id uuid.UUID) (*scheduling.Appointment, error)
	slots   func(ctx context.Context, practitionerID uuid.UUID, day time.Time, minutes int) (scheduling.DayAvailability, error)
}

func (f *fakeService) Book(ctx context.Context, in scheduling.BookInput) (*scheduling.Appointment, error) {
	return f.book(ctx, in)
}

func (f *fakeService) GetAppointment(ctx context.Context, id uuid.UUID) (*scheduling.AppointmentDetail, error) {
	return f.get(ctx, id)
}

func (f *fakeService) Confirm(ctx context.Context, id uuid.UUID) (*scheduling.Appointment, error) {
	return f.confirm(ctx, id)
}

func (f *fakeService) AvailableSlots(ctx context.Context, practitionerID uuid.UUID, day time.Time, minutes int) (scheduling.DayAvailability, error) {
	return f.slots(ctx, practitionerID, day, minutes)
}

func newTestRouter(svc SchedulingService) http.Handler {
	return NewRouter(RouterConfig{
		Service:  svc,
		Location: time.UTC,
		Logger:   zerolog.Nop(),
	})
}

func sampleAppointment(start time.Time) *scheduling.Appointment {
	return &scheduling.Appointment{
		ID:              uuid.New(),
		PatientID:       uuid.New(),
		PractitionerID:  uuid.New(),
		SpecialtyID:     uuid.New(),
		Start:           start,
		DurationMinutes: 30,
		Status:          scheduling.StatusPending,
		Active:          true,
	}
}

func TestBookEndpoint(t *testing.T) {
	start := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)

	t.Run("created", func(t *testing.T) {
		var captured scheduling.BookInput
		svc := &fakeService{book: func(_ context.Context, in scheduling.BookInput) (*scheduling.Appointment, error) {
			captured = in
			return sampleAppointment(start), nil
		}}
		router := newTestRouter(svc)

		body := `{
			"patient_id": "` + uuid.NewString() + `",
			"practitioner_id": "` + uuid.NewString() + `",
			"specialty_id": "` + uuid.NewString() + `",
			"start": "2026-03-02T09:00:00Z",
			"duration_minutes": 30,
			"motive": "checkup"
		}`
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(body)))

		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, start, captured.Start)
		assert.Equal(t, 30, captured.DurationMinutes)
		assert.Equal(t, "checkup", captured.Motive)

		var resp AppointmentResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "pending", resp.Status)
		assert.Equal(t, start.Add(30*time.Minute), resp.End)
	})

	t.Run("malformed uuid", func(t *testing.T) {
		router := newTestRouter(&fakeService{})
		body := `{"patient_id": "nope", "practitioner_id": "`+ uuid.NewString() + `", "specialty_id": "` + uuid.NewString() + `", "start": "2026-03-02T09:00:00Z", "duration_minutes": 30}`

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("error taxonomy mapping", func(t *testing.T) {
		cases := []struct {
			name       string
			err        error
			wantStatus int
			wantCode   string
		}{
			{"validation", &scheduling.ValidationError{Msg: "duration must be positive"}, http.StatusBadRequest, "validation_error"},
			{"not found", &scheduling.NotFoundError{Entity: "patient", ID: uuid.New()}, http.StatusNotFound, "not_found"},
			{"no schedule", &scheduling.AvailabilityError{Kind: scheduling.AvailabilityNoSchedule}, http.StatusConflict, "unavailable_no_schedule"},
			{"blocked", &scheduling.AvailabilityError{Kind: scheduling.AvailabilityBlocked}, http.StatusConflict, "unavailable_blocked"},
			{"conflict", &scheduling.ConflictError{Resource: scheduling.ConflictPractitioner}, http.StatusConflict, "conflict_practitioner"},
			{"transient", &scheduling.TransientError{}, http.StatusServiceUnavailable, "temporarily_unavailable"},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				svc := &fakeService{book: func(context.Context, scheduling.BookInput) (*scheduling.Appointment, error) {
					return nil, tc.err
				}}
				router := newTestRouter(svc)
				body := `{"patient_id": "` + uuid.NewString() + `", "practitioner_id": "` + uuid.NewString() + `", "specialty_id": "` + uuid.NewString() + `", "start": "2026-03-02T09:00:00Z", "duration_minutes": 30}`

				rec := httptest.NewRecorder()
				router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(body)))

				assert.Equal(t, tc.wantStatus, rec.Code)
				var resp ErrorResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
				assert.Equal(t, tc.wantCode, resp.Error)
			})
		}
	})
}

func TestGetAppointmentEndpoint(t *testing.T) {
	start := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	id := uuid.New()

	svc := &fakeService{get: func(_ context.Context, gotID uuid.UUID) (*scheduling.AppointmentDetail, error) {
		require.Equal(t, id, gotID)
		appt := sampleAppointment(start)
		appt.ID = id
		return &scheduling.AppointmentDetail{
			Appointment:      *appt,
			PatientName:      "Sam Holt",
			PractitionerName: "Dr. Ada Roy",
			SpecialtyName:    "Cardiology",
		}, nil
	}}
	router := newTestRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/appointments/"+id.String(), nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp AppointmentDetailResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Sam Holt", resp.PatientName)
	assert.Equal(t, "Cardiology", resp.SpecialtyName)
}

func TestConfirmEndpointStateError(t *testing.T) {
	svc := &fakeService{confirm: func(context.Context, uuid.UUID) (*scheduling.Appointment, error) {
		return nil, &scheduling.InvalidStateTransitionError{
			From: scheduling.StatusCancelled,
			To:   scheduling.StatusConfirmed,
		}
	}}
	router := newTestRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/appointments/"+uuid.NewString()+"/confirm", nil))

	assert.Equal(t, http.StatusConflict, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "invalid_state_transition", resp.Error)
}

func TestSlotsEndpoint(t *testing.T) {
	day := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)
	practitionerID := uuid.New()

	t.Run("ok", func(t *testing.T) {
		svc := &fakeService{slots: func(_ context.Context, gotID uuid.UUID, gotDay time.Time, minutes int) (scheduling.DayAvailability, error) {
			require.Equal(t, practitionerID, gotID)
			require.Equal(t, day, gotDay)
			require.Equal(t, 30, minutes)
			return scheduling.DayAvailability{
				Date:  day,
				Slots: []time.Time{day.Add(8 * time.Hour), day.Add(8*time.Hour + 30*time.Minute)},
			}, nil
		}}
		router := newTestRouter(svc)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
			"/api/v1/practitioners/"+practitionerID.String()+"/slots?date=2026-03-02", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var resp DayAvailabilityResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "2026-03-02", resp.Date)
		assert.Len(t, resp.Slots, 2)
		assert.False(t, resp.Blocked)
	})

	t.Run("blocked day serializes the reason", func(t *testing.T) {
		svc := &fakeService{slots: func(context.Context, uuid.UUID, time.Time, int) (scheduling.DayAvailability, error) {
			return scheduling.DayAvailability{Date: day, Blocked: true, BlockReason: "conference"}, nil
		}}
		router := newTestRouter(svc)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
			"/api/v1/practitioners/"+practitionerID.String()+"/slots?date=2026-03-02", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var resp DayAvailabilityResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Blocked)
		assert.Equal(t, "conference", resp.BlockReason)
		assert.NotNil(t, resp.Slots)
		assert.Empty(t, resp.Slots)
	})

	t.Run("missing date", func(t *testing.T) {
		router := newTestRouter(&fakeService{})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
			"/api/v1/practitioners/"+practitionerID.String()+"/slots", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
