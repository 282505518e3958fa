package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicbase/appointment-scheduling/internal/scheduling"
)

// SchedulingService is the surface the handlers call. *scheduling.Service
// satisfies it; tests substitute a fake.
type SchedulingService interface {
	Book(ctx context.Context, in scheduling.BookInput) (*scheduling.Appointment, error)
	GetAppointment(ctx context.Context, id uuid.UUID) (*scheduling.AppointmentDetail, error)
	Confirm(ctx context.Context, id uuid.UUID) (*scheduling.Appointment, error)
	Cancel(ctx context.Context, id uuid.UUID, reason string) (*scheduling.Appointment, error)
	MarkAttended(ctx context.Context, id uuid.UUID) (*scheduling.Appointment, error)
	MarkNotAttended(ctx context.Context, id uuid.UUID) (*scheduling.Appointment, error)
	UpdateMotive(ctx context.Context, id uuid.UUID, motive string) (*scheduling.Appointment, error)
	RemoveAppointment(ctx context.Context, id uuid.UUID) error

	AvailableSlots(ctx context.Context, practitionerID uuid.UUID, day time.Time, requestedMinutes int) (scheduling.DayAvailability, error)
	Calendar(ctx context.Context, practitionerID uuid.UUID, from time.Time, days, requestedMinutes int) ([]scheduling.DayAvailability, error)

	WindowsFor(ctx context.Context, practitionerID uuid.UUID, weekday time.Weekday) ([]scheduling.WeeklyAvailability, error)
	CreateWindow(ctx context.Context, practitionerID uuid.UUID, in scheduling.WindowInput) (*scheduling.WeeklyAvailability, error)
	UpdateWindow(ctx context.Context, practitionerID, windowID uuid.UUID, in scheduling.WindowInput) (*scheduling.WeeklyAvailability, error)
	RemoveWindow(ctx context.Context, practitionerID, windowID uuid.UUID) error

	ListBlockouts(ctx context.Context, practitionerID uuid.UUID, from, to time.Time) ([]scheduling.Blockout, error)
	CreateBlockout(ctx context.Context, practitionerID uuid.UUID, in scheduling.BlockoutInput) (*scheduling.Blockout, error)
	UpdateBlockout(ctx context.Context, practitionerID, blockoutID uuid.UUID, in scheduling.BlockoutInput) (*scheduling.Blockout, error)
	RemoveBlockout(ctx context.Context, practitionerID, blockoutID uuid.UUID) error
}

type handler struct {
	svc SchedulingService
	loc *time.Location
	log zerolog.Logger
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the scheduling error taxonomy onto HTTP statuses. Anything
// outside the taxonomy is a 500 and gets logged; taxonomy errors are the
// caller's problem and are not.
func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		valErr   *scheduling.ValidationError
		nfErr    *scheduling.NotFoundError
		availErr *scheduling.AvailabilityError
		conflict *scheduling.ConflictError
		stateErr *scheduling.InvalidStateTransitionError
		transErr *scheduling.TransientError
	)
	switch {
	case errors.As(err, &valErr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Details: valErr.Error()})
	case errors.As(err, &nfErr):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "not_found", Details: nfErr.Error()})
	case errors.As(err, &availErr):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: "unavailable_" + string(availErr.Kind), Details: availErr.Error()})
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: "conflict_" + string(conflict.Resource), Details: conflict.Error()})
	case errors.As(err, &stateErr):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: "invalid_state_transition", Details: stateErr.Error()})
	case errors.As(err, &transErr):
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "temporarily_unavailable", Details: "try again shortly"})
	default:
		h.log.Error().Err(err).Str("path", r.URL.Path).Msg("unhandled error")
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal_error"})
	}
}

func (h *handler) badRequest(w http.ResponseWriter, details string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "bad_request", Details: details})
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, name))
}

func (h *handler) dateQuery(r *http.Request, name string, fallback time.Time) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	return time.ParseInLocation(dateLayout, raw, h.loc)
}

func intQuery(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

func (h *handler) bookAppointment(w http.ResponseWriter, r *http.Request) {
	var req BookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid JSON body")
		return
	}
	patientID, err := uuid.Parse(req.PatientID)
	if err != nil {
		h.badRequest(w, "invalid patient_id")
		return
	}
	practitionerID, err := uuid.Parse(req.PractitionerID)
	if err != nil {
		h.badRequest(w, "invalid practitioner_id")
		return
	}
	specialtyID, err := uuid.Parse(req.SpecialtyID)
	if err != nil {
		h.badRequest(w, "invalid specialty_id")
		return
	}
	start, err := time.Parse(time.RFC3339, req.Start)
	if err != nil {
		h.badRequest(w, "start must be RFC3339")
		return
	}

	appt, err := h.svc.Book(r.Context(), scheduling.BookInput{
		PatientID:       patientID,
		PractitionerID:  practitionerID,
		SpecialtyID:     specialtyID,
		Start:           start,
		DurationMinutes: req.DurationMinutes,
		Motive:          req.Motive,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
}

func (h *handler) getAppointment(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		h.badRequest(w, "invalid appointment id")
		return
	}
	detail, err := h.svc.GetAppointment(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentDetailResponse(detail))
}

func (h *handler) transitionHandler(fn func(context.Context, uuid.UUID) (*scheduling.Appointment, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "id")
		if err != nil {
			h.badRequest(w, "invalid appointment id")
			return
		}
		appt, err := fn(r.Context(), id)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func (h *handler) cancelAppointment(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		h.badRequest(w, "invalid appointment id")
		return
	}
	var req CancelRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.badRequest(w, "invalid JSON body")
			return
		}
	}
	appt, err := h.svc.Cancel(r.Context(), id, req.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *handler) updateMotive(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		h.badRequest(w, "invalid appointment id")
		return
	}
	var req MotiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid JSON body")
		return
	}
	appt, err := h.svc.UpdateMotive(r.Context(), id, req.Motive)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *handler) deleteAppointment(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		h.badRequest(w, "invalid appointment id")
		return
	}
	if err := h.svc.RemoveAppointment(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) availableSlots(w http.ResponseWriter, r *http.Request) {
	practitionerID, err := uuidParam(r, "practitionerID")
	if err != nil {
		h.badRequest(w, "invalid practitioner id")
		return
	}
	day, err := h.dateQuery(r, "date", time.Time{})
	if err != nil || day.IsZero() {
		h.badRequest(w, "date is required as YYYY-MM-DD")
		return
	}
	minutes, err := intQuery(r, "duration_minutes", 30)
	if err != nil {
		h.badRequest(w, "duration_minutes must be an integer")
		return
	}
	avail, err := h.svc.AvailableSlots(r.Context(), practitionerID, day, minutes)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDayAvailabilityResponse(avail))
}

func (h *handler) calendar(w http.ResponseWriter, r *http.Request) {
	practitionerID, err := uuidParam(r, "practitionerID")
	if err != nil {
		h.badRequest(w, "invalid practitioner id")
		return
	}
	from, err := h.dateQuery(r, "from", time.Now().In(h.loc))
	if err != nil {
		h.badRequest(w, "from must be YYYY-MM-DD")
		return
	}
	days, err := intQuery(r, "days", 0)
	if err != nil {
		h.badRequest(w, "days must be an integer")
		return
	}
	minutes, err := intQuery(r, "duration_minutes", 30)
	if err != nil {
		h.badRequest(w, "duration_minutes must be an integer")
		return
	}
	entries, err := h.svc.Calendar(r.Context(), practitionerID, from, days, minutes)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp := make([]DayAvailabilityResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, toDayAvailabilityResponse(e))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) listWindows(w http.ResponseWriter, r *http.Request) {
	practitionerID, err := uuidParam(r, "practitionerID")
	if err != nil {
		h.badRequest(w, "invalid practitioner id")
		return
	}
	weekday, err := intQuery(r, "weekday", -1)
	if err != nil || weekday < 0 || weekday > 6 {
		h.badRequest(w, "weekday is required, 0 (Sunday) through 6 (Saturday)")
		return
	}
	windows, err := h.svc.WindowsFor(r.Context(), practitionerID, time.Weekday(weekday))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp := make([]WindowResponse, 0, len(windows))
	for i := range windows {
		resp = append(resp, toWindowResponse(&windows[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) createWindow(w http.ResponseWriter, r *http.Request) {
	practitionerID, err := uuidParam(r, "practitionerID")
	if err != nil {
		h.badRequest(w, "invalid practitioner id")
		return
	}
	var req WindowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid JSON body")
		return
	}
	win, err := h.svc.CreateWindow(r.Context(), practitionerID, windowInput(req))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toWindowResponse(win))
}

func (h *handler) updateWindow(w http.ResponseWriter, r *http.Request) {
	practitionerID, err := uuidParam(r, "practitionerID")
	if err != nil {
		h.badRequest(w, "invalid practitioner id")
		return
	}
	windowID, err := uuidParam(r, "windowID")
	if err != nil {
		h.badRequest(w, "invalid window id")
		return
	}
	var req WindowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid JSON body")
		return
	}
	win, err := h.svc.UpdateWindow(r.Context(), practitionerID, windowID, windowInput(req))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWindowResponse(win))
}

func (h *handler) deleteWindow(w http.ResponseWriter, r *http.Request) {
	practitionerID, err := uuidParam(r, "practitionerID")
	if err != nil {
		h.badRequest(w, "invalid practitioner id")
		return
	}
	windowID, err := uuidParam(r, "windowID")
	if err != nil {
		h.badRequest(w, "invalid window id")
		return
	}
	if err := h.svc.RemoveWindow(r.Context(), practitionerID, windowID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func windowInput(req WindowRequest) scheduling.WindowInput {
	return scheduling.WindowInput{
		Weekday:     time.Weekday(req.Weekday),
		StartMinute: req.StartMinute,
		EndMinute:   req.EndMinute,
		SlotMinutes: req.SlotMinutes,
	}
}

func (h *handler) listBlockouts(w http.ResponseWriter, r *http.Request) {
	practitionerID, err := uuidParam(r, "practitionerID")
	if err != nil {
		h.badRequest(w, "invalid practitioner id")
		return
	}
	now := time.Now().In(h.loc)
	from, err := h.dateQuery(r, "from", now)
	if err != nil {
		h.badRequest(w, "from must be YYYY-MM-DD")
		return
	}
	to, err := h.dateQuery(r, "to", now.AddDate(0, 0, 90))
	if err != nil {
		h.badRequest(w, "to must be YYYY-MM-DD")
		return
	}
	blockouts, err := h.svc.ListBlockouts(r.Context(), practitionerID, from, to)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp := make([]BlockoutResponse, 0, len(blockouts))
	for i := range blockouts {
		resp = append(resp, toBlockoutResponse(&blockouts[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) blockoutInput(req BlockoutRequest) (scheduling.BlockoutInput, error) {
	from, err := time.ParseInLocation(dateLayout, req.From, h.loc)
	if err != nil {
		return scheduling.BlockoutInput{}, err
	}
	to, err := time.ParseInLocation(dateLayout, req.To, h.loc)
	if err != nil {
		return scheduling.BlockoutInput{}, err
	}
	return scheduling.BlockoutInput{From: from, To: to, Reason: req.Reason}, nil
}

func (h *handler) createBlockout(w http.ResponseWriter, r *http.Request) {
	practitionerID, err := uuidParam(r, "practitionerID")
	if err != nil {
		h.badRequest(w, "invalid practitioner id")
		return
	}
	var req BlockoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid JSON body")
		return
	}
	in, err := h.blockoutInput(req)
	if err != nil {
		h.badRequest(w, "from and to must be YYYY-MM-DD")
		return
	}
	blockout, err := h.svc.CreateBlockout(r.Context(), practitionerID, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBlockoutResponse(blockout))
}

func (h *handler) updateBlockout(w http.ResponseWriter, r *http.Request) {
	practitionerID, err := uuidParam(r, "practitionerID")
	if err != nil {
		h.badRequest(w, "invalid practitioner id")
		return
	}
	blockoutID, err := uuidParam(r, "blockoutID")
	if err != nil {
		h.badRequest(w, "invalid blockout id")
		return
	}
	var req BlockoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid JSON body")
		return
	}
	in, err := h.blockoutInput(req)
	if err != nil {
		h.badRequest(w, "from and to must be YYYY-MM-DD")
		return
	}
	blockout, err := h.svc.UpdateBlockout(r.Context(), practitionerID, blockoutID, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBlockoutResponse(blockout))
}

func (h *handler) deleteBlockout(w http.ResponseWriter, r *http.Request) {
	practitionerID, err := uuidParam(r, "practitionerID")
	if err != nil {
		h.badRequest(w, "invalid practitioner id")
		return
	}
	blockoutID, err := uuidParam(r, "blockoutID")
	if err != nil {
		h.badRequest(w, "invalid blockout id")
		return
	}
	if err := h.svc.RemoveBlockout(r.Context(), practitionerID, blockoutID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
