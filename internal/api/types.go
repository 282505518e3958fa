package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicbase/appointment-scheduling/internal/scheduling"
)

const dateLayout = "2006-01-02"

type BookRequest struct {
	PatientID       string `json:"patient_id"`
	PractitionerID  string `json:"practitioner_id"`
	SpecialtyID     string `json:"specialty_id"`
	Start           string `json:"start"` // RFC3339
	DurationMinutes int    `json:"duration_minutes"`
	Motive          string `json:"motive,omitempty"`
}

type CancelRequest struct {
	Reason string `json:"reason,omitempty"`
}

type MotiveRequest struct {
	Motive string `json:"motive"`
}

type AppointmentResponse struct {
	ID              uuid.UUID `json:"id"`
	PatientID       uuid.UUID `json:"patient_id"`
	PractitionerID  uuid.UUID `json:"practitioner_id"`
	SpecialtyID     uuid.UUID `json:"specialty_id"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	DurationMinutes int       `json:"duration_minutes"`
	Status          string    `json:"status"`
	Motive          *string   `json:"motive,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

func toAppointmentResponse(a *scheduling.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:              a.ID,
		PatientID:       a.PatientID,
		PractitionerID:  a.PractitionerID,
		SpecialtyID:     a.SpecialtyID,
		Start:           a.Start,
		End:             a.End(),
		DurationMinutes: a.DurationMinutes,
		Status:          string(a.Status),
		Motive:          a.Motive,
		CreatedAt:       a.CreatedAt,
	}
}

type AppointmentDetailResponse struct {
	AppointmentResponse
	PatientName      string `json:"patient_name"`
	PractitionerName string `json:"practitioner_name"`
	SpecialtyName    string `json:"specialty_name"`
}

func toAppointmentDetailResponse(d *scheduling.AppointmentDetail) AppointmentDetailResponse {
	return AppointmentDetailResponse{
		AppointmentResponse: toAppointmentResponse(&d.Appointment),
		PatientName:         d.PatientName,
		PractitionerName:    d.PractitionerName,
		SpecialtyName:       d.SpecialtyName,
	}
}

type DayAvailabilityResponse struct {
	Date        string      `json:"date"`
	Slots       []time.Time `json:"slots"`
	Blocked     bool        `json:"blocked"`
	BlockReason string      `json:"block_reason,omitempty"`
}

func toDayAvailabilityResponse(d scheduling.DayAvailability) DayAvailabilityResponse {
	resp := DayAvailabilityResponse{
		Date:        d.Date.Format(dateLayout),
		Slots:       d.Slots,
		Blocked:     d.Blocked,
		BlockReason: d.BlockReason,
	}
	if resp.Slots == nil {
		resp.Slots = []time.Time{}
	}
	return resp
}

type WindowRequest struct {
	Weekday     int `json:"weekday"` // 0=Sunday .. 6=Saturday
	StartMinute int `json:"start_minute"`
	EndMinute   int `json:"end_minute"`
	SlotMinutes int `json:"slot_minutes"`
}

type WindowResponse struct {
	ID          uuid.UUID `json:"id"`
	Weekday     int       `json:"weekday"`
	StartMinute int       `json:"start_minute"`
	EndMinute   int       `json:"end_minute"`
	SlotMinutes int       `json:"slot_minutes"`
}

func toWindowResponse(w *scheduling.WeeklyAvailability) WindowResponse {
	return WindowResponse{
		ID:          w.ID,
		Weekday:     int(w.Weekday),
		StartMinute: w.StartMinute,
		EndMinute:   w.EndMinute,
		SlotMinutes: w.SlotMinutes,
	}
}

type BlockoutRequest struct {
	From   string `json:"from"` // YYYY-MM-DD
	To     string `json:"to"`   // YYYY-MM-DD
	Reason string `json:"reason,omitempty"`
}

type BlockoutResponse struct {
	ID     uuid.UUID `json:"id"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Reason *string   `json:"reason,omitempty"`
}

func toBlockoutResponse(b *scheduling.Blockout) BlockoutResponse {
	return BlockoutResponse{
		ID:     b.ID,
		Start:  b.Start,
		End:    b.End,
		Reason: b.Reason,
	}
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
