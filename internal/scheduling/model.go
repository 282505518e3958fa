package scheduling

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending     Status = "pending"
	StatusConfirmed   Status = "confirmed"
	StatusCancelled   Status = "cancelled"
	StatusAttended    Status = "attended"
	StatusNotAttended Status = "not_attended"
)

// Active reports whether an appointment in this status occupies its slot.
// Cancelled and not-attended appointments free the slot.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusConfirmed || s == StatusAttended
}

// Terminal reports whether no further transitions are allowed from s.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusAttended || s == StatusNotAttended
}

type Specialty struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Practitioner struct {
	ID           uuid.UUID
	Name         string
	Email        *string
	SpecialtyIDs []uuid.UUID
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (p *Practitioner) HasSpecialty(id uuid.UUID) bool {
	for _, sid := range p.SpecialtyIDs {
		if sid == id {
			return true
		}
	}
	return false
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// WeeklyAvailability is a recurring window during which a practitioner
// accepts bookings. Start and end are minutes from facility-local midnight;
// active windows for one practitioner and weekday never overlap (enforced at
// write time).
type WeeklyAvailability struct {
	ID             uuid.UUID
	PractitionerID uuid.UUID
	Weekday        time.Weekday
	StartMinute    int
	EndMinute      int
	SlotMinutes    int
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// WindowOn anchors the window to a concrete day, returning the half-open
// [start, end) instants in day's location.
func (w *WeeklyAvailability) WindowOn(day time.Time) (start, end time.Time) {
	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	start = midnight.Add(time.Duration(w.StartMinute) * time.Minute)
	end = midnight.Add(time.Duration(w.EndMinute) * time.Minute)
	return start, end
}

// Blockout is a standing absence (vacation, training) with whole-day
// granularity: Start is 00:00:00 of the first day and End 23:59:59 of the
// last, in facility-local time.
type Blockout struct {
	ID             uuid.UUID
	PractitionerID uuid.UUID
	Start          time.Time
	End            time.Time
	Reason         *string
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CoversDay reports whether the blockout spans the whole of day.
func (b *Blockout) CoversDay(day time.Time) bool {
	dayStart, dayEnd := DayBounds(day)
	return !b.Start.After(dayStart) && !b.End.Before(dayEnd)
}

type Appointment struct {
	ID              uuid.UUID
	PatientID       uuid.UUID
	PractitionerID  uuid.UUID
	SpecialtyID     uuid.UUID
	Start           time.Time
	DurationMinutes int
	Status          Status
	Motive          *string
	Active          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// End is the derived end instant of the half-open booking interval.
func (a *Appointment) End() time.Time {
	return a.Start.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

// AppointmentDetail is an appointment hydrated with its related names,
// used for API responses and reminder emails.
type AppointmentDetail struct {
	Appointment
	PatientName      string
	PatientEmail     *string
	PractitionerName string
	SpecialtyName    string
}

// DayBounds returns the whole-day bounds [00:00:00, 23:59:59] of day in its
// own location, matching blockout granularity.
func DayBounds(day time.Time) (start, end time.Time) {
	start = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end = time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 59, 0, day.Location())
	return start, end
}
