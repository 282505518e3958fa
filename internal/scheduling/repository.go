package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository contains all store interactions needed by the scheduling
// service. Implementations return *NotFoundError for missing rows; soft
// deleted records are invisible to every method.
type Repository interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetPractitionerByID(ctx context.Context, id uuid.UUID) (*Practitioner, error)
	GetSpecialtyByID(ctx context.Context, id uuid.UUID) (*Specialty, error)

	// Weekly availability. ListWindows returns active windows for the
	// weekday ordered by start minute; an empty result means the
	// practitioner does not work that weekday.
	ListWindows(ctx context.Context, practitionerID uuid.UUID, weekday time.Weekday) ([]WeeklyAvailability, error)
	GetWindowByID(ctx context.Context, id uuid.UUID) (*WeeklyAvailability, error)
	CreateWindow(ctx context.Context, w WeeklyAvailability) (*WeeklyAvailability, error)
	UpdateWindow(ctx context.Context, w WeeklyAvailability) (*WeeklyAvailability, error)
	DeactivateWindow(ctx context.Context, id uuid.UUID) error

	// Blockouts. ListBlockouts returns active blockouts overlapping
	// [from, to] under the half-open predicate.
	ListBlockouts(ctx context.Context, practitionerID uuid.UUID, from, to time.Time) ([]Blockout, error)
	GetBlockoutByID(ctx context.Context, id uuid.UUID) (*Blockout, error)
	CreateBlockout(ctx context.Context, b Blockout) (*Blockout, error)
	UpdateBlockout(ctx context.Context, b Blockout) (*Blockout, error)
	DeactivateBlockout(ctx context.Context, id uuid.UUID) error

	// Conflict checks. Both return appointments in an active state
	// (pending, confirmed, attended) overlapping [start, end).
	OverlappingPractitionerAppointments(ctx context.Context, practitionerID uuid.UUID, start, end time.Time) ([]Appointment, error)
	OverlappingPatientAppointments(ctx context.Context, patientID uuid.UUID, start, end time.Time) ([]Appointment, error)

	// PendingOrConfirmedInRange backs the blockout-creation guard: only
	// unresolved appointments prevent a blockout.
	PendingOrConfirmedInRange(ctx context.Context, practitionerID uuid.UUID, start, end time.Time) ([]Appointment, error)

	CreateAppointment(ctx context.Context, a Appointment) (*Appointment, error)
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error)
	// UpdateAppointmentStatus is a compare-and-swap: it only applies when
	// the stored status equals from, returning *NotFoundError otherwise.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)
	UpdateAppointmentMotive(ctx context.Context, id uuid.UUID, motive string) (*Appointment, error)
	SoftDeleteAppointment(ctx context.Context, id uuid.UUID) error

	// Reminder worker.
	ListConfirmedStartingBetween(ctx context.Context, from, to time.Time) ([]AppointmentDetail, error)
}
