package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicbase/appointment-scheduling/internal/observability/metrics"
	redisclient "github.com/clinicbase/appointment-scheduling/internal/redis"
)

// Config carries the injectable collaborators of the service. Zero values
// get sensible defaults; tests inject Now for determinism.
type Config struct {
	Location       *time.Location
	Now            func() time.Time
	LockRetries    int
	LockRetryDelay time.Duration
	Logger         zerolog.Logger
	Metrics        *metrics.SchedulingMetrics
}

type Service struct {
	repo           Repository
	locker         redisclient.Locker
	loc            *time.Location
	now            func() time.Time
	lockRetries    int
	lockRetryDelay time.Duration
	log            zerolog.Logger
	metrics        *metrics.SchedulingMetrics
}

func NewService(repo Repository, locker redisclient.Locker, cfg Config) *Service {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.LockRetries <= 0 {
		cfg.LockRetries = 3
	}
	if cfg.LockRetryDelay <= 0 {
		cfg.LockRetryDelay = 50 * time.Millisecond
	}
	return &Service{
		repo:           repo,
		locker:         locker,
		loc:            cfg.Location,
		now:            cfg.Now,
		lockRetries:    cfg.LockRetries,
		lockRetryDelay: cfg.LockRetryDelay,
		log:            cfg.Logger,
		metrics:        cfg.Metrics,
	}
}

type BookInput struct {
	PatientID       uuid.UUID
	PractitionerID  uuid.UUID
	SpecialtyID     uuid.UUID
	Start           time.Time
	DurationMinutes int
	Motive          string
}

// Book validates and creates an appointment in PENDING state. The
// availability and conflict checks plus the insert run under per-practitioner
// and per-patient locks, so two concurrent calls for overlapping windows on
// the same practitioner (or patient) cannot both succeed.
func (s *Service) Book(ctx context.Context, in BookInput) (*Appointment, error) {
	started := s.now()

	appt, err := s.book(ctx, in)
	s.metrics.ObserveBooking(bookingOutcome(err), time.Since(started).Seconds())
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("appointment_id", appt.ID.String()).
		Str("practitioner_id", appt.PractitionerID.String()).
		Str("patient_id", appt.PatientID.String()).
		Time("start", appt.Start).
		Int("duration_minutes", appt.DurationMinutes).
		Msg("appointment booked")

	return appt, nil
}

func (s *Service) book(ctx context.Context, in BookInput) (*Appointment, error) {
	if in.DurationMinutes <= 0 {
		return nil, validationError("duration must be positive")
	}

	start := in.Start.In(s.loc)
	if !start.After(s.now()) {
		return nil, validationError("appointment start must be in the future")
	}
	end := start.Add(time.Duration(in.DurationMinutes) * time.Minute)

	if _, err := s.repo.GetPatientByID(ctx, in.PatientID); err != nil {
		return nil, err
	}
	practitioner, err := s.repo.GetPractitionerByID(ctx, in.PractitionerID)
	if err != nil {
		return nil, err
	}
	specialty, err := s.repo.GetSpecialtyByID(ctx, in.SpecialtyID)
	if err != nil {
		return nil, err
	}
	if !practitioner.HasSpecialty(in.SpecialtyID) {
		return nil, validationError("practitioner %s does not have specialty %s", practitioner.Name, specialty.Name)
	}

	keys := []string{
		redisclient.PractitionerKey(in.PractitionerID),
		redisclient.PatientKey(in.PatientID),
	}

	var created *Appointment
	err = s.withBookingLock(ctx, keys, func(lockCtx context.Context) error {
		if err := s.isOpen(lockCtx, in.PractitionerID, start, end); err != nil {
			return err
		}

		practitionerConflicts, err := s.repo.OverlappingPractitionerAppointments(lockCtx, in.PractitionerID, start, end)
		if err != nil {
			return fmt.Errorf("check practitioner conflicts: %w", err)
		}
		if len(practitionerConflicts) > 0 {
			return &ConflictError{Resource: ConflictPractitioner}
		}

		patientConflicts, err := s.repo.OverlappingPatientAppointments(lockCtx, in.PatientID, start, end)
		if err != nil {
			return fmt.Errorf("check patient conflicts: %w", err)
		}
		if len(patientConflicts) > 0 {
			return &ConflictError{Resource: ConflictPatient}
		}

		appt := Appointment{
			PatientID:       in.PatientID,
			PractitionerID:  in.PractitionerID,
			SpecialtyID:     in.SpecialtyID,
			Start:           start,
			DurationMinutes: in.DurationMinutes,
			Status:          StatusPending,
			Active:          true,
		}
		if motive := strings.TrimSpace(in.Motive); motive != "" {
			appt.Motive = &motive
		}

		created, err = s.repo.CreateAppointment(lockCtx, appt)
		if err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

// withBookingLock retries bounded times on contention before surfacing a
// TransientError; a lost race is retryable, unlike a genuine conflict.
func (s *Service) withBookingLock(ctx context.Context, keys []string, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt < s.lockRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return &TransientError{Err: ctx.Err()}
			case <-time.After(time.Duration(attempt) * s.lockRetryDelay):
			}
		}

		err = s.locker.WithLock(ctx, keys, fn)
		if !errors.Is(err, redisclient.ErrLockNotAcquired) {
			return wrapStoreErr(err)
		}
	}
	return &TransientError{Err: err}
}

// Confirm moves a pending appointment to confirmed.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusConfirmed, "")
}

// Cancel cancels a pending or confirmed appointment, freeing the slot. An
// optional reason is appended to the motive, mirroring how front desks
// annotate cancellations.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string) (*Appointment, error) {
	return s.transition(ctx, id, StatusCancelled, reason)
}

// MarkAttended records that the patient showed up. Terminal.
func (s *Service) MarkAttended(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusAttended, "")
}

// MarkNotAttended records a no-show, freeing the slot for overlap purposes.
func (s *Service) MarkNotAttended(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusNotAttended, "")
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, to Status, note string) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(appt.Status, to) {
		return nil, &InvalidStateTransitionError{From: appt.Status, To: to}
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, id, appt.Status, to)
	if err != nil {
		var nf *NotFoundError
		if errors.As(err, &nf) {
			// The compare-and-swap lost a race; report against the
			// current state.
			current, readErr := s.repo.GetAppointmentByID(ctx, id)
			if readErr != nil {
				return nil, readErr
			}
			return nil, &InvalidStateTransitionError{From: current.Status, To: to}
		}
		return nil, wrapStoreErr(err)
	}

	if note = strings.TrimSpace(note); note != "" {
		motive := fmt.Sprintf("[%s] %s", strings.ToUpper(string(to)), note)
		if updated.Motive != nil && *updated.Motive != "" {
			motive = *updated.Motive + "\n" + motive
		}
		updated, err = s.repo.UpdateAppointmentMotive(ctx, id, motive)
		if err != nil {
			return nil, wrapStoreErr(err)
		}
	}

	s.log.Info().
		Str("appointment_id", id.String()).
		Str("status", string(to)).
		Msg("appointment transitioned")

	return updated, nil
}

// GetAppointment retrieves a fully hydrated appointment by ID.
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	return s.repo.GetAppointmentDetail(ctx, id)
}

// UpdateMotive edits the free-text motive without touching the lifecycle.
func (s *Service) UpdateMotive(ctx context.Context, id uuid.UUID, motive string) (*Appointment, error) {
	if _, err := s.repo.GetAppointmentByID(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.UpdateAppointmentMotive(ctx, id, strings.TrimSpace(motive))
}

// RemoveAppointment soft-deletes an appointment administratively,
// independently of its lifecycle state.
func (s *Service) RemoveAppointment(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.GetAppointmentByID(ctx, id); err != nil {
		return err
	}
	return s.repo.SoftDeleteAppointment(ctx, id)
}

func bookingOutcome(err error) string {
	if err == nil {
		return "created"
	}

	var (
		vErr  *ValidationError
		nfErr *NotFoundError
		avErr *AvailabilityError
		cErr  *ConflictError
		tErr  *TransientError
	)
	switch {
	case errors.As(err, &vErr):
		return "validation_error"
	case errors.As(err, &nfErr):
		return "not_found"
	case errors.As(err, &avErr):
		return "unavailable_" + string(avErr.Kind)
	case errors.As(err, &cErr):
		return "conflict_" + string(cErr.Resource)
	case errors.As(err, &tErr):
		return "transient_error"
	default:
		return "error"
	}
}

// wrapStoreErr converts store timeouts into the retryable kind. Cancellation
// propagates as-is: the caller gave up, nothing should retry on its behalf.
func wrapStoreErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TransientError{Err: err}
	}
	return err
}
