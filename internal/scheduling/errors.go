package scheduling

import (
	"fmt"

	"github.com/google/uuid"
)

// The scheduling core reports failures through a closed set of error kinds so
// callers can branch on kind rather than message text.

// ValidationError is a client-correctable input problem (past start,
// specialty mismatch, malformed window). Never retried.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationError(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError signals a missing referenced entity.
type NotFoundError struct {
	Entity string
	ID     uuid.UUID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

type AvailabilityKind string

const (
	// AvailabilityNoSchedule: the practitioner has no windows that weekday.
	AvailabilityNoSchedule AvailabilityKind = "no_schedule"
	// AvailabilityBlocked: a blockout covers the requested time.
	AvailabilityBlocked AvailabilityKind = "blocked"
	// AvailabilityOutsideHours: the weekday is worked but the requested
	// interval does not fit inside any window.
	AvailabilityOutsideHours AvailabilityKind = "outside_hours"
)

// AvailabilityError reports why a practitioner is not open for a requested
// interval, with the subkind callers need to render the three cases
// distinctly.
type AvailabilityError struct {
	Kind   AvailabilityKind
	Reason string
}

func (e *AvailabilityError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("practitioner not available (%s): %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("practitioner not available (%s)", e.Kind)
}

type ConflictSide string

const (
	ConflictPractitioner ConflictSide = "practitioner"
	ConflictPatient      ConflictSide = "patient"
)

// ConflictError is a double-booking on the practitioner or patient side.
// Retrying with the same request will conflict again.
type ConflictError struct {
	Resource ConflictSide
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s already has an appointment overlapping that time", e.Resource)
}

// InvalidStateTransitionError names both the current and the requested state.
type InvalidStateTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("invalid state transition from %s to %s", e.From, e.To)
}

// TransientError wraps store timeouts and lock contention that exhausted
// retries. Safe to retry with backoff.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient scheduling failure: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }
