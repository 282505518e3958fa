package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinicbase/appointment-scheduling/internal/interval"
	redisclient "github.com/clinicbase/appointment-scheduling/internal/redis"
)

// isOpen reports whether the practitioner is nominally open for the whole of
// [start, end): the interval must fit inside one weekly window of start's
// weekday and must not touch any blockout. The returned error is always an
// *AvailabilityError carrying the subkind.
func (s *Service) isOpen(ctx context.Context, practitionerID uuid.UUID, start, end time.Time) error {
	day := start.In(s.loc)

	windows, err := s.repo.ListWindows(ctx, practitionerID, day.Weekday())
	if err != nil {
		return fmt.Errorf("list windows: %w", err)
	}
	if len(windows) == 0 {
		return &AvailabilityError{
			Kind:   AvailabilityNoSchedule,
			Reason: fmt.Sprintf("practitioner does not work on %s", day.Weekday()),
		}
	}

	inWindow := false
	for _, w := range windows {
		ws, we := w.WindowOn(day)
		if interval.Contains(ws, we, start, end) {
			inWindow = true
			break
		}
	}
	if !inWindow {
		return &AvailabilityError{
			Kind:   AvailabilityOutsideHours,
			Reason: fmt.Sprintf("practitioner does not attend at that time on %s", day.Weekday()),
		}
	}

	blockouts, err := s.repo.ListBlockouts(ctx, practitionerID, start, end)
	if err != nil {
		return fmt.Errorf("list blockouts: %w", err)
	}
	for _, b := range blockouts {
		if interval.Overlaps(b.Start, b.End, start, end) {
			reason := "practitioner is on leave"
			if b.Reason != nil && *b.Reason != "" {
				reason = *b.Reason
			}
			return &AvailabilityError{Kind: AvailabilityBlocked, Reason: reason}
		}
	}

	return nil
}

// WindowsFor lists the active weekly windows of a practitioner for one
// weekday, ordered by start time. An empty result means the practitioner does
// not work that weekday, which is distinct from being blocked.
func (s *Service) WindowsFor(ctx context.Context, practitionerID uuid.UUID, weekday time.Weekday) ([]WeeklyAvailability, error) {
	if _, err := s.repo.GetPractitionerByID(ctx, practitionerID); err != nil {
		return nil, err
	}
	return s.repo.ListWindows(ctx, practitionerID, weekday)
}

type WindowInput struct {
	Weekday     time.Weekday
	StartMinute int
	EndMinute   int
	SlotMinutes int
}

func validateWindowInput(in WindowInput) error {
	if in.Weekday < time.Sunday || in.Weekday > time.Saturday {
		return validationError("weekday must be between 0 and 6")
	}
	if in.StartMinute < 0 || in.EndMinute > 24*60 {
		return validationError("window must fall within a single day")
	}
	if in.StartMinute >= in.EndMinute {
		return validationError("window end must be after window start")
	}
	if in.SlotMinutes <= 0 {
		return validationError("slot duration must be positive")
	}
	return nil
}

// CreateWindow adds a weekly availability window after checking it against
// the practitioner's existing active windows for that weekday. Overlap is
// rejected at write time so reads never need conflict resolution.
func (s *Service) CreateWindow(ctx context.Context, practitionerID uuid.UUID, in WindowInput) (*WeeklyAvailability, error) {
	if err := validateWindowInput(in); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetPractitionerByID(ctx, practitionerID); err != nil {
		return nil, err
	}
	if err := s.checkWindowOverlap(ctx, practitionerID, in, uuid.Nil); err != nil {
		return nil, err
	}

	return s.repo.CreateWindow(ctx, WeeklyAvailability{
		PractitionerID: practitionerID,
		Weekday:        in.Weekday,
		StartMinute:    in.StartMinute,
		EndMinute:      in.EndMinute,
		SlotMinutes:    in.SlotMinutes,
		Active:         true,
	})
}

// UpdateWindow edits an existing window, re-validating overlap against the
// practitioner's other windows.
func (s *Service) UpdateWindow(ctx context.Context, practitionerID, windowID uuid.UUID, in WindowInput) (*WeeklyAvailability, error) {
	if err := validateWindowInput(in); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetWindowByID(ctx, windowID)
	if err != nil {
		return nil, err
	}
	if existing.PractitionerID != practitionerID {
		return nil, &NotFoundError{Entity: "availability window", ID: windowID}
	}
	if err := s.checkWindowOverlap(ctx, practitionerID, in, windowID); err != nil {
		return nil, err
	}

	existing.Weekday = in.Weekday
	existing.StartMinute = in.StartMinute
	existing.EndMinute = in.EndMinute
	existing.SlotMinutes = in.SlotMinutes

	return s.repo.UpdateWindow(ctx, *existing)
}

// RemoveWindow deactivates a window; it is never hard-removed because
// historical bookings reference it indirectly.
func (s *Service) RemoveWindow(ctx context.Context, practitionerID, windowID uuid.UUID) error {
	existing, err := s.repo.GetWindowByID(ctx, windowID)
	if err != nil {
		return err
	}
	if existing.PractitionerID != practitionerID {
		return &NotFoundError{Entity: "availability window", ID: windowID}
	}
	return s.repo.DeactivateWindow(ctx, windowID)
}

func (s *Service) checkWindowOverlap(ctx context.Context, practitionerID uuid.UUID, in WindowInput, excludeID uuid.UUID) error {
	existing, err := s.repo.ListWindows(ctx, practitionerID, in.Weekday)
	if err != nil {
		return fmt.Errorf("list windows: %w", err)
	}
	for _, w := range existing {
		if w.ID == excludeID {
			continue
		}
		if interval.OverlapsMinutes(w.StartMinute, w.EndMinute, in.StartMinute, in.EndMinute) {
			return validationError("window overlaps an existing availability window on %s", in.Weekday)
		}
	}
	return nil
}

type BlockoutInput struct {
	From   time.Time // first blocked day
	To     time.Time // last blocked day, inclusive
	Reason string
}

// CreateBlockout registers a standing absence covering whole days. Creation
// is rejected while any pending or confirmed appointment falls inside the
// period; those must be cancelled first.
func (s *Service) CreateBlockout(ctx context.Context, practitionerID uuid.UUID, in BlockoutInput) (*Blockout, error) {
	if _, err := s.repo.GetPractitionerByID(ctx, practitionerID); err != nil {
		return nil, err
	}

	start, end, err := s.blockoutBounds(in)
	if err != nil {
		return nil, err
	}

	// The practitioner booking lock keeps the appointment check and the
	// insert atomic against a concurrent Book for the same practitioner.
	var created *Blockout
	err = s.withBookingLock(ctx, []string{redisclient.PractitionerKey(practitionerID)}, func(lockCtx context.Context) error {
		if err := s.checkBlockoutClear(lockCtx, practitionerID, start, end, uuid.Nil); err != nil {
			return err
		}

		b := Blockout{
			PractitionerID: practitionerID,
			Start:          start,
			End:            end,
			Active:         true,
		}
		if in.Reason != "" {
			reason := in.Reason
			b.Reason = &reason
		}
		created, err = s.repo.CreateBlockout(lockCtx, b)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateBlockout moves or extends a blockout under the same preconditions as
// creation.
func (s *Service) UpdateBlockout(ctx context.Context, practitionerID, blockoutID uuid.UUID, in BlockoutInput) (*Blockout, error) {
	existing, err := s.repo.GetBlockoutByID(ctx, blockoutID)
	if err != nil {
		return nil, err
	}
	if existing.PractitionerID != practitionerID {
		return nil, &NotFoundError{Entity: "blockout", ID: blockoutID}
	}

	start, end, err := s.blockoutBounds(in)
	if err != nil {
		return nil, err
	}

	var updated *Blockout
	err = s.withBookingLock(ctx, []string{redisclient.PractitionerKey(practitionerID)}, func(lockCtx context.Context) error {
		if err := s.checkBlockoutClear(lockCtx, practitionerID, start, end, blockoutID); err != nil {
			return err
		}

		existing.Start = start
		existing.End = end
		existing.Reason = nil
		if in.Reason != "" {
			reason := in.Reason
			existing.Reason = &reason
		}
		updated, err = s.repo.UpdateBlockout(lockCtx, *existing)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// RemoveBlockout deactivates a blockout.
func (s *Service) RemoveBlockout(ctx context.Context, practitionerID, blockoutID uuid.UUID) error {
	existing, err := s.repo.GetBlockoutByID(ctx, blockoutID)
	if err != nil {
		return err
	}
	if existing.PractitionerID != practitionerID {
		return &NotFoundError{Entity: "blockout", ID: blockoutID}
	}
	return s.repo.DeactivateBlockout(ctx, blockoutID)
}

// ListBlockouts returns a practitioner's active blockouts touching
// [from, to].
func (s *Service) ListBlockouts(ctx context.Context, practitionerID uuid.UUID, from, to time.Time) ([]Blockout, error) {
	if _, err := s.repo.GetPractitionerByID(ctx, practitionerID); err != nil {
		return nil, err
	}
	return s.repo.ListBlockouts(ctx, practitionerID, from, to)
}

func (s *Service) blockoutBounds(in BlockoutInput) (time.Time, time.Time, error) {
	if in.From.IsZero() || in.To.IsZero() {
		return time.Time{}, time.Time{}, validationError("blockout requires both start and end dates")
	}
	start, _ := DayBounds(in.From.In(s.loc))
	_, end := DayBounds(in.To.In(s.loc))
	if end.Before(start) {
		return time.Time{}, time.Time{}, validationError("blockout end must not precede its start")
	}
	return start, end, nil
}

func (s *Service) checkBlockoutClear(ctx context.Context, practitionerID uuid.UUID, start, end time.Time, excludeID uuid.UUID) error {
	existing, err := s.repo.ListBlockouts(ctx, practitionerID, start, end)
	if err != nil {
		return fmt.Errorf("list blockouts: %w", err)
	}
	for _, b := range existing {
		if b.ID == excludeID {
			continue
		}
		if interval.Overlaps(b.Start, b.End, start, end) {
			return validationError("an existing blockout already covers part of that period")
		}
	}

	unresolved, err := s.repo.PendingOrConfirmedInRange(ctx, practitionerID, start, end)
	if err != nil {
		return fmt.Errorf("check appointments in blockout period: %w", err)
	}
	if len(unresolved) > 0 {
		return validationError("%d pending or confirmed appointments fall inside the blockout period; cancel them first", len(unresolved))
	}
	return nil
}
