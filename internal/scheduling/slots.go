package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinicbase/appointment-scheduling/internal/interval"
)

// DayAvailability is the outcome of a slot listing for one day. A blocked day
// carries the blockout reason and an empty slot list; it is not an error.
type DayAvailability struct {
	Date        time.Time
	Slots       []time.Time
	Blocked     bool
	BlockReason string
}

// AvailableSlots produces the bookable start instants for a practitioner on
// one day, for appointments of requestedMinutes. Candidates step through each
// weekly window by the window's own slot duration; a candidate survives if
// the requested interval fits the window, lies in the future, and does not
// overlap an active appointment. Pure with respect to inputs and store state:
// identical calls yield identical sequences.
func (s *Service) AvailableSlots(ctx context.Context, practitionerID uuid.UUID, day time.Time, requestedMinutes int) (DayAvailability, error) {
	s.metrics.ObserveSlotQuery()

	if requestedMinutes <= 0 {
		return DayAvailability{}, validationError("duration must be positive")
	}
	if _, err := s.repo.GetPractitionerByID(ctx, practitionerID); err != nil {
		return DayAvailability{}, err
	}

	day = day.In(s.loc)
	dayStart, dayEnd := DayBounds(day)
	result := DayAvailability{Date: dayStart}

	blockouts, err := s.repo.ListBlockouts(ctx, practitionerID, dayStart, dayEnd)
	if err != nil {
		return DayAvailability{}, fmt.Errorf("list blockouts: %w", err)
	}
	for _, b := range blockouts {
		if b.CoversDay(day) {
			result.Blocked = true
			result.BlockReason = "practitioner not available"
			if b.Reason != nil && *b.Reason != "" {
				result.BlockReason = *b.Reason
			}
			return result, nil
		}
	}

	windows, err := s.repo.ListWindows(ctx, practitionerID, day.Weekday())
	if err != nil {
		return DayAvailability{}, fmt.Errorf("list windows: %w", err)
	}
	if len(windows) == 0 {
		return DayAvailability{}, &AvailabilityError{
			Kind:   AvailabilityNoSchedule,
			Reason: fmt.Sprintf("practitioner does not work on %s", day.Weekday()),
		}
	}

	booked, err := s.repo.OverlappingPractitionerAppointments(ctx, practitionerID, dayStart, dayEnd)
	if err != nil {
		return DayAvailability{}, fmt.Errorf("list appointments: %w", err)
	}

	now := s.now()
	requested := time.Duration(requestedMinutes) * time.Minute

	// Windows arrive ordered by start minute and cannot overlap, so
	// appending window by window keeps candidates ascending.
	for _, w := range windows {
		winStart, winEnd := w.WindowOn(day)
		step := time.Duration(w.SlotMinutes) * time.Minute

		for candidate := winStart; !candidate.Add(requested).After(winEnd); candidate = candidate.Add(step) {
			if !candidate.After(now) {
				continue
			}
			if overlapsAny(candidate, candidate.Add(requested), booked) {
				continue
			}
			result.Slots = append(result.Slots, candidate)
		}
	}

	return result, nil
}

func overlapsAny(start, end time.Time, appts []Appointment) bool {
	for i := range appts {
		if interval.Overlaps(appts[i].Start, appts[i].End(), start, end) {
			return true
		}
	}
	return false
}
