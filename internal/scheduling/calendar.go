package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const maxCalendarDays = 90

// Calendar projects slot availability over a horizon of days starting at
// from. Blocked days appear with their reason and no slots; days without a
// schedule are omitted entirely — the practitioner simply isn't scheduled.
func (s *Service) Calendar(ctx context.Context, practitionerID uuid.UUID, from time.Time, days, requestedMinutes int) ([]DayAvailability, error) {
	if days <= 0 {
		days = 14
	}
	if days > maxCalendarDays {
		return nil, validationError("calendar horizon must not exceed %d days", maxCalendarDays)
	}
	if requestedMinutes <= 0 {
		return nil, validationError("duration must be positive")
	}
	if _, err := s.repo.GetPractitionerByID(ctx, practitionerID); err != nil {
		return nil, err
	}

	firstDay := from.In(s.loc)
	horizonStart, _ := DayBounds(firstDay)
	_, horizonEnd := DayBounds(firstDay.AddDate(0, 0, days-1))

	// One blockout fetch for the whole horizon; the projector then decides
	// blocked days without invoking the slot generator for them.
	blockouts, err := s.repo.ListBlockouts(ctx, practitionerID, horizonStart, horizonEnd)
	if err != nil {
		return nil, fmt.Errorf("list blockouts: %w", err)
	}

	var result []DayAvailability
	for i := 0; i < days; i++ {
		day := firstDay.AddDate(0, 0, i)
		dayStart, _ := DayBounds(day)

		if reason, blocked := blockedDayReason(day, blockouts); blocked {
			result = append(result, DayAvailability{
				Date:        dayStart,
				Blocked:     true,
				BlockReason: reason,
			})
			continue
		}

		dayAvail, err := s.AvailableSlots(ctx, practitionerID, day, requestedMinutes)
		if err != nil {
			var avErr *AvailabilityError
			if errors.As(err, &avErr) && avErr.Kind == AvailabilityNoSchedule {
				continue
			}
			return nil, err
		}
		result = append(result, dayAvail)
	}

	return result, nil
}

func blockedDayReason(day time.Time, blockouts []Blockout) (string, bool) {
	for i := range blockouts {
		if blockouts[i].CoversDay(day) {
			if blockouts[i].Reason != nil && *blockouts[i].Reason != "" {
				return *blockouts[i].Reason, true
			}
			return "practitioner not available", true
		}
	}
	return "", false
}
