package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinicbase/appointment-scheduling/internal/observability/metrics"
	"github.com/clinicbase/appointment-scheduling/internal/scheduling"
)

// ReminderConfig tunes the lookahead window. With the defaults a run picks up
// confirmed appointments starting between 23h30 and 24h30 from now, so an
// hourly worker reminds each appointment exactly once.
type ReminderConfig struct {
	Lead    time.Duration
	Window  time.Duration
	Now     func() time.Time
	Metrics *metrics.SchedulingMetrics
}

// ReminderService emails patients ahead of their confirmed appointments.
type ReminderService struct {
	repo    scheduling.Repository
	sender  EmailSender
	log     zerolog.Logger
	now     func() time.Time
	lead    time.Duration
	window  time.Duration
	metrics *metrics.SchedulingMetrics
}

func NewReminderService(repo scheduling.Repository, sender EmailSender, log zerolog.Logger, cfg ReminderConfig) *ReminderService {
	if cfg.Lead <= 0 {
		cfg.Lead = 24 * time.Hour
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &ReminderService{
		repo:    repo,
		sender:  sender,
		log:     log,
		now:     cfg.Now,
		lead:    cfg.Lead,
		window:  cfg.Window,
		metrics: cfg.Metrics,
	}
}

// Run performs one reminder pass. Send failures are logged and counted but do
// not abort the pass; the next run does not retry them since its window has
// moved on.
func (r *ReminderService) Run(ctx context.Context) error {
	now := r.now()
	from := now.Add(r.lead - r.window/2)
	to := now.Add(r.lead + r.window/2)

	upcoming, err := r.repo.ListConfirmedStartingBetween(ctx, from, to)
	if err != nil {
		return fmt.Errorf("list upcoming appointments: %w", err)
	}

	sent := 0
	for i := range upcoming {
		appt := &upcoming[i]
		if appt.PatientEmail == nil || *appt.PatientEmail == "" {
			r.metrics.ObserveReminder("no_email")
			continue
		}

		msg := composeReminder(appt)
		if err := r.sender.Send(ctx, msg); err != nil {
			r.log.Error().Err(err).Str("appointment_id", appt.ID.String()).Msg("reminder send failed")
			r.metrics.ObserveReminder("failed")
			continue
		}
		r.metrics.ObserveReminder("sent")
		sent++
	}

	if sent > 0 {
		r.log.Info().Int("sent", sent).Int("candidates", len(upcoming)).Msg("reminder pass complete")
	}
	return nil
}

func composeReminder(appt *scheduling.AppointmentDetail) EmailMessage {
	body := fmt.Sprintf(`Hello %s,

This is a reminder of your upcoming medical appointment.

Date and time: %s
Practitioner: %s
Specialty: %s

If you cannot attend, please cancel the appointment in advance.

Regards,
Clinic Scheduling`,
		appt.PatientName,
		appt.Start.Format("02/01/2006 15:04"),
		appt.PractitionerName,
		appt.SpecialtyName,
	)

	return EmailMessage{
		To:      *appt.PatientEmail,
		ToName:  appt.PatientName,
		Subject: "Appointment reminder",
		Body:    body,
	}
}
