package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/clinicbase/appointment-scheduling/internal/config"
	"github.com/clinicbase/appointment-scheduling/internal/db"
	"github.com/clinicbase/appointment-scheduling/internal/notify"
	"github.com/clinicbase/appointment-scheduling/internal/observability/metrics"
	"github.com/clinicbase/appointment-scheduling/internal/scheduling"
)

// The worker wakes every WorkerInterval and reminds patients of confirmed
// appointments starting roughly ReminderLead from now. The window width
// matches the interval so consecutive runs never overlap or skip.
func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "reminder-worker").Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	var sender notify.EmailSender
	if sg := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.FromEmail,
		FromName:  cfg.FromName,
	}, log); sg != nil {
		sender = sg
	} else {
		log.Warn().Msg("SENDGRID_API_KEY not set, logging reminders instead of sending")
		sender = &notify.LogSender{Log: log}
	}

	registry := prometheus.NewRegistry()
	reminders := notify.NewReminderService(
		scheduling.NewPgRepository(pool),
		sender,
		log,
		notify.ReminderConfig{
			Lead:    cfg.ReminderLead,
			Window:  cfg.ReminderWindow,
			Metrics: metrics.NewSchedulingMetrics(registry),
		},
	)

	runOnce := func() {
		runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
		defer cancel()
		if err := reminders.Run(runCtx); err != nil {
			log.Error().Err(err).Msg("reminder pass failed")
		}
	}

	log.Info().Dur("interval", cfg.WorkerInterval).Dur("lead", cfg.ReminderLead).Msg("reminder worker started")
	runOnce()

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("reminder worker stopping")
			return
		case <-ticker.C:
			runOnce()
		}
	}
}
