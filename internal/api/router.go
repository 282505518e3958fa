package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type RouterConfig struct {
	Service  SchedulingService
	Location *time.Location
	Pool     *pgxpool.Pool
	Redis    *redis.Client
	Registry *prometheus.Registry
	Version  string
	Logger   zerolog.Logger
}

func NewRouter(cfg RouterConfig) chi.Router {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	h := &handler{svc: cfg.Service, loc: loc, log: cfg.Logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(RequestID)
	r.Use(RequestLogger(cfg.Logger))

	r.Get("/healthz", livenessHandler(cfg.Version))
	r.Get("/readyz", readinessHandler(cfg.Pool, cfg.Redis))
	if cfg.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/appointments", func(r chi.Router) {
			r.Post("/", h.bookAppointment)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.getAppointment)
				r.Delete("/", h.deleteAppointment)
				r.Patch("/motive", h.updateMotive)
				r.Post("/confirm", h.transitionHandler(h.svc.Confirm))
				r.Post("/cancel", h.cancelAppointment)
				r.Post("/attended", h.transitionHandler(h.svc.MarkAttended))
				r.Post("/no-show", h.transitionHandler(h.svc.MarkNotAttended))
			})
		})

		r.Route("/practitioners/{practitionerID}", func(r chi.Router) {
			r.Get("/slots", h.availableSlots)
			r.Get("/calendar", h.calendar)

			r.Route("/windows", func(r chi.Router) {
				r.Get("/", h.listWindows)
				r.Post("/", h.createWindow)
				r.Put("/{windowID}", h.updateWindow)
				r.Delete("/{windowID}", h.deleteWindow)
			})

			r.Route("/blockouts", func(r chi.Router) {
				r.Get("/", h.listBlockouts)
				r.Post("/", h.createBlockout)
				r.Put("/{blockoutID}", h.updateBlockout)
				r.Delete("/{blockoutID}", h.deleteBlockout)
			})
		})
	})

	return r
}
