package main

import (
	"context"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/clinicbase/appointment-scheduling/internal/config"
	"github.com/clinicbase/appointment-scheduling/internal/db"
)

var specialtyNames = []string{
	"Cardiology",
	"Dermatology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	log.Info().Msg("seed starting")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	specialtyIDs, err := seedSpecialties(ctx, pool)
	if err != nil {
		log.Fatal().Err(err).Msg("seed specialties")
	}
	if err := seedPractitioners(ctx, pool, specialtyIDs, 50); err != nil {
		log.Fatal().Err(err).Msg("seed practitioners")
	}
	if err := seedPatients(ctx, pool, 2000); err != nil {
		log.Fatal().Err(err).Msg("seed patients")
	}

	log.Info().Msg("seed complete")
}

func seedSpecialties(ctx context.Context, pool *pgxpool.Pool) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(specialtyNames))
	for _, name := range specialtyNames {
		id := uuid.New()
		_, err := pool.Exec(ctx, `
			INSERT INTO specialties (id, name, created_at, updated_at)
			VALUES ($1, $2, now(), now())
			ON CONFLICT (name) DO NOTHING
		`, id, name)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// seedPractitioners creates practitioners holding one or two specialties, each
// with weekday morning and afternoon windows in 15 or 30 minute slots.
func seedPractitioners(ctx context.Context, pool *pgxpool.Pool, specialtyIDs []uuid.UUID, count int) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		id := uuid.New()
		email := gofakeit.Email()
		_, err := tx.Exec(ctx, `
			INSERT INTO practitioners (id, name, email, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, id, "Dr. "+gofakeit.Name(), email)
		if err != nil {
			return err
		}

		held := gofakeit.Number(1, 2)
		for _, sid := range pickSpecialties(specialtyIDs, held) {
			_, err := tx.Exec(ctx, `
				INSERT INTO practitioner_specialties (practitioner_id, specialty_id)
				VALUES ($1, $2)
			`, id, sid)
			if err != nil {
				return err
			}
		}

		slotMinutes := []int{15, 30}[gofakeit.Number(0, 1)]
		for weekday := time.Monday; weekday <= time.Friday; weekday++ {
			if gofakeit.Bool() && weekday != time.Monday {
				continue
			}
			windows := [][2]int{{8 * 60, 12 * 60}}
			if gofakeit.Bool() {
				windows = append(windows, [2]int{14 * 60, 18 * 60})
			}
			for _, w := range windows {
				_, err := tx.Exec(ctx, `
					INSERT INTO weekly_availability (id, practitioner_id, weekday, start_minute, end_minute, slot_minutes, active, created_at, updated_at)
					VALUES ($1, $2, $3, $4, $5, $6, true, now(), now())
				`, uuid.New(), id, int16(weekday), w[0], w[1], slotMinutes)
				if err != nil {
					return err
				}
			}
		}
	}

	return tx.Commit(ctx)
}

func pickSpecialties(ids []uuid.UUID, n int) []uuid.UUID {
	if n >= len(ids) {
		return ids
	}
	seen := map[int]bool{}
	out := make([]uuid.UUID, 0, n)
	for len(out) < n {
		idx := gofakeit.Number(0, len(ids)-1)
		if seen[idx] {
			continue
		}
		seen[idx] = true
		out = append(out, ids[idx])
	}
	return out
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		email := gofakeit.Email()
		_, err := tx.Exec(ctx, `
			INSERT INTO patients (id, name, email, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, uuid.New(), gofakeit.Name(), email)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}
