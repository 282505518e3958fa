package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/clinicbase/appointment-scheduling/internal/config"
	"github.com/clinicbase/appointment-scheduling/internal/db"
)

// simulate stresses the booking endpoint: it aims every worker at the same
// practitioner and slot, so a run is correct only when exactly one booking per
// slot is created and the rest conflict.
func main() {
	var (
		baseURL  = flag.String("base-url", "http://localhost:8080", "API base URL")
		workers  = flag.Int("workers", 20, "concurrent booking attempts per slot")
		rounds   = flag.Int("rounds", 10, "number of contended slots to attack")
		duration = flag.Int("duration-minutes", 30, "appointment length")
	)
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	practitionerID, specialtyID, err := pickPractitioner(ctx, pool)
	if err != nil {
		log.Fatal().Err(err).Msg("pick practitioner")
	}
	patients, err := pickPatients(ctx, pool, *workers)
	if err != nil {
		log.Fatal().Err(err).Msg("pick patients")
	}
	if len(patients) < *workers {
		log.Fatal().Int("patients", len(patients)).Msg("not enough patients; seed first")
	}

	sim := &simulator{
		client:         &http.Client{Timeout: 10 * time.Second},
		baseURL:        *baseURL,
		practitionerID: practitionerID,
		specialtyID:    specialtyID,
		patients:       patients,
		duration:       *duration,
		log:            log,
	}

	slots, err := sim.freeSlots(ctx, *rounds)
	if err != nil {
		log.Fatal().Err(err).Msg("fetch slots")
	}
	if len(slots) == 0 {
		log.Fatal().Msg("no free slots; seed first and pick a practitioner with availability")
	}

	var created, conflicts, other int64
	for _, slot := range slots {
		c, cf, o := sim.attackSlot(ctx, slot, *workers)
		created += c
		conflicts += cf
		other += o
		if c != 1 {
			log.Error().Time("slot", slot).Int64("created", c).Msg("CONSISTENCY VIOLATION: expected exactly one booking")
		}
	}

	log.Info().
		Int("slots", len(slots)).
		Int("workers", *workers).
		Int64("created", created).
		Int64("conflicts", conflicts).
		Int64("other", other).
		Msg("simulation complete")

	if created != int64(len(slots)) {
		os.Exit(1)
	}
}

func pickPractitioner(ctx context.Context, pool *pgxpool.Pool) (uuid.UUID, uuid.UUID, error) {
	var practitionerID, specialtyID uuid.UUID
	err := pool.QueryRow(ctx, `
		SELECT ps.practitioner_id, ps.specialty_id
		FROM practitioner_specialties ps
		JOIN weekly_availability wa ON wa.practitioner_id = ps.practitioner_id AND wa.active
		LIMIT 1
	`).Scan(&practitionerID, &specialtyID)
	return practitionerID, specialtyID, err
}

func pickPatients(ctx context.Context, pool *pgxpool.Pool, limit int) ([]uuid.UUID, error) {
	rows, err := pool.Query(ctx, `SELECT id FROM patients LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type simulator struct {
	client         *http.Client
	baseURL        string
	practitionerID uuid.UUID
	specialtyID    uuid.UUID
	patients       []uuid.UUID
	duration       int
	log            zerolog.Logger
}

type slotsResponse struct {
	Slots []time.Time `json:"slots"`
}

// freeSlots walks forward day by day until it has gathered limit open slots,
// skipping blocked and unscheduled days.
func (s *simulator) freeSlots(ctx context.Context, limit int) ([]time.Time, error) {
	var out []time.Time
	day := time.Now().AddDate(0, 0, 1)

	for len(out) < limit && len(out) < 200 {
		url := fmt.Sprintf("%s/api/v1/practitioners/%s/slots?date=%s&duration_minutes=%d",
			s.baseURL, s.practitionerID, day.Format("2006-01-02"), s.duration)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := s.client.Do(req)
		if err != nil {
			return nil, err
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusOK {
			var sr slotsResponse
			if err := json.Unmarshal(body, &sr); err != nil {
				return nil, err
			}
			out = append(out, sr.Slots...)
		}

		day = day.AddDate(0, 0, 1)
		if day.After(time.Now().AddDate(0, 0, 60)) {
			break
		}
	}

	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// attackSlot fires workers concurrent bookings for the same slot, one patient
// each so only the practitioner side can conflict.
func (s *simulator) attackSlot(ctx context.Context, slot time.Time, workers int) (created, conflicts, other int64) {
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(patientID uuid.UUID) {
			defer wg.Done()
			status, err := s.book(ctx, patientID, slot)
			switch {
			case err != nil:
				atomic.AddInt64(&other, 1)
				s.log.Warn().Err(err).Msg("booking request failed")
			case status == http.StatusCreated:
				atomic.AddInt64(&created, 1)
			case status == http.StatusConflict:
				atomic.AddInt64(&conflicts, 1)
			default:
				atomic.AddInt64(&other, 1)
				s.log.Warn().Int("status", status).Time("slot", slot).Msg("unexpected booking status")
			}
		}(s.patients[i])
	}
	wg.Wait()
	return created, conflicts, other
}

func (s *simulator) book(ctx context.Context, patientID uuid.UUID, slot time.Time) (int, error) {
	payload, err := json.Marshal(map[string]any{
		"patient_id":       patientID,
		"practitioner_id":  s.practitionerID,
		"specialty_id":     s.specialtyID,
		"start":            slot.Format(time.RFC3339),
		"duration_minutes": s.duration,
		"motive":           "load simulation",
	})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/v1/appointments", bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}
