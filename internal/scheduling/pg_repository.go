package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the slice of *pgxpool.Pool the repository uses; pgxmock satisfies
// it too.
type DBTX interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PgRepository struct {
	pool DBTX
}

func NewPgRepository(pool DBTX) *PgRepository {
	return &PgRepository{pool: pool}
}

var activeStatuses = []string{string(StatusPending), string(StatusConfirmed), string(StatusAttended)}

// Helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.Name, &p.Email, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Entity: "patient"}
		}
		return nil, err
	}
	return &p, nil
}

func scanSpecialty(row pgx.Row) (*Specialty, error) {
	var s Specialty
	err := row.Scan(&s.ID, &s.Name, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Entity: "specialty"}
		}
		return nil, err
	}
	return &s, nil
}

func scanWindow(row pgx.Row) (*WeeklyAvailability, error) {
	var w WeeklyAvailability
	var weekday int16
	err := row.Scan(
		&w.ID,
		&w.PractitionerID,
		&weekday,
		&w.StartMinute,
		&w.EndMinute,
		&w.SlotMinutes,
		&w.Active,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Entity: "availability window"}
		}
		return nil, err
	}
	w.Weekday = time.Weekday(weekday)
	return &w, nil
}

func scanBlockout(row pgx.Row) (*Blockout, error) {
	var b Blockout
	err := row.Scan(
		&b.ID,
		&b.PractitionerID,
		&b.Start,
		&b.End,
		&b.Reason,
		&b.Active,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Entity: "blockout"}
		}
		return nil, err
	}
	return &b, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var status string
	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.PractitionerID,
		&a.SpecialtyID,
		&a.Start,
		&a.DurationMinutes,
		&status,
		&a.Motive,
		&a.Active,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Entity: "appointment"}
		}
		return nil, err
	}
	a.Status = Status(status)
	return &a, nil
}

const appointmentColumns = `id, patient_id, practitioner_id, specialty_id, start_at, duration_minutes, status, motive, active, created_at, updated_at`

// Interface methods

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM patients
		WHERE id = $1 AND active
	`, id)
	p, err := scanPatient(row)
	if err != nil {
		return nil, withID(err, id)
	}
	return p, nil
}

func (r *PgRepository) GetPractitionerByID(ctx context.Context, id uuid.UUID) (*Practitioner, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT p.id, p.name, p.email,
		       COALESCE(array_agg(ps.specialty_id) FILTER (WHERE ps.specialty_id IS NOT NULL), '{}'),
		       p.created_at, p.updated_at
		FROM practitioners p
		LEFT JOIN practitioner_specialties ps ON ps.practitioner_id = p.id
		WHERE p.id = $1 AND p.active
		GROUP BY p.id
	`, id)

	var p Practitioner
	err := row.Scan(&p.ID, &p.Name, &p.Email, &p.SpecialtyIDs, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Entity: "practitioner", ID: id}
		}
		return nil, err
	}
	return &p, nil
}

func (r *PgRepository) GetSpecialtyByID(ctx context.Context, id uuid.UUID) (*Specialty, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, created_at, updated_at
		FROM specialties
		WHERE id = $1
	`, id)
	s, err := scanSpecialty(row)
	if err != nil {
		return nil, withID(err, id)
	}
	return s, nil
}

func (r *PgRepository) ListWindows(ctx context.Context, practitionerID uuid.UUID, weekday time.Weekday) ([]WeeklyAvailability, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, practitioner_id, weekday, start_minute, end_minute, slot_minutes, active, created_at, updated_at
		FROM weekly_availability
		WHERE practitioner_id = $1 AND weekday = $2 AND active
		ORDER BY start_minute
	`, practitionerID, int16(weekday))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []WeeklyAvailability
	for rows.Next() {
		w, err := scanWindow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *w)
	}
	return result, rows.Err()
}

func (r *PgRepository) GetWindowByID(ctx context.Context, id uuid.UUID) (*WeeklyAvailability, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, practitioner_id, weekday, start_minute, end_minute, slot_minutes, active, created_at, updated_at
		FROM weekly_availability
		WHERE id = $1 AND active
	`, id)
	w, err := scanWindow(row)
	if err != nil {
		return nil, withID(err, id)
	}
	return w, nil
}

func (r *PgRepository) CreateWindow(ctx context.Context, w WeeklyAvailability) (*WeeklyAvailability, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO weekly_availability (id, practitioner_id, weekday, start_minute, end_minute, slot_minutes, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, true, now(), now())
		RETURNING id, practitioner_id, weekday, start_minute, end_minute, slot_minutes, active, created_at, updated_at
	`, uuid.New(), w.PractitionerID, int16(w.Weekday), w.StartMinute, w.EndMinute, w.SlotMinutes)
	return scanWindow(row)
}

func (r *PgRepository) UpdateWindow(ctx context.Context, w WeeklyAvailability) (*WeeklyAvailability, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE weekly_availability
		SET weekday = $2,
		    start_minute = $3,
		    end_minute = $4,
		    slot_minutes = $5,
		    updated_at = now()
		WHERE id = $1 AND active
		RETURNING id, practitioner_id, weekday, start_minute, end_minute, slot_minutes, active, created_at, updated_at
	`, w.ID, int16(w.Weekday), w.StartMinute, w.EndMinute, w.SlotMinutes)
	updated, err := scanWindow(row)
	if err != nil {
		return nil, withID(err, w.ID)
	}
	return updated, nil
}

func (r *PgRepository) DeactivateWindow(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE weekly_availability
		SET active = false, updated_at = now()
		WHERE id = $1 AND active
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &NotFoundError{Entity: "availability window", ID: id}
	}
	return nil
}

func (r *PgRepository) ListBlockouts(ctx context.Context, practitionerID uuid.UUID, from, to time.Time) ([]Blockout, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, practitioner_id, start_at, end_at, reason, active, created_at, updated_at
		FROM blockouts
		WHERE practitioner_id = $1 AND active
		  AND start_at < $3 AND $2 < end_at
		ORDER BY start_at
	`, practitionerID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Blockout
	for rows.Next() {
		b, err := scanBlockout(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *b)
	}
	return result, rows.Err()
}

func (r *PgRepository) GetBlockoutByID(ctx context.Context, id uuid.UUID) (*Blockout, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, practitioner_id, start_at, end_at, reason, active, created_at, updated_at
		FROM blockouts
		WHERE id = $1 AND active
	`, id)
	b, err := scanBlockout(row)
	if err != nil {
		return nil, withID(err, id)
	}
	return b, nil
}

func (r *PgRepository) CreateBlockout(ctx context.Context, b Blockout) (*Blockout, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO blockouts (id, practitioner_id, start_at, end_at, reason, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, true, now(), now())
		RETURNING id, practitioner_id, start_at, end_at, reason, active, created_at, updated_at
	`, uuid.New(), b.PractitionerID, b.Start, b.End, b.Reason)
	return scanBlockout(row)
}

func (r *PgRepository) UpdateBlockout(ctx context.Context, b Blockout) (*Blockout, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE blockouts
		SET start_at = $2,
		    end_at = $3,
		    reason = $4,
		    updated_at = now()
		WHERE id = $1 AND active
		RETURNING id, practitioner_id, start_at, end_at, reason, active, created_at, updated_at
	`, b.ID, b.Start, b.End, b.Reason)
	updated, err := scanBlockout(row)
	if err != nil {
		return nil, withID(err, b.ID)
	}
	return updated, nil
}

func (r *PgRepository) DeactivateBlockout(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE blockouts
		SET active = false, updated_at = now()
		WHERE id = $1 AND active
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &NotFoundError{Entity: "blockout", ID: id}
	}
	return nil
}

func (r *PgRepository) OverlappingPractitionerAppointments(ctx context.Context, practitionerID uuid.UUID, start, end time.Time) ([]Appointment, error) {
	return r.listOverlapping(ctx, "practitioner_id", practitionerID, start, end, activeStatuses)
}

func (r *PgRepository) OverlappingPatientAppointments(ctx context.Context, patientID uuid.UUID, start, end time.Time) ([]Appointment, error) {
	return r.listOverlapping(ctx, "patient_id", patientID, start, end, activeStatuses)
}

func (r *PgRepository) PendingOrConfirmedInRange(ctx context.Context, practitionerID uuid.UUID, start, end time.Time) ([]Appointment, error) {
	return r.listOverlapping(ctx, "practitioner_id", practitionerID, start, end,
		[]string{string(StatusPending), string(StatusConfirmed)})
}

func (r *PgRepository) listOverlapping(ctx context.Context, column string, id uuid.UUID, start, end time.Time, statuses []string) ([]Appointment, error) {
	// The WHERE clause is the half-open overlap predicate:
	// appointment.start < end AND start < appointment.end.
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE `+column+` = $1 AND active
		  AND status = ANY($4)
		  AND start_at < $3
		  AND $2 < start_at + make_interval(mins => duration_minutes)
		ORDER BY start_at
	`, id, start, end, statuses)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

func (r *PgRepository) CreateAppointment(ctx context.Context, a Appointment) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, practitioner_id, specialty_id, start_at, duration_minutes, status, motive, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, true, now(), now())
		RETURNING `+appointmentColumns+`
	`, uuid.New(), a.PatientID, a.PractitionerID, a.SpecialtyID, a.Start, a.DurationMinutes, string(a.Status), a.Motive)
	return scanAppointment(row)
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1 AND active
	`, id)
	a, err := scanAppointment(row)
	if err != nil {
		return nil, withID(err, id)
	}
	return a, nil
}

func (r *PgRepository) GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT a.id, a.patient_id, a.practitioner_id, a.specialty_id, a.start_at, a.duration_minutes,
		       a.status, a.motive, a.active, a.created_at, a.updated_at,
		       pa.name, pa.email, pr.name, sp.name
		FROM appointments a
		JOIN patients pa ON pa.id = a.patient_id
		JOIN practitioners pr ON pr.id = a.practitioner_id
		JOIN specialties sp ON sp.id = a.specialty_id
		WHERE a.id = $1 AND a.active
	`, id)
	d, err := scanAppointmentDetail(row)
	if err != nil {
		return nil, withID(err, id)
	}
	return d, nil
}

func scanAppointmentDetail(row pgx.Row) (*AppointmentDetail, error) {
	var d AppointmentDetail
	var status string
	err := row.Scan(
		&d.ID,
		&d.PatientID,
		&d.PractitionerID,
		&d.SpecialtyID,
		&d.Start,
		&d.DurationMinutes,
		&status,
		&d.Motive,
		&d.Active,
		&d.CreatedAt,
		&d.UpdatedAt,
		&d.PatientName,
		&d.PatientEmail,
		&d.PractitionerName,
		&d.SpecialtyName,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Entity: "appointment"}
		}
		return nil, err
	}
	d.Status = Status(status)
	return &d, nil
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1 AND status = $3 AND active
		RETURNING `+appointmentColumns+`
	`, id, string(to), string(from))
	a, err := scanAppointment(row)
	if err != nil {
		return nil, withID(err, id)
	}
	return a, nil
}

func (r *PgRepository) UpdateAppointmentMotive(ctx context.Context, id uuid.UUID, motive string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET motive = NULLIF($2, ''),
		    updated_at = now()
		WHERE id = $1 AND active
		RETURNING `+appointmentColumns+`
	`, id, motive)
	a, err := scanAppointment(row)
	if err != nil {
		return nil, withID(err, id)
	}
	return a, nil
}

func (r *PgRepository) SoftDeleteAppointment(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET active = false, updated_at = now()
		WHERE id = $1 AND active
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &NotFoundError{Entity: "appointment", ID: id}
	}
	return nil
}

func (r *PgRepository) ListConfirmedStartingBetween(ctx context.Context, from, to time.Time) ([]AppointmentDetail, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT a.id, a.patient_id, a.practitioner_id, a.specialty_id, a.start_at, a.duration_minutes,
		       a.status, a.motive, a.active, a.created_at, a.updated_at,
		       pa.name, pa.email, pr.name, sp.name
		FROM appointments a
		JOIN patients pa ON pa.id = a.patient_id
		JOIN practitioners pr ON pr.id = a.practitioner_id
		JOIN specialties sp ON sp.id = a.specialty_id
		WHERE a.status = $3 AND a.active
		  AND a.start_at >= $1 AND a.start_at < $2
		ORDER BY a.start_at
	`, from, to, string(StatusConfirmed))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []AppointmentDetail
	for rows.Next() {
		d, err := scanAppointmentDetail(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	return result, rows.Err()
}

// withID backfills the ID in a typed not-found error produced by a scan
// helper.
func withID(err error, id uuid.UUID) error {
	var nf *NotFoundError
	if errors.As(err, &nf) && nf.ID == uuid.Nil {
		return &NotFoundError{Entity: nf.Entity, ID: id}
	}
	return err
}
