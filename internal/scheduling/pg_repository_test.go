package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (*PgRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPgRepository(mock), mock
}

func apptRow(id uuid.UUID, status Status) *pgxmock.Rows {
	now := time.Now()
	return pgxmock.NewRows([]string{
		"id", "patient_id", "practitioner_id", "specialty_id", "start_at",
		"duration_minutes", "status", "motive", "active", "created_at", "updated_at",
	}).AddRow(id, uuid.New(), uuid.New(), uuid.New(), now.Add(24*time.Hour),
		30, string(status), nil, true, now, now)
}

func TestPgGetSpecialtyByID(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()
	now := time.Now()

	mock.ExpectQuery("FROM specialties").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "created_at", "updated_at"}).
			AddRow(id, "Cardiology", now, now))

	got, err := repo.GetSpecialtyByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Cardiology", got.Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgGetSpecialtyByIDNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectQuery("FROM specialties").
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetSpecialtyByID(context.Background(), id)
	var nfErr *NotFoundError
	require.ErrorAs(t, err, &nfErr)
	assert.Equal(t, "specialty", nfErr.Entity)
	assert.Equal(t, id, nfErr.ID)
}

func TestPgUpdateAppointmentStatus(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectQuery("UPDATE appointments").
		WithArgs(id, string(StatusConfirmed), string(StatusPending)).
		WillReturnRows(apptRow(id, StatusConfirmed))

	got, err := repo.UpdateAppointmentStatus(context.Background(), id, StatusPending, StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, got.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgUpdateAppointmentStatusCompareAndSwapMiss(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	// The stored status no longer matches from; the guarded UPDATE touches
	// no row and the repository reports it as not found.
	mock.ExpectQuery("UPDATE appointments").
		WithArgs(id, string(StatusConfirmed), string(StatusPending)).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.UpdateAppointmentStatus(context.Background(), id, StatusPending, StatusConfirmed)
	var nfErr *NotFoundError
	require.ErrorAs(t, err, &nfErr)
	assert.Equal(t, id, nfErr.ID)
}

func TestPgSoftDeleteAppointment(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectExec("UPDATE appointments").
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.SoftDeleteAppointment(context.Background(), id))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgSoftDeleteAppointmentMissing(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectExec("UPDATE appointments").
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.SoftDeleteAppointment(context.Background(), id)
	var nfErr *NotFoundError
	require.ErrorAs(t, err, &nfErr)
}

func TestPgListWindowsOrdering(t *testing.T) {
	repo, mock := newMockRepo(t)
	practitionerID := uuid.New()
	now := time.Now()

	rows := pgxmock.NewRows([]string{
		"id", "practitioner_id", "weekday", "start_minute", "end_minute",
		"slot_minutes", "active", "created_at", "updated_at",
	}).
		AddRow(uuid.New(), practitionerID, int16(1), 480, 720, 30, true, now, now).
		AddRow(uuid.New(), practitionerID, int16(1), 840, 1080, 30, true, now, now)

	mock.ExpectQuery("FROM weekly_availability").
		WithArgs(practitionerID, int16(time.Monday)).
		WillReturnRows(rows)

	got, err := repo.ListWindows(context.Background(), practitionerID, time.Monday)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 480, got[0].StartMinute)
	assert.Equal(t, time.Monday, got[0].Weekday)
}
