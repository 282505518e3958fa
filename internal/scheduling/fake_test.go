package scheduling

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clinicbase/appointment-scheduling/internal/interval"
	redisclient "github.com/clinicbase/appointment-scheduling/internal/redis"
)

// memRepo is an in-memory Repository with the same visibility rules as the
// Postgres implementation: soft-deleted rows and inactive windows or blockouts
// are invisible everywhere.
type memRepo struct {
	mu            sync.Mutex
	patients      map[uuid.UUID]Patient
	practitioners map[uuid.UUID]Practitioner
	specialties   map[uuid.UUID]Specialty
	windows       map[uuid.UUID]WeeklyAvailability
	blockouts     map[uuid.UUID]Blockout
	appointments  map[uuid.UUID]Appointment
}

func newMemRepo() *memRepo {
	return &memRepo{
		patients:      map[uuid.UUID]Patient{},
		practitioners: map[uuid.UUID]Practitioner{},
		specialties:   map[uuid.UUID]Specialty{},
		windows:       map[uuid.UUID]WeeklyAvailability{},
		blockouts:     map[uuid.UUID]Blockout{},
		appointments:  map[uuid.UUID]Appointment{},
	}
}

func (m *memRepo) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patients[id]
	if !ok {
		return nil, &NotFoundError{Entity: "patient", ID: id}
	}
	return &p, nil
}

func (m *memRepo) GetPractitionerByID(_ context.Context, id uuid.UUID) (*Practitioner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.practitioners[id]
	if !ok {
		return nil, &NotFoundError{Entity: "practitioner", ID: id}
	}
	return &p, nil
}

func (m *memRepo) GetSpecialtyByID(_ context.Context, id uuid.UUID) (*Specialty, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.specialties[id]
	if !ok {
		return nil, &NotFoundError{Entity: "specialty", ID: id}
	}
	return &s, nil
}

func (m *memRepo) ListWindows(_ context.Context, practitionerID uuid.UUID, weekday time.Weekday) ([]WeeklyAvailability, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []WeeklyAvailability
	for _, w := range m.windows {
		if w.Active && w.PractitionerID == practitionerID && w.Weekday == weekday {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartMinute < out[j].StartMinute })
	return out, nil
}

func (m *memRepo) GetWindowByID(_ context.Context, id uuid.UUID) (*WeeklyAvailability, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.windows[id]
	if !ok || !w.Active {
		return nil, &NotFoundError{Entity: "availability window", ID: id}
	}
	return &w, nil
}

func (m *memRepo) CreateWindow(_ context.Context, w WeeklyAvailability) (*WeeklyAvailability, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w.ID = uuid.New()
	m.windows[w.ID] = w
	return &w, nil
}

func (m *memRepo) UpdateWindow(_ context.Context, w WeeklyAvailability) (*WeeklyAvailability, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.windows[w.ID]; !ok {
		return nil, &NotFoundError{Entity: "availability window", ID: w.ID}
	}
	m.windows[w.ID] = w
	return &w, nil
}

func (m *memRepo) DeactivateWindow(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.windows[id]
	if !ok || !w.Active {
		return &NotFoundError{Entity: "availability window", ID: id}
	}
	w.Active = false
	m.windows[id] = w
	return nil
}

func (m *memRepo) ListBlockouts(_ context.Context, practitionerID uuid.UUID, from, to time.Time) ([]Blockout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Blockout
	for _, b := range m.blockouts {
		if b.Active && b.PractitionerID == practitionerID && interval.Overlaps(b.Start, b.End, from, to) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (m *memRepo) GetBlockoutByID(_ context.Context, id uuid.UUID) (*Blockout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blockouts[id]
	if !ok || !b.Active {
		return nil, &NotFoundError{Entity: "blockout", ID: id}
	}
	return &b, nil
}

func (m *memRepo) CreateBlockout(_ context.Context, b Blockout) (*Blockout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b.ID = uuid.New()
	m.blockouts[b.ID] = b
	return &b, nil
}

func (m *memRepo) UpdateBlockout(_ context.Context, b Blockout) (*Blockout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blockouts[b.ID]; !ok {
		return nil, &NotFoundError{Entity: "blockout", ID: b.ID}
	}
	m.blockouts[b.ID] = b
	return &b, nil
}

func (m *memRepo) DeactivateBlockout(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blockouts[id]
	if !ok || !b.Active {
		return &NotFoundError{Entity: "blockout", ID: id}
	}
	b.Active = false
	m.blockouts[id] = b
	return nil
}

func (m *memRepo) overlapping(start, end time.Time, keep func(Appointment) bool) []Appointment {
	var out []Appointment
	for _, a := range m.appointments {
		if !a.Active || !keep(a) {
			continue
		}
		if interval.Overlaps(a.Start, a.End(), start, end) {
			out = append(out, a)
		}
	}
	return out
}

func (m *memRepo) OverlappingPractitionerAppointments(_ context.Context, practitionerID uuid.UUID, start, end time.Time) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.overlapping(start, end, func(a Appointment) bool {
		return a.PractitionerID == practitionerID && a.Status.Active()
	}), nil
}

func (m *memRepo) OverlappingPatientAppointments(_ context.Context, patientID uuid.UUID, start, end time.Time) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.overlapping(start, end, func(a Appointment) bool {
		return a.PatientID == patientID && a.Status.Active()
	}), nil
}

func (m *memRepo) PendingOrConfirmedInRange(_ context.Context, practitionerID uuid.UUID, start, end time.Time) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.overlapping(start, end, func(a Appointment) bool {
		return a.PractitionerID == practitionerID &&
			(a.Status == StatusPending || a.Status == StatusConfirmed)
	}), nil
}

func (m *memRepo) CreateAppointment(_ context.Context, a Appointment) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	m.appointments[a.ID] = a
	return &a, nil
}

func (m *memRepo) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok || !a.Active {
		return nil, &NotFoundError{Entity: "appointment", ID: id}
	}
	return &a, nil
}

func (m *memRepo) GetAppointmentDetail(_ context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok || !a.Active {
		return nil, &NotFoundError{Entity: "appointment", ID: id}
	}
	return m.detailLocked(a), nil
}

func (m *memRepo) detailLocked(a Appointment) *AppointmentDetail {
	d := &AppointmentDetail{Appointment: a}
	if p, ok := m.patients[a.PatientID]; ok {
		d.PatientName = p.Name
		d.PatientEmail = p.Email
	}
	if p, ok := m.practitioners[a.PractitionerID]; ok {
		d.PractitionerName = p.Name
	}
	if s, ok := m.specialties[a.SpecialtyID]; ok {
		d.SpecialtyName = s.Name
	}
	return d
}

func (m *memRepo) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok || !a.Active || a.Status != from {
		return nil, &NotFoundError{Entity: "appointment", ID: id}
	}
	a.Status = to
	a.UpdatedAt = time.Now()
	m.appointments[id] = a
	return &a, nil
}

func (m *memRepo) UpdateAppointmentMotive(_ context.Context, id uuid.UUID, motive string) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok || !a.Active {
		return nil, &NotFoundError{Entity: "appointment", ID: id}
	}
	a.Motive = nil
	if motive != "" {
		a.Motive = &motive
	}
	a.UpdatedAt = time.Now()
	m.appointments[id] = a
	return &a, nil
}

func (m *memRepo) SoftDeleteAppointment(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok || !a.Active {
		return &NotFoundError{Entity: "appointment", ID: id}
	}
	a.Active = false
	m.appointments[id] = a
	return nil
}

func (m *memRepo) ListConfirmedStartingBetween(_ context.Context, from, to time.Time) ([]AppointmentDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []AppointmentDetail
	for _, a := range m.appointments {
		if !a.Active || a.Status != StatusConfirmed {
			continue
		}
		if a.Start.Before(from) || !a.Start.Before(to) {
			continue
		}
		out = append(out, *m.detailLocked(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

// memLocker has try-lock semantics over named keys, matching the Redis
// locker's behaviour under contention.
type memLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func newMemLocker() *memLocker {
	return &memLocker{held: map[string]bool{}}
}

func (l *memLocker) WithLock(ctx context.Context, keys []string, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	for _, k := range keys {
		if l.held[k] {
			l.mu.Unlock()
			return redisclient.ErrLockNotAcquired
		}
	}
	for _, k := range keys {
		l.held[k] = true
	}
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		for _, k := range keys {
			delete(l.held, k)
		}
		l.mu.Unlock()
	}()
	return fn(ctx)
}
