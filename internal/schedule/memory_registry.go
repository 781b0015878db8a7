package schedule

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRegistry is an in-process Registry with the same transition semantics
// as the Postgres one. It backs the load simulator and the concurrency tests,
// where a real database would only get in the way.
type MemoryRegistry struct {
	mu           sync.Mutex
	departments  map[string]*Department
	doctors      map[uuid.UUID]*Doctor
	slots        map[uuid.UUID]*Slot
	appointments map[uuid.UUID]*Appointment
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		departments:  make(map[string]*Department),
		doctors:      make(map[uuid.UUID]*Doctor),
		slots:        make(map[uuid.UUID]*Slot),
		appointments: make(map[uuid.UUID]*Appointment),
	}
}

// Seeding helpers, not part of the Registry interface.

func (r *MemoryRegistry) AddDepartment(d Department) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	r.departments[d.ID] = &d
}

func (r *MemoryRegistry) AddDoctor(doc Doctor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.doctors[doc.ID] = &doc
}

func (r *MemoryRegistry) AddSlot(s Slot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.State == "" {
		s.State = SlotFree
	}
	if s.Version == 0 {
		s.Version = 1
	}
	r.slots[s.ID] = &s
}

func (r *MemoryRegistry) ListDepartments(ctx context.Context) ([]Department, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]Department, 0, len(r.departments))
	for _, d := range r.departments {
		result = append(result, *d)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r *MemoryRegistry) GetDepartment(ctx context.Context, id string) (*Department, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.departments[id]
	if !ok {
		return nil, ErrDepartmentNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *MemoryRegistry) ListAvailable(ctx context.Context, departmentID string, day time.Time, limit int) ([]Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	dayStart := day.UTC().Truncate(24 * time.Hour)
	dayEnd := dayStart.Add(24 * time.Hour)

	var result []Slot
	for _, s := range r.slots {
		if s.DepartmentID != departmentID || s.State != SlotFree {
			continue
		}
		if s.StartTime.Before(dayStart) || !s.StartTime.Before(dayEnd) {
			continue
		}
		result = append(result, *s)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].StartTime.Equal(result[j].StartTime) {
			return result[i].StartTime.Before(result[j].StartTime)
		}
		return result[i].ID.String() < result[j].ID.String()
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *MemoryRegistry) GetSlot(ctx context.Context, id uuid.UUID) (*Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *MemoryRegistry) Hold(ctx context.Context, slotID uuid.UUID, expectedVersion int64, owner string, heldUntil time.Time) (*Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.slots[slotID]
	if !ok {
		return nil, ErrSlotNotFound
	}

	holdable := s.State == SlotFree || s.HoldExpired(time.Now())
	if s.Version != expectedVersion || !holdable {
		return nil, ErrVersionConflict
	}

	s.State = SlotHeld
	s.Owner = &owner
	s.HeldUntil = &heldUntil
	s.Version++
	s.UpdatedAt = time.Now()

	cp := *s
	return &cp, nil
}

func (r *MemoryRegistry) Release(ctx context.Context, slotID uuid.UUID, expectedVersion int64) (*Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.slots[slotID]
	if !ok {
		return nil, ErrSlotNotFound
	}
	if s.Version != expectedVersion || s.State != SlotHeld {
		return nil, ErrVersionConflict
	}

	s.State = SlotFree
	s.Owner = nil
	s.HeldUntil = nil
	s.Version++
	s.UpdatedAt = time.Now()

	cp := *s
	return &cp, nil
}

func (r *MemoryRegistry) Commit(ctx context.Context, slotID uuid.UUID, expectedVersion int64, appt NewAppointment) (*Slot, *Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.slots[slotID]
	if !ok {
		return nil, nil, ErrSlotNotFound
	}
	if s.Version != expectedVersion || s.State != SlotHeld {
		return nil, nil, ErrVersionConflict
	}

	now := time.Now()

	s.State = SlotBooked
	owner := appt.PatientID
	s.Owner = &owner
	s.HeldUntil = nil
	s.Version++
	s.UpdatedAt = now

	created := &Appointment{
		ID:           uuid.New(),
		SlotID:       s.ID,
		DepartmentID: s.DepartmentID,
		PatientID:    appt.PatientID,
		PatientEmail: appt.PatientEmail,
		Status:       AppointmentBooked,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.appointments[created.ID] = created

	slotCp := *s
	apptCp := *created
	return &slotCp, &apptCp, nil
}

func (r *MemoryRegistry) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *MemoryRegistry) CancelAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if a.Status != AppointmentBooked {
		return nil, ErrAppointmentNotCancellable
	}

	now := time.Now()
	a.Status = AppointmentCancelled
	a.UpdatedAt = now

	if s, ok := r.slots[a.SlotID]; ok && s.State == SlotBooked {
		s.State = SlotFree
		s.Owner = nil
		s.HeldUntil = nil
		s.Version++
		s.UpdatedAt = now
	}

	cp := *a
	return &cp, nil
}

func (r *MemoryRegistry) AppointmentStats(ctx context.Context) (*BookingStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := &BookingStats{
		ByStatus:     make(map[AppointmentStatus]int64),
		ByDepartment: make(map[string]int64),
	}
	for _, a := range r.appointments {
		stats.Total++
		stats.ByStatus[a.Status]++
		stats.ByDepartment[a.DepartmentID]++
	}
	return stats, nil
}

func (r *MemoryRegistry) ReleaseExpiredHolds(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var freed int64
	for _, s := range r.slots {
		if s.HoldExpired(now) {
			s.State = SlotFree
			s.Owner = nil
			s.HeldUntil = nil
			s.Version++
			s.UpdatedAt = now
			freed++
		}
	}
	return freed, nil
}

func (r *MemoryRegistry) ArchivePastSlots(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var archived int64
	for _, s := range r.slots {
		if s.State == SlotFree && s.StartTime.Before(now) {
			s.State = SlotArchived
			s.Owner = nil
			s.HeldUntil = nil
			s.Version++
			s.UpdatedAt = now
			archived++
		}
	}
	return archived, nil
}
