package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// db is the subset of pgxpool.Pool the registry needs; pgxmock satisfies it too.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

type PgRegistry struct {
	db db
}

func NewPgRegistry(db db) *PgRegistry {
	return &PgRegistry{db: db}
}

// Helpers

func scanDepartment(row pgx.Row) (*Department, error) {
	var d Department
	var names []byte

	err := row.Scan(
		&d.ID,
		&names,
		&d.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDepartmentNotFound
		}
		return nil, err
	}

	if err := json.Unmarshal(names, &d.Names); err != nil {
		return nil, fmt.Errorf("decode department names: %w", err)
	}
	return &d, nil
}

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot
	var owner *string
	var heldUntil *time.Time
	var durationMinutes int32

	err := row.Scan(
		&s.ID,
		&s.DoctorID,
		&s.DepartmentID,
		&s.StartTime,
		&durationMinutes,
		&s.State,
		&owner,
		&heldUntil,
		&s.Version,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}

	s.Duration = time.Duration(durationMinutes) * time.Minute
	s.Owner = owner
	s.HeldUntil = heldUntil
	return &s, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var email *string

	err := row.Scan(
		&a.ID,
		&a.SlotID,
		&a.DepartmentID,
		&a.PatientID,
		&email,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.PatientEmail = email
	return &a, nil
}

const slotColumns = `id, doctor_id, department_id, start_time, duration_minutes, state, owner_id, held_until, version, created_at, updated_at`

const appointmentColumns = `id, slot_id, department_id, patient_id, patient_email, status, created_at, updated_at`

// Interface methods

func (r *PgRegistry) ListDepartments(ctx context.Context) ([]Department, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, names, created_at
		FROM departments
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Department
	for rows.Next() {
		d, err := scanDepartment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRegistry) GetDepartment(ctx context.Context, id string) (*Department, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, names, created_at
		FROM departments
		WHERE id = $1
	`, id)
	return scanDepartment(row)
}

func (r *PgRegistry) ListAvailable(ctx context.Context, departmentID string, day time.Time, limit int) ([]Slot, error) {
	dayStart := day.UTC().Truncate(24 * time.Hour)
	dayEnd := dayStart.Add(24 * time.Hour)

	if limit <= 0 {
		limit = 500
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+slotColumns+`
		FROM slots
		WHERE department_id = $1
		  AND state = 'free'
		  AND start_time >= $2
		  AND start_time < $3
		ORDER BY start_time ASC, id ASC
		LIMIT $4
	`, departmentID, dayStart, dayEnd, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRegistry) GetSlot(ctx context.Context, id uuid.UUID) (*Slot, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+slotColumns+`
		FROM slots
		WHERE id = $1
	`, id)
	return scanSlot(row)
}

// Hold performs the FREE -> HELD compare-and-set. A held slot whose
// reservation already lapsed counts as free, so abandoned holds do not need
// a sweep before the slot becomes bookable again.
func (r *PgRegistry) Hold(ctx context.Context, slotID uuid.UUID, expectedVersion int64, owner string, heldUntil time.Time) (*Slot, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE slots
		SET state = 'held',
		    owner_id = $3,
		    held_until = $4,
		    version = version + 1,
		    updated_at = now()
		WHERE id = $1
		  AND version = $2
		  AND (state = 'free' OR (state = 'held' AND held_until <= now()))
		RETURNING `+slotColumns+`
	`, slotID, expectedVersion, owner, heldUntil)

	slot, err := scanSlot(row)
	if err != nil {
		return nil, r.casFailure(ctx, slotID, err)
	}
	return slot, nil
}

func (r *PgRegistry) Release(ctx context.Context, slotID uuid.UUID, expectedVersion int64) (*Slot, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE slots
		SET state = 'free',
		    owner_id = NULL,
		    held_until = NULL,
		    version = version + 1,
		    updated_at = now()
		WHERE id = $1
		  AND version = $2
		  AND state = 'held'
		RETURNING `+slotColumns+`
	`, slotID, expectedVersion)

	slot, err := scanSlot(row)
	if err != nil {
		return nil, r.casFailure(ctx, slotID, err)
	}
	return slot, nil
}

// Commit performs HELD -> BOOKED and inserts the appointment row in one
// transaction, so a booked slot always has exactly one live appointment.
func (r *PgRegistry) Commit(ctx context.Context, slotID uuid.UUID, expectedVersion int64, appt NewAppointment) (*Slot, *Appointment, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin commit tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE slots
		SET state = 'booked',
		    owner_id = $3,
		    held_until = NULL,
		    version = version + 1,
		    updated_at = now()
		WHERE id = $1
		  AND version = $2
		  AND state = 'held'
		RETURNING `+slotColumns+`
	`, slotID, expectedVersion, appt.PatientID)

	slot, err := scanSlot(row)
	if err != nil {
		return nil, nil, r.casFailure(ctx, slotID, err)
	}

	apptRow := tx.QueryRow(ctx, `
		INSERT INTO appointments (id, slot_id, department_id, patient_id, patient_email, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'booked', now(), now())
		RETURNING `+appointmentColumns+`
	`, uuid.New(), slot.ID, slot.DepartmentID, appt.PatientID, appt.PatientEmail)

	created, err := scanAppointment(apptRow)
	if err != nil {
		return nil, nil, fmt.Errorf("insert appointment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit booking tx: %w", err)
	}

	return slot, created, nil
}

func (r *PgRegistry) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRegistry) CancelAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin cancel tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'cancelled',
		    updated_at = now()
		WHERE id = $1
		  AND status = 'booked'
		RETURNING `+appointmentColumns+`
	`, id)

	appt, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// Distinguish a missing appointment from an already-cancelled one.
			if _, getErr := r.GetAppointment(ctx, id); getErr != nil {
				return nil, getErr
			}
			return nil, ErrAppointmentNotCancellable
		}
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE slots
		SET state = 'free',
		    owner_id = NULL,
		    held_until = NULL,
		    version = version + 1,
		    updated_at = now()
		WHERE id = $1
		  AND state = 'booked'
	`, appt.SlotID)
	if err != nil {
		return nil, fmt.Errorf("free cancelled slot: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit cancel tx: %w", err)
	}

	return appt, nil
}

func (r *PgRegistry) AppointmentStats(ctx context.Context) (*BookingStats, error) {
	rows, err := r.db.Query(ctx, `
		SELECT department_id, status, COUNT(*)
		FROM appointments
		GROUP BY department_id, status
	`)
	if err != nil {
		return nil, fmt.Errorf("query appointment stats: %w", err)
	}
	defer rows.Close()

	stats := &BookingStats{
		ByStatus:     make(map[AppointmentStatus]int64),
		ByDepartment: make(map[string]int64),
	}
	for rows.Next() {
		var departmentID string
		var status AppointmentStatus
		var count int64
		if err := rows.Scan(&departmentID, &status, &count); err != nil {
			return nil, err
		}
		stats.Total += count
		stats.ByStatus[status] += count
		stats.ByDepartment[departmentID] += count
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return stats, nil
}

func (r *PgRegistry) ReleaseExpiredHolds(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE slots
		SET state = 'free',
		    owner_id = NULL,
		    held_until = NULL,
		    version = version + 1,
		    updated_at = now()
		WHERE state = 'held'
		  AND held_until <= $1
	`, now)
	if err != nil {
		return 0, fmt.Errorf("release expired holds: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PgRegistry) ArchivePastSlots(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE slots
		SET state = 'archived',
		    owner_id = NULL,
		    held_until = NULL,
		    version = version + 1,
		    updated_at = now()
		WHERE state = 'free'
		  AND start_time < $1
	`, now)
	if err != nil {
		return 0, fmt.Errorf("archive past slots: %w", err)
	}
	return tag.RowsAffected(), nil
}

// casFailure maps a no-rows result from a guarded UPDATE to the right error:
// the slot either does not exist or lost the compare-and-set.
func (r *PgRegistry) casFailure(ctx context.Context, slotID uuid.UUID, err error) error {
	if !errors.Is(err, ErrSlotNotFound) {
		return err
	}
	if _, getErr := r.GetSlot(ctx, slotID); getErr != nil {
		return getErr
	}
	return ErrVersionConflict
}
