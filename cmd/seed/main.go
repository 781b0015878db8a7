package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/careroute/triage-booking/internal/db"
)

// Seeds the schema, the department/doctor reference data, and a rolling
// schedule of free slots.
func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn, 0)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	if err := ensureSchema(context.Background(), pool); err != nil {
		log.Fatalf("ensure schema: %v", err)
	}
	if err := seedDepartments(context.Background(), pool); err != nil {
		log.Fatalf("seed departments: %v", err)
	}
	doctors, err := seedDoctors(context.Background(), pool, 4)
	if err != nil {
		log.Fatalf("seed doctors: %v", err)
	}
	if err := seedSlots(context.Background(), pool, doctors, 14); err != nil {
		log.Fatalf("seed slots: %v", err)
	}

	log.Println("seed complete")
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS departments (
	id          TEXT PRIMARY KEY,
	names       JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS doctors (
	id             UUID PRIMARY KEY,
	department_id  TEXT NOT NULL REFERENCES departments(id),
	name           TEXT NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS slots (
	id               UUID PRIMARY KEY,
	doctor_id        UUID NOT NULL REFERENCES doctors(id),
	department_id    TEXT NOT NULL REFERENCES departments(id),
	start_time       TIMESTAMPTZ NOT NULL,
	duration_minutes INTEGER NOT NULL,
	state            TEXT NOT NULL DEFAULT 'free',
	owner_id         TEXT,
	held_until       TIMESTAMPTZ,
	version          BIGINT NOT NULL DEFAULT 1,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT owner_iff_taken CHECK (
		(state = 'free' AND owner_id IS NULL)
		OR (state <> 'free')
	)
);

CREATE INDEX IF NOT EXISTS idx_slots_dept_state_start
	ON slots (department_id, state, start_time);

CREATE TABLE IF NOT EXISTS appointments (
	id             UUID PRIMARY KEY,
	slot_id        UUID NOT NULL REFERENCES slots(id),
	department_id  TEXT NOT NULL REFERENCES departments(id),
	patient_id     TEXT NOT NULL,
	patient_email  TEXT,
	status         TEXT NOT NULL DEFAULT 'booked',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_appointments_live_slot
	ON appointments (slot_id)
	WHERE status = 'booked';
`

func ensureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schemaDDL)
	return err
}

var departments = map[string]map[string]string{
	"cardiology": {
		"en": "Cardiology", "es": "Cardiología", "hi": "हृदय रोग विभाग", "te": "కార్డియాలజీ", "fr": "Cardiologie",
	},
	"dermatology": {
		"en": "Dermatology", "es": "Dermatología", "hi": "त्वचा रोग विभाग", "te": "డెర్మటాలజీ", "fr": "Dermatologie",
	},
	"gastroenterology": {
		"en": "Gastroenterology", "es": "Gastroenterología", "hi": "पाचन रोग विभाग", "te": "గ్యాస్ట్రోఎంటరాలజీ", "fr": "Gastro-entérologie",
	},
	"general-medicine": {
		"en": "General Medicine", "es": "Medicina General", "hi": "सामान्य चिकित्सा", "te": "జనరల్ మెడిసిన్", "fr": "Médecine générale",
	},
	"neurology": {
		"en": "Neurology", "es": "Neurología", "hi": "तंत्रिका रोग विभाग", "te": "న్యూరాలజీ", "fr": "Neurologie",
	},
	"orthopedics": {
		"en": "Orthopedics", "es": "Ortopedia", "hi": "हड्डी रोग विभाग", "te": "ఆర్థోపెడిక్స్", "fr": "Orthopédie",
	},
	"pediatrics": {
		"en": "Pediatrics", "es": "Pediatría", "hi": "बाल रोग विभाग", "te": "పీడియాట్రిక్స్", "fr": "Pédiatrie",
	},
}

func seedDepartments(ctx context.Context, pool *pgxpool.Pool) error {
	log.Printf("seeding %d departments", len(departments))

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for id, names := range departments {
		encoded, err := json.Marshal(names)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO departments (id, names, created_at)
			VALUES ($1, $2, now())
			ON CONFLICT (id) DO NOTHING
		`, id, encoded)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("departments seeded")
	return nil
}

type seededDoctor struct {
	ID           uuid.UUID
	DepartmentID string
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, perDepartment int) ([]seededDoctor, error) {
	log.Printf("seeding %d doctors per department", perDepartment)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var doctors []seededDoctor
	for deptID := range departments {
		for i := 0; i < perDepartment; i++ {
			id := uuid.New()
			name := "Dr. " + gofakeit.Name()

			_, err := tx.Exec(ctx, `
				INSERT INTO doctors (id, department_id, name, created_at, updated_at)
				VALUES ($1, $2, $3, now(), now())
			`, id, deptID, name)
			if err != nil {
				return nil, err
			}
			doctors = append(doctors, seededDoctor{ID: id, DepartmentID: deptID})
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Printf("doctors seeded: %d", len(doctors))
	return doctors, nil
}

// seedSlots creates a 9:00-17:00 schedule of 30-minute slots for each doctor
// over the next `days` days, weekends included (hospitals do not close).
func seedSlots(ctx context.Context, pool *pgxpool.Pool, doctors []seededDoctor, days int) error {
	log.Printf("seeding slots for %d doctors over %d days", len(doctors), days)

	dayStart := time.Now().UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)

	const batchDays = 7

	for offset := 0; offset < days; offset += batchDays {
		end := offset + batchDays
		if end > days {
			end = days
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		count := 0
		for day := offset; day < end; day++ {
			date := dayStart.AddDate(0, 0, day)
			for _, doc := range doctors {
				for halfHour := 0; halfHour < 16; halfHour++ {
					start := date.Add(9*time.Hour + time.Duration(halfHour)*30*time.Minute)

					_, err := tx.Exec(ctx, `
						INSERT INTO slots (id, doctor_id, department_id, start_time, duration_minutes, state, version, created_at, updated_at)
						VALUES ($1, $2, $3, $4, 30, 'free', 1, now(), now())
					`, uuid.New(), doc.ID, doc.DepartmentID, start)
					if err != nil {
						_ = tx.Rollback(ctx)
						return err
					}
					count++
				}
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("slots seeded: %d for days %d-%d", count, offset, end-1)
	}

	log.Println("slots seeded")
	return nil
}
