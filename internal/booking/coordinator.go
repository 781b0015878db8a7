package booking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	redisclient "github.com/careroute/triage-booking/internal/redis"
	"github.com/careroute/triage-booking/internal/schedule"
)

var (
	// ErrNoAvailability is user-visible: no free slot matched, or every
	// candidate was taken by concurrent bookings before we could commit.
	ErrNoAvailability = errors.New("no appointment slot available")

	// ErrBookingInFlight means another request holds the same idempotency
	// key right now. Safe to retry with the same key shortly.
	ErrBookingInFlight = errors.New("booking already in progress for this idempotency key")

	ErrInvalidRequest = errors.New("invalid booking request")
)

type Request struct {
	PatientID      string
	PatientEmail   *string
	DepartmentID   string
	PreferredDate  time.Time
	IdempotencyKey string
}

// Coordinator allocates a slot for a booking request. Concurrency control is
// delegated entirely to the registry's per-slot compare-and-set; the
// coordinator's job is candidate selection, the bounded retry loop, and
// idempotency. Among racing requests for one slot exactly one commit wins.
type Coordinator struct {
	registry    schedule.Registry
	idem        redisclient.IdempotencyStore
	holdTTL     time.Duration
	maxAttempts int
}

func NewCoordinator(registry schedule.Registry, idem redisclient.IdempotencyStore, holdTTL time.Duration, maxAttempts int) *Coordinator {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Coordinator{
		registry:    registry,
		idem:        idem,
		holdTTL:     holdTTL,
		maxAttempts: maxAttempts,
	}
}

// Book runs the booking state machine: SELECT -> HOLD -> COMMIT, reselecting
// on version conflicts up to the attempt bound. A replayed idempotency key
// returns the original appointment without touching the registry.
func (c *Coordinator) Book(ctx context.Context, req Request) (*schedule.Appointment, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	if existingID, found, err := c.idem.Lookup(ctx, req.IdempotencyKey); err != nil {
		if errors.Is(err, redisclient.ErrKeyInFlight) {
			return nil, ErrBookingInFlight
		}
		return nil, fmt.Errorf("idempotency lookup: %w", err)
	} else if found {
		return c.registry.GetAppointment(ctx, existingID)
	}

	// Department must exist before we reserve the key, so a typo'd request
	// does not poison its idempotency key.
	if _, err := c.registry.GetDepartment(ctx, req.DepartmentID); err != nil {
		return nil, err
	}

	token, err := c.idem.Reserve(ctx, req.IdempotencyKey)
	if err != nil {
		if errors.Is(err, redisclient.ErrKeyInFlight) {
			return nil, ErrBookingInFlight
		}
		return nil, fmt.Errorf("idempotency reserve: %w", err)
	}

	appt, err := c.allocate(ctx, req)
	if err != nil {
		if abandonErr := c.idem.Abandon(ctx, req.IdempotencyKey, token); abandonErr != nil {
			log.Printf("failed to abandon idempotency key %q: %v", req.IdempotencyKey, abandonErr)
		}
		return nil, err
	}

	if completeErr := c.idem.Complete(ctx, req.IdempotencyKey, token, appt.ID); completeErr != nil {
		// The booking stands; a retry with the same key may double-book only
		// if this write and its retry both fail, which we accept over undoing
		// a confirmed appointment.
		log.Printf("failed to record idempotency key %q for appointment %s: %v", req.IdempotencyKey, appt.ID, completeErr)
	}

	log.Printf("booking confirmed appointment=%s slot=%s patient=%s department=%s",
		appt.ID, appt.SlotID, appt.PatientID, appt.DepartmentID)

	return appt, nil
}

func (c *Coordinator) allocate(ctx context.Context, req Request) (*schedule.Appointment, error) {
	tried := make(map[uuid.UUID]bool)
	commitRetried := false

	for attempts := 0; attempts < c.maxAttempts; attempts++ {
		candidate, err := c.selectCandidate(ctx, req, tried)
		if err != nil {
			return nil, err
		}
		tried[candidate.ID] = true

		held, err := c.registry.Hold(ctx, candidate.ID, candidate.Version, req.PatientID, time.Now().Add(c.holdTTL))
		if err != nil {
			if errors.Is(err, schedule.ErrVersionConflict) || errors.Is(err, schedule.ErrSlotNotFound) {
				// Lost the race for this slot; reselect.
				continue
			}
			return nil, fmt.Errorf("hold slot: %w", err)
		}

		_, appt, err := c.registry.Commit(ctx, held.ID, held.Version, schedule.NewAppointment{
			PatientID:    req.PatientID,
			PatientEmail: req.PatientEmail,
		})
		if err != nil {
			if errors.Is(err, schedule.ErrVersionConflict) {
				// Something raced our hold (sweep or cancellation). Give the
				// slot back if we still can, then allow one more round.
				if _, relErr := c.registry.Release(ctx, held.ID, held.Version); relErr != nil &&
					!errors.Is(relErr, schedule.ErrVersionConflict) && !errors.Is(relErr, schedule.ErrSlotNotFound) {
					log.Printf("failed to release slot %s after commit conflict: %v", held.ID, relErr)
				}
				if commitRetried {
					return nil, ErrNoAvailability
				}
				commitRetried = true
				attempts--
				continue
			}
			return nil, fmt.Errorf("commit slot: %w", err)
		}

		return appt, nil
	}

	return nil, ErrNoAvailability
}

// selectCandidate picks the earliest free slot not yet attempted.
// Ordering comes from the registry: start time ascending, then slot id.
func (c *Coordinator) selectCandidate(ctx context.Context, req Request, tried map[uuid.UUID]bool) (*schedule.Slot, error) {
	slots, err := c.registry.ListAvailable(ctx, req.DepartmentID, req.PreferredDate, c.maxAttempts+len(tried))
	if err != nil {
		return nil, fmt.Errorf("list available slots: %w", err)
	}

	for i := range slots {
		if !tried[slots[i].ID] {
			return &slots[i], nil
		}
	}
	return nil, ErrNoAvailability
}

func validate(req Request) error {
	switch {
	case req.PatientID == "":
		return fmt.Errorf("%w: patient identifier required", ErrInvalidRequest)
	case req.DepartmentID == "":
		return fmt.Errorf("%w: department required", ErrInvalidRequest)
	case req.IdempotencyKey == "":
		return fmt.Errorf("%w: idempotency key required", ErrInvalidRequest)
	case req.PreferredDate.IsZero():
		return fmt.Errorf("%w: preferred date required", ErrInvalidRequest)
	}
	return nil
}
