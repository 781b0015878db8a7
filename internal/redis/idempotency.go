package redisclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrKeyInFlight = errors.New("idempotency key reservation not acquired")
)

// IdempotencyStore deduplicates booking calls that share an idempotency key.
// A key is first reserved while the booking is in flight, then overwritten
// with the resulting appointment id so retries replay the original outcome.
type IdempotencyStore interface {
	// Lookup returns the appointment previously recorded under key, if any.
	Lookup(ctx context.Context, key string) (uuid.UUID, bool, error)
	// Reserve marks key as in flight. A concurrent holder yields ErrKeyInFlight.
	Reserve(ctx context.Context, key string) (token string, err error)
	// Complete replaces the reservation with the appointment id, but only if
	// the caller still holds the reservation token.
	Complete(ctx context.Context, key, token string, appointmentID uuid.UUID) error
	// Abandon drops the reservation so the caller may retry the key.
	Abandon(ctx context.Context, key, token string) error
}

type redisIdempotencyStore struct {
	client         *redis.Client
	reservationTTL time.Duration
	resultTTL      time.Duration
}

func NewRedisIdempotencyStore(client *redis.Client, reservationTTL, resultTTL time.Duration) IdempotencyStore {
	return &redisIdempotencyStore{
		client:         client,
		reservationTTL: reservationTTL,
		resultTTL:      resultTTL,
	}
}

const (
	pendingPrefix = "pending:"
	donePrefix    = "done:"
)

func idempotencyKey(key string) string {
	return fmt.Sprintf("booking:idem:%s", key)
}

func (s *redisIdempotencyStore) Lookup(ctx context.Context, key string) (uuid.UUID, bool, error) {
	val, err := s.client.Get(ctx, idempotencyKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("lookup idempotency key: %w", err)
	}

	if !strings.HasPrefix(val, donePrefix) {
		// Reservation held by an in-flight booking.
		return uuid.Nil, false, ErrKeyInFlight
	}

	id, err := uuid.Parse(strings.TrimPrefix(val, donePrefix))
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("corrupt idempotency record for %q: %w", key, err)
	}
	return id, true, nil
}

func (s *redisIdempotencyStore) Reserve(ctx context.Context, key string) (string, error) {
	token := uuid.NewString()

	ok, err := s.client.SetNX(ctx, idempotencyKey(key), pendingPrefix+token, s.reservationTTL).Result()
	if err != nil {
		return "", fmt.Errorf("reserve idempotency key: %w", err)
	}
	if !ok {
		return "", ErrKeyInFlight
	}
	return token, nil
}

var completeScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
else
  return 0
end
`)

func (s *redisIdempotencyStore) Complete(ctx context.Context, key, token string, appointmentID uuid.UUID) error {
	_, err := completeScript.Run(ctx, s.client,
		[]string{idempotencyKey(key)},
		pendingPrefix+token,
		donePrefix+appointmentID.String(),
		s.resultTTL.Milliseconds(),
	).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("complete idempotency key: %w", err)
	}
	return nil
}

var abandonScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (s *redisIdempotencyStore) Abandon(ctx context.Context, key, token string) error {
	_, err := abandonScript.Run(ctx, s.client, []string{idempotencyKey(key)}, pendingPrefix+token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("abandon idempotency key: %w", err)
	}
	return nil
}
