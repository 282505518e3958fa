package redisclient

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("booking lock not acquired")
)

// Locker guards the booking critical section. A book call holds one key per
// contended resource (practitioner and patient) so that two concurrent
// bookings touching either resource serialize.
type Locker interface {
	WithLock(ctx context.Context, keys []string, fn func(ctx context.Context) error) error
}

type redisBookingLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisBookingLocker creates a locker backed by per-resource Redis keys.
func NewRedisBookingLocker(client *redis.Client, ttl time.Duration) Locker {
	return &redisBookingLocker{
		client: client,
		ttl:    ttl,
	}
}

// PractitionerKey is the lock key serializing bookings for one practitioner.
func PractitionerKey(id uuid.UUID) string {
	return fmt.Sprintf("lock:practitioner:%s", id.String())
}

// PatientKey is the lock key serializing bookings for one patient.
func PatientKey(id uuid.UUID) string {
	return fmt.Sprintf("lock:patient:%s", id.String())
}

func (l *redisBookingLocker) WithLock(ctx context.Context, keys []string, fn func(ctx context.Context) error) error {
	if len(keys) == 0 {
		return errors.New("at least one lock key is required")
	}

	// Fixed acquisition order so concurrent multi-key holders cannot
	// acquire in conflicting orders.
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	token := uuid.NewString()

	var held []string
	for _, key := range sorted {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			l.releaseAll(ctx, held, token)
			return fmt.Errorf("acquire booking lock %s: %w", key, err)
		}
		if !ok {
			l.releaseAll(ctx, held, token)
			return ErrLockNotAcquired
		}
		held = append(held, key)
	}

	defer l.releaseAll(ctx, held, token)

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisBookingLocker) releaseAll(ctx context.Context, keys []string, token string) {
	for _, key := range keys {
		// Best effort: an unreleased key expires once its TTL elapses.
		_, _ = unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	}
}
