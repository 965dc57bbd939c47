package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/turtacn/NeuroRisk-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NeuroRisk-Intelligence/pkg/errors"
)

// ErrLockNotHeld is returned by Unlock once the lock expired or passed to
// another owner.
var ErrLockNotHeld = errors.New(errors.ErrCodeConflict, "lock not held by this owner")

// DefaultLockTTL applies when no TTL is given.
const DefaultLockTTL = 30 * time.Second

// LockOption adjusts a Mutex.
type LockOption func(*Mutex)

func WithLockTTL(ttl time.Duration) LockOption {
	return func(m *Mutex) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// Mutex is a single-owner lock on one key. The owner token is random per
// Mutex, so only the instance that acquired it can release or extend it.
// The key expires after the TTL if the owner dies.
type Mutex struct {
	client *Client
	key    string
	token  string
	ttl    time.Duration
	logger logging.Logger
}

var unlockScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

var extendScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("PEXPIRE", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

// NewMutex creates a lock named name under the client's key prefix.
func NewMutex(client *Client, name string, opts ...LockOption) *Mutex {
	m := &Mutex{
		client: client,
		key:    client.Key("lock", name),
		token:  uuid.NewString(),
		ttl:    DefaultLockTTL,
		logger: client.logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// TTL is how long the lock lives without being extended.
func (m *Mutex) TTL() time.Duration { return m.ttl }

// TryLock makes one attempt.
func (m *Mutex) TryLock(ctx context.Context) (bool, error) {
	if m.client.closed.Load() {
		return false, ErrClientClosed
	}
	ok, err := m.client.rdb.SetNX(ctx, m.key, m.token, m.ttl).Result()
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, errors.Wrap(err, errors.ErrCodeServiceUnavailable, "redis: acquire lock")
	}
	return ok, nil
}

// Unlock releases the lock if this Mutex still owns it.
func (m *Mutex) Unlock(ctx context.Context) error {
	res, err := unlockScript.Run(ctx, m.client.rdb, []string{m.key}, m.token).Int64()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeServiceUnavailable, "redis: release lock")
	}
	if res == 0 {
		m.logger.Warn("lock released after expiry or by another owner", logging.String("key", m.key))
		return ErrLockNotHeld
	}
	return nil
}

// Extend resets the expiry to a full TTL. It reports false when this Mutex
// no longer owns the lock.
func (m *Mutex) Extend(ctx context.Context) (bool, error) {
	res, err := extendScript.Run(ctx, m.client.rdb, []string{m.key}, m.token, m.ttl.Milliseconds()).Int64()
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeServiceUnavailable, "redis: extend lock")
	}
	return res == 1, nil
}
