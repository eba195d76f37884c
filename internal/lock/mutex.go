// Package lock provides the single advisory mutex that serializes every
// ledger-mutating run. Acquisition waits a bounded time and failure is a
// typed soft result, so a busy system means "skip this run", never a crash.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/mvillareal/intake-scheduler/pkg/logging"
)

// ErrBusy is returned when the lock could not be acquired within the wait
// budget. Callers log and exit, relying on the next trigger to converge.
var ErrBusy = errors.New("lock: busy")

const (
	lockKey      = "lock:scheduler"
	pollInterval = 250 * time.Millisecond
)

// releaseScript deletes the lock only when it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Mutex is a Redis-backed advisory lock with a bounded acquisition wait and
// a TTL guarding against a crashed holder wedging the system. One instance
// is shared by every pass, so the token is guarded for concurrent use.
type Mutex struct {
	redis  *redis.Client
	wait   time.Duration
	ttl    time.Duration
	logger *logging.Logger

	mu    sync.Mutex
	token string
}

// NewMutex builds the scheduler mutex. wait bounds acquisition; ttl bounds
// how long a crashed holder can block others.
func NewMutex(redisClient *redis.Client, wait, ttl time.Duration, logger *logging.Logger) *Mutex {
	if logger == nil {
		logger = logging.Default()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Mutex{
		redis:  redisClient,
		wait:   wait,
		ttl:    ttl,
		logger: logger,
	}
}

// Acquire takes the lock, polling until the wait budget or ctx expires.
// Returns ErrBusy when another run holds it for the whole window.
func (m *Mutex) Acquire(ctx context.Context) error {
	token := uuid.NewString()
	deadline := time.Now().Add(m.wait)

	for {
		ok, err := m.redis.SetNX(ctx, lockKey, token, m.ttl).Result()
		if err != nil {
			return fmt.Errorf("lock: acquire: %w", err)
		}
		if ok {
			m.mu.Lock()
			m.token = token
			m.mu.Unlock()
			return nil
		}
		if time.Now().After(deadline) {
			return ErrBusy
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("lock: acquire: %w", ctx.Err())
		case <-time.After(pollInterval):
		}
	}
}

// Release frees the lock if this mutex still owns it. The token stays held
// for the whole call so a concurrent Acquire cannot set a fresh token only to
// have it cleared out from under the new holder.
func (m *Mutex) Release(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == "" {
		return
	}
	if err := releaseScript.Run(ctx, m.redis, []string{lockKey}, m.token).Err(); err != nil && err != redis.Nil {
		m.logger.Warn("lock: release failed", "error", err)
	}
	m.token = ""
}
