// Package quota gates calendar API mutations against per-run and per-day
// call ceilings. The daily counter lives in Redis so it survives across the
// short-lived runs that make up a day's work.
package quota

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mvillareal/intake-scheduler/internal/dates"
	"github.com/mvillareal/intake-scheduler/pkg/logging"
)

// ErrQuotaExceeded is the soft failure returned when a mutation would push
// either counter past its ceiling. Callers skip the mutation and continue.
var ErrQuotaExceeded = errors.New("quota: call limit exceeded")

const dayKeyPrefix = "quota:calls:"

// Manager tracks calls made this run (in memory) and today (in Redis).
type Manager struct {
	redis    *redis.Client
	runLimit int
	dayLimit int
	loc      *time.Location
	logger   *logging.Logger
	now      func() time.Time

	mu      sync.Mutex
	thisRun int
}

// NewManager builds a Manager. The run counter starts at zero for every
// process; the day counter is whatever Redis already holds for today.
func NewManager(redisClient *redis.Client, runLimit, dayLimit int, loc *time.Location, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Manager{
		redis:    redisClient,
		runLimit: runLimit,
		dayLimit: dayLimit,
		loc:      loc,
		logger:   logger,
		now:      time.Now,
	}
}

// WithNow overrides the clock. Test hook.
func (m *Manager) WithNow(now func() time.Time) *Manager {
	m.now = now
	return m
}

func (m *Manager) dayKey() string {
	return dayKeyPrefix + dates.FromTime(m.now(), m.loc).String()
}

// CanCall reports whether n more calls fit under both ceilings.
func (m *Manager) CanCall(ctx context.Context, n int) (bool, error) {
	m.mu.Lock()
	thisRun := m.thisRun
	m.mu.Unlock()
	if thisRun+n > m.runLimit {
		return false, nil
	}
	today, err := m.CallsToday(ctx)
	if err != nil {
		return false, err
	}
	return today+n <= m.dayLimit, nil
}

// RecordCall increments both counters. The daily counter is persisted
// immediately so a crash between calls cannot lose it.
func (m *Manager) RecordCall(ctx context.Context, n int) error {
	m.mu.Lock()
	m.thisRun += n
	m.mu.Unlock()

	key := m.dayKey()
	if err := m.redis.IncrBy(ctx, key, int64(n)).Err(); err != nil {
		return fmt.Errorf("quota: persist daily counter: %w", err)
	}
	// Key expires on its own well after the daily reset has moved on.
	if err := m.redis.Expire(ctx, key, 48*time.Hour).Err(); err != nil {
		m.logger.Warn("quota: set counter expiry", "error", err)
	}
	return nil
}

// CallsToday reads the persisted daily counter.
func (m *Manager) CallsToday(ctx context.Context) (int, error) {
	val, err := m.redis.Get(ctx, m.dayKey()).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("quota: read daily counter: %w", err)
	}
	return val, nil
}

// CallsThisRun reads the in-memory run counter.
func (m *Manager) CallsThisRun() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.thisRun
}

// ResetRun zeroes the in-memory run counter. Each orchestrated pass calls
// this on entry so a long-lived process does not spend its run budget once
// and stay blocked until restart.
func (m *Manager) ResetRun() {
	m.mu.Lock()
	m.thisRun = 0
	m.mu.Unlock()
}

// ResetDaily zeroes today's counter. Idempotent; invoked by the midnight
// schedule.
func (m *Manager) ResetDaily(ctx context.Context) error {
	if err := m.redis.Del(ctx, m.dayKey()).Err(); err != nil {
		return fmt.Errorf("quota: reset daily counter: %w", err)
	}
	m.logger.Info("quota: daily counter reset")
	return nil
}
