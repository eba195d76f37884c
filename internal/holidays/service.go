// Package holidays answers "is this date a holiday" from a cached remote
// holiday calendar with a fixed fallback table. The remote source is a
// convenience, never a hard dependency: with it entirely absent the system
// stays correct, just less complete.
package holidays

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mvillareal/intake-scheduler/internal/calendar"
	"github.com/mvillareal/intake-scheduler/internal/dates"
	"github.com/mvillareal/intake-scheduler/pkg/logging"
)

const cacheKeyPrefix = "holidays:year:"

// Service resolves holidays via Redis cache, remote calendar, and the
// fallback table, in that order.
type Service struct {
	remote calendar.Calendar
	redis  *redis.Client
	ttl    time.Duration
	logger *logging.Logger

	mu         sync.Mutex
	remoteDown bool
}

// NewService builds a holiday service. remote may be nil, in which case only
// the fallback table applies.
func NewService(remote calendar.Calendar, redisClient *redis.Client, ttl time.Duration, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Service{
		remote: remote,
		redis:  redisClient,
		ttl:    ttl,
		logger: logger,
	}
}

// IsHoliday reports whether d is a holiday. The fallback table answers
// year-independently; the remote calendar contributes movable dates through
// the per-year cache.
func (s *Service) IsHoliday(ctx context.Context, d dates.Date) bool {
	if _, ok := fallbackMatch(d.Month, d.Day); ok {
		return true
	}
	set, err := s.yearSet(ctx, d.Year)
	if err != nil {
		s.logger.Warn("holidays: year lookup failed, using fallback table only", "year", d.Year, "error", err)
		return false
	}
	return set[d.String()]
}

// FetchRange returns every holiday date in [start, end] as a set keyed by
// YYYY-MM-DD, unioning remote-calendar and fallback-table holidays.
func (s *Service) FetchRange(ctx context.Context, start, end dates.Date) (map[string]bool, error) {
	out := make(map[string]bool)
	for year := start.Year; year <= end.Year; year++ {
		set, err := s.yearSet(ctx, year)
		if err != nil {
			return nil, err
		}
		for day := range set {
			d, err := dates.Parse(day)
			if err != nil || d.Before(start) || d.After(end) {
				continue
			}
			out[day] = true
		}
	}
	return out, nil
}

// yearSet returns the holiday set for one year, consulting the cache first
// and rebuilding it from remote + fallback on a miss.
func (s *Service) yearSet(ctx context.Context, year int) (map[string]bool, error) {
	key := fmt.Sprintf("%s%d", cacheKeyPrefix, year)
	if s.redis != nil {
		raw, err := s.redis.Get(ctx, key).Bytes()
		if err == nil {
			var days []string
			if err := json.Unmarshal(raw, &days); err == nil {
				return toSet(days), nil
			}
		} else if err != redis.Nil {
			s.logger.Warn("holidays: cache read failed", "error", err)
		}
	}

	days := s.buildYear(ctx, year)
	if s.redis != nil {
		if raw, err := json.Marshal(days); err == nil {
			if err := s.redis.Set(ctx, key, raw, s.ttl).Err(); err != nil {
				s.logger.Warn("holidays: cache write failed", "error", err)
			}
		}
	}
	return toSet(days), nil
}

func (s *Service) buildYear(ctx context.Context, year int) []string {
	seen := make(map[string]bool)
	var days []string
	add := func(d dates.Date) {
		key := d.String()
		if !seen[key] {
			seen[key] = true
			days = append(days, key)
		}
	}

	for _, h := range fallbackTable {
		add(dates.New(year, h.Month, h.Day))
	}

	if s.remote != nil && !s.isRemoteDown() {
		start := dates.New(year, time.January, 1)
		end := dates.New(year, time.December, 31)
		events, err := s.remote.ListEvents(ctx, start, end, "")
		if err != nil {
			// One failed connection marks the remote unavailable for the
			// rest of the process; the fallback table carries on alone.
			s.logger.Warn("holidays: remote calendar unavailable, falling back", "error", err)
			s.markRemoteDown()
		} else {
			for _, ev := range events {
				add(ev.Date)
			}
		}
	}
	return days
}

func (s *Service) isRemoteDown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remoteDown
}

func (s *Service) markRemoteDown() {
	s.mu.Lock()
	s.remoteDown = true
	s.mu.Unlock()
}

func toSet(days []string) map[string]bool {
	set := make(map[string]bool, len(days))
	for _, d := range days {
		set[d] = true
	}
	return set
}

var _ dates.HolidayChecker = (*Service)(nil)
