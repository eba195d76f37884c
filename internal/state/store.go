// Package state persists the small amount of cross-run scheduler state:
// throttle timestamps, the submission counter, and a bounded log of recent
// errors. Runs are short-lived, so anything that must outlive one lives here.
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	lastSyncPrefix      = "state:last_sync:"
	submissionCountKey  = "state:submission_count"
	errorLogKey         = "state:error_log"
	errorLogMaxEntries  = 100
	lastSeenCountPrefix = "state:last_seen_count:"
)

// ErrorEntry is one record in the rolling error log.
type ErrorEntry struct {
	At      time.Time `json:"at"`
	Class   string    `json:"class"`
	Message string    `json:"message"`
}

// Store is the Redis-backed scheduler state store.
type Store struct {
	redis *redis.Client
}

// NewStore builds a Store on the shared Redis client.
func NewStore(redisClient *redis.Client) *Store {
	return &Store{redis: redisClient}
}

// LastSync returns the recorded completion time of the named pass, or the
// zero time when it has never run.
func (s *Store) LastSync(ctx context.Context, name string) (time.Time, error) {
	val, err := s.redis.Get(ctx, lastSyncPrefix+name).Result()
	if err == redis.Nil {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("state: read last sync %s: %w", name, err)
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return time.Time{}, fmt.Errorf("state: parse last sync %s: %w", name, err)
	}
	return t, nil
}

// MarkSync records the completion time of the named pass.
func (s *Store) MarkSync(ctx context.Context, name string, at time.Time) error {
	if err := s.redis.Set(ctx, lastSyncPrefix+name, at.UTC().Format(time.RFC3339), 0).Err(); err != nil {
		return fmt.Errorf("state: mark sync %s: %w", name, err)
	}
	return nil
}

// IncrSubmissionCount bumps the running submission counter and returns the
// new value. The integrity pass uses it for cheap no-change detection.
func (s *Store) IncrSubmissionCount(ctx context.Context) (int64, error) {
	n, err := s.redis.Incr(ctx, submissionCountKey).Result()
	if err != nil {
		return 0, fmt.Errorf("state: incr submission count: %w", err)
	}
	return n, nil
}

// SubmissionCount reads the running submission counter.
func (s *Store) SubmissionCount(ctx context.Context) (int64, error) {
	n, err := s.redis.Get(ctx, submissionCountKey).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("state: read submission count: %w", err)
	}
	return n, nil
}

// LastSeenCount returns the submission count observed by the named pass on
// its previous run.
func (s *Store) LastSeenCount(ctx context.Context, name string) (int64, error) {
	n, err := s.redis.Get(ctx, lastSeenCountPrefix+name).Int64()
	if err == redis.Nil {
		return -1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("state: read last seen count %s: %w", name, err)
	}
	return n, nil
}

// MarkSeenCount records the submission count the named pass just processed.
func (s *Store) MarkSeenCount(ctx context.Context, name string, n int64) error {
	if err := s.redis.Set(ctx, lastSeenCountPrefix+name, n, 0).Err(); err != nil {
		return fmt.Errorf("state: mark seen count %s: %w", name, err)
	}
	return nil
}

// AppendError pushes an entry onto the rolling error log, trimming it to the
// most recent hundred.
func (s *Store) AppendError(ctx context.Context, entry ErrorEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("state: marshal error entry: %w", err)
	}
	pipe := s.redis.TxPipeline()
	pipe.LPush(ctx, errorLogKey, data)
	pipe.LTrim(ctx, errorLogKey, 0, errorLogMaxEntries-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("state: append error entry: %w", err)
	}
	return nil
}

// RecentErrors returns the newest-first rolling error log.
func (s *Store) RecentErrors(ctx context.Context) ([]ErrorEntry, error) {
	raw, err := s.redis.LRange(ctx, errorLogKey, 0, errorLogMaxEntries-1).Result()
	if err != nil {
		return nil, fmt.Errorf("state: read error log: %w", err)
	}
	out := make([]ErrorEntry, 0, len(raw))
	for _, item := range raw {
		var entry ErrorEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}
