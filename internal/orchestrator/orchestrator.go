// Package orchestrator sequences the reconciliation services into the three
// passes the system runs: a nightly full rebuild, a per-submission
// incremental pass, and a throttled integrity check. Each pass holds the
// global advisory lock for its ledger-mutating span; lock contention is a
// soft "busy" outcome, never a crash.
package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mvillareal/intake-scheduler/internal/dates"
	"github.com/mvillareal/intake-scheduler/internal/requests"
)

// Locker is the global advisory lock. Satisfied by lock.Mutex.
type Locker interface {
	Acquire(ctx context.Context) error
	Release(ctx context.Context)
}

// Ledger is the slot-ledger surface the passes drive. Satisfied by
// ledger.Service.
type Ledger interface {
	SeedWindow(ctx context.Context, start dates.Date, days int) error
	WindowAvailability(ctx context.Context, start, end dates.Date) (map[string]int, error)
	DecrementAllCategories(ctx context.Context, d dates.Date) ([]int, error)
	Revert(ctx context.Context, d dates.Date) error
}

// Syncer is the calendar reconciliation surface. Satisfied by sync.Service.
type Syncer interface {
	PurgeInvalid(ctx context.Context) error
	SyncRange(ctx context.Context, start, end dates.Date) error
	SyncHolidayMarkers(ctx context.Context, start, end dates.Date) error
	SyncDate(ctx context.Context, d dates.Date) error
}

// RequestStore is the submission persistence surface. Satisfied by
// requests.Repository.
type RequestStore interface {
	Insert(ctx context.Context, req requests.Request) (requests.Request, error)
	DeleteByID(ctx context.Context, id uuid.UUID) error
	DeleteOlderThan(ctx context.Context, categoryID string, cutoff time.Time) (int64, error)
	Count(ctx context.Context) (int64, error)
}

// RunQuota scopes the in-memory call budget to one pass. Satisfied by
// quota.Manager. Every pass zeroes the run counter on entry; without that a
// long-lived process would spend its run budget once and stay blocked until
// restart.
type RunQuota interface {
	ResetRun()
}

// Alerter notifies the operator about pass failures. Satisfied by
// notify.Alerter.
type Alerter interface {
	AlertError(ctx context.Context, class string, err error)
}

type noopAlerter struct{}

func (noopAlerter) AlertError(context.Context, string, error) {}
