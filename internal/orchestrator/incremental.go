package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mvillareal/intake-scheduler/internal/dates"
	"github.com/mvillareal/intake-scheduler/internal/ledger"
	"github.com/mvillareal/intake-scheduler/internal/observability/metrics"
	"github.com/mvillareal/intake-scheduler/internal/registry"
	"github.com/mvillareal/intake-scheduler/internal/requests"
	"github.com/mvillareal/intake-scheduler/internal/state"
	"github.com/mvillareal/intake-scheduler/pkg/logging"
)

// ErrUnknownCategory rejects submissions naming a category outside the
// registry.
var ErrUnknownCategory = errors.New("orchestrator: unknown category")

// Incremental handles one intake submission: guarded cross-category
// decrement, durable request row, single-date calendar sync, retention
// prune. The decrement and the row are the booking decision; the calendar
// write is compensated on hard failure, everything after is best-effort.
type Incremental struct {
	mutex         Locker
	ledger        Ledger
	reqs          RequestStore
	syncer        Syncer
	registry      *registry.Registry
	validator     *dates.Validator
	states        *state.Store
	alerter       Alerter
	quota         RunQuota
	metrics       *metrics.SchedulerMetrics
	logger        *logging.Logger
	retentionDays int
	now           func() time.Time
}

// NewIncremental wires the per-submission pass.
func NewIncremental(mutex Locker, lgr Ledger, reqs RequestStore, syncer Syncer, reg *registry.Registry, validator *dates.Validator, states *state.Store, alerter Alerter, m *metrics.SchedulerMetrics, retentionDays int, logger *logging.Logger) *Incremental {
	if logger == nil {
		logger = logging.Default()
	}
	if alerter == nil {
		alerter = noopAlerter{}
	}
	return &Incremental{
		mutex:         mutex,
		ledger:        lgr,
		reqs:          reqs,
		syncer:        syncer,
		registry:      reg,
		validator:     validator,
		states:        states,
		alerter:       alerter,
		metrics:       m,
		logger:        logger,
		retentionDays: retentionDays,
		now:           time.Now,
	}
}

// WithNow overrides the clock. Test hook.
func (i *Incremental) WithNow(now func() time.Time) *Incremental {
	i.now = now
	return i
}

// WithQuota attaches the run-scoped call budget.
func (i *Incremental) WithQuota(q RunQuota) *Incremental {
	i.quota = q
	return i
}

// OnSubmission books one request. Returns the remaining slot counts per
// category (registry order) when the booking is accepted. Returned errors
// carry the ledger sentinels (ErrNoSlots, ErrHolidayDate, ErrInvalidDate)
// and lock.ErrBusy for the transport layer to map onto status codes.
func (i *Incremental) OnSubmission(ctx context.Context, req requests.Request) ([]int, error) {
	if _, ok := i.registry.Lookup(req.CategoryID); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCategory, req.CategoryID)
	}

	if err := i.mutex.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("incremental: %w", err)
	}
	defer i.mutex.Release(ctx)
	if i.quota != nil {
		i.quota.ResetRun()
	}
	started := i.now()

	lefts, err := i.ledger.DecrementAllCategories(ctx, req.Date)
	if err != nil {
		i.metrics.ObserveDecrement(decrementOutcome(err))
		return nil, err
	}
	i.metrics.ObserveDecrement("booked")

	stored, err := i.reqs.Insert(ctx, req)
	if err != nil {
		// The booking cannot be recorded, so give the slots back.
		if revertErr := i.ledger.Revert(ctx, req.Date); revertErr != nil {
			i.logger.Error("incremental: revert after insert failure", "error", revertErr)
			i.alerter.AlertError(ctx, "incremental_revert", revertErr)
		}
		return nil, fmt.Errorf("incremental: store request: %w", err)
	}

	if err := i.syncer.SyncDate(ctx, req.Date); err != nil {
		// Hard calendar failure: unwind the decrement and the row so the
		// ledger, the table, and the calendar stay mutually consistent.
		// Quota exhaustion never lands here; the sync treats it as a skip.
		if revertErr := i.ledger.Revert(ctx, req.Date); revertErr != nil {
			i.logger.Error("incremental: revert after sync failure", "error", revertErr)
			i.alerter.AlertError(ctx, "incremental_revert", revertErr)
		}
		if delErr := i.reqs.DeleteByID(ctx, stored.ID); delErr != nil {
			i.logger.Error("incremental: remove request after sync failure", "error", delErr)
			i.alerter.AlertError(ctx, "incremental_revert", delErr)
		}
		i.alerter.AlertError(ctx, "incremental_sync", err)
		return nil, fmt.Errorf("incremental: calendar sync: %w", err)
	}

	// Booking is committed. Remaining sub-steps are best-effort.
	if i.states != nil {
		if _, err := i.states.IncrSubmissionCount(ctx); err != nil {
			i.logger.Warn("incremental: bump submission count", "error", err)
		}
	}
	i.pruneExpired(ctx, req.CategoryID)

	i.metrics.ObserveRunDuration("incremental", i.now().Sub(started).Seconds())
	i.logger.Info("incremental: booking accepted",
		"category", req.CategoryID, "date", req.Date.String(), "request_id", stored.ID.String())
	return lefts, nil
}

func (i *Incremental) pruneExpired(ctx context.Context, categoryID string) {
	if i.retentionDays <= 0 {
		return
	}
	cutoff := i.now().AddDate(0, 0, -i.retentionDays)
	removed, err := i.reqs.DeleteOlderThan(ctx, categoryID, cutoff)
	if err != nil {
		i.logger.Error("incremental: prune expired requests", "error", err)
		i.alerter.AlertError(ctx, "incremental_prune", err)
		return
	}
	if removed > 0 {
		i.logger.Info("incremental: expired requests pruned", "category", categoryID, "count", removed)
	}
}

func decrementOutcome(err error) string {
	switch {
	case errors.Is(err, ledger.ErrNoSlots):
		return "no_slots"
	case errors.Is(err, ledger.ErrHolidayDate):
		return "holiday"
	case errors.Is(err, ledger.ErrInvalidDate):
		return "invalid_date"
	default:
		return "error"
	}
}
