package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mvillareal/intake-scheduler/internal/dates"
	"github.com/mvillareal/intake-scheduler/internal/lock"
	"github.com/mvillareal/intake-scheduler/internal/observability/metrics"
	"github.com/mvillareal/intake-scheduler/internal/state"
	"github.com/mvillareal/intake-scheduler/pkg/logging"
)

const integrityPass = "integrity"

// Integrity is the drift-recovery pass. It re-reconciles the full window,
// which heals duplicate or missing summaries, orphaned appointments, and
// events stranded on dates that stopped being valid. Throttled by a minimum
// interval and short-circuited when no submissions arrived since the last
// pass.
type Integrity struct {
	mutex       Locker
	syncer      Syncer
	reqs        RequestStore
	validator   *dates.Validator
	states      *state.Store
	alerter     Alerter
	quota       RunQuota
	metrics     *metrics.SchedulerMetrics
	logger      *logging.Logger
	minInterval time.Duration
	now         func() time.Time
}

// NewIntegrity wires the integrity pass.
func NewIntegrity(mutex Locker, syncer Syncer, reqs RequestStore, validator *dates.Validator, states *state.Store, alerter Alerter, m *metrics.SchedulerMetrics, minInterval time.Duration, logger *logging.Logger) *Integrity {
	if logger == nil {
		logger = logging.Default()
	}
	if alerter == nil {
		alerter = noopAlerter{}
	}
	if minInterval <= 0 {
		minInterval = time.Hour
	}
	return &Integrity{
		mutex:       mutex,
		syncer:      syncer,
		reqs:        reqs,
		validator:   validator,
		states:      states,
		alerter:     alerter,
		metrics:     m,
		logger:      logger,
		minInterval: minInterval,
		now:         time.Now,
	}
}

// WithNow overrides the clock. Test hook.
func (g *Integrity) WithNow(now func() time.Time) *Integrity {
	g.now = now
	return g
}

// WithQuota attaches the run-scoped call budget.
func (g *Integrity) WithQuota(q RunQuota) *Integrity {
	g.quota = q
	return g
}

// Run executes one integrity check if it is due. Skips (returning nil) when
// throttled, when nothing changed since the last pass, or when the lock is
// held by another run.
func (g *Integrity) Run(ctx context.Context) error {
	last, err := g.states.LastSync(ctx, integrityPass)
	if err != nil {
		return fmt.Errorf("integrity: read last run: %w", err)
	}
	if !last.IsZero() && g.now().Sub(last) < g.minInterval {
		return nil
	}

	count, err := g.reqs.Count(ctx)
	if err != nil {
		return fmt.Errorf("integrity: count requests: %w", err)
	}
	lastSeen, err := g.states.LastSeenCount(ctx, integrityPass)
	if err != nil {
		return fmt.Errorf("integrity: read last seen count: %w", err)
	}
	if count == lastSeen {
		// Nothing new to reconcile; push the throttle window forward.
		if err := g.states.MarkSync(ctx, integrityPass, g.now()); err != nil {
			g.logger.Warn("integrity: mark sync", "error", err)
		}
		g.logger.Info("integrity: no change since last pass", "count", count)
		return nil
	}

	if err := g.mutex.Acquire(ctx); err != nil {
		if errors.Is(err, lock.ErrBusy) {
			g.logger.Warn("integrity: lock busy, deferring to next tick")
			return nil
		}
		return fmt.Errorf("integrity: %w", err)
	}
	defer g.mutex.Release(ctx)
	if g.quota != nil {
		g.quota.ResetRun()
	}
	started := g.now()

	start := g.validator.Today()
	end := start.AddDays(g.validator.FutureDays())
	g.logger.Info("integrity: drift check started", "requests", count, "last_seen", lastSeen)

	if err := g.syncer.PurgeInvalid(ctx); err != nil {
		g.logger.Error("integrity: purge", "error", err)
		g.alerter.AlertError(ctx, "integrity_purge", err)
	}
	if err := g.syncer.SyncRange(ctx, start, end); err != nil {
		g.logger.Error("integrity: range sync", "error", err)
		g.alerter.AlertError(ctx, "integrity_sync", err)
	}
	if err := g.syncer.SyncHolidayMarkers(ctx, start, end); err != nil {
		g.logger.Error("integrity: holiday markers", "error", err)
		g.alerter.AlertError(ctx, "integrity_holidays", err)
	}

	if err := g.states.MarkSeenCount(ctx, integrityPass, count); err != nil {
		g.logger.Warn("integrity: mark seen count", "error", err)
	}
	if err := g.states.MarkSync(ctx, integrityPass, g.now()); err != nil {
		g.logger.Warn("integrity: mark sync", "error", err)
	}
	g.metrics.ObserveRunDuration(integrityPass, g.now().Sub(started).Seconds())
	g.logger.Info("integrity: drift check finished", "elapsed", g.now().Sub(started).String())
	return nil
}
