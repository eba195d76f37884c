package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/mvillareal/intake-scheduler/internal/choices"
	"github.com/mvillareal/intake-scheduler/internal/dates"
	"github.com/mvillareal/intake-scheduler/internal/observability/metrics"
	"github.com/mvillareal/intake-scheduler/internal/state"
	"github.com/mvillareal/intake-scheduler/pkg/logging"
)

// Nightly is the full-rebuild pass: purge stale calendar events, reseed the
// ledger window, reconcile the whole range, republish the choice list.
type Nightly struct {
	mutex     Locker
	ledger    Ledger
	syncer    Syncer
	publisher choices.Publisher
	validator *dates.Validator
	states    *state.Store
	alerter   Alerter
	quota     RunQuota
	metrics   *metrics.SchedulerMetrics
	logger    *logging.Logger
	now       func() time.Time
}

// NewNightly wires the nightly pass. publisher and metrics may be nil.
func NewNightly(mutex Locker, ledger Ledger, syncer Syncer, publisher choices.Publisher, validator *dates.Validator, states *state.Store, alerter Alerter, m *metrics.SchedulerMetrics, logger *logging.Logger) *Nightly {
	if logger == nil {
		logger = logging.Default()
	}
	if alerter == nil {
		alerter = noopAlerter{}
	}
	return &Nightly{
		mutex:     mutex,
		ledger:    ledger,
		syncer:    syncer,
		publisher: publisher,
		validator: validator,
		states:    states,
		alerter:   alerter,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// WithNow overrides the clock. Test hook.
func (n *Nightly) WithNow(now func() time.Time) *Nightly {
	n.now = now
	return n
}

// WithQuota attaches the run-scoped call budget.
func (n *Nightly) WithQuota(q RunQuota) *Nightly {
	n.quota = q
	return n
}

// Run executes the full rebuild. Seeding failure aborts the pass since the
// sync would reconcile against an untrusted ledger; everything after a
// successful seed is best-effort and alerted rather than fatal.
func (n *Nightly) Run(ctx context.Context) error {
	if err := n.mutex.Acquire(ctx); err != nil {
		return fmt.Errorf("nightly: %w", err)
	}
	defer n.mutex.Release(ctx)
	if n.quota != nil {
		n.quota.ResetRun()
	}
	started := n.now()

	start := n.validator.Today()
	days := n.validator.FutureDays()
	end := start.AddDays(days)
	n.logger.Info("nightly: rebuild started", "start", start.String(), "end", end.String())

	if err := n.syncer.PurgeInvalid(ctx); err != nil {
		n.logger.Error("nightly: purge", "error", err)
		n.alerter.AlertError(ctx, "nightly_purge", err)
	}

	if err := n.ledger.SeedWindow(ctx, start, days); err != nil {
		n.alerter.AlertError(ctx, "nightly_seed", err)
		return fmt.Errorf("nightly: seed window: %w", err)
	}

	if err := n.syncer.SyncRange(ctx, start, end); err != nil {
		n.logger.Error("nightly: range sync", "error", err)
		n.alerter.AlertError(ctx, "nightly_sync", err)
	}

	if err := n.syncer.SyncHolidayMarkers(ctx, start, end); err != nil {
		n.logger.Error("nightly: holiday markers", "error", err)
		n.alerter.AlertError(ctx, "nightly_holidays", err)
	}

	if err := n.RefreshChoices(ctx); err != nil {
		n.logger.Error("nightly: choice refresh", "error", err)
		n.alerter.AlertError(ctx, "nightly_choices", err)
	}

	if n.states != nil {
		if err := n.states.MarkSync(ctx, "nightly", n.now()); err != nil {
			n.logger.Warn("nightly: mark sync", "error", err)
		}
	}
	n.metrics.ObserveRunDuration("nightly", n.now().Sub(started).Seconds())
	n.logger.Info("nightly: rebuild finished", "elapsed", n.now().Sub(started).String())
	return nil
}

// RefreshChoices rebuilds the intake form's date selector from current
// ledger state. Read-only; also invoked on its own by the hourly schedule
// without taking the lock.
func (n *Nightly) RefreshChoices(ctx context.Context) error {
	if n.publisher == nil {
		return nil
	}
	start := n.validator.Today()
	end := start.AddDays(n.validator.FutureDays())
	availability, err := n.ledger.WindowAvailability(ctx, start, end)
	if err != nil {
		return fmt.Errorf("nightly: window availability: %w", err)
	}
	labels := choices.BuildLabels(ctx, availability, n.validator)
	if err := n.publisher.ReplaceAll(ctx, labels); err != nil {
		return fmt.Errorf("nightly: publish choices: %w", err)
	}
	n.logger.Info("nightly: choices republished", "count", len(labels))
	return nil
}
