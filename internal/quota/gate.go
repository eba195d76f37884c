package quota

import (
	"context"

	"github.com/mvillareal/intake-scheduler/internal/calendar"
	"github.com/mvillareal/intake-scheduler/pkg/logging"
)

// Gate wraps a Calendar so every mutation passes the quota check first.
// Reads are not gated. A blocked mutation returns ErrQuotaExceeded; callers
// treat that as a soft failure, never an abort of the whole run.
type Gate struct {
	cal     calendar.Calendar
	manager *Manager
	logger  *logging.Logger
}

// NewGate builds a quota-gated wrapper around cal.
func NewGate(cal calendar.Calendar, manager *Manager, logger *logging.Logger) *Gate {
	if logger == nil {
		logger = logging.Default()
	}
	return &Gate{cal: cal, manager: manager, logger: logger}
}

// SafeCreate creates an event if quota allows, recording the call on success.
func (g *Gate) SafeCreate(ctx context.Context, ev calendar.Event) (calendar.Event, error) {
	if err := g.check(ctx); err != nil {
		return calendar.Event{}, err
	}
	created, err := g.cal.CreateAllDayEvent(ctx, ev)
	if err != nil {
		return calendar.Event{}, err
	}
	g.record(ctx)
	return created, nil
}

// SafeDelete deletes an event if quota allows.
func (g *Gate) SafeDelete(ctx context.Context, id string) error {
	if err := g.check(ctx); err != nil {
		return err
	}
	if err := g.cal.DeleteEvent(ctx, id); err != nil {
		return err
	}
	g.record(ctx)
	return nil
}

// SafeUpdate updates an event if quota allows.
func (g *Gate) SafeUpdate(ctx context.Context, id, title, colorID, description string) error {
	if err := g.check(ctx); err != nil {
		return err
	}
	if err := g.cal.UpdateEvent(ctx, id, title, colorID, description); err != nil {
		return err
	}
	g.record(ctx)
	return nil
}

func (g *Gate) check(ctx context.Context) error {
	ok, err := g.manager.CanCall(ctx, 1)
	if err != nil {
		// Counter store unreachable: treat as exhausted rather than risk
		// blowing through the real ceiling.
		g.logger.Warn("quota: counter check failed, refusing call", "error", err)
		return ErrQuotaExceeded
	}
	if !ok {
		return ErrQuotaExceeded
	}
	return nil
}

func (g *Gate) record(ctx context.Context) {
	if err := g.manager.RecordCall(ctx, 1); err != nil {
		g.logger.Warn("quota: record call failed", "error", err)
	}
}
