// Package sync reconciles the shared calendar against the ledger and the
// intake submissions: exactly one summary event per valid business date,
// one appointment event per deduplicated request, nothing anywhere else.
// Every operation is a set-diff over expected versus existing state, so
// running it twice on unchanged inputs performs zero further API calls.
package sync

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mvillareal/intake-scheduler/internal/calendar"
	"github.com/mvillareal/intake-scheduler/internal/dates"
	"github.com/mvillareal/intake-scheduler/internal/observability/metrics"
	"github.com/mvillareal/intake-scheduler/internal/quota"
	"github.com/mvillareal/intake-scheduler/internal/requests"
	"github.com/mvillareal/intake-scheduler/pkg/logging"
)

var tracer = otel.Tracer("intake-scheduler/sync")

// RequestSource supplies the submissions an appointment event must mirror.
type RequestSource interface {
	ListByDate(ctx context.Context, d dates.Date) ([]requests.Request, error)
}

// Availability reports remaining capacity; satisfied by the ledger service.
type Availability interface {
	MinLeft(ctx context.Context, d dates.Date) (int, error)
}

// Service performs calendar reconciliation for single dates and windows.
type Service struct {
	cal       calendar.Calendar
	gate      *quota.Gate
	ledger    Availability
	reqs      RequestSource
	validator *dates.Validator
	holidays  HolidayRange
	logger    *logging.Logger
	metrics   *metrics.SchedulerMetrics
}

// NewService builds the sync service. Reads go straight to cal; every
// mutation passes through the quota gate.
func NewService(cal calendar.Calendar, gate *quota.Gate, availability Availability, reqs RequestSource, validator *dates.Validator, m *metrics.SchedulerMetrics, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		cal:       cal,
		gate:      gate,
		ledger:    availability,
		reqs:      reqs,
		validator: validator,
		logger:    logger,
		metrics:   m,
	}
}

// SyncDate reconciles one date: its summary event and its appointment
// events.
func (s *Service) SyncDate(ctx context.Context, d dates.Date) error {
	events, err := s.cal.ListEvents(ctx, d, d, "")
	if err != nil {
		return fmt.Errorf("sync: list events for %s: %w", d, err)
	}
	return s.syncDate(ctx, d, events)
}

// SyncRange reconciles every date in [start, end] with a single calendar
// read. Per-date failures are logged and counted; one bad date never stops
// the rest.
func (s *Service) SyncRange(ctx context.Context, start, end dates.Date) error {
	ctx, span := tracer.Start(ctx, "sync.range")
	defer span.End()
	span.SetAttributes(
		attribute.String("sync.start", start.String()),
		attribute.String("sync.end", end.String()),
	)

	events, err := s.cal.ListEvents(ctx, start, end, "")
	if err != nil {
		return fmt.Errorf("sync: list events %s..%s: %w", start, end, err)
	}
	byDate := make(map[string][]calendar.Event)
	for _, ev := range events {
		key := ev.Date.String()
		byDate[key] = append(byDate[key], ev)
	}

	var failed int
	for d := start; !d.After(end); d = d.AddDays(1) {
		if err := s.syncDate(ctx, d, byDate[d.String()]); err != nil {
			failed++
			s.logger.Error("sync: date failed", "date", d.String(), "error", err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("sync: %d of %d dates failed", failed, daysBetween(start, end)+1)
	}
	return nil
}

// syncDate reconciles one date given its current events.
func (s *Service) syncDate(ctx context.Context, d dates.Date, events []calendar.Event) error {
	var summaries, appointments []calendar.Event
	for _, ev := range events {
		switch classify(ev) {
		case calendar.KindSummary:
			summaries = append(summaries, ev)
		case calendar.KindAppointment:
			appointments = append(appointments, ev)
		}
	}

	var errs []error
	if err := s.syncSummary(ctx, d, summaries); err != nil {
		errs = append(errs, err)
	}
	if err := s.syncAppointments(ctx, d, appointments); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// syncSummary enforces the exactly-one invariant for a date's summary event.
func (s *Service) syncSummary(ctx context.Context, d dates.Date, existing []calendar.Event) error {
	if !s.validator.IsValidBusinessDate(ctx, d) {
		// Invalid dates carry no summary at all.
		for _, ev := range existing {
			if err := s.deleteEvent(ctx, "summary", ev); err != nil {
				return err
			}
		}
		return nil
	}

	left, err := s.ledger.MinLeft(ctx, d)
	if err != nil {
		return err
	}
	wantTitle := summaryTitle(left)
	wantColor := summaryColor(left)

	switch len(existing) {
	case 0:
		_, err := s.gate.SafeCreate(ctx, calendar.Event{
			Title:       wantTitle,
			Date:        d,
			Kind:        calendar.KindSummary,
			ColorID:     wantColor,
			Description: d.DisplayLabel(),
		})
		if err != nil {
			return s.mutationError("summary", "create", d, err)
		}
		s.metrics.ObserveSyncOp("summary", "create")
		return nil
	case 1:
		ev := existing[0]
		if ev.Title == wantTitle && ev.ColorID == wantColor {
			// Already correct: spend nothing.
			return nil
		}
		if err := s.gate.SafeUpdate(ctx, ev.ID, wantTitle, wantColor, ev.Description); err != nil {
			return s.mutationError("summary", "update", d, err)
		}
		s.metrics.ObserveSyncOp("summary", "update")
		return nil
	default:
		// Duplicate drift: keep one canonical survivor, delete the rest.
		survivor := existing[0]
		for _, ev := range existing[1:] {
			if err := s.deleteEvent(ctx, "summary", ev); err != nil {
				return err
			}
		}
		if survivor.Title != wantTitle || survivor.ColorID != wantColor {
			if err := s.gate.SafeUpdate(ctx, survivor.ID, wantTitle, wantColor, survivor.Description); err != nil {
				return s.mutationError("summary", "update", d, err)
			}
			s.metrics.ObserveSyncOp("summary", "update")
		}
		return nil
	}
}

// syncAppointments diffs expected against existing appointment events.
func (s *Service) syncAppointments(ctx context.Context, d dates.Date, existing []calendar.Event) error {
	var expected map[string]requests.Request
	if s.validator.IsValidBusinessDate(ctx, d) {
		rows, err := s.reqs.ListByDate(ctx, d)
		if err != nil {
			return fmt.Errorf("sync: load requests for %s: %w", d, err)
		}
		deduped := requests.Dedupe(rows)
		expected = make(map[string]requests.Request, len(deduped))
		for _, req := range deduped {
			expected[appointmentTitle(req)] = req
		}
	}

	have := make(map[string]bool, len(existing))
	for _, ev := range existing {
		if expected[ev.Title].CategoryID != "" && !have[ev.Title] {
			have[ev.Title] = true
			continue
		}
		// Orphaned, duplicated, or on an invalid date: remove.
		if err := s.deleteEvent(ctx, "appointment", ev); err != nil {
			return err
		}
	}

	for title, req := range expected {
		if have[title] {
			continue
		}
		// Pre-create existence check guards against duplicate creation when
		// two runs race on the same submission.
		found, err := s.cal.ListEvents(ctx, d, d, title)
		if err != nil {
			return fmt.Errorf("sync: pre-create check for %s: %w", d, err)
		}
		if containsTitle(found, title) {
			continue
		}
		_, err = s.gate.SafeCreate(ctx, calendar.Event{
			Title:       title,
			Date:        d,
			Kind:        calendar.KindAppointment,
			ColorID:     "",
			Description: req.DisplayName() + " / " + req.CategoryID,
		})
		if err != nil {
			return s.mutationError("appointment", "create", d, err)
		}
		s.metrics.ObserveSyncOp("appointment", "create")
	}
	return nil
}

func (s *Service) deleteEvent(ctx context.Context, kind string, ev calendar.Event) error {
	if err := s.gate.SafeDelete(ctx, ev.ID); err != nil {
		return s.mutationError(kind, "delete", ev.Date, err)
	}
	s.metrics.ObserveSyncOp(kind, "delete")
	return nil
}

// mutationError downgrades quota exhaustion to a logged skip; anything else
// propagates.
func (s *Service) mutationError(kind, action string, d dates.Date, err error) error {
	if errors.Is(err, quota.ErrQuotaExceeded) {
		s.metrics.ObserveQuotaBlocked()
		s.logger.Warn("sync: mutation skipped, quota exhausted",
			"kind", kind, "action", action, "date", d.String())
		return nil
	}
	return fmt.Errorf("sync: %s %s %s: %w", action, kind, d, err)
}

func containsTitle(events []calendar.Event, title string) bool {
	for _, ev := range events {
		if ev.Title == title {
			return true
		}
	}
	return false
}

func daysBetween(start, end dates.Date) int {
	n := 0
	for d := start; d.Before(end); d = d.AddDays(1) {
		n++
	}
	return n
}
