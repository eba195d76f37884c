package sync

import (
	"context"
	"fmt"

	"github.com/mvillareal/intake-scheduler/internal/calendar"
	"github.com/mvillareal/intake-scheduler/internal/dates"
)

// Lookback/lookahead for the purge scan. Events older or further out than
// this were never ours to manage.
const (
	purgeLookbackDays  = 30
	purgeLookaheadDays = 90
)

// HolidayRange enumerates holiday dates over a window, keyed by YYYY-MM-DD.
type HolidayRange interface {
	FetchRange(ctx context.Context, start, end dates.Date) (map[string]bool, error)
}

// WithHolidaySource attaches the holiday enumerator used by
// SyncHolidayMarkers.
func (s *Service) WithHolidaySource(src HolidayRange) *Service {
	s.holidays = src
	return s
}

// PurgeInvalid deletes scheduler-managed events outside the active window:
// everything in the past and everything beyond the future booking horizon.
// Invalid dates inside the window are handled by the range sync itself.
func (s *Service) PurgeInvalid(ctx context.Context) error {
	today := s.validator.Today()
	windowEnd := today.AddDays(s.validator.FutureDays())

	if err := s.purgeSpan(ctx, today.AddDays(-purgeLookbackDays), today.AddDays(-1)); err != nil {
		return fmt.Errorf("sync: purge past: %w", err)
	}
	if err := s.purgeSpan(ctx, windowEnd.AddDays(1), windowEnd.AddDays(purgeLookaheadDays)); err != nil {
		return fmt.Errorf("sync: purge beyond window: %w", err)
	}
	return nil
}

func (s *Service) purgeSpan(ctx context.Context, start, end dates.Date) error {
	events, err := s.cal.ListEvents(ctx, start, end, "")
	if err != nil {
		return err
	}
	for _, ev := range events {
		kind := classify(ev)
		if kind == calendar.KindUnknown {
			// Not ours; leave staff-created entries alone.
			continue
		}
		if err := s.deleteEvent(ctx, string(kind), ev); err != nil {
			return err
		}
	}
	return nil
}

// SyncHolidayMarkers upserts one holiday notice per holiday date in
// [start, end] and removes markers from dates that are not holidays.
func (s *Service) SyncHolidayMarkers(ctx context.Context, start, end dates.Date) error {
	if s.holidays == nil {
		return nil
	}
	holidaySet, err := s.holidays.FetchRange(ctx, start, end)
	if err != nil {
		return fmt.Errorf("sync: fetch holidays: %w", err)
	}

	events, err := s.cal.ListEvents(ctx, start, end, "")
	if err != nil {
		return fmt.Errorf("sync: list events for holiday markers: %w", err)
	}
	markersByDate := make(map[string][]calendar.Event)
	for _, ev := range events {
		if classify(ev) == calendar.KindHoliday {
			key := ev.Date.String()
			markersByDate[key] = append(markersByDate[key], ev)
		}
	}

	for d := start; !d.After(end); d = d.AddDays(1) {
		key := d.String()
		markers := markersByDate[key]
		if !holidaySet[key] {
			for _, ev := range markers {
				if err := s.deleteEvent(ctx, "holiday", ev); err != nil {
					return err
				}
			}
			continue
		}
		if len(markers) == 0 {
			_, err := s.gate.SafeCreate(ctx, calendar.Event{
				Title: holidayTitle(""),
				Date:  d,
				Kind:  calendar.KindHoliday,
			})
			if err != nil {
				return s.mutationError("holiday", "create", d, err)
			}
			s.metrics.ObserveSyncOp("holiday", "create")
			continue
		}
		for _, ev := range markers[1:] {
			if err := s.deleteEvent(ctx, "holiday", ev); err != nil {
				return err
			}
		}
	}
	return nil
}
