package calendar

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/mvillareal/intake-scheduler/internal/dates"
)

// Fake is an in-memory Calendar used by tests and the demo wiring. It counts
// mutating calls so idempotence tests can assert "second pass does nothing".
type Fake struct {
	mu     sync.Mutex
	nextID int
	events map[string]Event

	Creates int
	Deletes int
	Updates int
	Lists   int

	// FailCreates makes every create return an error, for reversal paths.
	FailCreates bool
}

// NewFake returns an empty fake calendar.
func NewFake() *Fake {
	return &Fake{events: make(map[string]Event)}
}

// ListEvents returns events within [start, end] matching query.
func (f *Fake) ListEvents(_ context.Context, start, end dates.Date, query string) ([]Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Lists++
	var out []Event
	for _, ev := range f.events {
		if ev.Date.Before(start) || ev.Date.After(end) {
			continue
		}
		if query != "" && !strings.Contains(ev.Title, query) {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

// CreateAllDayEvent stores the event with a generated ID.
func (f *Fake) CreateAllDayEvent(_ context.Context, ev Event) (Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailCreates {
		return Event{}, fmt.Errorf("fake calendar: create disabled")
	}
	f.nextID++
	ev.ID = fmt.Sprintf("ev-%d", f.nextID)
	f.events[ev.ID] = ev
	f.Creates++
	return ev, nil
}

// DeleteEvent removes the event.
func (f *Fake) DeleteEvent(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.events[id]; !ok {
		return fmt.Errorf("fake calendar: no event %s", id)
	}
	delete(f.events, id)
	f.Deletes++
	return nil
}

// UpdateEvent rewrites title, color, and description.
func (f *Fake) UpdateEvent(_ context.Context, id, title, colorID, description string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ev, ok := f.events[id]
	if !ok {
		return fmt.Errorf("fake calendar: no event %s", id)
	}
	ev.Title = title
	ev.ColorID = colorID
	ev.Description = description
	f.events[id] = ev
	f.Updates++
	return nil
}

// Events returns a snapshot of everything stored.
func (f *Fake) Events() []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Event, 0, len(f.events))
	for _, ev := range f.events {
		out = append(out, ev)
	}
	return out
}

// MutationCount sums creates, deletes, and updates.
func (f *Fake) MutationCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Creates + f.Deletes + f.Updates
}

var _ Calendar = (*Fake)(nil)
