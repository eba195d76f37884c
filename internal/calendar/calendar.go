// Package calendar wraps the shared booking calendar behind a narrow
// interface: list a window, create all-day events, delete, and retitle.
package calendar

import (
	"context"

	"github.com/mvillareal/intake-scheduler/internal/dates"
)

// Kind tags the two event varieties the scheduler manages. The kind is
// carried as structured metadata on the event, not parsed out of the title.
type Kind string

const (
	// KindSummary marks the one-per-date remaining-capacity event.
	KindSummary Kind = "summary"
	// KindAppointment marks a per-booking event.
	KindAppointment Kind = "appointment"
	// KindHoliday marks the no-appointments notice placed on holidays.
	KindHoliday Kind = "holiday"
	// KindUnknown covers events created outside the scheduler.
	KindUnknown Kind = ""
)

// Color identifiers understood by the calendar product.
const (
	ColorGreen = "10"
	ColorRed   = "11"
)

// Event is the scheduler's view of one calendar entry.
type Event struct {
	ID          string
	Title       string
	Date        dates.Date
	Kind        Kind
	ColorID     string
	Description string
}

// Calendar is the narrow surface the sync and orchestration layers consume.
// Implementations: the Google-backed client and the in-memory Fake.
type Calendar interface {
	// ListEvents returns events with dates in [start, end]. A non-empty
	// query restricts results to events whose text matches it.
	ListEvents(ctx context.Context, start, end dates.Date, query string) ([]Event, error)
	// CreateAllDayEvent inserts a single all-day event and returns it.
	CreateAllDayEvent(ctx context.Context, ev Event) (Event, error)
	// DeleteEvent removes an event by ID.
	DeleteEvent(ctx context.Context, id string) error
	// UpdateEvent rewrites title, color, and description in place.
	UpdateEvent(ctx context.Context, id string, title, colorID, description string) error
}
