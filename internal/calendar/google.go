package calendar

import (
	"context"
	"fmt"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/mvillareal/intake-scheduler/internal/dates"
	"github.com/mvillareal/intake-scheduler/pkg/logging"
)

const kindProperty = "intake_kind"

// GoogleCalendar implements Calendar on top of the Google Calendar API.
type GoogleCalendar struct {
	svc        *gcal.Service
	calendarID string
	loc        *time.Location
	logger     *logging.Logger
}

// NewGoogleCalendar builds a client for the given calendar. credentialsJSON
// holds a service-account key; empty falls through to application default
// credentials.
func NewGoogleCalendar(ctx context.Context, calendarID, credentialsJSON string, loc *time.Location, logger *logging.Logger) (*GoogleCalendar, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	var opts []option.ClientOption
	if credentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credentialsJSON)))
	}
	opts = append(opts, option.WithScopes(gcal.CalendarScope))
	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("calendar: create service: %w", err)
	}
	return &GoogleCalendar{
		svc:        svc,
		calendarID: calendarID,
		loc:        loc,
		logger:     logger,
	}, nil
}

// ListEvents returns all events dated within [start, end], following
// pagination until the window is exhausted.
func (g *GoogleCalendar) ListEvents(ctx context.Context, start, end dates.Date, query string) ([]Event, error) {
	timeMin := start.Time(g.loc)
	timeMax := end.AddDays(1).Time(g.loc)

	var out []Event
	pageToken := ""
	for {
		call := g.svc.Events.List(g.calendarID).
			Context(ctx).
			TimeMin(timeMin.Format(time.RFC3339)).
			TimeMax(timeMax.Format(time.RFC3339)).
			SingleEvents(true).
			MaxResults(250)
		if query != "" {
			call = call.Q(query)
		}
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("calendar: list events: %w", err)
		}
		for _, item := range resp.Items {
			ev, err := g.fromAPI(item)
			if err != nil {
				g.logger.Warn("calendar: skipping unparseable event", "event_id", item.Id, "error", err)
				continue
			}
			out = append(out, ev)
		}
		if resp.NextPageToken == "" {
			return out, nil
		}
		pageToken = resp.NextPageToken
	}
}

// CreateAllDayEvent inserts ev as an all-day entry.
func (g *GoogleCalendar) CreateAllDayEvent(ctx context.Context, ev Event) (Event, error) {
	item := &gcal.Event{
		Summary:     ev.Title,
		Description: ev.Description,
		ColorId:     ev.ColorID,
		Start:       &gcal.EventDateTime{Date: ev.Date.String()},
		End:         &gcal.EventDateTime{Date: ev.Date.AddDays(1).String()},
	}
	if ev.Kind != KindUnknown {
		item.ExtendedProperties = &gcal.EventExtendedProperties{
			Private: map[string]string{kindProperty: string(ev.Kind)},
		}
	}
	created, err := g.svc.Events.Insert(g.calendarID, item).Context(ctx).Do()
	if err != nil {
		return Event{}, fmt.Errorf("calendar: insert event: %w", err)
	}
	ev.ID = created.Id
	return ev, nil
}

// DeleteEvent removes the event by ID.
func (g *GoogleCalendar) DeleteEvent(ctx context.Context, id string) error {
	if err := g.svc.Events.Delete(g.calendarID, id).Context(ctx).Do(); err != nil {
		return fmt.Errorf("calendar: delete event %s: %w", id, err)
	}
	return nil
}

// UpdateEvent patches title, color, and description on an existing event.
func (g *GoogleCalendar) UpdateEvent(ctx context.Context, id, title, colorID, description string) error {
	patch := &gcal.Event{
		Summary:     title,
		ColorId:     colorID,
		Description: description,
	}
	if _, err := g.svc.Events.Patch(g.calendarID, id, patch).Context(ctx).Do(); err != nil {
		return fmt.Errorf("calendar: patch event %s: %w", id, err)
	}
	return nil
}

func (g *GoogleCalendar) fromAPI(item *gcal.Event) (Event, error) {
	if item.Start == nil || item.Start.Date == "" {
		return Event{}, fmt.Errorf("not an all-day event")
	}
	d, err := dates.Parse(item.Start.Date)
	if err != nil {
		return Event{}, err
	}
	kind := KindUnknown
	if item.ExtendedProperties != nil && item.ExtendedProperties.Private != nil {
		kind = Kind(item.ExtendedProperties.Private[kindProperty])
	}
	return Event{
		ID:          item.Id,
		Title:       item.Summary,
		Date:        d,
		Kind:        kind,
		ColorID:     item.ColorId,
		Description: item.Description,
	}, nil
}

var _ Calendar = (*GoogleCalendar)(nil)
