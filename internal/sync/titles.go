package sync

import (
	"fmt"
	"strings"

	"github.com/mvillareal/intake-scheduler/internal/calendar"
	"github.com/mvillareal/intake-scheduler/internal/requests"
)

// Title tags keep events human-readable on the shared calendar. The event
// kind itself travels as structured metadata; the tags exist so staff can
// tell entries apart at a glance and so events created before metadata
// tagging still classify.
const (
	summaryTag     = "[AVAIL]"
	appointmentTag = "[APPT]"
	holidayTag     = "[HOLIDAY]"
)

func summaryTitle(left int) string {
	if left == 1 {
		return summaryTag + " 1 slot left"
	}
	return fmt.Sprintf("%s %d slots left", summaryTag, left)
}

func summaryColor(left int) string {
	if left > 0 {
		return calendar.ColorGreen
	}
	return calendar.ColorRed
}

func appointmentTitle(req requests.Request) string {
	return fmt.Sprintf("%s[%s] %s - %s, %s",
		appointmentTag, req.CategoryID, req.DisplayName(), req.Purok, req.Barangay)
}

func holidayTitle(name string) string {
	if name == "" {
		return holidayTag + " No appointments"
	}
	return holidayTag + " " + name
}

// classify resolves an event's kind, preferring the structured metadata and
// falling back to the title tag for events predating it.
func classify(ev calendar.Event) calendar.Kind {
	if ev.Kind != calendar.KindUnknown {
		return ev.Kind
	}
	switch {
	case strings.HasPrefix(ev.Title, summaryTag):
		return calendar.KindSummary
	case strings.HasPrefix(ev.Title, appointmentTag):
		return calendar.KindAppointment
	case strings.HasPrefix(ev.Title, holidayTag):
		return calendar.KindHoliday
	default:
		return calendar.KindUnknown
	}
}
