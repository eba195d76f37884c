package holidays

import "time"

// fallbackHoliday is a fixed month/day national holiday, applied to every
// year. The remote holiday calendar supplements this list with movable dates;
// the table keeps the system correct when the remote source is unreachable.
type fallbackHoliday struct {
	Month time.Month
	Day   int
	Name  string
}

var fallbackTable = []fallbackHoliday{
	{time.January, 1, "New Year's Day"},
	{time.February, 25, "EDSA People Power Anniversary"},
	{time.April, 9, "Araw ng Kagitingan"},
	{time.May, 1, "Labor Day"},
	{time.June, 12, "Independence Day"},
	{time.August, 21, "Ninoy Aquino Day"},
	{time.November, 1, "All Saints' Day"},
	{time.November, 30, "Bonifacio Day"},
	{time.December, 8, "Feast of the Immaculate Conception"},
	{time.December, 25, "Christmas Day"},
	{time.December, 30, "Rizal Day"},
	{time.December, 31, "New Year's Eve"},
}

func fallbackMatch(month time.Month, day int) (string, bool) {
	for _, h := range fallbackTable {
		if h.Month == month && h.Day == day {
			return h.Name, true
		}
	}
	return "", false
}
