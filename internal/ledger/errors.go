package ledger

import "errors"

var (
	// ErrNoSlots means at least one category had no remaining capacity, so
	// the whole cross-category decrement was rejected before any write.
	ErrNoSlots = errors.New("ledger: no slots left")

	// ErrHolidayDate rejects bookings on holidays outright.
	ErrHolidayDate = errors.New("ledger: date is a holiday")

	// ErrInvalidDate rejects bookings on past, weekend, or beyond-window
	// dates that should never have been offered.
	ErrInvalidDate = errors.New("ledger: not a bookable date")
)
