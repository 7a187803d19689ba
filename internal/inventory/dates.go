package inventory

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// SoonDays is the look-ahead window for "expires soon".
const SoonDays = 30

// DateOf truncates t to its calendar date in UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today returns the clock's current calendar date.
func Today(clock clockwork.Clock) time.Time {
	return DateOf(clock.Now())
}

func AddDays(date time.Time, days int) time.Time {
	return DateOf(date).AddDate(0, 0, days)
}

// DaysBetween returns the number of whole days from a to b (negative when b is earlier).
func DaysBetween(a, b time.Time) int {
	return int(DateOf(b).Sub(DateOf(a)).Hours() / 24)
}
