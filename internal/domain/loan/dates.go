package loan

import (
	"math"
	"time"
)

// NormalizeDate returns midnight UTC of t's UTC calendar day.
func NormalizeDate(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func endOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC)
}

func firstOfNextMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, time.UTC)
}

// TermEndDate is the last calendar day of the month termMonths-1 months after start.
func TermEndDate(start time.Time, termMonths int) time.Time {
	s := NormalizeDate(start)
	return time.Date(s.Year(), s.Month()+time.Month(termMonths), 0, 0, 0, 0, 0, time.UTC)
}

// daysInPeriod counts both endpoints.
func daysInPeriod(start, end time.Time) int {
	diff := end.Sub(start)
	if diff < 0 {
		diff = -diff
	}
	return int(math.Ceil(diff.Hours()/24)) + 1
}
