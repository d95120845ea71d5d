package domain

import "time"

// TimeWindow is the fixed enumeration of collection windows, resolved to a
// concrete start instant at call time.
type TimeWindow string

const (
	WindowLastMonth    TimeWindow = "last_month"
	WindowLast3Months  TimeWindow = "last_3_months"
	WindowLast6Months  TimeWindow = "last_6_months"
	WindowLastYear     TimeWindow = "last_year"
	WindowAllAvailable TimeWindow = "all_available"
)

func (w TimeWindow) Valid() bool {
	switch w {
	case WindowLastMonth, WindowLast3Months, WindowLast6Months, WindowLastYear, WindowAllAvailable:
		return true
	}
	return false
}

// Start resolves the window to its start instant relative to now. For
// WindowAllAvailable ok is false: the adapter must discover the account's
// archive index or creation date instead.
func (w TimeWindow) Start(now time.Time) (start time.Time, ok bool) {
	switch w {
	case WindowLastMonth:
		return now.AddDate(0, 0, -30), true
	case WindowLast3Months:
		return now.AddDate(0, 0, -90), true
	case WindowLast6Months:
		return now.AddDate(0, 0, -180), true
	case WindowLastYear:
		return now.AddDate(0, 0, -365), true
	default:
		return time.Time{}, false
	}
}
