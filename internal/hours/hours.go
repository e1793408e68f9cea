package hours

import (
	"fmt"
	"time"
)

// Window is one open/close pair on a given day, expressed as hours of day.
//
// Rules:
// - Open == Close means the window is empty (always closed), not an error.
// - Close < Open wraps past midnight: open at 22 and close at 6 covers
//   22:00–23:59 and 00:00–05:59.
type Window struct {
	Open  int
	Close int
}

// Schedule maps a weekday to its open windows. A missing day is closed.
type Schedule map[time.Weekday][]Window

// Validate rejects out-of-range hours so a bad schedule fails at startup
// rather than silently closing the business.
func (s Schedule) Validate() error {
	for day, windows := range s {
		for _, w := range windows {
			if w.Open < 0 || w.Open > 23 || w.Close < 0 || w.Close > 23 {
				return fmt.Errorf("hours: %s window %d-%d out of range", day, w.Open, w.Close)
			}
		}
	}
	return nil
}

// Open reports whether at falls within the schedule, localized to loc.
// It is a pure function of its inputs; callers supply the clock.
func Open(at time.Time, loc *time.Location, s Schedule) bool {
	local := at.In(loc)
	h := local.Hour()

	for _, w := range s[local.Weekday()] {
		if within(h, w) {
			return true
		}
	}
	return false
}

func within(h int, w Window) bool {
	switch {
	case w.Open == w.Close:
		return false
	case w.Close < w.Open:
		return h >= w.Open || h < w.Close
	default:
		return h >= w.Open && h < w.Close
	}
}
