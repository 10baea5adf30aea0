// Package streak derives daily-activity streaks for kids.
package streak

import "time"

// State is the persisted streak counters for one kid.
type State struct {
	Current      int
	Longest      int
	LastActivity *time.Time
}

// IsActive reports whether the last activity happened on the same calendar
// day as now, in now's location.
func IsActive(lastActivity *time.Time, now time.Time) bool {
	if lastActivity == nil {
		return false
	}
	return daysBetween(*lastActivity, now) == 0
}

// Record applies a qualifying activity at the given time. Activity on the
// same day leaves the counters alone, activity on the following day extends
// the streak, anything else starts a new streak of one. Activity older than
// the recorded last activity is ignored.
func Record(s State, activity time.Time) State {
	next := s
	if s.LastActivity == nil {
		next.Current = 1
	} else {
		switch gap := daysBetween(*s.LastActivity, activity); {
		case gap < 0:
			return normalize(s)
		case gap == 0:
			if next.Current < 1 {
				next.Current = 1
			}
		case gap == 1:
			next.Current++
		default:
			next.Current = 1
		}
	}
	a := activity
	next.LastActivity = &a
	return normalize(next)
}

// Current returns the streak to display at now. A streak whose last activity
// is older than yesterday has lapsed and reads as zero.
func Current(s State, now time.Time) int {
	if s.LastActivity == nil {
		return 0
	}
	if daysBetween(*s.LastActivity, now) > 1 {
		return 0
	}
	return s.Current
}

func normalize(s State) State {
	if s.Current < 0 {
		s.Current = 0
	}
	if s.Longest < s.Current {
		s.Longest = s.Current
	}
	return s
}

// daysBetween counts calendar days from a to b, using b's location for both.
func daysBetween(a, b time.Time) int {
	a = a.In(b.Location())
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}
