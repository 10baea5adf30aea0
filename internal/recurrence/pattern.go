package recurrence

import (
	"fmt"
	"strings"
)

// Pattern is how often a recurring chore comes back. The zero value means
// the chore does not recur.
type Pattern string

const (
	None   Pattern = ""
	Daily  Pattern = "daily"
	Weekly Pattern = "weekly"
)

var patternLabels = map[Pattern]string{
	Daily:  "Daily",
	Weekly: "Weekly",
}

// ParsePattern normalizes user input. Empty input (or "none") yields None.
func ParsePattern(s string) (Pattern, error) {
	switch p := Pattern(strings.ToLower(strings.TrimSpace(s))); p {
	case None, "none":
		return None, nil
	case Daily, Weekly:
		return p, nil
	default:
		return None, fmt.Errorf("unknown recurrence pattern: %q", s)
	}
}

// Label returns a short human-readable name for the pattern.
func (p Pattern) Label() string {
	if l, ok := patternLabels[p]; ok {
		return l
	}
	return "One-time"
}

// period is the number of calendar days between instances, 0 if unknown.
func (p Pattern) period() int {
	switch p {
	case Daily:
		return 1
	case Weekly:
		return 7
	}
	return 0
}
