// Package badge decides which catalog badges a kid has newly earned.
package badge

import (
	"github.com/dukerupert/questboard/internal/model"
	"github.com/dukerupert/questboard/internal/progression"
)

// Stats is the kid progress the catalog thresholds are compared against.
type Stats struct {
	ChoresCompleted int
	TotalXP         int
	CurrentStreak   int
	LongestStreak   int
}

// StatsFor builds Stats from a kid record and its approved chore count.
func StatsFor(kid model.Kid, choresCompleted int) Stats {
	return Stats{
		ChoresCompleted: choresCompleted,
		TotalXP:         kid.TotalXP,
		CurrentStreak:   kid.CurrentStreak,
		LongestStreak:   kid.LongestStreak,
	}
}

// Meets reports whether stats satisfy b's requirement. Unknown requirement
// types are never met.
func Meets(b model.Badge, s Stats) bool {
	switch b.RequirementType {
	case model.RequirementChoresCompleted:
		return s.ChoresCompleted >= b.RequirementValue
	case model.RequirementTotalXP:
		return s.TotalXP >= b.RequirementValue
	case model.RequirementStreak:
		return s.LongestStreak >= b.RequirementValue
	case model.RequirementLevel:
		return progression.Level(s.TotalXP) >= b.RequirementValue
	}
	return false
}

// Evaluate returns the catalog badges that stats satisfy and that are not
// already in earned, in catalog order.
func Evaluate(catalog []model.Badge, earned map[int64]bool, s Stats) []model.Badge {
	var out []model.Badge
	for _, b := range catalog {
		if earned[b.ID] {
			continue
		}
		if Meets(b, s) {
			out = append(out, b)
		}
	}
	return out
}
