// Package progression maps accumulated experience to levels.
//
// The curve is quadratic: reaching level L takes 100*(L-1)^2 total XP, so
// level 2 needs 100 XP, level 3 needs 400, level 4 needs 900 and so on.
// Everything here is computed with integer arithmetic so that boundary
// values (exactly 100, 400, ...) land on the higher level.
package progression

import (
	"math"

	"github.com/dukerupert/questboard/internal/model"
)

const xpPerLevelUnit = 100

// Info describes where a total XP value sits on the level curve.
type Info struct {
	Level              int     `json:"level"`
	CurrentLevelXP     int     `json:"current_level_xp"`
	NextLevelXP        int     `json:"next_level_xp"`
	ProgressPercentage float64 `json:"progress_percentage"`
	XPToNextLevel      int     `json:"xp_to_next_level"`
}

// LevelUp is the result of comparing two XP totals.
type LevelUp struct {
	LeveledUp     bool `json:"leveled_up"`
	PreviousLevel int  `json:"previous_level"`
	NewLevel      int  `json:"new_level"`
}

// ThresholdForLevel returns the total XP required to reach level.
func ThresholdForLevel(level int) int {
	if level <= 1 {
		return 0
	}
	n := level - 1
	return xpPerLevelUnit * n * n
}

// Level returns floor(sqrt(xp/100)) + 1. Negative XP counts as zero.
func Level(xp int) int {
	if xp < 0 {
		xp = 0
	}
	return isqrt(xp/xpPerLevelUnit) + 1
}

// LevelInfo returns the level, band thresholds and progress for xp.
func LevelInfo(xp int) Info {
	if xp < 0 {
		xp = 0
	}
	level := Level(xp)
	current := ThresholdForLevel(level)
	next := ThresholdForLevel(level + 1)

	pct := float64(xp-current) / float64(next-current) * 100
	if pct > 100 {
		pct = 100
	}

	return Info{
		Level:              level,
		CurrentLevelXP:     current,
		NextLevelXP:        next,
		ProgressPercentage: pct,
		XPToNextLevel:      max(0, next-xp),
	}
}

// XPForDifficulty returns the experience awarded for approving a chore of
// the given difficulty. Unknown values earn the easy amount.
func XPForDifficulty(d model.Difficulty) int {
	switch d {
	case model.DifficultyMedium:
		return 25
	case model.DifficultyHard:
		return 50
	default:
		return 10
	}
}

// CheckLevelUp compares the levels for prevXP and newXP. Both are derived
// from the formula, so any delta (including corrections downwards) is safe.
func CheckLevelUp(prevXP, newXP int) LevelUp {
	prev := Level(prevXP)
	next := Level(newXP)
	return LevelUp{
		LeveledUp:     next > prev,
		PreviousLevel: prev,
		NewLevel:      next,
	}
}

// isqrt returns floor(sqrt(n)) for n >= 0.
func isqrt(n int) int {
	r := int(math.Sqrt(float64(n)))
	for r*r > n {
		r--
	}
	for (r+1)*(r+1) <= n {
		r++
	}
	return r
}
