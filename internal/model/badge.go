package model

import "time"

type RequirementType string

const (
	RequirementChoresCompleted RequirementType = "chores_completed"
	RequirementTotalXP         RequirementType = "total_xp"
	RequirementStreak          RequirementType = "streak"
	RequirementLevel           RequirementType = "level"
)

type Badge struct {
	ID               int64           `json:"id"`
	Name             string          `json:"name"`
	Description      string          `json:"description"`
	Icon             string          `json:"icon"`
	RequirementType  RequirementType `json:"requirement_type"`
	RequirementValue int             `json:"requirement_value"`
}

type KidBadge struct {
	ID       int64     `json:"id"`
	KidID    int64     `json:"kid_id"`
	BadgeID  int64     `json:"badge_id"`
	EarnedAt time.Time `json:"earned_at"`
	Badge    *Badge    `json:"badge,omitempty"`
}
