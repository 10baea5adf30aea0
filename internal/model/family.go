package model

import "time"

type Family struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Kid is a family member who completes quests. Points are spendable,
// TotalXP only ever grows and drives the level.
type Kid struct {
	ID               int64      `json:"id"`
	FamilyID         int64      `json:"family_id"`
	Name             string     `json:"name"`
	AvatarURL        string     `json:"avatar_url"`
	Points           int        `json:"points"`
	TotalXP          int        `json:"total_xp"`
	CurrentStreak    int        `json:"current_streak"`
	LongestStreak    int        `json:"longest_streak"`
	LastActivityDate *time.Time `json:"last_activity_date"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

type ActivityType string

const (
	ActivityChoreApproved  ActivityType = "chore_approved"
	ActivityBadgeEarned    ActivityType = "badge_earned"
	ActivityRewardRedeemed ActivityType = "reward_redeemed"
)

// Activity is one entry of a kid's timeline.
type Activity struct {
	Type         ActivityType `json:"activity_type"`
	Description  string       `json:"description"`
	XPEarned     int          `json:"xp_earned,omitempty"`
	PointsEarned int          `json:"points_earned,omitempty"`
	PointsSpent  int          `json:"points_spent,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}
