package model

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusApproved  Status = "approved"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusApproved:
		return true
	}
	return false
}

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Chore is a quest. A chore with a non-empty RecurrencePattern and no
// TemplateID is a recurring template; instances generated from it carry the
// template's ID.
type Chore struct {
	ID                int64      `json:"id"`
	FamilyID          int64      `json:"family_id"`
	TemplateID        *int64     `json:"template_id"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	Points            int        `json:"points"`
	AssignedTo        *int64     `json:"assigned_to"`
	DueDate           *time.Time `json:"due_date"`
	Difficulty        Difficulty `json:"difficulty"`
	Status            Status     `json:"status"`
	RecurrencePattern string     `json:"recurrence_pattern"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// IsRecurring reports whether the chore has a recurrence pattern.
func (c Chore) IsRecurring() bool {
	return c.RecurrencePattern != ""
}

// IsTemplate reports whether the chore is a recurring template rather than a
// generated instance.
func (c Chore) IsTemplate() bool {
	return c.IsRecurring() && c.TemplateID == nil
}

type ChoreApproval struct {
	ID           int64     `json:"id"`
	ChoreID      int64     `json:"chore_id"`
	KidID        int64     `json:"kid_id"`
	XPEarned     int       `json:"xp_earned"`
	PointsEarned int       `json:"points_earned"`
	ApprovedAt   time.Time `json:"approved_at"`
}
