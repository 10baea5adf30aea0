// Package chore implements the quest lifecycle: pending -> completed ->
// approved, with the XP and points award on approval.
package chore

import (
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/questboard/internal/model"
	"github.com/dukerupert/questboard/internal/progression"
	"github.com/dukerupert/questboard/internal/streak"
)

// ErrInvalidTransition is returned when a chore is not in the state the
// requested transition starts from.
var ErrInvalidTransition = errors.New("invalid status transition")

// TransitionError carries the attempted transition. It unwraps to
// ErrInvalidTransition.
type TransitionError struct {
	ChoreID int64
	From    model.Status
	To      model.Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("chore %d: cannot move from %q to %q", e.ChoreID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// Award is what a kid earned from one approval. A zero Award means the chore
// had nobody assigned.
type Award struct {
	KidID   int64               `json:"kid_id,omitempty"`
	KidName string              `json:"kid_name,omitempty"`
	XP      int                 `json:"xp"`
	Points  int                 `json:"points"`
	PrevXP  int                 `json:"prev_xp"`
	NewXP   int                 `json:"new_xp"`
	LevelUp progression.LevelUp `json:"level_up"`
}

// Credited reports whether the award went to a kid.
func (a Award) Credited() bool {
	return a.KidID != 0
}

// MarkDone moves a pending chore to completed. No reward is given yet.
func MarkDone(c *model.Chore, now time.Time) error {
	if c.Status != model.StatusPending {
		return &TransitionError{ChoreID: c.ID, From: c.Status, To: model.StatusCompleted}
	}
	c.Status = model.StatusCompleted
	c.UpdatedAt = now
	return nil
}

// Approve moves a completed chore to approved and credits the assignee.
// kid must be the chore's assignee, or nil when the chore is unassigned.
// On error neither c nor kid is modified.
func Approve(c *model.Chore, kid *model.Kid, now time.Time) (Award, error) {
	if c.Status != model.StatusCompleted {
		return Award{}, &TransitionError{ChoreID: c.ID, From: c.Status, To: model.StatusApproved}
	}
	if kid != nil && (c.AssignedTo == nil || *c.AssignedTo != kid.ID) {
		return Award{}, fmt.Errorf("chore %d: kid %d is not the assignee", c.ID, kid.ID)
	}

	c.Status = model.StatusApproved
	c.UpdatedAt = now

	if c.AssignedTo == nil || kid == nil {
		return Award{}, nil
	}

	xp := progression.XPForDifficulty(c.Difficulty)
	prev := kid.TotalXP
	kid.TotalXP += xp
	kid.Points += c.Points

	s := streak.Record(streak.State{
		Current:      kid.CurrentStreak,
		Longest:      kid.LongestStreak,
		LastActivity: kid.LastActivityDate,
	}, now)
	kid.CurrentStreak = s.Current
	kid.LongestStreak = s.Longest
	kid.LastActivityDate = s.LastActivity
	kid.UpdatedAt = now

	return Award{
		KidID:   kid.ID,
		KidName: kid.Name,
		XP:      xp,
		Points:  c.Points,
		PrevXP:  prev,
		NewXP:   kid.TotalXP,
		LevelUp: progression.CheckLevelUp(prev, kid.TotalXP),
	}, nil
}
