package chore

import (
	"time"

	"github.com/dukerupert/questboard/internal/model"
)

// ApprovedVisibleFor is how long an approved chore stays in active views.
const ApprovedVisibleFor = 24 * time.Hour

// IsActive reports whether c belongs in an active view at now. Approved
// chores drop out once more than ApprovedVisibleFor has passed since their
// last update; nothing is deleted.
func IsActive(c model.Chore, now time.Time) bool {
	switch c.Status {
	case model.StatusPending, model.StatusCompleted:
		return true
	case model.StatusApproved:
		return now.Sub(c.UpdatedAt) <= ApprovedVisibleFor
	}
	return false
}

// FilterActive returns the chores that are active at now, preserving order.
func FilterActive(chores []model.Chore, now time.Time) []model.Chore {
	active := make([]model.Chore, 0, len(chores))
	for _, c := range chores {
		if IsActive(c, now) {
			active = append(active, c)
		}
	}
	return active
}
