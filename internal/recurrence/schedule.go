// Package recurrence decides when recurring chore templates produce a fresh
// instance. The decision functions take "now" as an argument and hold no
// state; Scheduler is the periodic driver around them.
package recurrence

import (
	"time"

	"github.com/dukerupert/questboard/internal/model"
)

// ShouldCreateInstance reports whether a recurring chore last updated at
// lastUpdatedAt is due for a new instance at now. Only calendar dates are
// compared, in now's location.
func ShouldCreateInstance(c model.Chore, lastUpdatedAt, now time.Time) bool {
	if !c.IsRecurring() {
		return false
	}

	last := startOfDay(lastUpdatedAt.In(now.Location()))
	today := startOfDay(now)

	switch Pattern(c.RecurrencePattern) {
	case Daily:
		return last.Before(today)
	case Weekly:
		weekAgo := today.AddDate(0, 0, -7)
		return !last.After(weekAgo)
	}
	return false
}

// NextDueDate returns the due date for an instance created at now, or nil
// when the pattern does not recur. The result is a calendar date at UTC
// midnight.
func NextDueDate(p Pattern, now time.Time) *time.Time {
	days := p.period()
	if days == 0 {
		return nil
	}
	d := now.AddDate(0, 0, days)
	due := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	return &due
}

// NewInstance builds the pending chore materialized from template at now.
func NewInstance(template model.Chore, now time.Time) model.Chore {
	templateID := template.ID
	return model.Chore{
		FamilyID:          template.FamilyID,
		TemplateID:        &templateID,
		Title:             template.Title,
		Description:       template.Description,
		Points:            template.Points,
		AssignedTo:        template.AssignedTo,
		DueDate:           NextDueDate(Pattern(template.RecurrencePattern), now),
		Difficulty:        template.Difficulty,
		Status:            model.StatusPending,
		RecurrencePattern: template.RecurrencePattern,
	}
}

// Grouped splits chores by recurrence for the manager view.
type Grouped struct {
	Daily   []model.Chore `json:"daily"`
	Weekly  []model.Chore `json:"weekly"`
	OneTime []model.Chore `json:"one_time"`
}

func GroupByRecurrence(chores []model.Chore) Grouped {
	var g Grouped
	for _, c := range chores {
		switch Pattern(c.RecurrencePattern) {
		case Daily:
			g.Daily = append(g.Daily, c)
		case Weekly:
			g.Weekly = append(g.Weekly, c)
		default:
			if !c.IsRecurring() {
				g.OneTime = append(g.OneTime, c)
			}
		}
	}
	return g
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
