// Package quest runs the chore workflows against the store: lifecycle
// transitions with their rewards, badge awards, redemptions and the realtime
// events dashboards listen for.
package quest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/questboard/internal/badge"
	"github.com/dukerupert/questboard/internal/chore"
	"github.com/dukerupert/questboard/internal/model"
	"github.com/dukerupert/questboard/internal/notify"
	"github.com/dukerupert/questboard/internal/progression"
	"github.com/dukerupert/questboard/internal/recurrence"
	"github.com/dukerupert/questboard/internal/store"
	"github.com/dukerupert/questboard/internal/streak"
	"github.com/dukerupert/questboard/internal/websocket"
)

var ErrInvalidInput = errors.New("invalid input")

// LevelUps shows level-up notifications. Satisfied by *notify.Notifier.
type LevelUps interface {
	Show(ev notify.LevelUp) notify.LevelUp
}

type Service struct {
	store    *store.Store
	events   notify.Broadcaster
	levelUps LevelUps
	now      func() time.Time
	logger   *slog.Logger
}

// NewService wires the workflows. now must return times in the household's
// time zone; it defaults to time.Now.
func NewService(st *store.Store, events notify.Broadcaster, levelUps LevelUps, now func() time.Time, logger *slog.Logger) *Service {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    st,
		events:   events,
		levelUps: levelUps,
		now:      now,
		logger:   logger,
	}
}

func (s *Service) publish(entity, action string, familyID, id int64, extra map[string]any) {
	if s.events == nil {
		return
	}
	s.events.Broadcast(websocket.NewMessage(entity, action, familyID, id, extra))
}

func notFound(entity string, id int64) error {
	return fmt.Errorf("%s %d: %w", entity, id, store.ErrNotFound)
}

func validateChore(c model.Chore) error {
	if c.Title == "" {
		return fmt.Errorf("title is required: %w", ErrInvalidInput)
	}
	if c.Difficulty != "" && !c.Difficulty.Valid() {
		return fmt.Errorf("difficulty %q: %w", c.Difficulty, ErrInvalidInput)
	}
	if c.Status != "" && !c.Status.Valid() {
		return fmt.Errorf("status %q: %w", c.Status, ErrInvalidInput)
	}
	if _, err := recurrence.ParsePattern(c.RecurrencePattern); err != nil {
		return fmt.Errorf("%w: %w", err, ErrInvalidInput)
	}
	return nil
}

// CreateChore stores a new pending chore.
func (s *Service) CreateChore(ctx context.Context, c model.Chore) (*model.Chore, error) {
	if err := validateChore(c); err != nil {
		return nil, err
	}
	p, _ := recurrence.ParsePattern(c.RecurrencePattern)
	c.RecurrencePattern = string(p)
	c.Status = model.StatusPending
	c.TemplateID = nil

	created, err := s.store.Chores.Create(ctx, c, s.now())
	if err != nil {
		return nil, fmt.Errorf("create chore: %w", err)
	}
	s.publish("chore", "created", created.FamilyID, created.ID, nil)
	return created, nil
}

// EditChore overwrites a chore's editable fields. Status is taken as given;
// edits are not routed through the lifecycle.
func (s *Service) EditChore(ctx context.Context, c model.Chore) (*model.Chore, error) {
	existing, err := s.store.Chores.GetByID(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("edit chore: %w", err)
	}
	if existing == nil {
		return nil, notFound("chore", c.ID)
	}
	if c.Status == "" {
		c.Status = existing.Status
	}
	if err := validateChore(c); err != nil {
		return nil, err
	}
	p, _ := recurrence.ParsePattern(c.RecurrencePattern)
	c.RecurrencePattern = string(p)

	updated, err := s.store.Chores.Update(ctx, c, s.now())
	if err != nil {
		return nil, fmt.Errorf("edit chore: %w", err)
	}
	s.publish("chore", "updated", updated.FamilyID, updated.ID, nil)
	return updated, nil
}

func (s *Service) DeleteChore(ctx context.Context, id int64) error {
	c, err := s.store.Chores.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("delete chore: %w", err)
	}
	if c == nil {
		return notFound("chore", id)
	}
	if err := s.store.Chores.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete chore: %w", err)
	}
	s.publish("chore", "deleted", c.FamilyID, id, nil)
	return nil
}

// Chores lists a family's chores. With activeOnly, approved chores older than
// a day are left out.
func (s *Service) Chores(ctx context.Context, familyID int64, activeOnly bool) ([]model.Chore, error) {
	chores, err := s.store.Chores.ListByFamily(ctx, familyID)
	if err != nil {
		return nil, err
	}
	if activeOnly {
		chores = chore.FilterActive(chores, s.now())
	}
	return chores, nil
}

// GroupedChores buckets a family's active chores by recurrence.
func (s *Service) GroupedChores(ctx context.Context, familyID int64) (recurrence.Grouped, error) {
	chores, err := s.Chores(ctx, familyID, true)
	if err != nil {
		return recurrence.Grouped{}, err
	}
	return recurrence.GroupByRecurrence(chores), nil
}

// MarkDone moves a pending chore to completed.
func (s *Service) MarkDone(ctx context.Context, id int64) (*model.Chore, error) {
	var c *model.Chore
	err := s.store.InTx(ctx, func(tx *store.Store) error {
		var err error
		if c, err = tx.Chores.GetByID(ctx, id); err != nil {
			return err
		}
		if c == nil {
			return notFound("chore", id)
		}
		if err := chore.MarkDone(c, s.now()); err != nil {
			return err
		}
		return tx.Chores.SaveStatus(ctx, *c)
	})
	if err != nil {
		return nil, fmt.Errorf("mark chore done: %w", err)
	}

	s.logger.Info("chore completed", "chore_id", c.ID, "family_id", c.FamilyID)
	s.publish("chore", "updated", c.FamilyID, c.ID, map[string]any{"status": c.Status})
	return c, nil
}

// ApprovalResult is the outcome of one approval.
type ApprovalResult struct {
	Chore        model.Chore     `json:"chore"`
	Award        chore.Award     `json:"award"`
	Kid          *model.Kid      `json:"kid,omitempty"`
	NewBadges    []model.Badge   `json:"new_badges"`
	Notification *notify.LevelUp `json:"notification,omitempty"`
}

// Approve moves a completed chore to approved and credits its assignee. The
// status change, the kid's rewards and streak, the approval record and any
// badges earned commit together or not at all.
func (s *Service) Approve(ctx context.Context, id int64) (*ApprovalResult, error) {
	now := s.now()
	res := &ApprovalResult{NewBadges: []model.Badge{}}

	err := s.store.InTx(ctx, func(tx *store.Store) error {
		c, err := tx.Chores.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if c == nil {
			return notFound("chore", id)
		}

		var kid *model.Kid
		if c.AssignedTo != nil {
			if kid, err = tx.Kids.GetByID(ctx, *c.AssignedTo); err != nil {
				return err
			}
		}

		award, err := chore.Approve(c, kid, now)
		if err != nil {
			return err
		}
		if err := tx.Chores.SaveStatus(ctx, *c); err != nil {
			return err
		}
		res.Chore = *c
		res.Award = award

		if !award.Credited() {
			return nil
		}
		if err := tx.Kids.SaveProgress(ctx, *kid); err != nil {
			return err
		}
		_, err = tx.Chores.RecordApproval(ctx, model.ChoreApproval{
			ChoreID:      c.ID,
			KidID:        kid.ID,
			XPEarned:     award.XP,
			PointsEarned: award.Points,
			ApprovedAt:   now,
		})
		if err != nil {
			return err
		}
		res.Kid = kid

		badges, err := awardBadges(ctx, tx, *kid, now)
		if err != nil {
			return err
		}
		res.NewBadges = badges
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("approve chore: %w", err)
	}

	c := res.Chore
	s.logger.Info("chore approved",
		"chore_id", c.ID,
		"family_id", c.FamilyID,
		"kid_id", res.Award.KidID,
		"xp", res.Award.XP,
		"points", res.Award.Points,
	)
	s.publish("chore", "updated", c.FamilyID, c.ID, map[string]any{"status": c.Status})

	if res.Award.Credited() {
		s.publish("kid", "updated", c.FamilyID, res.Award.KidID, map[string]any{
			"total_xp": res.Kid.TotalXP,
			"points":   res.Kid.Points,
			"streak":   res.Kid.CurrentStreak,
		})
		for _, b := range res.NewBadges {
			s.publish("badge", "earned", c.FamilyID, b.ID, map[string]any{
				"kid_id": res.Award.KidID,
				"name":   b.Name,
				"icon":   b.Icon,
			})
		}
	}

	if lu := res.Award.LevelUp; lu.LeveledUp && s.levelUps != nil {
		shown := s.levelUps.Show(notify.LevelUp{
			FamilyID:      c.FamilyID,
			KidID:         res.Award.KidID,
			KidName:       res.Award.KidName,
			PreviousLevel: lu.PreviousLevel,
			NewLevel:      lu.NewLevel,
			XPGained:      res.Award.XP,
			ShownAt:       now,
		})
		res.Notification = &shown
	}
	return res, nil
}

func awardBadges(ctx context.Context, tx *store.Store, kid model.Kid, now time.Time) ([]model.Badge, error) {
	catalog, err := tx.Badges.ListCatalog(ctx)
	if err != nil {
		return nil, err
	}
	held, err := tx.Badges.ListEarned(ctx, kid.ID)
	if err != nil {
		return nil, err
	}
	completed, err := tx.Chores.CountApprovals(ctx, kid.ID)
	if err != nil {
		return nil, err
	}

	earned := make(map[int64]bool, len(held))
	for _, kb := range held {
		earned[kb.BadgeID] = true
	}
	fresh := badge.Evaluate(catalog, earned, badge.StatsFor(kid, completed))
	for _, b := range fresh {
		if err := tx.Badges.Award(ctx, kid.ID, b.ID, now); err != nil {
			return nil, err
		}
	}
	if fresh == nil {
		fresh = []model.Badge{}
	}
	return fresh, nil
}

// Redeem spends a kid's points on a reward.
func (s *Service) Redeem(ctx context.Context, rewardID, kidID int64) (*model.RewardRedemption, *model.Kid, error) {
	red, err := s.store.Rewards.Redeem(ctx, rewardID, kidID, s.now())
	if err != nil {
		return nil, nil, err
	}
	kid, err := s.store.Kids.GetByID(ctx, kidID)
	if err != nil {
		return nil, nil, err
	}
	s.logger.Info("reward redeemed", "reward_id", rewardID, "kid_id", kidID, "points", red.PointsSpent)
	s.publish("reward", "redeemed", kid.FamilyID, rewardID, map[string]any{"kid_id": kid.ID})
	s.publish("kid", "updated", kid.FamilyID, kid.ID, map[string]any{"points": kid.Points})
	return red, kid, nil
}

// Progress is a kid's level and streak as shown on the dashboard.
type Progress struct {
	Kid           model.Kid        `json:"kid"`
	Level         progression.Info `json:"level"`
	Streak        int              `json:"streak"`
	LongestStreak int              `json:"longest_streak"`
	StreakActive  bool             `json:"streak_active"`
}

func (s *Service) Progress(ctx context.Context, kidID int64) (*Progress, error) {
	kid, err := s.store.Kids.GetByID(ctx, kidID)
	if err != nil {
		return nil, err
	}
	if kid == nil {
		return nil, notFound("kid", kidID)
	}
	now := s.now()
	st := streak.State{
		Current:      kid.CurrentStreak,
		Longest:      kid.LongestStreak,
		LastActivity: kid.LastActivityDate,
	}
	return &Progress{
		Kid:           *kid,
		Level:         progression.LevelInfo(kid.TotalXP),
		Streak:        streak.Current(st, now),
		LongestStreak: kid.LongestStreak,
		StreakActive:  streak.IsActive(kid.LastActivityDate, now),
	}, nil
}

// InstanceCreated announces a chore generated by the recurrence scheduler.
func (s *Service) InstanceCreated(c model.Chore) {
	s.publish("chore", "created", c.FamilyID, c.ID, map[string]any{"template_id": c.TemplateID})
}
