package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRewardCRUD(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	fam, _ := seedFamily(t, s)

	r, err := s.Rewards.Create(ctx, fam.ID, "Ice cream", 50, "🍦")
	if err != nil {
		t.Fatalf("create reward: %v", err)
	}
	if r.Title != "Ice cream" || r.Cost != 50 {
		t.Errorf("reward = %+v", r)
	}
	s.Rewards.Create(ctx, fam.ID, "Sticker", 5, "")

	rewards, err := s.Rewards.ListByFamily(ctx, fam.ID)
	if err != nil {
		t.Fatalf("list rewards: %v", err)
	}
	if len(rewards) != 2 || rewards[0].Title != "Sticker" {
		t.Errorf("rewards = %+v, want cheapest first", rewards)
	}

	if err := s.Rewards.Delete(ctx, r.ID); err != nil {
		t.Fatalf("delete reward: %v", err)
	}
	if got, _ := s.Rewards.GetByID(ctx, r.ID); got != nil {
		t.Error("expected nil after delete")
	}
}

func TestRewardRedeem(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	fam, kid := seedFamily(t, s)
	now := time.Now()

	kid.Points = 60
	kid.TotalXP = 200
	kid.UpdatedAt = now
	if err := s.Kids.SaveProgress(ctx, *kid); err != nil {
		t.Fatalf("save progress: %v", err)
	}
	r, _ := s.Rewards.Create(ctx, fam.ID, "Movie night", 50, "")

	red, err := s.Rewards.Redeem(ctx, r.ID, kid.ID, now)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if red.PointsSpent != 50 {
		t.Errorf("points spent = %d, want 50", red.PointsSpent)
	}

	got, _ := s.Kids.GetByID(ctx, kid.ID)
	if got.Points != 10 {
		t.Errorf("points = %d, want 10", got.Points)
	}
	if got.TotalXP != 200 {
		t.Errorf("total xp = %d, redeeming must not touch XP", got.TotalXP)
	}

	_, err = s.Rewards.Redeem(ctx, r.ID, kid.ID, now)
	if !errors.Is(err, ErrInsufficientPoints) {
		t.Errorf("err = %v, want ErrInsufficientPoints", err)
	}

	_, err = s.Rewards.Redeem(ctx, 999, kid.ID, now)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestRewardRedeemOtherFamily(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	_, kid := seedFamily(t, s)
	now := time.Now()

	kid.Points = 100
	kid.UpdatedAt = now
	if err := s.Kids.SaveProgress(ctx, *kid); err != nil {
		t.Fatalf("save progress: %v", err)
	}
	other, err := s.Families.Create(ctx, "Nguyen")
	if err != nil {
		t.Fatalf("create family: %v", err)
	}
	r, _ := s.Rewards.Create(ctx, other.ID, "Pizza night", 30, "")

	_, err = s.Rewards.Redeem(ctx, r.ID, kid.ID, now)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}

	got, _ := s.Kids.GetByID(ctx, kid.ID)
	if got.Points != 100 {
		t.Errorf("points = %d, want 100 untouched", got.Points)
	}

	_, err = s.Rewards.Redeem(ctx, r.ID, 999, now)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("missing kid: err = %v, want ErrNotFound", err)
	}
}
