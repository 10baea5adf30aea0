package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/questboard/internal/model"
)

type RewardStore struct {
	q  querier
	db *sql.DB
}

const rewardCols = `id, family_id, title, cost, icon, created_at`

func scanReward(sc scanner) (*model.Reward, error) {
	var r model.Reward
	if err := sc.Scan(&r.ID, &r.FamilyID, &r.Title, &r.Cost, &r.Icon, &r.CreatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *RewardStore) Create(ctx context.Context, familyID int64, title string, cost int, icon string) (*model.Reward, error) {
	result, err := s.q.ExecContext(ctx,
		`INSERT INTO rewards (family_id, title, cost, icon) VALUES (?, ?, ?, ?)`,
		familyID, title, cost, icon,
	)
	if err != nil {
		return nil, fmt.Errorf("insert reward: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *RewardStore) GetByID(ctx context.Context, id int64) (*model.Reward, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+rewardCols+` FROM rewards WHERE id = ?`, id)
	r, err := scanReward(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reward: %w", err)
	}
	return r, nil
}

func (s *RewardStore) ListByFamily(ctx context.Context, familyID int64) ([]model.Reward, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+rewardCols+` FROM rewards WHERE family_id = ? ORDER BY cost ASC, title ASC`, familyID)
	if err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}
	defer rows.Close()

	var rewards []model.Reward
	for rows.Next() {
		r, err := scanReward(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reward: %w", err)
		}
		rewards = append(rewards, *r)
	}
	return rewards, rows.Err()
}

func (s *RewardStore) Delete(ctx context.Context, id int64) error {
	result, err := s.q.ExecContext(ctx, `DELETE FROM rewards WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete reward: %w", err)
	}
	return expectOne(result, "reward", id)
}

// Redeem spends the reward's cost from the kid's points and records the
// redemption. XP is never touched.
func (s *RewardStore) Redeem(ctx context.Context, rewardID, kidID int64, now time.Time) (*model.RewardRedemption, error) {
	var red *model.RewardRedemption
	err := atomically(ctx, s.db, s.q, func(q querier) error {
		reward, err := (&RewardStore{q: q}).GetByID(ctx, rewardID)
		if err != nil {
			return err
		}
		if reward == nil {
			return fmt.Errorf("reward %d: %w", rewardID, ErrNotFound)
		}
		kid, err := (&KidStore{q: q}).GetByID(ctx, kidID)
		if err != nil {
			return err
		}
		if kid == nil {
			return fmt.Errorf("kid %d: %w", kidID, ErrNotFound)
		}
		if kid.FamilyID != reward.FamilyID {
			return fmt.Errorf("reward %d in kid %d's family: %w", rewardID, kidID, ErrNotFound)
		}
		if err := (&KidStore{q: q}).SpendPoints(ctx, kidID, reward.Cost, now); err != nil {
			return err
		}
		result, err := q.ExecContext(ctx,
			`INSERT INTO reward_redemptions (reward_id, kid_id, points_spent, redeemed_at) VALUES (?, ?, ?, ?)`,
			rewardID, kidID, reward.Cost, now.UTC(),
		)
		if err != nil {
			return fmt.Errorf("insert redemption: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		red = &model.RewardRedemption{
			ID:          id,
			RewardID:    rewardID,
			KidID:       kidID,
			PointsSpent: reward.Cost,
			RedeemedAt:  now.UTC(),
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redeem reward: %w", err)
	}
	return red, nil
}
