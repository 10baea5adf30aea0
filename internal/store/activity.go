package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/dukerupert/questboard/internal/model"
)

// Activity returns the kid's most recent approvals, badges and redemptions,
// newest first.
func (s *KidStore) Activity(ctx context.Context, kidID int64, limit int) ([]model.Activity, error) {
	var out []model.Activity

	rows, err := s.q.QueryContext(ctx,
		`SELECT COALESCE(c.title, 'Deleted quest'), a.xp_earned, a.points_earned, a.approved_at
		 FROM chore_approvals a LEFT JOIN chores c ON c.id = a.chore_id
		 WHERE a.kid_id = ? ORDER BY a.approved_at DESC LIMIT ?`, kidID, limit)
	if err != nil {
		return nil, fmt.Errorf("list approvals: %w", err)
	}
	for rows.Next() {
		a := model.Activity{Type: model.ActivityChoreApproved}
		if err := rows.Scan(&a.Description, &a.XPEarned, &a.PointsEarned, &a.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan approval: %w", err)
		}
		out = append(out, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.q.QueryContext(ctx,
		`SELECT b.name, kb.earned_at FROM kid_badges kb JOIN badges b ON b.id = kb.badge_id
		 WHERE kb.kid_id = ? ORDER BY kb.earned_at DESC LIMIT ?`, kidID, limit)
	if err != nil {
		return nil, fmt.Errorf("list badge activity: %w", err)
	}
	for rows.Next() {
		a := model.Activity{Type: model.ActivityBadgeEarned}
		if err := rows.Scan(&a.Description, &a.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan badge activity: %w", err)
		}
		out = append(out, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.q.QueryContext(ctx,
		`SELECT COALESCE(r.title, 'Deleted reward'), rr.points_spent, rr.redeemed_at
		 FROM reward_redemptions rr LEFT JOIN rewards r ON r.id = rr.reward_id
		 WHERE rr.kid_id = ? ORDER BY rr.redeemed_at DESC LIMIT ?`, kidID, limit)
	if err != nil {
		return nil, fmt.Errorf("list redemptions: %w", err)
	}
	for rows.Next() {
		a := model.Activity{Type: model.ActivityRewardRedeemed}
		if err := rows.Scan(&a.Description, &a.PointsSpent, &a.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan redemption: %w", err)
		}
		out = append(out, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
