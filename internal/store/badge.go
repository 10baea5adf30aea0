package store

import (
	"context"
	"fmt"
	"time"

	"github.com/dukerupert/questboard/internal/model"
)

type BadgeStore struct {
	q querier
}

func (s *BadgeStore) ListCatalog(ctx context.Context) ([]model.Badge, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, name, description, icon, requirement_type, requirement_value FROM badges ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list badges: %w", err)
	}
	defer rows.Close()

	var badges []model.Badge
	for rows.Next() {
		var b model.Badge
		if err := rows.Scan(&b.ID, &b.Name, &b.Description, &b.Icon, &b.RequirementType, &b.RequirementValue); err != nil {
			return nil, fmt.Errorf("scan badge: %w", err)
		}
		badges = append(badges, b)
	}
	return badges, rows.Err()
}

func (s *BadgeStore) ListEarned(ctx context.Context, kidID int64) ([]model.KidBadge, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT kb.id, kb.kid_id, kb.badge_id, kb.earned_at,
		        b.id, b.name, b.description, b.icon, b.requirement_type, b.requirement_value
		 FROM kid_badges kb JOIN badges b ON b.id = kb.badge_id
		 WHERE kb.kid_id = ?
		 ORDER BY kb.earned_at ASC, kb.id ASC`, kidID)
	if err != nil {
		return nil, fmt.Errorf("list earned badges: %w", err)
	}
	defer rows.Close()

	var earned []model.KidBadge
	for rows.Next() {
		var kb model.KidBadge
		var b model.Badge
		err := rows.Scan(&kb.ID, &kb.KidID, &kb.BadgeID, &kb.EarnedAt,
			&b.ID, &b.Name, &b.Description, &b.Icon, &b.RequirementType, &b.RequirementValue)
		if err != nil {
			return nil, fmt.Errorf("scan earned badge: %w", err)
		}
		kb.Badge = &b
		earned = append(earned, kb)
	}
	return earned, rows.Err()
}

// Award records that the kid earned the badge. Awarding twice is a no-op.
func (s *BadgeStore) Award(ctx context.Context, kidID, badgeID int64, now time.Time) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT OR IGNORE INTO kid_badges (kid_id, badge_id, earned_at) VALUES (?, ?, ?)`,
		kidID, badgeID, now.UTC(),
	)
	if err != nil {
		return fmt.Errorf("award badge: %w", err)
	}
	return nil
}
