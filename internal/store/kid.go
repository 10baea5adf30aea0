package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/questboard/internal/model"
)

type KidStore struct {
	q querier
}

const kidCols = `id, family_id, name, avatar_url, points, total_xp, current_streak, longest_streak, last_activity_date, created_at, updated_at`

func scanKid(sc scanner) (*model.Kid, error) {
	var k model.Kid
	var last sql.NullTime
	err := sc.Scan(
		&k.ID, &k.FamilyID, &k.Name, &k.AvatarURL, &k.Points, &k.TotalXP,
		&k.CurrentStreak, &k.LongestStreak, &last, &k.CreatedAt, &k.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	k.LastActivityDate = timePtr(last)
	return &k, nil
}

func (s *KidStore) Create(ctx context.Context, familyID int64, name, avatarURL string) (*model.Kid, error) {
	result, err := s.q.ExecContext(ctx,
		`INSERT INTO kids (family_id, name, avatar_url) VALUES (?, ?, ?)`,
		familyID, name, avatarURL,
	)
	if err != nil {
		return nil, fmt.Errorf("insert kid: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *KidStore) GetByID(ctx context.Context, id int64) (*model.Kid, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+kidCols+` FROM kids WHERE id = ?`, id)
	k, err := scanKid(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get kid: %w", err)
	}
	return k, nil
}

func (s *KidStore) ListByFamily(ctx context.Context, familyID int64) ([]model.Kid, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+kidCols+` FROM kids WHERE family_id = ? ORDER BY name ASC`, familyID)
	if err != nil {
		return nil, fmt.Errorf("list kids: %w", err)
	}
	defer rows.Close()

	var kids []model.Kid
	for rows.Next() {
		k, err := scanKid(rows)
		if err != nil {
			return nil, fmt.Errorf("scan kid: %w", err)
		}
		kids = append(kids, *k)
	}
	return kids, rows.Err()
}

func (s *KidStore) Update(ctx context.Context, id int64, name, avatarURL string, now time.Time) (*model.Kid, error) {
	_, err := s.q.ExecContext(ctx,
		`UPDATE kids SET name = ?, avatar_url = ?, updated_at = ? WHERE id = ?`,
		name, avatarURL, now.UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update kid: %w", err)
	}
	return s.GetByID(ctx, id)
}

// SaveProgress writes the reward and streak counters of k.
func (s *KidStore) SaveProgress(ctx context.Context, k model.Kid) error {
	result, err := s.q.ExecContext(ctx,
		`UPDATE kids SET points = ?, total_xp = ?, current_streak = ?, longest_streak = ?, last_activity_date = ?, updated_at = ? WHERE id = ?`,
		k.Points, k.TotalXP, k.CurrentStreak, k.LongestStreak, nullTime(k.LastActivityDate), k.UpdatedAt.UTC(), k.ID,
	)
	if err != nil {
		return fmt.Errorf("save kid progress: %w", err)
	}
	return expectOne(result, "kid", k.ID)
}

// SpendPoints deducts amount from the kid's balance, failing with
// ErrInsufficientPoints when the balance is too low.
func (s *KidStore) SpendPoints(ctx context.Context, id int64, amount int, now time.Time) error {
	result, err := s.q.ExecContext(ctx,
		`UPDATE kids SET points = points - ?, updated_at = ? WHERE id = ? AND points >= ?`,
		amount, now.UTC(), id, amount,
	)
	if err != nil {
		return fmt.Errorf("spend points: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		k, err := s.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if k == nil {
			return fmt.Errorf("kid %d: %w", id, ErrNotFound)
		}
		return ErrInsufficientPoints
	}
	return nil
}

func (s *KidStore) Delete(ctx context.Context, id int64) error {
	result, err := s.q.ExecContext(ctx, `DELETE FROM kids WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete kid: %w", err)
	}
	return expectOne(result, "kid", id)
}

func expectOne(result sql.Result, entity string, id int64) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", entity, id, ErrNotFound)
	}
	return nil
}
