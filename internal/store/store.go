package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInsufficientPoints = errors.New("insufficient points")
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface{ Scan(...any) error }

// Store bundles the entity stores over one connection or transaction.
type Store struct {
	db       *sql.DB
	Families *FamilyStore
	Kids     *KidStore
	Chores   *ChoreStore
	Rewards  *RewardStore
	Badges   *BadgeStore
}

func New(db *sql.DB) *Store {
	s := bind(db)
	s.db = db
	s.Chores.db = db
	s.Rewards.db = db
	return s
}

func bind(q querier) *Store {
	return &Store{
		Families: &FamilyStore{q: q},
		Kids:     &KidStore{q: q},
		Chores:   &ChoreStore{q: q},
		Rewards:  &RewardStore{q: q},
		Badges:   &BadgeStore{q: q},
	}
}

// InTx runs fn against stores bound to a single transaction. The
// transaction commits when fn returns nil and rolls back otherwise.
func (s *Store) InTx(ctx context.Context, fn func(tx *Store) error) error {
	if s.db == nil {
		return fmt.Errorf("nested transaction")
	}
	return inTx(ctx, s.db, func(tx *sql.Tx) error {
		return fn(bind(tx))
	})
}

func inTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// atomically runs fn in a new transaction when db is set, or directly on q
// when the caller is already inside one.
func atomically(ctx context.Context, db *sql.DB, q querier, fn func(q querier) error) error {
	if db == nil {
		return fn(q)
	}
	return inTx(ctx, db, func(tx *sql.Tx) error { return fn(tx) })
}

func nullInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func int64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func nullTime(p *time.Time) sql.NullTime {
	if p == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: p.UTC(), Valid: true}
}

func timePtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	v := n.Time
	return &v
}

const dateLayout = "2006-01-02"

func nullDate(p *time.Time) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: p.Format(dateLayout), Valid: true}
}

func parseDate(n sql.NullString) (*time.Time, error) {
	if !n.Valid || n.String == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, n.String)
	if err != nil {
		return nil, fmt.Errorf("parse date %q: %w", n.String, err)
	}
	return &t, nil
}
