package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/questboard/internal/model"
)

type ChoreStore struct {
	q  querier
	db *sql.DB
}

const choreCols = `id, family_id, template_id, title, description, points, assigned_to, due_date, difficulty, status, recurrence_pattern, created_at, updated_at`

func scanChore(sc scanner) (*model.Chore, error) {
	var c model.Chore
	var templateID, assignedTo sql.NullInt64
	var dueDate sql.NullString
	err := sc.Scan(
		&c.ID, &c.FamilyID, &templateID, &c.Title, &c.Description, &c.Points,
		&assignedTo, &dueDate, &c.Difficulty, &c.Status, &c.RecurrencePattern,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.TemplateID = int64Ptr(templateID)
	c.AssignedTo = int64Ptr(assignedTo)
	if c.DueDate, err = parseDate(dueDate); err != nil {
		return nil, err
	}
	return &c, nil
}

func queryChores(ctx context.Context, q querier, query string, args ...any) ([]model.Chore, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chores []model.Chore
	for rows.Next() {
		c, err := scanChore(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chore: %w", err)
		}
		chores = append(chores, *c)
	}
	return chores, rows.Err()
}

func insertChore(ctx context.Context, q querier, c model.Chore, now time.Time) (int64, error) {
	if c.Status == "" {
		c.Status = model.StatusPending
	}
	if c.Difficulty == "" {
		c.Difficulty = model.DifficultyEasy
	}
	now = now.UTC()
	result, err := q.ExecContext(ctx,
		`INSERT INTO chores (family_id, template_id, title, description, points, assigned_to, due_date, difficulty, status, recurrence_pattern, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.FamilyID, nullInt64(c.TemplateID), c.Title, c.Description, c.Points,
		nullInt64(c.AssignedTo), nullDate(c.DueDate), c.Difficulty, c.Status,
		c.RecurrencePattern, now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("insert chore: %w", err)
	}
	return result.LastInsertId()
}

func getChore(ctx context.Context, q querier, id int64) (*model.Chore, error) {
	row := q.QueryRowContext(ctx, `SELECT `+choreCols+` FROM chores WHERE id = ?`, id)
	c, err := scanChore(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chore: %w", err)
	}
	return c, nil
}

func (s *ChoreStore) Create(ctx context.Context, c model.Chore, now time.Time) (*model.Chore, error) {
	id, err := insertChore(ctx, s.q, c, now)
	if err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

func (s *ChoreStore) GetByID(ctx context.Context, id int64) (*model.Chore, error) {
	return getChore(ctx, s.q, id)
}

func (s *ChoreStore) ListByFamily(ctx context.Context, familyID int64) ([]model.Chore, error) {
	chores, err := queryChores(ctx, s.q,
		`SELECT `+choreCols+` FROM chores WHERE family_id = ? ORDER BY due_date IS NULL, due_date ASC, id ASC`,
		familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("list chores: %w", err)
	}
	return chores, nil
}

// Update overwrites every editable field of the chore, status included.
func (s *ChoreStore) Update(ctx context.Context, c model.Chore, now time.Time) (*model.Chore, error) {
	result, err := s.q.ExecContext(ctx,
		`UPDATE chores SET title = ?, description = ?, points = ?, assigned_to = ?, due_date = ?, difficulty = ?, status = ?, recurrence_pattern = ?, updated_at = ?
		 WHERE id = ?`,
		c.Title, c.Description, c.Points, nullInt64(c.AssignedTo), nullDate(c.DueDate),
		c.Difficulty, c.Status, c.RecurrencePattern, now.UTC(), c.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update chore: %w", err)
	}
	if err := expectOne(result, "chore", c.ID); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, c.ID)
}

// SaveStatus persists a lifecycle transition already applied to c.
func (s *ChoreStore) SaveStatus(ctx context.Context, c model.Chore) error {
	result, err := s.q.ExecContext(ctx,
		`UPDATE chores SET status = ?, updated_at = ? WHERE id = ?`,
		c.Status, c.UpdatedAt.UTC(), c.ID,
	)
	if err != nil {
		return fmt.Errorf("save chore status: %w", err)
	}
	return expectOne(result, "chore", c.ID)
}

// Delete removes a chore. Instances generated from it stay behind as one-off
// chores so they never start recurring on their own.
func (s *ChoreStore) Delete(ctx context.Context, id int64) error {
	return atomically(ctx, s.db, s.q, func(q querier) error {
		if _, err := q.ExecContext(ctx,
			`UPDATE chores SET recurrence_pattern = '' WHERE template_id = ?`, id,
		); err != nil {
			return fmt.Errorf("detach instances: %w", err)
		}
		result, err := q.ExecContext(ctx, `DELETE FROM chores WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete chore: %w", err)
		}
		return expectOne(result, "chore", id)
	})
}

// ListRecurringTemplates returns every recurring chore that is not itself a
// generated instance.
func (s *ChoreStore) ListRecurringTemplates(ctx context.Context) ([]model.Chore, error) {
	chores, err := queryChores(ctx, s.q,
		`SELECT `+choreCols+` FROM chores WHERE template_id IS NULL AND recurrence_pattern != '' ORDER BY id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list recurring templates: %w", err)
	}
	return chores, nil
}

// CreateInstanceIfDue re-reads the template, asks build for an instance and,
// if one is returned, inserts it and stamps the template's updated_at with
// now. Both writes share one transaction.
func (s *ChoreStore) CreateInstanceIfDue(ctx context.Context, templateID int64, now time.Time, build func(template model.Chore) (model.Chore, bool)) (*model.Chore, error) {
	var created *model.Chore
	err := atomically(ctx, s.db, s.q, func(q querier) error {
		tmpl, err := getChore(ctx, q, templateID)
		if err != nil {
			return err
		}
		if tmpl == nil || !tmpl.IsTemplate() {
			return nil
		}
		inst, ok := build(*tmpl)
		if !ok {
			return nil
		}
		id, err := insertChore(ctx, q, inst, now)
		if err != nil {
			return err
		}
		if _, err := q.ExecContext(ctx,
			`UPDATE chores SET updated_at = ? WHERE id = ?`, now.UTC(), templateID,
		); err != nil {
			return fmt.Errorf("touch template: %w", err)
		}
		created, err = getChore(ctx, q, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create instance of chore %d: %w", templateID, err)
	}
	return created, nil
}

func (s *ChoreStore) RecordApproval(ctx context.Context, a model.ChoreApproval) (*model.ChoreApproval, error) {
	result, err := s.q.ExecContext(ctx,
		`INSERT INTO chore_approvals (chore_id, kid_id, xp_earned, points_earned, approved_at) VALUES (?, ?, ?, ?, ?)`,
		a.ChoreID, a.KidID, a.XPEarned, a.PointsEarned, a.ApprovedAt.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert chore approval: %w", err)
	}
	if a.ID, err = result.LastInsertId(); err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	a.ApprovedAt = a.ApprovedAt.UTC()
	return &a, nil
}

// CountApprovals returns how many chores the kid has had approved.
func (s *ChoreStore) CountApprovals(ctx context.Context, kidID int64) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM chore_approvals WHERE kid_id = ?`, kidID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count approvals: %w", err)
	}
	return n, nil
}
