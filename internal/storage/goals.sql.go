package storage

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"finora/internal/core"
)

const goalColumns = `id, user_id, name, description, target_amount_cents, current_amount_cents, target_date, status, completed_at, created_at`

func scanGoal(row scanner) (core.Goal, error) {
	var (
		g                      core.Goal
		targetDate             dbDate
		completedAt, createdAt dbTime
	)
	err := row.Scan(&g.ID, &g.UserID, &g.Name, &g.Description, &g.TargetAmount.Cents, &g.CurrentAmount.Cents,
		&targetDate, &g.Status, &completedAt, &createdAt)
	if err != nil {
		return g, err
	}
	g.TargetDate = targetDate.Date
	g.CompletedAt = completedAt.ptr()
	g.CreatedAt = createdAt.Time
	return g, nil
}

const listGoals = `-- name: ListGoals :many
SELECT ` + goalColumns + `
FROM goals
WHERE user_id = ?
ORDER BY status, created_at DESC`

func (q *Queries) ListGoals(ctx context.Context, userID string) ([]core.Goal, error) {
	rows, err := q.query(ctx, listGoals, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []core.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, g)
	}
	return items, rows.Err()
}

const getGoal = `-- name: GetGoal :one
SELECT ` + goalColumns + `
FROM goals
WHERE id = ? AND user_id = ?`

func (q *Queries) GetGoal(ctx context.Context, userID, id string) (*core.Goal, error) {
	g, err := scanGoal(q.queryRow(ctx, getGoal, id, userID))
	if err != nil {
		return nil, notFound(err)
	}
	return &g, nil
}

func (q *Queries) getGoalForUpdate(ctx context.Context, userID, id string) (*core.Goal, error) {
	g, err := scanGoal(q.queryRow(ctx, getGoal+q.forUpdate(), id, userID))
	if err != nil {
		return nil, notFound(err)
	}
	return &g, nil
}

const createGoal = `-- name: CreateGoal :exec
INSERT INTO goals (id, user_id, name, description, target_amount_cents, current_amount_cents, target_date, status, completed_at, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// CreateGoal inserts g with status and completed_at derived from the amounts.
func (q *Queries) CreateGoal(ctx context.Context, g *core.Goal) error {
	now := q.timestamp()
	g.Name = strings.TrimSpace(g.Name)
	g.Description = strings.TrimSpace(g.Description)
	g.CompletedAt = nil
	g.Reconcile(now)
	if err := g.Validate(); err != nil {
		return err
	}
	id := uuid.NewString()
	_, err := q.exec(ctx, createGoal, id, g.UserID, g.Name, g.Description, g.TargetAmount.Cents, g.CurrentAmount.Cents,
		q.dateArg(g.TargetDate), string(g.Status), q.nullTimeArg(g.CompletedAt), q.timeArg(now))
	if err != nil {
		return err
	}
	g.ID, g.CreatedAt = id, now
	return nil
}

const updateGoal = `-- name: UpdateGoal :exec
UPDATE goals
SET name = ?, description = ?, target_amount_cents = ?, current_amount_cents = ?, target_date = ?, status = ?, completed_at = ?
WHERE id = ? AND user_id = ?`

func (q *Queries) updateGoal(ctx context.Context, g *core.Goal) error {
	res, err := q.exec(ctx, updateGoal, g.Name, g.Description, g.TargetAmount.Cents, g.CurrentAmount.Cents,
		q.dateArg(g.TargetDate), string(g.Status), q.nullTimeArg(g.CompletedAt), g.ID, g.UserID)
	if err != nil {
		return err
	}
	return expectOne(res)
}

const deleteGoal = `-- name: DeleteGoal :exec
DELETE FROM goals WHERE id = ? AND user_id = ?`

func (q *Queries) DeleteGoal(ctx context.Context, userID, id string) error {
	res, err := q.exec(ctx, deleteGoal, id, userID)
	if err != nil {
		return err
	}
	return expectOne(res)
}

const listGoalContributions = `-- name: ListGoalContributions :many
SELECT c.id, c.goal_id, c.amount_cents, c.date, c.note, c.created_at
FROM goal_contributions c
JOIN goals g ON g.id = c.goal_id
WHERE c.goal_id = ? AND g.user_id = ?
ORDER BY c.date DESC, c.created_at DESC`

func (q *Queries) ListGoalContributions(ctx context.Context, userID, goalID string) ([]core.GoalContribution, error) {
	rows, err := q.query(ctx, listGoalContributions, goalID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []core.GoalContribution
	for rows.Next() {
		var (
			c         core.GoalContribution
			date      dbDate
			createdAt dbTime
		)
		if err := rows.Scan(&c.ID, &c.GoalID, &c.Amount.Cents, &date, &c.Note, &createdAt); err != nil {
			return nil, err
		}
		c.Date = date.Date
		c.CreatedAt = createdAt.Time
		items = append(items, c)
	}
	return items, rows.Err()
}

const createGoalContribution = `-- name: CreateGoalContribution :exec
INSERT INTO goal_contributions (id, goal_id, amount_cents, date, note, created_at)
VALUES (?, ?, ?, ?, ?, ?)`

func (q *Queries) createGoalContribution(ctx context.Context, c *core.GoalContribution) error {
	now := q.timestamp()
	id := uuid.NewString()
	_, err := q.exec(ctx, createGoalContribution, id, c.GoalID, c.Amount.Cents, q.dateArg(c.Date), c.Note, q.timeArg(now))
	if err != nil {
		return err
	}
	c.ID, c.CreatedAt = id, now
	return nil
}
