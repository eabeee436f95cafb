package storage

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"

	"finora/internal/core"
)

const categoryColumns = `id, user_id, name, color, icon, is_system, created_at`

func scanCategory(row scanner) (core.Category, error) {
	var (
		c         core.Category
		userID    sql.NullString
		createdAt dbTime
	)
	if err := row.Scan(&c.ID, &userID, &c.Name, &c.Color, &c.Icon, &c.IsSystem, &createdAt); err != nil {
		return c, err
	}
	c.UserID = userID.String
	c.CreatedAt = createdAt.Time
	return c, nil
}

const listCategories = `-- name: ListCategories :many
SELECT ` + categoryColumns + `
FROM categories
WHERE user_id IS NULL OR user_id = ?
ORDER BY is_system DESC, name`

// ListCategories returns the system catalog followed by the user's own categories.
func (q *Queries) ListCategories(ctx context.Context, userID string) ([]core.Category, error) {
	rows, err := q.query(ctx, listCategories, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

const getCategory = `-- name: GetCategory :one
SELECT ` + categoryColumns + `
FROM categories
WHERE id = ? AND (user_id IS NULL OR user_id = ?)`

// GetCategory returns a category visible to userID.
func (q *Queries) GetCategory(ctx context.Context, userID, id string) (*core.Category, error) {
	c, err := scanCategory(q.queryRow(ctx, getCategory, id, userID))
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

const createCategory = `-- name: CreateCategory :exec
INSERT INTO categories (id, user_id, name, color, icon, is_system, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`

// CreateCategory adds a user-owned category.
func (q *Queries) CreateCategory(ctx context.Context, c *core.Category) error {
	c.Name = strings.TrimSpace(c.Name)
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Color == "" {
		c.Color = "#6b7280"
	}
	if c.Icon == "" {
		c.Icon = "tag"
	}
	now := q.timestamp()
	id := uuid.NewString()
	_, err := q.exec(ctx, createCategory, id, c.UserID, c.Name, c.Color, c.Icon, false, q.timeArg(now))
	if err != nil {
		return err
	}
	c.ID, c.IsSystem, c.CreatedAt = id, false, now
	return nil
}

const deleteCategory = `-- name: DeleteCategory :exec
DELETE FROM categories WHERE id = ? AND user_id = ?`

// DeleteCategory removes one of the user's categories. System categories
// have no owner and are never matched.
func (q *Queries) DeleteCategory(ctx context.Context, userID, id string) error {
	res, err := q.exec(ctx, deleteCategory, id, userID)
	if err != nil {
		return err
	}
	return expectOne(res)
}
