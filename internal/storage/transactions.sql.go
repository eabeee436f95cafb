package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"

	"finora/internal/core"
)

// TransactionFilter narrows ListTransactions. Zero values match everything.
type TransactionFilter struct {
	Period     core.Period
	Type       core.TransactionType
	CategoryID string
	Limit      int
}

const transactionColumns = `id, user_id, type, amount_cents, date, category_id, source, description, created_at, updated_at`

func scanTransaction(row scanner) (core.Transaction, error) {
	var (
		t                    core.Transaction
		date                 dbDate
		categoryID           sql.NullString
		createdAt, updatedAt dbTime
	)
	err := row.Scan(&t.ID, &t.UserID, &t.Type, &t.Amount.Cents, &date, &categoryID,
		&t.Source, &t.Description, &createdAt, &updatedAt)
	if err != nil {
		return t, err
	}
	t.Date = date.Date
	t.CategoryID = categoryID.String
	t.CreatedAt = createdAt.Time
	t.UpdatedAt = updatedAt.Time
	return t, nil
}

func (q *Queries) ListTransactions(ctx context.Context, userID string, f TransactionFilter) ([]core.Transaction, error) {
	var b strings.Builder
	b.WriteString("SELECT " + transactionColumns + " FROM transactions WHERE user_id = ?")
	args := []any{userID}
	if !f.Period.Start.IsZero() {
		b.WriteString(" AND date >= ?")
		args = append(args, q.dateArg(f.Period.Start))
	}
	if !f.Period.End.IsZero() {
		b.WriteString(" AND date < ?")
		args = append(args, q.dateArg(f.Period.End))
	}
	if f.Type != "" {
		b.WriteString(" AND type = ?")
		args = append(args, string(f.Type))
	}
	switch f.CategoryID {
	case "":
	case core.UncategorizedID:
		b.WriteString(" AND category_id IS NULL")
	default:
		b.WriteString(" AND category_id = ?")
		args = append(args, f.CategoryID)
	}
	b.WriteString(" ORDER BY date DESC, created_at DESC")
	if f.Limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, f.Limit)
	}

	rows, err := q.query(ctx, b.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

const getTransaction = `-- name: GetTransaction :one
SELECT ` + transactionColumns + `
FROM transactions
WHERE id = ? AND user_id = ?`

func (q *Queries) GetTransaction(ctx context.Context, userID, id string) (*core.Transaction, error) {
	t, err := scanTransaction(q.queryRow(ctx, getTransaction, id, userID))
	if err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

const createTransaction = `-- name: CreateTransaction :exec
INSERT INTO transactions (id, user_id, type, amount_cents, date, category_id, source, description, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// CreateTransaction inserts t. A category, when set, must be visible to the owner.
func (q *Queries) CreateTransaction(ctx context.Context, t *core.Transaction) error {
	if err := q.checkTransaction(ctx, t); err != nil {
		return err
	}
	now := q.timestamp()
	id := uuid.NewString()
	_, err := q.exec(ctx, createTransaction, id, t.UserID, string(t.Type), t.Amount.Cents, q.dateArg(t.Date),
		nullString(t.CategoryID), t.Source, t.Description, q.timeArg(now), q.timeArg(now))
	if err != nil {
		return err
	}
	t.ID, t.CreatedAt, t.UpdatedAt = id, now, now
	return nil
}

const updateTransaction = `-- name: UpdateTransaction :exec
UPDATE transactions
SET type = ?, amount_cents = ?, date = ?, category_id = ?, source = ?, description = ?, updated_at = ?
WHERE id = ? AND user_id = ?`

func (q *Queries) UpdateTransaction(ctx context.Context, t *core.Transaction) error {
	if err := q.checkTransaction(ctx, t); err != nil {
		return err
	}
	now := q.timestamp()
	res, err := q.exec(ctx, updateTransaction, string(t.Type), t.Amount.Cents, q.dateArg(t.Date),
		nullString(t.CategoryID), t.Source, t.Description, q.timeArg(now), t.ID, t.UserID)
	if err != nil {
		return err
	}
	if err := expectOne(res); err != nil {
		return err
	}
	t.UpdatedAt = now
	return nil
}

const deleteTransaction = `-- name: DeleteTransaction :exec
DELETE FROM transactions WHERE id = ? AND user_id = ?`

func (q *Queries) DeleteTransaction(ctx context.Context, userID, id string) error {
	res, err := q.exec(ctx, deleteTransaction, id, userID)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func (q *Queries) checkTransaction(ctx context.Context, t *core.Transaction) error {
	t.Source = strings.TrimSpace(t.Source)
	t.Description = strings.TrimSpace(t.Description)
	if err := t.Validate(); err != nil {
		return err
	}
	if t.CategoryID == "" || t.CategoryID == core.UncategorizedID {
		t.CategoryID = ""
		return nil
	}
	if _, err := q.GetCategory(ctx, t.UserID, t.CategoryID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrCategoryNotFound
		}
		return err
	}
	return nil
}
