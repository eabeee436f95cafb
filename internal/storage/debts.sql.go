package storage

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"finora/internal/core"
)

const debtColumns = `id, user_id, creditor, description, total_amount_cents, paid_amount_cents, due_date, status, created_at, updated_at`

func scanDebt(row scanner) (core.Debt, error) {
	var (
		d                    core.Debt
		dueDate              dbDate
		createdAt, updatedAt dbTime
	)
	err := row.Scan(&d.ID, &d.UserID, &d.Creditor, &d.Description, &d.TotalAmount.Cents, &d.PaidAmount.Cents,
		&dueDate, &d.Status, &createdAt, &updatedAt)
	if err != nil {
		return d, err
	}
	d.DueDate = dueDate.Date
	d.CreatedAt = createdAt.Time
	d.UpdatedAt = updatedAt.Time
	return d, nil
}

const listDebts = `-- name: ListDebts :many
SELECT ` + debtColumns + `
FROM debts
WHERE user_id = ?
ORDER BY status, created_at DESC`

func (q *Queries) ListDebts(ctx context.Context, userID string) ([]core.Debt, error) {
	rows, err := q.query(ctx, listDebts, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []core.Debt
	for rows.Next() {
		d, err := scanDebt(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

const getDebt = `-- name: GetDebt :one
SELECT ` + debtColumns + `
FROM debts
WHERE id = ? AND user_id = ?`

func (q *Queries) GetDebt(ctx context.Context, userID, id string) (*core.Debt, error) {
	d, err := scanDebt(q.queryRow(ctx, getDebt, id, userID))
	if err != nil {
		return nil, notFound(err)
	}
	return &d, nil
}

func (q *Queries) getDebtForUpdate(ctx context.Context, userID, id string) (*core.Debt, error) {
	d, err := scanDebt(q.queryRow(ctx, getDebt+q.forUpdate(), id, userID))
	if err != nil {
		return nil, notFound(err)
	}
	return &d, nil
}

const createDebt = `-- name: CreateDebt :exec
INSERT INTO debts (id, user_id, creditor, description, total_amount_cents, paid_amount_cents, due_date, status, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// CreateDebt inserts d with its status derived from the amounts.
func (q *Queries) CreateDebt(ctx context.Context, d *core.Debt) error {
	d.Creditor = strings.TrimSpace(d.Creditor)
	d.Description = strings.TrimSpace(d.Description)
	d.Reconcile()
	if err := d.Validate(); err != nil {
		return err
	}
	now := q.timestamp()
	id := uuid.NewString()
	_, err := q.exec(ctx, createDebt, id, d.UserID, d.Creditor, d.Description, d.TotalAmount.Cents, d.PaidAmount.Cents,
		q.dateArg(d.DueDate), string(d.Status), q.timeArg(now), q.timeArg(now))
	if err != nil {
		return err
	}
	d.ID, d.CreatedAt, d.UpdatedAt = id, now, now
	return nil
}

const updateDebt = `-- name: UpdateDebt :exec
UPDATE debts
SET creditor = ?, description = ?, total_amount_cents = ?, paid_amount_cents = ?, due_date = ?, status = ?, updated_at = ?
WHERE id = ? AND user_id = ?`

func (q *Queries) updateDebt(ctx context.Context, d *core.Debt) error {
	now := q.timestamp()
	res, err := q.exec(ctx, updateDebt, d.Creditor, d.Description, d.TotalAmount.Cents, d.PaidAmount.Cents,
		q.dateArg(d.DueDate), string(d.Status), q.timeArg(now), d.ID, d.UserID)
	if err != nil {
		return err
	}
	if err := expectOne(res); err != nil {
		return err
	}
	d.UpdatedAt = now
	return nil
}

const deleteDebt = `-- name: DeleteDebt :exec
DELETE FROM debts WHERE id = ? AND user_id = ?`

// DeleteDebt removes the debt and, by cascade, its payments.
func (q *Queries) DeleteDebt(ctx context.Context, userID, id string) error {
	res, err := q.exec(ctx, deleteDebt, id, userID)
	if err != nil {
		return err
	}
	return expectOne(res)
}

const listDebtPayments = `-- name: ListDebtPayments :many
SELECT p.id, p.debt_id, p.amount_cents, p.date, p.note, p.created_at
FROM debt_payments p
JOIN debts d ON d.id = p.debt_id
WHERE p.debt_id = ? AND d.user_id = ?
ORDER BY p.date DESC, p.created_at DESC`

func (q *Queries) ListDebtPayments(ctx context.Context, userID, debtID string) ([]core.DebtPayment, error) {
	rows, err := q.query(ctx, listDebtPayments, debtID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []core.DebtPayment
	for rows.Next() {
		var (
			p         core.DebtPayment
			date      dbDate
			createdAt dbTime
		)
		if err := rows.Scan(&p.ID, &p.DebtID, &p.Amount.Cents, &date, &p.Note, &createdAt); err != nil {
			return nil, err
		}
		p.Date = date.Date
		p.CreatedAt = createdAt.Time
		items = append(items, p)
	}
	return items, rows.Err()
}

const createDebtPayment = `-- name: CreateDebtPayment :exec
INSERT INTO debt_payments (id, debt_id, amount_cents, date, note, created_at)
VALUES (?, ?, ?, ?, ?, ?)`

func (q *Queries) createDebtPayment(ctx context.Context, p *core.DebtPayment) error {
	now := q.timestamp()
	id := uuid.NewString()
	_, err := q.exec(ctx, createDebtPayment, id, p.DebtID, p.Amount.Cents, q.dateArg(p.Date), p.Note, q.timeArg(now))
	if err != nil {
		return err
	}
	p.ID, p.CreatedAt = id, now
	return nil
}
