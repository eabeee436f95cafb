package storage

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"finora/internal/core"
)

const subscriptionColumns = `id, user_id, name, description, amount_cents, frequency, next_billing_date, status, cancelled_at, created_at`

func scanSubscription(row scanner) (core.Subscription, error) {
	var (
		s                      core.Subscription
		next                   dbDate
		cancelledAt, createdAt dbTime
	)
	err := row.Scan(&s.ID, &s.UserID, &s.Name, &s.Description, &s.Amount.Cents, &s.Frequency,
		&next, &s.Status, &cancelledAt, &createdAt)
	if err != nil {
		return s, err
	}
	s.NextBillingDate = next.Date
	s.CancelledAt = cancelledAt.ptr()
	s.CreatedAt = createdAt.Time
	return s, nil
}

func (q *Queries) listSubscriptions(ctx context.Context, query string, args ...any) ([]core.Subscription, error) {
	rows, err := q.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []core.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

const listSubscriptions = `-- name: ListSubscriptions :many
SELECT ` + subscriptionColumns + `
FROM subscriptions
WHERE user_id = ?
ORDER BY status, next_billing_date`

func (q *Queries) ListSubscriptions(ctx context.Context, userID string) ([]core.Subscription, error) {
	return q.listSubscriptions(ctx, listSubscriptions, userID)
}

const listDueSubscriptions = `-- name: ListDueSubscriptions :many
SELECT ` + subscriptionColumns + `
FROM subscriptions
WHERE status = 'active' AND next_billing_date <= ?
ORDER BY next_billing_date, id
LIMIT ?`

// ListDueSubscriptions returns active subscriptions of every user whose
// billing date is on or before asOf. Only the billing worker calls it.
func (q *Queries) ListDueSubscriptions(ctx context.Context, asOf core.Date, limit int) ([]core.Subscription, error) {
	return q.listSubscriptions(ctx, listDueSubscriptions, q.dateArg(asOf), limit)
}

const getSubscription = `-- name: GetSubscription :one
SELECT ` + subscriptionColumns + `
FROM subscriptions
WHERE id = ? AND user_id = ?`

func (q *Queries) GetSubscription(ctx context.Context, userID, id string) (*core.Subscription, error) {
	s, err := scanSubscription(q.queryRow(ctx, getSubscription, id, userID))
	if err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

func (q *Queries) getSubscriptionForUpdate(ctx context.Context, userID, id string) (*core.Subscription, error) {
	s, err := scanSubscription(q.queryRow(ctx, getSubscription+q.forUpdate(), id, userID))
	if err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

const createSubscription = `-- name: CreateSubscription :exec
INSERT INTO subscriptions (id, user_id, name, description, amount_cents, frequency, next_billing_date, status, cancelled_at, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// CreateSubscription inserts s as active.
func (q *Queries) CreateSubscription(ctx context.Context, s *core.Subscription) error {
	s.Name = strings.TrimSpace(s.Name)
	s.Description = strings.TrimSpace(s.Description)
	s.Status = core.SubscriptionActive
	s.CancelledAt = nil
	if err := s.Validate(); err != nil {
		return err
	}
	now := q.timestamp()
	id := uuid.NewString()
	_, err := q.exec(ctx, createSubscription, id, s.UserID, s.Name, s.Description, s.Amount.Cents, string(s.Frequency),
		q.dateArg(s.NextBillingDate), string(s.Status), nil, q.timeArg(now))
	if err != nil {
		return err
	}
	s.ID, s.CreatedAt = id, now
	return nil
}

const updateSubscription = `-- name: UpdateSubscription :exec
UPDATE subscriptions
SET name = ?, description = ?, amount_cents = ?, frequency = ?, next_billing_date = ?, status = ?, cancelled_at = ?
WHERE id = ? AND user_id = ?`

func (q *Queries) updateSubscription(ctx context.Context, s *core.Subscription) error {
	res, err := q.exec(ctx, updateSubscription, s.Name, s.Description, s.Amount.Cents, string(s.Frequency),
		q.dateArg(s.NextBillingDate), string(s.Status), q.nullTimeArg(s.CancelledAt), s.ID, s.UserID)
	if err != nil {
		return err
	}
	return expectOne(res)
}

const advanceSubscription = `-- name: AdvanceSubscription :execrows
UPDATE subscriptions
SET next_billing_date = ?
WHERE id = ? AND status = 'active' AND next_billing_date = ?`

// advanceSubscription moves the billing date only if nobody else moved it.
func (q *Queries) advanceSubscription(ctx context.Context, id string, from, to core.Date) error {
	res, err := q.exec(ctx, advanceSubscription, q.dateArg(to), id, q.dateArg(from))
	if err != nil {
		return err
	}
	if err := expectOne(res); errors.Is(err, ErrNotFound) {
		return ErrConflict
	} else if err != nil {
		return err
	}
	return nil
}

const deleteSubscription = `-- name: DeleteSubscription :exec
DELETE FROM subscriptions WHERE id = ? AND user_id = ?`

func (q *Queries) DeleteSubscription(ctx context.Context, userID, id string) error {
	res, err := q.exec(ctx, deleteSubscription, id, userID)
	if err != nil {
		return err
	}
	return expectOne(res)
}
