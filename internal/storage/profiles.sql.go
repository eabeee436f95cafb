package storage

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"finora/internal/core"
)

const getProfile = `-- name: GetProfile :one
SELECT id, user_id, name, currency_symbol, created_at, updated_at
FROM profiles
WHERE user_id = ?`

func (q *Queries) GetProfile(ctx context.Context, userID string) (*core.Profile, error) {
	var (
		p                    core.Profile
		name                 sql.NullString
		createdAt, updatedAt dbTime
	)
	err := q.queryRow(ctx, getProfile, userID).Scan(&p.ID, &p.UserID, &name, &p.CurrencySymbol, &createdAt, &updatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	p.Name = name.String
	p.CreatedAt = createdAt.Time
	p.UpdatedAt = updatedAt.Time
	return &p, nil
}

const createProfile = `-- name: CreateProfile :exec
INSERT INTO profiles (id, user_id, name, currency_symbol, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)`

// CreateProfile inserts p and fills in its id and timestamps.
func (q *Queries) CreateProfile(ctx context.Context, p *core.Profile) error {
	if p.CurrencySymbol == "" {
		p.CurrencySymbol = core.DefaultCurrencySymbol
	}
	if err := p.Validate(); err != nil {
		return err
	}
	now := q.timestamp()
	id := uuid.NewString()
	_, err := q.exec(ctx, createProfile, id, p.UserID, nullString(p.Name), p.CurrencySymbol, q.timeArg(now), q.timeArg(now))
	if err != nil {
		return err
	}
	p.ID, p.CreatedAt, p.UpdatedAt = id, now, now
	return nil
}

const updateProfile = `-- name: UpdateProfile :exec
UPDATE profiles SET name = ?, currency_symbol = ?, updated_at = ?
WHERE user_id = ?`

func (q *Queries) UpdateProfile(ctx context.Context, p *core.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	now := q.timestamp()
	res, err := q.exec(ctx, updateProfile, nullString(p.Name), p.CurrencySymbol, q.timeArg(now), p.UserID)
	if err != nil {
		return err
	}
	if err := expectOne(res); err != nil {
		return err
	}
	p.UpdatedAt = now
	return nil
}
