package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"finora/internal/core"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Repository is the data store. Every read and write on owned rows is
// scoped by user id; a row owned by someone else behaves as missing.
type Repository struct {
	*Queries
	db      *sql.DB
	dialect Dialect
}

// NewSQLiteRepository opens (creating if needed) the database file at
// dbPath and applies migrations.
func NewSQLiteRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	return Open(context.Background(), SQLite, sqliteDSN(dbPath))
}

// NewPostgresRepository connects to databaseURL through the pgx driver and
// applies migrations.
func NewPostgresRepository(databaseURL string) (*Repository, error) {
	return Open(context.Background(), Postgres, databaseURL)
}

func sqliteDSN(path string) string {
	return path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// Open connects with the given dialect and runs pending migrations.
func Open(ctx context.Context, dialect Dialect, dsn string) (*Repository, error) {
	if !dialect.Valid() {
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}

	db, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect, err)
	}
	if dialect == SQLite {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dialect, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{
		Queries: New(db, dialect),
		db:      db,
		dialect: dialect,
	}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) Dialect() Dialect { return r.dialect }

func (r *Repository) withTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(r.Queries.WithTx(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// UpdateDebt writes the editable fields of d. The paid amount is owned by
// the payment ledger and is kept; status is re-derived.
func (r *Repository) UpdateDebt(ctx context.Context, d *core.Debt) error {
	return r.withTx(ctx, func(q *Queries) error {
		current, err := q.getDebtForUpdate(ctx, d.UserID, d.ID)
		if err != nil {
			return err
		}
		current.Creditor = strings.TrimSpace(d.Creditor)
		current.Description = strings.TrimSpace(d.Description)
		current.TotalAmount = d.TotalAmount
		current.DueDate = d.DueDate
		current.Reconcile()
		if err := current.Validate(); err != nil {
			return err
		}
		if err := q.updateDebt(ctx, current); err != nil {
			return err
		}
		*d = *current
		return nil
	})
}

// AddDebtPayment appends p to the debt's ledger and updates the running
// total in the same transaction. It returns the updated debt.
func (r *Repository) AddDebtPayment(ctx context.Context, userID string, p *core.DebtPayment) (*core.Debt, error) {
	if err := p.Date.Validate(); err != nil {
		return nil, err
	}
	p.Note = strings.TrimSpace(p.Note)

	var debt *core.Debt
	err := r.withTx(ctx, func(q *Queries) error {
		d, err := q.getDebtForUpdate(ctx, userID, p.DebtID)
		if err != nil {
			return err
		}
		if err := d.ApplyPayment(p.Amount); err != nil {
			return err
		}
		if err := q.createDebtPayment(ctx, p); err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}
		if err := q.updateDebt(ctx, d); err != nil {
			return fmt.Errorf("update debt: %w", err)
		}
		debt = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Debt payment recorded",
		"debt_id", debt.ID,
		"amount_cents", p.Amount.Cents,
		"paid_cents", debt.PaidAmount.Cents,
		"status", debt.Status)
	return debt, nil
}

// UpdateGoal writes the editable fields of g. The saved amount is owned by
// the contribution ledger; status and completed_at are re-derived.
func (r *Repository) UpdateGoal(ctx context.Context, g *core.Goal) error {
	return r.withTx(ctx, func(q *Queries) error {
		current, err := q.getGoalForUpdate(ctx, g.UserID, g.ID)
		if err != nil {
			return err
		}
		current.Name = strings.TrimSpace(g.Name)
		current.Description = strings.TrimSpace(g.Description)
		current.TargetAmount = g.TargetAmount
		current.TargetDate = g.TargetDate
		current.Reconcile(q.timestamp())
		if err := current.Validate(); err != nil {
			return err
		}
		if err := q.updateGoal(ctx, current); err != nil {
			return err
		}
		*g = *current
		return nil
	})
}

// AddGoalContribution appends c to the goal's ledger and updates the saved
// amount in the same transaction. It returns the updated goal.
func (r *Repository) AddGoalContribution(ctx context.Context, userID string, c *core.GoalContribution) (*core.Goal, error) {
	if err := c.Date.Validate(); err != nil {
		return nil, err
	}
	c.Note = strings.TrimSpace(c.Note)

	var goal *core.Goal
	err := r.withTx(ctx, func(q *Queries) error {
		g, err := q.getGoalForUpdate(ctx, userID, c.GoalID)
		if err != nil {
			return err
		}
		if err := g.Contribute(c.Amount, q.timestamp()); err != nil {
			return err
		}
		if err := q.createGoalContribution(ctx, c); err != nil {
			return fmt.Errorf("insert contribution: %w", err)
		}
		if err := q.updateGoal(ctx, g); err != nil {
			return fmt.Errorf("update goal: %w", err)
		}
		goal = g
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Goal contribution recorded",
		"goal_id", goal.ID,
		"amount_cents", c.Amount.Cents,
		"saved_cents", goal.CurrentAmount.Cents,
		"status", goal.Status)
	return goal, nil
}

// UpdateSubscription writes the editable fields of s. Status changes only
// through CancelSubscription.
func (r *Repository) UpdateSubscription(ctx context.Context, s *core.Subscription) error {
	return r.withTx(ctx, func(q *Queries) error {
		current, err := q.getSubscriptionForUpdate(ctx, s.UserID, s.ID)
		if err != nil {
			return err
		}
		current.Name = strings.TrimSpace(s.Name)
		current.Description = strings.TrimSpace(s.Description)
		current.Amount = s.Amount
		current.Frequency = s.Frequency
		current.NextBillingDate = s.NextBillingDate
		if err := current.Validate(); err != nil {
			return err
		}
		if err := q.updateSubscription(ctx, current); err != nil {
			return err
		}
		*s = *current
		return nil
	})
}

func (r *Repository) CancelSubscription(ctx context.Context, userID, id string) (*core.Subscription, error) {
	var sub *core.Subscription
	err := r.withTx(ctx, func(q *Queries) error {
		s, err := q.getSubscriptionForUpdate(ctx, userID, id)
		if err != nil {
			return err
		}
		if err := s.Cancel(q.timestamp()); err != nil {
			return err
		}
		if err := q.updateSubscription(ctx, s); err != nil {
			return err
		}
		sub = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "Subscription cancelled", "subscription_id", sub.ID)
	return sub, nil
}

// BillSubscription moves sub's billing date to next and records charges,
// atomically. It fails with ErrConflict when the subscription was billed or
// cancelled since sub was read.
func (r *Repository) BillSubscription(ctx context.Context, sub core.Subscription, next core.Date, charges []core.Transaction) error {
	return r.withTx(ctx, func(q *Queries) error {
		if err := q.advanceSubscription(ctx, sub.ID, sub.NextBillingDate, next); err != nil {
			return err
		}
		for i := range charges {
			if err := q.CreateTransaction(ctx, &charges[i]); err != nil {
				return fmt.Errorf("record charge %d: %w", i, err)
			}
		}
		return nil
	})
}
