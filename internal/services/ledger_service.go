package services

import (
	"context"
	"fmt"
	"log/slog"

	"finora/internal/amqp"
	"finora/internal/core"
)

// EventPublisher delivers ledger events. *amqp.Client implements it.
type EventPublisher interface {
	Publish(ctx context.Context, event *amqp.LedgerEvent) error
}

// LedgerStore is the data store surface for ledger writes.
type LedgerStore interface {
	GetTransaction(ctx context.Context, userID, id string) (*core.Transaction, error)
	CreateTransaction(ctx context.Context, t *core.Transaction) error
	UpdateTransaction(ctx context.Context, t *core.Transaction) error
	DeleteTransaction(ctx context.Context, userID, id string) error
	AddDebtPayment(ctx context.Context, userID string, p *core.DebtPayment) (*core.Debt, error)
	AddGoalContribution(ctx context.Context, userID string, c *core.GoalContribution) (*core.Goal, error)
	CancelSubscription(ctx context.Context, userID, id string) (*core.Subscription, error)
}

// LedgerService writes money movements and announces them. The database
// write is authoritative: a failed publish is logged and never fails the
// request.
type LedgerService struct {
	store     LedgerStore
	publisher EventPublisher
	logger    *slog.Logger
}

// NewLedgerService creates the service. publisher may be nil when events
// are disabled.
func NewLedgerService(store LedgerStore, publisher EventPublisher, logger *slog.Logger) *LedgerService {
	if logger == nil {
		logger = slog.Default()
	}
	return &LedgerService{store: store, publisher: publisher, logger: logger.With("component", "ledger")}
}

func (s *LedgerService) CreateTransaction(ctx context.Context, t *core.Transaction) error {
	if err := s.store.CreateTransaction(ctx, t); err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	s.publish(ctx, amqp.NewLedgerEvent(amqp.TransactionCreated, t.UserID, t.ID, t.Amount))
	return nil
}

func (s *LedgerService) UpdateTransaction(ctx context.Context, t *core.Transaction) error {
	if err := s.store.UpdateTransaction(ctx, t); err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	s.publish(ctx, amqp.NewLedgerEvent(amqp.TransactionUpdated, t.UserID, t.ID, t.Amount))
	return nil
}

func (s *LedgerService) DeleteTransaction(ctx context.Context, userID, id string) error {
	t, err := s.store.GetTransaction(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if err := s.store.DeleteTransaction(ctx, userID, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	s.publish(ctx, amqp.NewLedgerEvent(amqp.TransactionDeleted, userID, id, t.Amount))
	return nil
}

// RecordDebtPayment appends a payment and returns the updated debt. Every
// payment is announced; debt.paid follows only for the payment that settles
// the debt.
func (s *LedgerService) RecordDebtPayment(ctx context.Context, userID string, p *core.DebtPayment) (*core.Debt, error) {
	d, err := s.store.AddDebtPayment(ctx, userID, p)
	if err != nil {
		return nil, fmt.Errorf("record payment: %w", err)
	}
	s.publish(ctx, amqp.NewLedgerEvent(amqp.DebtPaymentRecorded, userID, d.ID, p.Amount))
	if d.Status == core.DebtPaid {
		s.publish(ctx, amqp.NewLedgerEvent(amqp.DebtPaid, userID, d.ID, d.PaidAmount))
	}
	return d, nil
}

// RecordGoalContribution appends a contribution and returns the updated
// goal. goal.completed is announced only on the contribution that reaches
// the target.
func (s *LedgerService) RecordGoalContribution(ctx context.Context, userID string, c *core.GoalContribution) (*core.Goal, error) {
	g, err := s.store.AddGoalContribution(ctx, userID, c)
	if err != nil {
		return nil, fmt.Errorf("record contribution: %w", err)
	}
	if g.Status == core.GoalCompleted && g.CurrentAmount.Cents-c.Amount.Cents < g.TargetAmount.Cents {
		s.publish(ctx, amqp.NewLedgerEvent(amqp.GoalCompleted, userID, g.ID, g.CurrentAmount))
	}
	return g, nil
}

func (s *LedgerService) CancelSubscription(ctx context.Context, userID, id string) (*core.Subscription, error) {
	sub, err := s.store.CancelSubscription(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("cancel subscription: %w", err)
	}
	s.publish(ctx, amqp.NewLedgerEvent(amqp.SubscriptionCancelled, userID, sub.ID, sub.Amount))
	return sub, nil
}

func (s *LedgerService) publish(ctx context.Context, event *amqp.LedgerEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish ledger event",
			"event", event.Type,
			"entity_id", event.EntityID,
			"error", err)
	}
}
