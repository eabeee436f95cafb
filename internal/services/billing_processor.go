package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"finora/internal/amqp"
	"finora/internal/core"
	"finora/internal/storage"
)

const (
	// maxChargesPerRun bounds how many missed periods one subscription can
	// record in a single run. Only the most recent are kept; older periods
	// still advance the date.
	maxChargesPerRun = 24
	// maxPeriodsPerRun stops a corrupt billing date from looping forever.
	maxPeriodsPerRun = 1200
	maxBatchesPerRun = 100
)

// BillingStore is the privileged, cross-user surface billing needs.
type BillingStore interface {
	ListDueSubscriptions(ctx context.Context, asOf core.Date, limit int) ([]core.Subscription, error)
	BillSubscription(ctx context.Context, sub core.Subscription, next core.Date, charges []core.Transaction) error
	CancelSubscription(ctx context.Context, userID, id string) (*core.Subscription, error)
}

// AccountDirectory reports whether a user account still exists in the
// session store. *identity.Client implements it with the service role key.
type AccountDirectory interface {
	UserExists(ctx context.Context, userID string) (bool, error)
}

// BillingResult summarises one ProcessDue run.
type BillingResult struct {
	Billed    int
	Periods   int
	Conflicts int
	Failed    int
	// Orphaned counts subscriptions cancelled because their account is gone.
	Orphaned int
}

// BillingProcessor advances due subscriptions and optionally records one
// expense per billed period.
type BillingProcessor struct {
	store              BillingStore
	publisher          EventPublisher
	batchSize          int
	recordTransactions bool
	accounts           AccountDirectory
	logger             *slog.Logger
}

func NewBillingProcessor(store BillingStore, publisher EventPublisher, batchSize int, recordTransactions bool, logger *slog.Logger) *BillingProcessor {
	if batchSize <= 0 {
		batchSize = 50
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BillingProcessor{
		store:              store,
		publisher:          publisher,
		batchSize:          batchSize,
		recordTransactions: recordTransactions,
		logger:             logger.With("component", "billing"),
	}
}

// WithAccounts makes the processor check each owner before charging.
// Subscriptions of deleted accounts are cancelled instead of billed.
func (p *BillingProcessor) WithAccounts(accounts AccountDirectory) *BillingProcessor {
	p.accounts = accounts
	return p
}

// ProcessDue bills every active subscription whose next billing date is on
// or before now's date, moving each date forward until it is in the future.
// Cancelled subscriptions are never listed and never advance.
func (p *BillingProcessor) ProcessDue(ctx context.Context, now time.Time) (BillingResult, error) {
	var result BillingResult
	today := core.DateOf(now)
	owners := make(map[string]bool)

	for batch := 0; batch < maxBatchesPerRun; batch++ {
		subs, err := p.store.ListDueSubscriptions(ctx, today, p.batchSize)
		if err != nil {
			return result, fmt.Errorf("list due subscriptions: %w", err)
		}

		progressed := 0
		for _, sub := range subs {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			exists, err := p.ownerExists(ctx, owners, sub.UserID)
			if err != nil {
				result.Failed++
				p.logger.ErrorContext(ctx, "Failed to check subscription owner", "subscription_id", sub.ID, "error", err)
				continue
			}
			if !exists {
				if _, err := p.store.CancelSubscription(ctx, sub.UserID, sub.ID); err != nil {
					result.Failed++
					p.logger.ErrorContext(ctx, "Failed to cancel orphaned subscription", "subscription_id", sub.ID, "error", err)
					continue
				}
				result.Orphaned++
				progressed++
				p.logger.WarnContext(ctx, "Account deleted, subscription cancelled",
					"subscription_id", sub.ID,
					"user_id", sub.UserID)
				continue
			}

			periods, err := p.bill(ctx, sub, today)
			switch {
			case errors.Is(err, storage.ErrConflict):
				result.Conflicts++
				p.logger.InfoContext(ctx, "Subscription billed concurrently, skipping", "subscription_id", sub.ID)
			case err != nil:
				result.Failed++
				p.logger.ErrorContext(ctx, "Failed to bill subscription", "subscription_id", sub.ID, "error", err)
			default:
				result.Billed++
				result.Periods += periods
				progressed++
			}
		}

		if len(subs) < p.batchSize || progressed == 0 {
			break
		}
	}

	p.logger.InfoContext(ctx, "Billing run complete",
		"billed", result.Billed,
		"periods", result.Periods,
		"conflicts", result.Conflicts,
		"failed", result.Failed,
		"orphaned", result.Orphaned,
		"as_of", today.String())
	return result, nil
}

// ownerExists answers from the run's memo before asking the directory.
func (p *BillingProcessor) ownerExists(ctx context.Context, memo map[string]bool, userID string) (bool, error) {
	if p.accounts == nil {
		return true, nil
	}
	if exists, ok := memo[userID]; ok {
		return exists, nil
	}
	exists, err := p.accounts.UserExists(ctx, userID)
	if err != nil {
		return false, err
	}
	memo[userID] = exists
	return exists, nil
}

func (p *BillingProcessor) bill(ctx context.Context, sub core.Subscription, today core.Date) (int, error) {
	schedule, err := GetBillingSchedule(sub.Frequency)
	if err != nil {
		return 0, err
	}

	anchor := sub.NextBillingDate.Day()
	next := sub.NextBillingDate
	var charges []core.Transaction
	periods := 0
	for !next.After(today.Time) {
		if periods == maxPeriodsPerRun {
			return 0, fmt.Errorf("billing date %s too far behind", sub.NextBillingDate)
		}
		if p.recordTransactions {
			charges = append(charges, core.Transaction{
				UserID:      sub.UserID,
				Type:        core.Expense,
				Amount:      sub.Amount,
				Date:        next,
				Source:      sub.Name,
				Description: "Suscripción " + sub.Name,
			})
		}
		next = schedule.Next(next, anchor)
		periods++
	}
	if len(charges) > maxChargesPerRun {
		charges = charges[len(charges)-maxChargesPerRun:]
		p.logger.WarnContext(ctx, "Subscription far behind, older periods not recorded",
			"subscription_id", sub.ID,
			"periods", periods,
			"recorded", maxChargesPerRun)
	}

	if err := p.store.BillSubscription(ctx, sub, next, charges); err != nil {
		return 0, err
	}

	p.logger.InfoContext(ctx, "Subscription billed",
		"subscription_id", sub.ID,
		"periods", periods,
		"next_billing_date", next.String())

	if p.publisher != nil {
		total := core.Money{Cents: sub.Amount.Cents * int64(periods)}
		if err := p.publisher.Publish(ctx, amqp.NewLedgerEvent(amqp.SubscriptionBilled, sub.UserID, sub.ID, total)); err != nil {
			p.logger.ErrorContext(ctx, "Failed to publish billing event", "subscription_id", sub.ID, "error", err)
		}
	}
	return periods, nil
}
