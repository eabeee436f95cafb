package services

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"finora/internal/core"
	"finora/internal/storage"
)

// RecentTransactionsLimit is how many transactions the dashboard lists.
const RecentTransactionsLimit = 5

// DashboardStore is the read side the dashboard needs.
type DashboardStore interface {
	ListTransactions(ctx context.Context, userID string, f storage.TransactionFilter) ([]core.Transaction, error)
	ListDebts(ctx context.Context, userID string) ([]core.Debt, error)
	ListGoals(ctx context.Context, userID string) ([]core.Goal, error)
	ListSubscriptions(ctx context.Context, userID string) ([]core.Subscription, error)
}

type DebtView struct {
	core.Debt
	Remaining core.Money
	Progress  float64
}

type GoalView struct {
	core.Goal
	Progress float64
}

// Dashboard is everything the dashboard page shows for one period.
type Dashboard struct {
	Period        core.Period
	Summary       core.DashboardSummary
	Categories    []core.CategorySummary
	Recent        []core.Transaction
	Debts         []DebtView
	Goals         []GoalView
	Subscriptions []core.Subscription
}

type DashboardService struct {
	store      DashboardStore
	categories *CategoryCatalog
}

func NewDashboardService(store DashboardStore, categories *CategoryCatalog) *DashboardService {
	return &DashboardService{store: store, categories: categories}
}

// Dashboard loads the user's rows concurrently and aggregates them.
func (s *DashboardService) Dashboard(ctx context.Context, userID string, period core.Period) (*Dashboard, error) {
	var (
		txs    []core.Transaction
		recent []core.Transaction
		debts  []core.Debt
		goals  []core.Goal
		subs   []core.Subscription
		cats   []core.Category
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		txs, err = s.store.ListTransactions(gctx, userID, storage.TransactionFilter{Period: period})
		return wrap("transactions", err)
	})
	g.Go(func() (err error) {
		recent, err = s.store.ListTransactions(gctx, userID, storage.TransactionFilter{Limit: RecentTransactionsLimit})
		return wrap("recent transactions", err)
	})
	g.Go(func() (err error) {
		debts, err = s.store.ListDebts(gctx, userID)
		return wrap("debts", err)
	})
	g.Go(func() (err error) {
		goals, err = s.store.ListGoals(gctx, userID)
		return wrap("goals", err)
	})
	g.Go(func() (err error) {
		subs, err = s.store.ListSubscriptions(gctx, userID)
		return wrap("subscriptions", err)
	})
	g.Go(func() (err error) {
		cats, err = s.categories.List(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	d := &Dashboard{
		Period:     period,
		Summary:    core.Summarize(period, txs, debts, goals, subs),
		Categories: core.CategoryBreakdown(period, txs, cats),
		Recent:     recent,
	}
	for _, debt := range debts {
		if debt.Status == core.DebtActive {
			d.Debts = append(d.Debts, DebtView{Debt: debt, Remaining: debt.Remaining(), Progress: core.DebtProgress(debt)})
		}
	}
	for _, goal := range goals {
		if goal.Status == core.GoalActive {
			d.Goals = append(d.Goals, GoalView{Goal: goal, Progress: core.GoalProgress(goal)})
		}
	}
	for _, sub := range subs {
		if sub.Status == core.SubscriptionActive {
			d.Subscriptions = append(d.Subscriptions, sub)
		}
	}
	return d, nil
}

func wrap(what string, err error) error {
	if err != nil {
		return fmt.Errorf("load %s: %w", what, err)
	}
	return nil
}
