package services

import (
	"context"
	"sort"
	"sync"

	"finora/internal/amqp"
	"finora/internal/core"
	"finora/internal/storage"
)

type fakePublisher struct {
	mu     sync.Mutex
	events []*amqp.LedgerEvent
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, e *amqp.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *fakePublisher) types() []amqp.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []amqp.EventType
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// fakeBillingStore keeps subscriptions in memory and records every charge.
type fakeBillingStore struct {
	mu        sync.Mutex
	subs      map[string]*core.Subscription
	charges   []core.Transaction
	conflicts map[string]bool
}

func newFakeBillingStore(subs ...core.Subscription) *fakeBillingStore {
	s := &fakeBillingStore{subs: map[string]*core.Subscription{}, conflicts: map[string]bool{}}
	for i := range subs {
		sub := subs[i]
		s.subs[sub.ID] = &sub
	}
	return s
}

func (s *fakeBillingStore) ListDueSubscriptions(_ context.Context, asOf core.Date, limit int) ([]core.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []core.Subscription
	for _, sub := range s.subs {
		if sub.Status == core.SubscriptionActive && !sub.NextBillingDate.After(asOf.Time) {
			due = append(due, *sub)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].NextBillingDate.Equal(due[j].NextBillingDate.Time) {
			return due[i].ID < due[j].ID
		}
		return due[i].NextBillingDate.Before(due[j].NextBillingDate.Time)
	})
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *fakeBillingStore) BillSubscription(_ context.Context, sub core.Subscription, next core.Date, charges []core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conflicts[sub.ID] {
		return storage.ErrConflict
	}
	s.subs[sub.ID].NextBillingDate = next
	s.charges = append(s.charges, charges...)
	return nil
}

func (s *fakeBillingStore) CancelSubscription(_ context.Context, userID, id string) (*core.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[id]
	if !ok || sub.UserID != userID {
		return nil, storage.ErrNotFound
	}
	sub.Status = core.SubscriptionCancelled
	cp := *sub
	return &cp, nil
}

func (s *fakeBillingStore) status(id string) core.SubscriptionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subs[id].Status
}

// fakeAccounts answers UserExists from a fixed set of deleted users.
type fakeAccounts struct {
	mu      sync.Mutex
	deleted map[string]bool
	err     error
	calls   int
}

func (a *fakeAccounts) UserExists(_ context.Context, userID string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.err != nil {
		return false, a.err
	}
	return !a.deleted[userID], nil
}

func (s *fakeBillingStore) next(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subs[id].NextBillingDate.String()
}

// fakeLedgerStore applies ledger writes to in-memory debts and goals.
type fakeLedgerStore struct {
	txs   map[string]core.Transaction
	debts map[string]*core.Debt
	goals map[string]*core.Goal
	subs  map[string]*core.Subscription
	err   error
}

func newFakeLedgerStore() *fakeLedgerStore {
	return &fakeLedgerStore{
		txs:   map[string]core.Transaction{},
		debts: map[string]*core.Debt{},
		goals: map[string]*core.Goal{},
		subs:  map[string]*core.Subscription{},
	}
}

func (s *fakeLedgerStore) GetTransaction(_ context.Context, userID, id string) (*core.Transaction, error) {
	t, ok := s.txs[id]
	if !ok || t.UserID != userID {
		return nil, storage.ErrNotFound
	}
	return &t, nil
}

func (s *fakeLedgerStore) CreateTransaction(_ context.Context, t *core.Transaction) error {
	if s.err != nil {
		return s.err
	}
	if t.ID == "" {
		t.ID = "tx-" + string(rune('a'+len(s.txs)))
	}
	s.txs[t.ID] = *t
	return nil
}

func (s *fakeLedgerStore) UpdateTransaction(_ context.Context, t *core.Transaction) error {
	old, ok := s.txs[t.ID]
	if !ok || old.UserID != t.UserID {
		return storage.ErrNotFound
	}
	s.txs[t.ID] = *t
	return nil
}

func (s *fakeLedgerStore) DeleteTransaction(_ context.Context, userID, id string) error {
	if t, ok := s.txs[id]; !ok || t.UserID != userID {
		return storage.ErrNotFound
	}
	delete(s.txs, id)
	return nil
}

func (s *fakeLedgerStore) AddDebtPayment(_ context.Context, userID string, p *core.DebtPayment) (*core.Debt, error) {
	d, ok := s.debts[p.DebtID]
	if !ok || d.UserID != userID {
		return nil, storage.ErrNotFound
	}
	if err := d.ApplyPayment(p.Amount); err != nil {
		return nil, err
	}
	out := *d
	return &out, nil
}

func (s *fakeLedgerStore) AddGoalContribution(_ context.Context, userID string, c *core.GoalContribution) (*core.Goal, error) {
	g, ok := s.goals[c.GoalID]
	if !ok || g.UserID != userID {
		return nil, storage.ErrNotFound
	}
	if err := g.Contribute(c.Amount, testNow); err != nil {
		return nil, err
	}
	out := *g
	return &out, nil
}

func (s *fakeLedgerStore) CancelSubscription(_ context.Context, userID, id string) (*core.Subscription, error) {
	sub, ok := s.subs[id]
	if !ok || sub.UserID != userID {
		return nil, storage.ErrNotFound
	}
	if err := sub.Cancel(testNow); err != nil {
		return nil, err
	}
	out := *sub
	return &out, nil
}
