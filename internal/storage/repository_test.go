package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"finora/internal/core"
)

const systemFood = "00000000-0000-4000-8000-000000000001"

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "finora.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func money(cents int64) core.Money { return core.Money{Cents: cents} }

func TestProfiles(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	userID := uuid.NewString()

	if _, err := repo.GetProfile(ctx, userID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing profile: got %v, want ErrNotFound", err)
	}

	p := core.NewProfile(userID, "Ana María")
	if err := repo.CreateProfile(ctx, &p); err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.ID == "" || p.CreatedAt.IsZero() {
		t.Fatalf("create did not fill id/timestamps: %+v", p)
	}

	dup := core.NewProfile(userID, "Otra")
	if err := repo.CreateProfile(ctx, &dup); err == nil {
		t.Fatal("a user can only have one profile")
	}

	p.Name = ""
	p.CurrencySymbol = "€"
	if err := repo.UpdateProfile(ctx, &p); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := repo.GetProfile(ctx, userID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "" || got.CurrencySymbol != "€" || got.FirstName("Usuario") != "Usuario" {
		t.Fatalf("unexpected profile %+v", got)
	}
}

func TestCategoriesVisibility(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	ana, bob := uuid.NewString(), uuid.NewString()

	own := core.Category{UserID: ana, Name: "  Mascotas "}
	if err := repo.CreateCategory(ctx, &own); err != nil {
		t.Fatalf("create: %v", err)
	}
	if own.Name != "Mascotas" || own.Color == "" || own.IsSystem {
		t.Fatalf("unexpected category %+v", own)
	}

	anaCats, err := repo.ListCategories(ctx, ana)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(anaCats) != 11 {
		t.Fatalf("ana sees %d categories, want 10 system + 1 own", len(anaCats))
	}
	if !anaCats[0].IsSystem || anaCats[len(anaCats)-1].ID != own.ID {
		t.Fatal("system categories should come first")
	}

	bobCats, _ := repo.ListCategories(ctx, bob)
	if len(bobCats) != 10 {
		t.Fatalf("bob sees %d categories, want 10", len(bobCats))
	}
	if _, err := repo.GetCategory(ctx, bob, own.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign category: got %v", err)
	}
	if err := repo.DeleteCategory(ctx, ana, systemFood); !errors.Is(err, ErrNotFound) {
		t.Fatalf("system categories cannot be deleted, got %v", err)
	}
	if err := repo.DeleteCategory(ctx, bob, own.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign delete: got %v", err)
	}
}

func TestTransactionsFilterAndOwnership(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	ana, bob := uuid.NewString(), uuid.NewString()

	seed := []core.Transaction{
		{UserID: ana, Type: core.Income, Amount: money(300000), Date: core.NewDate(2025, 3, 1)},
		{UserID: ana, Type: core.Expense, Amount: money(4550), Date: core.NewDate(2025, 3, 5), CategoryID: systemFood},
		{UserID: ana, Type: core.Expense, Amount: money(1200), Date: core.NewDate(2025, 3, 31)},
		{UserID: ana, Type: core.Expense, Amount: money(999), Date: core.NewDate(2025, 4, 1)},
		{UserID: bob, Type: core.Expense, Amount: money(5000), Date: core.NewDate(2025, 3, 10)},
	}
	for i := range seed {
		if err := repo.CreateTransaction(ctx, &seed[i]); err != nil {
			t.Fatalf("seed %d: %v", i, err)
		}
	}

	march := core.MonthPeriod(time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC))
	tests := []struct {
		name   string
		filter TransactionFilter
		want   int
	}{
		{"all", TransactionFilter{}, 4},
		{"period", TransactionFilter{Period: march}, 3},
		{"expenses in period", TransactionFilter{Period: march, Type: core.Expense}, 2},
		{"category", TransactionFilter{CategoryID: systemFood}, 1},
		{"uncategorized", TransactionFilter{CategoryID: core.UncategorizedID}, 3},
		{"limit", TransactionFilter{Limit: 2}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.ListTransactions(ctx, ana, tt.filter)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(got) != tt.want {
				t.Fatalf("got %d transactions, want %d", len(got), tt.want)
			}
		})
	}

	recent, _ := repo.ListTransactions(ctx, ana, TransactionFilter{Limit: 1})
	if recent[0].Date.String() != "2025-04-01" {
		t.Fatalf("newest first, got %s", recent[0].Date)
	}

	if _, err := repo.GetTransaction(ctx, bob, seed[0].ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign read: got %v", err)
	}
	foreign := seed[0]
	foreign.UserID = bob
	if err := repo.UpdateTransaction(ctx, &foreign); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign update: got %v", err)
	}
	if err := repo.DeleteTransaction(ctx, bob, seed[0].ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign delete: got %v", err)
	}
}

func TestTransactionCategoryRules(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	ana, bob := uuid.NewString(), uuid.NewString()

	bobs := core.Category{UserID: bob, Name: "Privada"}
	if err := repo.CreateCategory(ctx, &bobs); err != nil {
		t.Fatalf("create category: %v", err)
	}

	tx := core.Transaction{UserID: ana, Type: core.Expense, Amount: money(100), Date: core.NewDate(2025, 1, 2), CategoryID: bobs.ID}
	if err := repo.CreateTransaction(ctx, &tx); !errors.Is(err, ErrCategoryNotFound) {
		t.Fatalf("foreign category: got %v", err)
	}

	invalid := core.Transaction{UserID: ana, Type: core.Expense, Amount: money(0), Date: core.NewDate(2025, 1, 2)}
	if err := repo.CreateTransaction(ctx, &invalid); !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("zero amount: got %v", err)
	}

	own := core.Category{UserID: ana, Name: "Regalos"}
	if err := repo.CreateCategory(ctx, &own); err != nil {
		t.Fatalf("create category: %v", err)
	}
	tx.CategoryID = own.ID
	if err := repo.CreateTransaction(ctx, &tx); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.DeleteCategory(ctx, ana, own.ID); err != nil {
		t.Fatalf("delete category: %v", err)
	}
	got, err := repo.GetTransaction(ctx, ana, tx.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.CategoryID != "" {
		t.Fatalf("deleting a category should uncategorize its transactions, got %q", got.CategoryID)
	}
}

func TestDebtPayments(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	ana, bob := uuid.NewString(), uuid.NewString()

	debt := core.Debt{UserID: ana, Creditor: "Banco", TotalAmount: money(10000)}
	if err := repo.CreateDebt(ctx, &debt); err != nil {
		t.Fatalf("create: %v", err)
	}
	if debt.Status != core.DebtActive {
		t.Fatalf("status = %s", debt.Status)
	}

	pay := func(userID string, cents int64) (*core.Debt, error) {
		return repo.AddDebtPayment(ctx, userID, &core.DebtPayment{DebtID: debt.ID, Amount: money(cents), Date: core.NewDate(2025, 2, 1)})
	}

	if _, err := pay(bob, 100); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign payment: got %v", err)
	}
	if _, err := pay(ana, 10001); !errors.Is(err, core.ErrOverpayment) {
		t.Fatalf("overpayment: got %v", err)
	}
	d, err := pay(ana, 4000)
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if d.PaidAmount.Cents != 4000 || d.Status != core.DebtActive {
		t.Fatalf("after partial payment %+v", d)
	}

	d.TotalAmount = money(3000)
	if err := repo.UpdateDebt(ctx, d); !errors.Is(err, core.ErrPaidExceedsTotal) {
		t.Fatalf("total below paid: got %v", err)
	}

	d, err = pay(ana, 6000)
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if d.Status != core.DebtPaid || d.Remaining().Cents != 0 {
		t.Fatalf("debt should be paid, got %+v", d)
	}

	payments, err := repo.ListDebtPayments(ctx, ana, debt.ID)
	if err != nil || len(payments) != 2 {
		t.Fatalf("payments = %d, err = %v", len(payments), err)
	}
	if others, _ := repo.ListDebtPayments(ctx, bob, debt.ID); len(others) != 0 {
		t.Fatal("payments must not leak to other users")
	}

	d.TotalAmount = money(15000)
	if err := repo.UpdateDebt(ctx, d); err != nil {
		t.Fatalf("raise total: %v", err)
	}
	if d.Status != core.DebtActive || d.PaidAmount.Cents != 10000 {
		t.Fatalf("raising the total reopens the debt, got %+v", d)
	}

	if err := repo.DeleteDebt(ctx, ana, debt.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if payments, _ := repo.ListDebtPayments(ctx, ana, debt.ID); len(payments) != 0 {
		t.Fatal("payments should cascade")
	}
}

func TestGoalContributions(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	ana := uuid.NewString()
	now := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	repo.Queries.now = func() time.Time { return now }

	goal := core.Goal{UserID: ana, Name: "Viaje", TargetAmount: money(50000), TargetDate: core.NewDate(2025, 12, 1)}
	if err := repo.CreateGoal(ctx, &goal); err != nil {
		t.Fatalf("create: %v", err)
	}

	g, err := repo.AddGoalContribution(ctx, ana, &core.GoalContribution{GoalID: goal.ID, Amount: money(20000), Date: core.NewDate(2025, 6, 1)})
	if err != nil {
		t.Fatalf("contribute: %v", err)
	}
	if g.Status != core.GoalActive || g.CompletedAt != nil {
		t.Fatalf("goal should still be active: %+v", g)
	}

	g, err = repo.AddGoalContribution(ctx, ana, &core.GoalContribution{GoalID: goal.ID, Amount: money(35000), Date: core.NewDate(2025, 6, 2), Note: " bono "})
	if err != nil {
		t.Fatalf("contribute: %v", err)
	}
	if g.Status != core.GoalCompleted || g.CompletedAt == nil || !g.CompletedAt.Equal(now) {
		t.Fatalf("goal should be completed at %v: %+v", now, g)
	}
	if core.GoalProgress(*g) != 100 {
		t.Fatalf("progress = %v", core.GoalProgress(*g))
	}

	stored, err := repo.GetGoal(ctx, ana, goal.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.CurrentAmount.Cents != 55000 || stored.TargetDate.String() != "2025-12-01" {
		t.Fatalf("unexpected stored goal %+v", stored)
	}

	stored.TargetAmount = money(100000)
	if err := repo.UpdateGoal(ctx, stored); err != nil {
		t.Fatalf("update: %v", err)
	}
	if stored.Status != core.GoalActive || stored.CompletedAt != nil {
		t.Fatalf("raising the target reopens the goal: %+v", stored)
	}

	contributions, err := repo.ListGoalContributions(ctx, ana, goal.ID)
	if err != nil || len(contributions) != 2 {
		t.Fatalf("contributions = %d, err = %v", len(contributions), err)
	}
	if contributions[0].Note != "bono" {
		t.Fatalf("newest contribution first, got %+v", contributions[0])
	}
}

func TestSubscriptionsBilling(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	ana, bob := uuid.NewString(), uuid.NewString()

	netflix := core.Subscription{UserID: ana, Name: "Netflix", Amount: money(1599), Frequency: core.Monthly, NextBillingDate: core.NewDate(2025, 1, 31)}
	domain := core.Subscription{UserID: bob, Name: "Dominio", Amount: money(1200), Frequency: core.Yearly, NextBillingDate: core.NewDate(2025, 3, 1)}
	later := core.Subscription{UserID: bob, Name: "Gym", Amount: money(3000), Frequency: core.Monthly, NextBillingDate: core.NewDate(2025, 6, 1)}
	for _, s := range []*core.Subscription{&netflix, &domain, &later} {
		if err := repo.CreateSubscription(ctx, s); err != nil {
			t.Fatalf("create %s: %v", s.Name, err)
		}
	}

	due, err := repo.ListDueSubscriptions(ctx, core.NewDate(2025, 3, 1), 10)
	if err != nil {
		t.Fatalf("list due: %v", err)
	}
	if len(due) != 2 || due[0].ID != netflix.ID || due[1].ID != domain.ID {
		t.Fatalf("unexpected due list %+v", due)
	}

	charge := core.Transaction{UserID: ana, Type: core.Expense, Amount: netflix.Amount, Date: netflix.NextBillingDate, Source: "Netflix"}
	if err := repo.BillSubscription(ctx, due[0], core.NewDate(2025, 2, 28), []core.Transaction{charge}); err != nil {
		t.Fatalf("bill: %v", err)
	}
	if err := repo.BillSubscription(ctx, due[0], core.NewDate(2025, 2, 28), []core.Transaction{charge}); !errors.Is(err, ErrConflict) {
		t.Fatalf("stale bill: got %v, want ErrConflict", err)
	}
	txs, _ := repo.ListTransactions(ctx, ana, TransactionFilter{})
	if len(txs) != 1 {
		t.Fatalf("a conflicting bill must not record charges, got %d", len(txs))
	}

	cancelled, err := repo.CancelSubscription(ctx, ana, netflix.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != core.SubscriptionCancelled || cancelled.CancelledAt == nil {
		t.Fatalf("unexpected cancelled subscription %+v", cancelled)
	}
	if _, err := repo.CancelSubscription(ctx, ana, netflix.ID); !errors.Is(err, core.ErrAlreadyCancelled) {
		t.Fatalf("second cancel: got %v", err)
	}
	if _, err := repo.CancelSubscription(ctx, ana, domain.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign cancel: got %v", err)
	}

	due, _ = repo.ListDueSubscriptions(ctx, core.NewDate(2025, 12, 31), 10)
	for _, s := range due {
		if s.ID == netflix.ID {
			t.Fatal("cancelled subscriptions are never due")
		}
	}
}

func TestRebind(t *testing.T) {
	q := New(nil, Postgres)
	got := q.rebind("SELECT a FROM t WHERE b = ? AND c = ? LIMIT ?")
	if got != "SELECT a FROM t WHERE b = $1 AND c = $2 LIMIT $3" {
		t.Fatalf("rebind = %q", got)
	}
	if s := New(nil, SQLite).rebind("x = ?"); s != "x = ?" {
		t.Fatalf("sqlite must keep placeholders, got %q", s)
	}
}
