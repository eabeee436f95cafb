package http

import (
	"time"

	"finora/internal/core"
	"finora/internal/services"
)

// JSON shapes of the API. Amounts are integer cents; dates are YYYY-MM-DD
// and omitted when unset.

type transactionView struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	AmountCents int64     `json:"amount_cents"`
	Date        string    `json:"date"`
	CategoryID  string    `json:"category_id,omitempty"`
	Source      string    `json:"source,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func newTransactionView(t core.Transaction) transactionView {
	return transactionView{
		ID:          t.ID,
		Type:        string(t.Type),
		AmountCents: t.Amount.Cents,
		Date:        t.Date.String(),
		CategoryID:  t.CategoryID,
		Source:      t.Source,
		Description: t.Description,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func newTransactionViews(txs []core.Transaction) []transactionView {
	out := make([]transactionView, 0, len(txs))
	for _, t := range txs {
		out = append(out, newTransactionView(t))
	}
	return out
}

type categoryView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Color    string `json:"color"`
	Icon     string `json:"icon"`
	IsSystem bool   `json:"is_system"`
}

func newCategoryViews(cats []core.Category) []categoryView {
	out := make([]categoryView, 0, len(cats))
	for _, c := range cats {
		out = append(out, categoryView{ID: c.ID, Name: c.Name, Color: c.Color, Icon: c.Icon, IsSystem: c.IsSystem})
	}
	return out
}

type debtView struct {
	ID             string    `json:"id"`
	Creditor       string    `json:"creditor"`
	Description    string    `json:"description,omitempty"`
	TotalCents     int64     `json:"total_amount_cents"`
	PaidCents      int64     `json:"paid_amount_cents"`
	RemainingCents int64     `json:"remaining_cents"`
	Progress       float64   `json:"progress"`
	DueDate        string    `json:"due_date,omitempty"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

func newDebtView(d core.Debt) debtView {
	return debtView{
		ID:             d.ID,
		Creditor:       d.Creditor,
		Description:    d.Description,
		TotalCents:     d.TotalAmount.Cents,
		PaidCents:      d.PaidAmount.Cents,
		RemainingCents: d.Remaining().Cents,
		Progress:       core.DebtProgress(d),
		DueDate:        d.DueDate.String(),
		Status:         string(d.Status),
		CreatedAt:      d.CreatedAt,
	}
}

type paymentView struct {
	ID          string    `json:"id"`
	ParentID    string    `json:"parent_id"`
	AmountCents int64     `json:"amount_cents"`
	Date        string    `json:"date"`
	Note        string    `json:"note,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func newDebtPaymentView(p core.DebtPayment) paymentView {
	return paymentView{ID: p.ID, ParentID: p.DebtID, AmountCents: p.Amount.Cents, Date: p.Date.String(), Note: p.Note, CreatedAt: p.CreatedAt}
}

func newContributionView(c core.GoalContribution) paymentView {
	return paymentView{ID: c.ID, ParentID: c.GoalID, AmountCents: c.Amount.Cents, Date: c.Date.String(), Note: c.Note, CreatedAt: c.CreatedAt}
}

type goalView struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Description  string     `json:"description,omitempty"`
	TargetCents  int64      `json:"target_amount_cents"`
	CurrentCents int64      `json:"current_amount_cents"`
	Progress     float64    `json:"progress"`
	TargetDate   string     `json:"target_date,omitempty"`
	Status       string     `json:"status"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

func newGoalView(g core.Goal) goalView {
	return goalView{
		ID:           g.ID,
		Name:         g.Name,
		Description:  g.Description,
		TargetCents:  g.TargetAmount.Cents,
		CurrentCents: g.CurrentAmount.Cents,
		Progress:     core.GoalProgress(g),
		TargetDate:   g.TargetDate.String(),
		Status:       string(g.Status),
		CompletedAt:  g.CompletedAt,
		CreatedAt:    g.CreatedAt,
	}
}

type subscriptionView struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Description     string     `json:"description,omitempty"`
	AmountCents     int64      `json:"amount_cents"`
	Frequency       string     `json:"frequency"`
	NextBillingDate string     `json:"next_billing_date"`
	Status          string     `json:"status"`
	CancelledAt     *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func newSubscriptionView(s core.Subscription) subscriptionView {
	return subscriptionView{
		ID:              s.ID,
		Name:            s.Name,
		Description:     s.Description,
		AmountCents:     s.Amount.Cents,
		Frequency:       string(s.Frequency),
		NextBillingDate: s.NextBillingDate.String(),
		Status:          string(s.Status),
		CancelledAt:     s.CancelledAt,
		CreatedAt:       s.CreatedAt,
	}
}

type profileView struct {
	UserID         string `json:"user_id"`
	Email          string `json:"email,omitempty"`
	Name           string `json:"name"`
	CurrencySymbol string `json:"currency_symbol"`
}

type summaryView struct {
	BalanceCents                 int64 `json:"balance_cents"`
	TotalIncomeCents             int64 `json:"total_income_cents"`
	TotalExpensesCents           int64 `json:"total_expenses_cents"`
	IncomeCount                  int   `json:"income_count"`
	ExpenseCount                 int   `json:"expense_count"`
	ActiveDebts                  int   `json:"active_debts"`
	ActiveGoals                  int   `json:"active_goals"`
	ActiveSubscriptions          int   `json:"active_subscriptions"`
	MonthlySubscriptionCostCents int64 `json:"monthly_subscription_cost_cents"`
}

type categorySummaryView struct {
	CategoryID string  `json:"category_id"`
	Name       string  `json:"name"`
	Color      string  `json:"color,omitempty"`
	TotalCents int64   `json:"total_cents"`
	Percentage float64 `json:"percentage"`
	Count      int     `json:"count"`
}

type dashboardView struct {
	PeriodStart   string                `json:"period_start"`
	PeriodEnd     string                `json:"period_end"`
	Summary       summaryView           `json:"summary"`
	Categories    []categorySummaryView `json:"categories"`
	Recent        []transactionView     `json:"recent_transactions"`
	Debts         []debtView            `json:"debts"`
	Goals         []goalView            `json:"goals"`
	Subscriptions []subscriptionView    `json:"subscriptions"`
}

func newDashboardView(d *services.Dashboard) dashboardView {
	sum := d.Summary
	v := dashboardView{
		PeriodStart: d.Period.Start.String(),
		PeriodEnd:   d.Period.End.String(),
		Summary: summaryView{
			BalanceCents:                 sum.Balance.Cents,
			TotalIncomeCents:             sum.TotalIncome.Cents,
			TotalExpensesCents:           sum.TotalExpenses.Cents,
			IncomeCount:                  sum.IncomeCount,
			ExpenseCount:                 sum.ExpenseCount,
			ActiveDebts:                  sum.ActiveDebts,
			ActiveGoals:                  sum.ActiveGoals,
			ActiveSubscriptions:          sum.ActiveSubscriptions,
			MonthlySubscriptionCostCents: sum.MonthlySubscriptionCost.Cents,
		},
		Categories:    make([]categorySummaryView, 0, len(d.Categories)),
		Recent:        newTransactionViews(d.Recent),
		Debts:         make([]debtView, 0, len(d.Debts)),
		Goals:         make([]goalView, 0, len(d.Goals)),
		Subscriptions: make([]subscriptionView, 0, len(d.Subscriptions)),
	}
	for _, c := range d.Categories {
		v.Categories = append(v.Categories, categorySummaryView{
			CategoryID: c.CategoryID,
			Name:       c.Name,
			Color:      c.Color,
			TotalCents: c.Total.Cents,
			Percentage: c.Percentage,
			Count:      c.Count,
		})
	}
	for _, dv := range d.Debts {
		v.Debts = append(v.Debts, newDebtView(dv.Debt))
	}
	for _, gv := range d.Goals {
		v.Goals = append(v.Goals, newGoalView(gv.Goal))
	}
	for _, s := range d.Subscriptions {
		v.Subscriptions = append(v.Subscriptions, newSubscriptionView(s))
	}
	return v
}
