package core

import (
	"sort"
	"time"
)

// UncategorizedID groups expense transactions without a category.
const UncategorizedID = "uncategorized"

// Period is a half-open date range [Start, End).
type Period struct {
	Start Date
	End   Date
}

// MonthPeriod returns the calendar month containing t.
func MonthPeriod(t time.Time) Period {
	y, m, _ := t.UTC().Date()
	start := NewDate(y, m, 1)
	return Period{Start: start, End: Date{Time: start.AddDate(0, 1, 0)}}
}

// Contains reports whether d falls inside the period.
func (p Period) Contains(d Date) bool {
	return !d.Before(p.Start.Time) && d.Before(p.End.Time)
}

// DashboardSummary is the headline figures for a period.
type DashboardSummary struct {
	Balance                 Money
	TotalIncome             Money
	TotalExpenses           Money
	IncomeCount             int
	ExpenseCount            int
	ActiveDebts             int
	ActiveGoals             int
	ActiveSubscriptions     int
	MonthlySubscriptionCost Money
}

// CategorySummary is one row of the expense breakdown.
type CategorySummary struct {
	CategoryID string
	Name       string
	Color      string
	Icon       string
	Total      Money
	Percentage float64
	Count      int
}

// Summarize computes the dashboard figures. Transactions outside the period
// are ignored; debts, goals and subscriptions are counted by status.
func Summarize(p Period, txs []Transaction, debts []Debt, goals []Goal, subs []Subscription) DashboardSummary {
	var s DashboardSummary
	for _, t := range txs {
		if !p.Contains(t.Date) {
			continue
		}
		switch t.Type {
		case Income:
			s.TotalIncome = s.TotalIncome.Add(t.Amount)
			s.IncomeCount++
		case Expense:
			s.TotalExpenses = s.TotalExpenses.Add(t.Amount)
			s.ExpenseCount++
		}
	}
	s.Balance = s.TotalIncome.Sub(s.TotalExpenses)

	for _, d := range debts {
		if d.Status == DebtActive {
			s.ActiveDebts++
		}
	}
	for _, g := range goals {
		if g.Status == GoalActive {
			s.ActiveGoals++
		}
	}
	s.ActiveSubscriptions, s.MonthlySubscriptionCost = MonthlySubscriptionCost(subs)
	return s
}

// MonthlySubscriptionCost sums active subscriptions as a monthly figure.
// Yearly amounts are summed first and divided by twelve once, rounding
// half-up, so many small yearly plans do not accumulate rounding error.
func MonthlySubscriptionCost(subs []Subscription) (int, Money) {
	var active int
	var monthly, yearly int64
	for _, sub := range subs {
		if sub.Status != SubscriptionActive {
			continue
		}
		active++
		switch sub.Frequency {
		case Monthly:
			monthly += sub.Amount.Cents
		case Yearly:
			yearly += sub.Amount.Cents
		}
	}
	return active, Money{Cents: monthly + (yearly+6)/12}
}

// CategoryBreakdown groups the period's expenses by category, largest first.
// Percentages are shares of total expenses and are all zero when there are
// no expenses. Ties are ordered by name to keep output stable.
func CategoryBreakdown(p Period, txs []Transaction, categories []Category) []CategorySummary {
	byID := make(map[string]Category, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
	}

	groups := make(map[string]*CategorySummary)
	var total int64
	for _, t := range txs {
		if t.Type != Expense || !p.Contains(t.Date) {
			continue
		}
		key := t.CategoryID
		if key == "" {
			key = UncategorizedID
		}
		g, ok := groups[key]
		if !ok {
			g = &CategorySummary{CategoryID: key, Name: "Sin categoría", Color: "#94a3b8", Icon: "tag"}
			if c, found := byID[key]; found {
				g.Name, g.Color, g.Icon = c.Name, c.Color, c.Icon
			}
			groups[key] = g
		}
		g.Total = g.Total.Add(t.Amount)
		g.Count++
		total += t.Amount.Cents
	}

	out := make([]CategorySummary, 0, len(groups))
	for _, g := range groups {
		if total > 0 {
			g.Percentage = float64(g.Total.Cents) / float64(total) * 100
		}
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total.Cents != out[j].Total.Cents {
			return out[i].Total.Cents > out[j].Total.Cents
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Progress returns current/target as a percentage clamped to [0, 100].
// A non-positive target reports 0.
func Progress(current, target Money) float64 {
	if target.Cents <= 0 || current.Cents <= 0 {
		return 0
	}
	if current.Cents >= target.Cents {
		return 100
	}
	return float64(current.Cents) / float64(target.Cents) * 100
}

func DebtProgress(d Debt) float64 { return Progress(d.PaidAmount, d.TotalAmount) }

func GoalProgress(g Goal) float64 { return Progress(g.CurrentAmount, g.TargetAmount) }
