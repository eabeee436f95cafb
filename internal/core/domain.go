package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"

	DebtActive DebtStatus = "active"
	DebtPaid   DebtStatus = "paid"

	GoalActive    GoalStatus = "active"
	GoalCompleted GoalStatus = "completed"

	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"

	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

// DefaultCurrencySymbol is assigned to profiles created at sign-up.
const DefaultCurrencySymbol = "$"

const maxTextLength = 200

type (
	TransactionType    string
	DebtStatus         string
	GoalStatus         string
	Frequency          string
	SubscriptionStatus string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Profile struct {
		ID             string
		UserID         string
		Name           string // empty when the user gave none
		CurrencySymbol string
		CreatedAt      time.Time
		UpdatedAt      time.Time
	}

	// Category is either system-provided (UserID empty) or owned by one user.
	Category struct {
		ID        string
		UserID    string
		Name      string
		Color     string
		Icon      string
		IsSystem  bool
		CreatedAt time.Time
	}

	Transaction struct {
		ID          string
		UserID      string
		Type        TransactionType
		Amount      Money
		Date        Date
		CategoryID  string // empty means uncategorized
		Source      string
		Description string
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}

	Debt struct {
		ID          string
		UserID      string
		Creditor    string
		Description string
		TotalAmount Money
		PaidAmount  Money
		DueDate     Date
		Status      DebtStatus
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}

	DebtPayment struct {
		ID        string
		DebtID    string
		Amount    Money
		Date      Date
		Note      string
		CreatedAt time.Time
	}

	Goal struct {
		ID            string
		UserID        string
		Name          string
		Description   string
		TargetAmount  Money
		CurrentAmount Money
		TargetDate    Date
		Status        GoalStatus
		CompletedAt   *time.Time
		CreatedAt     time.Time
	}

	GoalContribution struct {
		ID        string
		GoalID    string
		Amount    Money
		Date      Date
		Note      string
		CreatedAt time.Time
	}

	Subscription struct {
		ID              string
		UserID          string
		Name            string
		Description     string
		Amount          Money
		Frequency       Frequency
		NextBillingDate Date
		Status          SubscriptionStatus
		CancelledAt     *time.Time
		CreatedAt       time.Time
	}
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidType        = errors.New("invalid transaction type")
	ErrInvalidStatus      = errors.New("invalid status")
	ErrInvalidFrequency   = errors.New("invalid frequency")
	ErrEmptyName          = errors.New("empty name")
	ErrTextTooLong        = errors.New("text too long (max 200 characters)")
	ErrPaidExceedsTotal   = errors.New("paid amount exceeds total amount")
	ErrOverpayment        = errors.New("payment exceeds remaining balance")
	ErrAlreadyCancelled   = errors.New("subscription already cancelled")
	ErrSubscriptionClosed = errors.New("subscription is not active")
)

func (t TransactionType) Valid() bool  { return t == Income || t == Expense }
func (s DebtStatus) Valid() bool       { return s == DebtActive || s == DebtPaid }
func (s GoalStatus) Valid() bool       { return s == GoalActive || s == GoalCompleted }
func (f Frequency) Valid() bool        { return f == Monthly || f == Yearly }
func (s SubscriptionStatus) Valid() bool {
	return s == SubscriptionActive || s == SubscriptionCancelled
}

// NewDate creates a Date at midnight UTC.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return NewDate(y, m, d)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// String renders the date as YYYY-MM-DD, or "" for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(time.DateOnly)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Validate rejects zero and negative amounts.
func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }
func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }

// NewProfile returns the profile created alongside a new account.
func NewProfile(userID, name string) Profile {
	return Profile{
		UserID:         userID,
		Name:           strings.TrimSpace(name),
		CurrencySymbol: DefaultCurrencySymbol,
	}
}

func (p Profile) Validate() error {
	if strings.TrimSpace(p.UserID) == "" {
		return errors.New("profile without user")
	}
	if len(p.Name) > maxTextLength {
		return ErrTextTooLong
	}
	if s := strings.TrimSpace(p.CurrencySymbol); s == "" || len(s) > 8 {
		return errors.New("invalid currency symbol")
	}
	return nil
}

// FirstName returns the first word of the profile name, or fallback.
func (p *Profile) FirstName(fallback string) string {
	if p == nil {
		return fallback
	}
	if fields := strings.Fields(p.Name); len(fields) > 0 {
		return fields[0]
	}
	return fallback
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if len(c.Name) > 50 {
		return ErrTextTooLong
	}
	return nil
}

func (t Transaction) Validate() error {
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if len(t.Description) > maxTextLength || len(t.Source) > maxTextLength {
		return ErrTextTooLong
	}
	return nil
}

// Signed returns the amount with the sign implied by the transaction type.
func (t Transaction) Signed() Money {
	if t.Type == Expense {
		return Money{Cents: -t.Amount.Cents}
	}
	return t.Amount
}

func (d Debt) Validate() error {
	if strings.TrimSpace(d.Creditor) == "" {
		return ErrEmptyName
	}
	if len(d.Creditor) > maxTextLength || len(d.Description) > maxTextLength {
		return ErrTextTooLong
	}
	if err := d.TotalAmount.Validate(); err != nil {
		return err
	}
	if d.PaidAmount.Cents < 0 {
		return ErrInvalidAmount
	}
	if d.PaidAmount.Cents > d.TotalAmount.Cents {
		return ErrPaidExceedsTotal
	}
	if !d.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}

// Remaining is the outstanding balance, never negative.
func (d Debt) Remaining() Money {
	if d.PaidAmount.Cents >= d.TotalAmount.Cents {
		return Money{}
	}
	return d.TotalAmount.Sub(d.PaidAmount)
}

// Reconcile derives the status from the amounts. Status is stored but
// always rewritten from paid/total on every write.
func (d *Debt) Reconcile() {
	if d.PaidAmount.Cents >= d.TotalAmount.Cents {
		d.Status = DebtPaid
		return
	}
	d.Status = DebtActive
}

// ApplyPayment adds a payment to the running total.
func (d *Debt) ApplyPayment(amount Money) error {
	if err := amount.Validate(); err != nil {
		return err
	}
	if amount.Cents > d.Remaining().Cents {
		return ErrOverpayment
	}
	d.PaidAmount = d.PaidAmount.Add(amount)
	d.Reconcile()
	return nil
}

func (g Goal) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return ErrEmptyName
	}
	if len(g.Name) > maxTextLength || len(g.Description) > maxTextLength {
		return ErrTextTooLong
	}
	if err := g.TargetAmount.Validate(); err != nil {
		return err
	}
	if g.CurrentAmount.Cents < 0 {
		return ErrInvalidAmount
	}
	if !g.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}

// Reconcile sets status and completed_at from current vs target. A goal
// that drops back below its target reverts to active.
func (g *Goal) Reconcile(now time.Time) {
	if g.CurrentAmount.Cents >= g.TargetAmount.Cents {
		g.Status = GoalCompleted
		if g.CompletedAt == nil {
			t := now.UTC()
			g.CompletedAt = &t
		}
		return
	}
	g.Status = GoalActive
	g.CompletedAt = nil
}

// Contribute adds to the saved amount. Contributions past the target are
// allowed; progress is clamped when reported.
func (g *Goal) Contribute(amount Money, now time.Time) error {
	if err := amount.Validate(); err != nil {
		return err
	}
	g.CurrentAmount = g.CurrentAmount.Add(amount)
	g.Reconcile(now)
	return nil
}

func (s Subscription) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return ErrEmptyName
	}
	if len(s.Name) > maxTextLength || len(s.Description) > maxTextLength {
		return ErrTextTooLong
	}
	if err := s.Amount.Validate(); err != nil {
		return err
	}
	if !s.Frequency.Valid() {
		return ErrInvalidFrequency
	}
	if err := s.NextBillingDate.Validate(); err != nil {
		return err
	}
	if !s.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}

// Cancel moves an active subscription to cancelled.
func (s *Subscription) Cancel(now time.Time) error {
	if s.Status == SubscriptionCancelled {
		return ErrAlreadyCancelled
	}
	t := now.UTC()
	s.Status = SubscriptionCancelled
	s.CancelledAt = &t
	return nil
}
