package http

import (
	"net/http"

	"finora/internal/core"
	"finora/internal/log"
)

func (s *Server) handleListDebts(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	debts, err := s.repo.ListDebts(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	out := make([]debtView, 0, len(debts))
	for _, d := range debts {
		out = append(out, newDebtView(d))
	}
	NewResponse().JSON(out).Write(w)
}

func (s *Server) handleGetDebt(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	d, err := s.repo.GetDebt(r.Context(), user.ID, id)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	NewResponse().JSON(newDebtView(*d)).Write(w)
}

// handleCreateDebt records a debt. paid_amount may carry what was already
// paid before tracking started; status follows from the amounts.
func (s *Server) handleCreateDebt(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	p, ok := parseBody(w, r)
	if !ok {
		return
	}

	d := core.Debt{
		UserID:      user.ID,
		Creditor:    p.Get("creditor"),
		Description: p.Get("description"),
	}
	var err error
	if d.TotalAmount, err = p.Amount("total_amount"); err != nil {
		validationError(w, err)
		return
	}
	if d.PaidAmount, err = p.OptionalAmount("paid_amount"); err != nil {
		validationError(w, err)
		return
	}
	if d.DueDate, err = p.OptionalDate("due_date"); err != nil {
		validationError(w, err)
		return
	}
	d.Reconcile()
	if err := d.Validate(); err != nil {
		validationError(w, err)
		return
	}

	if err := s.repo.CreateDebt(r.Context(), &d); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	Created(newDebtView(d)).Write(w)
}

// handleUpdateDebt edits creditor, description, total and due date. The
// paid amount only moves through payments.
func (s *Server) handleUpdateDebt(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, ok := parseBody(w, r)
	if !ok {
		return
	}

	d, err := s.repo.GetDebt(r.Context(), user.ID, id)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	if p.Has("creditor") {
		d.Creditor = p.Get("creditor")
	}
	if p.Has("description") {
		d.Description = p.Get("description")
	}
	if p.Has("total_amount") {
		if d.TotalAmount, err = p.Amount("total_amount"); err != nil {
			validationError(w, err)
			return
		}
	}
	if p.Has("due_date") {
		if d.DueDate, err = p.OptionalDate("due_date"); err != nil {
			validationError(w, err)
			return
		}
	}

	if err := s.repo.UpdateDebt(r.Context(), d); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	NewResponse().JSON(newDebtView(*d)).Write(w)
}

func (s *Server) handleDeleteDebt(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.repo.DeleteDebt(r.Context(), user.ID, id); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	NoContent().Write(w)
}

func (s *Server) handleListDebtPayments(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if _, err := s.repo.GetDebt(r.Context(), user.ID, id); err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	payments, err := s.repo.ListDebtPayments(r.Context(), user.ID, id)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	out := make([]paymentView, 0, len(payments))
	for _, p := range payments {
		out = append(out, newDebtPaymentView(p))
	}
	NewResponse().JSON(out).Write(w)
}

// handleCreateDebtPayment appends a payment and answers with the payment
// and the updated debt.
func (s *Server) handleCreateDebtPayment(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, ok := parseBody(w, r)
	if !ok {
		return
	}

	payment := core.DebtPayment{DebtID: id, Note: p.Get("note")}
	var err error
	if payment.Amount, err = p.Amount("amount"); err != nil {
		validationError(w, err)
		return
	}
	if payment.Date, err = p.Date("date", core.DateOf(s.now())); err != nil {
		validationError(w, err)
		return
	}

	d, err := s.ledger.RecordDebtPayment(r.Context(), user.ID, &payment)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	Created(map[string]any{
		"payment": newDebtPaymentView(payment),
		"debt":    newDebtView(*d),
	}).Write(w)
}
