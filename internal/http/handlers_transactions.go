package http

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"finora/internal/core"
	"finora/internal/log"
	"finora/internal/storage"
)

const (
	defaultTransactionLimit = 100
	maxTransactionLimit     = 500
)

// handleListTransactions lists the user's transactions, newest first.
// Filters: ?year=&month=, ?type=, ?category_id= (or "uncategorized"), ?limit=.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	f := storage.TransactionFilter{
		Limit: ParseLimit(q, defaultTransactionLimit, maxTransactionLimit),
	}
	if hasPeriod(q) {
		f.Period = ParsePeriod(q, s.now())
	}
	if t := core.TransactionType(strings.TrimSpace(q.Get("type"))); t != "" {
		if !t.Valid() {
			validationError(w, core.ErrInvalidType)
			return
		}
		f.Type = t
	}
	if c := strings.TrimSpace(q.Get("category_id")); c != "" {
		f.CategoryID = c
	}

	txs, err := s.repo.ListTransactions(r.Context(), user.ID, f)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	NewResponse().JSON(newTransactionViews(txs)).Write(w)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	t, err := s.repo.GetTransaction(r.Context(), user.ID, id)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	NewResponse().JSON(newTransactionView(*t)).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	p, ok := parseBody(w, r)
	if !ok {
		return
	}

	t := core.Transaction{UserID: user.ID}
	if err := s.applyTransactionFields(p, &t, true); err != nil {
		validationError(w, err)
		return
	}
	if err := s.ledger.CreateTransaction(r.Context(), &t); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	Created(newTransactionView(t)).Write(w)
}

// handleUpdateTransaction applies the submitted fields over the stored
// transaction.
func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
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

	t, err := s.repo.GetTransaction(r.Context(), user.ID, id)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	if err := s.applyTransactionFields(p, t, false); err != nil {
		validationError(w, err)
		return
	}
	if err := s.ledger.UpdateTransaction(r.Context(), t); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	NewResponse().JSON(newTransactionView(*t)).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.ledger.DeleteTransaction(r.Context(), user.ID, id); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	NoContent().Write(w)
}

// applyTransactionFields copies submitted fields onto t. On create every
// field is read; on update only the submitted ones.
func (s *Server) applyTransactionFields(p *RequestBodyParser, t *core.Transaction, create bool) error {
	if create || p.Has("type") {
		t.Type = core.TransactionType(strings.ToLower(p.Get("type")))
		if !t.Type.Valid() {
			return core.ErrInvalidType
		}
	}
	if create || p.Has("amount") {
		amount, err := p.Amount("amount")
		if err != nil {
			return err
		}
		t.Amount = amount
	}
	if create || p.Has("date") {
		date, err := p.Date("date", core.DateOf(s.now()))
		if err != nil {
			return err
		}
		t.Date = date
	}
	if create || p.Has("category_id") {
		categoryID := p.Get("category_id")
		if categoryID == core.UncategorizedID {
			categoryID = ""
		}
		if categoryID != "" {
			if _, err := uuid.Parse(categoryID); err != nil {
				return storage.ErrCategoryNotFound
			}
		}
		t.CategoryID = categoryID
	}
	if create || p.Has("source") {
		t.Source = p.Get("source")
	}
	if create || p.Has("description") {
		t.Description = p.Get("description")
	}
	return nil
}

// handleListCategories lists the system categories and the user's own.
func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	cats, err := s.categories.List(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	NewResponse().JSON(newCategoryViews(cats)).Write(w)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	c := core.Category{
		UserID: user.ID,
		Name:   p.Get("name"),
		Color:  p.Get("color"),
		Icon:   p.Get("icon"),
	}
	if err := c.Validate(); err != nil {
		validationError(w, err)
		return
	}
	if err := s.categories.Create(r.Context(), &c); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	Created(newCategoryViews([]core.Category{c})[0]).Write(w)
}

// handleDeleteCategory removes one of the user's categories. System
// categories answer 404.
func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.categories.Delete(r.Context(), user.ID, id); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	NoContent().Write(w)
}
