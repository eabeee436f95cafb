package http

import (
	"net/http"
	"strings"

	"finora/internal/core"
	"finora/internal/log"
)

func (s *Server) handleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	subs, err := s.repo.ListSubscriptions(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	out := make([]subscriptionView, 0, len(subs))
	for _, sub := range subs {
		out = append(out, newSubscriptionView(sub))
	}
	NewResponse().JSON(out).Write(w)
}

func (s *Server) handleGetSubscription(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	sub, err := s.repo.GetSubscription(r.Context(), user.ID, id)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	NewResponse().JSON(newSubscriptionView(*sub)).Write(w)
}

// handleCreateSubscription adds an active subscription. The first billing
// date defaults to today.
func (s *Server) handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	p, ok := parseBody(w, r)
	if !ok {
		return
	}

	sub := core.Subscription{
		UserID:      user.ID,
		Name:        p.Get("name"),
		Description: p.Get("description"),
		Frequency:   core.Frequency(strings.ToLower(p.Get("frequency"))),
		Status:      core.SubscriptionActive,
	}
	if sub.Frequency == "" {
		sub.Frequency = core.Monthly
	}
	var err error
	if sub.Amount, err = p.Amount("amount"); err != nil {
		validationError(w, err)
		return
	}
	if sub.NextBillingDate, err = p.Date("next_billing_date", core.DateOf(s.now())); err != nil {
		validationError(w, err)
		return
	}
	if err := sub.Validate(); err != nil {
		validationError(w, err)
		return
	}

	if err := s.repo.CreateSubscription(r.Context(), &sub); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	Created(newSubscriptionView(sub)).Write(w)
}

func (s *Server) handleUpdateSubscription(w http.ResponseWriter, r *http.Request) {
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

	sub, err := s.repo.GetSubscription(r.Context(), user.ID, id)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	if p.Has("name") {
		sub.Name = p.Get("name")
	}
	if p.Has("description") {
		sub.Description = p.Get("description")
	}
	if p.Has("frequency") {
		sub.Frequency = core.Frequency(strings.ToLower(p.Get("frequency")))
	}
	if p.Has("amount") {
		if sub.Amount, err = p.Amount("amount"); err != nil {
			validationError(w, err)
			return
		}
	}
	if p.Has("next_billing_date") {
		if sub.NextBillingDate, err = p.Date("next_billing_date", core.Date{}); err != nil {
			validationError(w, err)
			return
		}
	}

	if err := s.repo.UpdateSubscription(r.Context(), sub); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	NewResponse().JSON(newSubscriptionView(*sub)).Write(w)
}

func (s *Server) handleDeleteSubscription(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.repo.DeleteSubscription(r.Context(), user.ID, id); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	NoContent().Write(w)
}

// handleCancelSubscription stops future billing. Cancelling twice is 422.
func (s *Server) handleCancelSubscription(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	sub, err := s.ledger.CancelSubscription(r.Context(), user.ID, id)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	NewResponse().JSON(newSubscriptionView(*sub)).Write(w)
}
