package http

import (
	"net/http"

	"finora/internal/core"
	"finora/internal/log"
)

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	goals, err := s.repo.ListGoals(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	out := make([]goalView, 0, len(goals))
	for _, g := range goals {
		out = append(out, newGoalView(g))
	}
	NewResponse().JSON(out).Write(w)
}

func (s *Server) handleGetGoal(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	g, err := s.repo.GetGoal(r.Context(), user.ID, id)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	NewResponse().JSON(newGoalView(*g)).Write(w)
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	p, ok := parseBody(w, r)
	if !ok {
		return
	}

	g := core.Goal{
		UserID:      user.ID,
		Name:        p.Get("name"),
		Description: p.Get("description"),
	}
	var err error
	if g.TargetAmount, err = p.Amount("target_amount"); err != nil {
		validationError(w, err)
		return
	}
	if g.CurrentAmount, err = p.OptionalAmount("current_amount"); err != nil {
		validationError(w, err)
		return
	}
	if g.TargetDate, err = p.OptionalDate("target_date"); err != nil {
		validationError(w, err)
		return
	}
	g.Reconcile(s.now())
	if err := g.Validate(); err != nil {
		validationError(w, err)
		return
	}

	if err := s.repo.CreateGoal(r.Context(), &g); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	Created(newGoalView(g)).Write(w)
}

// handleUpdateGoal edits name, description, target and target date. The
// saved amount only moves through contributions.
func (s *Server) handleUpdateGoal(w http.ResponseWriter, r *http.Request) {
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

	g, err := s.repo.GetGoal(r.Context(), user.ID, id)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	if p.Has("name") {
		g.Name = p.Get("name")
	}
	if p.Has("description") {
		g.Description = p.Get("description")
	}
	if p.Has("target_amount") {
		if g.TargetAmount, err = p.Amount("target_amount"); err != nil {
			validationError(w, err)
			return
		}
	}
	if p.Has("target_date") {
		if g.TargetDate, err = p.OptionalDate("target_date"); err != nil {
			validationError(w, err)
			return
		}
	}

	if err := s.repo.UpdateGoal(r.Context(), g); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	NewResponse().JSON(newGoalView(*g)).Write(w)
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.repo.DeleteGoal(r.Context(), user.ID, id); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	NoContent().Write(w)
}

func (s *Server) handleListGoalContributions(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if _, err := s.repo.GetGoal(r.Context(), user.ID, id); err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	contributions, err := s.repo.ListGoalContributions(r.Context(), user.ID, id)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	out := make([]paymentView, 0, len(contributions))
	for _, c := range contributions {
		out = append(out, newContributionView(c))
	}
	NewResponse().JSON(out).Write(w)
}

func (s *Server) handleCreateGoalContribution(w http.ResponseWriter, r *http.Request) {
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

	c := core.GoalContribution{GoalID: id, Note: p.Get("note")}
	var err error
	if c.Amount, err = p.Amount("amount"); err != nil {
		validationError(w, err)
		return
	}
	if c.Date, err = p.Date("date", core.DateOf(s.now())); err != nil {
		validationError(w, err)
		return
	}

	g, err := s.ledger.RecordGoalContribution(r.Context(), user.ID, &c)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	Created(map[string]any{
		"contribution": newContributionView(c),
		"goal":         newGoalView(*g),
	}).Write(w)
}
