package http

import (
	"errors"
	"net/http"
	"strings"

	"finora/internal/core"
	"finora/internal/log"
	"finora/internal/storage"
)

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	p, err := s.repo.GetProfile(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	NewResponse().JSON(profileView{
		UserID:         p.UserID,
		Email:          user.Email,
		Name:           p.Name,
		CurrencySymbol: p.CurrencySymbol,
	}).Write(w)
}

// handleUpdateProfile edits name and currency symbol. A user whose profile
// insert failed at sign-up gets one created here.
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	body, ok := parseBody(w, r)
	if !ok {
		return
	}

	p, err := s.repo.GetProfile(r.Context(), user.ID)
	missing := errors.Is(err, storage.ErrNotFound)
	switch {
	case missing:
		np := core.NewProfile(user.ID, "")
		p = &np
	case err != nil:
		writeError(w, r, log.OpRead, err)
		return
	}

	if body.Has("name") {
		p.Name = strings.TrimSpace(body.Get("name"))
	}
	if body.Has("currency_symbol") {
		p.CurrencySymbol = strings.TrimSpace(body.Get("currency_symbol"))
	}
	if err := p.Validate(); err != nil {
		if errors.Is(err, core.ErrTextTooLong) {
			validationError(w, err)
			return
		}
		UnprocessableEntityError("El símbolo de moneda debe tener entre 1 y 8 caracteres.").Write(w)
		return
	}

	if missing {
		err = s.repo.CreateProfile(r.Context(), p)
	} else {
		err = s.repo.UpdateProfile(r.Context(), p)
	}
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	if missing {
		log.FromContext(r.Context()).Info("Profile created for existing identity", log.FieldUserID, user.ID)
	}

	NewResponse().JSON(profileView{
		UserID:         p.UserID,
		Email:          user.Email,
		Name:           p.Name,
		CurrencySymbol: p.CurrencySymbol,
	}).Write(w)
}
