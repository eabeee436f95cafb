package http

import (
	"net/http"

	"finora/internal/core"
	"finora/internal/log"
	"finora/internal/services"
)

const greetingFallback = "Usuario"

type dashboardPage struct {
	Title     string
	FirstName string
	Currency  string
	Dashboard *services.Dashboard
}

// handleDashboard renders the month summary page. The greeting uses the
// profile's first name; a missing profile falls back to "Usuario".
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	gw, _ := s.startGateway(w, r)
	profile := gw.State().Profile
	gw.Stop()

	period := ParsePeriod(r.URL.Query(), s.now())
	d, err := s.dashboard.Dashboard(r.Context(), user.ID, period)
	if err != nil {
		log.FromContext(r.Context()).Error("Dashboard load failed",
			log.FieldUserID, user.ID,
			log.FieldPeriod, period.Start.String(),
			log.FieldError, err)
		http.Error(w, "No se pudo cargar el resumen", http.StatusInternalServerError)
		return
	}

	currency := core.DefaultCurrencySymbol
	if profile != nil && profile.CurrencySymbol != "" {
		currency = profile.CurrencySymbol
	}
	s.render(w, r, http.StatusOK, "dashboard.html", dashboardPage{
		Title:     "Dashboard",
		FirstName: profile.FirstName(greetingFallback),
		Currency:  currency,
		Dashboard: d,
	})
}

// handleDashboardSummary returns the dashboard for ?year=&month= as JSON.
func (s *Server) handleDashboardSummary(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	period := ParsePeriod(r.URL.Query(), s.now())
	d, err := s.dashboard.Dashboard(r.Context(), user.ID, period)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	NewResponse().JSON(newDashboardView(d)).Write(w)
}
