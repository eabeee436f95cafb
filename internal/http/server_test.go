package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"finora/internal/core"
	"finora/internal/identity"
	"finora/internal/identity/identitytest"
	"finora/internal/log"
	"finora/internal/middleware/ratelimit"
	"finora/internal/services"
	"finora/internal/storage"
)

const testPassword = "secreto123"

var testNow = time.Date(2026, time.October, 15, 12, 0, 0, 0, time.UTC)

type testApp struct {
	srv   *Server
	store *identitytest.Server
	repo  *storage.Repository
}

func newTestApp(t *testing.T, limit ratelimit.Config) *testApp {
	t.Helper()

	store := identitytest.NewServer()
	t.Cleanup(store.Close)

	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "finora.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	logger := log.New(log.Config{Output: io.Discard, Component: log.ComponentApp})
	catalog := services.NewCategoryCatalog(repo, nil)
	srv := NewServer(Options{
		Addr:       ":0",
		AppURL:     "http://finora.test",
		Identity:   identity.Config{URL: store.URL, APIKey: identitytest.APIKey},
		Repository: repo,
		Ledger:     services.NewLedgerService(repo, nil, logger.Logger),
		Dashboard:  services.NewDashboardService(repo, catalog),
		Categories: catalog,
		RateLimit:  limit,
		Logger:     logger,
	})
	srv.now = func() time.Time { return testNow }
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	return &testApp{srv: srv, store: store, repo: repo}
}

// do serves one request. Bodies starting with '{' are sent as JSON, others
// as a form.
func (a *testApp) do(method, path, body string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		if strings.HasPrefix(body, "{") {
			req.Header.Set("Content-Type", "application/json")
		} else {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	a.srv.Handler.ServeHTTP(rr, req)
	return rr
}

// login creates a confirmed account, signs in through the form and returns
// the user id and session cookies.
func (a *testApp) login(t *testing.T, email string) (string, []*http.Cookie) {
	t.Helper()
	id := a.store.AddUser(email, testPassword, true)
	form := url.Values{"email": {email}, "password": {testPassword}}
	rr := a.do(http.MethodPost, "/login", form.Encode(), nil)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("login %s: status=%d body=%s", email, rr.Code, rr.Body.String())
	}
	cookies := rr.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatalf("login %s: no session cookie", email)
	}
	return id, cookies
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("content type = %q, want JSON (body=%s)", ct, rr.Body.String())
	}
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %s: %v", rr.Body.String(), err)
	}
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("status=%d want %d body=%s", rr.Code, want, rr.Body.String())
	}
}

func TestHealthReadyAndMetrics(t *testing.T) {
	app := newTestApp(t, ratelimit.Config{})

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := app.do(http.MethodGet, path, "", nil)
		expectStatus(t, rr, http.StatusOK)
	}

	var ready struct {
		Status string `json:"status"`
		Checks struct {
			Database struct {
				Dialect string `json:"dialect"`
			} `json:"database"`
		} `json:"checks"`
	}
	decodeJSON(t, app.do(http.MethodGet, "/readyz", "", nil), &ready)
	if ready.Status != "ready" || ready.Checks.Database.Dialect != "sqlite" {
		t.Fatalf("readyz = %+v", ready)
	}

	rr := app.do(http.MethodGet, "/metrics", "", nil)
	expectStatus(t, rr, http.StatusOK)
	if !strings.Contains(rr.Body.String(), "finora_http_requests_total") {
		t.Fatalf("metrics body missing request counter:\n%s", rr.Body.String())
	}
}

func TestGuardRedirects(t *testing.T) {
	app := newTestApp(t, ratelimit.Config{})

	tests := []struct {
		path     string
		wantCode int
		wantLoc  string
	}{
		{"/dashboard", http.StatusTemporaryRedirect, "/login?redirect=%2Fdashboard"},
		{"/debts/123", http.StatusTemporaryRedirect, "/login?redirect=%2Fdebts%2F123"},
		{"/profile", http.StatusTemporaryRedirect, "/login?redirect=%2Fprofile"},
		{"/", http.StatusSeeOther, "/login"},
		{"/login", http.StatusOK, ""},
		{"/register", http.StatusOK, ""},
		{"/forgot-password", http.StatusOK, ""},
		{"/static/app.css", http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rr := app.do(http.MethodGet, tt.path, "", nil)
			expectStatus(t, rr, tt.wantCode)
			if loc := rr.Header().Get("Location"); loc != tt.wantLoc {
				t.Fatalf("Location = %q, want %q", loc, tt.wantLoc)
			}
		})
	}

	_, cookies := app.login(t, "ana@example.com")
	for _, path := range []string{"/login", "/register"} {
		rr := app.do(http.MethodGet, path, "", cookies)
		expectStatus(t, rr, http.StatusTemporaryRedirect)
		if loc := rr.Header().Get("Location"); loc != "/dashboard" {
			t.Fatalf("%s: Location = %q", path, loc)
		}
	}
	rr := app.do(http.MethodGet, "/", "", cookies)
	if loc := rr.Header().Get("Location"); loc != "/dashboard" {
		t.Fatalf("index Location = %q", loc)
	}
}

func TestLogin(t *testing.T) {
	app := newTestApp(t, ratelimit.Config{})
	app.store.AddUser("ana@example.com", testPassword, true)
	app.store.AddUser("pending@example.com", testPassword, false)

	tests := []struct {
		name     string
		form     url.Values
		wantCode int
		wantLoc  string
	}{
		{"missing fields", url.Values{"email": {"ana@example.com"}}, http.StatusBadRequest, ""},
		{"wrong password", url.Values{"email": {"ana@example.com"}, "password": {"nope-nope"}}, http.StatusUnauthorized, ""},
		{"unconfirmed", url.Values{"email": {"pending@example.com"}, "password": {testPassword}}, http.StatusUnauthorized, ""},
		{"default target", url.Values{"email": {"ana@example.com"}, "password": {testPassword}}, http.StatusSeeOther, "/dashboard"},
		{"redirect kept", url.Values{"email": {"ana@example.com"}, "password": {testPassword}, "redirect": {"/goals"}}, http.StatusSeeOther, "/goals"},
		{"open redirect refused", url.Values{"email": {"ana@example.com"}, "password": {testPassword}, "redirect": {"//evil.example"}}, http.StatusSeeOther, "/dashboard"},
		{"absolute redirect refused", url.Values{"email": {"ana@example.com"}, "password": {testPassword}, "redirect": {"https://evil.example/x"}}, http.StatusSeeOther, "/dashboard"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := app.do(http.MethodPost, "/login", tt.form.Encode(), nil)
			expectStatus(t, rr, tt.wantCode)
			if loc := rr.Header().Get("Location"); loc != tt.wantLoc {
				t.Fatalf("Location = %q, want %q", loc, tt.wantLoc)
			}
			if tt.wantCode != http.StatusSeeOther && !strings.Contains(rr.Body.String(), "Iniciar sesión") {
				t.Fatalf("expected login form to be re-rendered")
			}
		})
	}
}

func TestLoginRateLimited(t *testing.T) {
	app := newTestApp(t, ratelimit.Config{Requests: 2, Window: time.Minute})
	form := url.Values{"email": {"ghost@example.com"}, "password": {"whatever1"}}.Encode()

	for i := 0; i < 2; i++ {
		expectStatus(t, app.do(http.MethodPost, "/login", form, nil), http.StatusUnauthorized)
	}
	expectStatus(t, app.do(http.MethodPost, "/login", form, nil), http.StatusTooManyRequests)

	// Page views are not limited.
	expectStatus(t, app.do(http.MethodGet, "/login", "", nil), http.StatusOK)
}

func TestLogout(t *testing.T) {
	app := newTestApp(t, ratelimit.Config{})
	_, cookies := app.login(t, "ana@example.com")

	rr := app.do(http.MethodPost, "/logout", "", cookies)
	expectStatus(t, rr, http.StatusSeeOther)
	if loc := rr.Header().Get("Location"); loc != "/login" {
		t.Fatalf("Location = %q", loc)
	}
	cleared := false
	for _, c := range rr.Result().Cookies() {
		if c.Name == identity.DefaultCookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Fatalf("session cookie not cleared")
	}

	// The revoked token no longer opens protected pages.
	expectStatus(t, app.do(http.MethodGet, "/dashboard", "", cookies), http.StatusTemporaryRedirect)
}

func TestRegister(t *testing.T) {
	t.Run("validation", func(t *testing.T) {
		app := newTestApp(t, ratelimit.Config{})
		form := url.Values{
			"name": {"Ana"}, "email": {"ana@example.com"},
			"password": {testPassword}, "confirm_password": {"different1"},
		}
		rr := app.do(http.MethodPost, "/register", form.Encode(), nil)
		expectStatus(t, rr, http.StatusBadRequest)
		if app.store.Calls("/auth/v1/signup") != 0 {
			t.Fatalf("invalid registration reached the store")
		}
	})

	t.Run("signed in immediately", func(t *testing.T) {
		app := newTestApp(t, ratelimit.Config{})
		form := url.Values{
			"name": {"Ana López"}, "email": {"ana@example.com"},
			"password": {testPassword}, "confirm_password": {testPassword},
		}
		rr := app.do(http.MethodPost, "/register", form.Encode(), nil)
		expectStatus(t, rr, http.StatusSeeOther)
		if loc := rr.Header().Get("Location"); loc != "/dashboard" {
			t.Fatalf("Location = %q", loc)
		}

		var p profileView
		res := app.do(http.MethodGet, "/profile", "", rr.Result().Cookies())
		expectStatus(t, res, http.StatusOK)
		decodeJSON(t, res, &p)
		if p.Name != "Ana López" || p.CurrencySymbol != core.DefaultCurrencySymbol || p.Email != "ana@example.com" {
			t.Fatalf("profile = %+v", p)
		}

		// Registering the same address again is a conflict.
		rr = app.do(http.MethodPost, "/register", form.Encode(), nil)
		expectStatus(t, rr, http.StatusConflict)
	})

	t.Run("confirmation required", func(t *testing.T) {
		app := newTestApp(t, ratelimit.Config{})
		app.store.RequireConfirmation()
		form := url.Values{
			"name": {"Ana"}, "email": {"ana@example.com"},
			"password": {testPassword}, "confirm_password": {testPassword},
		}
		rr := app.do(http.MethodPost, "/register", form.Encode(), nil)
		expectStatus(t, rr, http.StatusOK)
		if !strings.Contains(rr.Body.String(), "Cuenta creada") {
			t.Fatalf("expected success page, got %s", rr.Body.String())
		}
	})
}

func TestForgotPasswordDoesNotRevealAccounts(t *testing.T) {
	app := newTestApp(t, ratelimit.Config{})
	app.store.AddUser("ana@example.com", testPassword, true)

	var bodies []string
	for _, email := range []string{"ana@example.com", "nobody@example.com"} {
		rr := app.do(http.MethodPost, "/forgot-password", url.Values{"email": {email}}.Encode(), nil)
		expectStatus(t, rr, http.StatusOK)
		bodies = append(bodies, strings.ReplaceAll(rr.Body.String(), email, ""))
	}
	if bodies[0] != bodies[1] {
		t.Fatalf("responses differ for known and unknown addresses")
	}

	rr := app.do(http.MethodPost, "/forgot-password", "email=", nil)
	expectStatus(t, rr, http.StatusBadRequest)
}

func TestDashboardGreeting(t *testing.T) {
	app := newTestApp(t, ratelimit.Config{})
	ctx := context.Background()

	_, anon := app.login(t, "noprofile@example.com")
	rr := app.do(http.MethodGet, "/dashboard", "", anon)
	expectStatus(t, rr, http.StatusOK)
	if !strings.Contains(rr.Body.String(), "Hola, Usuario!") {
		t.Fatalf("expected fallback greeting")
	}

	id, cookies := app.login(t, "ana@example.com")
	p := core.NewProfile(id, "Ana María López")
	p.CurrencySymbol = "€"
	if err := app.repo.CreateProfile(ctx, &p); err != nil {
		t.Fatalf("create profile: %v", err)
	}
	rr = app.do(http.MethodGet, "/dashboard", "", cookies)
	expectStatus(t, rr, http.StatusOK)
	body := rr.Body.String()
	if !strings.Contains(body, "Hola, Ana!") {
		t.Fatalf("expected first-name greeting")
	}
	if !strings.Contains(body, "Balance del Mes") {
		t.Fatalf("expected summary cards")
	}
}

func TestDashboardSummary(t *testing.T) {
	app := newTestApp(t, ratelimit.Config{})
	_, cookies := app.login(t, "ana@example.com")

	for _, body := range []string{
		`{"type":"income","amount":"1000","date":"2026-10-01","description":"Salario"}`,
		`{"type":"expense","amount":"250.50","date":"2026-10-03"}`,
		`{"type":"expense","amount":"99","date":"2026-09-30"}`,
	} {
		expectStatus(t, app.do(http.MethodPost, "/transactions", body, cookies), http.StatusCreated)
	}
	expectStatus(t, app.do(http.MethodPost, "/subscriptions",
		`{"name":"Streaming","amount":"120","frequency":"yearly","next_billing_date":"2026-11-01"}`, cookies), http.StatusCreated)

	var d dashboardView
	rr := app.do(http.MethodGet, "/dashboard/summary?year=2026&month=10", "", cookies)
	expectStatus(t, rr, http.StatusOK)
	decodeJSON(t, rr, &d)

	if d.PeriodStart != "2026-10-01" || d.PeriodEnd != "2026-11-01" {
		t.Fatalf("period = %s..%s", d.PeriodStart, d.PeriodEnd)
	}
	s := d.Summary
	if s.TotalIncomeCents != 100000 || s.TotalExpensesCents != 25050 || s.BalanceCents != 74950 {
		t.Fatalf("summary = %+v", s)
	}
	if s.ActiveSubscriptions != 1 || s.MonthlySubscriptionCostCents != 1000 {
		t.Fatalf("subscriptions = %d / %d", s.ActiveSubscriptions, s.MonthlySubscriptionCostCents)
	}
	if len(d.Categories) != 1 || d.Categories[0].CategoryID != core.UncategorizedID || d.Categories[0].Percentage != 100 {
		t.Fatalf("categories = %+v", d.Categories)
	}

	// Without a query the current month is used.
	rr = app.do(http.MethodGet, "/dashboard/summary", "", cookies)
	decodeJSON(t, rr, &d)
	if d.PeriodStart != "2026-10-01" {
		t.Fatalf("default period start = %s", d.PeriodStart)
	}
}

func TestTransactionsCRUD(t *testing.T) {
	app := newTestApp(t, ratelimit.Config{})
	_, cookies := app.login(t, "ana@example.com")

	rr := app.do(http.MethodPost, "/transactions",
		`{"type":"expense","amount":"12.50","date":"2026-10-05","description":"Café"}`, cookies)
	expectStatus(t, rr, http.StatusCreated)
	var created transactionView
	decodeJSON(t, rr, &created)
	if created.ID == "" || created.AmountCents != 1250 || created.Date != "2026-10-05" {
		t.Fatalf("created = %+v", created)
	}
	path := "/transactions/" + created.ID

	// Form bodies work too; the date defaults to today.
	rr = app.do(http.MethodPost, "/transactions", "type=income&amount=40", cookies)
	expectStatus(t, rr, http.StatusCreated)
	var fromForm transactionView
	decodeJSON(t, rr, &fromForm)
	if fromForm.Date != "2026-10-15" {
		t.Fatalf("default date = %s", fromForm.Date)
	}

	rr = app.do(http.MethodPut, path, `{"amount":"20"}`, cookies)
	expectStatus(t, rr, http.StatusOK)
	var updated transactionView
	decodeJSON(t, rr, &updated)
	if updated.AmountCents != 2000 || updated.Description != "Café" || updated.Type != "expense" {
		t.Fatalf("partial update = %+v", updated)
	}

	var list []transactionView
	rr = app.do(http.MethodGet, "/transactions?type=expense", "", cookies)
	expectStatus(t, rr, http.StatusOK)
	decodeJSON(t, rr, &list)
	if len(list) != 1 || list[0].ID != created.ID {
		t.Fatalf("filtered list = %+v", list)
	}
	expectStatus(t, app.do(http.MethodGet, "/transactions?type=transfer", "", cookies), http.StatusUnprocessableEntity)

	// Another user cannot see or delete it.
	_, bob := app.login(t, "bob@example.com")
	expectStatus(t, app.do(http.MethodGet, path, "", bob), http.StatusNotFound)
	expectStatus(t, app.do(http.MethodDelete, path, "", bob), http.StatusNotFound)

	expectStatus(t, app.do(http.MethodDelete, path, "", cookies), http.StatusNoContent)
	expectStatus(t, app.do(http.MethodGet, path, "", cookies), http.StatusNotFound)
}

func TestTransactionValidation(t *testing.T) {
	app := newTestApp(t, ratelimit.Config{})
	_, cookies := app.login(t, "ana@example.com")

	tests := []struct {
		name string
		body string
		want int
	}{
		{"bad amount", `{"type":"expense","amount":"abc"}`, http.StatusUnprocessableEntity},
		{"zero amount", `{"type":"expense","amount":"0"}`, http.StatusUnprocessableEntity},
		{"bad type", `{"type":"gift","amount":"5"}`, http.StatusUnprocessableEntity},
		{"bad date", `{"type":"expense","amount":"5","date":"05/10/2026"}`, http.StatusUnprocessableEntity},
		{"unknown category", `{"type":"expense","amount":"5","category_id":"not-a-category"}`, http.StatusUnprocessableEntity},
		{"malformed json", `{"type":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := app.do(http.MethodPost, "/transactions", tt.body, cookies)
			expectStatus(t, rr, tt.want)
			var e map[string]string
			decodeJSON(t, rr, &e)
			if e["error"] == "" {
				t.Fatalf("missing error message")
			}
		})
	}

	expectStatus(t, app.do(http.MethodGet, "/transactions/not-a-uuid", "", cookies), http.StatusNotFound)
}

func TestCategories(t *testing.T) {
	app := newTestApp(t, ratelimit.Config{})
	_, cookies := app.login(t, "ana@example.com")

	var system []categoryView
	rr := app.do(http.MethodGet, "/transactions/categories", "", cookies)
	expectStatus(t, rr, http.StatusOK)
	decodeJSON(t, rr, &system)
	if len(system) == 0 || !system[0].IsSystem {
		t.Fatalf("expected seeded system categories, got %+v", system)
	}

	rr = app.do(http.MethodPost, "/transactions/categories", `{"name":"Mascotas","color":"#22aa88","icon":"paw"}`, cookies)
	expectStatus(t, rr, http.StatusCreated)
	var own categoryView
	decodeJSON(t, rr, &own)

	rr = app.do(http.MethodPost, "/transactions",
		`{"type":"expense","amount":"30","category_id":"`+own.ID+`"}`, cookies)
	expectStatus(t, rr, http.StatusCreated)
	var tx transactionView
	decodeJSON(t, rr, &tx)

	expectStatus(t, app.do(http.MethodDelete, "/transactions/categories/"+system[0].ID, "", cookies), http.StatusNotFound)
	expectStatus(t, app.do(http.MethodDelete, "/transactions/categories/"+own.ID, "", cookies), http.StatusNoContent)

	// The transaction survives as uncategorized.
	rr = app.do(http.MethodGet, "/transactions/"+tx.ID, "", cookies)
	expectStatus(t, rr, http.StatusOK)
	var survivor transactionView
	decodeJSON(t, rr, &survivor)
	if survivor.CategoryID != "" {
		t.Fatalf("category_id = %q after delete", survivor.CategoryID)
	}

	rr = app.do(http.MethodPost, "/transactions",
		`{"type":"expense","amount":"12","category_id":"`+system[0].ID+`"}`, cookies)
	expectStatus(t, rr, http.StatusCreated)
	decodeJSON(t, rr, &tx)
	rr = app.do(http.MethodPut, "/transactions/"+tx.ID, `{"category_id":"uncategorized"}`, cookies)
	expectStatus(t, rr, http.StatusOK)
	var cleared transactionView
	decodeJSON(t, rr, &cleared)
	if cleared.CategoryID != "" {
		t.Fatalf("category_id = %q, want cleared", cleared.CategoryID)
	}
}

func TestDebtPayments(t *testing.T) {
	app := newTestApp(t, ratelimit.Config{})
	_, cookies := app.login(t, "ana@example.com")

	expectStatus(t, app.do(http.MethodPost, "/debts", `{"creditor":"Banco","total_amount":"100","paid_amount":"200"}`, cookies),
		http.StatusUnprocessableEntity)

	rr := app.do(http.MethodPost, "/debts", `{"creditor":"Banco","total_amount":"100","due_date":"2027-01-31"}`, cookies)
	expectStatus(t, rr, http.StatusCreated)
	var debt debtView
	decodeJSON(t, rr, &debt)
	if debt.Status != string(core.DebtActive) || debt.RemainingCents != 10000 {
		t.Fatalf("created debt = %+v", debt)
	}
	base := "/debts/" + debt.ID

	var res struct {
		Payment paymentView `json:"payment"`
		Debt    debtView    `json:"debt"`
	}
	rr = app.do(http.MethodPost, base+"/payments", `{"amount":"40","note":"primera cuota"}`, cookies)
	expectStatus(t, rr, http.StatusCreated)
	decodeJSON(t, rr, &res)
	if res.Debt.PaidCents != 4000 || res.Debt.Progress != 40 || res.Payment.Date != "2026-10-15" {
		t.Fatalf("after first payment = %+v", res)
	}

	expectStatus(t, app.do(http.MethodPost, base+"/payments", `{"amount":"70"}`, cookies), http.StatusUnprocessableEntity)

	rr = app.do(http.MethodPost, base+"/payments", `{"amount":"60"}`, cookies)
	expectStatus(t, rr, http.StatusCreated)
	decodeJSON(t, rr, &res)
	if res.Debt.Status != string(core.DebtPaid) || res.Debt.RemainingCents != 0 {
		t.Fatalf("after payoff = %+v", res.Debt)
	}

	var payments []paymentView
	rr = app.do(http.MethodGet, base+"/payments", "", cookies)
	expectStatus(t, rr, http.StatusOK)
	decodeJSON(t, rr, &payments)
	if len(payments) != 2 {
		t.Fatalf("payments = %d", len(payments))
	}

	rr = app.do(http.MethodPut, base, `{"creditor":"Banco Central"}`, cookies)
	expectStatus(t, rr, http.StatusOK)
	decodeJSON(t, rr, &debt)
	if debt.Creditor != "Banco Central" || debt.PaidCents != 10000 {
		t.Fatalf("updated debt = %+v", debt)
	}

	_, bob := app.login(t, "bob@example.com")
	expectStatus(t, app.do(http.MethodGet, base+"/payments", "", bob), http.StatusNotFound)
	expectStatus(t, app.do(http.MethodPost, base+"/payments", `{"amount":"1"}`, bob), http.StatusNotFound)

	expectStatus(t, app.do(http.MethodDelete, base, "", cookies), http.StatusNoContent)
	expectStatus(t, app.do(http.MethodGet, base, "", cookies), http.StatusNotFound)
}

func TestGoalContributions(t *testing.T) {
	app := newTestApp(t, ratelimit.Config{})
	_, cookies := app.login(t, "ana@example.com")

	rr := app.do(http.MethodPost, "/goals", `{"name":"Vacaciones","target_amount":"500","current_amount":"100"}`, cookies)
	expectStatus(t, rr, http.StatusCreated)
	var goal goalView
	decodeJSON(t, rr, &goal)
	if goal.Status != string(core.GoalActive) || goal.Progress != 20 {
		t.Fatalf("created goal = %+v", goal)
	}
	base := "/goals/" + goal.ID

	var res struct {
		Contribution paymentView `json:"contribution"`
		Goal         goalView    `json:"goal"`
	}
	rr = app.do(http.MethodPost, base+"/contributions", `{"amount":"400","date":"2026-10-10"}`, cookies)
	expectStatus(t, rr, http.StatusCreated)
	decodeJSON(t, rr, &res)
	if res.Goal.Status != string(core.GoalCompleted) || res.Goal.CompletedAt == nil || res.Goal.Progress != 100 {
		t.Fatalf("after contribution = %+v", res.Goal)
	}

	// Saving past the target is allowed; progress stays capped.
	rr = app.do(http.MethodPost, base+"/contributions", `{"amount":"50"}`, cookies)
	expectStatus(t, rr, http.StatusCreated)
	decodeJSON(t, rr, &res)
	if res.Goal.CurrentCents != 55000 || res.Goal.Progress != 100 {
		t.Fatalf("over target = %+v", res.Goal)
	}

	var contributions []paymentView
	rr = app.do(http.MethodGet, base+"/contributions", "", cookies)
	expectStatus(t, rr, http.StatusOK)
	decodeJSON(t, rr, &contributions)
	if len(contributions) != 2 {
		t.Fatalf("contributions = %d", len(contributions))
	}

	expectStatus(t, app.do(http.MethodPut, base, `{"name":""}`, cookies), http.StatusUnprocessableEntity)
	rr = app.do(http.MethodPut, base, `{"target_date":"2027-06-30"}`, cookies)
	expectStatus(t, rr, http.StatusOK)
	decodeJSON(t, rr, &goal)
	if goal.TargetDate != "2027-06-30" || goal.Name != "Vacaciones" {
		t.Fatalf("updated goal = %+v", goal)
	}

	expectStatus(t, app.do(http.MethodDelete, base, "", cookies), http.StatusNoContent)
}

func TestSubscriptions(t *testing.T) {
	app := newTestApp(t, ratelimit.Config{})
	_, cookies := app.login(t, "ana@example.com")

	expectStatus(t, app.do(http.MethodPost, "/subscriptions", `{"name":"Gym","amount":"30","frequency":"weekly"}`, cookies),
		http.StatusUnprocessableEntity)

	rr := app.do(http.MethodPost, "/subscriptions", `{"name":"Gym","amount":"30"}`, cookies)
	expectStatus(t, rr, http.StatusCreated)
	var sub subscriptionView
	decodeJSON(t, rr, &sub)
	if sub.Frequency != string(core.Monthly) || sub.NextBillingDate != "2026-10-15" || sub.Status != string(core.SubscriptionActive) {
		t.Fatalf("created subscription = %+v", sub)
	}
	base := "/subscriptions/" + sub.ID

	rr = app.do(http.MethodPut, base, `{"amount":"35","frequency":"YEARLY"}`, cookies)
	expectStatus(t, rr, http.StatusOK)
	decodeJSON(t, rr, &sub)
	if sub.AmountCents != 3500 || sub.Frequency != string(core.Yearly) {
		t.Fatalf("updated subscription = %+v", sub)
	}

	rr = app.do(http.MethodPost, base+"/cancel", "", cookies)
	expectStatus(t, rr, http.StatusOK)
	decodeJSON(t, rr, &sub)
	if sub.Status != string(core.SubscriptionCancelled) || sub.CancelledAt == nil {
		t.Fatalf("cancelled subscription = %+v", sub)
	}
	expectStatus(t, app.do(http.MethodPost, base+"/cancel", "", cookies), http.StatusUnprocessableEntity)

	var list []subscriptionView
	rr = app.do(http.MethodGet, "/subscriptions", "", cookies)
	decodeJSON(t, rr, &list)
	if len(list) != 1 {
		t.Fatalf("subscriptions = %d", len(list))
	}

	expectStatus(t, app.do(http.MethodDelete, base, "", cookies), http.StatusNoContent)
	expectStatus(t, app.do(http.MethodDelete, base, "", cookies), http.StatusNotFound)
}

func TestProfile(t *testing.T) {
	app := newTestApp(t, ratelimit.Config{})
	_, cookies := app.login(t, "ana@example.com")

	// An identity without a profile row.
	expectStatus(t, app.do(http.MethodGet, "/profile", "", cookies), http.StatusNotFound)

	rr := app.do(http.MethodPut, "/profile", `{"name":"Ana"}`, cookies)
	expectStatus(t, rr, http.StatusOK)
	var p profileView
	decodeJSON(t, rr, &p)
	if p.Name != "Ana" || p.CurrencySymbol != core.DefaultCurrencySymbol {
		t.Fatalf("created profile = %+v", p)
	}

	rr = app.do(http.MethodPut, "/profile", `{"currency_symbol":"€"}`, cookies)
	expectStatus(t, rr, http.StatusOK)
	decodeJSON(t, rr, &p)
	if p.Name != "Ana" || p.CurrencySymbol != "€" {
		t.Fatalf("updated profile = %+v", p)
	}

	expectStatus(t, app.do(http.MethodPut, "/profile", `{"currency_symbol":""}`, cookies), http.StatusUnprocessableEntity)
	expectStatus(t, app.do(http.MethodPut, "/profile", `{"name":"`+strings.Repeat("a", 201)+`"}`, cookies), http.StatusUnprocessableEntity)

	rr = app.do(http.MethodGet, "/profile", "", cookies)
	expectStatus(t, rr, http.StatusOK)
	decodeJSON(t, rr, &p)
	if p.CurrencySymbol != "€" || p.Email != "ana@example.com" {
		t.Fatalf("stored profile = %+v", p)
	}
}

func TestStoreOutageFailsClosed(t *testing.T) {
	app := newTestApp(t, ratelimit.Config{})
	_, cookies := app.login(t, "ana@example.com")

	app.store.FailWith(http.StatusServiceUnavailable)
	rr := app.do(http.MethodGet, "/dashboard", "", cookies)
	expectStatus(t, rr, http.StatusTemporaryRedirect)

	app.store.FailWith(0)
	expectStatus(t, app.do(http.MethodGet, "/dashboard", "", cookies), http.StatusOK)
}

func TestSecurityHeaders(t *testing.T) {
	app := newTestApp(t, ratelimit.Config{})
	rr := app.do(http.MethodGet, "/login", "", nil)
	if csp := rr.Header().Get("Content-Security-Policy"); !strings.Contains(csp, "default-src 'self'") {
		t.Fatalf("CSP = %q", csp)
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("missing nosniff")
	}
}
