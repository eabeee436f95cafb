package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"finora/internal/core"
	"finora/internal/identity"
	"finora/internal/log"
	"finora/internal/middleware/guard"
	"finora/internal/middleware/ratelimit"
	"finora/internal/middleware/security"
	"finora/internal/middleware/trace"
	"finora/internal/services"
	"finora/internal/storage"
	appweb "finora/web"
)

// Options wires a Server to its collaborators.
type Options struct {
	Addr string
	// AppURL is the public base URL, used for links in recovery emails.
	AppURL string
	// Identity configures the per-request session store client. Storage
	// and Logger are set by the server.
	Identity      identity.Config
	SecureCookies bool

	Repository *storage.Repository
	Ledger     *services.LedgerService
	Dashboard  *services.DashboardService
	Categories *services.CategoryCatalog

	RateLimit ratelimit.Config
	Logger    *log.Logger
}

type Server struct {
	http.Server

	repo       *storage.Repository
	ledger     *services.LedgerService
	dashboard  *services.DashboardService
	categories *services.CategoryCatalog

	identity      identity.Config
	appURL        string
	secureCookies bool

	templates *template.Template
	logger    *log.Logger
	now       func() time.Time
	started   time.Time

	rateLimiter *ratelimit.Limiter
	detector    *security.Detector
	tracer      *trace.Middleware

	shutdownOnce sync.Once
}

var templateFuncs = template.FuncMap{
	"money": func(m core.Money, symbol string) string { return m.Format(symbol) },
	"percent": func(v float64) string {
		return fmt.Sprintf("%.0f%%", v)
	},
}

// NewServer builds the HTTP server. Requests pass through the request
// logger, tracing, suspicious-request detection, security headers and the
// route guard before reaching a handler.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		Server: http.Server{
			Addr:              opts.Addr,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
			MaxHeaderBytes:    1 << 16, // 64KB
		},
		repo:          opts.Repository,
		ledger:        opts.Ledger,
		dashboard:     opts.Dashboard,
		categories:    opts.Categories,
		identity:      opts.Identity,
		appURL:        opts.AppURL,
		secureCookies: opts.SecureCookies,
		logger:        logger,
		now:           time.Now,
		started:       time.Now(),
		rateLimiter:   ratelimit.NewLimiter(opts.RateLimit),
		detector:      security.NewDetector(logger.Logger),
	}
	s.tracer = trace.NewMiddleware(logger, s.detector.ExtractClientIP)

	// Parse embedded templates at startup.
	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates", "error", err)
	}
	s.templates = t

	mux := http.NewServeMux()
	s.routes(mux)

	var h http.Handler = mux
	h = guard.New(guard.AuthenticatorFunc(s.authenticate), guard.DefaultRules(), logger.Logger).Middleware(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.detector.Middleware(h)
	h = s.tracer.Middleware(h)
	h = log.Middleware(logger)(h)
	s.Handler = h

	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(sub))))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", "error", err)
	}
	mux.HandleFunc("GET /favicon.ico", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/static/favicon.svg", http.StatusMovedPermanently)
	})

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("GET /{$}", s.handleIndex)

	// Auth pages. Form posts are rate limited per client address.
	limit := s.rateLimiter.Middleware(s.detector.ExtractClientIP, nil)
	mux.HandleFunc("GET /login", s.handleLoginPage)
	mux.Handle("POST /login", limit(http.HandlerFunc(s.handleLogin)))
	mux.HandleFunc("GET /register", s.handleRegisterPage)
	mux.Handle("POST /register", limit(http.HandlerFunc(s.handleRegister)))
	mux.HandleFunc("GET /forgot-password", s.handleForgotPasswordPage)
	mux.Handle("POST /forgot-password", limit(http.HandlerFunc(s.handleForgotPassword)))
	mux.HandleFunc("POST /logout", s.handleLogout)

	mux.HandleFunc("GET /dashboard", s.handleDashboard)
	mux.HandleFunc("GET /dashboard/summary", s.handleDashboardSummary)

	mux.HandleFunc("GET /transactions", s.handleListTransactions)
	mux.HandleFunc("POST /transactions", s.handleCreateTransaction)
	mux.HandleFunc("GET /transactions/{id}", s.handleGetTransaction)
	mux.HandleFunc("PUT /transactions/{id}", s.handleUpdateTransaction)
	mux.HandleFunc("DELETE /transactions/{id}", s.handleDeleteTransaction)
	mux.HandleFunc("GET /transactions/categories", s.handleListCategories)
	mux.HandleFunc("POST /transactions/categories", s.handleCreateCategory)
	mux.HandleFunc("DELETE /transactions/categories/{id}", s.handleDeleteCategory)

	mux.HandleFunc("GET /debts", s.handleListDebts)
	mux.HandleFunc("POST /debts", s.handleCreateDebt)
	mux.HandleFunc("GET /debts/{id}", s.handleGetDebt)
	mux.HandleFunc("PUT /debts/{id}", s.handleUpdateDebt)
	mux.HandleFunc("DELETE /debts/{id}", s.handleDeleteDebt)
	mux.HandleFunc("GET /debts/{id}/payments", s.handleListDebtPayments)
	mux.HandleFunc("POST /debts/{id}/payments", s.handleCreateDebtPayment)

	mux.HandleFunc("GET /goals", s.handleListGoals)
	mux.HandleFunc("POST /goals", s.handleCreateGoal)
	mux.HandleFunc("GET /goals/{id}", s.handleGetGoal)
	mux.HandleFunc("PUT /goals/{id}", s.handleUpdateGoal)
	mux.HandleFunc("DELETE /goals/{id}", s.handleDeleteGoal)
	mux.HandleFunc("GET /goals/{id}/contributions", s.handleListGoalContributions)
	mux.HandleFunc("POST /goals/{id}/contributions", s.handleCreateGoalContribution)

	mux.HandleFunc("GET /subscriptions", s.handleListSubscriptions)
	mux.HandleFunc("POST /subscriptions", s.handleCreateSubscription)
	mux.HandleFunc("GET /subscriptions/{id}", s.handleGetSubscription)
	mux.HandleFunc("PUT /subscriptions/{id}", s.handleUpdateSubscription)
	mux.HandleFunc("DELETE /subscriptions/{id}", s.handleDeleteSubscription)
	mux.HandleFunc("POST /subscriptions/{id}/cancel", s.handleCancelSubscription)

	mux.HandleFunc("GET /profile", s.handleGetProfile)
	mux.HandleFunc("PUT /profile", s.handleUpdateProfile)
}

// Shutdown stops the rate limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// render executes a page template. Template failures after headers are
// written can only be logged.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	if s.templates == nil {
		InternalServerError("Plantillas no disponibles").Write(w)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		log.FromContext(r.Context()).Error("Template execution failed", "template", name, "error", err)
	}
}
