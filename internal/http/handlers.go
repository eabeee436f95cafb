package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"finora/internal/middleware/guard"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string]any{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if s.repo == nil {
		checks["database"] = "not_configured"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else if err := s.repo.Ping(ctx); err != nil {
		checks["database"] = fmt.Sprintf("failed: %v", err)
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["database"] = map[string]any{"status": "ok", "dialect": string(s.repo.Dialect())}
	}

	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.ActiveClients(),
		"status":         "ok",
	}

	NewResponse().Status(httpStatus).JSON(map[string]any{
		"status":    status,
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics provides request and security counters in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	traceMetrics := s.tracer.GetMetrics()

	fmt.Fprintf(w, "# HELP finora_http_requests_total Total HTTP requests\n")
	fmt.Fprintf(w, "# TYPE finora_http_requests_total counter\n")
	fmt.Fprintf(w, "finora_http_requests_total %d\n", traceMetrics.TotalRequests)
	fmt.Fprintf(w, "# HELP finora_http_server_errors_total Responses with a 5xx status\n")
	fmt.Fprintf(w, "# TYPE finora_http_server_errors_total counter\n")
	fmt.Fprintf(w, "finora_http_server_errors_total %d\n", traceMetrics.ServerErrors)
	fmt.Fprintf(w, "# HELP finora_suspicious_requests_total Requests flagged by the security detector\n")
	fmt.Fprintf(w, "# TYPE finora_suspicious_requests_total counter\n")
	fmt.Fprintf(w, "finora_suspicious_requests_total %d\n", s.detector.SuspiciousCount())
	fmt.Fprintf(w, "# HELP finora_rate_limited_total Requests rejected by the rate limiter\n")
	fmt.Fprintf(w, "# TYPE finora_rate_limited_total counter\n")
	fmt.Fprintf(w, "finora_rate_limited_total %d\n", s.rateLimiter.Rejected())
	fmt.Fprintf(w, "# HELP finora_rate_limiter_clients Clients tracked by the rate limiter\n")
	fmt.Fprintf(w, "# TYPE finora_rate_limiter_clients gauge\n")
	fmt.Fprintf(w, "finora_rate_limiter_clients %d\n", s.rateLimiter.ActiveClients())
	fmt.Fprintf(w, "# HELP finora_uptime_seconds Process uptime\n")
	fmt.Fprintf(w, "# TYPE finora_uptime_seconds gauge\n")
	fmt.Fprintf(w, "finora_uptime_seconds %.0f\n", time.Since(s.started).Seconds())
}

// handleIndex sends visitors to the dashboard or the login page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if guard.UserFromContext(r.Context()) != nil {
		http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
