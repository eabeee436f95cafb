package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	applog "finora/internal/log"
)

type contextKey struct{}

// RequestIDHeader is echoed on responses so clients can quote it.
const RequestIDHeader = "X-Request-ID"

// Middleware assigns request ids and logs request boundaries.
type Middleware struct {
	extractIP func(*http.Request) string
	logger    *applog.Logger
	requests  *applog.RequestLogger
	metrics   *Metrics
}

// Metrics tracks request metrics
type Metrics struct {
	TotalRequests  int64
	ServerErrors   int64
	LastDurationUs int64
}

// NewMiddleware creates a new trace middleware
func NewMiddleware(logger *applog.Logger, extractIP func(*http.Request) string) *Middleware {
	return &Middleware{
		extractIP: extractIP,
		logger:    logger,
		requests:  applog.NewRequestLogger(logger),
		metrics:   &Metrics{},
	}
}

// Middleware returns HTTP middleware for request tracing. The request
// logger stored in the context carries the request id.
func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := ""
		if m.extractIP != nil {
			clientIP = m.extractIP(r)
		}

		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" || len(requestID) > 64 {
			requestID = GenerateRequestID()
		}
		w.Header().Set(RequestIDHeader, requestID)

		ctx := context.WithValue(r.Context(), contextKey{}, requestID)
		ctx = applog.NewContext(ctx, m.logger.With(applog.FieldRequestID, requestID))
		r = r.WithContext(ctx)

		m.requests.LogStart(ctx, r, requestID, clientIP)
		atomic.AddInt64(&m.metrics.TotalRequests, 1)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		atomic.StoreInt64(&m.metrics.LastDurationUs, duration.Microseconds())
		if rw.statusCode >= 500 {
			atomic.AddInt64(&m.metrics.ServerErrors, 1)
		}

		m.requests.LogEnd(ctx, r, requestID, clientIP, rw.statusCode, duration.Milliseconds())
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

// GenerateRequestID creates a unique request ID for tracing
func GenerateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

// GetRequestID extracts the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(contextKey{}).(string); ok {
		return id
	}
	return ""
}

// GetMetrics returns current metrics
func (m *Middleware) GetMetrics() Metrics {
	return Metrics{
		TotalRequests:  atomic.LoadInt64(&m.metrics.TotalRequests),
		ServerErrors:   atomic.LoadInt64(&m.metrics.ServerErrors),
		LastDurationUs: atomic.LoadInt64(&m.metrics.LastDurationUs),
	}
}
