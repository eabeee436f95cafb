package log

import (
	"context"
	"log/slog"
	"net/http"
)

type contextKey struct{}

// NewContext returns a copy of ctx carrying logger.
func NewContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext extracts a logger from the request context, falling back to
// the process default.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(contextKey{}).(*Logger); ok {
		return logger
	}
	return &Logger{
		Logger:    slog.Default(),
		component: "unknown",
	}
}

// Middleware creates HTTP middleware that adds a logger to the request context
func Middleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), logger)))
		})
	}
}

// ComponentMiddleware rescopes the request logger to component for the
// wrapped handler.
func ComponentMiddleware(component string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := FromContext(r.Context()).WithComponent(component)
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), logger)))
		})
	}
}

// RequestLogger logs request boundaries with consistent fields.
type RequestLogger struct {
	logger *Logger
}

// NewRequestLogger creates a request logger bound to the http component.
func NewRequestLogger(logger *Logger) *RequestLogger {
	return &RequestLogger{logger: logger.WithComponent(ComponentHTTP)}
}

// LogStart logs the start of an HTTP request
func (rl *RequestLogger) LogStart(ctx context.Context, r *http.Request, requestID, clientIP string) {
	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent"), r.Header.Get("Referer")).
		WithRequestID(requestID).
		WithClientIP(clientIP)

	rl.logger.DebugContext(ctx, "HTTP request started", fields.ToSlice()...)
}

// LogEnd logs the completion of an HTTP request. The level follows the
// status class.
func (rl *RequestLogger) LogEnd(ctx context.Context, r *http.Request, requestID, clientIP string, statusCode int, durationMs int64) {
	level := slog.LevelInfo
	if statusCode >= 400 && statusCode < 500 {
		level = slog.LevelWarn
	} else if statusCode >= 500 {
		level = slog.LevelError
	}

	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, "", "").
		WithHTTPResponse(statusCode, durationMs, statusCode < 400).
		WithRequestID(requestID).
		WithClientIP(clientIP)

	rl.logger.Log(ctx, level, "HTTP request completed", fields.ToSlice()...)
}

// LogError logs an error with structured context
func (rl *RequestLogger) LogError(ctx context.Context, msg string, err error, operation string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	fields.WithError(err).WithOperation(operation)
	rl.logger.ErrorContext(ctx, msg, fields.ToSlice()...)
}
