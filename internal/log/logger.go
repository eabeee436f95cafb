// Package log carries the structured logging conventions shared by the
// finora binaries: a component-scoped slog wrapper, standard field names
// and request-scoped loggers.
package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog.Logger and remembers the component it was scoped to.
type Logger struct {
	*slog.Logger
	base      slog.Handler
	component string
}

// Config holds logger configuration
type Config struct {
	Level     slog.Level
	Component string
	Output    io.Writer
	Handler   slog.Handler
}

// DefaultConfig returns sensible defaults for logging
func DefaultConfig() Config {
	return Config{
		Level:     slog.LevelInfo,
		Component: ComponentApp,
		Output:    os.Stdout,
	}
}

// New creates a new logger with the given configuration. The component
// attribute is bound once so every record carries it.
func New(config Config) *Logger {
	handler := config.Handler
	if handler == nil {
		out := config.Output
		if out == nil {
			out = os.Stdout
		}
		handler = slog.NewTextHandler(out, &slog.HandlerOptions{Level: config.Level})
	}

	component := config.Component
	if component == "" {
		component = ComponentApp
	}

	return &Logger{
		Logger:    slog.New(handler).With(FieldComponent, component),
		base:      handler,
		component: component,
	}
}

// ParseLevel maps a LOG_LEVEL string to a slog level. Unknown values
// fall back to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a new logger with the given attributes
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger:    l.Logger.With(args...),
		base:      l.base,
		component: l.component,
	}
}

// WithComponent returns a logger scoped to another component. It is built
// from the root handler, so attributes added with With are dropped.
func (l *Logger) WithComponent(component string) *Logger {
	base := l.base
	if base == nil {
		base = l.Logger.Handler()
	}
	return &Logger{
		Logger:    slog.New(base).With(FieldComponent, component),
		base:      base,
		component: component,
	}
}

// Component returns the logger's component name
func (l *Logger) Component() string {
	return l.component
}

// SetDefault sets the default logger for the application
func SetDefault(logger *Logger) {
	slog.SetDefault(logger.Logger)
}
