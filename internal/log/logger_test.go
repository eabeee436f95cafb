package log

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		" error ": slog.LevelError,
		"":        slog.LevelInfo,
		"loud":    slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestWithComponentDoesNotDuplicate(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Component: ComponentApp, Output: &buf})

	logger.WithComponent(ComponentAuth).Info("hello")

	line := buf.String()
	if strings.Count(line, "component=") != 1 {
		t.Fatalf("expected a single component attribute, got %q", line)
	}
	if !strings.Contains(line, "component=auth") {
		t.Fatalf("expected auth component, got %q", line)
	}
}

func TestMiddlewareStoresLogger(t *testing.T) {
	logger := New(Config{Component: ComponentHTTP, Output: &bytes.Buffer{}})

	var got *Logger
	h := Middleware(logger)(ComponentMiddleware(ComponentGuard)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = FromContext(r.Context())
	})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if got == nil || got.Component() != ComponentGuard {
		t.Fatalf("expected guard logger in context, got %+v", got)
	}
	if FromContext(context.Background()).Component() != "unknown" {
		t.Fatal("expected fallback logger for empty context")
	}
}
