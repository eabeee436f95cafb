package cli

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"finora/internal/log"
)

func TestSetupLogger(t *testing.T) {
	logger := SetupLogger("debug", "worker")
	if logger.Component() != "worker" {
		t.Errorf("component = %q", logger.Component())
	}
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug level should be enabled")
	}
}

func TestShutdownOn(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Output: &buf})

	sig := make(chan os.Signal, 1)
	cleaned := false
	ctx, done := shutdownOn(sig, logger, time.Second, func(ctx context.Context) {
		if ctx.Err() != nil {
			t.Error("cleanup context should still be live")
		}
		cleaned = true
	})

	select {
	case <-ctx.Done():
		t.Fatal("context cancelled before a signal")
	default:
	}

	sig <- syscall.SIGTERM
	WaitForShutdown(ctx, done)

	if !cleaned {
		t.Error("cleanup should run on shutdown")
	}
	if !strings.Contains(buf.String(), "Shutdown complete") {
		t.Errorf("log = %q", buf.String())
	}
}
