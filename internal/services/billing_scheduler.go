package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// BillingSchedulerConfig holds configuration for the billing loop
type BillingSchedulerConfig struct {
	// Interval is how often due subscriptions are billed (default: 1h)
	Interval time.Duration

	// RunTimeout bounds a single billing run (default: 5m)
	RunTimeout time.Duration
}

func DefaultBillingSchedulerConfig() BillingSchedulerConfig {
	return BillingSchedulerConfig{
		Interval:   time.Hour,
		RunTimeout: 5 * time.Minute,
	}
}

// BillingScheduler runs a BillingProcessor once at start and then on every
// interval tick until stopped.
type BillingScheduler struct {
	processor *BillingProcessor
	config    BillingSchedulerConfig
	now       func() time.Time
	logger    *slog.Logger

	mu      sync.Mutex
	running bool
	runs    int
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewBillingScheduler(processor *BillingProcessor, config BillingSchedulerConfig, logger *slog.Logger) *BillingScheduler {
	defaults := DefaultBillingSchedulerConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.RunTimeout <= 0 {
		config.RunTimeout = defaults.RunTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BillingScheduler{
		processor: processor,
		config:    config,
		now:       time.Now,
		logger:    logger.With("component", "billing_scheduler"),
	}
}

// Start begins the billing loop. Returns an error if already running.
func (s *BillingScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("billing scheduler is already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.runLoop(ctx)

	s.logger.InfoContext(ctx, "Billing scheduler started", "interval", s.config.Interval)
	return nil
}

// Stop signals the loop and waits for the current run to finish.
func (s *BillingScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		s.logger.InfoContext(ctx, "Billing scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.WarnContext(ctx, "Billing scheduler stop timed out")
		return ctx.Err()
	}
}

func (s *BillingScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Runs reports how many billing runs have completed.
func (s *BillingScheduler) Runs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs
}

func (s *BillingScheduler) runLoop(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	// Catch up immediately on startup
	s.runOnce(ctx)

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *BillingScheduler) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, s.config.RunTimeout)
	defer cancel()

	if _, err := s.processor.ProcessDue(runCtx, s.now()); err != nil {
		s.logger.ErrorContext(ctx, "Billing run failed", "error", err)
	}

	s.mu.Lock()
	s.runs++
	s.mu.Unlock()
}
