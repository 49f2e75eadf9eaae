package reconciliation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/vend-service/vend_service/pkg/logger"
)

// Scheduler drives the reconciliation loop on a fixed polling cadence and
// publishes a daily operator summary.
type Scheduler struct {
	service *Service
	logger  *logger.Logger

	pollInterval time.Duration
	summarySpec  string
	cron         *cron.Cron

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// SchedulerConfig holds scheduler configuration.
type SchedulerConfig struct {
	PollInterval time.Duration // Default: 10 seconds
	SummarySpec  string        // Cron spec for the daily summary, default 09:00
}

// NewScheduler creates a new reconciliation scheduler.
func NewScheduler(service *Service, log *logger.Logger, config *SchedulerConfig) *Scheduler {
	if config.PollInterval == 0 {
		config.PollInterval = 10 * time.Second
	}
	if config.SummarySpec == "" {
		config.SummarySpec = "0 9 * * *"
	}

	return &Scheduler{
		service:      service,
		logger:       log,
		pollInterval: config.PollInterval,
		summarySpec:  config.SummarySpec,
		cron:         cron.New(),
		stopCh:       make(chan struct{}),
	}
}

// Start begins the polling loop and the summary cron. Idempotent.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.mu.Unlock()

	s.logger.Info("Starting reconciliation scheduler",
		"poll_interval", s.pollInterval,
		"summary_spec", s.summarySpec)

	if _, err := s.cron.AddFunc(s.summarySpec, func() { s.publishSummary(ctx) }); err != nil {
		return fmt.Errorf("invalid summary cron spec %q: %w", s.summarySpec, err)
	}
	s.cron.Start()

	s.wg.Add(1)
	go s.runLoop(ctx)

	return nil
}

// Stop gracefully stops the scheduler, waiting for the in-flight cycle to
// finish its persistence write.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("Stopping reconciliation scheduler")

	close(s.stopCh)
	s.wg.Wait()
	<-s.cron.Stop().Done()

	s.logger.Info("Reconciliation scheduler stopped")
	return nil
}

// Shutdown implements graceful.Shutdowner.
func (s *Scheduler) Shutdown(timeout time.Duration) error {
	done := make(chan error, 1)
	go func() { done <- s.Stop() }()

	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		return fmt.Errorf("scheduler did not stop within %s", timeout)
	}
}

func (s *Scheduler) runLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	// Run immediately on start
	s.executeCycle(ctx)

	for {
		select {
		case <-ticker.C:
			s.executeCycle(ctx)
		case <-s.stopCh:
			s.logger.Info("Reconciliation loop stopping")
			return
		case <-ctx.Done():
			s.logger.Info("Reconciliation loop cancelled")
			return
		}
	}
}

// executeCycle runs one cycle with a bounded deadline so a hung external
// call cannot stall the loop forever.
func (s *Scheduler) executeCycle(ctx context.Context) {
	cycleCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	startTime := time.Now()
	s.service.RunCycle(cycleCtx)
	s.logger.Debug("Reconciliation cycle finished", "duration", time.Since(startTime))
}

// RunManualCycle triggers one cycle outside the schedule.
func (s *Scheduler) RunManualCycle(ctx context.Context) {
	s.logger.Info("Starting manual reconciliation cycle")
	s.executeCycle(ctx)
}

func (s *Scheduler) publishSummary(ctx context.Context) {
	stats := s.service.StatsSnapshot()
	pending := s.service.orders.PendingCount()

	msg := fmt.Sprintf(
		"📊 Daily summary: %d pending, %d matched, %d unmatched, %d expired since start.",
		pending, stats.Matched, stats.Unmatched, stats.Expired)

	summaryCtx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()
	if err := s.service.notifier.SendOperator(summaryCtx, msg); err != nil {
		s.logger.Warn("Daily summary notification failed", "error", err)
	}
}
