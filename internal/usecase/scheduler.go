package usecase

import (
	"context"
	"log/slog"
	"time"

	"TrendScanner/internal/ports"
)

// Scheduler wires the cron driver to the system-wide analysis job.
type Scheduler struct {
	driver       ports.Scheduler
	orchestrator *Orchestrator
	logger       *slog.Logger
}

// NewScheduler returns a helper to start/stop the recurring analysis.
func NewScheduler(driver ports.Scheduler, orchestrator *Orchestrator, logger *slog.Logger) *Scheduler {
	return &Scheduler{driver: driver, orchestrator: orchestrator, logger: logger}
}

// Start registers the system-wide analysis with the cron driver.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.orchestrator == nil {
		return nil
	}

	job := func(trigger time.Time) {
		reports, err := s.orchestrator.AnalyzeSystemWide(ctx)
		if err != nil {
			s.logger.Error("system-wide analysis failed", "trigger", trigger, "error", err)
			return
		}

		var succeeded, failed int
		for _, report := range reports {
			succeeded += report.Succeeded
			failed += report.Failed
		}
		s.logger.Info("system-wide analysis complete",
			"trigger", trigger, "owners", len(reports), "succeeded", succeeded, "failed", failed)
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
