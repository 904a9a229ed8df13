package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler re-runs the analysis on a cron expression while the server is up.
// Overlapping runs are prevented; a tick arriving mid-run is skipped.
type Scheduler struct {
	cron    *cron.Cron
	logger  *slog.Logger
	service *AnalysisService
	timeout time.Duration
	busy    chan struct{}
}

// NewScheduler creates a scheduler around the analysis service.
func NewScheduler(logger *slog.Logger, svc *AnalysisService, timeout time.Duration) *Scheduler {
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	s := &Scheduler{
		cron:    cron.New(),
		logger:  logger,
		service: svc,
		timeout: timeout,
		busy:    make(chan struct{}, 1),
	}
	return s
}

// Schedule registers the cron expression and starts the scheduler.
func (s *Scheduler) Schedule(expr string) error {
	if _, err := s.cron.AddFunc(expr, s.tick); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("analysis scheduler started", "schedule", expr)
	return nil
}

// Stop halts the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Scheduler) tick() {
	select {
	case s.busy <- struct{}{}:
		defer func() { <-s.busy }()
	default:
		s.logger.Warn("skipping scheduled analysis, previous run still active")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	report, err := s.service.Analyze(ctx)
	if err != nil {
		s.logger.Error("scheduled analysis failed", "error", err)
		return
	}

	if s.service.registry != nil {
		written, err := s.service.PublishScores(report)
		if err != nil {
			s.logger.Error("scheduled publish failed", "error", err)
			return
		}
		s.logger.Info("scheduled analysis published", "runId", report.RunID, "written", written)
	}
}
