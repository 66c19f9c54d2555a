package scheduler

import (
	"fmt"

	"github.com/asakaze/anidex/internal/indexer"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Scheduler triggers periodic index runs
type Scheduler struct {
	cron     *cron.Cron
	runner   *indexer.Runner
	schedule string
	logger   *logrus.Logger
}

// NewScheduler creates a new scheduler
func NewScheduler(runner *indexer.Runner, schedule string, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		runner:   runner,
		schedule: schedule,
		logger:   logger,
	}
}

// Start starts the scheduler and kicks off an initial scan
func (s *Scheduler) Start() error {
	s.logger.WithField("schedule", s.schedule).Info("Starting scheduler")

	_, err := s.cron.AddFunc(s.schedule, func() {
		s.runScan()
	})
	if err != nil {
		return fmt.Errorf("failed to add scan job: %w", err)
	}

	s.cron.Start()
	s.logger.Info("Scheduler started")

	// Run an initial scan immediately
	go s.runScan()

	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")
	s.cron.Stop()
}

// runScan triggers an index run, skipping it when one is still active
func (s *Scheduler) runScan() {
	s.logger.Info("Running scheduled scan")

	if !s.runner.Trigger() {
		s.logger.Warn("Previous scan still running, skipping")
	}
}
