package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Job is a unit of periodic work.
type Job interface {
	Run()
}

// Scheduler runs jobs on cron schedules. A job whose previous run is still
// in progress is skipped rather than queued.
type Scheduler struct {
	cron   *cron.Cron
	logger *logrus.Logger
}

func New(logger *logrus.Logger) *Scheduler {
	cl := cron.PrintfLogger(logger)
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger: logger,
	}
}

// Add registers job under a standard five-field cron expression (or a descriptor
// such as "@every 1h").
func (s *Scheduler) Add(name, schedule string, job Job) error {
	sched, err := cron.ParseStandard(schedule)
	if err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	s.cron.Schedule(sched, job)
	s.logger.WithFields(logrus.Fields{
		"job":      name,
		"schedule": schedule,
		"next_run": sched.Next(time.Now()),
	}).Info("job scheduled")
	return nil
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop prevents new runs and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
