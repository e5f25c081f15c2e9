package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// Job is one scheduled pipeline run.
type Job func(ctx context.Context) error

// RunTimeout bounds a single scheduled run. A run cancelled at this
// deadline aborts without writing artifacts, so it must comfortably cover
// the slowest expected run (many subreddits at concurrency 1 with a low
// RPM cap). Raise it rather than lowering the RPM limit if runs get cut.
const RunTimeout = 2 * time.Hour

// Scheduler re-runs the pipeline on a cron schedule. Each tick is an
// independent finite run; a failed run is logged and the schedule
// continues.
type Scheduler struct {
	cron *cron.Cron
}

// New creates a scheduler in the local timezone.
func New() *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithLocation(time.Local)),
	}
}

// AddRunJob schedules the job with a cron expression, e.g. "0 7 * * *".
func (s *Scheduler) AddRunJob(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), RunTimeout)
		defer cancel()

		log.Info("[scheduler] Starting run")
		start := time.Now()

		if err := job(ctx); err != nil {
			log.Errorf("[scheduler] Run failed: %v", err)
		} else {
			log.Infof("[scheduler] Run completed in %v", time.Since(start))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule run: %w", err)
	}

	log.Infof("[scheduler] Scheduled runs: %s", schedule)
	return nil
}

// Start begins running scheduled jobs.
func (s *Scheduler) Start() {
	log.Info("[scheduler] Starting scheduler")
	s.cron.Start()
}

// Stop halts the scheduler and returns a context that is done once any
// in-flight run finishes.
func (s *Scheduler) Stop() context.Context {
	log.Info("[scheduler] Stopping scheduler")
	return s.cron.Stop()
}
