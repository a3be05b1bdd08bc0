// Package jobs runs background maintenance on a cron schedule.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// QuotaSweeper zeroes stale daily generation counters.
type QuotaSweeper interface {
	SweepQuotas(ctx context.Context) (int, error)
}

type Scheduler struct {
	cron     *cron.Cron
	sweeper  QuotaSweeper
	schedule string
	timeout  time.Duration
}

// NewScheduler evaluates schedule in loc, the same zone used for quota days.
func NewScheduler(sweeper QuotaSweeper, schedule string, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.Recover(cron.PrintfLogger(log.StandardLogger()))),
		),
		sweeper:  sweeper,
		schedule: schedule,
		timeout:  5 * time.Minute,
	}
}

// Start registers the jobs and starts the cron loop. Jobs stop picking up
// work once ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.schedule, func() { s.RunQuotaSweep(ctx) }); err != nil {
		return fmt.Errorf("schedule quota sweep %q: %w", s.schedule, err)
	}

	s.cron.Start()
	log.WithField("quota_sweep", s.schedule).Info("[cron] scheduler started")
	return nil
}

// RunQuotaSweep performs one sweep and logs the outcome.
func (s *Scheduler) RunQuotaSweep(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	n, err := s.sweeper.SweepQuotas(ctx)
	entry := log.WithFields(log.Fields{
		"reset":    n,
		"duration": time.Since(start).String(),
	})
	if err != nil {
		entry.WithError(err).Error("[cron] quota sweep failed")
		return
	}
	entry.Info("[cron] quota sweep done")
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("[cron] scheduler stopped")
}
