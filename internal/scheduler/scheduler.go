// Package scheduler triggers the fulfillment poll on a cron schedule when the
// worker runs outside Lambda.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
}

func New() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(time.UTC), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Every registers job under a cron spec such as "@every 1m". Overlapping runs
// are skipped, so a slow batch is never polled twice concurrently.
func (s *Scheduler) Every(spec, name string, job func(ctx context.Context) error) error {
	if job == nil {
		return errors.New("scheduler: job must not be nil")
	}
	_, err := s.cron.AddFunc(spec, func() {
		if err := job(s.ctx); err != nil {
			slog.ErrorContext(s.ctx, "scheduled job failed", "job", name, "err", err)
		}
	})
	return err
}

func (s *Scheduler) Start() {
	s.cron.Start()
	slog.Info("scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop waits for running jobs and cancels their context.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.cancel()
	slog.Info("scheduler stopped")
}
