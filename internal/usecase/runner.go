package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"dining-concierge/internal/domain"
)

const (
	defaultBatchSize    = 10
	defaultConcurrency  = 4
	defaultBatchTimeout = 25 * time.Second
)

type JobSource interface {
	Poll(ctx context.Context, max int) ([]domain.NotificationJob, error)
}

type JobProcessor interface {
	ProcessJob(ctx context.Context, job domain.NotificationJob) Outcome
}

// BatchSummary counts the outcomes of one poll cycle.
type BatchSummary struct {
	Received int
	Outcomes map[Outcome]int
}

// Runner drains the queue in bounded batches, one batch per invocation.
type Runner struct {
	source       JobSource
	processor    JobProcessor
	batchSize    int
	concurrency  int
	batchTimeout time.Duration
}

func NewRunner(source JobSource, processor JobProcessor, batchSize, concurrency int, batchTimeout time.Duration) (*Runner, error) {
	if source == nil {
		return nil, errors.New("usecase: job source must not be nil")
	}
	if processor == nil {
		return nil, errors.New("usecase: job processor must not be nil")
	}
	if batchSize <= 0 || batchSize > defaultBatchSize {
		batchSize = defaultBatchSize
	}
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	if batchTimeout <= 0 {
		batchTimeout = defaultBatchTimeout
	}
	return &Runner{
		source:       source,
		processor:    processor,
		batchSize:    batchSize,
		concurrency:  concurrency,
		batchTimeout: batchTimeout,
	}, nil
}

// PollOnce receives one batch and processes it.
func (r *Runner) PollOnce(ctx context.Context) (BatchSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, r.batchTimeout)
	defer cancel()

	jobs, err := r.source.Poll(ctx, r.batchSize)
	if err != nil {
		return BatchSummary{}, fmt.Errorf("usecase: poll jobs: %w", err)
	}
	outcomes := r.ProcessBatch(ctx, jobs)

	summary := BatchSummary{Received: len(jobs), Outcomes: make(map[Outcome]int, 4)}
	for _, o := range outcomes {
		summary.Outcomes[o]++
	}
	if len(jobs) > 0 {
		slog.InfoContext(ctx, "batch processed", "received", len(jobs), "outcomes", summary.Outcomes)
	}
	return summary, nil
}

// ProcessBatch processes jobs concurrently under the batch timeout. Jobs share
// no state, so the only coordination is the concurrency limit. Outcomes are
// index-aligned with jobs.
func (r *Runner) ProcessBatch(ctx context.Context, jobs []domain.NotificationJob) []Outcome {
	ctx, cancel := context.WithTimeout(ctx, r.batchTimeout)
	defer cancel()

	outcomes := make([]Outcome, len(jobs))
	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, job := range jobs {
		g.Go(func() error {
			outcomes[i] = r.processor.ProcessJob(ctx, job)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}
