package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"dining-concierge/internal/digest"
	"dining-concierge/internal/domain"
	"dining-concierge/internal/retry"
)

const (
	defaultMaxResults = 3
	defaultPoolSize   = 50
)

type Catalog interface {
	FindByCuisine(ctx context.Context, cuisine string, limit int) ([]string, error)
	GetByIDs(ctx context.Context, ids []string) ([]domain.RestaurantRecord, error)
}

type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

type JobQueue interface {
	Acknowledge(ctx context.Context, job domain.NotificationJob) error
	DeadLetter(ctx context.Context, job domain.NotificationJob, reason string) error
}

// permanentError is implemented by notifier errors that must not be retried.
type permanentError interface {
	Permanent() bool
}

// Outcome is the result of processing one job.
type Outcome string

const (
	OutcomeAcknowledged Outcome = "acknowledged"
	OutcomeRetryLater   Outcome = "retry_later"
	OutcomeRejected     Outcome = "rejected"
	OutcomeDeadLettered Outcome = "dead_lettered"
)

// Settled reports whether the job left the main queue.
func (o Outcome) Settled() bool {
	return o == OutcomeAcknowledged || o == OutcomeDeadLettered
}

type Fulfiller struct {
	catalog    Catalog
	notifier   Notifier
	queue      JobQueue
	maxResults int
	poolSize   int
}

func NewFulfiller(c Catalog, n Notifier, q JobQueue, maxResults, poolSize int) (*Fulfiller, error) {
	if c == nil {
		return nil, errors.New("usecase: catalog must not be nil")
	}
	if n == nil {
		return nil, errors.New("usecase: notifier must not be nil")
	}
	if q == nil {
		return nil, errors.New("usecase: job queue must not be nil")
	}
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	if poolSize < maxResults {
		poolSize = defaultPoolSize
	}
	return &Fulfiller{catalog: c, notifier: n, queue: q, maxResults: maxResults, poolSize: poolSize}, nil
}

// ProcessJob resolves, renders, dispatches and acknowledges one job. The job is
// only acknowledged after the digest was handed to the notifier, so every
// failure before that point leaves it to the queue's redelivery.
func (f *Fulfiller) ProcessJob(ctx context.Context, job domain.NotificationJob) Outcome {
	log := slog.With(
		"message_id", job.MessageID,
		"receive_count", job.ReceiveCount,
		"session_id", job.Request.SessionID,
	)

	if job.Exhausted() {
		if err := f.queue.DeadLetter(ctx, job, "max_deliveries_exceeded"); err != nil {
			log.ErrorContext(ctx, "dead-letter move failed", "err", err)
			return OutcomeRetryLater
		}
		log.WarnContext(ctx, "job dead-lettered", "max_deliveries", domain.MaxDeliveries)
		return OutcomeDeadLettered
	}

	restaurants, err := f.Resolve(ctx, job.Request.Cuisine)
	if err != nil {
		log.ErrorContext(ctx, "catalog resolution failed", "cuisine", job.Request.Cuisine, "err", err)
		return OutcomeRetryLater
	}

	msg, err := digest.Render(job.Request, restaurants)
	if err != nil {
		log.ErrorContext(ctx, "digest render failed", "err", err)
		return OutcomeRetryLater
	}

	err = retry.Do(ctx, retry.DispatchPolicy(), "send_digest", func(ctx context.Context) error {
		err := f.notifier.Send(ctx, job.Request.Email, msg.Subject, msg.Body)
		if isPermanent(err) {
			return retry.Permanent(err)
		}
		return err
	})
	if err != nil {
		if isPermanent(err) {
			log.ErrorContext(ctx, "digest rejected by notification channel", "err", err)
			return OutcomeRejected
		}
		log.WarnContext(ctx, "digest dispatch failed, leaving job for redelivery", "err", err)
		return OutcomeRetryLater
	}

	if err := f.queue.Acknowledge(ctx, job); err != nil {
		log.ErrorContext(ctx, "acknowledge failed, job may be redelivered", "err", err)
	}
	log.InfoContext(ctx, "digest sent", "restaurants", len(restaurants))
	return OutcomeAcknowledged
}

// Resolve returns up to maxResults catalog records for cuisine, best rated
// first with ties broken by identifier.
func (f *Fulfiller) Resolve(ctx context.Context, cuisine domain.Cuisine) ([]domain.RestaurantRecord, error) {
	ids, err := retry.DoValue(ctx, retry.CatalogPolicy(), "catalog_find_by_cuisine", func(ctx context.Context) ([]string, error) {
		return f.catalog.FindByCuisine(ctx, cuisine.Key(), f.poolSize)
	})
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	records, err := retry.DoValue(ctx, retry.CatalogPolicy(), "catalog_get_by_ids", func(ctx context.Context) ([]domain.RestaurantRecord, error) {
		return f.catalog.GetByIDs(ctx, ids)
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Rating != records[j].Rating {
			return records[i].Rating > records[j].Rating
		}
		return records[i].ID < records[j].ID
	})
	if len(records) > f.maxResults {
		records = records[:f.maxResults]
	}
	return records, nil
}

func isPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p) && p.Permanent()
}
