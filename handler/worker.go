package handler

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"

	"dining-concierge/internal/domain"
	"dining-concierge/internal/integrations/queue"
	"dining-concierge/internal/usecase"
)

// JobRunner processes fulfillment jobs. *usecase.Runner satisfies it.
type JobRunner interface {
	ProcessBatch(ctx context.Context, jobs []domain.NotificationJob) []usecase.Outcome
	PollOnce(ctx context.Context) (usecase.BatchSummary, error)
}

// Worker serves the fulfillment Lambda in either trigger mode: an SQS event
// source mapping or a scheduled poll.
type Worker struct {
	runner JobRunner
}

func NewWorker(runner JobRunner) (*Worker, error) {
	if runner == nil {
		return nil, errors.New("handler: job runner must not be nil")
	}
	return &Worker{runner: runner}, nil
}

// HandleSQS processes a batch delivered by the event source mapping. Every
// record that was not acknowledged or dead-lettered is reported back so SQS
// redelivers only those.
func (w *Worker) HandleSQS(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse
	jobs := make([]domain.NotificationJob, 0, len(ev.Records))
	for _, rec := range ev.Records {
		job, err := queue.JobFromRecord(rec)
		if err != nil {
			slog.WarnContext(ctx, "undecodable sqs record", "message_id", rec.MessageId, "err", err)
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: rec.MessageId})
			continue
		}
		jobs = append(jobs, job)
	}

	outcomes := w.runner.ProcessBatch(ctx, jobs)
	for i, outcome := range outcomes {
		if !outcome.Settled() {
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: jobs[i].MessageID})
		}
	}
	slog.InfoContext(ctx, "sqs batch handled", "records", len(ev.Records), "failures", len(resp.BatchItemFailures))
	return resp, nil
}

// HandleSchedule drains one batch when invoked by the EventBridge schedule.
func (w *Worker) HandleSchedule(ctx context.Context, _ events.EventBridgeEvent) (usecase.BatchSummary, error) {
	summary, err := w.runner.PollOnce(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "scheduled poll failed", "err", err)
		return usecase.BatchSummary{}, err
	}
	return summary, nil
}
