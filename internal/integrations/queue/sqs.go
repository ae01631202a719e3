// Package queue carries dining requests between the chat front door and the
// fulfillment worker over SQS. Delivery is at-least-once; a message is only
// deleted once the worker acknowledges it.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"dining-concierge/internal/domain"
)

const (
	attrReceiveCount = "ApproximateReceiveCount"
	attrSentAt       = "SentTimestamp"
	maxBatch         = 10
)

// ErrNoDeadLetterQueue is returned by DeadLetter when no DLQ URL is configured.
var ErrNoDeadLetterQueue = errors.New("queue: dead-letter queue not configured")

// sqsAPI is the minimal SQS interface required by Queue.
type sqsAPI interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

type Queue struct {
	api         sqsAPI
	queueURL    string
	dlqURL      string
	waitSeconds int32
}

type Option func(*Queue)

// WithDeadLetterQueue enables explicit dead-lettering of exhausted and
// undecodable messages.
func WithDeadLetterQueue(url string) Option {
	return func(q *Queue) {
		q.dlqURL = strings.TrimSpace(url)
	}
}

// WithWaitTime sets the long-poll wait of Poll, capped at 20 seconds.
func WithWaitTime(d time.Duration) Option {
	return func(q *Queue) {
		q.waitSeconds = int32(min(max(d/time.Second, 0), 20))
	}
}

func New(api sqsAPI, queueURL string, opts ...Option) (*Queue, error) {
	if api == nil {
		return nil, errors.New("queue: api must not be nil")
	}
	if strings.TrimSpace(queueURL) == "" {
		return nil, errors.New("queue: queue url must not be empty")
	}
	q := &Queue{api: api, queueURL: queueURL, waitSeconds: 1}
	for _, opt := range opts {
		opt(q)
	}
	return q, nil
}

// Enqueue publishes one dining request.
func (q *Queue) Enqueue(ctx context.Context, req domain.DiningRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("queue: Enqueue encode: %w", err)
	}
	_, err = q.api.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"cuisine": stringAttr(string(req.Cuisine)),
		},
	})
	if err != nil {
		return fmt.Errorf("queue: Enqueue: %w", err)
	}
	return nil
}

// Poll receives up to max jobs. Messages whose body is not a valid dining
// request are moved to the dead-letter queue and never returned.
func (q *Queue) Poll(ctx context.Context, maxJobs int) ([]domain.NotificationJob, error) {
	if maxJobs <= 0 || maxJobs > maxBatch {
		maxJobs = maxBatch
	}
	out, err := q.api.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.queueURL),
		MaxNumberOfMessages: int32(maxJobs),
		WaitTimeSeconds:     q.waitSeconds,
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{
			types.MessageSystemAttributeNameApproximateReceiveCount,
			types.MessageSystemAttributeNameSentTimestamp,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("queue: Poll receive: %w", err)
	}

	jobs := make([]domain.NotificationJob, 0, len(out.Messages))
	for _, m := range out.Messages {
		job, err := decodeJob(aws.ToString(m.MessageId), aws.ToString(m.ReceiptHandle), aws.ToString(m.Body), m.Attributes)
		if err != nil {
			slog.WarnContext(ctx, "undecodable queue message", "message_id", job.MessageID, "err", err)
			if dlqErr := q.deadLetterRaw(ctx, job, aws.ToString(m.Body), "undecodable_body"); dlqErr != nil {
				slog.ErrorContext(ctx, "dead-letter move failed, leaving message for redrive",
					"message_id", job.MessageID, "err", dlqErr)
			}
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Acknowledge deletes the message so it is not delivered again.
func (q *Queue) Acknowledge(ctx context.Context, job domain.NotificationJob) error {
	if job.ReceiptHandle == "" {
		return errors.New("queue: Acknowledge: receipt handle is required")
	}
	_, err := q.api.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: aws.String(job.ReceiptHandle),
	})
	if err != nil {
		return fmt.Errorf("queue: Acknowledge: %w", err)
	}
	return nil
}

// DeadLetter copies the request to the dead-letter queue and removes it from
// the main queue.
func (q *Queue) DeadLetter(ctx context.Context, job domain.NotificationJob, reason string) error {
	body, err := json.Marshal(job.Request)
	if err != nil {
		return fmt.Errorf("queue: DeadLetter encode: %w", err)
	}
	return q.deadLetterRaw(ctx, job, string(body), reason)
}

func (q *Queue) deadLetterRaw(ctx context.Context, job domain.NotificationJob, body, reason string) error {
	if q.dlqURL == "" {
		return ErrNoDeadLetterQueue
	}
	_, err := q.api.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.dlqURL),
		MessageBody: aws.String(body),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"reason":            stringAttr(reason),
			"originalMessageId": stringAttr(job.MessageID),
			"receiveCount": {
				DataType:    aws.String("Number"),
				StringValue: aws.String(strconv.Itoa(job.ReceiveCount)),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("queue: DeadLetter send: %w", err)
	}
	if err := q.Acknowledge(ctx, job); err != nil {
		return fmt.Errorf("queue: DeadLetter: %w", err)
	}
	return nil
}

// JobFromRecord decodes a record delivered by the Lambda SQS event source.
// The returned job carries the message id even when decoding fails so the
// caller can report it as a batch item failure.
func JobFromRecord(rec events.SQSMessage) (domain.NotificationJob, error) {
	return decodeJob(rec.MessageId, rec.ReceiptHandle, rec.Body, rec.Attributes)
}

func decodeJob(messageID, receipt, body string, attrs map[string]string) (domain.NotificationJob, error) {
	job := domain.NotificationJob{
		MessageID:     messageID,
		ReceiptHandle: receipt,
		ReceiveCount:  1,
	}
	if v, err := strconv.Atoi(attrs[attrReceiveCount]); err == nil && v > 0 {
		job.ReceiveCount = v
	}
	if ms, err := strconv.ParseInt(attrs[attrSentAt], 10, 64); err == nil {
		job.EnqueuedAt = time.UnixMilli(ms).UTC()
	}

	var req domain.DiningRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		return job, fmt.Errorf("queue: decode body: %w", err)
	}
	if err := req.Check(); err != nil {
		return job, err
	}
	job.Request = req
	return job, nil
}

func stringAttr(v string) types.MessageAttributeValue {
	return types.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(v)}
}
