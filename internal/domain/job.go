package domain

import "time"

// MaxDeliveries is the number of delivery attempts before a job is dead-lettered.
const MaxDeliveries = 3

// NotificationJob is a queued dining request plus its delivery metadata.
type NotificationJob struct {
	MessageID     string
	ReceiptHandle string
	ReceiveCount  int
	EnqueuedAt    time.Time
	Request       DiningRequest
}

// Exhausted reports whether the job has been delivered more times than allowed.
func (j NotificationJob) Exhausted() bool {
	return j.ReceiveCount > MaxDeliveries
}
