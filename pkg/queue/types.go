package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DefaultQueueName is the default queue name used when no queue is specified
const DefaultQueueName = "notifications"

// DefaultMaxRetries is the default total attempt budget for a task.
const DefaultMaxRetries int8 = 3

// TaskStatus represents the status of a task
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Task represents a task in the queue
type Task struct {
	ID          uuid.UUID  `json:"id"`
	Queue       string     `json:"queue"`
	TaskName    string     `json:"task_name"`
	Payload     []byte     `json:"payload,omitempty"`
	Status      TaskStatus `json:"status"`
	RetryCount  int8       `json:"retry_count"`
	MaxRetries  int8       `json:"max_retries"`
	ScheduledAt time.Time  `json:"scheduled_at"`
	LockedUntil *time.Time `json:"locked_until,omitempty"`
	LockedBy    *uuid.UUID `json:"locked_by,omitempty"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	Error       *string    `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Depth is a point-in-time snapshot of the queue for the operational
// health endpoint.
type Depth struct {
	Waiting int64 `json:"waiting"` // pending and due now
	Active  int64 `json:"active"`  // claimed by a worker
	Failed  int64 `json:"failed"`  // retry budget exhausted
	Delayed int64 `json:"delayed"` // pending with a future scheduled_at (backoff)
}

// StatsRepository exposes queue depth counters for monitoring.
type StatsRepository interface {
	Stats(ctx context.Context) (Depth, error)
}

// retryBackoff computes the delay before the next attempt: the base delay
// doubles on every failed attempt (base, 2*base, 4*base, ...).
func retryBackoff(retryCount int8, base time.Duration) time.Duration {
	if retryCount < 1 {
		retryCount = 1
	}
	return base << (retryCount - 1)
}
