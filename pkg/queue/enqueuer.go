package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EnqueuerRepository defines the interface for task creation
type EnqueuerRepository interface {
	CreateTask(ctx context.Context, task *Task) error
}

// Enqueuer handles task enqueueing. Enqueue returns once the task is
// durably accepted by the backing store, not once it is processed.
type Enqueuer struct {
	repo         EnqueuerRepository
	defaultQueue string
}

// NewEnqueuer creates a new Enqueuer
func NewEnqueuer(repo EnqueuerRepository, opts ...EnqueuerOption) (*Enqueuer, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}

	options := &enqueuerOptions{
		defaultQueue: DefaultQueueName,
	}

	for _, opt := range opts {
		opt(options)
	}

	return &Enqueuer{
		repo:         repo,
		defaultQueue: options.defaultQueue,
	}, nil
}

// Enqueue adds a new task to the queue
func (e *Enqueuer) Enqueue(ctx context.Context, payload any, opts ...EnqueueOption) error {
	if payload == nil {
		return ErrPayloadNil
	}

	options := &enqueueOptions{
		queue:      e.defaultQueue,
		maxRetries: DefaultMaxRetries,
	}

	for _, opt := range opts {
		opt(options)
	}

	task, err := e.buildTask(payload, options)
	if err != nil {
		return err
	}

	if err := e.repo.CreateTask(ctx, task); err != nil {
		return fmt.Errorf("failed to create task %q in queue %q: %w", task.TaskName, task.Queue, err)
	}

	return nil
}

// buildTask constructs a Task from payload and options
func (e *Enqueuer) buildTask(payload any, options *enqueueOptions) (*Task, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload of type %T: %w", payload, err)
	}

	taskName := options.taskName
	if taskName == "" {
		taskName = qualifiedStructName(payload)
	}

	return &Task{
		ID:          uuid.New(),
		Queue:       options.queue,
		TaskName:    taskName,
		Payload:     payloadBytes,
		Status:      TaskStatusPending,
		RetryCount:  0,
		MaxRetries:  options.maxRetries,
		ScheduledAt: time.Now(),
		CreatedAt:   time.Now(),
	}, nil
}
