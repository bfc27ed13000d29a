package queue

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage implements all queue repository interfaces for testing and
// local development (direct-send-only deployments run without any broker,
// so this backend mostly serves tests).
type MemoryStorage struct {
	mu    sync.RWMutex
	tasks map[uuid.UUID]*Task

	// Index for efficient claim queries
	byStatus map[TaskStatus][]uuid.UUID

	retryBaseDelay time.Duration

	// Lock management
	lockTicker *time.Ticker
	done       chan struct{}
	closeOnce  sync.Once
}

// MemoryStorageOption configures a MemoryStorage
type MemoryStorageOption func(*MemoryStorage)

// WithRetryBaseDelay sets the base delay for the exponential retry backoff
func WithRetryBaseDelay(d time.Duration) MemoryStorageOption {
	return func(ms *MemoryStorage) {
		if d > 0 {
			ms.retryBaseDelay = d
		}
	}
}

// NewMemoryStorage creates a new in-memory storage implementation
func NewMemoryStorage(opts ...MemoryStorageOption) *MemoryStorage {
	ms := &MemoryStorage{
		tasks:          make(map[uuid.UUID]*Task),
		byStatus:       make(map[TaskStatus][]uuid.UUID),
		retryBaseDelay: 30 * time.Second,
		done:           make(chan struct{}),
	}

	for _, opt := range opts {
		opt(ms)
	}

	// Recover tasks whose workers died holding a lock
	ms.lockTicker = time.NewTicker(time.Second)
	go ms.lockExpirationManager()

	return ms
}

// Close stops the background goroutines
func (ms *MemoryStorage) Close() error {
	ms.closeOnce.Do(func() {
		close(ms.done)
		ms.lockTicker.Stop()
	})
	return nil
}

// CreateTask implements EnqueuerRepository
func (ms *MemoryStorage) CreateTask(ctx context.Context, task *Task) error {
	if task == nil {
		return errors.New("task cannot be nil")
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.tasks[task.ID]; exists {
		return fmt.Errorf("task with ID %s already exists", task.ID)
	}

	// Clone task to prevent external modifications
	taskCopy := *task
	ms.tasks[task.ID] = &taskCopy

	ms.byStatus[task.Status] = append(ms.byStatus[task.Status], task.ID)

	return nil
}

// ClaimTask implements WorkerRepository
func (ms *MemoryStorage) ClaimTask(ctx context.Context, workerID uuid.UUID, queues []string, lockDuration time.Duration) (*Task, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := time.Now()
	var bestTask *Task

	// Oldest due task first
	for _, taskID := range ms.byStatus[TaskStatusPending] {
		task := ms.tasks[taskID]

		if !slices.Contains(queues, task.Queue) {
			continue
		}

		// Skip tasks scheduled for future execution (backoff delays)
		if task.ScheduledAt.After(now) {
			continue
		}

		if bestTask == nil || task.ScheduledAt.Before(bestTask.ScheduledAt) {
			bestTask = task
		}
	}

	if bestTask == nil {
		return nil, ErrNoTaskToClaim
	}

	lockUntil := now.Add(lockDuration)
	bestTask.Status = TaskStatusProcessing
	bestTask.LockedUntil = &lockUntil
	bestTask.LockedBy = &workerID

	ms.removeFromStatusIndex(bestTask.ID, TaskStatusPending)
	ms.byStatus[TaskStatusProcessing] = append(ms.byStatus[TaskStatusProcessing], bestTask.ID)

	// Return a copy to prevent external modifications
	taskCopy := *bestTask
	return &taskCopy, nil
}

// CompleteTask implements WorkerRepository
func (ms *MemoryStorage) CompleteTask(ctx context.Context, taskID uuid.UUID) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	task, exists := ms.tasks[taskID]
	if !exists {
		return ErrTaskNotFound
	}

	if task.Status != TaskStatusProcessing {
		return fmt.Errorf("task %s is not in processing state", taskID)
	}

	now := time.Now()
	task.Status = TaskStatusCompleted
	task.ProcessedAt = &now
	task.LockedUntil = nil
	task.LockedBy = nil

	ms.removeFromStatusIndex(taskID, TaskStatusProcessing)
	ms.byStatus[TaskStatusCompleted] = append(ms.byStatus[TaskStatusCompleted], taskID)

	return nil
}

// FailTask implements WorkerRepository
func (ms *MemoryStorage) FailTask(ctx context.Context, taskID uuid.UUID, errorMsg string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	task, exists := ms.tasks[taskID]
	if !exists {
		return ErrTaskNotFound
	}

	if task.Status != TaskStatusProcessing {
		return fmt.Errorf("task %s is not in processing state", taskID)
	}

	task.RetryCount++
	task.Error = &errorMsg
	task.LockedUntil = nil
	task.LockedBy = nil

	if task.RetryCount >= task.MaxRetries {
		task.Status = TaskStatusFailed
		ms.removeFromStatusIndex(taskID, TaskStatusProcessing)
		ms.byStatus[TaskStatusFailed] = append(ms.byStatus[TaskStatusFailed], taskID)
	} else {
		// Reset to pending with exponential backoff: the base delay doubles
		// on every failed attempt.
		task.Status = TaskStatusPending
		ms.removeFromStatusIndex(taskID, TaskStatusProcessing)
		ms.byStatus[TaskStatusPending] = append(ms.byStatus[TaskStatusPending], taskID)

		task.ScheduledAt = time.Now().Add(retryBackoff(task.RetryCount, ms.retryBaseDelay))
	}

	return nil
}

// FailTaskPermanently implements WorkerRepository
func (ms *MemoryStorage) FailTaskPermanently(ctx context.Context, taskID uuid.UUID, errorMsg string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	task, exists := ms.tasks[taskID]
	if !exists {
		return ErrTaskNotFound
	}

	if task.Status == TaskStatusCompleted || task.Status == TaskStatusFailed {
		return nil
	}

	prev := task.Status
	task.Status = TaskStatusFailed
	task.Error = &errorMsg
	task.LockedUntil = nil
	task.LockedBy = nil

	ms.removeFromStatusIndex(taskID, prev)
	ms.byStatus[TaskStatusFailed] = append(ms.byStatus[TaskStatusFailed], taskID)

	return nil
}

// Stats implements StatsRepository
func (ms *MemoryStorage) Stats(ctx context.Context) (Depth, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var d Depth
	now := time.Now()
	for _, taskID := range ms.byStatus[TaskStatusPending] {
		if ms.tasks[taskID].ScheduledAt.After(now) {
			d.Delayed++
		} else {
			d.Waiting++
		}
	}
	d.Active = int64(len(ms.byStatus[TaskStatusProcessing]))
	d.Failed = int64(len(ms.byStatus[TaskStatusFailed]))

	return d, nil
}

// GetTask returns a copy of the stored task. Intended for tests and
// reconciliation tooling.
func (ms *MemoryStorage) GetTask(taskID uuid.UUID) (*Task, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	task, exists := ms.tasks[taskID]
	if !exists {
		return nil, ErrTaskNotFound
	}

	taskCopy := *task
	return &taskCopy, nil
}

func (ms *MemoryStorage) removeFromStatusIndex(taskID uuid.UUID, status TaskStatus) {
	ms.byStatus[status] = slices.DeleteFunc(ms.byStatus[status], func(id uuid.UUID) bool {
		return id == taskID
	})
}

// lockExpirationManager recovers tasks from dead workers: without it, tasks
// locked by a crashed worker would be stuck in processing forever.
func (ms *MemoryStorage) lockExpirationManager() {
	for {
		select {
		case <-ms.lockTicker.C:
			ms.expireLocks()
		case <-ms.done:
			return
		}
	}
}

// expireLocks resets processing tasks with expired locks back to pending,
// preserving their retry count.
func (ms *MemoryStorage) expireLocks() {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := time.Now()
	// Snapshot the index: removeFromStatusIndex shrinks the slice in place,
	// which would corrupt a live range over it.
	for _, taskID := range slices.Clone(ms.byStatus[TaskStatusProcessing]) {
		task := ms.tasks[taskID]
		if task.LockedUntil != nil && task.LockedUntil.Before(now) {
			task.Status = TaskStatusPending
			task.LockedUntil = nil
			task.LockedBy = nil

			ms.removeFromStatusIndex(taskID, TaskStatusProcessing)
			ms.byStatus[TaskStatusPending] = append(ms.byStatus[TaskStatusPending], taskID)
		}
	}
}
