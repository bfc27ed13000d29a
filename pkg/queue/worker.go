package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// WorkerRepository defines the interface for worker operations
type WorkerRepository interface {
	// ClaimTask atomically claims the next available task
	ClaimTask(ctx context.Context, workerID uuid.UUID, queues []string, lockDuration time.Duration) (*Task, error)

	// CompleteTask marks task as completed
	CompleteTask(ctx context.Context, taskID uuid.UUID) error

	// FailTask records a failed attempt: increments the retry count and
	// either reschedules the task with backoff or marks it failed when the
	// attempt budget is exhausted.
	FailTask(ctx context.Context, taskID uuid.UUID, errorMsg string) error

	// FailTaskPermanently marks a task failed regardless of remaining
	// budget. Used for failures retries cannot fix.
	FailTaskPermanently(ctx context.Context, taskID uuid.UUID, errorMsg string) error
}

// TerminalFailureHook is invoked once a task exhausts its retry budget and
// transitions to the terminal failed status. The task carries the final
// retry count and last error.
type TerminalFailureHook func(ctx context.Context, task *Task)

// Worker processes tasks from the queue
type Worker struct {
	repo     WorkerRepository
	handlers map[string]Handler
	queues   []string
	workerID uuid.UUID
	sem      chan struct{}
	wg       sync.WaitGroup
	mu       sync.RWMutex
	stopMu   sync.Mutex // Protects stopping state and WaitGroup operations

	// Configuration
	pullInterval time.Duration
	lockTimeout  time.Duration
	onTerminal   TerminalFailureHook
	logger       *slog.Logger

	// State management
	ctx      context.Context
	cancel   context.CancelFunc
	stopping atomic.Bool
}

// NewWorker creates a new task worker
func NewWorker(repo WorkerRepository, opts ...WorkerOption) (*Worker, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}

	options := &workerOptions{
		queues:             []string{DefaultQueueName},
		pullInterval:       time.Second,
		lockTimeout:        2 * time.Minute,
		maxConcurrentTasks: 1,
		logger:             slog.Default(),
	}

	for _, opt := range opts {
		opt(options)
	}

	return &Worker{
		repo:         repo,
		handlers:     make(map[string]Handler),
		queues:       options.queues,
		workerID:     uuid.New(),
		sem:          make(chan struct{}, options.maxConcurrentTasks),
		pullInterval: options.pullInterval,
		lockTimeout:  options.lockTimeout,
		onTerminal:   options.onTerminal,
		logger:       options.logger,
	}, nil
}

// RegisterHandler registers a single task handler
func (w *Worker) RegisterHandler(handler Handler) {
	if handler == nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.handlers[handler.Name()] = handler
}

// RegisterHandlers registers multiple task handlers
func (w *Worker) RegisterHandlers(handlers ...Handler) {
	for _, h := range handlers {
		w.RegisterHandler(h)
	}
}

// Start begins processing tasks in the background
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.cancel != nil {
		w.mu.Unlock()
		return fmt.Errorf("worker already started")
	}

	if len(w.handlers) == 0 {
		w.mu.Unlock()
		return ErrNoHandlers
	}

	w.ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	w.stopping.Store(false)

	go w.run()

	w.logger.Info("worker started",
		slog.String("worker_id", w.workerID.String()),
		slog.Any("queues", w.queues),
		slog.Int("max_concurrent", cap(w.sem)))

	return nil
}

// Stop gracefully shuts down the worker, waiting for active tasks.
func (w *Worker) Stop() error {
	w.mu.Lock()
	if w.cancel == nil {
		w.mu.Unlock()
		return fmt.Errorf("worker not started")
	}

	// Use stopMu to synchronize with run() goroutine
	w.stopMu.Lock()
	w.stopping.Store(true)
	w.stopMu.Unlock()

	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	cancel()

	w.logger.Info("worker stopping, waiting for active tasks to complete",
		slog.String("worker_id", w.workerID.String()))

	w.wg.Wait()

	w.logger.Info("worker stopped",
		slog.String("worker_id", w.workerID.String()))

	return nil
}

// Run starts the worker and returns a function suitable for errgroup
func (w *Worker) Run(ctx context.Context) func() error {
	return func() error {
		if err := w.Start(ctx); err != nil {
			return err
		}

		<-ctx.Done()

		return w.Stop()
	}
}

// run is the main processing loop
func (w *Worker) run() {
	ticker := time.NewTicker(w.pullInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			// Try to acquire a slot
			select {
			case w.sem <- struct{}{}:
				// Use stopMu to ensure we don't add to WaitGroup after Stop() starts
				w.stopMu.Lock()
				if w.stopping.Load() {
					w.stopMu.Unlock()
					<-w.sem // Release slot
					return
				}

				w.wg.Add(1)
				w.stopMu.Unlock()

				go func() {
					defer w.wg.Done()
					defer func() { <-w.sem }() // Release slot

					if err := w.pullAndProcess(); err != nil {
						if !errors.Is(err, ErrHandlerNotFound) {
							w.logger.Error("failed to process task",
								slog.String("worker_id", w.workerID.String()),
								slog.String("error", err.Error()))
						}
					}
				}()
			default:
				w.logger.Debug("all worker slots busy, skipping tick",
					slog.String("worker_id", w.workerID.String()))
			}
		}
	}
}

// pullAndProcess pulls a task and processes it
func (w *Worker) pullAndProcess() error {
	task, err := w.repo.ClaimTask(w.ctx, w.workerID, w.queues, w.lockTimeout)
	if err != nil {
		// No task available is normal, not an error
		if errors.Is(err, ErrNoTaskToClaim) {
			return nil
		}
		return fmt.Errorf("failed to claim task: %w", err)
	}

	if task == nil {
		return nil
	}

	w.logger.Debug("claimed task",
		slog.String("worker_id", w.workerID.String()),
		slog.String("task_id", task.ID.String()),
		slog.String("task_name", task.TaskName),
		slog.String("queue", task.Queue))

	return w.processTask(task)
}

// processTask executes a task with its handler
func (w *Worker) processTask(task *Task) (retErr error) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			retErr = fmt.Errorf("panic in handler: %v", r)
			w.logger.Error("handler panicked",
				slog.String("worker_id", w.workerID.String()),
				slog.String("task_id", task.ID.String()),
				slog.String("task_name", task.TaskName),
				slog.Any("panic", r))
			// Treat panic as task failure
			_ = w.handleTaskFailure(task, retErr, time.Since(start))
		}
	}()

	w.mu.RLock()
	handler, ok := w.handlers[task.TaskName]
	w.mu.RUnlock()

	if !ok {
		return w.handleMissingHandler(task)
	}

	// The handler context is detached from the worker lifecycle so a
	// graceful shutdown lets in-flight tasks finish.
	ctx, cancel := context.WithTimeout(context.Background(), w.lockTimeout)
	defer cancel()

	err := handler.Handle(ctx, task.Payload)
	duration := time.Since(start)

	if err != nil {
		return w.handleTaskFailure(task, err, duration)
	}

	return w.handleTaskSuccess(task, duration)
}

// handleMissingHandler fails tasks that have no registered handler without
// retrying: retries cannot succeed until the handler code is deployed, and
// the terminal hook gives the owner a chance to reconcile its own records.
func (w *Worker) handleMissingHandler(task *Task) error {
	w.logger.Error("no handler registered for task type",
		slog.String("worker_id", w.workerID.String()),
		slog.String("task_id", task.ID.String()),
		slog.String("task_name", task.TaskName))

	errorMsg := "no handler registered for task type: " + task.TaskName
	if err := w.repo.FailTaskPermanently(w.ctx, task.ID, errorMsg); err != nil {
		return fmt.Errorf("failed to mark task %s as failed: %w", task.ID, err)
	}

	w.notifyTerminalFailure(task, errorMsg)

	return ErrHandlerNotFound
}

// handleTaskFailure records a failed attempt. FailTask owns the retry
// decision: it reschedules with backoff while budget remains and flips the
// task to failed when it is exhausted. When that happens the terminal hook
// fires exactly once, from this worker.
func (w *Worker) handleTaskFailure(task *Task, execErr error, duration time.Duration) error {
	w.logger.Error("task failed",
		slog.String("worker_id", w.workerID.String()),
		slog.String("task_id", task.ID.String()),
		slog.String("task_name", task.TaskName),
		slog.Int("retry_count", int(task.RetryCount)),
		slog.Int("max_retries", int(task.MaxRetries)),
		slog.Duration("duration", duration),
		slog.String("error", execErr.Error()))

	if err := w.repo.FailTask(w.ctx, task.ID, execErr.Error()); err != nil {
		return fmt.Errorf("failed to update task %s status to failed: %w", task.ID, err)
	}

	// task.RetryCount is the pre-attempt value; this attempt was the last
	// one when the incremented count reaches the budget.
	if task.RetryCount+1 >= task.MaxRetries {
		w.logger.Warn("task failed permanently, retry budget exhausted",
			slog.String("worker_id", w.workerID.String()),
			slog.String("task_id", task.ID.String()),
			slog.String("task_name", task.TaskName))

		w.notifyTerminalFailure(task, execErr.Error())
	}

	return nil
}

// handleTaskSuccess processes successful task completion
func (w *Worker) handleTaskSuccess(task *Task, duration time.Duration) error {
	if err := w.repo.CompleteTask(w.ctx, task.ID); err != nil {
		return fmt.Errorf("failed to mark task %s as completed: %w", task.ID, err)
	}

	w.logger.Info("task completed successfully",
		slog.String("worker_id", w.workerID.String()),
		slog.String("task_id", task.ID.String()),
		slog.String("task_name", task.TaskName),
		slog.String("queue", task.Queue),
		slog.Duration("duration", duration))

	return nil
}

func (w *Worker) notifyTerminalFailure(task *Task, errorMsg string) {
	if w.onTerminal == nil {
		return
	}

	cp := *task
	cp.Status = TaskStatusFailed
	cp.RetryCount = cp.MaxRetries
	cp.Error = &errorMsg

	w.onTerminal(w.ctx, &cp)
}
