package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStorage implements the queue repository interfaces on top of Redis,
// making Redis the message broker for the queued delivery path.
//
// Layout per queue:
//   - {prefix}:task:{id}        task body as JSON
//   - {prefix}:pending:{queue}  sorted set scored by scheduled-at (ms)
//   - {prefix}:processing:{q}   sorted set scored by locked-until (ms)
//   - {prefix}:failed:{queue}   sorted set scored by failed-at (ms)
//
// Claims are atomic: a Lua script first recovers tasks whose worker lock
// expired, then pops the oldest due pending task and moves it to the
// processing set in one round trip, so concurrent workers never claim the
// same task twice.
type RedisStorage struct {
	client         redis.UniversalClient
	prefix         string
	retryBaseDelay time.Duration
	completedTTL   time.Duration
}

// RedisStorageOption configures a RedisStorage
type RedisStorageOption func(*RedisStorage)

// WithKeyPrefix sets the key namespace prefix
func WithKeyPrefix(prefix string) RedisStorageOption {
	return func(rs *RedisStorage) {
		if prefix != "" {
			rs.prefix = prefix
		}
	}
}

// WithRedisRetryBaseDelay sets the base delay for the exponential retry backoff
func WithRedisRetryBaseDelay(d time.Duration) RedisStorageOption {
	return func(rs *RedisStorage) {
		if d > 0 {
			rs.retryBaseDelay = d
		}
	}
}

// NewRedisStorage creates a redis-backed storage implementation
func NewRedisStorage(client redis.UniversalClient, opts ...RedisStorageOption) (*RedisStorage, error) {
	if client == nil {
		return nil, ErrRepositoryNil
	}

	rs := &RedisStorage{
		client:         client,
		prefix:         "notifq",
		retryBaseDelay: 30 * time.Second,
		completedTTL:   24 * time.Hour,
	}

	for _, opt := range opts {
		opt(rs)
	}

	return rs, nil
}

func (rs *RedisStorage) taskKey(id uuid.UUID) string {
	return fmt.Sprintf("%s:task:%s", rs.prefix, id)
}

func (rs *RedisStorage) pendingKey(queue string) string {
	return fmt.Sprintf("%s:pending:%s", rs.prefix, queue)
}

func (rs *RedisStorage) processingKey(queue string) string {
	return fmt.Sprintf("%s:processing:%s", rs.prefix, queue)
}

func (rs *RedisStorage) failedKey(queue string) string {
	return fmt.Sprintf("%s:failed:%s", rs.prefix, queue)
}

// CreateTask implements EnqueuerRepository. The task is durably accepted
// once both the body and the pending entry are written.
func (rs *RedisStorage) CreateTask(ctx context.Context, task *Task) error {
	if task == nil {
		return errors.New("task cannot be nil")
	}

	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task %s: %w", task.ID, err)
	}

	pipe := rs.client.TxPipeline()
	pipe.Set(ctx, rs.taskKey(task.ID), body, 0)
	pipe.ZAdd(ctx, rs.pendingKey(task.Queue), redis.Z{
		Score:  float64(task.ScheduledAt.UnixMilli()),
		Member: task.ID.String(),
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to enqueue task %s: %w", task.ID, err)
	}

	return nil
}

// claimScript recovers expired locks, then atomically moves the oldest due
// pending task into the processing set.
var claimScript = redis.NewScript(`
local expired = redis.call('ZRANGEBYSCORE', KEYS[2], '-inf', ARGV[1])
for _, id in ipairs(expired) do
	redis.call('ZREM', KEYS[2], id)
	redis.call('ZADD', KEYS[1], ARGV[1], id)
end
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, 1)
if #due == 0 then
	return false
end
redis.call('ZREM', KEYS[1], due[1])
redis.call('ZADD', KEYS[2], ARGV[2], due[1])
return due[1]
`)

// ClaimTask implements WorkerRepository
func (rs *RedisStorage) ClaimTask(ctx context.Context, workerID uuid.UUID, queues []string, lockDuration time.Duration) (*Task, error) {
	now := time.Now()
	lockUntil := now.Add(lockDuration)

	for _, queue := range queues {
		res, err := claimScript.Run(ctx, rs.client,
			[]string{rs.pendingKey(queue), rs.processingKey(queue)},
			now.UnixMilli(), lockUntil.UnixMilli(),
		).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, fmt.Errorf("failed to claim task from queue %q: %w", queue, err)
		}

		idStr, ok := res.(string)
		if !ok || idStr == "" {
			continue
		}

		taskID, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("invalid task id %q in queue %q: %w", idStr, queue, err)
		}

		task, err := rs.loadTask(ctx, taskID)
		if err != nil {
			return nil, err
		}

		task.Status = TaskStatusProcessing
		task.LockedUntil = &lockUntil
		task.LockedBy = &workerID
		if err := rs.storeTask(ctx, task, 0); err != nil {
			return nil, err
		}

		return task, nil
	}

	return nil, ErrNoTaskToClaim
}

// CompleteTask implements WorkerRepository. Completed task bodies are kept
// with a TTL for post-hoc inspection instead of being deleted outright.
func (rs *RedisStorage) CompleteTask(ctx context.Context, taskID uuid.UUID) error {
	task, err := rs.loadTask(ctx, taskID)
	if err != nil {
		return err
	}

	now := time.Now()
	task.Status = TaskStatusCompleted
	task.ProcessedAt = &now
	task.LockedUntil = nil
	task.LockedBy = nil

	if err := rs.storeTask(ctx, task, rs.completedTTL); err != nil {
		return err
	}

	if err := rs.client.ZRem(ctx, rs.processingKey(task.Queue), taskID.String()).Err(); err != nil {
		return fmt.Errorf("failed to remove task %s from processing: %w", taskID, err)
	}

	return nil
}

// FailTask implements WorkerRepository
func (rs *RedisStorage) FailTask(ctx context.Context, taskID uuid.UUID, errorMsg string) error {
	task, err := rs.loadTask(ctx, taskID)
	if err != nil {
		return err
	}

	task.RetryCount++
	task.Error = &errorMsg
	task.LockedUntil = nil
	task.LockedBy = nil

	now := time.Now()
	pipe := rs.client.TxPipeline()
	pipe.ZRem(ctx, rs.processingKey(task.Queue), taskID.String())

	if task.RetryCount >= task.MaxRetries {
		task.Status = TaskStatusFailed
		pipe.ZAdd(ctx, rs.failedKey(task.Queue), redis.Z{
			Score:  float64(now.UnixMilli()),
			Member: taskID.String(),
		})
	} else {
		// Back on the pending set with exponential backoff: the base delay
		// doubles on every failed attempt.
		task.Status = TaskStatusPending
		task.ScheduledAt = now.Add(retryBackoff(task.RetryCount, rs.retryBaseDelay))
		pipe.ZAdd(ctx, rs.pendingKey(task.Queue), redis.Z{
			Score:  float64(task.ScheduledAt.UnixMilli()),
			Member: taskID.String(),
		})
	}

	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task %s: %w", taskID, err)
	}
	pipe.Set(ctx, rs.taskKey(taskID), body, 0)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record task %s failure: %w", taskID, err)
	}

	return nil
}

// FailTaskPermanently implements WorkerRepository
func (rs *RedisStorage) FailTaskPermanently(ctx context.Context, taskID uuid.UUID, errorMsg string) error {
	task, err := rs.loadTask(ctx, taskID)
	if err != nil {
		return err
	}

	if task.Status == TaskStatusCompleted || task.Status == TaskStatusFailed {
		return nil
	}

	task.Status = TaskStatusFailed
	task.Error = &errorMsg
	task.LockedUntil = nil
	task.LockedBy = nil

	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task %s: %w", taskID, err)
	}

	pipe := rs.client.TxPipeline()
	pipe.ZRem(ctx, rs.pendingKey(task.Queue), taskID.String())
	pipe.ZRem(ctx, rs.processingKey(task.Queue), taskID.String())
	pipe.ZAdd(ctx, rs.failedKey(task.Queue), redis.Z{
		Score:  float64(time.Now().UnixMilli()),
		Member: taskID.String(),
	})
	pipe.Set(ctx, rs.taskKey(taskID), body, 0)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to permanently fail task %s: %w", taskID, err)
	}

	return nil
}

// Stats implements StatsRepository for the default queue.
func (rs *RedisStorage) Stats(ctx context.Context) (Depth, error) {
	return rs.StatsForQueue(ctx, DefaultQueueName)
}

// StatsForQueue returns queue depth counters for one queue.
func (rs *RedisStorage) StatsForQueue(ctx context.Context, queue string) (Depth, error) {
	now := fmt.Sprintf("%d", time.Now().UnixMilli())

	pipe := rs.client.Pipeline()
	waiting := pipe.ZCount(ctx, rs.pendingKey(queue), "-inf", now)
	delayed := pipe.ZCount(ctx, rs.pendingKey(queue), "("+now, "+inf")
	active := pipe.ZCard(ctx, rs.processingKey(queue))
	failed := pipe.ZCard(ctx, rs.failedKey(queue))
	if _, err := pipe.Exec(ctx); err != nil {
		return Depth{}, fmt.Errorf("failed to read queue stats: %w", err)
	}

	return Depth{
		Waiting: waiting.Val(),
		Active:  active.Val(),
		Failed:  failed.Val(),
		Delayed: delayed.Val(),
	}, nil
}

func (rs *RedisStorage) loadTask(ctx context.Context, taskID uuid.UUID) (*Task, error) {
	body, err := rs.client.Get(ctx, rs.taskKey(taskID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to load task %s: %w", taskID, err)
	}

	var task Task
	if err := json.Unmarshal(body, &task); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task %s: %w", taskID, err)
	}
	return &task, nil
}

func (rs *RedisStorage) storeTask(ctx context.Context, task *Task, ttl time.Duration) error {
	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task %s: %w", task.ID, err)
	}
	if err := rs.client.Set(ctx, rs.taskKey(task.ID), body, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store task %s: %w", task.ID, err)
	}
	return nil
}
