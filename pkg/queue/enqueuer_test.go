package queue_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorboard/notifier/pkg/queue"
)

type emailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
}

// capturingRepo stores created tasks for inspection.
type capturingRepo struct {
	tasks []*queue.Task
	err   error
}

func (r *capturingRepo) CreateTask(ctx context.Context, task *queue.Task) error {
	if r.err != nil {
		return r.err
	}
	r.tasks = append(r.tasks, task)
	return nil
}

func TestNewEnqueuer(t *testing.T) {
	t.Parallel()

	t.Run("nil repository", func(t *testing.T) {
		t.Parallel()

		_, err := queue.NewEnqueuer(nil)
		assert.ErrorIs(t, err, queue.ErrRepositoryNil)
	})

	t.Run("successful creation", func(t *testing.T) {
		t.Parallel()

		e, err := queue.NewEnqueuer(&capturingRepo{})
		require.NoError(t, err)
		assert.NotNil(t, e)
	})
}

func TestEnqueuer_Enqueue(t *testing.T) {
	t.Parallel()

	t.Run("nil payload", func(t *testing.T) {
		t.Parallel()

		e, err := queue.NewEnqueuer(&capturingRepo{})
		require.NoError(t, err)

		assert.ErrorIs(t, e.Enqueue(context.Background(), nil), queue.ErrPayloadNil)
	})

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		repo := &capturingRepo{}
		e, err := queue.NewEnqueuer(repo)
		require.NoError(t, err)

		require.NoError(t, e.Enqueue(context.Background(), emailPayload{To: "a@b.c", Subject: "hi"}))
		require.Len(t, repo.tasks, 1)

		task := repo.tasks[0]
		assert.Equal(t, queue.DefaultQueueName, task.Queue)
		assert.Equal(t, queue.TaskStatusPending, task.Status)
		assert.Equal(t, queue.DefaultMaxRetries, task.MaxRetries)
		assert.Contains(t, task.TaskName, "emailPayload")

		var decoded emailPayload
		require.NoError(t, json.Unmarshal(task.Payload, &decoded))
		assert.Equal(t, "a@b.c", decoded.To)
	})

	t.Run("option overrides", func(t *testing.T) {
		t.Parallel()

		repo := &capturingRepo{}
		e, err := queue.NewEnqueuer(repo, queue.WithDefaultQueue("bulk"))
		require.NoError(t, err)

		require.NoError(t, e.Enqueue(context.Background(), emailPayload{},
			queue.WithQueue("urgent"),
			queue.WithTaskName("custom_name"),
			queue.WithMaxRetries(5),
		))
		require.Len(t, repo.tasks, 1)

		task := repo.tasks[0]
		assert.Equal(t, "urgent", task.Queue)
		assert.Equal(t, "custom_name", task.TaskName)
		assert.EqualValues(t, 5, task.MaxRetries)
	})

	t.Run("repository error is wrapped", func(t *testing.T) {
		t.Parallel()

		repo := &capturingRepo{err: assert.AnError}
		e, err := queue.NewEnqueuer(repo)
		require.NoError(t, err)

		err = e.Enqueue(context.Background(), emailPayload{})
		assert.ErrorIs(t, err, assert.AnError)
	})
}
