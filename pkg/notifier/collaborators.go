package notifier

import (
	"context"

	"github.com/google/uuid"

	"github.com/tutorboard/notifier/pkg/broadcast"
	"github.com/tutorboard/notifier/pkg/queue"
	"github.com/tutorboard/notifier/pkg/templates"
)

// Recipient is one eligible broadcast target as returned by the directory.
type Recipient struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
}

// Criteria narrows the eligible recipient set.
type Criteria struct {
	Roles []string `json:"roles,omitempty"`
}

// Directory resolves the eligible recipients for a broadcast. An empty
// result is not an error; a returned error fails the whole NotifyAll call.
type Directory interface {
	FindEligible(ctx context.Context, criteria Criteria) ([]Recipient, error)
}

// Renderer maps a broadcast kind plus per-recipient data to a rendered
// email. Must be pure; an unknown kind is a caller error.
// Satisfied by *templates.Renderer.
type Renderer interface {
	Render(kind broadcast.Kind, data map[string]any) (templates.RenderedEmail, error)
}

// Enqueuer hands jobs to the message broker. Satisfied by *queue.Enqueuer.
type Enqueuer interface {
	Enqueue(ctx context.Context, payload any, opts ...queue.EnqueueOption) error
}
