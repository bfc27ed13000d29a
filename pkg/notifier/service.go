package notifier

import (
	"context"
	"log/slog"
	"time"

	"github.com/tutorboard/notifier/pkg/broadcast"
	"github.com/tutorboard/notifier/pkg/mailer"
	"github.com/tutorboard/notifier/pkg/queue"
)

// Service is the notification orchestrator. It owns broadcast creation and
// fan-out, decides per broadcast whether to enqueue or fall back to direct
// send, and serves the recipient-facing query API.
type Service struct {
	storage  broadcast.Storage
	dir      Directory
	renderer Renderer
	sender   mailer.EmailSender

	// Broker wiring; all nil when the system runs in direct-send-only mode.
	enqueuer   Enqueuer
	brokerPing func(context.Context) error
	queueStats func(context.Context) (queue.Depth, error)

	criteria          Criteria
	fanoutConcurrency int
	probeTimeout      time.Duration
	directSendTimeout time.Duration
	logger            *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithBroker wires the message broker: an enqueuer for the queued delivery
// path, a liveness ping against the broker's backing store, and a queue
// depth reader for the health endpoint. Without this option the service
// runs in direct-send-only mode.
func WithBroker(enq Enqueuer, ping func(context.Context) error, stats func(context.Context) (queue.Depth, error)) Option {
	return func(s *Service) {
		s.enqueuer = enq
		s.brokerPing = ping
		s.queueStats = stats
	}
}

// WithCriteria sets the eligibility criteria passed to the directory.
func WithCriteria(c Criteria) Option {
	return func(s *Service) {
		s.criteria = c
	}
}

// WithFanoutConcurrency bounds the number of per-recipient pipelines
// running at once.
func WithFanoutConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.fanoutConcurrency = n
		}
	}
}

// WithProbeTimeout sets the broker liveness probe timeout.
func WithProbeTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.probeTimeout = d
		}
	}
}

// WithDirectSendTimeout bounds a single direct-path transport call so a
// hung transport blocks only that recipient's task.
func WithDirectSendTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.directSendTimeout = d
		}
	}
}

// WithLogger sets the logger for the Service.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService creates the orchestrator. Storage, directory, renderer and
// mail transport are required; the broker is optional.
func NewService(storage broadcast.Storage, dir Directory, renderer Renderer, sender mailer.EmailSender, opts ...Option) (*Service, error) {
	if storage == nil {
		return nil, ErrStorageNil
	}
	if dir == nil {
		return nil, ErrDirectoryNil
	}
	if renderer == nil {
		return nil, ErrRendererNil
	}
	if sender == nil {
		return nil, ErrSenderNil
	}

	s := &Service{
		storage:           storage,
		dir:               dir,
		renderer:          renderer,
		sender:            sender,
		fanoutConcurrency: 10,
		probeTimeout:      2 * time.Second,
		directSendTimeout: 30 * time.Second,
		logger:            slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}
