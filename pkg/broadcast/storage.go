package broadcast

import (
	"context"

	"github.com/google/uuid"
)

// BroadcastStore persists broadcasts. A broadcast is immutable after
// creation except for its IsActive flag.
type BroadcastStore interface {
	CreateBroadcast(ctx context.Context, b *Broadcast) error
	GetBroadcast(ctx context.Context, id uuid.UUID) (*Broadcast, error)
	SetBroadcastActive(ctx context.Context, id uuid.UUID, active bool) error
}

// DeliveryStore persists per-(broadcast, recipient) delivery records and
// enforces the uniqueness invariant on that pair.
type DeliveryStore interface {
	// CreateDelivery stores a new delivery record with all flags false.
	// Returns ErrDuplicateDelivery if one already exists for the pair.
	CreateDelivery(ctx context.Context, d *DeliveryRecord) error

	// MarkEmailSent sets email_sent/email_sent_at. The first writer wins;
	// concurrent or repeated calls converge on the same state.
	MarkEmailSent(ctx context.Context, broadcastID, recipientID uuid.UUID) error

	// MarkEmailOpened records best-effort open tracking. No-op if the
	// record does not exist.
	MarkEmailOpened(ctx context.Context, broadcastID, recipientID uuid.UUID) error

	// MarkRead sets in_app_read/in_app_read_at. Idempotent: repeated calls
	// leave the first read timestamp untouched. No-op if the record does
	// not exist.
	MarkRead(ctx context.Context, broadcastID, recipientID uuid.UUID) error

	// ListFeed returns the recipient's delivery records joined with their
	// broadcasts, filtered to active broadcasts, newest first, bounded by
	// limit (0 = no limit).
	ListFeed(ctx context.Context, recipientID uuid.UUID, limit int) ([]FeedItem, error)

	// CountUnread counts the recipient's unread delivery records,
	// regardless of whether the broadcast is still active.
	CountUnread(ctx context.Context, recipientID uuid.UUID) (int, error)
}

// JobStore persists outbound email job records. Status transitions are
// monotonic; terminal states are never overwritten.
type JobStore interface {
	CreateJob(ctx context.Context, j *JobRecord) error
	GetJob(ctx context.Context, id uuid.UUID) (*JobRecord, error)

	// RecordFailure increments attempts and records the error for a
	// non-terminal job. The job stays pending so a retry can follow.
	RecordFailure(ctx context.Context, id uuid.UUID, errMsg string) error

	// MarkSent transitions a pending job to sent, incrementing attempts.
	// No-op on terminal jobs.
	MarkSent(ctx context.Context, id uuid.UUID) error

	// MarkFailed transitions a pending job to failed without touching the
	// attempt counter. No-op on terminal jobs.
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
}

// Storage composes the three stores; both the in-memory and the
// postgres-backed implementations satisfy it.
type Storage interface {
	BroadcastStore
	DeliveryStore
	JobStore
}
