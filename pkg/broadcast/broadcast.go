package broadcast

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind is the closed set of broadcast kinds. Adding a kind means adding a
// constant here and a matching template, so new kinds are a compile-visible
// change rather than open-ended string dispatch.
type Kind string

const (
	KindNewJob       Kind = "new_job"
	KindAnnouncement Kind = "announcement"
)

// Valid checks whether the kind is a known member of the closed set.
func (k Kind) Valid() bool {
	switch k {
	case KindNewJob, KindAnnouncement:
		return true
	}
	return false
}

// Broadcast is one logical notification event targeting many recipients.
// Immutable after creation except IsActive, a soft-disable flag that
// excludes it from recipient feeds.
type Broadcast struct {
	ID                uuid.UUID  `json:"id"`
	Kind              Kind       `json:"kind"`
	Title             string     `json:"title"`
	Body              string     `json:"body"`
	RelatedEntityID   *uuid.UUID `json:"related_entity_id,omitempty"`
	RelatedEntityKind string     `json:"related_entity_kind,omitempty"`
	CreatedBy         string     `json:"created_by"`
	IsActive          bool       `json:"is_active"`
	CreatedAt         time.Time  `json:"created_at"`
}

// Validate checks the required broadcast fields.
func (b *Broadcast) Validate() error {
	if !b.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidBroadcast, b.Kind)
	}
	if b.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidBroadcast)
	}
	if b.Body == "" {
		return fmt.Errorf("%w: body is required", ErrInvalidBroadcast)
	}
	if b.CreatedBy == "" {
		return fmt.Errorf("%w: created_by is required", ErrInvalidBroadcast)
	}
	return nil
}

// DeliveryRecord is the durable per-recipient record of email-sent and
// in-app-read state for a broadcast. Exactly one exists per
// (BroadcastID, RecipientID) pair; it is never deleted and serves as the
// read model for the recipient's feed.
type DeliveryRecord struct {
	BroadcastID uuid.UUID  `json:"broadcast_id"`
	RecipientID uuid.UUID  `json:"recipient_id"`
	EmailSent   bool       `json:"email_sent"`
	EmailSentAt *time.Time `json:"email_sent_at,omitempty"`
	EmailOpened bool       `json:"email_opened"`
	InAppRead   bool       `json:"in_app_read"`
	InAppReadAt *time.Time `json:"in_app_read_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// JobStatus is the outbound email job state. Transitions are monotonic:
// pending -> sent or pending -> failed, both terminal.
type JobStatus string

const (
	JobStatusPending JobStatus = "pending"
	JobStatusSent    JobStatus = "sent"
	JobStatusFailed  JobStatus = "failed"
)

// Terminal reports whether the status can no longer change.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSent || s == JobStatusFailed
}

// JobRecord is the durable per-recipient record of an outbound email
// attempt, used for retry bookkeeping. Attempts increments on every
// transport invocation, including ones that ultimately succeed.
type JobRecord struct {
	ID                 uuid.UUID  `json:"id"`
	BroadcastID        uuid.UUID  `json:"broadcast_id"`
	RecipientID        uuid.UUID  `json:"recipient_id"`
	DestinationAddress string     `json:"destination_address"`
	Subject            string     `json:"subject"`
	Status             JobStatus  `json:"status"`
	Attempts           int        `json:"attempts"`
	LastAttemptAt      *time.Time `json:"last_attempt_at,omitempty"`
	SentAt             *time.Time `json:"sent_at,omitempty"`
	ErrorMessage       string     `json:"error_message,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

// FeedItem is a DeliveryRecord joined with its Broadcast, as served to a
// recipient's notification feed.
type FeedItem struct {
	Broadcast Broadcast      `json:"broadcast"`
	Delivery  DeliveryRecord `json:"delivery"`
}
