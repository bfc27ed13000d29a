package broadcast

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStorage implements Storage on top of a pgx connection pool.
//
// The uniqueness invariant on (broadcast_id, recipient_id) is the table's
// primary key; inserts use ON CONFLICT DO NOTHING and report
// ErrDuplicateDelivery when no row was written, so callers see the same
// behavior as with MemoryStorage. Monotonic job transitions are enforced
// with status guards in the UPDATE statements rather than in Go, which
// keeps concurrent writers safe without explicit locking.
type PGStorage struct {
	pool *pgxpool.Pool
}

// NewPGStorage creates a postgres-backed storage implementation.
func NewPGStorage(pool *pgxpool.Pool) *PGStorage {
	return &PGStorage{pool: pool}
}

// CreateBroadcast implements BroadcastStore.
func (s *PGStorage) CreateBroadcast(ctx context.Context, b *Broadcast) error {
	if err := b.Validate(); err != nil {
		return err
	}
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO broadcasts (id, kind, title, body, related_entity_id, related_entity_kind, created_by, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`,
		b.ID, b.Kind, b.Title, b.Body, b.RelatedEntityID, b.RelatedEntityKind, b.CreatedBy, b.IsActive,
	)
	if err := row.Scan(&b.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert broadcast: %w", err)
	}
	return nil
}

// GetBroadcast implements BroadcastStore.
func (s *PGStorage) GetBroadcast(ctx context.Context, id uuid.UUID) (*Broadcast, error) {
	var b Broadcast
	row := s.pool.QueryRow(ctx, `
		SELECT id, kind, title, body, related_entity_id, related_entity_kind, created_by, is_active, created_at
		FROM broadcasts WHERE id = $1`, id)
	err := row.Scan(&b.ID, &b.Kind, &b.Title, &b.Body, &b.RelatedEntityID, &b.RelatedEntityKind,
		&b.CreatedBy, &b.IsActive, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBroadcastNotFound
		}
		return nil, fmt.Errorf("failed to load broadcast: %w", err)
	}
	return &b, nil
}

// SetBroadcastActive implements BroadcastStore.
func (s *PGStorage) SetBroadcastActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := s.pool.Exec(ctx, `UPDATE broadcasts SET is_active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("failed to update broadcast active flag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBroadcastNotFound
	}
	return nil
}

// CreateDelivery implements DeliveryStore.
func (s *PGStorage) CreateDelivery(ctx context.Context, d *DeliveryRecord) error {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO delivery_records (broadcast_id, recipient_id)
		VALUES ($1, $2)
		ON CONFLICT (broadcast_id, recipient_id) DO NOTHING`,
		d.BroadcastID, d.RecipientID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert delivery record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicateDelivery
	}
	return nil
}

// MarkEmailSent implements DeliveryStore. The status guard makes the first
// writer win; later writers are no-ops.
func (s *PGStorage) MarkEmailSent(ctx context.Context, broadcastID, recipientID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE delivery_records
		SET email_sent = TRUE, email_sent_at = now()
		WHERE broadcast_id = $1 AND recipient_id = $2 AND email_sent = FALSE`,
		broadcastID, recipientID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark email sent: %w", err)
	}
	return nil
}

// MarkEmailOpened implements DeliveryStore.
func (s *PGStorage) MarkEmailOpened(ctx context.Context, broadcastID, recipientID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE delivery_records
		SET email_opened = TRUE
		WHERE broadcast_id = $1 AND recipient_id = $2`,
		broadcastID, recipientID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark email opened: %w", err)
	}
	return nil
}

// MarkRead implements DeliveryStore.
func (s *PGStorage) MarkRead(ctx context.Context, broadcastID, recipientID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE delivery_records
		SET in_app_read = TRUE, in_app_read_at = now()
		WHERE broadcast_id = $1 AND recipient_id = $2 AND in_app_read = FALSE`,
		broadcastID, recipientID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark delivery read: %w", err)
	}
	return nil
}

// ListFeed implements DeliveryStore.
func (s *PGStorage) ListFeed(ctx context.Context, recipientID uuid.UUID, limit int) ([]FeedItem, error) {
	query := `
		SELECT b.id, b.kind, b.title, b.body, b.related_entity_id, b.related_entity_kind,
		       b.created_by, b.is_active, b.created_at,
		       d.broadcast_id, d.recipient_id, d.email_sent, d.email_sent_at, d.email_opened,
		       d.in_app_read, d.in_app_read_at, d.created_at
		FROM delivery_records d
		JOIN broadcasts b ON b.id = d.broadcast_id
		WHERE d.recipient_id = $1 AND b.is_active = TRUE
		ORDER BY b.created_at DESC`
	args := []any{recipientID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query feed: %w", err)
	}
	defer rows.Close()

	items := make([]FeedItem, 0)
	for rows.Next() {
		var it FeedItem
		if err := rows.Scan(
			&it.Broadcast.ID, &it.Broadcast.Kind, &it.Broadcast.Title, &it.Broadcast.Body,
			&it.Broadcast.RelatedEntityID, &it.Broadcast.RelatedEntityKind,
			&it.Broadcast.CreatedBy, &it.Broadcast.IsActive, &it.Broadcast.CreatedAt,
			&it.Delivery.BroadcastID, &it.Delivery.RecipientID, &it.Delivery.EmailSent,
			&it.Delivery.EmailSentAt, &it.Delivery.EmailOpened,
			&it.Delivery.InAppRead, &it.Delivery.InAppReadAt, &it.Delivery.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan feed item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// CountUnread implements DeliveryStore.
func (s *PGStorage) CountUnread(ctx context.Context, recipientID uuid.UUID) (int, error) {
	var count int
	row := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM delivery_records
		WHERE recipient_id = $1 AND in_app_read = FALSE`, recipientID)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count unread deliveries: %w", err)
	}
	return count, nil
}

// CreateJob implements JobStore.
func (s *PGStorage) CreateJob(ctx context.Context, j *JobRecord) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	if j.Status == "" {
		j.Status = JobStatusPending
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO email_jobs (id, broadcast_id, recipient_id, destination_address, subject, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		j.ID, j.BroadcastID, j.RecipientID, j.DestinationAddress, j.Subject, j.Status,
	)
	if err := row.Scan(&j.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert email job: %w", err)
	}
	return nil
}

// GetJob implements JobStore.
func (s *PGStorage) GetJob(ctx context.Context, id uuid.UUID) (*JobRecord, error) {
	var j JobRecord
	row := s.pool.QueryRow(ctx, `
		SELECT id, broadcast_id, recipient_id, destination_address, subject, status,
		       attempts, last_attempt_at, sent_at, error_message, created_at
		FROM email_jobs WHERE id = $1`, id)
	err := row.Scan(&j.ID, &j.BroadcastID, &j.RecipientID, &j.DestinationAddress, &j.Subject,
		&j.Status, &j.Attempts, &j.LastAttemptAt, &j.SentAt, &j.ErrorMessage, &j.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to load email job: %w", err)
	}
	return &j, nil
}

// RecordFailure implements JobStore.
func (s *PGStorage) RecordFailure(ctx context.Context, id uuid.UUID, errMsg string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE email_jobs
		SET attempts = attempts + 1, last_attempt_at = now(), error_message = $2
		WHERE id = $1 AND status = 'pending'`,
		id, errMsg,
	)
	if err != nil {
		return fmt.Errorf("failed to record job failure: %w", err)
	}
	return nil
}

// MarkSent implements JobStore.
func (s *PGStorage) MarkSent(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE email_jobs
		SET status = 'sent', attempts = attempts + 1, last_attempt_at = now(), sent_at = now()
		WHERE id = $1 AND status = 'pending'`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark job sent: %w", err)
	}
	return nil
}

// MarkFailed implements JobStore.
func (s *PGStorage) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE email_jobs
		SET status = 'failed', error_message = COALESCE(NULLIF($2, ''), error_message)
		WHERE id = $1 AND status = 'pending'`,
		id, errMsg,
	)
	if err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}
	return nil
}
