package notifier

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/tutorboard/notifier/pkg/broadcast"
	"github.com/tutorboard/notifier/pkg/logger"
)

// ListForRecipient returns the recipient's notification feed: delivery
// records joined with their broadcasts, active broadcasts only, newest
// first. limit <= 0 means no limit.
func (s *Service) ListForRecipient(ctx context.Context, recipientID uuid.UUID, limit int) ([]broadcast.FeedItem, error) {
	items, err := s.storage.ListFeed(ctx, recipientID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications for recipient %s: %w", recipientID, err)
	}
	return items, nil
}

// UnreadCount returns the number of unread delivery records for the
// recipient, inactive broadcasts included.
func (s *Service) UnreadCount(ctx context.Context, recipientID uuid.UUID) (int, error) {
	n, err := s.storage.CountUnread(ctx, recipientID)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications for recipient %s: %w", recipientID, err)
	}
	return n, nil
}

// MarkRead records that the recipient has read the broadcast in-app. The
// first call wins; repeated calls keep the original read timestamp.
func (s *Service) MarkRead(ctx context.Context, broadcastID, recipientID uuid.UUID) error {
	if err := s.storage.MarkRead(ctx, broadcastID, recipientID); err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return nil
}

// MarkEmailOpened records an email open event. Open tracking is best
// effort: events for unknown pairs are dropped, never surfaced as errors.
func (s *Service) MarkEmailOpened(ctx context.Context, broadcastID, recipientID uuid.UUID) error {
	if err := s.storage.MarkEmailOpened(ctx, broadcastID, recipientID); err != nil {
		s.logger.WarnContext(ctx, "failed to record email open event",
			logger.BroadcastID(broadcastID), logger.RecipientID(recipientID), logger.Error(err))
	}
	return nil
}

// SetBroadcastActive flips the soft-disable flag on a broadcast. Disabled
// broadcasts drop out of every recipient's feed but keep their delivery
// history.
func (s *Service) SetBroadcastActive(ctx context.Context, broadcastID uuid.UUID, active bool) error {
	if err := s.storage.SetBroadcastActive(ctx, broadcastID, active); err != nil {
		return fmt.Errorf("failed to update broadcast active flag: %w", err)
	}
	return nil
}
