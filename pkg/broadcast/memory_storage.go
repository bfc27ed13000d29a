package broadcast

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type deliveryKey struct {
	broadcastID uuid.UUID
	recipientID uuid.UUID
}

// MemoryStorage implements Storage for testing and local development.
// All maps are guarded by a single mutex; the deliveries map key doubles as
// the uniqueness constraint on (broadcast_id, recipient_id).
type MemoryStorage struct {
	mu         sync.RWMutex
	broadcasts map[uuid.UUID]*Broadcast
	deliveries map[deliveryKey]*DeliveryRecord
	jobs       map[uuid.UUID]*JobRecord
}

// NewMemoryStorage creates a new in-memory storage implementation.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		broadcasts: make(map[uuid.UUID]*Broadcast),
		deliveries: make(map[deliveryKey]*DeliveryRecord),
		jobs:       make(map[uuid.UUID]*JobRecord),
	}
}

// CreateBroadcast implements BroadcastStore.
func (ms *MemoryStorage) CreateBroadcast(ctx context.Context, b *Broadcast) error {
	if err := b.Validate(); err != nil {
		return err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}

	// Clone to prevent external modifications.
	cp := *b
	ms.broadcasts[b.ID] = &cp
	return nil
}

// GetBroadcast implements BroadcastStore.
func (ms *MemoryStorage) GetBroadcast(ctx context.Context, id uuid.UUID) (*Broadcast, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	b, ok := ms.broadcasts[id]
	if !ok {
		return nil, ErrBroadcastNotFound
	}
	cp := *b
	return &cp, nil
}

// SetBroadcastActive implements BroadcastStore.
func (ms *MemoryStorage) SetBroadcastActive(ctx context.Context, id uuid.UUID, active bool) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	b, ok := ms.broadcasts[id]
	if !ok {
		return ErrBroadcastNotFound
	}
	b.IsActive = active
	return nil
}

// CreateDelivery implements DeliveryStore.
func (ms *MemoryStorage) CreateDelivery(ctx context.Context, d *DeliveryRecord) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	key := deliveryKey{d.BroadcastID, d.RecipientID}
	if _, exists := ms.deliveries[key]; exists {
		return ErrDuplicateDelivery
	}

	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}

	cp := *d
	ms.deliveries[key] = &cp
	return nil
}

// MarkEmailSent implements DeliveryStore.
func (ms *MemoryStorage) MarkEmailSent(ctx context.Context, broadcastID, recipientID uuid.UUID) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	d, ok := ms.deliveries[deliveryKey{broadcastID, recipientID}]
	if !ok || d.EmailSent {
		return nil
	}
	now := time.Now()
	d.EmailSent = true
	d.EmailSentAt = &now
	return nil
}

// MarkEmailOpened implements DeliveryStore.
func (ms *MemoryStorage) MarkEmailOpened(ctx context.Context, broadcastID, recipientID uuid.UUID) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if d, ok := ms.deliveries[deliveryKey{broadcastID, recipientID}]; ok {
		d.EmailOpened = true
	}
	return nil
}

// MarkRead implements DeliveryStore.
func (ms *MemoryStorage) MarkRead(ctx context.Context, broadcastID, recipientID uuid.UUID) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	d, ok := ms.deliveries[deliveryKey{broadcastID, recipientID}]
	if !ok || d.InAppRead {
		return nil
	}
	now := time.Now()
	d.InAppRead = true
	d.InAppReadAt = &now
	return nil
}

// ListFeed implements DeliveryStore.
func (ms *MemoryStorage) ListFeed(ctx context.Context, recipientID uuid.UUID, limit int) ([]FeedItem, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	items := make([]FeedItem, 0)
	for key, d := range ms.deliveries {
		if key.recipientID != recipientID {
			continue
		}
		b, ok := ms.broadcasts[key.broadcastID]
		if !ok || !b.IsActive {
			// Deactivated broadcasts drop out of the feed even though the
			// delivery record itself is untouched.
			continue
		}
		items = append(items, FeedItem{Broadcast: *b, Delivery: *d})
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].Broadcast.CreatedAt.After(items[j].Broadcast.CreatedAt)
	})

	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// CountUnread implements DeliveryStore.
func (ms *MemoryStorage) CountUnread(ctx context.Context, recipientID uuid.UUID) (int, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	count := 0
	for key, d := range ms.deliveries {
		if key.recipientID == recipientID && !d.InAppRead {
			count++
		}
	}
	return count, nil
}

// CreateJob implements JobStore.
func (ms *MemoryStorage) CreateJob(ctx context.Context, j *JobRecord) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	if j.Status == "" {
		j.Status = JobStatusPending
	}
	if j.CreatedAt.IsZero() {
		j.CreatedAt = time.Now()
	}

	cp := *j
	ms.jobs[j.ID] = &cp
	return nil
}

// GetJob implements JobStore.
func (ms *MemoryStorage) GetJob(ctx context.Context, id uuid.UUID) (*JobRecord, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	j, ok := ms.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	cp := *j
	return &cp, nil
}

// RecordFailure implements JobStore.
func (ms *MemoryStorage) RecordFailure(ctx context.Context, id uuid.UUID, errMsg string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	j, ok := ms.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	if j.Status.Terminal() {
		return nil
	}
	now := time.Now()
	j.Attempts++
	j.LastAttemptAt = &now
	j.ErrorMessage = errMsg
	return nil
}

// MarkSent implements JobStore.
func (ms *MemoryStorage) MarkSent(ctx context.Context, id uuid.UUID) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	j, ok := ms.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	if j.Status.Terminal() {
		return nil
	}
	now := time.Now()
	j.Status = JobStatusSent
	j.Attempts++
	j.LastAttemptAt = &now
	j.SentAt = &now
	return nil
}

// MarkFailed implements JobStore.
func (ms *MemoryStorage) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	j, ok := ms.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	if j.Status.Terminal() {
		return nil
	}
	j.Status = JobStatusFailed
	if errMsg != "" {
		j.ErrorMessage = errMsg
	}
	return nil
}
