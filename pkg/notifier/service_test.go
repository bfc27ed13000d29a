package notifier_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorboard/notifier/pkg/broadcast"
	"github.com/tutorboard/notifier/pkg/mailer"
	"github.com/tutorboard/notifier/pkg/notifier"
	"github.com/tutorboard/notifier/pkg/queue"
	"github.com/tutorboard/notifier/pkg/templates"
)

// stubDirectory returns a fixed recipient set or a fixed error.
type stubDirectory struct {
	recipients []notifier.Recipient
	err        error
}

func (d *stubDirectory) FindEligible(ctx context.Context, criteria notifier.Criteria) ([]notifier.Recipient, error) {
	return d.recipients, d.err
}

// stubSender records sends and fails for addresses listed in failFor.
type stubSender struct {
	mu      sync.Mutex
	sent    []mailer.SendEmailParams
	failFor map[string]error
}

func (s *stubSender) SendEmail(ctx context.Context, params mailer.SendEmailParams) (mailer.SendResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failFor[params.SendTo]; ok {
		return mailer.SendResult{}, err
	}
	s.sent = append(s.sent, params)
	return mailer.SendResult{MessageID: uuid.New().String()}, nil
}

func (s *stubSender) sentTo() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.sent))
	for _, p := range s.sent {
		out = append(out, p.SendTo)
	}
	return out
}

// stubEnqueuer captures enqueued payloads and fails for addresses in failFor.
type stubEnqueuer struct {
	mu       sync.Mutex
	payloads []json.RawMessage
	failFor  map[string]error
}

type capturedJob struct {
	JobID       uuid.UUID `json:"job_id"`
	BroadcastID uuid.UUID `json:"broadcast_id"`
	RecipientID uuid.UUID `json:"recipient_id"`
	To          string    `json:"to"`
	Subject     string    `json:"subject"`
	BodyHTML    string    `json:"body_html"`
}

func (e *stubEnqueuer) Enqueue(ctx context.Context, payload any, opts ...queue.EnqueueOption) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	var job capturedJob
	if err := json.Unmarshal(raw, &job); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err, ok := e.failFor[job.To]; ok {
		return err
	}
	e.payloads = append(e.payloads, raw)
	return nil
}

func (e *stubEnqueuer) jobs(t *testing.T) []capturedJob {
	t.Helper()
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]capturedJob, 0, len(e.payloads))
	for _, raw := range e.payloads {
		var job capturedJob
		require.NoError(t, json.Unmarshal(raw, &job))
		out = append(out, job)
	}
	return out
}

func healthyPing(ctx context.Context) error { return nil }

func brokenPing(ctx context.Context) error { return errors.New("connection refused") }

func noStats(ctx context.Context) (queue.Depth, error) { return queue.Depth{}, nil }

type fixture struct {
	storage  *broadcast.MemoryStorage
	dir      *stubDirectory
	sender   *stubSender
	enqueuer *stubEnqueuer
}

func newFixture(recipients ...notifier.Recipient) *fixture {
	return &fixture{
		storage:  broadcast.NewMemoryStorage(),
		dir:      &stubDirectory{recipients: recipients},
		sender:   &stubSender{failFor: map[string]error{}},
		enqueuer: &stubEnqueuer{failFor: map[string]error{}},
	}
}

func (f *fixture) service(t *testing.T, opts ...notifier.Option) *notifier.Service {
	t.Helper()
	svc, err := notifier.NewService(f.storage, f.dir, templates.MustNew(), f.sender, opts...)
	require.NoError(t, err)
	return svc
}

func (f *fixture) serviceWithBroker(t *testing.T, ping func(context.Context) error, opts ...notifier.Option) *notifier.Service {
	t.Helper()
	opts = append(opts, notifier.WithBroker(f.enqueuer, ping, noStats))
	return f.service(t, opts...)
}

func recipientNamed(name, email string) notifier.Recipient {
	return notifier.Recipient{ID: uuid.New(), Email: email, DisplayName: name}
}

func announcementParams() notifier.NotifyAllParams {
	return notifier.NotifyAllParams{
		Kind:      broadcast.KindAnnouncement,
		Title:     "Scheduled maintenance",
		Body:      "The platform will be read-only on Sunday.",
		CreatedBy: "ops",
	}
}

func TestNewService(t *testing.T) {
	t.Parallel()

	f := newFixture()
	renderer := templates.MustNew()

	_, err := notifier.NewService(nil, f.dir, renderer, f.sender)
	assert.ErrorIs(t, err, notifier.ErrStorageNil)

	_, err = notifier.NewService(f.storage, nil, renderer, f.sender)
	assert.ErrorIs(t, err, notifier.ErrDirectoryNil)

	_, err = notifier.NewService(f.storage, f.dir, nil, f.sender)
	assert.ErrorIs(t, err, notifier.ErrRendererNil)

	_, err = notifier.NewService(f.storage, f.dir, renderer, nil)
	assert.ErrorIs(t, err, notifier.ErrSenderNil)
}

func TestNotifyAll_HealthyBrokerEnqueues(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(
		recipientNamed("Alex", "alex@example.com"),
		recipientNamed("Sam", "sam@example.com"),
		recipientNamed("Kim", "kim@example.com"),
	)
	svc := f.serviceWithBroker(t, healthyPing)

	result, err := svc.NotifyAll(ctx, announcementParams())
	require.NoError(t, err)
	assert.Equal(t, 3, result.RecipientsNotified)
	assert.NotEqual(t, uuid.Nil, result.BroadcastID)

	// Everything was enqueued; the transport was never touched.
	jobs := f.enqueuer.jobs(t)
	require.Len(t, jobs, 3)
	assert.Empty(t, f.sender.sentTo())

	for _, job := range jobs {
		assert.Equal(t, result.BroadcastID, job.BroadcastID)
		assert.Equal(t, "Scheduled maintenance", job.Subject)
		assert.NotEmpty(t, job.BodyHTML)

		stored, err := f.storage.GetJob(ctx, job.JobID)
		require.NoError(t, err)
		assert.Equal(t, broadcast.JobStatusPending, stored.Status)
		assert.Zero(t, stored.Attempts)
	}
}

func TestNotifyAll_UnhealthyBrokerSendsDirectly(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(
		recipientNamed("Alex", "alex@example.com"),
		recipientNamed("Sam", "sam@example.com"),
		recipientNamed("Kim", "bounced@example.com"),
	)
	f.sender.failFor["bounced@example.com"] = errors.New("mailbox unavailable")
	svc := f.serviceWithBroker(t, brokenPing)

	result, err := svc.NotifyAll(ctx, announcementParams())
	require.NoError(t, err)
	// The count reflects targeting, not transport outcomes.
	assert.Equal(t, 3, result.RecipientsNotified)

	assert.Empty(t, f.enqueuer.jobs(t))
	assert.ElementsMatch(t, []string{"alex@example.com", "sam@example.com"}, f.sender.sentTo())

	sent, failed := jobStatusCounts(t, ctx, f.storage, result.BroadcastID, f.dir.recipients)
	assert.Equal(t, 2, sent)
	assert.Equal(t, 1, failed)
}

func TestNotifyAll_NoBrokerConfigured(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(recipientNamed("Alex", "alex@example.com"))
	svc := f.service(t)

	result, err := svc.NotifyAll(ctx, announcementParams())
	require.NoError(t, err)
	assert.Equal(t, 1, result.RecipientsNotified)
	assert.Equal(t, []string{"alex@example.com"}, f.sender.sentTo())
}

func TestNotifyAll_EnqueueFailureFallsBackPerRecipient(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(
		recipientNamed("Alex", "alex@example.com"),
		recipientNamed("Sam", "sam@example.com"),
	)
	f.enqueuer.failFor["sam@example.com"] = errors.New("broker gone")
	svc := f.serviceWithBroker(t, healthyPing)

	result, err := svc.NotifyAll(ctx, announcementParams())
	require.NoError(t, err)
	assert.Equal(t, 2, result.RecipientsNotified)

	jobs := f.enqueuer.jobs(t)
	require.Len(t, jobs, 1)
	assert.Equal(t, "alex@example.com", jobs[0].To)

	// The failed enqueue fell back to an immediate direct send.
	assert.Equal(t, []string{"sam@example.com"}, f.sender.sentTo())
}

func TestNotifyAll_EmptyRecipientSet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture()
	svc := f.serviceWithBroker(t, healthyPing)

	result, err := svc.NotifyAll(ctx, announcementParams())
	require.NoError(t, err)
	assert.Zero(t, result.RecipientsNotified)
	assert.NotEqual(t, uuid.Nil, result.BroadcastID)

	// The broadcast itself is persisted even with nobody to notify.
	_, err = f.storage.GetBroadcast(ctx, result.BroadcastID)
	require.NoError(t, err)
	assert.Empty(t, f.enqueuer.jobs(t))
	assert.Empty(t, f.sender.sentTo())
}

func TestNotifyAll_DirectoryFailureFailsCall(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.dir.err = errors.New("users table unavailable")
	svc := f.serviceWithBroker(t, healthyPing)

	_, err := svc.NotifyAll(context.Background(), announcementParams())
	assert.ErrorIs(t, err, notifier.ErrDirectoryUnavailable)
}

func TestNotifyAll_InvalidParams(t *testing.T) {
	t.Parallel()

	f := newFixture(recipientNamed("Alex", "alex@example.com"))
	svc := f.serviceWithBroker(t, healthyPing)

	params := announcementParams()
	params.Title = ""
	_, err := svc.NotifyAll(context.Background(), params)
	assert.ErrorIs(t, err, broadcast.ErrInvalidBroadcast)
}

func TestNotifyAll_RecipientWithoutEmailIsSkipped(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	noEmail := notifier.Recipient{ID: uuid.New(), DisplayName: "Ghost"}
	f := newFixture(recipientNamed("Alex", "alex@example.com"), noEmail)
	svc := f.serviceWithBroker(t, healthyPing)

	result, err := svc.NotifyAll(ctx, announcementParams())
	require.NoError(t, err)
	// The skipped recipient still counts as targeted.
	assert.Equal(t, 2, result.RecipientsNotified)

	require.Len(t, f.enqueuer.jobs(t), 1)

	// Nothing was persisted for the recipient without an address.
	count, err := f.storage.CountUnread(ctx, noEmail.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestNotifyAll_DuplicateDeliveryIsSwallowed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rcpt := recipientNamed("Alex", "alex@example.com")
	f := newFixture(rcpt)
	svc := f.serviceWithBroker(t, healthyPing)

	// Simulate a concurrent writer that already created the record.
	b := &broadcast.Broadcast{
		Kind: broadcast.KindAnnouncement, Title: "t", Body: "b", CreatedBy: "ops", IsActive: true,
	}
	require.NoError(t, f.storage.CreateBroadcast(ctx, b))
	require.NoError(t, f.storage.CreateDelivery(ctx, &broadcast.DeliveryRecord{
		BroadcastID: b.ID, RecipientID: rcpt.ID,
	}))

	result, err := svc.NotifyAll(ctx, announcementParams())
	require.NoError(t, err)
	assert.Equal(t, 1, result.RecipientsNotified)
	assert.Len(t, f.enqueuer.jobs(t), 1)
}

// jobStatusCounts classifies per-recipient outcomes through the delivery
// records: a successful send marks EmailSent, a failed one leaves it unset.
func jobStatusCounts(t *testing.T, ctx context.Context, storage *broadcast.MemoryStorage, broadcastID uuid.UUID, recipients []notifier.Recipient) (sent, failed int) {
	t.Helper()
	for _, rcpt := range recipients {
		feed, err := storage.ListFeed(ctx, rcpt.ID, 0)
		require.NoError(t, err)
		for _, item := range feed {
			if item.Broadcast.ID != broadcastID {
				continue
			}
			if item.Delivery.EmailSent {
				sent++
			} else {
				failed++
			}
		}
	}
	return sent, failed
}
