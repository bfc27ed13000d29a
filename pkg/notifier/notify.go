package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/tutorboard/notifier/pkg/broadcast"
	"github.com/tutorboard/notifier/pkg/logger"
)

// NotifyAllParams describes one broadcast. Kind, Title, Body and CreatedBy
// are required. TemplateData is extra rendering context shared by all
// recipients; recipient identity is injected per recipient by the
// orchestrator, not by the caller.
type NotifyAllParams struct {
	Kind              broadcast.Kind
	Title             string
	Body              string
	CreatedBy         string
	RelatedEntityID   *uuid.UUID
	RelatedEntityKind string
	TemplateData      map[string]any
}

// NotifyAllResult reports what the fan-out targeted. RecipientsNotified is
// the number of eligible recipients, not the number of successful sends:
// per-recipient failures are observable only through the job and delivery
// records, never by failing the triggering call.
type NotifyAllResult struct {
	BroadcastID        uuid.UUID `json:"broadcast_id"`
	RecipientsNotified int       `json:"recipients_notified"`
}

// NotifyAll creates the broadcast, resolves eligible recipients, and fans
// out one delivery pipeline per recipient with bounded concurrency. The
// call returns once every recipient's job is created and either enqueued
// or directly resolved; it does not wait for queued jobs to be processed.
func (s *Service) NotifyAll(ctx context.Context, params NotifyAllParams) (NotifyAllResult, error) {
	b := &broadcast.Broadcast{
		Kind:              params.Kind,
		Title:             params.Title,
		Body:              params.Body,
		RelatedEntityID:   params.RelatedEntityID,
		RelatedEntityKind: params.RelatedEntityKind,
		CreatedBy:         params.CreatedBy,
		IsActive:          true,
	}

	if err := s.storage.CreateBroadcast(ctx, b); err != nil {
		return NotifyAllResult{}, fmt.Errorf("failed to create broadcast: %w", err)
	}

	recipients, err := s.dir.FindEligible(ctx, s.criteria)
	if err != nil {
		// The broadcast row already exists; an orphan broadcast with zero
		// recipients is acceptable, the broadcast is the retry boundary.
		return NotifyAllResult{}, errors.Join(ErrDirectoryUnavailable, err)
	}

	result := NotifyAllResult{BroadcastID: b.ID, RecipientsNotified: len(recipients)}
	if len(recipients) == 0 {
		s.logger.InfoContext(ctx, "broadcast has no eligible recipients",
			logger.BroadcastID(b.ID), logger.Kind(string(b.Kind)))
		return result, nil
	}

	queueHealthy := s.probeBroker(ctx)

	s.logger.InfoContext(ctx, "fanning out broadcast",
		logger.BroadcastID(b.ID),
		logger.Kind(string(b.Kind)),
		slog.Int("recipients", len(recipients)),
		slog.Bool("queue_healthy", queueHealthy))

	sem := make(chan struct{}, s.fanoutConcurrency)
	var wg sync.WaitGroup
	for _, rcpt := range recipients {
		wg.Add(1)
		sem <- struct{}{}
		go func(rcpt Recipient) {
			defer wg.Done()
			defer func() { <-sem }()
			// One recipient's pipeline must not take down the batch.
			defer func() {
				if r := recover(); r != nil {
					s.logger.ErrorContext(ctx, "panic in recipient pipeline",
						logger.BroadcastID(b.ID),
						logger.RecipientID(rcpt.ID),
						slog.Any("panic", r))
				}
			}()

			s.deliverTo(ctx, b, rcpt, params.TemplateData, queueHealthy)
		}(rcpt)
	}
	wg.Wait()

	return result, nil
}

// deliverTo runs one recipient's pipeline: delivery record, render, job
// record, then enqueue or direct send. Record creation is ordered so a
// crash after job creation but before the send never leaves a send attempt
// without a trackable record.
func (s *Service) deliverTo(ctx context.Context, b *broadcast.Broadcast, rcpt Recipient, templateData map[string]any, queueHealthy bool) {
	if rcpt.Email == "" {
		// Nothing is persisted for a recipient that cannot receive email.
		s.logger.WarnContext(ctx, "skipping recipient without email address",
			logger.BroadcastID(b.ID), logger.RecipientID(rcpt.ID))
		return
	}

	err := s.storage.CreateDelivery(ctx, &broadcast.DeliveryRecord{
		BroadcastID: b.ID,
		RecipientID: rcpt.ID,
	})
	if err != nil && !errors.Is(err, broadcast.ErrDuplicateDelivery) {
		s.logger.ErrorContext(ctx, "failed to create delivery record",
			logger.BroadcastID(b.ID), logger.RecipientID(rcpt.ID), logger.Error(err))
		return
	}

	data := make(map[string]any, len(templateData)+3)
	for k, v := range templateData {
		data[k] = v
	}
	data["Title"] = b.Title
	data["Body"] = b.Body
	data["RecipientName"] = rcpt.DisplayName

	rendered, renderErr := s.renderer.Render(b.Kind, data)

	job := &broadcast.JobRecord{
		BroadcastID:        b.ID,
		RecipientID:        rcpt.ID,
		DestinationAddress: rcpt.Email,
		Subject:            rendered.Subject,
		Status:             broadcast.JobStatusPending,
	}
	if err := s.storage.CreateJob(ctx, job); err != nil {
		s.logger.ErrorContext(ctx, "failed to create email job",
			logger.BroadcastID(b.ID), logger.RecipientID(rcpt.ID), logger.Error(err))
		return
	}

	if renderErr != nil {
		// The job exists for bookkeeping but there is nothing to send;
		// no transport attempt is made, so attempts stays at zero.
		s.logger.ErrorContext(ctx, "failed to render email",
			logger.BroadcastID(b.ID), logger.RecipientID(rcpt.ID),
			logger.JobID(job.ID), logger.Error(renderErr))
		if err := s.storage.MarkFailed(ctx, job.ID, renderErr.Error()); err != nil {
			s.logger.ErrorContext(ctx, "failed to mark job failed",
				logger.JobID(job.ID), logger.Error(err))
		}
		return
	}

	if queueHealthy {
		payload := emailJobPayload{
			JobID:       job.ID,
			BroadcastID: b.ID,
			RecipientID: rcpt.ID,
			To:          rcpt.Email,
			Subject:     rendered.Subject,
			BodyHTML:    rendered.BodyHTML,
		}
		err := s.enqueuer.Enqueue(ctx, payload)
		if err == nil {
			return
		}
		// The broker flaked between probe and enqueue; fall back for this
		// recipient only. Recipients already enqueued are unaffected.
		s.logger.WarnContext(ctx, "enqueue failed, falling back to direct send",
			logger.BroadcastID(b.ID), logger.RecipientID(rcpt.ID),
			logger.JobID(job.ID), logger.Error(err))
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.directSendTimeout)
	defer cancel()

	// Direct path gets a single attempt; the outcome lives in the records.
	if err := s.ResolveDelivery(sendCtx, job.ID, rendered.BodyHTML, true); err != nil {
		s.logger.WarnContext(ctx, "direct send failed",
			logger.BroadcastID(b.ID), logger.RecipientID(rcpt.ID),
			logger.JobID(job.ID), logger.Error(err))
	}
}

// probeBroker reports whether the queued delivery path should be used.
// The probe is advisory and inherently racy; deliverTo compensates by
// falling back per recipient when an enqueue fails anyway.
func (s *Service) probeBroker(ctx context.Context) bool {
	if s.enqueuer == nil || s.brokerPing == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, s.probeTimeout)
	defer cancel()

	if err := s.brokerPing(ctx); err != nil {
		s.logger.WarnContext(ctx, "broker unhealthy, using direct send for this broadcast",
			logger.Error(err))
		return false
	}
	return true
}
