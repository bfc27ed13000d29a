package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/tutorboard/notifier/pkg/logger"
	"github.com/tutorboard/notifier/pkg/mailer"
	"github.com/tutorboard/notifier/pkg/queue"
)

// emailJobPayload is the queue payload for one outbound email. It carries
// the rendered body because the job record stores only destination and
// subject; the body never needs to be durable beyond the task itself.
type emailJobPayload struct {
	JobID       uuid.UUID `json:"job_id"`
	BroadcastID uuid.UUID `json:"broadcast_id"`
	RecipientID uuid.UUID `json:"recipient_id"`
	To          string    `json:"to"`
	Subject     string    `json:"subject"`
	BodyHTML    string    `json:"body_html"`
}

// ResolveDelivery performs one transport attempt for a job and records the
// outcome. It is the single transition path shared by the queue worker and
// the direct-send fallback, so status logic exists exactly once.
//
// Terminal jobs are a no-op, which makes redelivery after a worker crash
// harmless (the engine is at-least-once; a duplicate email may go out, the
// records stay consistent).
//
// With final=false a transport error is returned so the queue can retry
// with backoff; the job stays pending and only the terminal-failure hook
// flips it to failed. With final=true (direct path) the failure is
// recorded as terminal immediately: the fallback path does not retry.
func (s *Service) ResolveDelivery(ctx context.Context, jobID uuid.UUID, bodyHTML string, final bool) error {
	job, err := s.storage.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to load email job %s: %w", jobID, err)
	}

	if job.Status.Terminal() {
		return nil
	}

	if job.DestinationAddress == "" {
		// Malformed job; a retry cannot fix it.
		return s.failJob(ctx, job.ID, "missing destination address")
	}

	_, sendErr := s.sender.SendEmail(ctx, mailer.SendEmailParams{
		SendTo:   job.DestinationAddress,
		Subject:  job.Subject,
		BodyHTML: bodyHTML,
		Tag:      "broadcast",
	})
	if sendErr != nil {
		if errors.Is(sendErr, mailer.ErrInvalidParams) {
			return s.failJob(ctx, job.ID, sendErr.Error())
		}

		if err := s.storage.RecordFailure(ctx, job.ID, sendErr.Error()); err != nil {
			return fmt.Errorf("failed to record job failure: %w", err)
		}
		if final {
			if err := s.storage.MarkFailed(ctx, job.ID, sendErr.Error()); err != nil {
				return fmt.Errorf("failed to mark job failed: %w", err)
			}
		}
		return fmt.Errorf("failed to send email for job %s: %w", job.ID, sendErr)
	}

	if err := s.storage.MarkSent(ctx, job.ID); err != nil {
		return fmt.Errorf("failed to mark job sent: %w", err)
	}
	if err := s.storage.MarkEmailSent(ctx, job.BroadcastID, job.RecipientID); err != nil {
		return fmt.Errorf("failed to mark delivery sent: %w", err)
	}

	s.logger.InfoContext(ctx, "email delivered",
		logger.BroadcastID(job.BroadcastID),
		logger.RecipientID(job.RecipientID),
		logger.JobID(job.ID))

	return nil
}

// failJob records one attempt and puts the job in terminal failed state,
// for failures that are not worth retrying.
func (s *Service) failJob(ctx context.Context, jobID uuid.UUID, errMsg string) error {
	if err := s.storage.RecordFailure(ctx, jobID, errMsg); err != nil {
		return fmt.Errorf("failed to record job failure: %w", err)
	}
	if err := s.storage.MarkFailed(ctx, jobID, errMsg); err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}
	return nil
}

// EmailJobHandler returns the queue handler for outbound email jobs.
// Register it on the worker that consumes the notifications queue.
func (s *Service) EmailJobHandler() queue.Handler {
	return queue.NewTaskHandler(func(ctx context.Context, p emailJobPayload) error {
		return s.ResolveDelivery(ctx, p.JobID, p.BodyHTML, false)
	})
}

// TerminalFailureHook returns the worker hook that reconciles the job
// record once the queue gives up on a task. Without it a job whose task
// exhausted its retries would sit in pending forever.
func (s *Service) TerminalFailureHook() queue.TerminalFailureHook {
	return func(ctx context.Context, task *queue.Task) {
		var p emailJobPayload
		if err := json.Unmarshal(task.Payload, &p); err != nil {
			s.logger.ErrorContext(ctx, "failed to decode terminally failed task payload",
				logger.Error(err))
			return
		}

		errMsg := "retry budget exhausted"
		if task.Error != nil && *task.Error != "" {
			errMsg = *task.Error
		}

		if err := s.storage.MarkFailed(ctx, p.JobID, errMsg); err != nil {
			s.logger.ErrorContext(ctx, "failed to mark job failed after retries",
				logger.JobID(p.JobID), logger.Error(err))
			return
		}

		s.logger.WarnContext(ctx, "email delivery failed permanently",
			logger.BroadcastID(p.BroadcastID),
			logger.RecipientID(p.RecipientID),
			logger.JobID(p.JobID),
			logger.RetryCount(int(task.RetryCount)))
	}
}
