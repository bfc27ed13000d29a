// Package notifier orchestrates broadcast email notifications: it creates
// a broadcast, fans out one delivery pipeline per eligible recipient, and
// tracks per-recipient delivery and read state.
//
// The package is organised around a single Service that composes four
// collaborators behind small interfaces:
//
//   - broadcast.Storage: durable broadcast, delivery and job records
//   - Directory: resolves eligible recipients
//   - Renderer: renders subject and HTML body per broadcast kind
//   - mailer.EmailSender: the outbound mail transport
//
// A message broker is optional. When wired via WithBroker, each fan-out
// probes the broker and enqueues email jobs for asynchronous delivery with
// retries; when the broker is absent or unhealthy the service sends
// directly, one attempt per recipient. Either way the outcome lands in the
// same job and delivery records, so readers never care which path ran.
//
// # Usage
//
//	svc, err := notifier.NewService(storage, dir, renderer, sender,
//	    notifier.WithBroker(enqueuer, redis.Healthcheck(redisClient), stats),
//	    notifier.WithLogger(log),
//	)
//	if err != nil {
//	    return err
//	}
//
//	worker, _ := queue.NewWorker(queueRepo,
//	    queue.WithTerminalFailureHook(svc.TerminalFailureHook()),
//	)
//	worker.RegisterHandler(svc.EmailJobHandler())
//	g.Go(worker.Run(ctx))
//
//	result, err := svc.NotifyAll(ctx, notifier.NotifyAllParams{
//	    Kind:      broadcast.KindAnnouncement,
//	    Title:     "Scheduled maintenance",
//	    Body:      "The platform will be read-only on Sunday.",
//	    CreatedBy: "ops",
//	})
//
// NotifyAll succeeds once the broadcast exists and recipients resolved;
// individual delivery failures are visible only through the records and
// never fail the triggering call.
//
// Router exposes the read API (feed, unread count, mark-read), the
// broadcast trigger, the email-open webhook and a health snapshot over
// HTTP.
package notifier
