package mailer

import "errors"

var (
	// ErrFailedToSendEmail wraps ordinary delivery failures from the provider.
	ErrFailedToSendEmail = errors.New("mailer: failed to send email")

	// ErrInvalidParams marks malformed send parameters; these are caller bugs
	// and are never worth retrying.
	ErrInvalidParams = errors.New("mailer: invalid send params")

	// ErrInvalidConfig is returned when the transport is misconfigured.
	ErrInvalidConfig = errors.New("mailer: invalid config")
)
