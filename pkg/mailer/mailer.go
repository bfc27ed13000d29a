package mailer

import (
	"context"
	"fmt"
	"regexp"
)

// EmailSender represents an interface for sending a single email.
//
// Ordinary delivery failures (bounce, provider rejection, timeout) are
// reported through the returned error; malformed input is reported as
// ErrInvalidParams so callers can distinguish it from transport trouble.
type EmailSender interface {
	SendEmail(ctx context.Context, params SendEmailParams) (SendResult, error)
}

// SendEmailParams represents the parameters for sending an email.
type SendEmailParams struct {
	SendTo   string `json:"send_to"`       // Email address of the recipient
	Subject  string `json:"subject"`       // Subject of the email
	BodyHTML string `json:"body_html"`     // HTML body of the email
	Tag      string `json:"tag,omitempty"` // Optional provider-side tag
}

// SendResult carries provider metadata about an accepted email.
type SendResult struct {
	MessageID string `json:"message_id,omitempty"` // Opaque provider message id
}

// emailRegex is a pragmatic address check, not a full RFC 5322 validator.
var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Validate checks that the params are sendable.
func (p SendEmailParams) Validate() error {
	if p.SendTo == "" {
		return fmt.Errorf("%w: SendTo is required", ErrInvalidParams)
	}
	if !emailRegex.MatchString(p.SendTo) {
		return fmt.Errorf("%w: SendTo must be a valid email address", ErrInvalidParams)
	}
	if p.Subject == "" {
		return fmt.Errorf("%w: Subject is required", ErrInvalidParams)
	}
	if p.BodyHTML == "" {
		return fmt.Errorf("%w: BodyHTML is required", ErrInvalidParams)
	}
	return nil
}
