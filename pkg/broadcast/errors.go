package broadcast

import "errors"

var (
	// ErrInvalidBroadcast is returned when required broadcast fields are missing.
	ErrInvalidBroadcast = errors.New("broadcast: invalid broadcast")

	// ErrBroadcastNotFound is returned when a broadcast does not exist.
	ErrBroadcastNotFound = errors.New("broadcast: broadcast not found")

	// ErrDuplicateDelivery is returned when a delivery record already exists
	// for the (broadcast, recipient) pair. Fan-out swallows it to keep
	// re-runs idempotent.
	ErrDuplicateDelivery = errors.New("broadcast: delivery record already exists")

	// ErrJobNotFound is returned when an email job does not exist.
	ErrJobNotFound = errors.New("broadcast: email job not found")
)
