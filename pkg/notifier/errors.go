package notifier

import "errors"

var (
	// ErrDirectoryUnavailable wraps recipient directory failures; the whole
	// NotifyAll call fails when the directory cannot be read.
	ErrDirectoryUnavailable = errors.New("notifier: recipient directory unavailable")

	// ErrStorageNil is returned when a nil storage is provided.
	ErrStorageNil = errors.New("notifier: storage cannot be nil")

	// ErrDirectoryNil is returned when a nil directory is provided.
	ErrDirectoryNil = errors.New("notifier: directory cannot be nil")

	// ErrRendererNil is returned when a nil renderer is provided.
	ErrRendererNil = errors.New("notifier: renderer cannot be nil")

	// ErrSenderNil is returned when a nil mail transport is provided.
	ErrSenderNil = errors.New("notifier: mail transport cannot be nil")
)
