package config

import "errors"

var (
	// ErrNilPointer is returned when a nil config pointer is provided.
	ErrNilPointer = errors.New("config: nil pointer provided")

	// ErrParsingConfig is returned when environment parsing fails.
	ErrParsingConfig = errors.New("config: failed to parse environment")

	// ErrLoadingEnvFile is returned when an explicit .env file cannot be loaded.
	ErrLoadingEnvFile = errors.New("config: failed to load env file")
)
