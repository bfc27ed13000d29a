package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	mu     sync.RWMutex
	cache  = make(map[string]any)
	envDot sync.Once
)

// Load parses environment variables into the provided configuration struct
// based on `env` field tags. The default .env file is loaded once per
// process before the first parse; a missing .env file is not an error.
//
// Each configuration type is parsed once and cached, so repeated calls for
// the same type are cheap and return identical values.
//
// Example:
//
//	type QueueConfig struct {
//		PollInterval time.Duration `env:"QUEUE_POLL_INTERVAL" envDefault:"5s"`
//	}
//
//	var cfg QueueConfig
//	if err := config.Load(&cfg); err != nil { ... }
func Load[T any](v *T) error {
	if v == nil {
		return ErrNilPointer
	}

	envDot.Do(func() {
		// The .env file might not exist and that's ok.
		_ = godotenv.Load()
	})

	typeName := typeNameOf[T]()

	mu.RLock()
	cached, ok := cache[typeName]
	mu.RUnlock()
	if ok {
		*v = cached.(T)
		return nil
	}

	if err := env.Parse(v); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}

	mu.Lock()
	// Store a copy to avoid external modifications leaking into the cache.
	cache[typeName] = *v
	mu.Unlock()

	return nil
}

// MustLoad works like Load but panics if configuration loading fails.
// Useful for configurations required for the application to start.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}

// LoadEnv loads environment variables from the given files before any
// config structs are parsed. Values already present in the environment win.
func LoadEnv(filenames ...string) error {
	if err := godotenv.Load(filenames...); err != nil {
		return errors.Join(ErrLoadingEnvFile, err)
	}
	return nil
}

// ResetCache clears cached configuration values. Intended for tests.
func ResetCache() {
	mu.Lock()
	cache = make(map[string]any)
	mu.Unlock()
}

func typeNameOf[T any]() string {
	var zero T
	t := reflect.TypeOf(zero)
	if t == nil {
		return fmt.Sprintf("%T", *new(T))
	}
	return t.String()
}
