package queue

import "time"

// Config holds the configuration for the task queue
type Config struct {
	PollInterval       time.Duration `env:"QUEUE_POLL_INTERVAL" envDefault:"1s"`
	LockTimeout        time.Duration `env:"QUEUE_LOCK_TIMEOUT" envDefault:"2m"`
	ShutdownTimeout    time.Duration `env:"QUEUE_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	MaxConcurrentTasks int           `env:"QUEUE_MAX_CONCURRENT_TASKS" envDefault:"10"`
	RetryBaseDelay     time.Duration `env:"QUEUE_RETRY_BASE_DELAY" envDefault:"30s"`
	KeyPrefix          string        `env:"QUEUE_KEY_PREFIX" envDefault:"notifq"`
}
