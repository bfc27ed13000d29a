package notifier

import "time"

// Config holds orchestrator tunables.
type Config struct {
	FanoutConcurrency  int           `env:"NOTIFY_FANOUT_CONCURRENCY" envDefault:"10"`
	BrokerProbeTimeout time.Duration `env:"NOTIFY_BROKER_PROBE_TIMEOUT" envDefault:"2s"`
	DirectSendTimeout  time.Duration `env:"NOTIFY_DIRECT_SEND_TIMEOUT" envDefault:"30s"`
}
