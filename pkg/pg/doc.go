// Package pg wraps pgx/v5 connection pooling, goose migrations, and a
// health-check helper so the notification engine can bootstrap its durable
// stores (broadcasts, delivery records, email jobs) with a few lines of
// code. Configuration comes from environment variables via the Config
// struct.
package pg
