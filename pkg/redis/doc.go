// Package redis connects to the Redis instance backing the outbound job
// queue. Connect retries until the server is reachable; Healthcheck wraps a
// Ping and doubles as the broker liveness probe the orchestrator consults
// before choosing the queued delivery path.
package redis
