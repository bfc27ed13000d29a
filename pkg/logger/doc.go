// Package logger provides a slog.Logger factory with functional options and
// a set of shared attribute constructors so log keys stay consistent across
// the notification engine (broadcast_id, recipient_id, job_id, ...).
package logger
