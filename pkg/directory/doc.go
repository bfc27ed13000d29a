// Package directory provides the postgres-backed recipient directory used
// by the notification orchestrator to resolve eligible recipients.
package directory
