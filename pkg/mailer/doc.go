// Package mailer defines the outbound email transport boundary of the
// notification engine and ships two implementations: a Postmark-backed
// sender for production and a filesystem DevSender for local development.
package mailer
