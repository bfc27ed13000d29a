// Package config loads typed configuration structs from environment
// variables (caarlos0/env) with optional .env file support (godotenv).
// Parsed configs are cached per type for the lifetime of the process.
package config
