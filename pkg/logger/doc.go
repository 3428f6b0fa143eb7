// Package logger provides structured logging with configurable log levels.
// It wraps the standard log/slog package and tags every record with the
// service name and environment.
package logger
