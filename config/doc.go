// Package config handles loading and parsing of configuration from YAML files
// and environment variables. It defines the application configuration structure
// including server settings, breaker and retry defaults, rate limit mode,
// Redis connection details and the guarded upstream services.
package config
