// Package config handles configuration loading, parsing, and validation
// from defaults, an optional YAML file, environment variables, and command
// line flags. It provides type-safe access to the settings of the gateway,
// the broker, the artifact store, the audit logger, and the workers.
package config
