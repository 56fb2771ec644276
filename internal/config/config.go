package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Storage  StorageConfig  `mapstructure:"storage"  validate:"required"`
	Audit    AuditConfig    `mapstructure:"audit"    validate:"required"`
	Queue    QueueConfig    `mapstructure:"queue"    validate:"required"`
	Database DatabaseConfig `mapstructure:"database"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Worker   WorkerConfig   `mapstructure:"worker"   validate:"required"`
}

// ServerConfig contains the HTTP listener settings. An empty IPv4 or IPv6
// address disables that listener; at least one must remain enabled.
type ServerConfig struct {
	IPv4              string        `mapstructure:"ipv4"                validate:"omitempty,ipv4"`
	IPv6              string        `mapstructure:"ipv6"                validate:"omitempty,ipv6"`
	Port              int           `mapstructure:"port"                validate:"gte=0,lt=65536"`
	LogLevel          string        `mapstructure:"log_level"           validate:"required,oneof=debug info warn error"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" validate:"gt=0"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"    validate:"gt=0"`
}

// StorageConfig locates generated artifacts on disk.
type StorageConfig struct {
	ImageDir string `mapstructure:"image_dir" validate:"required"`
}

// AuditConfig controls the out-of-band audit log.
type AuditConfig struct {
	LogFile string `mapstructure:"log_file" validate:"required"`
	// BufferSize is the capacity of the hand-off channel. Events arriving
	// while it is full are dropped and counted.
	BufferSize int `mapstructure:"buffer_size" validate:"gt=0"`
}

// QueueConfig selects the broker implementation.
type QueueConfig struct {
	Backend string `mapstructure:"backend" validate:"required,oneof=memory postgres"`
}

// DatabaseConfig contains the Postgres broker connection settings.
// URL is required when the queue backend is postgres.
type DatabaseConfig struct {
	URL          string `mapstructure:"url"            validate:"omitempty,url"`
	MaxOpenConns int    `mapstructure:"max_open_conns" validate:"gte=1"`
}

// LLMConfig contains the generation engine settings. An empty API key
// selects the synthetic generator.
type LLMConfig struct {
	GeminiAPIKey string `mapstructure:"gemini_api_key"`
	ImageModel   string `mapstructure:"image_model" validate:"required"`
}

// WorkerConfig controls the generation worker pool.
type WorkerConfig struct {
	Concurrency        int           `mapstructure:"concurrency"          validate:"gte=1"`
	PollInterval       time.Duration `mapstructure:"poll_interval"        validate:"gt=0"`
	StuckJobAge        time.Duration `mapstructure:"stuck_job_age"        validate:"gt=0"`
	StuckCheckInterval time.Duration `mapstructure:"stuck_check_interval" validate:"gt=0"`
	// Embedded runs workers inside the server process. It is implied by
	// the memory backend, which cannot be shared across processes.
	Embedded bool `mapstructure:"embedded"`
}

// RunsEmbeddedWorkers reports whether the server process must host the
// worker pool itself.
func (c *Config) RunsEmbeddedWorkers() bool {
	return c.Worker.Embedded || c.Queue.Backend == BackendMemory
}

// Queue backends
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)
