package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every automatically bound environment variable.
const EnvPrefix = "GENSERVE"

// defaults are applied before any file, environment, or flag source.
var defaults = map[string]any{
	"server.ipv4":                 "0.0.0.0",
	"server.ipv6":                 "::",
	"server.port":                 8080,
	"server.log_level":            "info",
	"server.read_header_timeout":  "5s",
	"server.shutdown_timeout":     "15s",
	"storage.image_dir":           "./generated_images",
	"audit.log_file":              "server_log.txt",
	"audit.buffer_size":           1024,
	"queue.backend":               BackendMemory,
	"database.max_open_conns":     10,
	"llm.image_model":             "imagen-3.0-generate-002",
	"worker.concurrency":          2,
	"worker.poll_interval":        "2s",
	"worker.stuck_job_age":        "30m",
	"worker.stuck_check_interval": "5m",
	"worker.embedded":             false,
}

// legacyEnv lists unprefixed variable names accepted for compatibility with
// existing deployments. The prefixed name always wins when both are set.
var legacyEnv = map[string]string{
	"server.ipv4":        "SERVER_IPV4",
	"server.ipv6":        "SERVER_IPV6",
	"server.port":        "SERVER_PORT",
	"storage.image_dir":  "IMAGE_STORAGE_PATH",
	"audit.log_file":     "LOG_FILE",
	"database.url":       "DATABASE_URL",
	"llm.gemini_api_key": "GEMINI_API_KEY",
}

// flagKeys maps command line flag names to configuration keys. Only flags
// present in the provided FlagSet are bound.
var flagKeys = map[string]string{
	"ipv4":        "server.ipv4",
	"ipv6":        "server.ipv6",
	"port":        "server.port",
	"log-level":   "server.log_level",
	"image-dir":   "storage.image_dir",
	"log-file":    "audit.log_file",
	"backend":     "queue.backend",
	"concurrency": "worker.concurrency",
}

// ConfigFlag is the name of the flag selecting an explicit config file.
const ConfigFlag = "config"

// ErrNoListener is returned when both the IPv4 and IPv6 listeners are disabled.
var ErrNoListener = errors.New("at least one of server.ipv4 or server.ipv6 must be set")

// Load configuration from defaults, an optional config file, environment
// variables, and the already parsed flags (which may be nil). Later sources
// take precedence. Returns a populated Config or an error if loading or
// validation fails.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	configFile := ""
	if flags != nil {
		if f := flags.Lookup(ConfigFlag); f != nil {
			configFile = f.Value.String()
		}
	}
	v.SetConfigType("yaml")
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("genserve")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	// An empty SERVER_IPV6 must be able to disable the IPv6 listener.
	v.AllowEmptyEnv(true)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key := range defaults {
		if err := bindEnv(v, key); err != nil {
			return nil, err
		}
	}
	for _, key := range []string{"database.url", "llm.gemini_api_key"} {
		if err := bindEnv(v, key); err != nil {
			return nil, err
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("error binding flag --%s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks struct tags and the cross-field rules tags cannot express.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	if cfg.Server.IPv4 == "" && cfg.Server.IPv6 == "" {
		return fmt.Errorf("configuration validation failed: %w", ErrNoListener)
	}

	if cfg.Queue.Backend == BackendPostgres && cfg.Database.URL == "" {
		return fmt.Errorf("configuration validation failed: database.url is required for the postgres backend")
	}

	return nil
}

// bindEnv binds the prefixed variable for key and, when one exists, its
// legacy unprefixed alias.
func bindEnv(v *viper.Viper, key string) error {
	names := []string{EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}
	if legacy, ok := legacyEnv[key]; ok {
		names = append(names, legacy)
	}
	args := append([]string{key}, names...)
	if err := v.BindEnv(args...); err != nil {
		return fmt.Errorf("error binding environment variables %v: %w", names, err)
	}
	return nil
}
