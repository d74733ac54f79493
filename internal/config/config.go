package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"riverview/internal/errors"
)

const (
	DefaultRiverViewURL = "http://data.numenta.org"
	DefaultRiver        = "chicago-beach-weather"
	DefaultStream       = "Oak Street Weather Station"
	DefaultField        = "solar_radiation"
	DefaultDataLimit    = 3000
)

// Config represents the complete application configuration
type Config struct {
	RiverView RiverViewConfig
	Output    OutputConfig
	Model     ModelConfig
	Logging   LoggingConfig
}

// RiverViewConfig holds the data source settings
type RiverViewConfig struct {
	URL     string
	River   string
	Stream  string
	Field   string
	Limit   int
	Timeout time.Duration
}

// OutputConfig holds where and how results are written
type OutputConfig struct {
	Dir    string
	Format string // "csv" or "xlsx"
}

// ModelConfig holds anomaly model settings
type ModelConfig struct {
	ParamsFile string // empty means the embedded defaults
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level string
}

// Load reads configuration from environment variables. It does not validate:
// callers apply their overrides first and then call Validate.
func Load() *Config {
	return &Config{
		RiverView: *loadRiverViewConfig(),
		Output:    *loadOutputConfig(),
		Model: ModelConfig{
			ParamsFile: getEnvOrDefault("MODEL_PARAMS_FILE", ""),
		},
		Logging: LoggingConfig{
			Level: getEnvOrDefault("LOG_LEVEL", "INFO"),
		},
	}
}

func loadRiverViewConfig() *RiverViewConfig {
	return &RiverViewConfig{
		URL:     getEnvOrDefault("RIVERVIEW_URL", DefaultRiverViewURL),
		River:   getEnvOrDefault("RIVERVIEW_RIVER", DefaultRiver),
		Stream:  getEnvOrDefault("RIVERVIEW_STREAM", DefaultStream),
		Field:   getEnvOrDefault("RIVERVIEW_FIELD", DefaultField),
		Limit:   getEnvIntOrDefault("RIVERVIEW_LIMIT", DefaultDataLimit),
		Timeout: getEnvDurationOrDefault("RIVERVIEW_TIMEOUT", 30*time.Second),
	}
}

func loadOutputConfig() *OutputConfig {
	return &OutputConfig{
		Dir:    getEnvOrDefault("OUTPUT_DIR", "."),
		Format: strings.ToLower(getEnvOrDefault("OUTPUT_FORMAT", "csv")),
	}
}

// Validate checks the settings that cannot be defaulted
func (c *Config) Validate() error {
	if strings.TrimSpace(c.RiverView.URL) == "" {
		return errors.ConfigInvalid("River View URL is required")
	}
	if c.RiverView.Limit < 0 {
		return errors.ConfigInvalid("data limit cannot be negative")
	}
	if c.RiverView.Timeout <= 0 {
		return errors.ConfigInvalid("request timeout must be positive")
	}
	switch c.Output.Format {
	case "csv", "xlsx":
	default:
		return errors.ConfigInvalid("output format must be csv or xlsx, got " + strconv.Quote(c.Output.Format))
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
