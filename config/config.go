package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"delaybroker/pkg/delay"
	"delaybroker/storage"
)

// Config represents the application configuration
type Config struct {
	Broker  BrokerConfig  `mapstructure:"broker"`
	Delay   DelayConfig   `mapstructure:"delay"`
	Storage StorageConfig `mapstructure:"storage"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// BrokerConfig contains worker pool configuration
type BrokerConfig struct {
	Workers        int           `mapstructure:"workers"`
	PublishTimeout time.Duration `mapstructure:"publish_timeout"`
}

// DelayConfig selects the delivery delay strategy
type DelayConfig struct {
	Strategy string        `mapstructure:"strategy"`
	Constant time.Duration `mapstructure:"constant"`
	Min      time.Duration `mapstructure:"min"`
	Max      time.Duration `mapstructure:"max"`
}

// StorageConfig contains persistence configuration
type StorageConfig struct {
	Backend      string        `mapstructure:"backend"`
	Path         string        `mapstructure:"path"`
	DSN          string        `mapstructure:"dsn"`
	Retries      int           `mapstructure:"retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// MetricsConfig contains metrics configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// LoadConfig loads configuration from file and environment.
// Environment variables use the DELAYBROKER_ prefix, e.g.
// DELAYBROKER_STORAGE_BACKEND=bolt.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/delaybroker")
	}

	setDefaults(v)

	v.SetEnvPrefix("DELAYBROKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("broker.workers", 2)
	v.SetDefault("broker.publish_timeout", 5*time.Second)

	v.SetDefault("delay.strategy", "uniform")
	v.SetDefault("delay.constant", time.Second)
	v.SetDefault("delay.min", time.Second)
	v.SetDefault("delay.max", 5*time.Second)

	v.SetDefault("storage.backend", "file")
	v.SetDefault("storage.path", "./data/messages.json")
	v.SetDefault("storage.dsn", "")
	v.SetDefault("storage.retries", 0)
	v.SetDefault("storage.retry_backoff", 50*time.Millisecond)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file", "")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.addr", ":2112")
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	if config.Broker.Workers < 1 {
		return fmt.Errorf("broker.workers must be at least 1")
	}
	if config.Broker.PublishTimeout <= 0 {
		return fmt.Errorf("broker.publish_timeout must be positive")
	}

	if _, err := delay.ParseKind(config.Delay.Strategy); err != nil {
		return fmt.Errorf("delay.strategy: %w", err)
	}
	if config.Delay.Constant < 0 || config.Delay.Min < 0 || config.Delay.Max < 0 {
		return fmt.Errorf("delay durations must not be negative")
	}
	if config.Delay.Min > config.Delay.Max {
		return fmt.Errorf("delay.min must not exceed delay.max")
	}

	backend, err := storage.ParseBackend(config.Storage.Backend)
	if err != nil {
		return fmt.Errorf("storage.backend: %w", err)
	}
	if backend == storage.BackendPostgres && config.Storage.DSN == "" {
		return fmt.Errorf("storage.dsn is required for the %s backend", backend)
	}
	if config.Storage.Path != "" {
		config.Storage.Path = filepath.Clean(config.Storage.Path)
	}
	if config.Storage.Retries < 0 {
		return fmt.Errorf("storage.retries must not be negative")
	}

	return nil
}

// GetDefaultConfig returns a default configuration
func GetDefaultConfig() *Config {
	v := viper.New()
	setDefaults(v)

	var config Config
	_ = v.Unmarshal(&config)
	_ = validateConfig(&config)

	return &config
}

// DelayOptions converts the delay section for delay.New.
func (c *Config) DelayOptions() (delay.Options, error) {
	kind, err := delay.ParseKind(c.Delay.Strategy)
	if err != nil {
		return delay.Options{}, err
	}
	return delay.Options{
		Kind:     kind,
		Constant: c.Delay.Constant,
		Min:      c.Delay.Min,
		Max:      c.Delay.Max,
	}, nil
}

// StorageOptions converts the storage section for storage.Open.
func (c *Config) StorageOptions() (storage.Options, error) {
	backend, err := storage.ParseBackend(c.Storage.Backend)
	if err != nil {
		return storage.Options{}, err
	}
	return storage.Options{
		Backend:      backend,
		Path:         c.Storage.Path,
		DSN:          c.Storage.DSN,
		Retries:      c.Storage.Retries,
		RetryBackoff: c.Storage.RetryBackoff,
	}, nil
}
