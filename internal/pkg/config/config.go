package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Sentinel   SentinelConfig   `mapstructure:"sentinel"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Store      StoreConfig      `mapstructure:"store"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Valkey     ValkeyConfig     `mapstructure:"valkey"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

// SentinelConfig configures the Sentinel Hub imagery provider. Credentials
// come from the environment (FIREWATCH_SENTINEL_CLIENT_ID and
// FIREWATCH_SENTINEL_CLIENT_SECRET) and are never baked into images or
// config files.
type SentinelConfig struct {
	TokenURL     string `mapstructure:"token_url"`
	ProcessURL   string `mapstructure:"process_url"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	Timeout      int    `mapstructure:"timeout"`     // seconds, per attempt
	MaxRetries   int    `mapstructure:"max_retries"` // extra attempts after the first
}

// ClassifierConfig configures the external wildfire inference service.
type ClassifierConfig struct {
	URL        string `mapstructure:"url"`
	Timeout    int    `mapstructure:"timeout"` // seconds, per attempt
	MaxRetries int    `mapstructure:"max_retries"`
	VerdictTTL int    `mapstructure:"verdict_ttl"` // seconds a cached verdict stays valid
}

// StoreConfig configures the local image store. PublicPath is the URL prefix
// under which stored files are served.
type StoreConfig struct {
	Dir        string `mapstructure:"dir"`
	PublicPath string `mapstructure:"public_path"`
}

type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Enabled bool   `mapstructure:"enabled"`
}

type ValkeyConfig struct {
	Addr    string `mapstructure:"addr"`
	Enabled bool   `mapstructure:"enabled"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	OTLPAddr    string `mapstructure:"otlp_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

// SentinelTimeout returns the per-attempt Process API timeout.
func (c *Config) SentinelTimeout() time.Duration {
	return time.Duration(c.Sentinel.Timeout) * time.Second
}

// ClassifierTimeout returns the per-attempt inference timeout.
func (c *Config) ClassifierTimeout() time.Duration {
	return time.Duration(c.Classifier.Timeout) * time.Second
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15)
	v.SetDefault("server.write_timeout", 120)
	v.SetDefault("sentinel.token_url", "https://services.sentinel-hub.com/oauth/token")
	v.SetDefault("sentinel.process_url", "https://services.sentinel-hub.com/api/v1/process")
	v.SetDefault("sentinel.client_id", "")
	v.SetDefault("sentinel.client_secret", "")
	v.SetDefault("sentinel.timeout", 30)
	v.SetDefault("sentinel.max_retries", 2)
	v.SetDefault("classifier.url", "http://localhost:5000/predict")
	v.SetDefault("classifier.timeout", 60)
	v.SetDefault("classifier.max_retries", 2)
	v.SetDefault("classifier.verdict_ttl", 3600)
	v.SetDefault("store.dir", "./public/sentinel")
	v.SetDefault("store.public_path", "/sentinel")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.enabled", false)
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("valkey.enabled", false)
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.otlp_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: FIREWATCH_SENTINEL_CLIENT_ID → sentinel.client_id
	v.SetEnvPrefix("FIREWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
// Provider credentials are deliberately not required at boot: a node that
// only serves cached images and verdicts can run without them.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Sentinel.TokenURL == "" {
		errs = append(errs, "sentinel.token_url is required")
	}
	if c.Sentinel.ProcessURL == "" {
		errs = append(errs, "sentinel.process_url is required")
	}
	if c.Sentinel.Timeout <= 0 {
		errs = append(errs, "sentinel.timeout must be positive")
	}
	if c.Sentinel.MaxRetries < 0 {
		errs = append(errs, "sentinel.max_retries must not be negative")
	}
	if c.Classifier.URL == "" {
		errs = append(errs, "classifier.url is required")
	}
	if c.Classifier.Timeout <= 0 {
		errs = append(errs, "classifier.timeout must be positive")
	}
	if c.Classifier.MaxRetries < 0 {
		errs = append(errs, "classifier.max_retries must not be negative")
	}
	if c.Store.Dir == "" {
		errs = append(errs, "store.dir is required")
	}
	if !strings.HasPrefix(c.Store.PublicPath, "/") {
		errs = append(errs, "store.public_path must start with /")
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		errs = append(errs, "nats.url is required when nats.enabled is true")
	}
	if c.Valkey.Enabled && c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required when valkey.enabled is true")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
