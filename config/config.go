package config

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Gateway    GatewayConfig    `yaml:"gateway"`
	Database   DatabaseConfig   `yaml:"database"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Log        LogConfig        `yaml:"log"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	Enabled    bool   `yaml:"enabled"`
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// ServerConfig holds the HTTP API configuration.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	RateLimitPerSec float64       `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int           `yaml:"rate_limit_burst"`
	CacheTTLSeconds int           `yaml:"cache_ttl_seconds"`
	CacheTTL        time.Duration `yaml:"-"`
}

// GatewayConfig describes how to reach the device gateway.
type GatewayConfig struct {
	URL            string         `yaml:"url"`
	TimeoutSeconds int            `yaml:"timeout_seconds"`
	Timeout        time.Duration  `yaml:"-"`
	PollIntervalMs int            `yaml:"poll_interval_ms"`
	PollInterval   time.Duration  `yaml:"-"`
	HTTPProxy      string         `yaml:"http_proxy"`
	Timezone       string         `yaml:"timezone"`
	Location       *time.Location `yaml:"-"`
}

// DatabaseConfig holds the session database connection configuration.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// MQTTConfig enables status publishing when Broker is set.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
}

// LogConfig configures the zerolog global logger.
type LogConfig struct {
	Level      string `yaml:"level"`
	Debug      bool   `yaml:"debug"`
	Output     string `yaml:"output"`
	TimeFormat string `yaml:"time_format"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied, for use when
// no config file exists.
func Default() *Config {
	var cfg Config
	// Only the timezone lookup can fail and the default is UTC.
	_ = cfg.applyDefaults()
	return &cfg
}

func (cfg *Config) applyDefaults() error {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 1
	}
	cfg.Server.CacheTTL = time.Duration(cfg.Server.CacheTTLSeconds) * time.Second

	if cfg.Gateway.URL == "" {
		cfg.Gateway.URL = "http://localhost:1337"
	}
	if cfg.Gateway.TimeoutSeconds <= 0 {
		cfg.Gateway.TimeoutSeconds = 10
	}
	cfg.Gateway.Timeout = time.Duration(cfg.Gateway.TimeoutSeconds) * time.Second

	if cfg.Gateway.PollIntervalMs <= 0 {
		cfg.Gateway.PollIntervalMs = 5000
	}
	cfg.Gateway.PollInterval = time.Duration(cfg.Gateway.PollIntervalMs) * time.Millisecond

	if cfg.Gateway.Timezone == "" {
		cfg.Gateway.Timezone = "UTC"
	}
	loc, err := time.LoadLocation(cfg.Gateway.Timezone)
	if err != nil {
		return fmt.Errorf("failed to load timezone %q: %w", cfg.Gateway.Timezone, err)
	}
	cfg.Gateway.Location = loc

	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "tolppa.db"
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Debug().Msg("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}

	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "tolppa-client"
	}
	if cfg.MQTT.Topic == "" {
		cfg.MQTT.Topic = "tolppa/status"
	}

	return nil
}
