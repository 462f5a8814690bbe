package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the discovery engine.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Oracle   OracleConfig   `yaml:"oracle"`
	Sink     SinkConfig     `yaml:"sink"`
	Audit    AuditConfig    `yaml:"audit"`
	ICP      ICPConfig      `yaml:"icp"`
	Reports  ReportsConfig  `yaml:"reports"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the server host, with container detection.
func (c ServerConfig) GetHost() string {
	// In a container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// RedisConfig holds Redis settings for locks and the sync ledger.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Enabled  bool   `yaml:"enabled"`
}

// OracleConfig holds scoring-oracle API configuration.
type OracleConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration.
func (c OracleConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SinkConfig holds contact-list sink (email list provider) configuration.
type SinkConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration.
func (c SinkConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// AuditConfig holds audit polling and locking settings.
type AuditConfig struct {
	// PollIntervalSeconds is the fixed interval between status polls.
	PollIntervalSeconds int `yaml:"poll_interval_seconds"`
	// PollMaxAttempts bounds the caller-driven poll loop.
	PollMaxAttempts int `yaml:"poll_max_attempts"`
	// RunLockTTLMinutes is the TTL on the per-tenant run lock.
	RunLockTTLMinutes int `yaml:"run_lock_ttl_minutes"`
}

// PollInterval returns the poll interval as a duration.
func (c AuditConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// RunLockTTL returns the run lock TTL as a duration.
func (c AuditConfig) RunLockTTL() time.Duration {
	return time.Duration(c.RunLockTTLMinutes) * time.Minute
}

// ICPConfig holds ICP matching settings.
type ICPConfig struct {
	// DefaultThreshold is the tenant-wide minimum confidence (0-100)
	// used by categories without a per-category threshold.
	DefaultThreshold float64 `yaml:"default_threshold"`
}

// ReportsConfig holds report archive settings.
type ReportsConfig struct {
	S3Bucket  string `yaml:"s3_bucket"`
	S3Region  string `yaml:"s3_region"`
	S3Enabled bool   `yaml:"s3_enabled"`
}

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Oracle.TimeoutSeconds == 0 {
		cfg.Oracle.TimeoutSeconds = 60
	}
	if cfg.Sink.TimeoutSeconds == 0 {
		cfg.Sink.TimeoutSeconds = 30
	}
	if cfg.Audit.PollIntervalSeconds == 0 {
		cfg.Audit.PollIntervalSeconds = 5
	}
	if cfg.Audit.PollMaxAttempts == 0 {
		cfg.Audit.PollMaxAttempts = 60
	}
	if cfg.Audit.RunLockTTLMinutes == 0 {
		cfg.Audit.RunLockTTLMinutes = 30
	}
	if cfg.ICP.DefaultThreshold == 0 {
		cfg.ICP.DefaultThreshold = 75
	}
	if cfg.Reports.S3Region == "" {
		cfg.Reports.S3Region = "us-east-1"
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars in deployment.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Database.URL = dbURL
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
		cfg.Redis.Enabled = true
	}
	if pw := os.Getenv("REDIS_PASSWORD"); pw != "" {
		cfg.Redis.Password = pw
	}
	if baseURL := os.Getenv("ORACLE_BASE_URL"); baseURL != "" {
		cfg.Oracle.BaseURL = baseURL
	}
	if apiKey := os.Getenv("ORACLE_API_KEY"); apiKey != "" {
		cfg.Oracle.APIKey = apiKey
	}
	if baseURL := os.Getenv("SINK_BASE_URL"); baseURL != "" {
		cfg.Sink.BaseURL = baseURL
	}
	if apiKey := os.Getenv("SINK_API_KEY"); apiKey != "" {
		cfg.Sink.APIKey = apiKey
	}
	if bucket := os.Getenv("REPORTS_S3_BUCKET"); bucket != "" {
		cfg.Reports.S3Bucket = bucket
		cfg.Reports.S3Enabled = true
	}
	if region := os.Getenv("REPORTS_S3_REGION"); region != "" {
		cfg.Reports.S3Region = region
	}

	return cfg, nil
}
