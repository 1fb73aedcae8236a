package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the briefing engine.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	SES        SESConfig        `yaml:"ses"`
	Newsletter NewsletterConfig `yaml:"newsletter"`
	Dispatch   DispatchConfig   `yaml:"dispatch"`
	Articles   ArticlesConfig   `yaml:"articles"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the listen host, with container detection.
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
}

// RedisConfig holds Redis settings for the dispatch rate limiter.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// SESConfig holds AWS SES API configuration.
type SESConfig struct {
	Region         string `yaml:"region"`
	AccessKey      string `yaml:"access_key"`
	SecretKey      string `yaml:"secret_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	FromName       string `yaml:"from_name"`
	FromEmail      string `yaml:"from_email"`
	ReplyTo        string `yaml:"reply_to"`
}

// Timeout returns the configured per-send timeout as a duration.
func (c SESConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// NewsletterConfig holds subscription lifecycle settings.
type NewsletterConfig struct {
	SiteURL     string `yaml:"site_url"`
	Channel     string `yaml:"channel"`
	WindowHours int    `yaml:"window_hours"`
	MaxItems    int    `yaml:"max_items"`
}

// Window returns the article selection window as a duration.
func (c NewsletterConfig) Window() time.Duration {
	return time.Duration(c.WindowHours) * time.Hour
}

// DispatchConfig holds dispatch engine tuning. Rate and concurrency are
// independent: Workers bounds parallelism, RatePerSecond/Burst bound the
// outbound request rate to the provider.
type DispatchConfig struct {
	Workers       int `yaml:"workers"`
	RatePerSecond int `yaml:"rate_per_second"`
	Burst         int `yaml:"burst"`
}

// ArticlesConfig selects the article source for digest building.
type ArticlesConfig struct {
	Source  string `yaml:"source"` // "postgres" or "feed"
	FeedURL string `yaml:"feed_url"`
}

// Load reads and parses the configuration file, applying defaults.
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
		cfg.Database.MaxOpenConns = 20
	}
	if cfg.SES.TimeoutSeconds == 0 {
		cfg.SES.TimeoutSeconds = 30
	}
	if cfg.SES.Region == "" {
		cfg.SES.Region = "us-west-2"
	}
	if cfg.Newsletter.SiteURL == "" {
		cfg.Newsletter.SiteURL = "http://localhost:3000"
	}
	if cfg.Newsletter.Channel == "" {
		cfg.Newsletter.Channel = "morning_briefing"
	}
	if cfg.Newsletter.WindowHours == 0 {
		cfg.Newsletter.WindowHours = 24
	}
	if cfg.Newsletter.MaxItems == 0 {
		cfg.Newsletter.MaxItems = 10
	}
	if cfg.Dispatch.Workers == 0 {
		cfg.Dispatch.Workers = 8
	}
	if cfg.Dispatch.RatePerSecond == 0 {
		cfg.Dispatch.RatePerSecond = 20
	}
	if cfg.Dispatch.Burst == 0 {
		cfg.Dispatch.Burst = cfg.Dispatch.RatePerSecond
	}
	if cfg.Articles.Source == "" {
		cfg.Articles.Source = "postgres"
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It loads a .env file (if present) before reading env vars, so secrets can
// live in .env locally and in real env vars in deployment.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("AWS_SES_ACCESS_KEY"); v != "" {
		cfg.SES.AccessKey = v
	}
	if v := os.Getenv("AWS_SES_SECRET_KEY"); v != "" {
		cfg.SES.SecretKey = v
	}
	if v := os.Getenv("AWS_SES_REGION"); v != "" {
		cfg.SES.Region = v
	}
	if v := os.Getenv("FROM_EMAIL"); v != "" {
		cfg.SES.FromEmail = v
	}
	if v := os.Getenv("SITE_URL"); v != "" {
		cfg.Newsletter.SiteURL = v
	}
	if v := os.Getenv("ARTICLE_FEED_URL"); v != "" {
		cfg.Articles.FeedURL = v
	}
	if v := os.Getenv("DISPATCH_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Dispatch.Workers = n
		}
	}
	if v := os.Getenv("DISPATCH_RATE_PER_SECOND"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Dispatch.RatePerSecond = n
		}
	}

	return cfg, nil
}
