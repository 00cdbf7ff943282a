package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is loaded from environment variables. Both binaries share it; the
// API process ignores the worker-only fields and vice versa.
type Config struct {
	Port            int    `env:"PORT" envDefault:"7890"`
	DataDir         string `env:"DATA_DIR" envDefault:"/data"`
	MaxUploadSizeMB int    `env:"MAX_UPLOAD_SIZE_MB" envDefault:"50"`
	BehindProxy     bool   `env:"BEHIND_PROXY" envDefault:"false"`

	AuthSecret        string        `env:"AUTH_SECRET"`
	TokenLifetime     time.Duration `env:"TOKEN_LIFETIME" envDefault:"168h"`
	BootstrapUser     string        `env:"BOOTSTRAP_USER"`
	BootstrapPassword string        `env:"BOOTSTRAP_PASSWORD"`

	// StoreBackend selects the job record store: "sqlite" (default) or
	// "redis". Redis moves only the job records; the work queue stays in
	// SQLite under DataDir, which both processes must share either way.
	StoreBackend  string        `env:"STORE_BACKEND" envDefault:"sqlite"`
	RedisAddr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisJobTTL   time.Duration `env:"REDIS_JOB_TTL" envDefault:"168h"`

	Workers             int           `env:"WORKERS" envDefault:"2"`
	QueueLease          time.Duration `env:"QUEUE_LEASE" envDefault:"10m"`
	MaxDeliveryAttempts int           `env:"MAX_DELIVERY_ATTEMPTS" envDefault:"5"`

	InferenceURL     string        `env:"INFERENCE_URL" envDefault:"http://localhost:8501"`
	InferenceTimeout time.Duration `env:"INFERENCE_TIMEOUT" envDefault:"5m"`

	PollInitial time.Duration `env:"POLL_INITIAL" envDefault:"100ms"`
	PollCap     time.Duration `env:"POLL_CAP" envDefault:"2s"`
	PollMaxWait time.Duration `env:"POLL_MAX_WAIT" envDefault:"30s"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if cfg.AuthSecret == "" {
		return nil, fmt.Errorf("AUTH_SECRET is required")
	}
	if cfg.StoreBackend != "sqlite" && cfg.StoreBackend != "redis" {
		return nil, fmt.Errorf("invalid STORE_BACKEND %q", cfg.StoreBackend)
	}

	cfg.Sanitize()
	return cfg, nil
}

// Sanitize applies guardrails to values that would otherwise break the
// worker or the poll loop.
func (c *Config) Sanitize() {
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.MaxDeliveryAttempts < 1 {
		c.MaxDeliveryAttempts = 1
	}
	if c.QueueLease <= 0 {
		c.QueueLease = 10 * time.Minute
	}
	if c.PollInitial <= 0 {
		c.PollInitial = 100 * time.Millisecond
	}
	if c.PollCap < c.PollInitial {
		c.PollCap = c.PollInitial
	}
	if c.PollMaxWait < c.PollCap {
		c.PollMaxWait = c.PollCap
	}
	if c.MaxUploadSizeMB < 1 {
		c.MaxUploadSizeMB = 1
	}
}
