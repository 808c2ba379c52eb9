// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type APIConfig struct {
	BaseURL        string        `yaml:"base_url"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxRetries     int           `yaml:"max_retries"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`
}

type AuthConfig struct {
	TokenFile string `yaml:"token_file"`
}

type WatchConfig struct {
	JobInterval   time.Duration `yaml:"job_interval"`
	ShootInterval time.Duration `yaml:"shoot_interval"`
}

type UploadConfig struct {
	MaxFileBytes int64         `yaml:"max_file_bytes"`
	AllowedTypes []string      `yaml:"allowed_types"`
	ProgressStep time.Duration `yaml:"progress_step"` // simulated progress tick
	Workers      int           `yaml:"workers"`       // 1 = serialized
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type AdminConfig struct {
	Port int `yaml:"port"`
}

type Config struct {
	API    APIConfig    `yaml:"api"`
	Auth   AuthConfig   `yaml:"auth"`
	Watch  WatchConfig  `yaml:"watch"`
	Upload UploadConfig `yaml:"upload"`
	Log    LogConfig    `yaml:"log"`
	Admin  AdminConfig  `yaml:"admin"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.ApplyDefaults()

	// Minimal validation
	if cfg.API.BaseURL == "" {
		return nil, errors.New("api.base_url is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

// ApplyDefaults fills zero values; exported so tests can build configs by hand.
func (cfg *Config) ApplyDefaults() {
	if cfg.API.Timeout <= 0 {
		cfg.API.Timeout = 30 * time.Second
	}
	if cfg.API.MaxRetries < 0 {
		cfg.API.MaxRetries = 0
	}
	if cfg.API.RetryBaseDelay <= 0 {
		cfg.API.RetryBaseDelay = 500 * time.Millisecond
	}
	if cfg.Watch.JobInterval <= 0 {
		cfg.Watch.JobInterval = 3 * time.Second
	}
	if cfg.Watch.ShootInterval <= 0 {
		cfg.Watch.ShootInterval = 5 * time.Second
	}
	if cfg.Upload.MaxFileBytes <= 0 {
		cfg.Upload.MaxFileBytes = 10 << 20 // 10 MiB
	}
	if len(cfg.Upload.AllowedTypes) == 0 {
		cfg.Upload.AllowedTypes = []string{"image/jpeg", "image/png", "image/heic", "image/heif"}
	}
	if cfg.Upload.ProgressStep <= 0 {
		cfg.Upload.ProgressStep = 400 * time.Millisecond
	}
	if cfg.Upload.Workers <= 0 {
		cfg.Upload.Workers = 1
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
}
