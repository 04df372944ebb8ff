package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Backend     BackendConfig     `yaml:"backend"`
	Leaderboard LeaderboardConfig `yaml:"leaderboard"`
	Refresh     RefreshConfig     `yaml:"refresh"`
	Live        LiveConfig        `yaml:"live"`
	Trainer     TrainerConfig     `yaml:"trainer"`
}

// BackendConfig holds the connection settings for the training backend
type BackendConfig struct {
	BaseURL      string        `yaml:"base_url"`
	Timeout      time.Duration `yaml:"timeout"`
	SessionToken string        `yaml:"session_token"`
}

// LeaderboardConfig holds leaderboard windowing configuration
type LeaderboardConfig struct {
	DefaultPageSize int `yaml:"default_page_size"`
	MaxPageSize     int `yaml:"max_page_size"`
}

// RefreshConfig holds auto-refresh worker configuration
type RefreshConfig struct {
	Interval time.Duration `yaml:"interval"`
	Enabled  bool          `yaml:"enabled"`
}

// LiveConfig holds the WebSocket score-feed configuration
type LiveConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
}

// TrainerConfig holds the practice server configuration
type TrainerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply defaults
	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults sets default values for missing configuration
func (c *Config) applyDefaults() {
	// Backend defaults
	if c.Backend.BaseURL == "" {
		c.Backend.BaseURL = "http://localhost:5000/api"
	}
	if c.Backend.Timeout == 0 {
		c.Backend.Timeout = 10 * time.Second
	}

	// Leaderboard defaults
	if c.Leaderboard.DefaultPageSize == 0 {
		c.Leaderboard.DefaultPageSize = 20
	}
	if c.Leaderboard.MaxPageSize == 0 {
		c.Leaderboard.MaxPageSize = 100
	}

	// Refresh defaults
	if c.Refresh.Interval == 0 {
		c.Refresh.Interval = 30 * time.Second
	}

	// Trainer defaults
	if c.Trainer.Port == 0 {
		c.Trainer.Port = 5000
	}
	if c.Trainer.ReadTimeout == 0 {
		c.Trainer.ReadTimeout = 5 * time.Second
	}
	if c.Trainer.WriteTimeout == 0 {
		c.Trainer.WriteTimeout = 10 * time.Second
	}
	if c.Trainer.IdleTimeout == 0 {
		c.Trainer.IdleTimeout = 120 * time.Second
	}
}

// DefaultConfig returns a configuration with all defaults
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.Refresh.Enabled = true
	return cfg
}
