package config

import (
	"fmt"
	"time"
)

// Config is the project configuration parsed from .bistr.yaml.
type Config struct {
	Model            string    `yaml:"model"`
	OllamaURL        string    `yaml:"ollama_url" validate:"omitempty,url"`
	Timeout          string    `yaml:"timeout"`
	Extensions       []string  `yaml:"extensions" validate:"dive,required"`
	SkipVendor       bool      `yaml:"skip_vendor"`
	MaxParseAttempts *int      `yaml:"max_parse_attempts" validate:"omitempty,gte=0"`
	StateFile        string    `yaml:"state_file"`
	OutputDir        string    `yaml:"output_dir"`
	Summary          string    `yaml:"summary"`
	Question         string    `yaml:"question"`
	EventLog         string    `yaml:"event_log"`
	MetricsFile      string    `yaml:"metrics_file"`
	Log              LogConfig `yaml:"log"`
}

// LogConfig controls the rotating diagnostic log.
type LogConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `yaml:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `yaml:"max_age_days" validate:"gte=0"`
}

// ParseAttempts returns the structured-response attempt cap; 0 means unbounded.
func (c *Config) ParseAttempts() int {
	if c.MaxParseAttempts == nil {
		return DefaultMaxParseAttempts
	}
	return *c.MaxParseAttempts
}

// TimeoutDuration parses Timeout. An empty value means no timeout.
func (c *Config) TimeoutDuration() (time.Duration, error) {
	if c.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("timeout %q: %w", c.Timeout, err)
	}
	return d, nil
}
