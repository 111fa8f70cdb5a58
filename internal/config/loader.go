package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/lucasnoah/bistr/internal/scan"
)

// Defaults applied when the project file leaves a value unset.
const (
	DefaultMaxParseAttempts = 5
	DefaultOllamaURL        = "http://localhost:11434"
	DefaultLogMaxSizeMB     = 10
	DefaultLogMaxBackups    = 5
	DefaultLogMaxAgeDays    = 30
)

// ProjectFileName is the per-target config file.
const ProjectFileName = ".bistr.yaml"

// HomeDir returns ~/.bistr, falling back to a relative .bistr when the home
// directory cannot be determined.
func HomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".bistr"
	}
	return filepath.Join(home, ".bistr")
}

// Load reads and parses the YAML file at path and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault loads the first config found for targetDir. Search order:
// <targetDir>/.bistr.yaml, ~/.bistr/config.yaml. When neither exists the
// built-in defaults are returned along with an empty path.
func LoadDefault(targetDir string) (*Config, string, error) {
	var candidates []string
	if targetDir != "" {
		candidates = append(candidates, filepath.Join(targetDir, ProjectFileName))
	}
	candidates = append(candidates, filepath.Join(HomeDir(), "config.yaml"))

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			cfg, err := Load(path)
			return cfg, path, err
		}
	}

	cfg := &Config{}
	applyDefaults(cfg)
	return cfg, "", nil
}

func applyDefaults(cfg *Config) {
	if cfg.OllamaURL == "" {
		cfg.OllamaURL = DefaultOllamaURL
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = append([]string(nil), scan.DefaultExtensions...)
	}
	if cfg.MaxParseAttempts == nil {
		n := DefaultMaxParseAttempts
		cfg.MaxParseAttempts = &n
	}
	if cfg.EventLog == "" {
		cfg.EventLog = filepath.Join(HomeDir(), "bistr.db")
	}

	l := &cfg.Log
	if l.File == "" {
		l.File = filepath.Join(HomeDir(), "logs", "bistr.log")
	}
	if l.MaxSizeMB == 0 {
		l.MaxSizeMB = DefaultLogMaxSizeMB
	}
	if l.MaxBackups == 0 {
		l.MaxBackups = DefaultLogMaxBackups
	}
	if l.MaxAgeDays == 0 {
		l.MaxAgeDays = DefaultLogMaxAgeDays
	}
}
