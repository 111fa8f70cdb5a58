package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validConfig = `
model: llama3
ollama_url: http://gpu-box:11434
timeout: 10m
extensions: [.go, .py]
skip_vendor: true
max_parse_attempts: 3
output_dir: docs/analysis
summary: docs/summary.html
question: Where are retries handled?
log:
  max_size_mb: 50
`

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, t.TempDir(), ProjectFileName, validConfig)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Model != "llama3" {
		t.Errorf("Model = %q, want %q", cfg.Model, "llama3")
	}
	if cfg.OllamaURL != "http://gpu-box:11434" {
		t.Errorf("OllamaURL = %q", cfg.OllamaURL)
	}
	if len(cfg.Extensions) != 2 || cfg.Extensions[0] != ".go" {
		t.Errorf("Extensions = %v", cfg.Extensions)
	}
	if !cfg.SkipVendor {
		t.Error("SkipVendor should be true")
	}
	if cfg.ParseAttempts() != 3 {
		t.Errorf("ParseAttempts() = %d, want 3", cfg.ParseAttempts())
	}
	d, err := cfg.TimeoutDuration()
	if err != nil || d != 10*time.Minute {
		t.Errorf("TimeoutDuration() = %v, %v", d, err)
	}
	if cfg.Log.MaxSizeMB != 50 {
		t.Errorf("Log.MaxSizeMB = %d, want 50", cfg.Log.MaxSizeMB)
	}
	if cfg.Log.MaxBackups != DefaultLogMaxBackups {
		t.Errorf("Log.MaxBackups = %d, want default %d", cfg.Log.MaxBackups, DefaultLogMaxBackups)
	}
	if errs := Validate(cfg); len(errs) != 0 {
		t.Errorf("Validate() = %v, want none", errs)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), ProjectFileName, "model: mistral\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.OllamaURL != DefaultOllamaURL {
		t.Errorf("OllamaURL = %q, want default", cfg.OllamaURL)
	}
	if len(cfg.Extensions) != 7 {
		t.Errorf("Extensions = %v, want the 7 defaults", cfg.Extensions)
	}
	if cfg.ParseAttempts() != DefaultMaxParseAttempts {
		t.Errorf("ParseAttempts() = %d, want %d", cfg.ParseAttempts(), DefaultMaxParseAttempts)
	}
	if d, _ := cfg.TimeoutDuration(); d != 0 {
		t.Errorf("TimeoutDuration() = %v, want 0", d)
	}
	if !strings.HasSuffix(cfg.Log.File, filepath.Join("logs", "bistr.log")) {
		t.Errorf("Log.File = %q", cfg.Log.File)
	}
}

func TestLoadExplicitZeroAttemptsIsUnbounded(t *testing.T) {
	path := writeConfig(t, t.TempDir(), ProjectFileName, "max_parse_attempts: 0\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.ParseAttempts() != 0 {
		t.Errorf("ParseAttempts() = %d, want 0", cfg.ParseAttempts())
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, t.TempDir(), ProjectFileName, "model: [unclosed\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestLoadDefaultPrefersProjectFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	target := t.TempDir()
	writeConfig(t, target, ProjectFileName, "model: from-project\n")
	writeConfig(t, HomeDir(), "config.yaml", "model: from-home\n")

	cfg, path, err := LoadDefault(target)
	if err != nil {
		t.Fatalf("LoadDefault() error: %v", err)
	}
	if cfg.Model != "from-project" {
		t.Errorf("Model = %q, want from-project", cfg.Model)
	}
	if path != filepath.Join(target, ProjectFileName) {
		t.Errorf("path = %q", path)
	}
}

func TestLoadDefaultFallsBackToHome(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	writeConfig(t, HomeDir(), "config.yaml", "model: from-home\n")

	cfg, _, err := LoadDefault(t.TempDir())
	if err != nil {
		t.Fatalf("LoadDefault() error: %v", err)
	}
	if cfg.Model != "from-home" {
		t.Errorf("Model = %q, want from-home", cfg.Model)
	}
}

func TestLoadDefaultNoFiles(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, path, err := LoadDefault(t.TempDir())
	if err != nil {
		t.Fatalf("LoadDefault() error: %v", err)
	}
	if path != "" {
		t.Errorf("path = %q, want empty", path)
	}
	if cfg.ParseAttempts() != DefaultMaxParseAttempts {
		t.Error("defaults not applied")
	}
}

func TestValidate(t *testing.T) {
	neg := -1
	tests := []struct {
		name  string
		cfg   Config
		field string
	}{
		{"bad url", Config{OllamaURL: "not a url"}, "ollama_url"},
		{"bad timeout", Config{Timeout: "soon"}, "timeout"},
		{"negative attempts", Config{MaxParseAttempts: &neg}, "max_parse_attempts"},
		{"empty extension", Config{Extensions: []string{".go", ""}}, "extensions[1]"},
		{"path extension", Config{Extensions: []string{"src/.go"}}, "extensions[0]"},
		{"summary without question", Config{Summary: "out.html"}, "question"},
		{"negative log size", Config{Log: LogConfig{MaxSizeMB: -5}}, "log.max_size_mb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := Validate(&tt.cfg)
			if len(errs) == 0 {
				t.Fatal("expected validation errors")
			}
			found := false
			for _, e := range errs {
				if e.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("no error for field %q, got %v", tt.field, errs)
			}
		})
	}
}

func TestValidationErrorString(t *testing.T) {
	e := ValidationError{Field: "timeout", Message: "is not a valid duration"}
	if e.Error() != "timeout: is not a valid duration" {
		t.Errorf("Error() = %q", e.Error())
	}
}
