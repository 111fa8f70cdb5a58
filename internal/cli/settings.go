package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/lucasnoah/bistr/internal/config"
)

// envPrefix is the environment variable prefix for bistr settings.
const envPrefix = "BISTR"

// settingKeys are the flag names that may override the project config, and
// the environment variable each one is read from (BISTR_<NAME>).
var settingKeys = []string{
	"model",
	"ollama-url",
	"timeout",
	"extensions",
	"skip-vendor",
	"max-parse-attempts",
	"state-file",
	"output-dir",
	"summary",
	"question",
	"event-log",
	"metrics-file",
	"log-file",
}

// newViper binds the command's flags and the BISTR_* environment. OLLAMA_HOST
// is honored as a fallback for the service URL.
func newViper(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var bindErr error
	bind := func(f *pflag.Flag) {
		if err := v.BindPFlag(f.Name, f); err != nil && bindErr == nil {
			bindErr = err
		}
	}
	cmd.Flags().VisitAll(bind)
	cmd.InheritedFlags().VisitAll(bind)
	if bindErr != nil {
		return nil, fmt.Errorf("bind flags: %w", bindErr)
	}
	if err := v.BindEnv("ollama-url", envPrefix+"_OLLAMA_URL", "OLLAMA_HOST"); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}
	return v, nil
}

// resolveConfig loads the config for targetDir (or the file named by
// --config) and overlays every setting given as a flag or in the environment.
// Precedence: flag > env > config file > built-in default.
func resolveConfig(cmd *cobra.Command, targetDir string) (*config.Config, string, error) {
	var (
		cfg  *config.Config
		path string
		err  error
	)
	if f, _ := cmd.Flags().GetString("config"); f != "" {
		cfg, err = config.Load(f)
		path = f
	} else {
		cfg, path, err = config.LoadDefault(targetDir)
	}
	if err != nil {
		return nil, "", err
	}

	v, err := newViper(cmd)
	if err != nil {
		return nil, "", err
	}
	overlay(cfg, v)
	return cfg, path, nil
}

func overlay(cfg *config.Config, v *viper.Viper) {
	for _, key := range settingKeys {
		if !v.IsSet(key) {
			continue
		}
		switch key {
		case "model":
			cfg.Model = v.GetString(key)
		case "ollama-url":
			cfg.OllamaURL = normalizeURL(v.GetString(key))
		case "timeout":
			cfg.Timeout = v.GetString(key)
		case "extensions":
			cfg.Extensions = splitList(v.GetStringSlice(key))
		case "skip-vendor":
			cfg.SkipVendor = v.GetBool(key)
		case "max-parse-attempts":
			n := v.GetInt(key)
			cfg.MaxParseAttempts = &n
		case "state-file":
			cfg.StateFile = v.GetString(key)
		case "output-dir":
			cfg.OutputDir = v.GetString(key)
		case "summary":
			cfg.Summary = v.GetString(key)
		case "question":
			cfg.Question = v.GetString(key)
		case "event-log":
			cfg.EventLog = v.GetString(key)
		case "metrics-file":
			cfg.MetricsFile = v.GetString(key)
		case "log-file":
			cfg.Log.File = v.GetString(key)
		}
	}
}

// normalizeURL accepts OLLAMA_HOST style values such as "gpu-box:11434".
func normalizeURL(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || strings.Contains(s, "://") {
		return s
	}
	return "http://" + s
}

// splitList flattens comma separated entries so ".go,.py" and ".go .py" both work.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.FieldsFunc(item, func(r rune) bool { return r == ',' || r == ' ' }) {
			out = append(out, part)
		}
	}
	return out
}

// addSettingFlags registers the overridable settings on cmd. Defaults are
// empty: an unset flag never shadows the config file.
func addSettingFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("config", "", "config file (default <dir>/.bistr.yaml, then ~/.bistr/config.yaml)")
	f.StringP("model", "m", "", "model to analyze with (required)")
	f.String("ollama-url", "", "Ollama base URL (default http://localhost:11434)")
	f.String("timeout", "", "per-request timeout, e.g. 10m (default none)")
	f.StringSliceP("extensions", "e", nil, "file extensions to analyze; repeat the flag or separate with commas, e.g. -e .go -e .py or -e .go,.py (default .py,.cpp,.h,.java,.js,.html,.css)")
	f.Bool("skip-vendor", false, "skip vendored and generated directories")
	f.Int("max-parse-attempts", config.DefaultMaxParseAttempts, "calls per file before a structured response is skipped (0 = unlimited)")
	f.String("state-file", "", "state file (default $TMPDIR/source_code_analysis_state.json)")
	f.StringP("output-dir", "o", "", "write one HTML document per analyzed file plus an index here")
	f.String("summary", "", "write a relevance summary table to this HTML file")
	f.StringP("question", "q", "", "research question; each file is scored 0-100 for relevance")
	f.String("event-log", "", "SQLite run history (default ~/.bistr/bistr.db)")
	f.String("metrics-file", "", "write Prometheus metrics to this textfile after every file")
	f.String("log-file", "", "diagnostic log file (default ~/.bistr/logs/bistr.log)")
}
