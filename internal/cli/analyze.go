package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lucasnoah/bistr/internal/analysis"
	"github.com/lucasnoah/bistr/internal/config"
	"github.com/lucasnoah/bistr/internal/db"
	"github.com/lucasnoah/bistr/internal/logging"
	"github.com/lucasnoah/bistr/internal/metrics"
	"github.com/lucasnoah/bistr/internal/orchestrator"
	"github.com/lucasnoah/bistr/internal/pipeline"
	"github.com/lucasnoah/bistr/internal/report"
	"github.com/lucasnoah/bistr/internal/scan"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <dir>",
	Short: "Analyze every matching file in a directory, then answer questions",
	Long: `Analyze sends each matching file under <dir> to the model in a fixed order,
carrying the conversation context from one file to the next. Progress is saved
after every file; running the same command again offers to resume.

With --question every response must be a JSON record {"relevance", "reason"};
records are collected into the --summary table.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	target := args[0]
	cfg, cfgPath, err := resolveConfig(cmd, target)
	if err != nil {
		return err
	}
	if errs := config.Validate(cfg); len(errs) > 0 {
		for _, e := range errs {
			cmd.PrintErrf("  - %s\n", e)
		}
		return fmt.Errorf("config has %d validation error(s)", len(errs))
	}
	if cfg.Model == "" {
		return errors.New("a model is required (--model, BISTR_MODEL or model: in the config file)")
	}
	if cfg.Question != "" && cfg.Summary == "" && cfg.OutputDir == "" {
		cmd.PrintErrln("warning: --question without --summary or --output-dir; records are only printed")
	}

	resume, err := resumeMode(cmd)
	if err != nil {
		return err
	}
	timeout, err := cfg.TimeoutDuration()
	if err != nil {
		return err
	}

	logger, closeLog := logging.New(logging.Options{
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Verbose:    verbose,
		Console:    cmd.ErrOrStderr(),
	})
	defer closeLog()
	logger.Debug("config resolved", zap.String("path", cfgPath), zap.Any("config", cfg))

	key, err := pipeline.CanonicalKey(target)
	if err != nil {
		return err
	}

	statePath := cfg.StateFile
	if statePath == "" {
		statePath = pipeline.DefaultPath()
	}

	deps := orchestrator.Deps{
		Store:       pipeline.NewStore(statePath),
		Client:      analysis.NewOllamaClient(cfg.OllamaURL, timeout),
		Sink:        buildSink(cfg, key),
		MetricsFile: cfg.MetricsFile,
		Logger:      logger,
		In:          cmd.InOrStdin(),
		Out:         cmd.OutOrStdout(),
	}
	if cfg.MetricsFile != "" {
		deps.Metrics = metrics.New()
	}
	if events, closeEvents := openEventLog(cfg.EventLog, logger); events != nil {
		defer closeEvents()
		deps.Events = events
	}

	noInteractive, _ := cmd.Flags().GetBool("no-interactive")
	opts := orchestrator.Options{
		Target:           target,
		Model:            cfg.Model,
		Scan:             scan.Options{Extensions: cfg.Extensions, SkipVendor: cfg.SkipVendor},
		Question:         cfg.Question,
		Resume:           resume,
		MaxParseAttempts: cfg.ParseAttempts(),
		SkipInteractive:  noInteractive,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := orchestrator.New(deps).Run(ctx, opts)
	if err != nil {
		if res != nil && res.Completed > 0 {
			cmd.PrintErrf("%d file(s) completed before the failure; run again to resume.\n", res.Completed)
		}
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nRun %s: %d/%d file(s) analyzed", res.RunID, res.Completed, res.Total)
	if cfg.Question != "" {
		fmt.Fprintf(cmd.OutOrStdout(), ", %d scored, %d skipped", len(res.Records), len(res.Skipped))
	}
	fmt.Fprintln(cmd.OutOrStdout())
	return nil
}

func resumeMode(cmd *cobra.Command) (orchestrator.ResumeMode, error) {
	resume, _ := cmd.Flags().GetBool("resume")
	fresh, _ := cmd.Flags().GetBool("fresh")
	switch {
	case resume && fresh:
		return 0, errors.New("--resume and --fresh are mutually exclusive")
	case resume:
		return orchestrator.ResumeAlways, nil
	case fresh:
		return orchestrator.ResumeNever, nil
	}
	return orchestrator.ResumeAsk, nil
}

func buildSink(cfg *config.Config, root string) report.Sink {
	var sinks report.Multi
	if cfg.OutputDir != "" {
		sinks = append(sinks, report.NewNarrativeWriter(cfg.OutputDir, root))
	}
	if cfg.Summary != "" {
		sinks = append(sinks, report.NewSummaryWriter(cfg.Summary, cfg.Question, root))
	}
	if len(sinks) == 0 {
		return report.Nop{}
	}
	return sinks
}

// openEventLog opens the run history. It is optional: on failure a warning
// is logged and the run continues without it.
func openEventLog(path string, logger *zap.Logger) (*db.DB, func()) {
	if path == "" {
		return nil, nil
	}
	d, err := db.Open(path)
	if err != nil {
		logger.Warn("event log unavailable", zap.String("path", path), zap.Error(err))
		return nil, nil
	}
	if err := d.Migrate(); err != nil {
		d.Close()
		logger.Warn("event log migration failed", zap.String("path", path), zap.Error(err))
		return nil, nil
	}
	return d, func() { d.Close() }
}

func init() {
	addSettingFlags(analyzeCmd)
	analyzeCmd.Flags().Bool("resume", false, "resume saved progress without asking")
	analyzeCmd.Flags().Bool("fresh", false, "discard saved progress without asking")
	analyzeCmd.Flags().Bool("no-interactive", false, "exit after the batch instead of taking questions")
}
