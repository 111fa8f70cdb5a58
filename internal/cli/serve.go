package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lucasnoah/bistr/internal/db"
	"github.com/lucasnoah/bistr/internal/logging"
	"github.com/lucasnoah/bistr/internal/pipeline"
	"github.com/lucasnoah/bistr/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a read-only dashboard of saved progress and run history",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := resolveConfig(cmd, "")
		if err != nil {
			return err
		}
		addr, _ := cmd.Flags().GetString("addr")

		logger, closeLog := logging.New(logging.Options{
			File:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
			Verbose:    verbose,
			Console:    cmd.ErrOrStderr(),
		})
		defer closeLog()

		statePath := cfg.StateFile
		if statePath == "" {
			statePath = pipeline.DefaultPath()
		}

		var database *db.DB
		if _, err := os.Stat(cfg.EventLog); err == nil {
			database, err = db.Open(cfg.EventLog)
			if err != nil {
				return err
			}
			defer database.Close()
			if err := database.Migrate(); err != nil {
				return err
			}
		} else {
			logger.Info("no run history", zap.String("path", cfg.EventLog))
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Fprintf(cmd.OutOrStdout(), "Dashboard on http://%s\n", displayAddr(addr))
		return web.NewServer(pipeline.NewStore(statePath), database, cfg.OutputDir, addr, logger).Start(ctx)
	},
}

func displayAddr(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}

func init() {
	serveCmd.Flags().String("addr", ":8420", "listen address")
	serveCmd.Flags().String("output-dir", "", "report directory to serve under /reports/")
	serveCmd.Flags().String("state-file", "", "state file (default $TMPDIR/source_code_analysis_state.json)")
	serveCmd.Flags().String("event-log", "", "SQLite run history (default ~/.bistr/bistr.db)")
	serveCmd.Flags().String("log-file", "", "log file (default ~/.bistr/logs/bistr.log)")
}
