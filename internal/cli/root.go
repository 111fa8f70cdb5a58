package cli

import (
	"errors"
	"os"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "dev"

func SetVersion(v string) {
	version = v
}

var (
	verbose bool
	noColor bool
)

var rootCmd = &cobra.Command{
	Use:   "bistr",
	Short: "bistr — resumable source code analysis with a local LLM",
	Long: `bistr walks a source tree and feeds every file, in order, to an Ollama model
while carrying the model's conversation context from one file to the next.
Progress is saved after every file, so an interrupted batch resumes where it
stopped. When the batch is done you can ask questions about the codebase.

Saved progress lives in the system temp directory; run history, logs and
configuration live in ~/.bistr/.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		if noColor {
			color.NoColor = true
		}
		return nil
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "also write diagnostic logs to stderr")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(analyticsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(serveCmd)
}
