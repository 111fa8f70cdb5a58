package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/bistr/internal/db"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Run history database management",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := resolveConfig(cmd, "")
		if err != nil {
			return err
		}
		d, err := db.Open(cfg.EventLog)
		if err != nil {
			return err
		}
		defer d.Close()
		if err := d.Migrate(); err != nil {
			return err
		}
		cmd.Printf("Schema up to date at %s.\n", d.Path())
		return nil
	},
}

var dbResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete all run history (destructive!)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			return errors.New("refusing to reset without --yes")
		}
		cfg, _, err := resolveConfig(cmd, "")
		if err != nil {
			return err
		}
		d, err := db.Open(cfg.EventLog)
		if err != nil {
			return err
		}
		defer d.Close()
		if err := d.Reset(); err != nil {
			return err
		}
		cmd.Printf("Run history at %s cleared.\n", d.Path())
		return nil
	},
}

func init() {
	dbCmd.PersistentFlags().String("event-log", "", "SQLite run history (default ~/.bistr/bistr.db)")
	dbResetCmd.Flags().Bool("yes", false, "confirm deleting all run history")
	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbResetCmd)
}
