package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/lucasnoah/bistr/internal/db"
)

// sqliteTimestamp is the layout of datetime('now').
const sqliteTimestamp = "2006-01-02 15:04:05"

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent analysis runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, ok, err := openHistory(cmd)
		if err != nil || !ok {
			return err
		}
		defer d.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := d.RecentRuns(limit)
		if err != nil {
			return err
		}

		format, _ := cmd.Flags().GetString("format")
		if format == "json" {
			data, _ := json.MarshalIndent(runs, "", "  ")
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		}

		if len(runs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
			return nil
		}

		tbl := newTable(cmd)
		tbl.AppendHeader(table.Row{"RUN", "DIRECTORY", "MODEL", "MODE", "STATUS", "STEPS", "STARTED"})
		for _, r := range runs {
			mode := r.Mode
			if r.Resumed {
				mode += " (resumed)"
			}
			tbl.AppendRow(table.Row{
				shortID(r.ID),
				r.Target,
				r.Model,
				mode,
				r.Status,
				fmt.Sprintf("%d/%d", r.Steps, r.TotalFiles),
				humanTime(r.StartedAt, sqliteTimestamp),
			})
		}
		tbl.Render()
		return nil
	},
}

// openHistory opens the event log named by the resolved config. ok is false
// (with a message printed) when no history has been recorded yet.
func openHistory(cmd *cobra.Command) (*db.DB, bool, error) {
	cfg, _, err := resolveConfig(cmd, "")
	if err != nil {
		return nil, false, err
	}
	if _, err := os.Stat(cfg.EventLog); os.IsNotExist(err) {
		fmt.Fprintf(cmd.OutOrStdout(), "No run history at %s.\n", cfg.EventLog)
		return nil, false, nil
	}
	d, err := db.Open(cfg.EventLog)
	if err != nil {
		return nil, false, err
	}
	if err := d.Migrate(); err != nil {
		d.Close()
		return nil, false, err
	}
	return d, true, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	historyCmd.Flags().Int("limit", 20, "Maximum number of runs to show")
	historyCmd.Flags().String("format", "text", "Output format: text or json")
	historyCmd.Flags().String("event-log", "", "SQLite run history (default ~/.bistr/bistr.db)")
}
