package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/lucasnoah/bistr/internal/pipeline"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show saved progress for every analyzed directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := resolveConfig(cmd, "")
		if err != nil {
			return err
		}
		path := cfg.StateFile
		if path == "" {
			path = pipeline.DefaultPath()
		}

		entries, err := pipeline.NewStore(path).List()
		if err != nil {
			return err
		}

		format, _ := cmd.Flags().GetString("format")
		if format == "json" {
			data, _ := json.MarshalIndent(entries, "", "  ")
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		}

		if len(entries) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "No saved progress in %s.\n", path)
			return nil
		}

		tbl := newTable(cmd)
		tbl.AppendHeader(table.Row{"DIRECTORY", "MODEL", "PENDING", "CONTEXT", "UPDATED"})
		for _, e := range entries {
			pending := fmt.Sprintf("%d", len(e.State.PendingFiles))
			if e.State.Done() {
				pending = "done"
			}
			tbl.AppendRow(table.Row{
				e.Key,
				e.State.Model,
				pending,
				humanize.Comma(int64(e.State.Context.Len())) + " tokens",
				humanTime(e.State.UpdatedAt, time.RFC3339),
			})
		}
		tbl.AppendFooter(table.Row{fmt.Sprintf("%d directories", len(entries))})
		tbl.Render()
		return nil
	},
}

func newTable(cmd *cobra.Command) table.Writer {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(cmd.OutOrStdout())
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Options.DrawBorder = false
	return tbl
}

// humanTime renders a stored timestamp as "3 minutes ago"; unparseable
// values are shown as-is.
func humanTime(s, layout string) string {
	if s == "" {
		return "-"
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return s
	}
	return humanize.Time(t)
}

func init() {
	statusCmd.Flags().String("format", "text", "Output format: text or json")
	statusCmd.Flags().String("state-file", "", "state file (default $TMPDIR/source_code_analysis_state.json)")
}
