package cli

import (
	"encoding/json"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/lucasnoah/bistr/internal/analytics"
)

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Query analysis performance from the run history",
}

var analyticsDurationsCmd = &cobra.Command{
	Use:   "durations",
	Short: "Average and percentile step durations per model",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, ok, err := openHistory(cmd)
		if err != nil || !ok {
			return err
		}
		defer d.Close()

		since, _ := cmd.Flags().GetString("since")
		results, err := analytics.QueryModelDurations(d, since)
		if err != nil {
			return err
		}
		if asJSON(cmd, results) {
			return nil
		}

		tbl := newTable(cmd)
		tbl.AppendHeader(table.Row{"MODEL", "STEPS", "AVG (s)", "P50 (s)", "P95 (s)"})
		for _, r := range results {
			tbl.AppendRow(table.Row{r.Model, r.Count, r.Avg, r.P50, r.P95})
		}
		tbl.Render()
		return nil
	},
}

var analyticsOutcomesCmd = &cobra.Command{
	Use:   "outcomes",
	Short: "How often structured responses parsed, per model",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, ok, err := openHistory(cmd)
		if err != nil || !ok {
			return err
		}
		defer d.Close()

		since, _ := cmd.Flags().GetString("since")
		results, err := analytics.QueryOutcomeRates(d, since)
		if err != nil {
			return err
		}
		if asJSON(cmd, results) {
			return nil
		}

		tbl := newTable(cmd)
		tbl.AppendHeader(table.Row{"MODEL", "STEPS", "ANALYZED %", "UNPARSEABLE %", "AVG ATTEMPTS"})
		for _, r := range results {
			tbl.AppendRow(table.Row{r.Model, r.Total, r.Analyzed, r.Unparseable, r.AvgAttempts})
		}
		tbl.Render()
		return nil
	},
}

func asJSON(cmd *cobra.Command, v any) bool {
	format, _ := cmd.Flags().GetString("format")
	if format != "json" {
		return false
	}
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return true
}

func init() {
	analyticsCmd.PersistentFlags().String("since", "", "only count steps at or after this time (YYYY-MM-DD [HH:MM:SS])")
	analyticsCmd.PersistentFlags().String("format", "text", "Output format: text or json")
	analyticsCmd.PersistentFlags().String("event-log", "", "SQLite run history (default ~/.bistr/bistr.db)")
	analyticsCmd.AddCommand(analyticsDurationsCmd)
	analyticsCmd.AddCommand(analyticsOutcomesCmd)
}
