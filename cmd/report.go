package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/quotagen/internal/report"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show the reports of recent runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		raw, _ := cmd.Flags().GetBool("json")

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		reports, err := st.EventRepo().LatestRunReports(cmd.Context(), limit)
		if err != nil {
			return fmt.Errorf("query run reports: %w", err)
		}
		if len(reports) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded yet.")
			return nil
		}

		out := cmd.OutOrStdout()
		for _, rr := range reports {
			if raw {
				fmt.Fprintln(out, string(rr.Body))
				continue
			}
			var r report.Report
			if err := json.Unmarshal(rr.Body, &r); err != nil {
				return fmt.Errorf("decode report %s: %w", rr.RunID, err)
			}
			if err := report.Render(out, r); err != nil {
				return err
			}
			fmt.Fprintln(out)
		}
		return nil
	},
}

func init() {
	reportCmd.Flags().IntP("limit", "n", 1, "Number of runs to show")
	reportCmd.Flags().Bool("json", false, "Print the stored JSON instead of rendering it")
}
