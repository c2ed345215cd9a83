package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report [egs-id...]",
	Short: "Resubmit invoices the platform has not accepted",
	Long: `Resubmit, in counter order, every recorded invoice of the given devices
that was never accepted by the platform. Submission stops at the first
failure of a device so the platform sees its chain in order.

Examples:
  zatca report 6f4d20e0-6bfe-4a80-9389-7dabe6620f12 --db chain.db --env simulation`,
	Args: cobra.MinimumNArgs(1),
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	issueReport = true
	pipeline, st, err := newPipeline()
	if err != nil {
		return err
	}
	defer st.Close()

	failed := false
	for _, egsID := range args {
		sent, err := pipeline.ReportPending(cmd.Context(), egsID)
		if err != nil {
			fmt.Printf("✗ %s: %d submitted, %v\n", egsID, sent, err)
			failed = true
			continue
		}
		fmt.Printf("✓ %s: %d submitted\n", egsID, sent)
	}
	if failed {
		return fmt.Errorf("some invoices could not be submitted")
	}
	return nil
}
