package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/Jwl06/civicledger360/models"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print aggregate violation statistics",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	stats, err := backendClient().Statistics(ctx)
	if err != nil {
		return err
	}
	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), stats)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "total\t%d\n", stats.Total)
	fmt.Fprintf(tw, "pending\t%d\n", stats.Pending)
	fmt.Fprintf(tw, "approved\t%d\n", stats.Approved)
	fmt.Fprintf(tw, "rejected\t%d\n", stats.Rejected)
	fmt.Fprintf(tw, "total fines\t%s\n", stats.TotalFines)
	fmt.Fprintf(tw, "avg confidence\t%.2f\n", stats.AverageConfidence)
	for _, t := range models.ViolationTypes() {
		fmt.Fprintf(tw, "  %s\t%d\n", t, stats.ByType[t])
	}
	return tw.Flush()
}
