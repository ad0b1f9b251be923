package main

import (
	"context"
	"fmt"

	"github.com/Jwl06/civicledger360/reconcile"
	"github.com/spf13/cobra"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Show the merged review queue",
	Long: `Fetch pending violations from the backend and, when configured, the chain.
Records present in both are shown once with the backend copy.`,
	Args: cobra.NoArgs,
	RunE: runQueue,
}

func runQueue(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	var chainSource reconcile.PendingSource
	sources := 1
	cc, err := chainClient(ctx)
	if err != nil {
		return err
	}
	if cc != nil {
		defer cc.Close()
		chainSource = cc
		sources++
	}

	poller := reconcile.NewPoller(backendClient(), chainSource, 0, timeout, logger)
	defer poller.Stop()
	snap, _ := poller.Refresh(ctx)
	for source, msg := range snap.Errors {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s unavailable: %s\n", source, msg)
	}
	if len(snap.Errors) == sources {
		return fmt.Errorf("no source could be read")
	}

	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), snap)
	}
	if err := writeViolations(cmd.OutOrStdout(), snap.Violations); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\n%d pending (backend %d, chain %d)\n",
		len(snap.Violations), snap.BackendCount, snap.ChainCount)
	return nil
}
