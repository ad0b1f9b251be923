package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Jwl06/civicledger360/models"
	"github.com/Jwl06/civicledger360/reconcile"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// errDivergent makes the command exit non-zero without extra output.
var errDivergent = errors.New("backend and chain records diverge")

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Compare backend and chain records",
	Long: `List every violation from both stores and report records missing on one
side or disagreeing on status or fine. Exits non-zero when anything differs.
Requires --rpc and --contract.`,
	Args: cobra.NoArgs,
	RunE: runReconcile,
}

func runReconcile(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	cc, err := chainClient(ctx)
	if err != nil {
		return err
	}
	if cc == nil {
		return fmt.Errorf("reconcile needs --rpc and --contract")
	}
	defer cc.Close()

	var backendList, chainList []models.Violation
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		backendList, err = backendClient().ListAll(gctx, "")
		return err
	})
	g.Go(func() error {
		var err error
		chainList, err = cc.ListAll(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	report := reconcile.Diff(backendList, chainList)
	if jsonOutput {
		if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
			return err
		}
	} else {
		printReport(cmd.OutOrStdout(), len(backendList), len(chainList), report)
	}
	if report.Divergent() {
		return errDivergent
	}
	return nil
}

func printReport(w io.Writer, backendCount, chainCount int, r reconcile.Report) {
	fmt.Fprintf(w, "backend: %d records, chain: %d records\n", backendCount, chainCount)
	if !r.Divergent() {
		fmt.Fprintln(w, "in sync")
		return
	}
	if len(r.OnlyBackend) > 0 {
		fmt.Fprintf(w, "only in backend: %v\n", r.OnlyBackend)
	}
	if len(r.OnlyChain) > 0 {
		fmt.Fprintf(w, "only on chain:   %v\n", r.OnlyChain)
	}
	for _, m := range r.StatusMismatch {
		fmt.Fprintf(w, "#%d status: backend %s, chain %s\n", m.ID, m.Backend.Status, m.Chain.Status)
	}
	for _, m := range r.FineMismatch {
		fmt.Fprintf(w, "#%d fine: backend %s, chain %s\n", m.ID, m.Backend.FineAmount, m.Chain.FineAmount)
	}
}
