// Command civicctl inspects and seeds a running violation backend.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Jwl06/civicledger360/chain"
	"github.com/Jwl06/civicledger360/client"
	"github.com/Jwl06/civicledger360/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	apiURL          string
	rpcURL          string
	contractAddress string
	timeout         time.Duration
	verbose         bool
	jsonOutput      bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "civicctl",
	Short: "Operate the civic violation ledger",
	Long: `civicctl talks to the violation REST API and, when --rpc and --contract are
set, to the on-chain violation registry.

  queue      show the merged review queue
  reconcile  compare backend and chain records
  stats      print aggregate statistics
  seed       submit sample reports`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := "warn"
		if verbose {
			level = "debug"
		}
		logger = logging.New(logging.Options{Level: level})
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	defaultAPI := os.Getenv("CIVIC_API_URL")
	if defaultAPI == "" {
		defaultAPI = "http://localhost:3001"
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api", defaultAPI, "Backend base URL (or set CIVIC_API_URL)")
	rootCmd.PersistentFlags().StringVar(&rpcURL, "rpc", os.Getenv("CHAIN_RPC_URL"), "Ethereum JSON-RPC endpoint")
	rootCmd.PersistentFlags().StringVar(&contractAddress, "contract", os.Getenv("VIOLATION_CONTRACT_ADDRESS"), "Violation registry contract address")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", time.Minute, "Operation timeout")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print JSON instead of a table")

	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(seedCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func backendClient() *client.Client {
	return client.New(apiURL)
}

// chainClient returns nil when no chain is configured.
func chainClient(ctx context.Context) (*chain.Client, error) {
	if rpcURL == "" || contractAddress == "" {
		return nil, nil
	}
	return chain.Dial(ctx, chain.Config{
		RPCURL:          rpcURL,
		ContractAddress: contractAddress,
	}, logger)
}
