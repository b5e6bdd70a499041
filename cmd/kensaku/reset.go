package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hyperjump/kensaku/internal/cli"
	"github.com/hyperjump/kensaku/internal/lifecycle"
)

var (
	flagResetMode   string
	flagResetServer string
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Re-ingest every source (soft) or rebuild the collection from scratch (hard)",
	Example: `  kensaku reset --mode soft
  kensaku reset --mode hard --server http://localhost:8080`,
	Args: cobra.NoArgs,
	RunE: runReset,
}

func init() {
	resetCmd.Flags().StringVar(&flagResetMode, "mode", "soft", "soft or hard")
	resetCmd.Flags().StringVar(&flagResetServer, "server", "", "server URL (empty = run the reset in this process)")
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
	mode, err := lifecycle.ParseMode(flagResetMode)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if flagResetServer != "" {
		if err := cli.NewClient(flagResetServer).Reset(ctx, mode); err != nil {
			return err
		}
		fmt.Printf("%s reset accepted; check progress with: kensaku stats --server %s\n", mode, flagResetServer)
		return nil
	}

	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()
	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer components.Close()

	sum, err := components.Lifecycle.Run(ctx, mode)
	if err != nil {
		return fmt.Errorf("%s reset failed: %w", mode, err)
	}
	fmt.Printf("%s reset finished: indexed %d, cleared %d, deleted %d, failed %d\n",
		mode, sum.Indexed, sum.Cleared, sum.Deleted, sum.Failed)
	return nil
}
