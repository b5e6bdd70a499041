package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/hyperjump/kensaku/internal/cli"
)

var (
	flagStatsServer string
	flagStatsOutput string
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show chunk count, last index times and disk usage",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().StringVar(&flagStatsServer, "server", "", "server URL (empty = open the collection directly)")
	statsCmd.Flags().StringVar(&flagStatsOutput, "output", "text", "output format: text or json")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(flagStatsOutput)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	var view *cli.StatsView
	if flagStatsServer != "" {
		view, err = cli.NewClient(flagStatsServer).Stats(ctx)
		if err != nil {
			return err
		}
	} else {
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
		stats, err := components.Lifecycle.Stats(ctx)
		if err != nil {
			return err
		}
		view = &cli.StatsView{Stats: stats}
	}
	return cli.WriteStats(os.Stdout, view, format)
}
