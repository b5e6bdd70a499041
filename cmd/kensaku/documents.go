package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/hyperjump/kensaku/internal/cli"
	"github.com/hyperjump/kensaku/internal/models"
)

var (
	flagDocumentsServer string
	flagDocumentsOutput string
)

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "List the indexed documents",
	Args:  cobra.NoArgs,
	RunE:  runDocuments,
}

func init() {
	documentsCmd.Flags().StringVar(&flagDocumentsServer, "server", "", "server URL (empty = open the collection directly)")
	documentsCmd.Flags().StringVar(&flagDocumentsOutput, "output", "text", "output format: text or json")
	rootCmd.AddCommand(documentsCmd)
}

func runDocuments(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(flagDocumentsOutput)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	var docs []models.SourceDocument
	if flagDocumentsServer != "" {
		docs, err = cli.NewClient(flagDocumentsServer).Documents(ctx)
	} else {
		cfg, logger, setupErr := setup()
		if setupErr != nil {
			return setupErr
		}
		defer logger.Sync()
		components, initErr := initializeComponents(ctx, cfg, logger)
		if initErr != nil {
			return initErr
		}
		defer components.Close()
		docs, err = components.Index.Sources(ctx)
	}
	if err != nil {
		return err
	}
	return cli.WriteDocuments(os.Stdout, docs, format)
}
