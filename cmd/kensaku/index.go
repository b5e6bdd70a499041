package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyperjump/kensaku/internal/config"
	"github.com/hyperjump/kensaku/internal/indexer"
	"github.com/hyperjump/kensaku/internal/models"
)

var (
	flagIndexCategory string
	flagIndexForce    bool
)

var indexCmd = &cobra.Command{
	Use:   "index <file-or-directory>",
	Short: "Ingest a file or directory into the collection",
	Long: `Ingest a file or directory into the collection.

The category defaults to the configured root that contains the path.
Unchanged files are skipped unless --force is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().StringVar(&flagIndexCategory, "category", "", "internal or external (default: inferred from the configured roots)")
	indexCmd.Flags().BoolVar(&flagIndexForce, "force", false, "re-ingest even when the file is unchanged")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	path, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat path: %w", err)
	}

	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	category, err := resolveCategory(cfg, path, flagIndexCategory)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer components.Close()

	var exts []string
	if info.IsDir() {
		exts = cfg.Sources.Extensions
	}
	var opts []indexer.EventOption
	if flagIndexForce {
		opts = append(opts, indexer.Force())
	}
	start := time.Now()
	sum, err := components.Coordinator.IndexPath(ctx, path, category, exts, opts...)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}
	fmt.Printf("Processed %d file(s) from %s in %s\n", sum.Total(), path, time.Since(start).Round(time.Millisecond))
	fmt.Printf("  indexed: %d  skipped: %d  cleared: %d  failed: %d\n", sum.Indexed, sum.Skipped, sum.Cleared, sum.Failed)
	return nil
}

// resolveCategory returns the explicit category, or the category of the configured root containing path.
func resolveCategory(cfg *config.Config, path, explicit string) (models.Category, error) {
	if explicit != "" {
		cat, err := models.ParseCategory(explicit)
		if err != nil {
			return models.CategoryAny, err
		}
		if !cat.Valid() {
			return models.CategoryAny, fmt.Errorf("category must be internal or external")
		}
		return cat, nil
	}
	for name, root := range cfg.Roots() {
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		return models.ParseCategory(name)
	}
	return models.CategoryAny, fmt.Errorf("%s is outside the configured roots; pass --category", path)
}
