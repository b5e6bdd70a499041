package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/kensaku/internal/config"
	"github.com/hyperjump/kensaku/pkg/utils"
)

const defaultConfigPath = "/usr/local/etc/kensaku/config.yaml"

var (
	flagConfig string
	flagDebug  bool
)

var rootCmd = &cobra.Command{
	Use:           "kensaku",
	Short:         "Local retrieval service for internal and external document collections",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", defaultConfigPath, "config file path")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
}

// loadConfig loads config from path. When path is the default, config.yaml in the current
// directory wins if present, and a missing default file falls back to built-in defaults.
// Returns the config and the path that was actually loaded ("" for defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, err := os.Stat(fallback); err == nil {
				cfg, err := config.Load(fallback)
				return cfg, fallback, err
			}
		}
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			return config.Default(), "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// setup loads and validates the configuration and builds the logger.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, loadedFrom, err := loadConfig(flagConfig)
	if err != nil {
		return nil, nil, err
	}
	if err := config.ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, nil, fmt.Errorf("environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	debug := cfg.Debug || flagDebug
	logger, err := utils.NewLogger(debug)
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}
	if loadedFrom == "" {
		loadedFrom = "(defaults)"
	}
	logger.Debug("config loaded", zap.String("config_path", loadedFrom), zap.Bool("debug", debug))
	return cfg, logger, nil
}
