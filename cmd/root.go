// Package cmd wires Backy's subcommands together: a thin cobra+viper shell
// over internal/config and internal/orchestrator, grounded on the teacher's
// cmd/root.go flag-binding and initConfig idiom.
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"backy/internal/logging"
)

var (
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "backy",
	Short: "A logical backup and restore engine for MySQL",
	Long: `Backy extracts a MySQL database's tables, data, views, functions,
procedures, triggers and events into a portable chunked container, optionally
compressing, encrypting and integrity-sealing the result before uploading it
to local disk, S3, Azure Blob or GCS. Restore reverses whatever the bundle's
own metadata sidecar says it went through, independent of how the restore
side happens to be configured.

Examples:
  # Back up a database to local disk
  backy backup --config backy.yaml

  # Restore a previously uploaded bundle
  backy restore --config backy.yaml 4f9c9b0a-1f2e-4d3c-9a1b-6e7f8a9b0c1d-shop_20260304_150607_metadata.backy.json`,
}

// Execute runs the root command. Called once from main.main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: quiet, info, verbose, debug")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text or json")
}

// newLogger builds the logger every subcommand passes to the orchestrator,
// honoring the global --log-level/--log-format flags.
func newLogger() *logging.Logger {
	level := logging.Normal
	switch logLevel {
	case "quiet":
		level = logging.Quiet
	case "verbose":
		level = logging.Verbose
	case "debug":
		level = logging.Debug
	}
	return logging.New(logging.Config{
		Level:  level,
		Format: logFormat,
		Output: os.Stderr,
	})
}
