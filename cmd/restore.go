package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"backy/internal/config"
	"backy/internal/dialect"
	"backy/internal/orchestrator"
)

var restoreFlags struct {
	configPath        string
	host              string
	port              int
	user              string
	password          string
	database          string
	mode              string
	conflictPolicy    string
	keystorePassword  string
	integrityPassword string
	features          []string
}

var restoreCmd = &cobra.Command{
	Use:   "restore <sidecar-remote-key>",
	Short: "Restore a MySQL database from a previously uploaded backup",
	Args:  cobra.ExactArgs(1),
	RunE:  runRestore,
}

func init() {
	rootCmd.AddCommand(restoreCmd)

	f := restoreCmd.Flags()
	f.StringVarP(&restoreFlags.configPath, "config", "c", "", "path to backy.yaml (searches . and $HOME if empty)")
	f.StringVar(&restoreFlags.host, "host", "", "database host (overrides config)")
	f.IntVar(&restoreFlags.port, "port", 0, "database port (overrides config)")
	f.StringVar(&restoreFlags.user, "user", "", "database user (overrides config)")
	f.StringVar(&restoreFlags.password, "password", "", "database password (overrides config)")
	f.StringVar(&restoreFlags.database, "database", "", "database name (overrides config)")
	f.StringVar(&restoreFlags.mode, "mode", "", "restore mode: file, statement or backy (overrides config)")
	f.StringVar(&restoreFlags.conflictPolicy, "conflict-policy", "", "conflict policy: skip or abort (overrides config)")
	f.StringVar(&restoreFlags.keystorePassword, "keystore-password", "", "keystore password to unwrap the backup's encryption key")
	f.StringVar(&restoreFlags.integrityPassword, "integrity-password", "", "password for a keyed-MAC integrity manifest")
	f.StringSliceVar(&restoreFlags.features, "features", nil, "comma-separated feature tags to replay (default: all)")
}

func runRestore(cmd *cobra.Command, args []string) error {
	sidecarRemoteKey := args[0]

	cfg, err := config.LoadRestoreConfig(restoreFlags.configPath)
	if err != nil {
		return err
	}
	applyRestoreOverrides(cmd, cfg)

	logger := newLogger()
	start := time.Now()

	result, err := orchestrator.RunRestore(context.Background(), *cfg, sidecarRemoteKey, logger)
	if err != nil {
		color.Red("restore failed: %v", err)
		return err
	}

	color.Green("restore %s complete in %s", result.Sidecar.Backup.ID, time.Since(start).Round(time.Millisecond))
	fmt.Printf("  executed: %d\n", result.StatementsExecuted)
	fmt.Printf("  skipped:  %d\n", result.StatementsSkipped)
	return nil
}

func applyRestoreOverrides(cmd *cobra.Command, cfg *config.RestoreConfig) {
	f := cmd.Flags()
	if f.Changed("host") {
		cfg.Database.Host = restoreFlags.host
	}
	if f.Changed("port") {
		cfg.Database.Port = restoreFlags.port
	}
	if f.Changed("user") {
		cfg.Database.User = restoreFlags.user
	}
	if f.Changed("password") {
		cfg.Database.Password = restoreFlags.password
	}
	if f.Changed("database") {
		cfg.Database.Database = restoreFlags.database
	}
	if f.Changed("mode") {
		cfg.Mode = config.RestoreMode(restoreFlags.mode)
	}
	if f.Changed("conflict-policy") {
		cfg.ConflictPolicy = config.ConflictPolicy(restoreFlags.conflictPolicy)
	}
	if f.Changed("keystore-password") {
		cfg.KeystorePassword = restoreFlags.keystorePassword
	}
	if f.Changed("integrity-password") {
		cfg.IntegrityPassword = restoreFlags.integrityPassword
	}
	if f.Changed("features") {
		tags := make([]dialect.FeatureTag, len(restoreFlags.features))
		for i, ft := range restoreFlags.features {
			tags[i] = dialect.FeatureTag(strings.TrimSpace(ft))
		}
		cfg.EnabledFeatures = tags
	}
}
