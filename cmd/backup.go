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

var backupFlags struct {
	configPath  string
	host        string
	port        int
	user        string
	password    string
	database    string
	description string
	expiresIn   string
	multiFile   bool
	features    []string
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Back up a MySQL database",
	RunE:  runBackup,
}

func init() {
	rootCmd.AddCommand(backupCmd)

	f := backupCmd.Flags()
	f.StringVarP(&backupFlags.configPath, "config", "c", "", "path to backy.yaml (searches . and $HOME if empty)")
	f.StringVar(&backupFlags.host, "host", "", "database host (overrides config)")
	f.IntVar(&backupFlags.port, "port", 0, "database port (overrides config)")
	f.StringVar(&backupFlags.user, "user", "", "database user (overrides config)")
	f.StringVar(&backupFlags.password, "password", "", "database password (overrides config)")
	f.StringVar(&backupFlags.database, "database", "", "database name (overrides config)")
	f.StringVar(&backupFlags.description, "description", "", "free-text description stored in the backup's metadata sidecar")
	f.StringVar(&backupFlags.expiresIn, "expires-in", "", "duration after which the backup is considered expired, e.g. 720h")
	f.BoolVar(&backupFlags.multiFile, "multi-file", false, "emit one container file per feature instead of one combined file")
	f.StringSliceVar(&backupFlags.features, "features", nil, "comma-separated feature tags to back up (default: full)")
}

func runBackup(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadBackupConfig(backupFlags.configPath)
	if err != nil {
		return err
	}
	applyBackupOverrides(cmd, cfg)

	logger := newLogger()
	start := time.Now()

	result, err := orchestrator.RunBackup(context.Background(), *cfg, logger)
	if err != nil {
		color.Red("backup failed: %v", err)
		return err
	}

	color.Green("backup %s complete in %s", result.BackupID, time.Since(start).Round(time.Millisecond))
	fmt.Printf("  files:    %s\n", strings.Join(result.Sidecar.Backup.Files, ", "))
	fmt.Printf("  size:     %d bytes\n", result.Sidecar.Backup.TotalBytes)
	fmt.Printf("  sidecar:  %s\n", result.SidecarRemoteKey)
	return nil
}

// applyBackupOverrides merges explicitly-set CLI flags on top of a loaded
// config, mirroring the teacher's cmd.Flags().Changed-gated override
// pattern in buildConfig so an unset flag never clobbers a config value.
func applyBackupOverrides(cmd *cobra.Command, cfg *config.BackupConfig) {
	f := cmd.Flags()
	if f.Changed("host") {
		cfg.Database.Host = backupFlags.host
	}
	if f.Changed("port") {
		cfg.Database.Port = backupFlags.port
	}
	if f.Changed("user") {
		cfg.Database.User = backupFlags.user
	}
	if f.Changed("password") {
		cfg.Database.Password = backupFlags.password
	}
	if f.Changed("database") {
		cfg.Database.Database = backupFlags.database
	}
	if f.Changed("description") {
		cfg.Description = backupFlags.description
	}
	if f.Changed("expires-in") {
		cfg.ExpiresIn = backupFlags.expiresIn
	}
	if f.Changed("multi-file") {
		cfg.MultiFile = backupFlags.multiFile
	}
	if f.Changed("features") {
		tags := make([]dialect.FeatureTag, len(backupFlags.features))
		for i, ft := range backupFlags.features {
			tags[i] = dialect.FeatureTag(strings.TrimSpace(ft))
		}
		cfg.Features = tags
	}
}
