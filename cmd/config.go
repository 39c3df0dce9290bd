package cmd

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"backy/internal/config"
	"backy/internal/orchestrator"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and manage backy configuration",
}

var configSampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Print a sample backy.yaml covering backup and restore settings",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Print(sampleConfigYAML)
	},
}

var rotateKeyFlags struct {
	keyType          string
	provider         string
	keystorePassword string
}

var rotateKeyCmd = &cobra.Command{
	Use:   "rotate-key",
	Short: "Mint a new active key version in the configured key backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		sec := config.SecurityConfig{
			Enabled:          true,
			Type:             config.KeyBackendType(rotateKeyFlags.keyType),
			Provider:         rotateKeyFlags.provider,
			KeystorePassword: rotateKeyFlags.keystorePassword,
		}
		sec.SetDefaults()

		identity, err := orchestrator.RotateKey(context.Background(), sec)
		if err != nil {
			return err
		}
		color.Green("new active key version: %s", identity)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configSampleCmd)
	configCmd.AddCommand(rotateKeyCmd)

	f := rotateKeyCmd.Flags()
	f.StringVar(&rotateKeyFlags.keyType, "type", "local", "key backend type: local or aws_kms")
	f.StringVar(&rotateKeyFlags.provider, "provider", "", "local keystore directory, or AWS region for aws_kms")
	f.StringVar(&rotateKeyFlags.keystorePassword, "keystore-password", "", "keystore password (required when type is local)")
}

const sampleConfigYAML = `# backup.yaml: settings read by "backy backup"
database:
  host: 127.0.0.1
  port: 3306
  user: backy
  password: ""
  database: shop
  timeout: 30s

compression:
  enabled: true
  type: gzip   # gzip, zstd, lz4, tar+gzip, zip
  level: 6

security:
  enabled: false
  type: local  # local, aws_kms
  provider: ./keystore
  keystore_password: ""

integrity:
  enabled: true
  algorithm: digest  # digest, keyed_mac
  password: ""

storage:
  provider: local  # local, s3, azure, gcs
  local:
    dir: ./backups

features: [full]
description: ""
expires_in: ""
multi_file: false

---
# restore.yaml: settings read by "backy restore"
database:
  host: 127.0.0.1
  port: 3306
  user: backy
  password: ""
  database: shop
  timeout: 30s

storage:
  provider: local
  local:
    dir: ./backups

enabled_features: [tables, data, views, functions, procedures, triggers, events]
mode: backy           # file, statement, backy
conflict_policy: abort # skip, abort
keystore_password: ""
integrity_password: ""
`
