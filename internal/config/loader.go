package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/viper"
)

// Load reads a BackupConfig from a YAML file (if configPath is non-empty
// and exists) overlaid with BACKY_-prefixed environment variables, applies
// defaults, and validates the result. Unknown keys fail the load rather
// than being silently ignored, per SPEC_FULL.md's redesign of the dynamic
// feature config into explicit enumerated options, grounded on the
// teacher's internal/config/integration.go viper setup.
func LoadBackupConfig(configPath string) (*BackupConfig, error) {
	v := newViper(configPath)
	if err := readIfExists(v, configPath); err != nil {
		return nil, err
	}

	cfg := &BackupConfig{}
	if err := v.UnmarshalExact(cfg); err != nil {
		return nil, fmt.Errorf("decode backup config: %w", err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("backup config validation failed: %w", err)
	}
	return cfg, nil
}

// LoadRestoreConfig is LoadBackupConfig's mirror for restore invocations.
func LoadRestoreConfig(configPath string) (*RestoreConfig, error) {
	v := newViper(configPath)
	if err := readIfExists(v, configPath); err != nil {
		return nil, err
	}

	cfg := &RestoreConfig{}
	if err := v.UnmarshalExact(cfg); err != nil {
		return nil, fmt.Errorf("decode restore config: %w", err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("restore config validation failed: %w", err)
	}
	return cfg, nil
}

func newViper(configPath string) *viper.Viper {
	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("backy")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
	}
	v.AutomaticEnv()
	v.SetEnvPrefix("BACKY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

func readIfExists(v *viper.Viper, configPath string) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		if configPath == "" || errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config file %s: %w", configPath, err)
	}
	return nil
}
