package config

import (
	"backy/internal/dialect"
)

// BackupConfig is the top-level configuration for one backup invocation,
// composing every subsystem config plus the backup-specific settings
// supplemented from original_source/ (description, expiry, multi-file mode).
type BackupConfig struct {
	Database    DatabaseConfig       `yaml:"database" mapstructure:"database"`
	Compression CompressionConfig    `yaml:"compression" mapstructure:"compression"`
	Security    SecurityConfig       `yaml:"security" mapstructure:"security"`
	Integrity   IntegrityConfig      `yaml:"integrity" mapstructure:"integrity"`
	Storage     StorageConfig        `yaml:"storage" mapstructure:"storage"`
	Features    []dialect.FeatureTag `yaml:"features" mapstructure:"features"`
	Description string               `yaml:"description" mapstructure:"description"`
	ExpiresIn   string               `yaml:"expires_in" mapstructure:"expires_in"` // duration string, e.g. "720h"; empty means no expiry
	MultiFile   bool                 `yaml:"multi_file" mapstructure:"multi_file"`
}

func (c *BackupConfig) SetDefaults() {
	c.Database.SetDefaults()
	c.Compression.SetDefaults()
	c.Security.SetDefaults()
	c.Integrity.SetDefaults()
	c.Storage.SetDefaults()
	if len(c.Features) == 0 {
		c.Features = []dialect.FeatureTag{dialect.FeatureFull}
	}
}

func (c *BackupConfig) Validate() error {
	var errs ValidationErrors
	for _, sub := range []error{
		c.Database.Validate(),
		c.Compression.Validate(),
		c.Security.Validate(),
		c.Integrity.Validate(),
		c.Storage.Validate(),
	} {
		appendSubErrors(&errs, sub)
	}
	for _, f := range c.Features {
		if !dialect.IsValidFeature(f) {
			errs.Add("features", "unrecognized feature tag", f)
		}
	}
	if errs.HasErrors() {
		return errs
	}
	return nil
}

func appendSubErrors(dst *ValidationErrors, err error) {
	if err == nil {
		return
	}
	if sub, ok := err.(ValidationErrors); ok {
		*dst = append(*dst, sub...)
		return
	}
	dst.Add("", err.Error(), nil)
}
