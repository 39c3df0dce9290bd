package config

import "backy/internal/dialect"

// ConflictPolicy names the restore replayer's reaction to a database-
// reported conflict, per §4.2's redesign of the original's open-ended
// string into an enumerated option.
type ConflictPolicy string

const (
	ConflictSkip  ConflictPolicy = "skip"
	ConflictAbort ConflictPolicy = "abort"
)

// RestoreMode selects how the restore input is interpreted: a single SQL
// file fed to the parser, or pre-parsed statement chunks replayed directly.
type RestoreMode string

const (
	RestoreModeFile      RestoreMode = "file"
	RestoreModeStatement RestoreMode = "statement"
	RestoreModeBacky     RestoreMode = "backy"
)

// RestoreConfig is the top-level configuration for one restore invocation.
// Which transforms a bundle went through (compression, encryption,
// integrity) is read back from its own metadata sidecar rather than
// configured here; only the secrets needed to reverse them (unavailable to
// the sidecar by design) are restore-side configuration.
type RestoreConfig struct {
	Database          DatabaseConfig       `yaml:"database" mapstructure:"database"`
	Storage           StorageConfig        `yaml:"storage" mapstructure:"storage"`
	EnabledFeatures   []dialect.FeatureTag `yaml:"enabled_features" mapstructure:"enabled_features"`
	Mode              RestoreMode          `yaml:"mode" mapstructure:"mode"`
	ConflictPolicy    ConflictPolicy       `yaml:"conflict_policy" mapstructure:"conflict_policy"`
	KeystorePassword  string               `yaml:"keystore_password" mapstructure:"keystore_password"`
	IntegrityPassword string               `yaml:"integrity_password" mapstructure:"integrity_password"`
}

func (c *RestoreConfig) SetDefaults() {
	c.Database.SetDefaults()
	c.Storage.SetDefaults()
	if c.Mode == "" {
		c.Mode = RestoreModeBacky
	}
	if c.ConflictPolicy == "" {
		c.ConflictPolicy = ConflictAbort
	}
	if len(c.EnabledFeatures) == 0 {
		c.EnabledFeatures = append([]dialect.FeatureTag{}, dialect.AllFeatures...)
	}
}

func (c *RestoreConfig) Validate() error {
	var errs ValidationErrors
	appendSubErrors(&errs, c.Database.Validate())
	appendSubErrors(&errs, c.Storage.Validate())

	switch c.Mode {
	case RestoreModeFile, RestoreModeStatement, RestoreModeBacky:
	default:
		errs.Add("mode", "invalid restore mode, must be \"file\", \"statement\" or \"backy\"", c.Mode)
	}

	switch c.ConflictPolicy {
	case ConflictSkip, ConflictAbort:
	default:
		errs.Add("conflict_policy", "invalid conflict policy, must be \"skip\" or \"abort\"", c.ConflictPolicy)
	}

	for _, f := range c.EnabledFeatures {
		if !dialect.IsValidFeature(f) {
			errs.Add("enabled_features", "unrecognized feature tag", f)
		}
	}
	if errs.HasErrors() {
		return errs
	}
	return nil
}
