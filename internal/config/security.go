package config

// KeyBackendType names a recognized key-management backend.
type KeyBackendType string

const (
	KeyBackendLocal KeyBackendType = "local"
	KeyBackendKMS   KeyBackendType = "aws_kms"
)

// SecurityConfig controls whether/how a backup's payload is encrypted,
// grounded on the teacher's internal/backup/config.go EncryptionConfig,
// generalized from a raw symmetric key to the key-engine's wrap/unwrap
// identity scheme (§4.6).
type SecurityConfig struct {
	Enabled           bool           `yaml:"enabled" mapstructure:"enabled"`
	Type              KeyBackendType `yaml:"type" mapstructure:"type"`
	Provider          string         `yaml:"provider" mapstructure:"provider"` // AWS region for aws_kms, keystore dir for local
	KeystorePassword  string         `yaml:"keystore_password" mapstructure:"keystore_password"`
	RequestedVersion  string         `yaml:"requested_version" mapstructure:"requested_version"` // concrete version or "auto"
}

func (c *SecurityConfig) SetDefaults() {
	if !c.Enabled {
		return
	}
	if c.Type == "" {
		c.Type = KeyBackendLocal
	}
	if c.RequestedVersion == "" {
		c.RequestedVersion = "auto"
	}
}

func (c *SecurityConfig) Validate() error {
	var errs ValidationErrors
	if c.Enabled {
		switch c.Type {
		case KeyBackendLocal:
			if c.Provider == "" {
				errs.Add("provider", "local keystore directory is required when type is local", c.Provider)
			}
			if c.KeystorePassword == "" {
				errs.Add("keystore_password", "keystore password is required when type is local", nil)
			}
		case KeyBackendKMS:
			if c.Provider == "" {
				errs.Add("provider", "AWS region is required when type is aws_kms", c.Provider)
			}
		default:
			errs.Add("type", "invalid key backend type, must be \"local\" or \"aws_kms\"", c.Type)
		}
	}
	if errs.HasErrors() {
		return errs
	}
	return nil
}
