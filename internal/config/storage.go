package config

import "fmt"

// StorageProviderType names a recognized storage backend, mirrored against
// internal/storage.Type.
type StorageProviderType string

const (
	StorageProviderLocal StorageProviderType = "local"
	StorageProviderS3    StorageProviderType = "s3"
	StorageProviderAzure StorageProviderType = "azure"
	StorageProviderGCS   StorageProviderType = "gcs"
)

// LocalStorageConfig configures the local-filesystem storage adapter,
// grounded on the teacher's internal/backup/config.go LocalConfig.
type LocalStorageConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

func (c *LocalStorageConfig) SetDefaults() {
	if c.Dir == "" {
		c.Dir = "./backups"
	}
}

// S3StorageConfig configures the S3 storage adapter, grounded on the
// teacher's internal/backup/config.go S3Config. Credentials are resolved
// through the AWS default provider chain rather than embedded here.
type S3StorageConfig struct {
	Bucket string `yaml:"bucket" mapstructure:"bucket"`
	Region string `yaml:"region" mapstructure:"region"`
	Prefix string `yaml:"prefix" mapstructure:"prefix"`
}

func (c *S3StorageConfig) SetDefaults() {
	if c.Region == "" {
		c.Region = "us-east-1"
	}
}

func (c *S3StorageConfig) validate(errs *ValidationErrors) {
	if c.Bucket == "" {
		errs.Add("storage.s3.bucket", "S3 bucket is required when provider is s3", c.Bucket)
	}
}

// AzureStorageConfig configures the Azure Blob storage adapter.
type AzureStorageConfig struct {
	Account   string `yaml:"account" mapstructure:"account"`
	AccountKey string `yaml:"account_key" mapstructure:"account_key"`
	Container string `yaml:"container" mapstructure:"container"`
}

func (c *AzureStorageConfig) validate(errs *ValidationErrors) {
	if c.Account == "" {
		errs.Add("storage.azure.account", "azure account is required when provider is azure", c.Account)
	}
	if c.Container == "" {
		errs.Add("storage.azure.container", "azure container is required when provider is azure", c.Container)
	}
}

// GCSStorageConfig configures the Google Cloud Storage adapter.
type GCSStorageConfig struct {
	Bucket          string `yaml:"bucket" mapstructure:"bucket"`
	CredentialsFile string `yaml:"credentials_file" mapstructure:"credentials_file"`
}

func (c *GCSStorageConfig) validate(errs *ValidationErrors) {
	if c.Bucket == "" {
		errs.Add("storage.gcs.bucket", "GCS bucket is required when provider is gcs", c.Bucket)
	}
}

// StorageConfig selects and configures one upload destination, grounded on
// the teacher's internal/backup/config.go StorageConfig switch-per-provider
// idiom.
type StorageConfig struct {
	Provider StorageProviderType `yaml:"provider" mapstructure:"provider"`
	Local    *LocalStorageConfig `yaml:"local,omitempty" mapstructure:"local"`
	S3       *S3StorageConfig    `yaml:"s3,omitempty" mapstructure:"s3"`
	Azure    *AzureStorageConfig `yaml:"azure,omitempty" mapstructure:"azure"`
	GCS      *GCSStorageConfig   `yaml:"gcs,omitempty" mapstructure:"gcs"`

	// Replicas names additional destinations a bundle is best-effort
	// replicated to after the primary upload succeeds (D2's MultiProvider).
	Replicas []StorageConfig `yaml:"replicas,omitempty" mapstructure:"replicas"`
}

func (c *StorageConfig) SetDefaults() {
	if c.Provider == "" {
		c.Provider = StorageProviderLocal
	}
	switch c.Provider {
	case StorageProviderLocal:
		if c.Local == nil {
			c.Local = &LocalStorageConfig{}
		}
		c.Local.SetDefaults()
	case StorageProviderS3:
		if c.S3 == nil {
			c.S3 = &S3StorageConfig{}
		}
		c.S3.SetDefaults()
	case StorageProviderAzure:
		if c.Azure == nil {
			c.Azure = &AzureStorageConfig{}
		}
	case StorageProviderGCS:
		if c.GCS == nil {
			c.GCS = &GCSStorageConfig{}
		}
	}
	for i := range c.Replicas {
		c.Replicas[i].SetDefaults()
	}
}

func (c *StorageConfig) Validate() error {
	var errs ValidationErrors
	switch c.Provider {
	case StorageProviderLocal:
		if c.Local == nil || c.Local.Dir == "" {
			errs.Add("storage.local.dir", "local storage directory is required when provider is local", nil)
		}
	case StorageProviderS3:
		if c.S3 == nil {
			errs.Add("storage.s3", "s3 config is required when provider is s3", nil)
		} else {
			c.S3.validate(&errs)
		}
	case StorageProviderAzure:
		if c.Azure == nil {
			errs.Add("storage.azure", "azure config is required when provider is azure", nil)
		} else {
			c.Azure.validate(&errs)
		}
	case StorageProviderGCS:
		if c.GCS == nil {
			errs.Add("storage.gcs", "gcs config is required when provider is gcs", nil)
		} else {
			c.GCS.validate(&errs)
		}
	default:
		errs.Add("storage.provider", "invalid storage provider", c.Provider)
	}
	for i, r := range c.Replicas {
		if err := r.Validate(); err != nil {
			if sub, ok := err.(ValidationErrors); ok {
				for _, e := range sub {
					errs.Add(fmt.Sprintf("storage.replicas[%d].%s", i, e.Field), e.Message, e.Value)
				}
			}
		}
	}
	if errs.HasErrors() {
		return errs
	}
	return nil
}
