package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backy/internal/dialect"
)

func TestDatabaseConfigDefaultsAndDSN(t *testing.T) {
	c := DatabaseConfig{Host: "db.internal", User: "root", Database: "shop"}
	c.SetDefaults()
	assert.Equal(t, 3306, c.Port)
	require.NoError(t, c.Validate())
	assert.Contains(t, c.DSN(), "root:@tcp(db.internal:3306)/shop")
}

func TestDatabaseConfigRequiresFields(t *testing.T) {
	c := DatabaseConfig{}
	c.SetDefaults()
	err := c.Validate()
	require.Error(t, err)
	verrs, ok := err.(ValidationErrors)
	require.True(t, ok)
	assert.True(t, verrs.HasErrors())
}

func TestCompressionConfigDefaultsLevelByType(t *testing.T) {
	c := CompressionConfig{Enabled: true, Type: CompressionZstd}
	c.SetDefaults()
	assert.Equal(t, 3, c.Level)
	require.NoError(t, c.Validate())
}

func TestCompressionConfigRejectsOutOfRangeLevel(t *testing.T) {
	c := CompressionConfig{Enabled: true, Type: CompressionGzip, Level: 99}
	assert.Error(t, c.Validate())
}

func TestSecurityConfigRequiresKeystorePassword(t *testing.T) {
	c := SecurityConfig{Enabled: true, Type: KeyBackendLocal, Provider: "/tmp/keys"}
	assert.Error(t, c.Validate())
}

func TestIntegrityConfigRequiresPasswordForKeyedMAC(t *testing.T) {
	c := IntegrityConfig{Enabled: true, Algorithm: IntegrityKeyedMAC}
	assert.Error(t, c.Validate())
	c.Password = "secret"
	assert.NoError(t, c.Validate())
}

func TestStorageConfigDefaultsToLocal(t *testing.T) {
	c := StorageConfig{}
	c.SetDefaults()
	assert.Equal(t, StorageProviderLocal, c.Provider)
	require.NotNil(t, c.Local)
	assert.Equal(t, "./backups", c.Local.Dir)
	assert.NoError(t, c.Validate())
}

func TestStorageConfigS3RequiresBucket(t *testing.T) {
	c := StorageConfig{Provider: StorageProviderS3, S3: &S3StorageConfig{}}
	c.SetDefaults()
	assert.Error(t, c.Validate())
}

func TestStorageConfigValidatesReplicas(t *testing.T) {
	c := StorageConfig{
		Provider: StorageProviderLocal,
		Local:    &LocalStorageConfig{Dir: "./backups"},
		Replicas: []StorageConfig{
			{Provider: StorageProviderS3, S3: &S3StorageConfig{}},
		},
	}
	c.SetDefaults()
	err := c.Validate()
	require.Error(t, err)
	verrs, ok := err.(ValidationErrors)
	require.True(t, ok)
	assert.Equal(t, "storage.replicas[0].storage.s3.bucket", verrs[0].Field)
}

func TestStorageConfigReplicasDefaultIndependently(t *testing.T) {
	c := StorageConfig{
		Provider: StorageProviderLocal,
		Local:    &LocalStorageConfig{Dir: "./backups"},
		Replicas: []StorageConfig{{Provider: StorageProviderS3}},
	}
	c.SetDefaults()
	require.Len(t, c.Replicas, 1)
	assert.Equal(t, "us-east-1", c.Replicas[0].S3.Region)
}

func TestBackupConfigDefaultsToFullFeature(t *testing.T) {
	c := BackupConfig{Database: DatabaseConfig{Host: "h", User: "u", Database: "d"}}
	c.SetDefaults()
	assert.Equal(t, []dialect.FeatureTag{dialect.FeatureFull}, c.Features)
	assert.NoError(t, c.Validate())
}

func TestBackupConfigRejectsUnknownFeature(t *testing.T) {
	c := BackupConfig{
		Database: DatabaseConfig{Host: "h", User: "u", Database: "d"},
		Features: []dialect.FeatureTag{"bogus"},
	}
	c.SetDefaults()
	assert.Error(t, c.Validate())
}

func TestRestoreConfigDefaults(t *testing.T) {
	c := RestoreConfig{Database: DatabaseConfig{Host: "h", User: "u", Database: "d"}}
	c.SetDefaults()
	assert.Equal(t, RestoreModeBacky, c.Mode)
	assert.Equal(t, ConflictAbort, c.ConflictPolicy)
	assert.Equal(t, dialect.AllFeatures, c.EnabledFeatures)
	assert.NoError(t, c.Validate())
}

func TestRestoreConfigRejectsUnknownConflictPolicy(t *testing.T) {
	c := RestoreConfig{
		Database:       DatabaseConfig{Host: "h", User: "u", Database: "d"},
		ConflictPolicy: "retry-forever",
	}
	c.SetDefaults()
	c.ConflictPolicy = "retry-forever"
	assert.Error(t, c.Validate())
}

func TestLoadBackupConfigFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "backy.yaml")
	yamlContent := `
database:
  host: db.internal
  user: root
  password: secret
  database: shop
compression:
  enabled: true
  type: gzip
storage:
  provider: local
  local:
    dir: ./out
`
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0o644))

	cfg, err := LoadBackupConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.True(t, cfg.Compression.Enabled)
	assert.Equal(t, CompressionGzip, cfg.Compression.Type)
	assert.Equal(t, "./out", cfg.Storage.Local.Dir)
}

func TestLoadBackupConfigMissingFileUsesDefaults(t *testing.T) {
	_, err := LoadBackupConfig(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	// database fields are required; an absent file still yields a config
	// that fails validation because no host/user/database were provided.
	assert.Error(t, err)
}
