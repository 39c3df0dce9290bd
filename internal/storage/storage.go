// Package storage implements D2: the object-storage adapters behind the
// §6.4 contract. Remote object keys are opaque strings the caller persists
// verbatim in the metadata sidecar.
package storage

import (
	"context"
	"fmt"

	"backy/internal/backyerrors"
)

// Provider is the §6.4 contract.
type Provider interface {
	Upload(ctx context.Context, localPath string) (remoteKey string, err error)
	Download(ctx context.Context, remoteKey string) (localPath string, err error)
	Delete(ctx context.Context, remoteKey string) error
	ValidateCredentials(ctx context.Context) (bool, error)
}

// KeyedUploader is implemented by providers that can place a file under a
// caller-chosen remote key instead of minting their own. MultiProvider uses
// it to replicate a primary upload to every replica under the exact key the
// primary returned, so download failover can find the same logical object
// under any provider.
type KeyedUploader interface {
	UploadAs(ctx context.Context, localPath, remoteKey string) error
}

// Type names the recognized storage backends for config/metadata interop.
type Type string

const (
	Local Type = "local"
	S3    Type = "s3"
	Azure Type = "azure"
	GCS   Type = "gcs"
)

// ProviderConfig collects the per-backend settings the Factory dispatches
// on, mirroring the teacher's storage_factory.go switch-on-config idiom.
type ProviderConfig struct {
	Provider Type

	LocalDir string

	S3Bucket    string
	S3Region    string
	S3Prefix    string

	AzureAccount   string
	AzureKey       string
	AzureContainer string

	GCSBucket         string
	GCSCredentialsFile string

	// Replicas, when non-empty, makes CreateStorageProvider return a
	// MultiProvider uploading to the primary and best-effort replicating to
	// each of these.
	Replicas []ProviderConfig
}

// Factory builds a Provider from a ProviderConfig.
type Factory struct{}

// CreateStorageProvider dispatches to the concrete adapter named by
// cfg.Provider, adapted from internal/backup/storage_factory.go. When cfg
// names one or more Replicas, the result is a MultiProvider wrapping the
// primary adapter and one adapter per replica.
func (f Factory) CreateStorageProvider(ctx context.Context, cfg ProviderConfig) (Provider, error) {
	primary, err := f.createSingleProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if len(cfg.Replicas) == 0 {
		return primary, nil
	}

	replicas := make([]Provider, len(cfg.Replicas))
	for i, rc := range cfg.Replicas {
		replica, err := f.createSingleProvider(ctx, rc)
		if err != nil {
			return nil, err
		}
		replicas[i] = replica
	}
	return NewMultiProvider(primary, replicas...), nil
}

func (Factory) createSingleProvider(ctx context.Context, cfg ProviderConfig) (Provider, error) {
	switch cfg.Provider {
	case Local:
		return NewLocalProvider(cfg.LocalDir)
	case S3:
		return NewS3Provider(ctx, cfg.S3Bucket, cfg.S3Region, cfg.S3Prefix)
	case Azure:
		return NewAzureProvider(cfg.AzureAccount, cfg.AzureKey, cfg.AzureContainer)
	case GCS:
		return NewGCSProvider(ctx, cfg.GCSBucket, cfg.GCSCredentialsFile)
	default:
		return nil, backyerrors.NewStorageFailed(fmt.Errorf("unsupported storage provider %q", cfg.Provider))
	}
}

// MultiProvider uploads to a primary and best-effort replicates to
// secondaries, falling back to the first healthy replica on download,
// adapted from the teacher's multi-target storage_factory.go composition.
type MultiProvider struct {
	Primary    Provider
	Replicas   []Provider
}

func NewMultiProvider(primary Provider, replicas ...Provider) *MultiProvider {
	return &MultiProvider{Primary: primary, Replicas: replicas}
}

func (m *MultiProvider) Upload(ctx context.Context, localPath string) (string, error) {
	key, err := m.Primary.Upload(ctx, localPath)
	if err != nil {
		return "", err
	}
	for _, r := range m.Replicas {
		if ku, ok := r.(KeyedUploader); ok {
			_ = ku.UploadAs(ctx, localPath, key)
			continue
		}
		_, _ = r.Upload(ctx, localPath)
	}
	return key, nil
}

func (m *MultiProvider) Download(ctx context.Context, remoteKey string) (string, error) {
	path, err := m.Primary.Download(ctx, remoteKey)
	if err == nil {
		return path, nil
	}
	firstErr := err
	for _, r := range m.Replicas {
		if path, err := r.Download(ctx, remoteKey); err == nil {
			return path, nil
		}
	}
	return "", firstErr
}

func (m *MultiProvider) Delete(ctx context.Context, remoteKey string) error {
	err := m.Primary.Delete(ctx, remoteKey)
	for _, r := range m.Replicas {
		_ = r.Delete(ctx, remoteKey)
	}
	return err
}

func (m *MultiProvider) ValidateCredentials(ctx context.Context) (bool, error) {
	return m.Primary.ValidateCredentials(ctx)
}
