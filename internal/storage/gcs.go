package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	"backy/internal/backyerrors"
)

// GCSProvider uploads/downloads objects via cloud.google.com/go/storage,
// grounded on the teacher's StorageConfig.GCS settings.
type GCSProvider struct {
	bucket string
	client *storage.Client
}

func NewGCSProvider(ctx context.Context, bucket, credentialsFile string) (*GCSProvider, error) {
	if bucket == "" {
		return nil, backyerrors.NewConfigurationError("GCS bucket is required")
	}
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, backyerrors.NewStorageFailed(fmt.Errorf("create GCS client: %w", err))
	}
	return &GCSProvider{bucket: bucket, client: client}, nil
}

func (p *GCSProvider) Upload(ctx context.Context, localPath string) (string, error) {
	objectName := fmt.Sprintf("%s-%s", uuid.NewString(), filepath.Base(localPath))
	if err := p.UploadAs(ctx, localPath, objectName); err != nil {
		return "", err
	}
	return objectName, nil
}

// UploadAs uploads localPath under objectName verbatim, letting a caller (a
// MultiProvider replicating a primary upload) pin the object name instead of
// getting a freshly minted one.
func (p *GCSProvider) UploadAs(ctx context.Context, localPath, objectName string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return backyerrors.NewStorageFailed(err)
	}
	defer f.Close()

	w := p.client.Bucket(p.bucket).Object(objectName).NewWriter(ctx)
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return backyerrors.NewStorageFailed(err)
	}
	if err := w.Close(); err != nil {
		return backyerrors.NewStorageFailed(fmt.Errorf("finalize GCS object %s: %w", objectName, err))
	}
	return nil
}

func (p *GCSProvider) Download(ctx context.Context, remoteKey string) (string, error) {
	r, err := p.client.Bucket(p.bucket).Object(remoteKey).NewReader(ctx)
	if err != nil {
		return "", backyerrors.NewStorageFailed(fmt.Errorf("open GCS object %s: %w", remoteKey, err))
	}
	defer r.Close()

	dest := filepath.Join(os.TempDir(), filepath.Base(remoteKey))
	f, err := os.Create(dest)
	if err != nil {
		return "", backyerrors.NewStorageFailed(err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return "", backyerrors.NewStorageFailed(err)
	}
	return dest, nil
}

func (p *GCSProvider) Delete(ctx context.Context, remoteKey string) error {
	if err := p.client.Bucket(p.bucket).Object(remoteKey).Delete(ctx); err != nil {
		return backyerrors.NewStorageFailed(err)
	}
	return nil
}

func (p *GCSProvider) ValidateCredentials(ctx context.Context) (bool, error) {
	_, err := p.client.Bucket(p.bucket).Attrs(ctx)
	if err != nil {
		return false, nil
	}
	return true, nil
}
