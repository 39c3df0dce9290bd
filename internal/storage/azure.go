package storage

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/Azure/azure-storage-blob-go/azblob"
	"github.com/google/uuid"

	"backy/internal/backyerrors"
)

// AzureProvider uploads/downloads blobs via azure-storage-blob-go, grounded
// on the teacher's StorageConfig.Azure settings and azblob usage patterns.
type AzureProvider struct {
	containerURL azblob.ContainerURL
}

func NewAzureProvider(account, accountKey, container string) (*AzureProvider, error) {
	if account == "" || container == "" {
		return nil, backyerrors.NewConfigurationError("azure account and container are required")
	}
	credential, err := azblob.NewSharedKeyCredential(account, accountKey)
	if err != nil {
		return nil, backyerrors.NewConfigurationError(fmt.Sprintf("azure shared key credential: %v", err))
	}
	pipeline := azblob.NewPipeline(credential, azblob.PipelineOptions{})

	u, err := url.Parse(fmt.Sprintf("https://%s.blob.core.windows.net/%s", account, container))
	if err != nil {
		return nil, backyerrors.NewConfigurationError(fmt.Sprintf("parse azure container URL: %v", err))
	}
	return &AzureProvider{containerURL: azblob.NewContainerURL(*u, pipeline)}, nil
}

func (p *AzureProvider) Upload(ctx context.Context, localPath string) (string, error) {
	blobName := fmt.Sprintf("%s-%s", uuid.NewString(), filepath.Base(localPath))
	if err := p.UploadAs(ctx, localPath, blobName); err != nil {
		return "", err
	}
	return blobName, nil
}

// UploadAs uploads localPath under blobName verbatim, letting a caller (a
// MultiProvider replicating a primary upload) pin the blob name instead of
// getting a freshly minted one.
func (p *AzureProvider) UploadAs(ctx context.Context, localPath, blobName string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return backyerrors.NewStorageFailed(err)
	}
	defer f.Close()

	blobURL := p.containerURL.NewBlockBlobURL(blobName)
	_, err = azblob.UploadFileToBlockBlob(ctx, f, blobURL, azblob.UploadToBlockBlobOptions{})
	if err != nil {
		return backyerrors.NewStorageFailed(fmt.Errorf("upload azure blob %s: %w", blobName, err))
	}
	return nil
}

func (p *AzureProvider) Download(ctx context.Context, remoteKey string) (string, error) {
	blobURL := p.containerURL.NewBlockBlobURL(remoteKey)
	dest := filepath.Join(os.TempDir(), filepath.Base(remoteKey))

	f, err := os.Create(dest)
	if err != nil {
		return "", backyerrors.NewStorageFailed(err)
	}
	defer f.Close()

	err = azblob.DownloadBlobToFile(ctx, blobURL.BlobURL, 0, azblob.CountToEnd, f, azblob.DownloadFromBlobOptions{})
	if err != nil {
		return "", backyerrors.NewStorageFailed(fmt.Errorf("download azure blob %s: %w", remoteKey, err))
	}
	return dest, nil
}

func (p *AzureProvider) Delete(ctx context.Context, remoteKey string) error {
	blobURL := p.containerURL.NewBlockBlobURL(remoteKey)
	_, err := blobURL.Delete(ctx, azblob.DeleteSnapshotsOptionNone, azblob.BlobAccessConditions{})
	if err != nil {
		return backyerrors.NewStorageFailed(err)
	}
	return nil
}

func (p *AzureProvider) ValidateCredentials(ctx context.Context) (bool, error) {
	_, err := p.containerURL.GetProperties(ctx, azblob.LeaseAccessConditions{})
	if err != nil {
		return false, nil
	}
	return true, nil
}
