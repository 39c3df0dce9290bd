package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/google/uuid"

	"backy/internal/backyerrors"
)

// S3Provider uploads/downloads via aws-sdk-go's s3manager, grounded on the
// teacher's internal/backup/storage_s3.go.
type S3Provider struct {
	bucket   string
	prefix   string
	client   *s3.S3
	uploader *s3manager.Uploader
	downloader *s3manager.Downloader
}

func NewS3Provider(ctx context.Context, bucket, region, prefix string) (*S3Provider, error) {
	if bucket == "" {
		return nil, backyerrors.NewConfigurationError("S3 bucket is required")
	}
	sess, err := session.NewSession(&aws.Config{Region: aws.String(region)})
	if err != nil {
		return nil, backyerrors.NewStorageFailed(fmt.Errorf("create AWS session: %w", err))
	}
	return &S3Provider{
		bucket:     bucket,
		prefix:     prefix,
		client:     s3.New(sess),
		uploader:   s3manager.NewUploader(sess),
		downloader: s3manager.NewDownloader(sess),
	}, nil
}

func (p *S3Provider) objectKey(localPath string) string {
	name := fmt.Sprintf("%s-%s", uuid.NewString(), filepath.Base(localPath))
	if p.prefix == "" {
		return name
	}
	return path.Join(p.prefix, name)
}

func (p *S3Provider) Upload(ctx context.Context, localPath string) (string, error) {
	key := p.objectKey(localPath)
	if err := p.UploadAs(ctx, localPath, key); err != nil {
		return "", err
	}
	return key, nil
}

// UploadAs uploads localPath under remoteKey verbatim, letting a caller (a
// MultiProvider replicating a primary upload) pin the key instead of getting
// one freshly minted by objectKey.
func (p *S3Provider) UploadAs(ctx context.Context, localPath, remoteKey string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return backyerrors.NewStorageFailed(err)
	}
	defer f.Close()

	_, err = p.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(remoteKey),
		Body:   f,
	})
	if err != nil {
		return backyerrors.NewStorageFailed(fmt.Errorf("upload to s3://%s/%s: %w", p.bucket, remoteKey, err))
	}
	return nil
}

func (p *S3Provider) Download(ctx context.Context, remoteKey string) (string, error) {
	dest := filepath.Join(os.TempDir(), filepath.Base(remoteKey))
	f, err := os.Create(dest)
	if err != nil {
		return "", backyerrors.NewStorageFailed(err)
	}
	defer f.Close()

	_, err = p.downloader.DownloadWithContext(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(remoteKey),
	})
	if err != nil {
		return "", backyerrors.NewStorageFailed(fmt.Errorf("download s3://%s/%s: %w", p.bucket, remoteKey, err))
	}
	return dest, nil
}

func (p *S3Provider) Delete(ctx context.Context, remoteKey string) error {
	_, err := p.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(remoteKey),
	})
	if err != nil {
		return backyerrors.NewStorageFailed(err)
	}
	return nil
}

func (p *S3Provider) ValidateCredentials(ctx context.Context) (bool, error) {
	_, err := p.client.HeadBucketWithContext(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(p.bucket),
	})
	if err != nil {
		return false, nil
	}
	return true, nil
}
