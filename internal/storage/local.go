package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"backy/internal/backyerrors"
)

// LocalProvider copies files into a directory on the local filesystem,
// grounded on original_source/storage/local_storage.py.
type LocalProvider struct {
	Dir string
}

func NewLocalProvider(dir string) (*LocalProvider, error) {
	if dir == "" {
		return nil, backyerrors.NewConfigurationError("local storage directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, backyerrors.NewStorageFailed(fmt.Errorf("create local storage dir %s: %w", dir, err))
	}
	return &LocalProvider{Dir: dir}, nil
}

func (p *LocalProvider) Upload(ctx context.Context, localPath string) (string, error) {
	remoteKey := fmt.Sprintf("%s-%s", uuid.NewString(), filepath.Base(localPath))
	if err := p.UploadAs(ctx, localPath, remoteKey); err != nil {
		return "", err
	}
	return remoteKey, nil
}

// UploadAs copies localPath to dir/remoteKey verbatim, letting a caller (a
// MultiProvider replicating a primary upload) pin the remote name instead of
// getting a freshly minted one.
func (p *LocalProvider) UploadAs(ctx context.Context, localPath, remoteKey string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dest := filepath.Join(p.Dir, remoteKey)

	in, err := os.Open(localPath)
	if err != nil {
		return backyerrors.NewStorageFailed(err)
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return backyerrors.NewStorageFailed(err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		_ = os.Remove(dest)
		return backyerrors.NewStorageFailed(err)
	}
	return nil
}

func (p *LocalProvider) Download(ctx context.Context, remoteKey string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	src := filepath.Join(p.Dir, remoteKey)
	if _, err := os.Stat(src); err != nil {
		return "", backyerrors.NewStorageFailed(fmt.Errorf("object %s: %w", remoteKey, err))
	}

	dest := filepath.Join(os.TempDir(), filepath.Base(remoteKey))
	in, err := os.Open(src)
	if err != nil {
		return "", backyerrors.NewStorageFailed(err)
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return "", backyerrors.NewStorageFailed(err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return "", backyerrors.NewStorageFailed(err)
	}
	return dest, nil
}

func (p *LocalProvider) Delete(ctx context.Context, remoteKey string) error {
	if err := os.Remove(filepath.Join(p.Dir, remoteKey)); err != nil && !os.IsNotExist(err) {
		return backyerrors.NewStorageFailed(err)
	}
	return nil
}

func (p *LocalProvider) ValidateCredentials(ctx context.Context) (bool, error) {
	info, err := os.Stat(p.Dir)
	if err != nil || !info.IsDir() {
		return false, nil
	}
	probe := filepath.Join(p.Dir, ".backy-write-probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return false, nil
	}
	_ = os.Remove(probe)
	return true, nil
}
