package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalProviderUploadDownloadDelete(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	p, err := NewLocalProvider(dir)
	require.NoError(t, err)

	src := filepath.Join(t.TempDir(), "payload.backy")
	require.NoError(t, os.WriteFile(src, []byte("backup bytes"), 0o644))

	key, err := p.Upload(ctx, src)
	require.NoError(t, err)
	assert.NotEmpty(t, key)

	downloaded, err := p.Download(ctx, key)
	require.NoError(t, err)
	data, err := os.ReadFile(downloaded)
	require.NoError(t, err)
	assert.Equal(t, "backup bytes", string(data))

	ok, err := p.ValidateCredentials(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, p.Delete(ctx, key))
	_, err = p.Download(ctx, key)
	assert.Error(t, err)
}

func TestLocalProviderRequiresDir(t *testing.T) {
	_, err := NewLocalProvider("")
	assert.Error(t, err)
}

type fakeProvider struct {
	uploadErr   error
	downloadErr error
	uploaded    []string
	downloaded  []string
}

func (f *fakeProvider) Upload(ctx context.Context, localPath string) (string, error) {
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	f.uploaded = append(f.uploaded, localPath)
	return "key-for-" + filepath.Base(localPath), nil
}

func (f *fakeProvider) Download(ctx context.Context, remoteKey string) (string, error) {
	if f.downloadErr != nil {
		return "", f.downloadErr
	}
	f.downloaded = append(f.downloaded, remoteKey)
	return "/tmp/" + remoteKey, nil
}

func (f *fakeProvider) Delete(ctx context.Context, remoteKey string) error { return nil }

func (f *fakeProvider) ValidateCredentials(ctx context.Context) (bool, error) { return true, nil }

// fakeKeyedProvider additionally implements KeyedUploader, exercising
// MultiProvider's pin-the-primary-key replication path.
type fakeKeyedProvider struct {
	*fakeProvider
	uploadedAs []string
}

func (f *fakeKeyedProvider) UploadAs(ctx context.Context, localPath, remoteKey string) error {
	f.uploadedAs = append(f.uploadedAs, remoteKey)
	return nil
}

func TestMultiProviderReplicatesOnUpload(t *testing.T) {
	primary := &fakeProvider{}
	replica := &fakeProvider{}
	m := NewMultiProvider(primary, replica)

	key, err := m.Upload(context.Background(), "/tmp/backup.backy")
	require.NoError(t, err)
	assert.Equal(t, "key-for-backup.backy", key)
	assert.Len(t, primary.uploaded, 1)
	assert.Len(t, replica.uploaded, 1)
}

func TestMultiProviderFailsOverOnDownload(t *testing.T) {
	primary := &fakeProvider{downloadErr: errors.New("primary unreachable")}
	replica := &fakeProvider{}
	m := NewMultiProvider(primary, replica)

	path, err := m.Download(context.Background(), "some-key")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/some-key", path)
	assert.Len(t, replica.downloaded, 1)
}

func TestMultiProviderDownloadFailsWhenAllFail(t *testing.T) {
	primary := &fakeProvider{downloadErr: errors.New("down")}
	replica := &fakeProvider{downloadErr: errors.New("also down")}
	m := NewMultiProvider(primary, replica)

	_, err := m.Download(context.Background(), "some-key")
	assert.Error(t, err)
}

func TestFactoryRejectsUnknownProvider(t *testing.T) {
	_, err := Factory{}.CreateStorageProvider(context.Background(), ProviderConfig{Provider: Type("bogus")})
	assert.Error(t, err)
}

func TestFactoryBuildsLocalProvider(t *testing.T) {
	dir := t.TempDir()
	p, err := Factory{}.CreateStorageProvider(context.Background(), ProviderConfig{Provider: Local, LocalDir: dir})
	require.NoError(t, err)
	assert.NotNil(t, p)
}

func TestFactoryBuildsMultiProviderFromReplicas(t *testing.T) {
	primaryDir := t.TempDir()
	replicaDir := t.TempDir()
	p, err := Factory{}.CreateStorageProvider(context.Background(), ProviderConfig{
		Provider: Local,
		LocalDir: primaryDir,
		Replicas: []ProviderConfig{{Provider: Local, LocalDir: replicaDir}},
	})
	require.NoError(t, err)
	m, ok := p.(*MultiProvider)
	require.True(t, ok)
	require.Len(t, m.Replicas, 1)

	payload := filepath.Join(t.TempDir(), "file.backy")
	require.NoError(t, os.WriteFile(payload, []byte("data"), 0o600))

	key, err := m.Upload(context.Background(), payload)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(replicaDir, key))
}

func TestMultiProviderReplicatesUnderPrimaryKey(t *testing.T) {
	primary := &fakeProvider{}
	replica := &fakeKeyedProvider{fakeProvider: &fakeProvider{}}
	m := NewMultiProvider(primary, replica)

	key, err := m.Upload(context.Background(), "/tmp/backup.backy")
	require.NoError(t, err)
	require.Len(t, replica.uploadedAs, 1)
	assert.Equal(t, key, replica.uploadedAs[0])
}
