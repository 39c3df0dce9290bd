package integrity

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backy/internal/backyerrors"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
}

func TestDigestModeScenarioS6(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"a": "hello", "b": "world"})
	manifest := DefaultManifestPath(dir, Digest)

	require.NoError(t, Build(dir, manifest, Digest, ""))
	require.NoError(t, Verify(dir, manifest, ""))

	// Flip one byte of "a".
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a"), []byte("hfllo"), 0o644))

	err := Verify(dir, manifest, "")
	require.Error(t, err)
	berr, ok := err.(*backyerrors.Error)
	require.True(t, ok)
	assert.Equal(t, backyerrors.KindIntegrityMismatch, berr.Kind)
	assert.Equal(t, "a", berr.Filename)
}

func TestKeyedMACModeRoundTrip(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"dump.sql": "CREATE TABLE t(id INT);"})
	manifest := DefaultManifestPath(dir, KeyedMAC)

	require.NoError(t, Build(dir, manifest, KeyedMAC, "correct horse"))
	require.NoError(t, Verify(dir, manifest, "correct horse"))

	err := Verify(dir, manifest, "wrong password")
	require.Error(t, err)
}

func TestVerifyFailsOnMissingFile(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"only.sql": "SELECT 1;"})
	manifest := DefaultManifestPath(dir, Digest)
	require.NoError(t, Build(dir, manifest, Digest, ""))

	require.NoError(t, os.Remove(filepath.Join(dir, "only.sql")))

	err := Verify(dir, manifest, "")
	require.Error(t, err)
	berr, ok := err.(*backyerrors.Error)
	require.True(t, ok)
	assert.Equal(t, backyerrors.KindMissingFile, berr.Kind)
}

func TestManifestExcludesItself(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"a": "1"})
	manifest := DefaultManifestPath(dir, Digest)
	require.NoError(t, Build(dir, manifest, Digest, ""))

	content, err := os.ReadFile(manifest)
	require.NoError(t, err)
	assert.NotContains(t, string(content), filepath.Base(manifest))
}
