package compression

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "payload.sql")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestGzipRoundTrip(t *testing.T) {
	src := writeTempFile(t, "CREATE TABLE t (id INT);")
	c := GzipCompressor{}

	compressed, err := c.Compress(src)
	require.NoError(t, err)
	assert.FileExists(t, compressed)
	assert.NoFileExists(t, src)

	decompressed, err := c.Decompress(compressed)
	require.NoError(t, err)
	data, err := os.ReadFile(decompressed)
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE t (id INT);", string(data))
}

func TestZstdRoundTrip(t *testing.T) {
	src := writeTempFile(t, "INSERT INTO t VALUES (1);")
	c := ZstdCompressor{}

	compressed, err := c.Compress(src)
	require.NoError(t, err)
	assert.NoFileExists(t, src)

	decompressed, err := c.Decompress(compressed)
	require.NoError(t, err)
	data, err := os.ReadFile(decompressed)
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO t VALUES (1);", string(data))
}

func TestLZ4RoundTrip(t *testing.T) {
	src := writeTempFile(t, "INSERT INTO t VALUES (2);")
	c := LZ4Compressor{}

	compressed, err := c.Compress(src)
	require.NoError(t, err)
	assert.NoFileExists(t, src)

	decompressed, err := c.Decompress(compressed)
	require.NoError(t, err)
	data, err := os.ReadFile(decompressed)
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO t VALUES (2);", string(data))
}

func buildTempTree(t *testing.T) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "work")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "schema.sql"), []byte("CREATE TABLE a (id INT);"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "data.sql"), []byte("INSERT INTO a VALUES (1);"), 0o644))
	return root
}

func TestTarGzDirRoundTrip(t *testing.T) {
	root := buildTempTree(t)
	c := TarGzCompressor{}

	archive, err := c.Compress(root)
	require.NoError(t, err)
	assert.FileExists(t, archive)
	assert.NoDirExists(t, root)

	restored, err := c.Decompress(archive)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(restored, "schema.sql"))
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE a (id INT);", string(data))

	data, err = os.ReadFile(filepath.Join(restored, "sub", "data.sql"))
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO a VALUES (1);", string(data))
}

func TestZipDirRoundTrip(t *testing.T) {
	root := buildTempTree(t)
	c := ZipCompressor{}

	archive, err := c.Compress(root)
	require.NoError(t, err)
	assert.FileExists(t, archive)
	assert.NoDirExists(t, root)

	restored, err := c.Decompress(archive)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(restored, "schema.sql"))
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE a (id INT);", string(data))

	data, err = os.ReadFile(filepath.Join(restored, "sub", "data.sql"))
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO a VALUES (1);", string(data))
}

func TestZipRejectsNonDirectoryInput(t *testing.T) {
	src := writeTempFile(t, "not a directory")
	_, err := ZipCompressor{}.Compress(src)
	assert.Error(t, err)
}

func TestNewDispatchesByType(t *testing.T) {
	for _, tc := range []Type{Gzip, Zstd, LZ4, TarGz, Zip} {
		c, err := New(tc)
		require.NoError(t, err)
		assert.NotNil(t, c)
	}

	_, err := New(Type("bogus"))
	assert.Error(t, err)
}
