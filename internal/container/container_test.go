package container

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backy/internal/backyerrors"
)

func TestWriteReadRoundTripScenarioS5(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s5.backy")
	w, err := NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Write("tables", []byte("CREATE TABLE t(id INT)")))
	require.NoError(t, w.Write("data", []byte("INSERT INTO t VALUES (1)")))
	require.NoError(t, w.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	chunks, err := ReadAll(f)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "tables", chunks[0].Feature)
	assert.Equal(t, "CREATE TABLE t(id INT)", string(chunks[0].Payload))
	assert.Equal(t, "data", chunks[1].Feature)
	assert.Equal(t, "INSERT INTO t VALUES (1)", string(chunks[1].Payload))
}

func TestReaderHaltsCleanlyAtChunkBoundary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clean.backy")
	w, err := NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Write("views", []byte("x")))
	require.NoError(t, w.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	_, err = ReadAll(f)
	require.NoError(t, err)
}

func TestReaderFailsOnInteriorTruncation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trunc.backy")
	w, err := NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Write("views", []byte("hello world")))
	require.NoError(t, w.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw[:len(raw)-4], 0o644))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	_, err = ReadAll(f)
	require.Error(t, err)
	berr, ok := err.(*backyerrors.Error)
	require.True(t, ok)
	assert.Equal(t, backyerrors.KindCorruptPayload, berr.Kind)
}

func TestReaderRejectsOversizedMetadataLength(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oversized.backy")
	big := make([]byte, 4)
	big[0] = 0xff // absurdly large big-endian length prefix
	require.NoError(t, os.WriteFile(path, big, 0o644))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	_, err = ReadAll(f)
	require.Error(t, err)
	berr, ok := err.(*backyerrors.Error)
	require.True(t, ok)
	assert.Equal(t, backyerrors.KindCorruptMetadata, berr.Kind)
}

func TestReaderRejectsShortLengthPrefix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short_prefix.backy")
	require.NoError(t, os.WriteFile(path, []byte{0x00, 0x00, 0x01}, 0o644))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	_, err = ReadAll(f)
	require.Error(t, err)
	berr, ok := err.(*backyerrors.Error)
	require.True(t, ok)
	assert.Equal(t, backyerrors.KindCorruptMetadata, berr.Kind)
}

func TestBytesToStrRejectsInvalidUTF8(t *testing.T) {
	_, err := BytesToStr([]byte{0xff, 0xfe, 0xfd})
	require.Error(t, err)
}

func TestStrToBytesRoundTrip(t *testing.T) {
	b := StrToBytes("hello")
	s, err := BytesToStr(b)
	require.NoError(t, err)
	assert.Equal(t, "hello", s)
}
