// Package container implements C5 (chunk container) and C6 (data converter):
// a length-prefixed, feature-tagged binary format that interleaves
// heterogeneous chunks with periodic durable flushes.
package container

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"backy/internal/backyerrors"
)

// MaxMetadataSize bounds the JSON metadata preceding each chunk's payload, to
// keep a corrupt or adversarial length prefix from triggering an unbounded
// allocation.
const MaxMetadataSize = 64 * 1024

// DefaultFlushThreshold is the byte count after which Writer issues a
// durable flush and resets its counter.
const DefaultFlushThreshold = 4 * 1024 * 1024

// ChunkMeta is the JSON metadata object preceding every chunk's payload.
type ChunkMeta struct {
	FeatureName string `json:"feature_name"`
	Size        uint64 `json:"size"`
}

// Chunk is one decoded (feature, payload) record.
type Chunk struct {
	Feature string
	Payload []byte
}

// Writer appends length-prefixed chunks to an underlying file, fsyncing once
// the running byte counter crosses FlushThreshold.
type Writer struct {
	file           *os.File
	buf            *bufio.Writer
	FlushThreshold int
	written        int
}

// NewWriter opens path for append-only chunk writing, creating it if absent.
func NewWriter(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open chunk container: %w", err)
	}
	return &Writer{file: f, buf: bufio.NewWriter(f), FlushThreshold: DefaultFlushThreshold}, nil
}

// Write appends one chunk: a 4-byte big-endian metadata length, the JSON
// metadata (feature tag and payload size), then exactly len(payload) bytes.
func (w *Writer) Write(feature string, payload []byte) error {
	meta := ChunkMeta{FeatureName: feature, Size: uint64(len(payload))}
	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode chunk metadata: %w", err)
	}

	header := make([]byte, 4+len(metaBytes))
	binary.BigEndian.PutUint32(header[:4], uint32(len(metaBytes)))
	copy(header[4:], metaBytes)

	// Written as one buffered block so an interrupted write cannot leave a
	// length prefix without its matching metadata on crash-inspection.
	if _, err := w.buf.Write(header); err != nil {
		return fmt.Errorf("write chunk header: %w", err)
	}
	if _, err := w.buf.Write(payload); err != nil {
		return fmt.Errorf("write chunk payload: %w", err)
	}

	w.written += len(header) + len(payload)
	if w.written >= w.FlushThreshold {
		if err := w.Flush(); err != nil {
			return err
		}
		w.written = 0
	}
	return nil
}

// Flush forces a durable flush: buffered bytes to the OS, then fsync.
func (w *Writer) Flush() error {
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("flush chunk container: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("sync chunk container: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying file.
func (w *Writer) Close() error {
	if err := w.Flush(); err != nil {
		_ = w.file.Close()
		return err
	}
	return w.file.Close()
}

// Reader lazily decodes chunks from an underlying reader. Readers trust only
// length prefixes, never the file's overall size.
type Reader struct {
	r *bufio.Reader
}

// NewReader wraps r for chunk decoding.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Next decodes the next chunk, or returns io.EOF at a clean chunk boundary
// (zero bytes read where a length prefix was expected). Any other read
// failure partway through a chunk is corruption, never a clean stopping point.
func (r *Reader) Next() (Chunk, error) {
	var lenBuf [4]byte
	n, err := io.ReadFull(r.r, lenBuf[:])
	if err == io.EOF && n == 0 {
		return Chunk{}, io.EOF
	}
	if err != nil {
		// A short (1-3 byte) read of the length prefix means the stream ended
		// mid-header: the metadata needed to interpret what follows never
		// fully arrived, which is corruption, not a clean trailing-garbage tail.
		return Chunk{}, backyerrors.NewCorruptMetadata(fmt.Sprintf("short read of length prefix: got %d of 4 bytes", n))
	}

	metaLen := binary.BigEndian.Uint32(lenBuf[:])
	if metaLen > MaxMetadataSize {
		return Chunk{}, backyerrors.NewCorruptMetadata(fmt.Sprintf("metadata length %d exceeds ceiling %d", metaLen, MaxMetadataSize))
	}

	metaBytes := make([]byte, metaLen)
	if _, err := io.ReadFull(r.r, metaBytes); err != nil {
		return Chunk{}, backyerrors.NewCorruptMetadata(fmt.Sprintf("short read of metadata: %v", err))
	}

	var meta ChunkMeta
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return Chunk{}, backyerrors.NewCorruptMetadata(fmt.Sprintf("invalid metadata JSON: %v", err))
	}

	payload := make([]byte, meta.Size)
	read, err := io.ReadFull(r.r, payload)
	if err != nil {
		return Chunk{}, backyerrors.NewCorruptPayload(meta.FeatureName, int(meta.Size), read)
	}

	return Chunk{Feature: meta.FeatureName, Payload: payload}, nil
}

// ReadAll drains r into a slice, tolerating a clean EOF.
func ReadAll(r io.Reader) ([]Chunk, error) {
	cr := NewReader(r)
	var chunks []Chunk
	for {
		c, err := cr.Next()
		if err == io.EOF {
			return chunks, nil
		}
		if err != nil {
			return chunks, err
		}
		chunks = append(chunks, c)
	}
}

// StrToBytes converts s to its UTF-8 byte representation. It never fails for
// a valid Go string (strings are not validated as UTF-8 by the language),
// but is kept as an explicit boundary crossing per the component contract.
func StrToBytes(s string) []byte {
	return []byte(s)
}

// BytesToStr decodes b as strict UTF-8, failing if it contains invalid
// sequences.
func BytesToStr(b []byte) (string, error) {
	if !utf8.Valid(b) {
		return "", backyerrors.New(backyerrors.KindCorruptPayload, "invalid UTF-8 byte sequence", nil)
	}
	return string(b), nil
}
