package compression

import (
	"io"
	"os"

	"github.com/pierrec/lz4/v4"

	"backy/internal/backyerrors"
)

// LZ4Compressor wraps github.com/pierrec/lz4/v4, grounded on the teacher's
// internal/backup/compression.go compressor set (gzip-only there; lz4 added
// here from the rest of the retrieval pack's dependency surface).
type LZ4Compressor struct{}

func (LZ4Compressor) Compress(inputPath string) (string, error) {
	outputPath := inputPath + ".lz4"
	if err := compressFile(inputPath, outputPath, func(w io.Writer) (io.WriteCloser, error) {
		return lz4.NewWriter(w), nil
	}); err != nil {
		return "", backyerrors.NewCompressionFailed(err)
	}
	_ = os.Remove(inputPath)
	return outputPath, nil
}

func (LZ4Compressor) Decompress(inputPath string) (string, error) {
	outputPath := trimSuffix(inputPath, ".lz4")
	if err := decompressFile(inputPath, outputPath, func(r io.Reader) (io.ReadCloser, error) {
		return io.NopCloser(lz4.NewReader(r)), nil
	}); err != nil {
		return "", backyerrors.NewCompressionFailed(err)
	}
	_ = os.Remove(inputPath)
	return outputPath, nil
}
