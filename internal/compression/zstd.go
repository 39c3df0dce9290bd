package compression

import (
	"io"
	"os"

	"github.com/klauspost/compress/zstd"

	"backy/internal/backyerrors"
)

// ZstdCompressor wraps github.com/klauspost/compress/zstd, grounded on the
// teacher's internal/backup/compression.go ZstdCompressor.
type ZstdCompressor struct{}

func (ZstdCompressor) Compress(inputPath string) (string, error) {
	outputPath := inputPath + ".zst"
	in, err := os.Open(inputPath)
	if err != nil {
		return "", backyerrors.NewCompressionFailed(err)
	}
	defer in.Close()

	out, err := os.Create(outputPath)
	if err != nil {
		return "", backyerrors.NewCompressionFailed(err)
	}
	defer out.Close()

	w, err := zstd.NewWriter(out)
	if err != nil {
		return "", backyerrors.NewCompressionFailed(err)
	}
	if _, err := io.Copy(w, in); err != nil {
		_ = w.Close()
		return "", backyerrors.NewCompressionFailed(err)
	}
	if err := w.Close(); err != nil {
		return "", backyerrors.NewCompressionFailed(err)
	}

	_ = os.Remove(inputPath)
	return outputPath, nil
}

func (ZstdCompressor) Decompress(inputPath string) (string, error) {
	outputPath := trimSuffix(inputPath, ".zst")
	in, err := os.Open(inputPath)
	if err != nil {
		return "", backyerrors.NewCompressionFailed(err)
	}
	defer in.Close()

	r, err := zstd.NewReader(in)
	if err != nil {
		return "", backyerrors.NewCompressionFailed(err)
	}
	defer r.Close()

	out, err := os.Create(outputPath)
	if err != nil {
		return "", backyerrors.NewCompressionFailed(err)
	}
	defer out.Close()

	if _, err := io.Copy(out, r); err != nil {
		return "", backyerrors.NewCompressionFailed(err)
	}

	_ = os.Remove(inputPath)
	return outputPath, nil
}
