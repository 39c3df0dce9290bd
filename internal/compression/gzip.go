package compression

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"

	"backy/internal/backyerrors"
)

// GzipCompressor implements single-file gzip, grounded on the teacher's
// internal/backup/compression.go GzipCompressor (there byte-slice based,
// here adapted to the file-path contract of §6.3).
type GzipCompressor struct{}

func (GzipCompressor) Compress(inputPath string) (string, error) {
	outputPath := inputPath + ".gz"
	if err := compressFile(inputPath, outputPath, func(w io.Writer) (io.WriteCloser, error) {
		return gzip.NewWriterLevel(w, gzip.DefaultCompression)
	}); err != nil {
		return "", backyerrors.NewCompressionFailed(err)
	}
	_ = os.Remove(inputPath)
	return outputPath, nil
}

func (GzipCompressor) Decompress(inputPath string) (string, error) {
	outputPath := trimSuffix(inputPath, ".gz")
	if err := decompressFile(inputPath, outputPath, func(r io.Reader) (io.ReadCloser, error) {
		return gzip.NewReader(r)
	}); err != nil {
		return "", backyerrors.NewCompressionFailed(err)
	}
	_ = os.Remove(inputPath)
	return outputPath, nil
}

func compressFile(inputPath, outputPath string, newWriter func(io.Writer) (io.WriteCloser, error)) error {
	in, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", inputPath, err)
	}
	defer in.Close()

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", outputPath, err)
	}
	defer out.Close()

	w, err := newWriter(out)
	if err != nil {
		return fmt.Errorf("construct compressor: %w", err)
	}
	if _, err := io.Copy(w, in); err != nil {
		return fmt.Errorf("compress %s: %w", inputPath, err)
	}
	return w.Close()
}

func decompressFile(inputPath, outputPath string, newReader func(io.Reader) (io.ReadCloser, error)) error {
	in, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", inputPath, err)
	}
	defer in.Close()

	r, err := newReader(in)
	if err != nil {
		return fmt.Errorf("construct decompressor: %w", err)
	}
	defer r.Close()

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", outputPath, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, r); err != nil {
		return fmt.Errorf("decompress %s: %w", inputPath, err)
	}
	return nil
}

func trimSuffix(s, suffix string) string {
	if len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix {
		return s[:len(s)-len(suffix)]
	}
	return s + ".out"
}
