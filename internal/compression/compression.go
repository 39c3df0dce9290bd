// Package compression implements D1: the file-to-file compression adapters
// behind the §6.3 contract, for the formats the metadata sidecar recognizes.
package compression

import (
	"fmt"

	"backy/internal/backyerrors"
)

// Type names the recognized compression formats for metadata interoperability.
type Type string

const (
	None   Type = "none"
	Gzip   Type = "gzip"
	Zstd   Type = "zstd"
	LZ4    Type = "lz4"
	TarGz  Type = "tar+gzip"
	Zip    Type = "zip"
)

// Compressor is the §6.3 contract: compress/decompress a path in place,
// removing the input on success.
type Compressor interface {
	Compress(inputPath string) (outputPath string, err error)
	Decompress(inputPath string) (outputPath string, err error)
}

// New dispatches to a concrete Compressor by Type, mirroring the teacher's
// storage_factory.go switch-dispatch idiom.
func New(t Type) (Compressor, error) {
	switch t {
	case Gzip:
		return &GzipCompressor{}, nil
	case Zstd:
		return &ZstdCompressor{}, nil
	case LZ4:
		return &LZ4Compressor{}, nil
	case TarGz:
		return &TarGzCompressor{}, nil
	case Zip:
		return &ZipCompressor{}, nil
	default:
		return nil, backyerrors.NewCompressionFailed(fmt.Errorf("unsupported compression type %q", t))
	}
}
