package compression

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"backy/internal/backyerrors"
)

// ZipCompressor archives a directory tree into a single .zip, the
// cross-platform-friendly alternative to TarGzCompressor for §6.6's
// multi-file output mode. Built from stdlib per the same D1 justification
// as TarGzCompressor.
type ZipCompressor struct{}

func (ZipCompressor) Compress(inputPath string) (string, error) {
	info, err := os.Stat(inputPath)
	if err != nil {
		return "", backyerrors.NewCompressionFailed(err)
	}
	if !info.IsDir() {
		return "", backyerrors.NewCompressionFailed(fmt.Errorf("zip compressor requires a directory, got file %s", inputPath))
	}

	outputPath := inputPath + ".zip"
	if err := zipDir(inputPath, outputPath); err != nil {
		return "", backyerrors.NewCompressionFailed(err)
	}
	_ = os.RemoveAll(inputPath)
	return outputPath, nil
}

func (ZipCompressor) Decompress(inputPath string) (string, error) {
	outputPath := trimSuffix(inputPath, ".zip")
	if err := unzipDir(inputPath, outputPath); err != nil {
		return "", backyerrors.NewCompressionFailed(err)
	}
	_ = os.Remove(inputPath)
	return outputPath, nil
}

func zipDir(srcDir, outputPath string) error {
	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", outputPath, err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)

	err = filepath.Walk(srcDir, func(path string, fi os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if fi.IsDir() {
			_, err := zw.Create(filepath.ToSlash(rel) + "/")
			return err
		}

		hdr, err := zip.FileInfoHeader(fi)
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		hdr.Method = zip.Deflate

		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(w, f)
		return err
	})
	if err != nil {
		return fmt.Errorf("walk %s: %w", srcDir, err)
	}

	return zw.Close()
}

func unzipDir(inputPath, destDir string) error {
	r, err := zip.OpenReader(inputPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", inputPath, err)
	}
	defer r.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", destDir, err)
	}

	for _, f := range r.File {
		target := filepath.Join(destDir, filepath.FromSlash(f.Name))
		if err := validateArchivePath(destDir, target); err != nil {
			return err
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}

		rc, err := f.Open()
		if err != nil {
			return err
		}
		out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			rc.Close()
			return err
		}
		_, err = io.Copy(out, rc)
		rc.Close()
		out.Close()
		if err != nil {
			return err
		}
	}
	return nil
}
