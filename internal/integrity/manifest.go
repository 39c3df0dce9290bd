// Package integrity implements C9: building and verifying a per-directory
// integrity manifest, either a plain SHA-256 digest or a PBKDF2-derived
// keyed-MAC, one line per sibling file.
package integrity

import (
	"bufio"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"backy/internal/backyerrors"
)

// Algorithm selects the manifest's integrity scheme.
type Algorithm string

const (
	Digest  Algorithm = "digest"
	KeyedMAC Algorithm = "keyed_mac"
)

const (
	// PBKDF2Iterations is the minimum iteration count the component design
	// requires for keyed-MAC mode.
	PBKDF2Iterations = 100_000
	saltSize         = 16
	streamChunkSize  = 8 * 1024
)

// Build computes a manifest over every file in dir (non-recursive, matching
// the "sibling files" model of a backup bundle's working directory) and
// writes it to manifestPath. The manifest excludes itself.
func Build(dir, manifestPath string, algo Algorithm, password string) error {
	files, err := siblingFiles(dir, manifestPath)
	if err != nil {
		return err
	}

	var sb strings.Builder
	var key []byte
	if algo == KeyedMAC {
		salt := make([]byte, saltSize)
		if _, err := rand.Read(salt); err != nil {
			return fmt.Errorf("generate integrity salt: %w", err)
		}
		key = deriveKey(password, salt)
		sb.WriteString("salt: " + hex.EncodeToString(salt) + "\n")
	}

	for _, name := range files {
		tag, err := fileTag(filepath.Join(dir, name), algo, key)
		if err != nil {
			return err
		}
		sb.WriteString(tag + "  " + name + "\n")
	}

	return os.WriteFile(manifestPath, []byte(sb.String()), 0o644)
}

// Verify recomputes every file's digest/tag from manifestPath and compares.
// It returns nil on success, IntegrityMismatch(filename) on the first
// mismatch, or MissingFile(filename) if a listed file is absent.
func Verify(dir, manifestPath string, password string) error {
	f, err := os.Open(manifestPath)
	if err != nil {
		return fmt.Errorf("open integrity manifest: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var key []byte
	algo := Digest

	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "salt: ") {
			salt, err := hex.DecodeString(strings.TrimPrefix(line, "salt: "))
			if err != nil {
				return backyerrors.NewCorruptMetadata("invalid salt in integrity manifest")
			}
			key = deriveKey(password, salt)
			algo = KeyedMAC
			continue
		}

		parts := strings.SplitN(line, "  ", 2)
		if len(parts) != 2 {
			continue
		}
		wantTag, name := parts[0], parts[1]
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			return backyerrors.NewMissingFile(name)
		}
		gotTag, err := fileTag(path, algo, key)
		if err != nil {
			return err
		}
		if gotTag != wantTag {
			return backyerrors.NewIntegrityMismatch(name)
		}
	}
	return scanner.Err()
}

func fileTag(path string, algo Algorithm, key []byte) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s for integrity hashing: %w", path, err)
	}
	defer f.Close()

	if algo == KeyedMAC {
		mac := hmac.New(sha256.New, key)
		if _, err := streamCopy(mac, f); err != nil {
			return "", err
		}
		return hex.EncodeToString(mac.Sum(nil)), nil
	}

	h := sha256.New()
	if _, err := streamCopy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// streamCopy copies src into dst (a hash or MAC) in bounded chunks so large
// backup payloads never require buffering the whole file in memory.
func streamCopy(dst io.Writer, src io.Reader) (int64, error) {
	return io.CopyBuffer(dst, src, make([]byte, streamChunkSize))
}

func deriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, PBKDF2Iterations, 32, sha256.New)
}

// siblingFiles lists the regular files directly inside dir, sorted for
// deterministic manifest ordering, excluding the manifest file itself.
func siblingFiles(dir, manifestPath string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list backup bundle directory: %w", err)
	}
	manifestBase := filepath.Base(manifestPath)

	var names []string
	for _, e := range entries {
		if e.IsDir() || e.Name() == manifestBase {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// DefaultManifestPath returns the conventional manifest filename for algo
// inside dir, per §6.6 (integrity.sha256 / integrity.hmac).
func DefaultManifestPath(dir string, algo Algorithm) string {
	if algo == KeyedMAC {
		return filepath.Join(dir, "integrity.hmac")
	}
	return filepath.Join(dir, "integrity.sha256")
}
