// Package orchestrator implements C11 and C12: the backup and restore state
// machines that compose every other component into one invocation, grounded
// on genc-murat-mysql-schema-sync/internal/backup/manager.go's orchestration
// idiom (structured per-stage logging, guaranteed cleanup).
package orchestrator

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"backy/internal/aead"
	"backy/internal/backyerrors"
	"backy/internal/config"
	"backy/internal/keyengine"
	"backy/internal/logging"
	"backy/internal/storage"
)

// ToolVersion is reported in every metadata sidecar's General section.
const ToolVersion = "1.0.0"

// workingDir builds and creates the per-backup directory described by
// spec.md §6.6: <db>_<YYYYMMDD_HHMMSS> under an OS-appropriate base.
func workingDir(baseDir, dbName string, at time.Time) (string, error) {
	name := fmt.Sprintf("%s_%s", dbName, at.Format("20060102_150405"))
	dir := filepath.Join(baseDir, "backy", name)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create working directory: %w", err)
	}
	return dir, nil
}

// defaultBaseDir resolves the OS-appropriate base for working directories.
func defaultBaseDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return dir, nil
}

// genBackupID mirrors the teacher's GenerateBackupID: a timestamp prefix for
// sortability plus a short UUID suffix for uniqueness.
func genBackupID(at time.Time) string {
	id := uuid.New().String()
	short := id[:8]
	return fmt.Sprintf("backy-%s-%s", at.UTC().Format("20060102-150405"), short)
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, backyerrors.NewConnectionFailed(err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, backyerrors.NewConnectionFailed(err)
	}
	return db, nil
}

func databaseVersion(ctx context.Context, db *sql.DB) string {
	var version string
	if err := db.QueryRowContext(ctx, "SELECT VERSION()").Scan(&version); err != nil {
		return "unknown"
	}
	return version
}

func storageProviderConfig(cfg config.StorageConfig) storage.ProviderConfig {
	pc := storage.ProviderConfig{Provider: storage.Type(cfg.Provider)}
	switch cfg.Provider {
	case config.StorageProviderLocal:
		if cfg.Local != nil {
			pc.LocalDir = cfg.Local.Dir
		}
	case config.StorageProviderS3:
		if cfg.S3 != nil {
			pc.S3Bucket = cfg.S3.Bucket
			pc.S3Region = cfg.S3.Region
			pc.S3Prefix = cfg.S3.Prefix
		}
	case config.StorageProviderAzure:
		if cfg.Azure != nil {
			pc.AzureAccount = cfg.Azure.Account
			pc.AzureKey = cfg.Azure.AccountKey
			pc.AzureContainer = cfg.Azure.Container
		}
	case config.StorageProviderGCS:
		if cfg.GCS != nil {
			pc.GCSBucket = cfg.GCS.Bucket
			pc.GCSCredentialsFile = cfg.GCS.CredentialsFile
		}
	}
	if len(cfg.Replicas) > 0 {
		pc.Replicas = make([]storage.ProviderConfig, len(cfg.Replicas))
		for i, rc := range cfg.Replicas {
			pc.Replicas[i] = storageProviderConfig(rc)
		}
	}
	return pc
}

// buildKeyBackend resolves the key-management backend named by sec, per
// §4.6's pluggable local-keystore/cloud-KMS contract.
func buildKeyBackend(sec config.SecurityConfig) (keyengine.Backend, error) {
	switch sec.Type {
	case config.KeyBackendLocal:
		return keyengine.NewLocalKeystore(sec.Provider, sec.KeystorePassword), nil
	case config.KeyBackendKMS:
		return keyengine.NewAWSKMSBackend(sec.Provider)
	default:
		return nil, backyerrors.NewConfigurationError(fmt.Sprintf("unsupported key backend type %q", sec.Type))
	}
}

// encryptFileInPlace AEAD-encrypts path's contents and writes the result to
// path+".enc", removing the plaintext original on success.
func encryptFileInPlace(svc *aead.Service, path string) (string, error) {
	plain, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s for encryption: %w", path, err)
	}
	blob, err := svc.Encrypt(plain)
	if err != nil {
		return "", err
	}
	dest := path + ".enc"
	if err := os.WriteFile(dest, blob, 0o600); err != nil {
		return "", fmt.Errorf("write encrypted %s: %w", dest, err)
	}
	_ = os.Remove(path)
	return dest, nil
}

// RotateKey asks the configured key backend to mint a new active key
// version, for the `backy config rotate-key` subcommand. It returns the
// new key identity as a string for display.
func RotateKey(ctx context.Context, sec config.SecurityConfig) (string, error) {
	backend, err := buildKeyBackend(sec)
	if err != nil {
		return "", err
	}
	identity, err := keyengine.New(backend).Rotate(ctx)
	if err != nil {
		return "", err
	}
	return string(identity), nil
}

// decryptFileInPlace is encryptFileInPlace's inverse: path must end in
// ".enc"; the plaintext is written alongside with that suffix stripped.
func decryptFileInPlace(svc *aead.Service, path string) (string, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s for decryption: %w", path, err)
	}
	plain, err := svc.Decrypt(blob)
	if err != nil {
		return "", err
	}
	dest := trimEncSuffix(path)
	if err := os.WriteFile(dest, plain, 0o600); err != nil {
		return "", fmt.Errorf("write decrypted %s: %w", dest, err)
	}
	_ = os.Remove(path)
	return dest, nil
}

func trimEncSuffix(path string) string {
	const suffix = ".enc"
	if len(path) > len(suffix) && path[len(path)-len(suffix):] == suffix {
		return path[:len(path)-len(suffix)]
	}
	return path
}

func totalSize(paths []string) int64 {
	var total int64
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil {
			total += info.Size()
		}
	}
	return total
}

func stageLogger(logger *logging.Logger, stage string) (*logging.Logger, func(error)) {
	scoped := logger.WithField("stage", stage)
	return scoped, scoped.LogOperation(stage)
}

var uuidPrefixPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}-`)

// stripUUIDPrefix undoes LocalProvider/S3Provider's "<uuid>-<basename>"
// remote key naming, recovering the original filename a downloaded object
// had in the working directory at upload time.
func stripUUIDPrefix(name string) string {
	return uuidPrefixPattern.ReplaceAllString(name, "")
}

// downloadInto downloads remoteKey via provider and moves it into dir under
// its original (uuid-stripped) filename, returning the final local path.
func downloadInto(ctx context.Context, provider storage.Provider, remoteKey, dir string) (string, error) {
	tmp, err := provider.Download(ctx, remoteKey)
	if err != nil {
		return "", err
	}
	dest := filepath.Join(dir, stripUUIDPrefix(filepath.Base(tmp)))
	if err := os.Rename(tmp, dest); err != nil {
		return "", fmt.Errorf("move downloaded object into working directory: %w", err)
	}
	return dest, nil
}
