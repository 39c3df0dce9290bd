package orchestrator

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"backy/internal/aead"
	"backy/internal/compression"
	"backy/internal/config"
	"backy/internal/container"
	"backy/internal/dialect"
	"backy/internal/integrity"
	"backy/internal/keyengine"
	"backy/internal/logging"
	"backy/internal/metadata"
	"backy/internal/storage"
)

// BackupResult is what RunBackup hands back once the bundle is uploaded.
type BackupResult struct {
	BackupID         string
	Sidecar          *metadata.Sidecar
	SidecarRemoteKey string
}

// RunBackup drives the C11 state machine: Init -> WorkingDir -> Extract ->
// Compress? -> Encrypt? -> Integrity? -> Metadata -> Upload -> Cleanup.
func RunBackup(ctx context.Context, cfg config.BackupConfig, logger *logging.Logger) (result *BackupResult, err error) {
	if logger == nil {
		logger = logging.NewDefault()
	}
	if verr := cfg.Validate(); verr != nil {
		return nil, verr
	}

	now := time.Now()
	backupID := genBackupID(now)
	log := logger.WithField("backup_id", backupID)

	_, doneInit := stageLogger(log, "init")
	db, err := openDatabase(ctx, cfg.Database)
	doneInit(err)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	base, err := defaultBaseDir()
	if err != nil {
		return nil, err
	}
	_, doneWorkdir := stageLogger(log, "working_dir")
	dir, err := workingDir(base, cfg.Database.Database, now)
	doneWorkdir(err)
	if err != nil {
		return nil, err
	}
	defer func() {
		log.WithField("dir", dir).Debug("cleaning up working directory")
		_ = os.RemoveAll(dir)
	}()

	basePayloadName := fmt.Sprintf("%s_%s", cfg.Database.Database, now.Format("20060102_150405"))

	_, doneExtract := stageLogger(log, "extract")
	payloadPaths, err := extractPayload(ctx, db, cfg, dir, basePayloadName)
	doneExtract(err)
	if err != nil {
		return nil, err
	}

	if cfg.Compression.Enabled {
		_, doneCompress := stageLogger(log, "compress")
		payloadPaths, err = compressPayload(payloadPaths, dir, cfg.Compression)
		doneCompress(err)
		if err != nil {
			return nil, err
		}
	}

	var security metadata.Security
	if cfg.Security.Enabled {
		_, doneEncrypt := stageLogger(log, "encrypt")
		payloadPaths, security, err = encryptPayload(ctx, payloadPaths, dir, cfg.Security)
		doneEncrypt(err)
		if err != nil {
			return nil, err
		}
	}

	var integrityMeta metadata.Integrity
	if cfg.Integrity.Enabled {
		_, doneIntegrity := stageLogger(log, "integrity")
		algo := integrity.Algorithm(cfg.Integrity.Algorithm)
		manifestPath := integrity.DefaultManifestPath(dir, algo)
		err = integrity.Build(dir, manifestPath, algo, cfg.Integrity.Password)
		doneIntegrity(err)
		if err != nil {
			return nil, err
		}
		integrityMeta = metadata.Integrity{Enabled: true, Algorithm: string(cfg.Integrity.Algorithm)}
	}

	ext := payloadExtension(cfg.Compression, cfg.Security)
	sidecar := &metadata.Sidecar{
		General: metadata.General{ToolVersion: ToolVersion, CreatedAt: now},
		Backup: metadata.Backup{
			ID:          backupID,
			Timestamp:   now,
			Description: cfg.Description,
			ExpiresAt:   expiresAt(now, cfg.ExpiresIn),
		},
		Database: metadata.Database{
			Type:         "mysql",
			Version:      databaseVersion(ctx, db),
			ConnectionID: fmt.Sprintf("%s@%s:%d/%s", cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database),
			Features:     featureStrings(cfg.Features),
			MultiFile:    cfg.MultiFile,
			RestoreMode:  string(config.RestoreModeBacky),
			ConflictMode: string(config.ConflictAbort),
		},
		Compression: metadata.Compression{
			Enabled: cfg.Compression.Enabled,
			Type:    string(cfg.Compression.Type),
			Level:   cfg.Compression.Level,
		},
		Security:  security,
		Integrity: integrityMeta,
	}

	_, doneUpload := stageLogger(log, "upload")
	_, sidecarKey, err := uploadBundle(ctx, cfg.Storage, dir, payloadPaths, sidecar, cfg.Database.Database, now, ext)
	doneUpload(err)
	if err != nil {
		return nil, err
	}

	sidecar.Backup.TotalBytes = totalSize(payloadPaths)

	log.Infof("backup %s complete: %d bytes across %d file(s)", backupID, sidecar.Backup.TotalBytes, len(payloadPaths))
	return &BackupResult{BackupID: backupID, Sidecar: sidecar, SidecarRemoteKey: sidecarKey}, nil
}

func featureStrings(features []dialect.FeatureTag) []string {
	out := make([]string, len(features))
	for i, f := range features {
		out[i] = string(f)
	}
	return out
}

func expiresAt(now time.Time, expiresIn string) *time.Time {
	if expiresIn == "" {
		return nil
	}
	d, err := time.ParseDuration(expiresIn)
	if err != nil {
		return nil
	}
	t := now.Add(d)
	return &t
}

// payloadExtension mirrors the suffix chain the compression and encryption
// stages actually append to a payload file's name, for the metadata
// sidecar's filename convention (§6.6).
func payloadExtension(comp config.CompressionConfig, sec config.SecurityConfig) string {
	ext := "backy"
	if comp.Enabled {
		switch comp.Type {
		case config.CompressionGzip:
			ext += ".gz"
		case config.CompressionZstd:
			ext += ".zst"
		case config.CompressionLZ4:
			ext += ".lz4"
		case config.CompressionTarGz:
			ext += ".tar.gz"
		case config.CompressionZip:
			ext += ".zip"
		}
	}
	if sec.Enabled {
		ext += ".enc"
	}
	return ext
}

func featureEnabled(features []dialect.FeatureTag, want dialect.FeatureTag) bool {
	for _, f := range features {
		if f == want || f == dialect.FeatureFull {
			return true
		}
	}
	return false
}

// extractPayload runs the dialect extractor and fans its lazy statement
// sequence into one container file (single-bundle mode) or one container
// file per enabled feature (multi-file mode), returning the payload paths
// in upload order.
func extractPayload(ctx context.Context, db *sql.DB, cfg config.BackupConfig, dir, basePayloadName string) ([]string, error) {
	extractor := dialect.NewMySQLExtractor(db, cfg.Database.Database)
	it, err := extractor.Extract(ctx, cfg.Features)
	if err != nil {
		return nil, err
	}

	if !cfg.MultiFile {
		path := filepath.Join(dir, basePayloadName+".backy")
		w, err := container.NewWriter(path)
		if err != nil {
			return nil, err
		}
		if err := drainInto(ctx, it, map[dialect.FeatureTag]*container.Writer{"": w}, true); err != nil {
			_ = w.Close()
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return []string{path}, nil
	}

	writers := make(map[dialect.FeatureTag]*container.Writer)
	var order []dialect.FeatureTag
	for _, f := range dialect.AllFeatures {
		if !featureEnabled(cfg.Features, f) {
			continue
		}
		path := filepath.Join(dir, fmt.Sprintf("%s_%s.backy", basePayloadName, f))
		w, err := container.NewWriter(path)
		if err != nil {
			for _, opened := range writers {
				_ = opened.Close()
			}
			return nil, err
		}
		writers[f] = w
		// The extractor emits the database preamble once, into the first
		// feature's file; every later per-feature file gets its own copy.
		if len(order) > 0 {
			preamble := fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`;\nUSE `%s`;\n", cfg.Database.Database, cfg.Database.Database)
			if err := w.Write(string(f), container.StrToBytes(preamble)); err != nil {
				for _, opened := range writers {
					_ = opened.Close()
				}
				return nil, err
			}
		}
		order = append(order, f)
	}

	if err := drainInto(ctx, it, writers, false); err != nil {
		for _, w := range writers {
			_ = w.Close()
		}
		return nil, err
	}

	var paths []string
	for _, f := range order {
		if err := writers[f].Close(); err != nil {
			return nil, err
		}
		paths = append(paths, filepath.Join(dir, fmt.Sprintf("%s_%s.backy", basePayloadName, f)))
	}
	return paths, nil
}

// drainInto pulls every statement from it and writes each as one chunk,
// routing by feature when singleFile is false (multi-file mode) or
// always to the sole writer under key "" otherwise.
func drainInto(ctx context.Context, it *dialect.Iterator, writers map[dialect.FeatureTag]*container.Writer, singleFile bool) error {
	for {
		stmt, ok, err := it.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		var w *container.Writer
		if singleFile {
			w = writers[""]
		} else {
			w = writers[stmt.Feature]
		}
		if w == nil {
			continue
		}
		if err := w.Write(string(stmt.Feature), container.StrToBytes(stmt.SQL)); err != nil {
			return err
		}
	}
}

func compressPayload(paths []string, dir string, cfg config.CompressionConfig) ([]string, error) {
	compressor, err := compression.New(compression.Type(cfg.Type))
	if err != nil {
		return nil, err
	}

	switch cfg.Type {
	case config.CompressionTarGz, config.CompressionZip:
		archived, err := compressor.Compress(dir)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("recreate working directory: %w", err)
		}
		dest := filepath.Join(dir, filepath.Base(archived))
		if err := os.Rename(archived, dest); err != nil {
			return nil, fmt.Errorf("move archived bundle into working directory: %w", err)
		}
		return []string{dest}, nil
	default:
		out := make([]string, len(paths))
		for i, p := range paths {
			compressed, err := compressor.Compress(p)
			if err != nil {
				return nil, err
			}
			out[i] = compressed
		}
		return out, nil
	}
}

func encryptPayload(ctx context.Context, paths []string, dir string, cfg config.SecurityConfig) ([]string, metadata.Security, error) {
	backend, err := buildKeyBackend(cfg)
	if err != nil {
		return nil, metadata.Security{}, err
	}
	engine := keyengine.New(backend)

	identity, err := engine.Resolve(ctx, cfg.RequestedVersion)
	if err != nil {
		return nil, metadata.Security{}, err
	}

	plainKey, wrapped, err := engine.WrapFreshKey(ctx, identity)
	if err != nil {
		return nil, metadata.Security{}, err
	}

	svc, err := aead.New(plainKey)
	if err != nil {
		return nil, metadata.Security{}, err
	}

	wrappedKeyFile := string(identity) + ".enc"
	wrappedKeyPath := filepath.Join(dir, wrappedKeyFile)
	if err := os.WriteFile(wrappedKeyPath, wrapped, 0o600); err != nil {
		return nil, metadata.Security{}, fmt.Errorf("write wrapped key file: %w", err)
	}

	out := make([]string, len(paths))
	for i, p := range paths {
		encrypted, err := encryptFileInPlace(svc, p)
		if err != nil {
			return nil, metadata.Security{}, err
		}
		out[i] = encrypted
	}

	sec := metadata.Security{
		Enabled:        true,
		Type:           string(cfg.Type),
		Provider:       cfg.Provider,
		KeySize:        aead.KeySize,
		KeyVersion:     string(identity),
		WrappedKeyFile: wrappedKeyFile,
	}
	return out, sec, nil
}

// uploadBundle uploads every payload file, then the wrapped-key file and
// integrity manifest if present, then the metadata sidecar itself (written
// last so it can be filled in with the remote keys of everything it
// describes), returning (backup.Files remote keys, sidecar's own remote key).
func uploadBundle(ctx context.Context, cfg config.StorageConfig, dir string, payloadPaths []string, sidecar *metadata.Sidecar, dbName string, now time.Time, ext string) ([]string, string, error) {
	provider, err := (storage.Factory{}).CreateStorageProvider(ctx, storageProviderConfig(cfg))
	if err != nil {
		return nil, "", err
	}

	var remoteKeys []string
	for _, p := range payloadPaths {
		key, err := provider.Upload(ctx, p)
		if err != nil {
			return nil, "", err
		}
		remoteKeys = append(remoteKeys, key)
	}

	if sidecar.Security.Enabled {
		key, err := provider.Upload(ctx, filepath.Join(dir, sidecar.Security.WrappedKeyFile))
		if err != nil {
			return nil, "", err
		}
		remoteKeys = append(remoteKeys, key)
	}

	if sidecar.Integrity.Enabled {
		algo := integrity.Algorithm(sidecar.Integrity.Algorithm)
		manifestPath := integrity.DefaultManifestPath(dir, algo)
		key, err := provider.Upload(ctx, manifestPath)
		if err != nil {
			return nil, "", err
		}
		remoteKeys = append(remoteKeys, key)
	}

	sidecar.Backup.Files = remoteKeys
	sidecar.Storage = metadata.Storage{Type: string(cfg.Provider), ObjectKey: remoteKeys[0]}

	data, err := sidecar.ToJSON()
	if err != nil {
		return nil, "", fmt.Errorf("marshal metadata sidecar: %w", err)
	}
	sidecarPath := filepath.Join(dir, metadata.SidecarFilename(dbName, now, ext))
	if err := os.WriteFile(sidecarPath, data, 0o600); err != nil {
		return nil, "", fmt.Errorf("write metadata sidecar: %w", err)
	}

	sidecarKey, err := provider.Upload(ctx, sidecarPath)
	if err != nil {
		return nil, "", err
	}

	return remoteKeys, sidecarKey, nil
}
