package orchestrator

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"backy/internal/aead"
	"backy/internal/backyerrors"
	"backy/internal/compression"
	"backy/internal/config"
	"backy/internal/container"
	"backy/internal/dialect"
	"backy/internal/integrity"
	"backy/internal/keyengine"
	"backy/internal/logging"
	"backy/internal/metadata"
	"backy/internal/sqlparser"
	"backy/internal/storage"
)

// RestoreResult summarizes one completed restore.
type RestoreResult struct {
	Sidecar            *metadata.Sidecar
	StatementsExecuted int
	StatementsSkipped  int
}

// RunRestore drives the C12 state machine: Init -> Download ->
// Integrity-Verify? -> Decrypt? -> Decompress? -> Parse ->
// Replay-under-Transaction -> Commit/Rollback -> Cleanup. Every optional
// state is gated on the downloaded sidecar's own flags, never on cfg.
func RunRestore(ctx context.Context, cfg config.RestoreConfig, sidecarRemoteKey string, logger *logging.Logger) (*RestoreResult, error) {
	if logger == nil {
		logger = logging.NewDefault()
	}
	if verr := cfg.Validate(); verr != nil {
		return nil, verr
	}
	switch cfg.ConflictPolicy {
	case config.ConflictSkip, config.ConflictAbort:
	default:
		return nil, backyerrors.NewUnknownConflictMode(string(cfg.ConflictPolicy))
	}

	now := time.Now()
	log := logger.WithField("database", cfg.Database.Database)

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
	dir, err := workingDir(base, cfg.Database.Database, now)
	if err != nil {
		return nil, err
	}
	defer func() {
		log.WithField("dir", dir).Debug("cleaning up working directory")
		_ = os.RemoveAll(dir)
	}()

	_, doneDownload := stageLogger(log, "download")
	sidecar, payloadPaths, wrappedKeyPath, manifestPath, err := downloadBundle(ctx, cfg.Storage, sidecarRemoteKey, dir)
	doneDownload(err)
	if err != nil {
		return nil, err
	}

	if sidecar.Integrity.Enabled {
		_, doneVerify := stageLogger(log, "integrity_verify")
		err := integrity.Verify(dir, manifestPath, cfg.IntegrityPassword)
		doneVerify(err)
		if err != nil {
			return nil, err
		}
	}

	if sidecar.Security.Enabled {
		_, doneDecrypt := stageLogger(log, "decrypt")
		payloadPaths, err = decryptPayload(ctx, payloadPaths, wrappedKeyPath, cfg, sidecar.Security)
		doneDecrypt(err)
		if err != nil {
			return nil, err
		}
	}

	if sidecar.Compression.Enabled {
		_, doneDecompress := stageLogger(log, "decompress")
		payloadPaths, err = decompressPayload(payloadPaths, config.CompressionType(sidecar.Compression.Type))
		doneDecompress(err)
		if err != nil {
			return nil, err
		}
	}

	_, doneParse := stageLogger(log, "parse")
	statements, err := parsePayload(payloadPaths, cfg)
	doneParse(err)
	if err != nil {
		return nil, err
	}

	_, doneReplay := stageLogger(log, "replay")
	executed, skipped, err := replay(ctx, db, statements, cfg.ConflictPolicy, log)
	doneReplay(err)
	if err != nil {
		return nil, err
	}

	log.Infof("restore complete: %d executed, %d skipped", executed, skipped)
	return &RestoreResult{Sidecar: sidecar, StatementsExecuted: executed, StatementsSkipped: skipped}, nil
}

// downloadBundle downloads the sidecar and every file it lists, placing
// payload, wrapped-key and integrity-manifest files under dir with their
// pre-upload names restored.
func downloadBundle(ctx context.Context, cfg config.StorageConfig, sidecarRemoteKey, dir string) (*metadata.Sidecar, []string, string, string, error) {
	provider, err := (storage.Factory{}).CreateStorageProvider(ctx, storageProviderConfig(cfg))
	if err != nil {
		return nil, nil, "", "", err
	}

	sidecarTmp, err := provider.Download(ctx, sidecarRemoteKey)
	if err != nil {
		return nil, nil, "", "", err
	}
	defer os.Remove(sidecarTmp)

	data, err := os.ReadFile(sidecarTmp)
	if err != nil {
		return nil, nil, "", "", fmt.Errorf("read downloaded metadata sidecar: %w", err)
	}
	sidecar, err := metadata.FromJSON(data)
	if err != nil {
		return nil, nil, "", "", err
	}

	ancillary := 0
	if sidecar.Security.Enabled {
		ancillary++
	}
	if sidecar.Integrity.Enabled {
		ancillary++
	}
	payloadCount := len(sidecar.Backup.Files) - ancillary
	if payloadCount <= 0 {
		return nil, nil, "", "", backyerrors.NewCorruptMetadata("metadata sidecar lists no payload files")
	}

	var payloadPaths []string
	for _, key := range sidecar.Backup.Files[:payloadCount] {
		path, err := downloadInto(ctx, provider, key, dir)
		if err != nil {
			return nil, nil, "", "", err
		}
		payloadPaths = append(payloadPaths, path)
	}

	idx := payloadCount
	var wrappedKeyPath string
	if sidecar.Security.Enabled {
		wrappedKeyPath, err = downloadInto(ctx, provider, sidecar.Backup.Files[idx], dir)
		if err != nil {
			return nil, nil, "", "", err
		}
		idx++
	}

	var manifestPath string
	if sidecar.Integrity.Enabled {
		manifestPath, err = downloadInto(ctx, provider, sidecar.Backup.Files[idx], dir)
		if err != nil {
			return nil, nil, "", "", err
		}
	}

	return sidecar, payloadPaths, wrappedKeyPath, manifestPath, nil
}

func decryptPayload(ctx context.Context, paths []string, wrappedKeyPath string, cfg config.RestoreConfig, sec metadata.Security) ([]string, error) {
	secCfg := config.SecurityConfig{
		Type:             config.KeyBackendType(sec.Type),
		Provider:         sec.Provider,
		KeystorePassword: cfg.KeystorePassword,
	}
	backend, err := buildKeyBackend(secCfg)
	if err != nil {
		return nil, err
	}
	engine := keyengine.New(backend)

	wrapped, err := os.ReadFile(wrappedKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read wrapped key file: %w", err)
	}
	plainKey, err := engine.UnwrapKey(ctx, keyengine.Identity(sec.KeyVersion), wrapped)
	if err != nil {
		return nil, err
	}

	svc, err := aead.New(plainKey)
	if err != nil {
		return nil, err
	}

	out := make([]string, len(paths))
	for i, p := range paths {
		decrypted, err := decryptFileInPlace(svc, p)
		if err != nil {
			return nil, err
		}
		out[i] = decrypted
	}
	return out, nil
}

func decompressPayload(paths []string, compType config.CompressionType) ([]string, error) {
	decompressor, err := compression.New(compression.Type(compType))
	if err != nil {
		return nil, err
	}

	switch compType {
	case config.CompressionTarGz, config.CompressionZip:
		extractedDir, err := decompressor.Decompress(paths[0])
		if err != nil {
			return nil, err
		}
		entries, err := os.ReadDir(extractedDir)
		if err != nil {
			return nil, fmt.Errorf("list extracted bundle directory: %w", err)
		}
		var out []string
		for _, e := range entries {
			if !e.IsDir() {
				out = append(out, filepath.Join(extractedDir, e.Name()))
			}
		}
		sort.Strings(out)
		return out, nil
	default:
		out := make([]string, len(paths))
		for i, p := range paths {
			decompressed, err := decompressor.Decompress(p)
			if err != nil {
				return nil, err
			}
			out[i] = decompressed
		}
		return out, nil
	}
}

// parsePayload turns every payload file into an ordered list of executable
// SQL statements, honoring cfg.Mode. In backy mode, chunks whose feature is
// not in cfg.EnabledFeatures are dropped; file mode returns every parsed
// statement.
func parsePayload(paths []string, cfg config.RestoreConfig) ([]string, error) {
	var statements []string

	if cfg.Mode == config.RestoreModeFile {
		for _, p := range paths {
			f, err := os.Open(p)
			if err != nil {
				return nil, fmt.Errorf("open restore file %s: %w", p, err)
			}
			stmts, err := sqlparser.ParseAll(f)
			f.Close()
			if err != nil {
				return nil, backyerrors.NewParseError(err.Error())
			}
			statements = append(statements, stmts...)
		}
		return statements, nil
	}

	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return nil, fmt.Errorf("open restore container %s: %w", p, err)
		}
		chunks, err := container.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, err
		}
		for _, c := range chunks {
			if !featureEnabled(cfg.EnabledFeatures, dialect.FeatureTag(c.Feature)) {
				continue
			}
			text, err := container.BytesToStr(c.Payload)
			if err != nil {
				return nil, err
			}
			if strings.TrimSpace(text) == "" {
				continue
			}
			statements = append(statements, text)
		}
	}
	return statements, nil
}

func replay(ctx context.Context, db *sql.DB, statements []string, policy config.ConflictPolicy, log *logging.Logger) (executed, skipped int, err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("begin restore transaction: %w", err)
	}

	for _, stmt := range statements {
		if _, execErr := tx.ExecContext(ctx, stmt); execErr != nil {
			switch policy {
			case config.ConflictSkip:
				log.WithField("statement", logging.SanitizeSQL(stmt)).
					WithField("error", execErr.Error()).
					Warn("skipping statement due to conflict")
				skipped++
				continue
			case config.ConflictAbort:
				_ = tx.Rollback()
				return executed, skipped, backyerrors.NewConflictDetected(execErr)
			}
		}
		executed++
	}

	if err := tx.Commit(); err != nil {
		return executed, skipped, fmt.Errorf("commit restore transaction: %w", err)
	}
	return executed, skipped, nil
}
