package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backy/internal/backyerrors"
	"backy/internal/config"
	"backy/internal/dialect"
	"backy/internal/keyengine"
	"backy/internal/logging"
	"backy/internal/metadata"
	"backy/internal/storage"
)

func TestWorkingDirNamingConvention(t *testing.T) {
	base := t.TempDir()
	at := time.Date(2026, 3, 4, 15, 6, 7, 0, time.UTC)
	dir, err := workingDir(base, "shop", at)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "backy", "shop_20260304_150607"), dir)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestGenBackupIDFormat(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	id := genBackupID(at)
	assert.Regexp(t, `^backy-20260102-030405-[0-9a-f]{8}$`, id)
}

func TestPayloadExtensionSuffixChain(t *testing.T) {
	none := payloadExtension(config.CompressionConfig{}, config.SecurityConfig{})
	assert.Equal(t, "backy", none)

	compressed := payloadExtension(config.CompressionConfig{Enabled: true, Type: config.CompressionTarGz}, config.SecurityConfig{})
	assert.Equal(t, "backy.tar.gz", compressed)

	both := payloadExtension(
		config.CompressionConfig{Enabled: true, Type: config.CompressionGzip},
		config.SecurityConfig{Enabled: true},
	)
	assert.Equal(t, "backy.gz.enc", both)
}

func TestStripUUIDPrefix(t *testing.T) {
	name := "4f9c9b0a-1f2e-4d3c-9a1b-6e7f8a9b0c1d-shop_20260304_150607.backy"
	assert.Equal(t, "shop_20260304_150607.backy", stripUUIDPrefix(name))
	assert.Equal(t, "no_prefix.backy", stripUUIDPrefix("no_prefix.backy"))
}

func TestFeatureEnabledWildcard(t *testing.T) {
	assert.True(t, featureEnabled([]dialect.FeatureTag{dialect.FeatureFull}, dialect.FeatureTables))
	assert.True(t, featureEnabled([]dialect.FeatureTag{dialect.FeatureTables}, dialect.FeatureTables))
	assert.False(t, featureEnabled([]dialect.FeatureTag{dialect.FeatureTables}, dialect.FeatureViews))
}

func TestExtractPayloadSingleFileProducesOneContainer(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES").
		WithArgs("shop").
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME"}).AddRow("widgets"))
	mock.ExpectQuery("SELECT TABLE_NAME, REFERENCED_TABLE_NAME").
		WithArgs("shop").
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME", "REFERENCED_TABLE_NAME"}))
	mock.ExpectQuery("SHOW CREATE TABLE `widgets`").
		WillReturnRows(sqlmock.NewRows([]string{"Table", "Create Table"}).
			AddRow("widgets", "CREATE TABLE `widgets` (`id` int)"))

	dir := t.TempDir()
	cfg := config.BackupConfig{
		Database: config.DatabaseConfig{Database: "shop"},
		Features: []dialect.FeatureTag{dialect.FeatureTables},
	}

	paths, err := extractPayload(context.Background(), db, cfg, dir, "shop_20260304_150607")
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.FileExists(t, paths[0])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExtractPayloadMultiFileProducesOnePerFeature(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES").
		WithArgs("shop").
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME"}).AddRow("widgets"))
	mock.ExpectQuery("SELECT TABLE_NAME, REFERENCED_TABLE_NAME").
		WithArgs("shop").
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME", "REFERENCED_TABLE_NAME"}))
	mock.ExpectQuery("SHOW CREATE TABLE `widgets`").
		WillReturnRows(sqlmock.NewRows([]string{"Table", "Create Table"}).
			AddRow("widgets", "CREATE TABLE `widgets` (`id` int)"))

	dir := t.TempDir()
	cfg := config.BackupConfig{
		Database:  config.DatabaseConfig{Database: "shop"},
		Features:  []dialect.FeatureTag{dialect.FeatureTables},
		MultiFile: true,
	}

	paths, err := extractPayload(context.Background(), db, cfg, dir, "shop_20260304_150607")
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Contains(t, paths[0], "_tables.backy")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCompressPayloadGzipThenDecompressPayloadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shop_20260304_150607.backy")
	require.NoError(t, os.WriteFile(path, []byte("payload bytes"), 0o600))

	compressed, err := compressPayload([]string{path}, dir, config.CompressionConfig{Enabled: true, Type: config.CompressionGzip})
	require.NoError(t, err)
	require.Len(t, compressed, 1)
	assert.FileExists(t, compressed[0])

	decompressed, err := decompressPayload(compressed, config.CompressionGzip)
	require.NoError(t, err)
	require.Len(t, decompressed, 1)

	data, err := os.ReadFile(decompressed[0])
	require.NoError(t, err)
	assert.Equal(t, "payload bytes", string(data))
}

func TestCompressPayloadTarGzArchivesWholeDirectory(t *testing.T) {
	dir := t.TempDir()
	p1 := filepath.Join(dir, "shop_20260304_150607_tables.backy")
	p2 := filepath.Join(dir, "shop_20260304_150607_data.backy")
	require.NoError(t, os.WriteFile(p1, []byte("tables"), 0o600))
	require.NoError(t, os.WriteFile(p2, []byte("data"), 0o600))

	compressed, err := compressPayload([]string{p1, p2}, dir, config.CompressionConfig{Enabled: true, Type: config.CompressionTarGz})
	require.NoError(t, err)
	require.Len(t, compressed, 1)
	assert.True(t, filepath.Dir(compressed[0]) == dir)

	decompressed, err := decompressPayload(compressed, config.CompressionTarGz)
	require.NoError(t, err)
	require.Len(t, decompressed, 2)

	var contents []string
	for _, p := range decompressed {
		data, err := os.ReadFile(p)
		require.NoError(t, err)
		contents = append(contents, string(data))
	}
	assert.ElementsMatch(t, []string{"tables", "data"}, contents)
}

func TestEncryptPayloadThenDecryptPayloadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shop_20260304_150607.backy")
	require.NoError(t, os.WriteFile(path, []byte("secret payload"), 0o600))

	keystoreDir := t.TempDir()
	secCfg := config.SecurityConfig{
		Enabled:          true,
		Type:             config.KeyBackendLocal,
		Provider:         keystoreDir,
		KeystorePassword: "hunter2",
		RequestedVersion: "auto",
	}

	// shrink RSA key size for test speed; production wires DefaultRSAKeyBits.
	ks := keyengine.NewLocalKeystore(keystoreDir, "hunter2")
	ks.RSAKeyBits = 2048
	_, err := ks.Generate(context.Background())
	require.NoError(t, err)

	encrypted, sec, err := encryptPayload(context.Background(), []string{path}, dir, secCfg)
	require.NoError(t, err)
	require.Len(t, encrypted, 1)
	assert.True(t, sec.Enabled)
	assert.Equal(t, "backy_secret_key_1", sec.KeyVersion)
	assert.FileExists(t, filepath.Join(dir, sec.WrappedKeyFile))

	decrypted, err := decryptPayload(context.Background(), encrypted, filepath.Join(dir, sec.WrappedKeyFile),
		config.RestoreConfig{KeystorePassword: "hunter2"}, metadata.Security{
			Type:       sec.Type,
			Provider:   sec.Provider,
			KeyVersion: sec.KeyVersion,
		})
	require.NoError(t, err)
	require.Len(t, decrypted, 1)

	data, err := os.ReadFile(decrypted[0])
	require.NoError(t, err)
	assert.Equal(t, "secret payload", string(data))
}

func TestUploadBundleThenDownloadBundleRoundTrip(t *testing.T) {
	dir := t.TempDir()
	payloadPath := filepath.Join(dir, "shop_20260304_150607.backy")
	require.NoError(t, os.WriteFile(payloadPath, []byte("payload bytes"), 0o600))

	storageDir := t.TempDir()
	storageCfg := config.StorageConfig{
		Provider: config.StorageProviderLocal,
		Local:    &config.LocalStorageConfig{Dir: storageDir},
	}

	now := time.Date(2026, 3, 4, 15, 6, 7, 0, time.UTC)
	sidecar := &metadata.Sidecar{
		General:  metadata.General{ToolVersion: ToolVersion, CreatedAt: now},
		Backup:   metadata.Backup{ID: "backy-test", Timestamp: now},
		Database: metadata.Database{Type: "mysql"},
	}

	_, sidecarKey, err := uploadBundle(context.Background(), storageCfg, dir, []string{payloadPath}, sidecar, "shop", now, "backy")
	require.NoError(t, err)
	assert.NotEmpty(t, sidecarKey)
	assert.Len(t, sidecar.Backup.Files, 1)

	restoreDir := t.TempDir()
	downloaded, payloadPaths, wrappedKeyPath, manifestPath, err := downloadBundle(context.Background(), storageCfg, sidecarKey, restoreDir)
	require.NoError(t, err)
	assert.Equal(t, "backy-test", downloaded.Backup.ID)
	require.Len(t, payloadPaths, 1)
	assert.Empty(t, wrappedKeyPath)
	assert.Empty(t, manifestPath)

	data, err := os.ReadFile(payloadPaths[0])
	require.NoError(t, err)
	assert.Equal(t, "payload bytes", string(data))
}

func TestDownloadBundleRejectsSidecarWithNoPayloadFiles(t *testing.T) {
	storageDir := t.TempDir()
	provider, err := storage.NewLocalProvider(storageDir)
	require.NoError(t, err)

	sidecar := &metadata.Sidecar{
		Backup:   metadata.Backup{ID: "backy-empty", Files: []string{"orphan-key"}},
		Database: metadata.Database{Type: "mysql"},
		Security: metadata.Security{Enabled: true, Type: "local", WrappedKeyFile: "x.enc"},
		Storage:  metadata.Storage{Type: "local", ObjectKey: "orphan-key"},
	}
	data, err := sidecar.ToJSON()
	require.NoError(t, err)
	sidecarPath := filepath.Join(t.TempDir(), "metadata.json")
	require.NoError(t, os.WriteFile(sidecarPath, data, 0o600))
	sidecarKey, err := provider.Upload(context.Background(), sidecarPath)
	require.NoError(t, err)

	storageCfg := config.StorageConfig{Provider: config.StorageProviderLocal, Local: &config.LocalStorageConfig{Dir: storageDir}}
	_, _, _, _, err = downloadBundle(context.Background(), storageCfg, sidecarKey, t.TempDir())
	require.Error(t, err)
	berr, ok := err.(*backyerrors.Error)
	require.True(t, ok)
	assert.Equal(t, backyerrors.KindCorruptMetadata, berr.Kind)
}

func TestReplayCommitsOnSuccess(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	executed, skipped, err := replay(context.Background(), db,
		[]string{"CREATE TABLE widgets (id INT)", "INSERT INTO widgets VALUES (1)"},
		config.ConflictAbort, logging.NewDefault())
	require.NoError(t, err)
	assert.Equal(t, 2, executed)
	assert.Equal(t, 0, skipped)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaySkipPolicyContinuesPastConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO widgets").WillReturnError(assertErr{"duplicate key"})
	mock.ExpectExec("INSERT INTO gadgets").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	executed, skipped, err := replay(context.Background(), db,
		[]string{"INSERT INTO widgets VALUES (1)", "INSERT INTO gadgets VALUES (1)"},
		config.ConflictSkip, logging.NewDefault())
	require.NoError(t, err)
	assert.Equal(t, 1, executed)
	assert.Equal(t, 1, skipped)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReplayAbortPolicyRollsBackAndReturnsConflictDetected(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO widgets").WillReturnError(assertErr{"duplicate key"})
	mock.ExpectRollback()

	_, _, err = replay(context.Background(), db,
		[]string{"INSERT INTO widgets VALUES (1)"},
		config.ConflictAbort, logging.NewDefault())
	require.Error(t, err)
	berr, ok := err.(*backyerrors.Error)
	require.True(t, ok)
	assert.Equal(t, backyerrors.KindConflictDetected, berr.Kind)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunBackupRejectsInvalidConfigBeforeOpeningDatabase(t *testing.T) {
	_, err := RunBackup(context.Background(), config.BackupConfig{}, nil)
	require.Error(t, err)
}

func TestRunRestoreRejectsInvalidConfigBeforeOpeningDatabase(t *testing.T) {
	_, err := RunRestore(context.Background(), config.RestoreConfig{ConflictPolicy: "mangled"}, "some-key", nil)
	require.Error(t, err)
}

type assertErr struct{ msg string }

func (e assertErr) Error() string { return e.msg }
