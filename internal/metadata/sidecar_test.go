package metadata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSidecar() *Sidecar {
	return &Sidecar{
		General:  General{ToolVersion: "1.0.0", CreatedAt: time.Now()},
		Backup:   Backup{ID: "backup-1", Timestamp: time.Now(), Files: []string{"dump.backy"}, TotalBytes: 100},
		Database: Database{Type: "mysql", Version: "8.0", Features: []string{"tables", "data"}, RestoreMode: "backy", ConflictMode: "abort"},
		Storage:  Storage{Type: "local", ObjectKey: "dump.backy"},
	}
}

func TestSidecarRoundTrip(t *testing.T) {
	s := sampleSidecar()
	data, err := s.ToJSON()
	require.NoError(t, err)

	parsed, err := FromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, s.Backup.ID, parsed.Backup.ID)
	assert.Equal(t, s.Database.Type, parsed.Database.Type)
}

func TestSidecarValidateRequiresBackupID(t *testing.T) {
	s := sampleSidecar()
	s.Backup.ID = ""
	_, err := s.ToJSON()
	require.Error(t, err)
}

func TestSidecarValidateRequiresWrappedKeyWhenSecurityEnabled(t *testing.T) {
	s := sampleSidecar()
	s.Security.Enabled = true
	s.Security.Type = "keystore"
	_, err := s.ToJSON()
	require.Error(t, err)
}

func TestSidecarFilenameFormat(t *testing.T) {
	ts := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "mydb_20240302_100000_metadata.backy.json", SidecarFilename("mydb", ts, "backy"))
}
