// Package metadata implements C10: building and parsing the JSON metadata
// sidecar that is the single source of truth for reversing a backup's
// pipeline during restore.
package metadata

import (
	"encoding/json"
	"fmt"
	"time"
)

// General carries tool-identity fields unrelated to any one backup.
type General struct {
	ToolVersion string `json:"tool_version"`
	CreatedAt   time.Time `json:"created_at"`
}

// Backup describes the backup bundle itself.
type Backup struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Files       []string  `json:"files"`
	TotalBytes  int64     `json:"total_bytes"`
	Description string    `json:"description,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// Database describes the source database and how it was backed up.
type Database struct {
	Type           string   `json:"type"`
	Version        string   `json:"version"`
	ConnectionID   string   `json:"connection_identity"`
	Features       []string `json:"features"`
	MultiFile      bool     `json:"multi_file"`
	RestoreMode    string   `json:"restore_mode"`
	ConflictMode   string   `json:"conflict_mode"`
}

// Compression describes whether/how the bundle was compressed.
type Compression struct {
	Enabled bool   `json:"enabled"`
	Type    string `json:"type,omitempty"`
	Level   int    `json:"level,omitempty"`
}

// Security describes whether/how the bundle was encrypted.
type Security struct {
	Enabled         bool   `json:"enabled"`
	Type            string `json:"type,omitempty"`
	Provider        string `json:"provider,omitempty"`
	KeySize         int    `json:"key_size,omitempty"`
	KeyVersion      string `json:"key_version,omitempty"`
	WrappedKeyFile  string `json:"wrapped_key_file,omitempty"`
}

// Integrity describes whether/how the bundle's integrity was sealed.
type Integrity struct {
	Enabled   bool   `json:"enabled"`
	Algorithm string `json:"algorithm,omitempty"`
}

// Storage describes where the bundle was uploaded.
type Storage struct {
	Type      string `json:"type"`
	ObjectKey string `json:"object_key"`
	Bucket    string `json:"bucket,omitempty"`
	Region    string `json:"region,omitempty"`
}

// Sidecar is the complete metadata document attached to every backup bundle.
type Sidecar struct {
	General     General     `json:"general"`
	Backup      Backup      `json:"backup"`
	Database    Database    `json:"database"`
	Compression Compression `json:"compression"`
	Security    Security    `json:"security"`
	Integrity   Integrity   `json:"integrity"`
	Storage     Storage     `json:"storage"`
}

// Validate checks that every field the reverse pipeline needs to invert a
// transform is present, per the component's invariant.
func (s *Sidecar) Validate() error {
	if s.Backup.ID == "" {
		return fmt.Errorf("metadata sidecar: backup.id is required")
	}
	if len(s.Backup.Files) == 0 {
		return fmt.Errorf("metadata sidecar: backup.files must not be empty")
	}
	if s.Database.Type == "" {
		return fmt.Errorf("metadata sidecar: database.type is required")
	}
	if s.Compression.Enabled && s.Compression.Type == "" {
		return fmt.Errorf("metadata sidecar: compression.type is required when compression.enabled")
	}
	if s.Security.Enabled {
		if s.Security.Type == "" {
			return fmt.Errorf("metadata sidecar: security.type is required when security.enabled")
		}
		if s.Security.WrappedKeyFile == "" {
			return fmt.Errorf("metadata sidecar: security.wrapped_key_file is required when security.enabled")
		}
	}
	if s.Integrity.Enabled && s.Integrity.Algorithm == "" {
		return fmt.Errorf("metadata sidecar: integrity.algorithm is required when integrity.enabled")
	}
	if s.Storage.ObjectKey == "" {
		return fmt.Errorf("metadata sidecar: storage.object_key is required")
	}
	return nil
}

// ToJSON serializes the sidecar, validating first.
func (s *Sidecar) ToJSON() ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return json.MarshalIndent(s, "", "  ")
}

// FromJSON parses and validates a sidecar document.
func FromJSON(data []byte) (*Sidecar, error) {
	var s Sidecar
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse metadata sidecar: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// SidecarFilename returns the conventional sidecar filename for a database
// name and timestamp, per §6.6: <db>_<timestamp>_metadata.<ext>.json.
func SidecarFilename(dbName string, ts time.Time, ext string) string {
	return fmt.Sprintf("%s_%s_metadata.%s.json", dbName, ts.Format("20060102_150405"), ext)
}
