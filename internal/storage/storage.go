// Package storage persists analysis records as sidecar files next to the
// assets they describe.
//
// A sidecar's existence is the "already analyzed" marker, so records are only
// ever created, never rewritten. Writes go through a temporary file in the
// same directory followed by a rename, so a crash can leave a stray *.tmp file
// but never a truncated sidecar. Stray temp files are removed by SweepTemp.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rewired-gh/ctascan/internal/models"
)

// TempSuffix ends every temporary file this package creates.
const TempSuffix = ".tmp"

var (
	// ErrSidecarExists is returned by Store when the asset already has a
	// sidecar of the requested kind.
	ErrSidecarExists = errors.New("sidecar already exists")
	// ErrUnreadable wraps decode failures of an existing sidecar.
	ErrUnreadable = errors.New("sidecar exists but is unreadable")
)

// Cache reads and creates sidecar files.
type Cache struct {
	filePermissions os.FileMode
}

// New creates a Cache that writes sidecars with the given permissions.
func New(filePermissions os.FileMode) *Cache {
	if filePermissions == 0 {
		filePermissions = 0644
	}
	return &Cache{filePermissions: filePermissions}
}

// SidecarPath returns the sidecar path for an asset and kind:
// <dir>/<asset stem><kind suffix>.
func SidecarPath(assetPath string, kind models.AnalysisKind) string {
	dir, name := filepath.Split(assetPath)
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	return filepath.Join(dir, stem+kind.Suffix())
}

// Exists reports whether the asset has a sidecar of the given kind.
func (c *Cache) Exists(assetPath string, kind models.AnalysisKind) (bool, error) {
	return fileExists(SidecarPath(assetPath, kind))
}

// Load returns the asset's sidecar record, or nil when there is none.
// A sidecar that cannot be decoded yields an error wrapping ErrUnreadable.
func (c *Cache) Load(assetPath string, kind models.AnalysisKind) (*models.Record, error) {
	rec, err := c.LoadSidecar(SidecarPath(assetPath, kind), kind)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return rec, err
}

// LoadSidecar decodes the sidecar at path.
func (c *Cache) LoadSidecar(path string, kind models.AnalysisKind) (*models.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sidecar: %w", err)
	}

	rec, err := models.DecodeRecord(kind, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreadable, filepath.Base(path), err)
	}
	return rec, nil
}

// Store creates the asset's sidecar. It never replaces an existing one.
func (c *Cache) Store(assetPath string, kind models.AnalysisKind, rec *models.Record) error {
	if rec.Kind != kind {
		return fmt.Errorf("record kind %s does not match %s", rec.Kind, kind)
	}
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("invalid record: %w", err)
	}

	path := SidecarPath(assetPath, kind)
	exists, err := fileExists(path)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrSidecarExists, filepath.Base(path))
	}

	data, err := json.MarshalIndent(rec, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	return WriteFileAtomic(path, data, c.filePermissions)
}

// SweepTemp removes path if it is a temporary file last modified before
// cutoff. Newer temp files may belong to a write in progress and are kept.
func (c *Cache) SweepTemp(path string, cutoff time.Time) (bool, error) {
	if !strings.HasSuffix(path, TempSuffix) {
		return false, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat temp file: %w", err)
	}
	if !info.ModTime().Before(cutoff) {
		return false, nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to remove temp file: %w", err)
	}
	return true, nil
}

// WriteFileAtomic writes data to a temporary file next to path and renames it
// into place.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir, name := filepath.Split(path)
	if dir == "" {
		dir = "."
	}

	tmp, err := os.CreateTemp(dir, "."+name+".*"+TempSuffix)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to sync file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Chmod(tempPath, perm); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to set file permissions: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath) // Clean up temp file on rename failure
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}

func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat %s: %w", filepath.Base(path), err)
}
