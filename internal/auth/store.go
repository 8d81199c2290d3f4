package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotlike/internal/models"
	"github.com/desertthunder/spotlike/internal/shared"
)

const (
	dirPerm  os.FileMode = 0o700
	filePerm os.FileMode = 0o600
)

// Store persists the single [models.AuthRecord].
type Store interface {
	Load() (models.AuthRecord, error)
	Save(record models.AuthRecord) error
	Path() string
}

// FileStore keeps the auth record as an indented JSON file with owner-only permissions.
type FileStore struct {
	path   string
	logger *log.Logger
}

// NewFileStore creates a store for the record at path.
func NewFileStore(path string, logger *log.Logger) *FileStore {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &FileStore{path: path, logger: logger}
}

// Path returns the auth file location.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the record. A missing file yields an empty record; unreadable or malformed content is [shared.ErrStore].
func (s *FileStore) Load() (models.AuthRecord, error) {
	var record models.AuthRecord

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return record, nil
		}
		return record, fmt.Errorf("%w: could not read %s: %v", shared.ErrStore, s.path, err)
	}

	if err := json.Unmarshal(data, &record); err != nil {
		return models.AuthRecord{}, fmt.Errorf("%w: invalid format in %s: %v", shared.ErrStore, s.path, err)
	}

	return record, nil
}

// Save replaces the auth file with record.
//
// The parent directory is created 0700 and the file is written to a temp file then renamed over the old one.
// Failing to tighten permissions is logged, not returned.
func (s *FileStore) Save(record models.AuthRecord) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("%w: failed to create %s: %v", shared.ErrStore, dir, err)
	}
	if err := os.Chmod(dir, dirPerm); err != nil {
		s.logger.Warn("failed to restrict auth directory permissions", "dir", dir, "error", err)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: failed to encode record: %v", shared.ErrStore, err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(dir, ".spotify-auth-*.json")
	if err != nil {
		return fmt.Errorf("%w: failed to create temp file in %s: %v", shared.ErrStore, dir, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: failed to write %s: %v", shared.ErrStore, tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: failed to close %s: %v", shared.ErrStore, tmpPath, err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("%w: failed to replace %s: %v", shared.ErrStore, s.path, err)
	}

	if err := os.Chmod(s.path, filePerm); err != nil {
		s.logger.Warn("failed to restrict auth file permissions", "path", s.path, "error", err)
	}

	s.logger.Debug("auth record saved", "path", s.path)
	return nil
}
