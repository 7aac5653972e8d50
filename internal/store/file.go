package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// FileStore keeps the collection in a single pretty-printed JSON file.
type FileStore struct {
	path   string
	logger *slog.Logger
}

// NewFileStore returns a store backed by path. The file is created on first Save.
func NewFileStore(path string, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{path: path, logger: logger}
}

// Path returns the snapshot file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the snapshot file, falling back to Empty() on any failure.
func (s *FileStore) Load(_ context.Context) *Tasks {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !stderrors.Is(err, os.ErrNotExist) {
			s.logger.Warn("tasks file unreadable, using empty collection", "path", s.path, "error", err)
		}
		return Empty()
	}

	t, err := ParseTasks(data)
	if err != nil {
		s.logger.Warn("tasks file corrupt, using empty collection", "path", s.path, "error", err)
		return Empty()
	}
	return t
}

// Save writes the collection to a temp file in the same directory and renames
// it over the snapshot, so readers never observe a partial document.
func (s *FileStore) Save(_ context.Context, t *Tasks) error {
	data, err := t.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode tasks: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create tasks directory: %w", err)
	}

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return fmt.Errorf("failed to generate temp file name: %w", err)
	}
	tempPath := s.path + "." + hex.EncodeToString(randBytes) + ".tmp"

	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0600)
	if err != nil {
		return fmt.Errorf("failed to create temp tasks file: %w", err)
	}

	// Clean up temp file on failure (original file is preserved)
	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	if _, err := file.Write(data); err != nil {
		return fmt.Errorf("failed to write tasks file: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("failed to sync tasks file: %w", err)
	}
	if err := file.Close(); err != nil {
		file = nil
		return fmt.Errorf("failed to close tasks file: %w", err)
	}
	file = nil

	if err := os.Rename(tempPath, s.path); err != nil {
		return fmt.Errorf("failed to replace tasks file: %w", err)
	}

	success = true
	return nil
}
