// Package session owns the broker session lifecycle: durable credential
// persistence and the manager that validates, refreshes, and clears the
// single process-wide session.
package session

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"kitebridge/internal/domain"
)

// FileStore persists one session record as a JSON file. Writes go through
// a temp file and rename so a crash mid-write cannot leave a partial
// record.
type FileStore struct {
	path string
	log  *slog.Logger
}

// NewFileStore creates a FileStore at the given path.
func NewFileStore(path string, log *slog.Logger) *FileStore {
	return &FileStore{path: path, log: log}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the persisted session. A missing file, unreadable JSON, or an
// incomplete record all return (nil, nil): partial records are treated as
// absent.
func (s *FileStore) Load() (*domain.Session, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading session file: %w", err)
	}

	var sess domain.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		s.log.Warn("session file is not valid JSON, treating as absent", "path", s.path, "error", err)
		return nil, nil
	}
	if !sess.Complete() {
		s.log.Warn("session file is incomplete, treating as absent", "path", s.path)
		return nil, nil
	}
	return &sess, nil
}

// Save writes the session atomically: marshal, write to a temp file in the
// same directory, fsync, rename over the target.
func (s *FileStore) Save(sess domain.Session) error {
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling session: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating session dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return fmt.Errorf("creating temp session file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing session: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing session: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("setting session mode: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replacing session file: %w", err)
	}
	return nil
}

// Clear deletes the persisted session. It is idempotent and reports
// whether a record was actually removed.
func (s *FileStore) Clear() (bool, error) {
	err := os.Remove(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("removing session file: %w", err)
	}
	return true, nil
}
