package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	pstrings "groundtruth/pkg/platform/strings"
	"groundtruth/pkg/platform/sentinel"
)

// FileStore persists one JSON file per role under a cache directory, so
// separate test processes reuse each other's logins. Files are 0600 and
// written atomically; a corrupt file is discarded and reported as a miss
// rather than failing the run.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(role string) string {
	return filepath.Join(s.dir, "session-"+pstrings.SafeToken(role)+".json")
}

func (s *FileStore) Get(_ context.Context, role string) (Record, error) {
	raw, err := os.ReadFile(s.path(role))
	if errors.Is(err, fs.ErrNotExist) {
		return Record{}, fmt.Errorf("session for role %q: %w", role, sentinel.ErrNotFound)
	}
	if err != nil {
		return Record{}, fmt.Errorf("read session file: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		_ = os.Remove(s.path(role))
		return Record{}, fmt.Errorf("corrupt session file for %q discarded: %w", role, sentinel.ErrNotFound)
	}
	return rec, nil
}

func (s *FileStore) Put(_ context.Context, record Record) error {
	raw, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, "session-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp session file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod session file: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close session file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path(record.Role)); err != nil {
		return fmt.Errorf("replace session file: %w", err)
	}
	return nil
}

func (s *FileStore) Invalidate(_ context.Context, role string) error {
	err := os.Remove(s.path(role))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}

func (s *FileStore) Close() error {
	return nil
}
