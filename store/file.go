package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"medisocial/logger"
)

// FileStore keeps the slot as a single file. A missing file means no value.
type FileStore struct {
	mu   sync.Mutex
	path string
	log  *logger.Logger
}

func NewFileStore(opts ...Option) (*FileStore, error) {
	cfg := resolve(opts)
	if cfg.FilePath == "" {
		return nil, fmt.Errorf("file path not set")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), DefaultDirPermissions); err != nil {
		return nil, fmt.Errorf("failed to create draft directory: %w", err)
	}
	return &FileStore{path: cfg.FilePath, log: cfg.Logger.With("backend", "file", "path", cfg.FilePath)}, nil
}

func (s *FileStore) Load(context.Context) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read draft: %w", err)
	}
	return data, true, nil
}

// Save writes through a temporary file so a crash never leaves half a draft.
func (s *FileStore) Save(_ context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".draft-*")
	if err != nil {
		return fmt.Errorf("create temp draft: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write draft: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close draft: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace draft: %w", err)
	}
	s.log.Debug("draft saved", "bytes", len(data))
	return nil
}

func (s *FileStore) Close() error { return nil }
