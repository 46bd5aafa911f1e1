package decision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var errNotAnObject = errors.New("decision store is not a JSON object")

// FileStore keeps decisions in a single JSON object mapping image keys to
// candidate indices. The file is read once at open and rewritten
// atomically on every save.
type FileStore struct {
	mu        sync.Mutex
	path      string
	decisions map[string]int
	logger    *slog.Logger
}

// OpenFileStore loads the store at path. A missing file yields an empty
// store. An unreadable or corrupt file is moved aside to
// <path>.corrupt-<unix> and the store starts empty.
func OpenFileStore(path string, logger *slog.Logger) (*FileStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &FileStore{
		path:      path,
		decisions: make(map[string]int),
		logger:    logger,
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return s, nil
	case err == nil:
		if len(data) == 0 {
			return s, nil
		}
		var decisions map[string]int
		if err = json.Unmarshal(data, &decisions); err == nil {
			if decisions != nil {
				s.decisions = decisions
				return s, nil
			}
			err = errNotAnObject
		}
	}

	backup := fmt.Sprintf("%s.corrupt-%d", path, time.Now().Unix())
	logger.Warn("decision store unreadable, starting empty",
		"path", path,
		"backup", backup,
		"error", err)
	if err := os.Rename(path, backup); err != nil {
		return nil, fmt.Errorf("failed to move corrupt decision store aside: %w", err)
	}

	return s, nil
}

// Path returns the backing file path
func (s *FileStore) Path() string {
	return s.path
}

// Lookup returns the stored index for key
func (s *FileStore) Lookup(ctx context.Context, key string) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.decisions[key]
	return idx, ok, nil
}

// Save records index for key and flushes the whole store to disk. An
// existing decision for key is kept.
func (s *FileStore) Save(ctx context.Context, key string, index int) error {
	if index < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidChoice, index)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.decisions[key]; ok {
		return nil
	}

	s.decisions[key] = index
	if err := s.flush(); err != nil {
		delete(s.decisions, key)
		return err
	}
	return nil
}

// flush writes the store via temp file, fsync and rename. Caller holds mu.
func (s *FileStore) flush() error {
	data, err := json.MarshalIndent(s.decisions, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal decisions: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write decisions: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync decisions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace decision store: %w", err)
	}
	return nil
}

// Close is a no-op; every Save is already durable
func (s *FileStore) Close() error {
	return nil
}
