// Package decision resolves which face candidate to crop when a detector
// reports more than one, and remembers the operator's answer so a photo is
// only ever asked about once.
package decision

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
)

var (
	// ErrNoCandidates is returned by Resolve for an empty candidate list
	ErrNoCandidates = errors.New("no face candidates")
	// ErrInvalidChoice is returned when the operator answer is not a valid
	// candidate index. It is fatal for the photo.
	ErrInvalidChoice = errors.New("invalid candidate choice")
	// ErrStaleDecision is returned when a stored index no longer fits the
	// current candidate list
	ErrStaleDecision = errors.New("stored decision out of range")
)

// Store persists one candidate index per image key. Entries are write-once:
// saving a key that already has a decision keeps the first one.
type Store interface {
	Lookup(ctx context.Context, key string) (int, bool, error)
	Save(ctx context.Context, key string, index int) error
	Close() error
}

// Key returns the store key for an image path: the absolute, cleaned path
func Key(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path %s: %w", path, err)
	}
	return filepath.Clean(abs), nil
}

// MemoryStore keeps decisions in memory only
type MemoryStore struct {
	mu        sync.RWMutex
	decisions map[string]int
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{decisions: make(map[string]int)}
}

// Lookup returns the stored index for key
func (s *MemoryStore) Lookup(ctx context.Context, key string) (int, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.decisions[key]
	return idx, ok, nil
}

// Save records index for key unless a decision already exists
func (s *MemoryStore) Save(ctx context.Context, key string, index int) error {
	if index < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidChoice, index)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.decisions[key]; !ok {
		s.decisions[key] = index
	}
	return nil
}

// Len returns the number of stored decisions
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.decisions)
}

// Close is a no-op
func (s *MemoryStore) Close() error {
	return nil
}
