package memory

import (
	"context"
	"sync"

	domainerrors "psephos/contexts/governance/artifacts/domain/errors"
)

// Store is the in-memory blob store for tests and local wiring.
type Store struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func NewStore() *Store {
	return &Store{blobs: make(map[string][]byte)}
}

func (s *Store) Put(_ context.Context, key string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = append([]byte(nil), data...)
	return "mem://" + key, nil
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.blobs[key]
	if !ok {
		return nil, domainerrors.ErrArtifactNotFound
	}
	return append([]byte(nil), data...), nil
}
