package memory

import (
	"context"
	"sync"

	domain "github.com/adityawrm/docintel/internal/domain/analyses"
)

// ResultStore is an in-memory stand-in for the bulk object store.
type ResultStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func NewResultStore() *ResultStore {
	return &ResultStore{objects: make(map[string][]byte)}
}

func (s *ResultStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.objects[key] = cp
	return nil
}

func (s *ResultStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

func (s *ResultStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}
