package kv

import (
	"context"
	"sync"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps everything in process memory. Used by tests and by
// local runs without a redis instance.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string][]byte
	lists  map[string][][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values: make(map[string][]byte),
		lists:  make(map[string][][]byte),
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, ok := s.values[key]
	if !ok {
		return nil, ErrNotFound
	}

	return append([]byte(nil), value...), nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = append([]byte(nil), value...)

	return nil
}

func (s *MemoryStore) Del(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.values, key)
	delete(s.lists, key)

	return nil
}

func (s *MemoryStore) ListPush(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lists[key] = append(s.lists[key], append([]byte(nil), value...))

	return nil
}

func (s *MemoryStore) ListRange(_ context.Context, key string) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.lists[key]
	result := make([][]byte, 0, len(items))
	for _, item := range items {
		result = append(result, append([]byte(nil), item...))
	}

	return result, nil
}

func (s *MemoryStore) ListRem(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.lists[key]
	kept := items[:0]
	for _, item := range items {
		if string(item) != string(value) {
			kept = append(kept, item)
		}
	}
	s.lists[key] = kept

	return nil
}
