package storage

import (
	"context"
	"strings"
	"sync"
)

// MemoryStore is the in-process blob store used in dev mode and tests.
// It honors the same tolerance rules as the HTTP client: deleting an
// absent object succeeds, and a move whose source is gone succeeds when
// the destination already holds the object.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func (s *MemoryStore) Upload(_ context.Context, path string, content []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]byte, len(content))
	copy(stored, content)
	s.objects[path] = stored
	return memoryURL(path), nil
}

func (s *MemoryStore) Move(_ context.Context, src, dst string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	content, ok := s.objects[src]
	if !ok {
		if _, done := s.objects[dst]; done {
			return memoryURL(dst), nil
		}
		return "", ErrObjectNotFound
	}
	s.objects[dst] = content
	delete(s.objects, src)
	return memoryURL(dst), nil
}

func (s *MemoryStore) Delete(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.objects, path)
	return nil
}

func (s *MemoryStore) DeleteByPrefix(_ context.Context, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for path := range s.objects {
		if strings.HasPrefix(path, prefix) {
			delete(s.objects, path)
		}
	}
	return nil
}

// CountByPrefix reports objects under prefix; used by tests asserting
// that compensation left nothing behind.
func (s *MemoryStore) CountByPrefix(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for path := range s.objects {
		if strings.HasPrefix(path, prefix) {
			count++
		}
	}
	return count
}

// Get returns an object's content; used by tests.
func (s *MemoryStore) Get(path string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	content, ok := s.objects[path]
	return content, ok
}

func memoryURL(path string) string {
	return "memory://" + path
}
