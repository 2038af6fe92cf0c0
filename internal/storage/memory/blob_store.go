// Package memory implements an in-memory profile archive for tests.
package memory

import (
	"context"
	"sync"
)

// BlobStore keeps saved objects in a map.
type BlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func New() *BlobStore {
	return &BlobStore{objects: make(map[string][]byte)}
}

// Save records data under objectName.
func (s *BlobStore) Save(_ context.Context, objectName string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	s.objects[objectName] = buf
	return nil
}

// Get returns the stored object and whether it exists.
func (s *BlobStore) Get(objectName string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[objectName]
	return data, ok
}

// Len returns the number of stored objects.
func (s *BlobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}
