package store

import (
	"context"
	"sync"
)

// MemoryStore is a map-backed Store for local development and tests. It
// mirrors the whole-document semantics of the Postgres backend, including
// the absence of isolation between concurrent load-modify-save cycles.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string][]byte)}
}

func (s *MemoryStore) Load(ctx context.Context, name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	body, ok := s.docs[name]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(body))
	copy(out, body)
	return out, nil
}

func (s *MemoryStore) Save(ctx context.Context, name string, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]byte, len(body))
	copy(stored, body)
	s.docs[name] = stored
	return nil
}

// NewLocker returns an in-process mutex Locker. Only meaningful when every
// request is served by the same process, which is exactly the memory
// backend's deployment topology.
func (s *MemoryStore) NewLocker() Locker {
	return &memLocker{}
}

type memLocker struct {
	mu sync.Mutex
}

func (l *memLocker) TryAcquire(ctx context.Context) (bool, error) {
	return l.mu.TryLock(), nil
}

func (l *memLocker) Release(ctx context.Context) error {
	l.mu.Unlock()
	return nil
}
