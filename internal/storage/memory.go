package storage

import (
	"context"
	"sync"
	"time"
)

// sweepInterval bounds how often a write scans for expired items.
const sweepInterval = time.Minute

type memoryItem struct {
	artifact  Artifact
	expiresAt time.Time
}

// MemoryStore is the single-process backend used when Redis and R2 are not
// configured, and in tests.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]memoryItem
	ttl   TTLFunc
	now   func() time.Time

	lastSweep time.Time
}

// NewMemoryStore creates an in-memory store. A nil ttl keeps items forever.
func NewMemoryStore(ttl TTLFunc) *MemoryStore {
	return &MemoryStore{
		items: make(map[string]memoryItem),
		ttl:   ttl,
		now:   time.Now,
	}
}

func memoryKey(kind Kind, id string) string {
	return string(kind) + ":" + id
}

func (s *MemoryStore) Put(ctx context.Context, kind Kind, data []byte, mimeType string) (string, error) {
	id := NewID()
	if err := s.PutWithID(ctx, kind, id, data, mimeType); err != nil {
		return "", err
	}
	return id, nil
}

func (s *MemoryStore) PutWithID(_ context.Context, kind Kind, id string, data []byte, mimeType string) error {
	buf := make([]byte, len(data))
	copy(buf, data)

	item := memoryItem{artifact: Artifact{Data: buf, MIMEType: mimeType}}
	if s.ttl != nil {
		if d := s.ttl(kind); d > 0 {
			item.expiresAt = s.now().Add(d)
		}
	}

	s.mu.Lock()
	s.sweepLocked()
	s.items[memoryKey(kind, id)] = item
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, kind Kind, id string) (*Artifact, error) {
	s.mu.RLock()
	item, ok := s.items[memoryKey(kind, id)]
	s.mu.RUnlock()

	if !ok || s.expired(item) {
		return nil, ErrNotFound
	}
	return &Artifact{Data: item.artifact.Data, MIMEType: item.artifact.MIMEType}, nil
}

func (s *MemoryStore) Delete(_ context.Context, kind Kind, id string) error {
	s.mu.Lock()
	delete(s.items, memoryKey(kind, id))
	s.mu.Unlock()
	return nil
}

// Len returns the number of unexpired artifacts.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, item := range s.items {
		if !s.expired(item) {
			n++
		}
	}
	return n
}

func (s *MemoryStore) expired(item memoryItem) bool {
	return !item.expiresAt.IsZero() && !s.now().Before(item.expiresAt)
}

// sweepLocked drops expired items at most once per sweepInterval. Reads
// already treat expired items as missing.
func (s *MemoryStore) sweepLocked() {
	now := s.now()
	if now.Sub(s.lastSweep) < sweepInterval {
		return
	}
	s.lastSweep = now

	for k, item := range s.items {
		if s.expired(item) {
			delete(s.items, k)
		}
	}
}
