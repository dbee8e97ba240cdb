package store

import (
	"context"
	"sync"
)

// MemStore is a map-backed Store. It serves tests and the degraded startup
// path when no Redis is configured; contents do not survive a restart.
type MemStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemStore() *MemStore {
	return &MemStore{data: make(map[string][]byte)}
}

func (s *MemStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	cp := append([]byte(nil), v...)
	return cp, nil
}

func (s *MemStore) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = append([]byte(nil), value...)
	return nil
}

func (s *MemStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *MemStore) Batch() Batch {
	return &memBatch{store: s}
}

// Len reports the number of stored keys.
func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

type memOp struct {
	key   string
	value []byte // nil means delete
	del   bool
}

type memBatch struct {
	store *MemStore
	ops   []memOp
}

func (b *memBatch) Set(key string, value []byte) {
	b.ops = append(b.ops, memOp{key: key, value: append([]byte(nil), value...)})
}

func (b *memBatch) Delete(key string) {
	b.ops = append(b.ops, memOp{key: key, del: true})
}

func (b *memBatch) Write(ctx context.Context) error {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	for _, op := range b.ops {
		if op.del {
			delete(b.store.data, op.key)
		} else {
			b.store.data[op.key] = op.value
		}
	}
	return nil
}
