// Package ordersdemo wires the cross-cutting core (resilience, cache,
// pipeline, paging) around the prescription-order payloads that spec
// section 1's Non-goals treat as opaque records — a minimal worked
// example, not a domain module in its own right. It exists so the
// Resilient Executor, Cache Core, Request Pipeline, and Paginated Query
// Protocol are each exercised by a real request path (S1-S3 in spec
// section 8) rather than left as unreferenced wiring in cmd/api.
package ordersdemo

import (
	"context"
	"sync"

	"prescription-order-service/internal/problem"
)

// MemoryStore is a ports.Store adapter over an in-process map, standing
// in for the authoritative backend spec section 1 keeps opaque. It is
// intentionally the simplest thing that satisfies the port — a real
// deployment substitutes a SQL or document store adapter here without
// any other package changing.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return nil, problem.NewNotFound("NOT_FOUND", "key not found", key)
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, nil
}

func (s *MemoryStore) Put(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	s.data[key] = cp
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// Keys returns every stored key with the given prefix, in insertion-
// unordered form; callers sort as needed. Used by ListOrders to scan the
// demo store since MemoryStore has no query language of its own.
func (s *MemoryStore) Keys(prefix string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	for k := range s.data {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			keys = append(keys, k)
		}
	}
	return keys
}
