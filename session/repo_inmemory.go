package session

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type storedBlob struct {
	data      []byte
	expiresAt time.Time
}

// InMemoryRepo is an in-memory implementation of Repo
type InMemoryRepo struct {
	mu    sync.RWMutex
	blobs map[string]storedBlob
}

var _ Repo = (*InMemoryRepo)(nil)

// NewInMemoryRepo creates a new in-memory session repository
func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		blobs: make(map[string]storedBlob),
	}
}

// Upsert creates or replaces a sealed session
func (r *InMemoryRepo) Upsert(_ context.Context, key string, sealed []byte, ttl time.Duration) error {
	if key == "" {
		return fmt.Errorf("key is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	blob := storedBlob{data: append([]byte(nil), sealed...)}
	if ttl > 0 {
		blob.expiresAt = NowTimeFunc().Add(ttl)
	}
	r.blobs[key] = blob
	return nil
}

// Get retrieves a sealed session
func (r *InMemoryRepo) Get(_ context.Context, key string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	blob, ok := r.blobs[key]
	if !ok {
		return nil, ErrNotFound
	}
	if !blob.expiresAt.IsZero() && NowTimeFunc().After(blob.expiresAt) {
		return nil, ErrNotFound
	}
	return append([]byte(nil), blob.data...), nil
}

// Delete removes a sealed session; deleting a missing key is not an error
func (r *InMemoryRepo) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.blobs, key)
	return nil
}
