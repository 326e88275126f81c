package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

// MemoryBlobs is an object store kept in process memory.
type MemoryBlobs struct {
	mu      sync.RWMutex
	objects map[string]blob
}

type blob struct {
	data        []byte
	contentType string
}

func NewMemoryBlobs() *MemoryBlobs {
	return &MemoryBlobs{objects: make(map[string]blob)}
}

// Put stores the object, reading at most size bytes when size is positive.
func (b *MemoryBlobs) Put(_ context.Context, key string, r io.Reader, size int64, contentType string) error {
	if size > 0 {
		r = io.LimitReader(r, size)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = blob{data: buf.Bytes(), contentType: contentType}
	return nil
}

// Get returns a copy of the object bytes.
func (b *MemoryBlobs) Get(_ context.Context, key string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	obj, ok := b.objects[key]
	if !ok {
		return nil, fmt.Errorf("get object %s: %w", key, ErrNotFound)
	}
	return append([]byte(nil), obj.data...), nil
}

// ContentType returns the type recorded on Put.
func (b *MemoryBlobs) ContentType(key string) string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.objects[key].contentType
}
