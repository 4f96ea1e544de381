package blobstore

import (
	"context"
	"slices"
	"strings"
	"sync"
)

// MemoryStore keeps blobs in process memory. Stored content is copied on
// Put so callers may reuse their buffers.
type MemoryStore struct {
	blobs sync.Map // name -> []byte
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

// Open implements BlobStore. Blob content is immutable, so the returned
// blob shares it with the store.
func (m *MemoryStore) Open(ctx context.Context, name string) (Blob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v, ok := m.blobs.Load(name)
	if !ok {
		return nil, ErrNotFound
	}
	return NewBytesBlob(v.([]byte)), nil
}

// Put implements BlobStore.
func (m *MemoryStore) Put(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.blobs.Store(name, slices.Clone(data))
	return nil
}

// Delete implements BlobStore.
func (m *MemoryStore) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.blobs.Delete(name)
	return nil
}

// List implements BlobStore.
func (m *MemoryStore) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var names []string
	m.blobs.Range(func(k, _ any) bool {
		if name := k.(string); strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
		return true
	})
	slices.Sort(names)
	return names, nil
}
