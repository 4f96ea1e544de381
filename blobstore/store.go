package blobstore

import (
	"context"
	"fmt"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
var ErrNotFound = os.ErrNotExist

// CurrentName is the blob holding the name of the latest snapshot.
const CurrentName = "CURRENT"

// BlobStore reads and writes named blobs.
type BlobStore interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)
	// Put writes a blob atomically, replacing any previous content.
	Put(ctx context.Context, name string, data []byte) error
	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
	// List returns the sorted names of blobs starting with prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to a blob.
type Blob interface {
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)
	Size() int64
	Close() error
}

// Mappable is implemented by blobs that expose their content without
// copying. The slice is valid until the blob is closed.
type Mappable interface {
	Bytes() ([]byte, error)
}

// ReadAll returns the full content of the named blob.
func ReadAll(ctx context.Context, s BlobStore, name string) ([]byte, error) {
	b, err := s.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = b.Close() }()

	if m, ok := b.(Mappable); ok {
		data, err := m.Bytes()
		if err != nil {
			return nil, err
		}
		return append([]byte(nil), data...), nil
	}

	buf := make([]byte, b.Size())
	n, err := b.ReadAt(ctx, buf, 0)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("read blob %s: %w", name, err)
	}
	if int64(n) != b.Size() {
		return nil, fmt.Errorf("read blob %s: short read %d of %d bytes", name, n, b.Size())
	}
	return buf, nil
}

// BytesBlob is a Blob over an in-memory byte slice.
type BytesBlob struct {
	data []byte
}

// NewBytesBlob wraps data without copying.
func NewBytesBlob(data []byte) *BytesBlob { return &BytesBlob{data: data} }

// ReadAt implements Blob.
func (b *BytesBlob) ReadAt(_ context.Context, p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(b.data)) {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}
	n := copy(p, b.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Size implements Blob.
func (b *BytesBlob) Size() int64 { return int64(len(b.data)) }

// Close implements Blob.
func (b *BytesBlob) Close() error { return nil }

// Bytes implements Mappable.
func (b *BytesBlob) Bytes() ([]byte, error) { return b.data, nil }
