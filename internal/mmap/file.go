package mmap

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sync"
)

// ErrReleased is returned by reads on a released File.
var ErrReleased = errors.New("mmap: file released")

// File is a read-only view of a whole file on disk.
type File struct {
	mu       sync.RWMutex
	data     []byte
	released bool
	unmap    func([]byte) error
}

// Map opens path and maps its full contents. A zero-length file yields a
// File with no backing mapping.
func Map(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	n := info.Size()
	if n == 0 {
		return &File{}, nil
	}
	if n > math.MaxInt {
		return nil, fmt.Errorf("mmap: %s is too large to map (%d bytes)", path, n)
	}

	data, unmap, err := mapReadOnly(f, int(n))
	if err != nil {
		return nil, fmt.Errorf("mmap: map %s: %w", path, err)
	}
	hintSequential(data)
	return &File{data: data, unmap: unmap}, nil
}

// Len reports the number of mapped bytes.
func (f *File) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.data)
}

// Data returns the mapped bytes.
func (f *File) Data() ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.released {
		return nil, ErrReleased
	}
	return f.data, nil
}

// ReadAt implements io.ReaderAt.
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	switch {
	case f.released:
		return 0, ErrReleased
	case off < 0:
		return 0, fmt.Errorf("mmap: negative offset %d", off)
	case off >= int64(len(f.data)):
		return 0, io.EOF
	}
	n := copy(p, f.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Release unmaps the file.
func (f *File) Release() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.released {
		return nil
	}
	f.released = true
	data := f.data
	f.data = nil
	if f.unmap == nil || data == nil {
		return nil
	}
	return f.unmap(data)
}
