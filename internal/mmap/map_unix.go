//go:build unix

package mmap

import (
	"os"

	"golang.org/x/sys/unix"
)

func mapReadOnly(f *os.File, n int) ([]byte, func([]byte) error, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, n, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, nil, err
	}
	return data, unix.Munmap, nil
}

// hintSequential is best effort; snapshots are decoded front to back.
func hintSequential(data []byte) {
	_ = unix.Madvise(data, unix.MADV_SEQUENTIAL)
}
