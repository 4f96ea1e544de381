// Package mmap maps snapshot files read-only into memory.
//
// The local blob store opens snapshot and hash configuration blobs through
// this package so that decoding reads straight from the page cache. A File
// is safe for concurrent reads and Release is idempotent; the slice
// returned by Data must not be used after Release.
package mmap
