// Package storage defines the bucket store the engine is built against.
//
// A store is partitioned by hash name. Each partition maps bucket keys to
// ordered lists of entries. Looking up an unknown hash name or bucket key
// is not an error; it yields an empty result.
package storage

import (
	"context"
	"errors"

	"github.com/hupe1980/nearlsh/model"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("storage closed")

// ErrLengthMismatch is returned by StoreMany when keys and entries differ
// in length.
var ErrLengthMismatch = errors.New("bucket keys and entries differ in length")

// Storage is a bucket store. Implementations must be safe for concurrent
// use and must return bucket entries in insertion order.
type Storage interface {
	// Store appends e to the bucket (hashName, bucketKey).
	Store(ctx context.Context, hashName, bucketKey string, e model.Entry) error
	// StoreMany appends entries[i] to the bucket (hashName, bucketKeys[i]).
	StoreMany(ctx context.Context, hashName string, bucketKeys []string, entries []model.Entry) error
	// Bucket returns the entries of a bucket, empty if it does not exist.
	Bucket(ctx context.Context, hashName, bucketKey string) ([]model.Entry, error)
	// BucketKeys returns the sorted keys of all non-empty buckets of a hash.
	BucketKeys(ctx context.Context, hashName string) ([]string, error)
	// Delete removes all entries with payload from the listed buckets and
	// returns how many were removed.
	Delete(ctx context.Context, hashName string, bucketKeys []string, payload string) (int, error)
	// Clear removes every bucket of a hash. Hash configs are kept.
	Clear(ctx context.Context, hashName string) error
	// ClearAll removes every bucket of every hash. Hash configs are kept.
	ClearAll(ctx context.Context) error
	// SaveHashConfig stores an opaque hash configuration blob.
	SaveHashConfig(ctx context.Context, hashName string, blob []byte) error
	// LoadHashConfig returns the blob saved for hashName and whether one
	// exists.
	LoadHashConfig(ctx context.Context, hashName string) ([]byte, bool, error)
	// Close releases resources held by the store.
	Close() error
}

// BucketSizer is implemented by stores that can count a bucket without
// materializing it.
type BucketSizer interface {
	BucketSize(ctx context.Context, hashName, bucketKey string) (int, error)
}

// BucketSize returns the number of entries in a bucket, using BucketSizer
// when s implements it.
func BucketSize(ctx context.Context, s Storage, hashName, bucketKey string) (int, error) {
	if bs, ok := s.(BucketSizer); ok {
		return bs.BucketSize(ctx, hashName, bucketKey)
	}
	entries, err := s.Bucket(ctx, hashName, bucketKey)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}
