// Package storagetest provides a conformance suite for storage.Storage
// implementations.
package storagetest

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/nearlsh/model"
	"github.com/hupe1980/nearlsh/storage"
	"github.com/hupe1980/nearlsh/vector"
)

// Factory returns a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) storage.Storage

// Run executes the conformance suite against stores created by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s storage.Storage)
	}{
		{"EmptyLookups", testEmptyLookups},
		{"InsertionOrder", testInsertionOrder},
		{"StoreMany", testStoreMany},
		{"BucketKeys", testBucketKeys},
		{"Delete", testDelete},
		{"Clear", testClear},
		{"HashConfig", testHashConfig},
		{"SparseVectors", testSparseVectors},
		{"Concurrent", testConcurrent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			defer func() { _ = s.Close() }()
			tt.fn(t, s)
		})
	}
}

// Entry returns a dense two-dimensional entry derived from i.
func Entry(i int) model.Entry {
	return model.Entry{
		Vector:  vector.NewDense([]float64{float64(i), float64(-i)}),
		Payload: strconv.Itoa(i),
	}
}

func payloads(entries []model.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Payload
	}
	return out
}

func testEmptyLookups(t *testing.T, s storage.Storage) {
	ctx := context.Background()

	entries, err := s.Bucket(ctx, "missing", "key")
	require.NoError(t, err)
	assert.Empty(t, entries)

	keys, err := s.BucketKeys(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, keys)

	n, err := s.Delete(ctx, "missing", []string{"key"}, "p")
	require.NoError(t, err)
	assert.Zero(t, n)

	size, err := storage.BucketSize(ctx, s, "missing", "key")
	require.NoError(t, err)
	assert.Zero(t, size)
}

func testInsertionOrder(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	for i := range 10 {
		require.NoError(t, s.Store(ctx, "h", "k", Entry(i)))
	}
	// Duplicates are kept.
	require.NoError(t, s.Store(ctx, "h", "k", Entry(3)))

	entries, err := s.Bucket(ctx, "h", "k")
	require.NoError(t, err)
	assert.Equal(t, []string{"0", "1", "2", "3", "4", "5", "6", "7", "8", "9", "3"}, payloads(entries))
	assert.True(t, vector.Equal(Entry(7).Vector, entries[7].Vector))

	size, err := storage.BucketSize(ctx, s, "h", "k")
	require.NoError(t, err)
	assert.Equal(t, 11, size)
}

func testStoreMany(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	keys := []string{"a", "b", "a", "c", "a"}
	entries := make([]model.Entry, len(keys))
	for i := range entries {
		entries[i] = Entry(i)
	}
	require.NoError(t, s.StoreMany(ctx, "h", keys, entries))

	a, err := s.Bucket(ctx, "h", "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"0", "2", "4"}, payloads(a))

	c, err := s.Bucket(ctx, "h", "c")
	require.NoError(t, err)
	assert.Equal(t, []string{"3"}, payloads(c))

	err = s.StoreMany(ctx, "h", []string{"a"}, nil)
	assert.ErrorIs(t, err, storage.ErrLengthMismatch)
}

func testBucketKeys(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	for i, k := range []string{"10", "01", "11", "01"} {
		require.NoError(t, s.Store(ctx, "h1", k, Entry(i)))
	}
	require.NoError(t, s.Store(ctx, "h2", "zz", Entry(0)))

	keys, err := s.BucketKeys(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, []string{"01", "10", "11"}, keys)

	keys, err = s.BucketKeys(ctx, "h2")
	require.NoError(t, err)
	assert.Equal(t, []string{"zz"}, keys)
}

func testDelete(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	for i := range 21 {
		require.NoError(t, s.Store(ctx, "h", "all", Entry(i)))
		require.NoError(t, s.Store(ctx, "h", "k"+strconv.Itoa(i%3), Entry(i)))
	}
	require.NoError(t, s.Store(ctx, "h", "all", Entry(15)))
	require.NoError(t, s.Store(ctx, "other", "all", Entry(15)))

	n, err := s.Delete(ctx, "h", []string{"all", "k0", "missing"}, "15")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	all, err := s.Bucket(ctx, "h", "all")
	require.NoError(t, err)
	require.Len(t, all, 20)
	assert.NotContains(t, payloads(all), "15")
	assert.Equal(t, "14", all[14].Payload)
	assert.Equal(t, "16", all[15].Payload)

	k0, err := s.Bucket(ctx, "h", "k0")
	require.NoError(t, err)
	assert.NotContains(t, payloads(k0), "15")

	other, err := s.Bucket(ctx, "other", "all")
	require.NoError(t, err)
	assert.Equal(t, []string{"15"}, payloads(other))

	// A bucket emptied by Delete disappears from BucketKeys.
	require.NoError(t, s.Store(ctx, "h", "single", Entry(99)))
	_, err = s.Delete(ctx, "h", []string{"single"}, "99")
	require.NoError(t, err)
	keys, err := s.BucketKeys(ctx, "h")
	require.NoError(t, err)
	assert.NotContains(t, keys, "single")
}

func testClear(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	require.NoError(t, s.Store(ctx, "h1", "k", Entry(1)))
	require.NoError(t, s.Store(ctx, "h2", "k", Entry(2)))
	require.NoError(t, s.SaveHashConfig(ctx, "h1", []byte("cfg")))

	require.NoError(t, s.Clear(ctx, "h1"))
	keys, err := s.BucketKeys(ctx, "h1")
	require.NoError(t, err)
	assert.Empty(t, keys)
	entries, err := s.Bucket(ctx, "h2", "k")
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	require.NoError(t, s.ClearAll(ctx))
	entries, err = s.Bucket(ctx, "h2", "k")
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, ok, err := s.LoadHashConfig(ctx, "h1")
	require.NoError(t, err)
	assert.True(t, ok, "hash configs survive clearing")
}

func testHashConfig(t *testing.T, s storage.Storage) {
	ctx := context.Background()

	_, ok, err := s.LoadHashConfig(ctx, "h")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SaveHashConfig(ctx, "h", []byte{1, 2, 3}))
	require.NoError(t, s.SaveHashConfig(ctx, "h", []byte{4, 5}))
	blob, ok, err := s.LoadHashConfig(ctx, "h")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte{4, 5}, blob)
}

func testSparseVectors(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	v, err := vector.NewSparse(100, []int{3, 42, 99}, []float64{1, -2, 0.5})
	require.NoError(t, err)
	require.NoError(t, s.Store(ctx, "h", "k", model.Entry{Vector: v, Payload: "sparse"}))

	entries, err := s.Bucket(ctx, "h", "k")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, vector.Equal(v, entries[0].Vector))
}

func testConcurrent(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	const (
		writers = 8
		perW    = 50
	)

	var wg sync.WaitGroup
	for w := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perW {
				key := fmt.Sprintf("k%d", i%4)
				assert.NoError(t, s.Store(ctx, "h", key, Entry(w*perW+i)))
				_, err := s.Bucket(ctx, "h", key)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	total := 0
	keys, err := s.BucketKeys(ctx, "h")
	require.NoError(t, err)
	for _, k := range keys {
		n, err := storage.BucketSize(ctx, s, "h", k)
		require.NoError(t, err)
		total += n
	}
	assert.Equal(t, writers*perW, total)
}
