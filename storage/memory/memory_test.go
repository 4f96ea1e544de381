package memory

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/nearlsh/model"
	"github.com/hupe1980/nearlsh/storage"
	"github.com/hupe1980/nearlsh/storage/storagetest"
)

func TestStore_Conformance(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Storage {
		return New()
	})
}

func TestStore_DeletePerBucket(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.Store(ctx, "h", "a", storagetest.Entry(1)))
	require.NoError(t, s.Store(ctx, "h", "b", storagetest.Entry(1)))
	require.NoError(t, s.Store(ctx, "h", "b", storagetest.Entry(2)))

	n, err := s.Delete(ctx, "h", []string{"a"}, "1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// The payload is still indexed through bucket b.
	n, err = s.Delete(ctx, "h", []string{"b"}, "1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	b, err := s.Bucket(ctx, "h", "b")
	require.NoError(t, err)
	require.Len(t, b, 1)
	assert.Equal(t, "2", b[0].Payload)

	require.NoError(t, s.Store(ctx, "h", "a", storagetest.Entry(3)))
	a, err := s.Bucket(ctx, "h", "a")
	require.NoError(t, err)
	require.Len(t, a, 1)
	assert.Equal(t, "3", a[0].Payload)
}

func TestStore_Stats(t *testing.T) {
	ctx := context.Background()
	s := New()
	for i := range 6 {
		require.NoError(t, s.Store(ctx, "h", []string{"x", "y", "z"}[i%3], storagetest.Entry(i)))
	}
	_, err := s.Delete(ctx, "h", []string{"x"}, "0")
	require.NoError(t, err)

	assert.Equal(t, map[string]Stats{"h": {Buckets: 3, Entries: 5}}, s.Stats())
}

func TestStore_Closed(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	err := s.Store(ctx, "h", "k", storagetest.Entry(1))
	assert.ErrorIs(t, err, storage.ErrClosed)

	_, err = s.Bucket(ctx, "h", "k")
	assert.ErrorIs(t, err, storage.ErrClosed)
}

func TestStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New()
	err := s.Store(ctx, "h", "k", storagetest.Entry(1))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStore_CompactsDeletedRows(t *testing.T) {
	ctx := context.Background()
	s := New()

	const total = 3000
	keys := make([]string, total)
	entries := make([]model.Entry, total)
	for i := range total {
		keys[i] = strconv.Itoa(i % 3)
		entries[i] = storagetest.Entry(i)
	}
	require.NoError(t, s.StoreMany(ctx, "h", keys, entries))

	// Delete everything except multiples of three, i.e. all of buckets 1 and 2.
	for i := range total {
		if i%3 == 0 {
			continue
		}
		n, err := s.Delete(ctx, "h", []string{keys[i]}, strconv.Itoa(i))
		require.NoError(t, err)
		require.Equal(t, 1, n)
	}

	p := s.partition("h")
	p.mu.RLock()
	rows, dead := len(p.rows), p.dead
	p.mu.RUnlock()
	assert.Less(t, rows, 2*total/3)
	assert.Equal(t, total/3, rows-dead)

	bucket, err := s.Bucket(ctx, "h", "0")
	require.NoError(t, err)
	require.Len(t, bucket, total/3)
	for j, e := range bucket {
		assert.Equal(t, strconv.Itoa(3*j), e.Payload)
	}
	keysLeft, err := s.BucketKeys(ctx, "h")
	require.NoError(t, err)
	assert.Equal(t, []string{"0"}, keysLeft)

	// Renumbered rows stay addressable by payload and keep accepting writes.
	n, err := s.Delete(ctx, "h", []string{"0"}, "2997")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, s.Store(ctx, "h", "0", storagetest.Entry(total)))
	bucket, err = s.Bucket(ctx, "h", "0")
	require.NoError(t, err)
	require.Len(t, bucket, total/3)
	assert.Equal(t, strconv.Itoa(total), bucket[len(bucket)-1].Payload)
}
