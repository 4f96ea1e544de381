package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/nearlsh/codec"
	"github.com/hupe1980/nearlsh/storage"
	"github.com/hupe1980/nearlsh/storage/storagetest"
)

func TestStore_Conformance(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Storage {
		s, err := Open(context.Background(), filepath.Join(t.TempDir(), "lsh.db"))
		require.NoError(t, err)
		return s
	})
}

func TestStore_InMemory(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Storage {
		s, err := Open(context.Background(), ":memory:", WithCodec(codec.JSON{}))
		require.NoError(t, err)
		return s
	})
}

func TestStore_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "lsh.db")

	s, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Store(ctx, "h", "k", storagetest.Entry(1)))
	require.NoError(t, s.Store(ctx, "h", "k", storagetest.Entry(2)))
	require.NoError(t, s.SaveHashConfig(ctx, "h", []byte("cfg")))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = s.Bucket(ctx, "h", "k")
	assert.ErrorIs(t, err, storage.ErrClosed)

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	entries, err := s.Bucket(ctx, "h", "k")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "1", entries[0].Payload)
	assert.Equal(t, "2", entries[1].Payload)

	cfg, ok, err := s.LoadHashConfig(ctx, "h")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("cfg"), cfg)
}
