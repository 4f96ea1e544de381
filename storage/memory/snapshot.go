package memory

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/hupe1980/nearlsh/blobstore"
	"github.com/hupe1980/nearlsh/internal/frame"
	"github.com/hupe1980/nearlsh/model"
)

// SnapshotPrefix is the blob name prefix of snapshots.
const SnapshotPrefix = "snapshots/"

// ErrNoSnapshot is returned by Restore when the blob store has no
// CURRENT pointer.
var ErrNoSnapshot = errors.New("memory: no snapshot")

type snapshot struct {
	// Hashes maps hash name to bucket key to live entries in row order.
	Hashes  map[string]map[string][]model.Entry `json:"hashes"`
	Configs map[string][]byte                   `json:"configs"`
}

func (s *Store) capture() snapshot {
	s.mu.RLock()
	parts := maps.Clone(s.parts)
	configs := maps.Clone(s.configs)
	s.mu.RUnlock()

	snap := snapshot{
		Hashes:  make(map[string]map[string][]model.Entry, len(parts)),
		Configs: configs,
	}
	for name, p := range parts {
		p.mu.RLock()
		buckets := make(map[string][]model.Entry, len(p.buckets))
		for key := range p.buckets {
			buckets[key] = p.entries(key)
		}
		p.mu.RUnlock()
		snap.Hashes[name] = buckets
	}
	return snap
}

// Snapshot writes the store content to bs under a fresh name below
// SnapshotPrefix and then points CURRENT at it. Each hash partition is
// captured atomically. It returns the snapshot name.
func (s *Store) Snapshot(ctx context.Context, bs blobstore.BlobStore) (string, error) {
	if err := s.check(ctx); err != nil {
		return "", err
	}

	data, err := frame.Encode(s.opts.Codec, s.opts.Compression, s.capture())
	if err != nil {
		return "", err
	}
	if err := s.opts.Resource.Throttle(ctx, len(data)); err != nil {
		return "", err
	}

	name := path.Join(SnapshotPrefix, uuid.NewString())
	if err := bs.Put(ctx, name, data); err != nil {
		return "", fmt.Errorf("memory: write snapshot %s: %w", name, err)
	}
	if err := bs.Put(ctx, blobstore.CurrentName, []byte(name)); err != nil {
		return "", fmt.Errorf("memory: update %s: %w", blobstore.CurrentName, err)
	}
	return name, nil
}

// Restore replaces the store content with the snapshot CURRENT points to.
func (s *Store) Restore(ctx context.Context, bs blobstore.BlobStore) error {
	current, err := blobstore.ReadAll(ctx, bs, blobstore.CurrentName)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return ErrNoSnapshot
		}
		return err
	}
	return s.RestoreFrom(ctx, bs, strings.TrimSpace(string(current)))
}

// RestoreFrom replaces the store content with the named snapshot.
func (s *Store) RestoreFrom(ctx context.Context, bs blobstore.BlobStore, name string) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	b, err := bs.Open(ctx, name)
	if err != nil {
		return fmt.Errorf("memory: open snapshot %s: %w", name, err)
	}
	size := b.Size()
	_ = b.Close()
	if err := s.opts.Resource.Throttle(ctx, int(size)); err != nil {
		return err
	}

	data, err := blobstore.ReadAll(ctx, bs, name)
	if err != nil {
		return fmt.Errorf("memory: read snapshot %s: %w", name, err)
	}
	var snap snapshot
	if err := frame.Decode(data, &snap); err != nil {
		return fmt.Errorf("memory: decode snapshot %s: %w", name, err)
	}

	parts := make(map[string]*partition, len(snap.Hashes))
	for hashName, buckets := range snap.Hashes {
		p := newPartition()
		for key, entries := range buckets {
			for _, e := range entries {
				if err := p.add(key, e); err != nil {
					return err
				}
			}
		}
		parts[hashName] = p
	}
	configs := snap.Configs
	if configs == nil {
		configs = make(map[string][]byte)
	}

	s.mu.Lock()
	s.parts = parts
	s.configs = configs
	s.mu.Unlock()
	return nil
}

// Open creates a Store restored from the snapshot CURRENT points to in bs.
func Open(ctx context.Context, bs blobstore.BlobStore, optFns ...Option) (*Store, error) {
	s := New(optFns...)
	if err := s.Restore(ctx, bs); err != nil {
		return nil, err
	}
	return s, nil
}

// PruneSnapshots deletes every snapshot in bs except the one CURRENT
// points to and returns the deleted names.
func PruneSnapshots(ctx context.Context, bs blobstore.BlobStore) ([]string, error) {
	current, err := blobstore.ReadAll(ctx, bs, blobstore.CurrentName)
	if err != nil {
		return nil, err
	}
	live := strings.TrimSpace(string(current))

	names, err := bs.List(ctx, SnapshotPrefix)
	if err != nil {
		return nil, err
	}
	var deleted []string
	for _, name := range names {
		if name == live {
			continue
		}
		if err := bs.Delete(ctx, name); err != nil {
			return deleted, err
		}
		deleted = append(deleted, name)
	}
	return deleted, nil
}
