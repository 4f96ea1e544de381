package nearlsh

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/nearlsh/blobstore"
	"github.com/hupe1980/nearlsh/internal/frame"
	"github.com/hupe1980/nearlsh/lshash"
	"github.com/hupe1980/nearlsh/vector"
)

// Delete removes every entry with payload from all buckets of all hashes.
// It scans every bucket key, so it also finds entries stored under a
// vector that no longer hashes to the same buckets. It returns the number
// of removed bucket entries.
func (e *Engine) Delete(ctx context.Context, payload string) (removed int, err error) {
	start := time.Now()
	defer func() {
		e.opts.metricsCollector.RecordDelete(removed, time.Since(start), err)
		e.opts.logger.LogDelete(ctx, payload, removed, err)
	}()

	if err := e.check(ctx); err != nil {
		return 0, err
	}
	for _, h := range e.hashes {
		keys, err := e.storage.BucketKeys(ctx, h.Name())
		if err != nil {
			return removed, translateError(err)
		}
		n, err := e.storage.Delete(ctx, h.Name(), keys, payload)
		removed += n
		if err != nil {
			return removed, translateError(err)
		}
	}
	return removed, nil
}

// DeleteVector removes entries with payload from the buckets v hashes to.
// If v hashes differently than the stored vector did, nothing is removed
// and no error is returned.
func (e *Engine) DeleteVector(ctx context.Context, payload string, v vector.Vector) (removed int, err error) {
	start := time.Now()
	defer func() {
		e.opts.metricsCollector.RecordDelete(removed, time.Since(start), err)
		e.opts.logger.LogDelete(ctx, payload, removed, err)
	}()

	if err := e.check(ctx); err != nil {
		return 0, err
	}
	v, err = e.prepare(v)
	if err != nil {
		return 0, err
	}
	for _, h := range e.hashes {
		keys, err := h.Keys(v)
		if err != nil {
			return removed, translateError(err)
		}
		n, err := e.storage.Delete(ctx, h.Name(), keys, payload)
		removed += n
		if err != nil {
			return removed, translateError(err)
		}
	}
	return removed, nil
}

// CleanBuckets removes all buckets of the named hash.
func (e *Engine) CleanBuckets(ctx context.Context, hashName string) error {
	if err := e.check(ctx); err != nil {
		return err
	}
	return translateError(e.storage.Clear(ctx, hashName))
}

// CleanAllBuckets removes all buckets of all hashes. Saved hash
// configurations are kept.
func (e *Engine) CleanAllBuckets(ctx context.Context) error {
	if err := e.check(ctx); err != nil {
		return err
	}
	return translateError(e.storage.ClearAll(ctx))
}

type permutedIndexBuilder interface {
	BuildPermutedIndex(ctx context.Context) error
}

// BuildPermutedIndex rebuilds the permuted index of every hash that has
// one (HashPermutations) from the keys stored so far. Builds run
// concurrently, bounded by the resource controller's background slots.
// Queries keep using the previous index until the new one is published.
func (e *Engine) BuildPermutedIndex(ctx context.Context) error {
	if err := e.check(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, h := range e.hashes {
		b, ok := h.(permutedIndexBuilder)
		if !ok {
			continue
		}
		g.Go(func() error {
			return e.opts.resource.RunBackground(gctx, func(ctx context.Context) error {
				start := time.Now()
				err := b.BuildPermutedIndex(ctx)
				took := time.Since(start)
				e.opts.metricsCollector.RecordIndexBuild(h.Name(), took, err)
				e.opts.logger.LogIndexBuild(ctx, h.Name(), took, err)
				return translateError(err)
			})
		})
	}
	return g.Wait()
}

// SaveHashConfigs writes the configuration of every hash to the storage,
// so a later engine can restore identical hashes with LoadHashConfigs.
func (e *Engine) SaveHashConfigs(ctx context.Context) error {
	if err := e.check(ctx); err != nil {
		return err
	}
	for _, h := range e.hashes {
		cfg, err := h.Config()
		if err != nil {
			return translateError(err)
		}
		data, err := lshash.EncodeConfig(cfg, e.opts.codec, frame.CompressionLZ4)
		if err != nil {
			return err
		}
		if err := e.storage.SaveHashConfig(ctx, h.Name(), data); err != nil {
			return translateError(err)
		}
	}
	return nil
}

// LoadHashConfigs applies the configurations saved in the storage to the
// hashes of the same name. Hashes without a saved configuration keep
// their parameters. It returns the number of restored hashes.
func (e *Engine) LoadHashConfigs(ctx context.Context) (int, error) {
	if err := e.check(ctx); err != nil {
		return 0, err
	}
	loaded := 0
	for _, h := range e.hashes {
		data, ok, err := e.storage.LoadHashConfig(ctx, h.Name())
		if err != nil {
			return loaded, translateError(err)
		}
		if !ok {
			continue
		}
		cfg, err := lshash.DecodeConfig(data)
		if err != nil {
			return loaded, err
		}
		if cfg.Name != h.Name() {
			return loaded, fmt.Errorf("%w: saved config for %q names hash %q", ErrConfiguration, h.Name(), cfg.Name)
		}
		if cfg.Dim != e.dim {
			return loaded, &ErrDimensionMismatch{Expected: e.dim, Actual: cfg.Dim, kind: ErrConfiguration}
		}
		if err := h.ApplyConfig(cfg); err != nil {
			return loaded, translateError(err)
		}
		loaded++
	}
	return loaded, nil
}

// Snapshotter is implemented by stores that can write themselves to a
// blob store, such as storage/memory.
type Snapshotter interface {
	Snapshot(ctx context.Context, bs blobstore.BlobStore) (string, error)
}

// Snapshot saves the hash configurations and then writes the storage to
// bs. It fails with ErrNotSupported if the storage is not a Snapshotter.
func (e *Engine) Snapshot(ctx context.Context, bs blobstore.BlobStore) (name string, err error) {
	defer func() { e.opts.logger.LogSnapshot(ctx, name, err) }()

	snap, ok := e.storage.(Snapshotter)
	if !ok {
		return "", fmt.Errorf("%w: storage %T cannot snapshot", ErrNotSupported, e.storage)
	}
	if err := e.SaveHashConfigs(ctx); err != nil {
		return "", err
	}
	return snap.Snapshot(ctx, bs)
}
