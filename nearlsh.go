package nearlsh

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/nearlsh/distance"
	"github.com/hupe1980/nearlsh/lshash"
	"github.com/hupe1980/nearlsh/model"
	"github.com/hupe1980/nearlsh/storage"
	"github.com/hupe1980/nearlsh/storage/memory"
	"github.com/hupe1980/nearlsh/vector"
)

// DefaultHashName is the name of the hash used when New gets none.
const DefaultHashName = "default"

// DefaultProjectionCount is the key length of the default hash.
const DefaultProjectionCount = 10

// Engine indexes vectors into LSH buckets and answers approximate
// nearest-neighbour queries.
//
// Engine is safe for concurrent use.
type Engine struct {
	dim       int
	hashes    []lshash.Hash
	byName    map[string]lshash.Hash
	distFn    distance.Func
	normalize bool
	storage   storage.Storage
	ownsStore bool
	opts      options
	closed    atomic.Bool
}

// New creates an engine for vectors of dimension dim. Every hash is reset
// to dim; hashes already locked to another dimension are rejected. Hash
// names must be unique since they namespace the storage.
//
// Without hashes the engine uses RandomBinaryProjections(DefaultHashName,
// DefaultProjectionCount).
func New(dim int, hashes []lshash.Hash, optFns ...Option) (*Engine, error) {
	if dim <= 0 {
		return nil, &ErrInvalidDimension{Dimension: dim}
	}

	opts := applyOptions(optFns)

	if len(hashes) == 0 {
		rbp, err := lshash.NewRandomBinaryProjections(DefaultHashName, DefaultProjectionCount)
		if err != nil {
			return nil, err
		}
		hashes = []lshash.Hash{rbp}
	}

	byName := make(map[string]lshash.Hash, len(hashes))
	for _, h := range hashes {
		if h == nil {
			return nil, fmt.Errorf("%w: nil hash", ErrConfiguration)
		}
		if _, dup := byName[h.Name()]; dup {
			return nil, fmt.Errorf("%w: duplicate hash name %q", ErrConfiguration, h.Name())
		}
		if err := h.Reset(dim); err != nil {
			return nil, translateError(err)
		}
		byName[h.Name()] = h
	}

	e := &Engine{
		dim:     dim,
		hashes:  append([]lshash.Hash(nil), hashes...),
		byName:  byName,
		storage: opts.storage,
		opts:    opts,
	}

	if opts.useDistance {
		fn, err := distance.Provider(opts.metric)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
		}
		e.distFn = fn
		e.normalize = opts.metric.RequiresNormalization()
	}
	if opts.normalize {
		e.normalize = true
	}

	if e.storage == nil {
		e.storage = memory.New()
		e.ownsStore = true
	}

	opts.logger.DebugContext(context.Background(), "engine created",
		"dimension", dim,
		"hashes", len(hashes),
		"distance", e.distanceName(),
		"normalize", e.normalize,
	)
	return e, nil
}

func (e *Engine) distanceName() string {
	if e.distFn == nil {
		return "none"
	}
	return e.opts.metric.String()
}

// Dim returns the vector dimension of the engine.
func (e *Engine) Dim() int { return e.dim }

// Hashes returns the configured hashes in order.
func (e *Engine) Hashes() []lshash.Hash {
	return append([]lshash.Hash(nil), e.hashes...)
}

// Hash returns the hash with the given name.
func (e *Engine) Hash(name string) (lshash.Hash, bool) {
	h, ok := e.byName[name]
	return h, ok
}

// Storage returns the bucket store.
func (e *Engine) Storage() storage.Storage { return e.storage }

// Normalizes reports whether vectors are scaled to unit length before
// hashing, storing and scoring.
func (e *Engine) Normalizes() bool { return e.normalize }

func (e *Engine) check(ctx context.Context) error {
	if e.closed.Load() {
		return ErrClosed
	}
	return ctx.Err()
}

// prepare validates v and applies normalization.
func (e *Engine) prepare(v vector.Vector) (vector.Vector, error) {
	if v.Dim() != e.dim {
		return vector.Vector{}, &ErrDimensionMismatch{Expected: e.dim, Actual: v.Dim(), kind: ErrInvalidArgument}
	}
	if e.normalize {
		return v.Unit(), nil
	}
	return v, nil
}

// prepareStored is prepare for vectors the storage keeps. The result
// never shares memory with v.
func (e *Engine) prepareStored(v vector.Vector) (vector.Vector, error) {
	if e.normalize && v.Norm() != 0 {
		return e.prepare(v)
	}
	return e.prepare(v.Clone())
}

// StoreVector hashes v with every hash in indexing mode and appends
// (v, payload) to each resulting bucket. The engine stores a copy of v.
func (e *Engine) StoreVector(ctx context.Context, v vector.Vector, payload string) (err error) {
	start := time.Now()
	defer func() {
		e.opts.metricsCollector.RecordStore(1, time.Since(start), err)
		e.opts.logger.LogStore(ctx, 1, err)
	}()

	if err := e.check(ctx); err != nil {
		return err
	}
	v, err = e.prepareStored(v)
	if err != nil {
		return err
	}

	entry := model.Entry{Vector: v, Payload: payload}
	for _, h := range e.hashes {
		keys, err := h.HashVector(v, false)
		if err != nil {
			return translateError(err)
		}
		if err := e.storeKeys(ctx, h.Name(), keys, entry); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) storeKeys(ctx context.Context, hashName string, keys []string, entry model.Entry) error {
	if len(keys) == 1 {
		return translateError(e.storage.Store(ctx, hashName, keys[0], entry))
	}
	entries := make([]model.Entry, len(keys))
	for i := range entries {
		entries[i] = entry
	}
	return translateError(e.storage.StoreMany(ctx, hashName, keys, entries))
}

// StoreManyVectors stores vs[i] with payloads[i]. Hashes are processed
// concurrently, each writing its buckets with one StoreMany call.
func (e *Engine) StoreManyVectors(ctx context.Context, vs []vector.Vector, payloads []string) (err error) {
	start := time.Now()
	defer func() {
		e.opts.metricsCollector.RecordStore(len(vs), time.Since(start), err)
		e.opts.logger.LogStore(ctx, len(vs), err)
	}()

	if err := e.check(ctx); err != nil {
		return err
	}
	if len(vs) != len(payloads) {
		return fmt.Errorf("%w: %d vectors for %d payloads", ErrInvalidArgument, len(vs), len(payloads))
	}

	prepared := make([]vector.Vector, len(vs))
	for i, v := range vs {
		if prepared[i], err = e.prepareStored(v); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, h := range e.hashes {
		g.Go(func() error {
			var (
				keys    []string
				entries []model.Entry
			)
			for i, v := range prepared {
				hk, err := h.HashVector(v, false)
				if err != nil {
					return translateError(err)
				}
				entry := model.Entry{Vector: v, Payload: payloads[i]}
				for _, k := range hk {
					keys = append(keys, k)
					entries = append(entries, entry)
				}
			}
			return translateError(e.storage.StoreMany(gctx, h.Name(), keys, entries))
		})
	}
	return g.Wait()
}

// Close releases the engine. A storage created by the engine is closed as
// well. Closing twice is a no-op.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	if e.ownsStore {
		return e.storage.Close()
	}
	return nil
}
