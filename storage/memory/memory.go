package memory

import (
	"context"
	"errors"
	"math"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/nearlsh/codec"
	"github.com/hupe1980/nearlsh/internal/frame"
	"github.com/hupe1980/nearlsh/model"
	"github.com/hupe1980/nearlsh/resource"
	"github.com/hupe1980/nearlsh/storage"
)

// ErrPartitionFull is returned when a hash partition holds 2^32 live
// entries. Row ids of deleted entries are reclaimed by compaction and do
// not count.
var ErrPartitionFull = errors.New("memory: partition row ids exhausted")

var _ storage.Storage = (*Store)(nil)
var _ storage.BucketSizer = (*Store)(nil)

// Compression selects the snapshot compression.
type Compression = frame.Compression

// Snapshot compression algorithms.
const (
	CompressionNone = frame.CompressionNone
	CompressionLZ4  = frame.CompressionLZ4
	CompressionZSTD = frame.CompressionZSTD
)

// Options configures a Store.
type Options struct {
	// Codec encodes snapshots. Defaults to codec.Default.
	Codec codec.Codec
	// Compression is applied to snapshots. Defaults to LZ4.
	Compression Compression
	// Resource throttles snapshot IO. Nil means unlimited.
	Resource *resource.Controller
}

// Option configures a Store.
type Option func(*Options)

// WithCodec sets the snapshot codec.
func WithCodec(c codec.Codec) Option {
	return func(o *Options) { o.Codec = c }
}

// WithCompression sets the snapshot compression.
func WithCompression(c Compression) Option {
	return func(o *Options) { o.Compression = c }
}

// WithResourceController throttles snapshot IO with rc.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *Options) { o.Resource = rc }
}

// Store is an in-memory storage.Storage.
type Store struct {
	opts Options

	mu      sync.RWMutex
	parts   map[string]*partition
	configs map[string][]byte

	closed atomic.Bool
}

// New creates an empty Store.
func New(optFns ...Option) *Store {
	opts := Options{
		Codec:       codec.Default,
		Compression: frame.CompressionLZ4,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Codec == nil {
		opts.Codec = codec.Default
	}
	return &Store{
		opts:    opts,
		parts:   make(map[string]*partition),
		configs: make(map[string][]byte),
	}
}

// compactMinDead is the number of deleted rows a partition tolerates
// before compaction is considered at all.
const compactMinDead = 1024

type partition struct {
	mu       sync.RWMutex
	rows     []model.Entry
	dead     int
	buckets  map[string]*roaring.Bitmap
	payloads map[string]*roaring.Bitmap
}

func newPartition() *partition {
	return &partition{
		buckets:  make(map[string]*roaring.Bitmap),
		payloads: make(map[string]*roaring.Bitmap),
	}
}

// add appends e to bucket key. The caller holds p.mu.
func (p *partition) add(key string, e model.Entry) error {
	if uint64(len(p.rows)) >= math.MaxUint32 {
		if p.dead == 0 {
			return ErrPartitionFull
		}
		p.compact()
	}
	id := uint32(len(p.rows))
	p.rows = append(p.rows, e)

	bm, ok := p.buckets[key]
	if !ok {
		bm = roaring.New()
		p.buckets[key] = bm
	}
	bm.Add(id)

	pm, ok := p.payloads[e.Payload]
	if !ok {
		pm = roaring.New()
		p.payloads[e.Payload] = pm
	}
	pm.Add(id)
	return nil
}

// compact drops deleted rows and renumbers the live ones densely, keeping
// their relative order. The caller holds p.mu.
func (p *partition) compact() {
	live := roaring.New()
	for _, bm := range p.payloads {
		live.Or(bm)
	}
	// The new id of a live row is its rank among live rows.
	renumber := func(bm *roaring.Bitmap) *roaring.Bitmap {
		out := roaring.New()
		it := bm.Iterator()
		for it.HasNext() {
			out.Add(uint32(live.Rank(it.Next()) - 1))
		}
		return out
	}

	rows := make([]model.Entry, 0, live.GetCardinality())
	it := live.Iterator()
	for it.HasNext() {
		rows = append(rows, p.rows[it.Next()])
	}
	for key, bm := range p.buckets {
		p.buckets[key] = renumber(bm)
	}
	for payload, bm := range p.payloads {
		p.payloads[payload] = renumber(bm)
	}
	p.rows = rows
	p.dead = 0
}

// entries materializes a bucket in row order. The caller holds p.mu.
func (p *partition) entries(key string) []model.Entry {
	bm, ok := p.buckets[key]
	if !ok {
		return nil
	}
	out := make([]model.Entry, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		out = append(out, p.rows[it.Next()])
	}
	return out
}

func (s *Store) check(ctx context.Context) error {
	if s.closed.Load() {
		return storage.ErrClosed
	}
	return ctx.Err()
}

func (s *Store) partition(hashName string) *partition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.parts[hashName]
}

func (s *Store) partitionForWrite(hashName string) *partition {
	if p := s.partition(hashName); p != nil {
		return p
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.parts[hashName]
	if !ok {
		p = newPartition()
		s.parts[hashName] = p
	}
	return p
}

// Store implements storage.Storage.
func (s *Store) Store(ctx context.Context, hashName, bucketKey string, e model.Entry) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	p := s.partitionForWrite(hashName)
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.add(bucketKey, e)
}

// StoreMany implements storage.Storage.
func (s *Store) StoreMany(ctx context.Context, hashName string, bucketKeys []string, entries []model.Entry) error {
	if len(bucketKeys) != len(entries) {
		return storage.ErrLengthMismatch
	}
	if err := s.check(ctx); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	p := s.partitionForWrite(hashName)
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, key := range bucketKeys {
		if err := p.add(key, entries[i]); err != nil {
			return err
		}
	}
	return nil
}

// Bucket implements storage.Storage.
func (s *Store) Bucket(ctx context.Context, hashName, bucketKey string) ([]model.Entry, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	p := s.partition(hashName)
	if p == nil {
		return nil, nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.entries(bucketKey), nil
}

// BucketSize implements storage.BucketSizer.
func (s *Store) BucketSize(ctx context.Context, hashName, bucketKey string) (int, error) {
	if err := s.check(ctx); err != nil {
		return 0, err
	}
	p := s.partition(hashName)
	if p == nil {
		return 0, nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if bm, ok := p.buckets[bucketKey]; ok {
		return int(bm.GetCardinality()), nil
	}
	return 0, nil
}

// BucketKeys implements storage.Storage.
func (s *Store) BucketKeys(ctx context.Context, hashName string) ([]string, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	p := s.partition(hashName)
	if p == nil {
		return nil, nil
	}
	p.mu.RLock()
	keys := make([]string, 0, len(p.buckets))
	for k := range p.buckets {
		keys = append(keys, k)
	}
	p.mu.RUnlock()
	slices.Sort(keys)
	return keys, nil
}

// Delete implements storage.Storage.
func (s *Store) Delete(ctx context.Context, hashName string, bucketKeys []string, payload string) (int, error) {
	if err := s.check(ctx); err != nil {
		return 0, err
	}
	p := s.partition(hashName)
	if p == nil {
		return 0, nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	pm, ok := p.payloads[payload]
	if !ok {
		return 0, nil
	}
	removed := 0
	for _, key := range bucketKeys {
		bm, ok := p.buckets[key]
		if !ok {
			continue
		}
		hits := roaring.And(bm, pm)
		if hits.IsEmpty() {
			continue
		}
		bm.AndNot(hits)
		pm.AndNot(hits)
		it := hits.Iterator()
		for it.HasNext() {
			p.rows[it.Next()] = model.Entry{}
		}
		removed += int(hits.GetCardinality())
		p.dead += int(hits.GetCardinality())
		if bm.IsEmpty() {
			delete(p.buckets, key)
		}
	}
	if pm.IsEmpty() {
		delete(p.payloads, payload)
	}
	if p.dead > compactMinDead && 2*p.dead > len(p.rows) {
		p.compact()
	}
	return removed, nil
}

// Clear implements storage.Storage.
func (s *Store) Clear(ctx context.Context, hashName string) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.parts, hashName)
	s.mu.Unlock()
	return nil
}

// ClearAll implements storage.Storage.
func (s *Store) ClearAll(ctx context.Context) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	s.parts = make(map[string]*partition)
	s.mu.Unlock()
	return nil
}

// SaveHashConfig implements storage.Storage.
func (s *Store) SaveHashConfig(ctx context.Context, hashName string, blob []byte) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	s.configs[hashName] = slices.Clone(blob)
	s.mu.Unlock()
	return nil
}

// LoadHashConfig implements storage.Storage.
func (s *Store) LoadHashConfig(ctx context.Context, hashName string) ([]byte, bool, error) {
	if err := s.check(ctx); err != nil {
		return nil, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	blob, ok := s.configs[hashName]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(blob), true, nil
}

// Stats reports per-hash bucket and live entry counts.
func (s *Store) Stats() map[string]Stats {
	s.mu.RLock()
	parts := make(map[string]*partition, len(s.parts))
	for name, p := range s.parts {
		parts[name] = p
	}
	s.mu.RUnlock()

	out := make(map[string]Stats, len(parts))
	for name, p := range parts {
		p.mu.RLock()
		st := Stats{Buckets: len(p.buckets)}
		for _, bm := range p.buckets {
			st.Entries += int(bm.GetCardinality())
		}
		p.mu.RUnlock()
		out[name] = st
	}
	return out
}

// Stats describes one hash partition.
type Stats struct {
	Buckets int
	Entries int
}

// Close implements storage.Storage. Closing twice is a no-op.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.mu.Lock()
	s.parts = make(map[string]*partition)
	s.configs = make(map[string][]byte)
	s.mu.Unlock()
	return nil
}
