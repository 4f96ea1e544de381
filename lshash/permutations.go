package lshash

import (
	"context"
	"fmt"
	"maps"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/hupe1980/nearlsh/permutation"
	"github.com/hupe1980/nearlsh/vector"
)

// prefixKey namespaces a child key with the child's name.
func prefixKey(child, key string) string { return child + "_" + key }

type permutedChild struct {
	hash BinaryHash
	cfg  permutation.Config

	mu   sync.Mutex
	keys map[string]struct{} // natural keys seen while indexing
}

func (c *permutedChild) register(keys []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		c.keys[k] = struct{}{}
	}
}

func (c *permutedChild) registered() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Sorted(maps.Keys(c.keys))
}

// HashPermutations is a meta-hash over binary child hashes. Indexing stores
// each child's natural key (prefixed with the child name) and records it.
// After BuildPermutedIndex, queries expand each child key into its
// approximate Hamming neighbours among the recorded keys.
//
// Querying before the index for a child has been built fails with
// permutation.ErrIndexNotBuilt. Keys stored after a build are not visible
// to queries until the next build.
type HashPermutations struct {
	name string
	opts options

	mu       sync.RWMutex // guards dim and children
	dim      int
	children []*permutedChild

	rngMu    sync.Mutex
	registry *permutation.Registry
}

// NewHashPermutations creates an empty permutation meta-hash.
func NewHashPermutations(name string, opts ...Option) *HashPermutations {
	return &HashPermutations{
		name:     name,
		opts:     applyOptions(opts),
		registry: permutation.NewRegistry(),
	}
}

func (h *HashPermutations) isHash() {}

// Name implements Hash.
func (h *HashPermutations) Name() string { return h.name }

// Kind implements Hash.
func (h *HashPermutations) Kind() Kind { return KindHashPermutations }

// Dim implements Hash.
func (h *HashPermutations) Dim() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dim
}

// AddChildHash adds a binary child hash with its permuted index settings.
func (h *HashPermutations) AddChildHash(child Hash, cfg permutation.Config) error {
	bh, ok := child.(BinaryHash)
	if !ok {
		return fmt.Errorf("%w: %w: %q is %s", ErrConfiguration, ErrNotBinary, child.Name(), child.Kind())
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("hash %q: child %q: %w", h.name, child.Name(), err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.children {
		if c.hash.Name() == child.Name() {
			return fmt.Errorf("%w: hash %q: duplicate child %q", ErrConfiguration, h.name, child.Name())
		}
	}
	if h.dim != 0 {
		if err := child.Reset(h.dim); err != nil {
			return err
		}
	}
	h.children = append(h.children, &permutedChild{hash: bh, cfg: cfg, keys: make(map[string]struct{})})
	return nil
}

// Children returns the child hashes in insertion order.
func (h *HashPermutations) Children() []BinaryHash {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]BinaryHash, len(h.children))
	for i, c := range h.children {
		out[i] = c.hash
	}
	return out
}

// Reset implements Hash. Children are reset to the same dimension.
func (h *HashPermutations) Reset(dim int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	init, err := checkReset(h.name, h.dim, dim)
	if err != nil || !init {
		return err
	}
	for _, c := range h.children {
		if err := c.hash.Reset(dim); err != nil {
			return err
		}
	}
	h.dim = dim
	return nil
}

// BuildPermutedIndex rebuilds the permuted index of every child from the
// keys recorded so far and publishes it atomically. Concurrent queries keep
// using the previous index until the new one is published.
func (h *HashPermutations) BuildPermutedIndex(ctx context.Context) error {
	h.mu.RLock()
	children := slices.Clone(h.children)
	h.mu.RUnlock()

	for _, c := range children {
		if err := ctx.Err(); err != nil {
			return err
		}
		ix, err := permutation.Build(ctx, c.registered(), c.cfg, h.nextRand())
		if err != nil {
			return fmt.Errorf("hash %q: child %q: %w", h.name, c.hash.Name(), err)
		}
		h.registry.Publish(c.hash.Name(), ix)
	}
	return nil
}

// nextRand derives an independent source for one index build.
func (h *HashPermutations) nextRand() *rand.Rand {
	h.rngMu.Lock()
	defer h.rngMu.Unlock()
	return rand.New(rand.NewPCG(h.opts.rng.Uint64(), h.opts.rng.Uint64()))
}

// HashVector implements Hash.
func (h *HashPermutations) HashVector(v vector.Vector, querying bool) ([]string, error) {
	h.mu.RLock()
	children := slices.Clone(h.children)
	h.mu.RUnlock()

	var out []string
	for _, c := range children {
		name := c.hash.Name()
		if querying {
			ix, ok := h.registry.Get(name)
			if !ok {
				return nil, fmt.Errorf("hash %q: child %q: %w", h.name, name, permutation.ErrIndexNotBuilt)
			}
			keys, err := c.hash.HashVector(v, true)
			if err != nil {
				return nil, err
			}
			for _, k := range keys {
				neighbours, err := ix.Neighbours(k)
				if err != nil {
					return nil, err
				}
				for _, n := range neighbours {
					out = append(out, prefixKey(name, n))
				}
			}
			continue
		}

		keys, err := c.hash.HashVector(v, false)
		if err != nil {
			return nil, err
		}
		c.register(keys)
		for _, k := range keys {
			out = append(out, prefixKey(name, k))
		}
	}
	return out, nil
}

// Keys implements Hash.
func (h *HashPermutations) Keys(v vector.Vector) ([]string, error) {
	h.mu.RLock()
	children := slices.Clone(h.children)
	h.mu.RUnlock()

	var out []string
	for _, c := range children {
		keys, err := c.hash.Keys(v)
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			out = append(out, prefixKey(c.hash.Name(), k))
		}
	}
	return out, nil
}

// Config implements Hash. The permuted index itself is not persisted; call
// BuildPermutedIndex after ApplyConfig.
func (h *HashPermutations) Config() (*Config, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	cfg := &Config{Version: ConfigVersion, Kind: h.Kind(), Name: h.name, Dim: h.dim}
	for _, c := range h.children {
		cc, err := c.hash.Config()
		if err != nil {
			return nil, err
		}
		pc := c.cfg
		cfg.Children = append(cfg.Children, ChildConfig{Hash: cc, Permute: &pc, BucketKeys: c.registered()})
	}
	return cfg, nil
}

// ApplyConfig implements Hash. Children with matching names are updated in
// place; missing children are created from their configuration.
func (h *HashPermutations) ApplyConfig(cfg *Config) error {
	if err := checkKind(h, cfg); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	existing := make(map[string]*permutedChild, len(h.children))
	for _, c := range h.children {
		existing[c.hash.Name()] = c
	}

	children := make([]*permutedChild, 0, len(cfg.Children))
	for _, cc := range cfg.Children {
		if cc.Hash == nil || cc.Permute == nil {
			return fmt.Errorf("%w: hash %q: incomplete child config", ErrConfiguration, cfg.Name)
		}
		if err := cc.Permute.Validate(); err != nil {
			return fmt.Errorf("hash %q: child %q: %w", cfg.Name, cc.Hash.Name, err)
		}

		var bh BinaryHash
		if c, ok := existing[cc.Hash.Name]; ok {
			if err := c.hash.ApplyConfig(cc.Hash); err != nil {
				return err
			}
			bh = c.hash
		} else {
			nh, err := New(cc.Hash, WithRand(h.nextRand()))
			if err != nil {
				return err
			}
			var ok bool
			if bh, ok = nh.(BinaryHash); !ok {
				return fmt.Errorf("%w: %w: %q", ErrConfiguration, ErrNotBinary, cc.Hash.Name)
			}
		}

		pc := &permutedChild{hash: bh, cfg: *cc.Permute, keys: make(map[string]struct{}, len(cc.BucketKeys))}
		pc.register(cc.BucketKeys)
		children = append(children, pc)
	}

	h.name = cfg.Name
	h.dim = cfg.Dim
	h.children = children
	return nil
}
