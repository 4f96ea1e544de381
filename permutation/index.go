package permutation

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"
)

// DefaultCacheSize is the number of query keys whose neighbour lists are
// memoized per index.
const DefaultCacheSize = 1024

// Config controls how an Index is built and queried.
type Config struct {
	// NumPermutation is the number of sorted permuted key lists.
	NumPermutation int `json:"num_permutation" yaml:"num_permutation"`
	// BeamSize is the number of entries inspected around the match position
	// in each list. Must be even.
	BeamSize int `json:"beam_size" yaml:"beam_size"`
	// NumNeighbour is the number of keys returned per lookup.
	NumNeighbour int `json:"num_neighbour" yaml:"num_neighbour"`
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.NumPermutation <= 0 || c.BeamSize <= 0 || c.NumNeighbour <= 0 {
		return fmt.Errorf("%w: %+v", ErrInvalidConfig, c)
	}
	if c.BeamSize%2 != 0 {
		return fmt.Errorf("%w: got %d", ErrOddBeamSize, c.BeamSize)
	}
	return nil
}

type entry struct {
	permuted bitKey
	orig     int32
}

// Index is an immutable permuted index over a set of binary keys.
// It is safe for concurrent lookups.
type Index struct {
	cfg   Config
	bits  int
	keys  []bitKey
	strs  []string
	perms []*Permute
	lists [][]entry
	cache *lru.Cache[string, []string]
}

// Build constructs an index over keys. Duplicate keys are collapsed. All
// keys must be binary strings of the same length.
//
// Permutations are drawn from rng sequentially, so a seeded source yields a
// reproducible index. The sorted lists are built concurrently; ctx bounds
// the total build time.
func Build(ctx context.Context, keys []string, cfg Config, rng *rand.Rand) (*Index, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	strs := slices.Clone(keys)
	slices.Sort(strs)
	strs = slices.Compact(strs)

	n := 0
	if len(strs) > 0 {
		n = len(strs[0])
	}

	parsed := make([]bitKey, len(strs))
	for i, s := range strs {
		k, err := parseKey(s, n)
		if err != nil {
			return nil, err
		}
		parsed[i] = k
	}

	perms := make([]*Permute, cfg.NumPermutation)
	for i := range perms {
		perms[i] = NewPermute(n, rng)
	}

	lists := make([][]entry, len(perms))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range perms {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			list := make([]entry, len(parsed))
			for j, k := range parsed {
				list[j] = entry{permuted: p.apply(k), orig: int32(j)}
			}
			sort.Slice(list, func(a, b int) bool {
				return lessEntry(list[a], list[b], parsed)
			})
			lists[i] = list
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("build permuted index: %w", err)
	}

	cache, err := lru.New[string, []string](DefaultCacheSize)
	if err != nil {
		return nil, err
	}

	return &Index{
		cfg:   cfg,
		bits:  n,
		keys:  parsed,
		strs:  strs,
		perms: perms,
		lists: lists,
		cache: cache,
	}, nil
}

func lessEntry(a, b entry, keys []bitKey) bool {
	if c := compareKeys(a.permuted, b.permuted); c != 0 {
		return c < 0
	}
	return compareKeys(keys[a.orig], keys[b.orig]) < 0
}

// Config returns the configuration the index was built with.
func (ix *Index) Config() Config { return ix.cfg }

// Len returns the number of distinct keys in the index.
func (ix *Index) Len() int { return len(ix.strs) }

// KeyLength returns the bit length of the indexed keys (0 if empty).
func (ix *Index) KeyLength() int { return ix.bits }

// Neighbours returns up to NumNeighbour indexed keys closest to key in
// Hamming distance, nearest first. Ties are broken by key order.
func (ix *Index) Neighbours(key string) ([]string, error) {
	if len(ix.strs) == 0 {
		return nil, nil
	}
	if cached, ok := ix.cache.Get(key); ok {
		return slices.Clone(cached), nil
	}

	q, err := parseKey(key, ix.bits)
	if err != nil {
		return nil, err
	}

	half := ix.cfg.BeamSize / 2
	seen := make(map[int32]struct{})
	for i, p := range ix.perms {
		list := ix.lists[i]
		pq := p.apply(q)
		// bisect_left on (permuted query, query)
		pos := sort.Search(len(list), func(j int) bool {
			if c := compareKeys(list[j].permuted, pq); c != 0 {
				return c > 0
			}
			return compareKeys(ix.keys[list[j].orig], q) >= 0
		})
		start := max(0, pos-half)
		end := min(len(list), pos+half)
		for _, e := range list[start:end] {
			seen[e.orig] = struct{}{}
		}
	}

	union := make([]int32, 0, len(seen))
	for idx := range seen {
		union = append(union, idx)
	}
	dist := make(map[int32]int, len(union))
	for _, idx := range union {
		dist[idx] = hamming(ix.keys[idx], q)
	}
	sort.Slice(union, func(a, b int) bool {
		da, db := dist[union[a]], dist[union[b]]
		if da != db {
			return da < db
		}
		return union[a] < union[b]
	})
	if len(union) > ix.cfg.NumNeighbour {
		union = union[:ix.cfg.NumNeighbour]
	}

	out := make([]string, len(union))
	for i, idx := range union {
		out[i] = ix.strs[idx]
	}
	ix.cache.Add(key, out)
	return slices.Clone(out), nil
}
