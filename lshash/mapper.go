package lshash

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/hupe1980/nearlsh/vector"
)

// HashPermutationMapper is a meta-hash over binary child hashes that needs
// no build step. Indexing registers, for every natural key, the key and all
// of its single-bit-flip variants as mutual neighbours. Queries return the
// registered variants of the query key, so expansion is limited to
// Hamming distance one around keys seen at index time.
type HashPermutationMapper struct {
	name string

	mu       sync.RWMutex
	dim      int
	children []BinaryHash
	keyMap   map[string]map[string]struct{}
}

// NewHashPermutationMapper creates an empty mapper meta-hash.
func NewHashPermutationMapper(name string) *HashPermutationMapper {
	return &HashPermutationMapper{name: name, keyMap: make(map[string]map[string]struct{})}
}

func (h *HashPermutationMapper) isHash() {}

// Name implements Hash.
func (h *HashPermutationMapper) Name() string { return h.name }

// Kind implements Hash.
func (h *HashPermutationMapper) Kind() Kind { return KindHashPermutationMapper }

// Dim implements Hash.
func (h *HashPermutationMapper) Dim() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dim
}

// AddChildHash adds a binary child hash.
func (h *HashPermutationMapper) AddChildHash(child Hash) error {
	bh, ok := child.(BinaryHash)
	if !ok {
		return fmt.Errorf("%w: %w: %q is %s", ErrConfiguration, ErrNotBinary, child.Name(), child.Kind())
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.children {
		if c.Name() == child.Name() {
			return fmt.Errorf("%w: hash %q: duplicate child %q", ErrConfiguration, h.name, child.Name())
		}
	}
	if h.dim != 0 {
		if err := child.Reset(h.dim); err != nil {
			return err
		}
	}
	h.children = append(h.children, bh)
	return nil
}

// Reset implements Hash.
func (h *HashPermutationMapper) Reset(dim int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	init, err := checkReset(h.name, h.dim, dim)
	if err != nil || !init {
		return err
	}
	for _, c := range h.children {
		if err := c.Reset(dim); err != nil {
			return err
		}
	}
	h.dim = dim
	clear(h.keyMap)
	return nil
}

// bitFlips returns key with each position flipped in turn.
func bitFlips(key string) []string {
	out := make([]string, 0, len(key))
	b := []byte(key)
	for i := range b {
		orig := b[i]
		if orig == '0' {
			b[i] = '1'
		} else {
			b[i] = '0'
		}
		out = append(out, string(b))
		b[i] = orig
	}
	return out
}

// HashVector implements Hash.
func (h *HashPermutationMapper) HashVector(v vector.Vector, querying bool) ([]string, error) {
	h.mu.RLock()
	children := slices.Clone(h.children)
	h.mu.RUnlock()

	var out []string
	for _, c := range children {
		keys, err := c.HashVector(v, querying)
		if err != nil {
			return nil, err
		}

		if querying {
			h.mu.RLock()
			for _, k := range keys {
				if variants, ok := h.keyMap[prefixKey(c.Name(), k)]; ok {
					out = append(out, slices.Sorted(maps.Keys(variants))...)
				}
			}
			h.mu.RUnlock()
			continue
		}

		h.mu.Lock()
		for _, k := range keys {
			variants := append(bitFlips(k), k)
			for i, vk := range variants {
				variants[i] = prefixKey(c.Name(), vk)
			}
			for _, pk := range variants {
				set, ok := h.keyMap[pk]
				if !ok {
					set = make(map[string]struct{}, len(variants))
					h.keyMap[pk] = set
				}
				for _, other := range variants {
					set[other] = struct{}{}
				}
			}
			out = append(out, prefixKey(c.Name(), k))
		}
		h.mu.Unlock()
	}
	return out, nil
}

// Keys implements Hash.
func (h *HashPermutationMapper) Keys(v vector.Vector) ([]string, error) {
	h.mu.RLock()
	children := slices.Clone(h.children)
	h.mu.RUnlock()

	var out []string
	for _, c := range children {
		keys, err := c.Keys(v)
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			out = append(out, prefixKey(c.Name(), k))
		}
	}
	return out, nil
}

// Config implements Hash.
func (h *HashPermutationMapper) Config() (*Config, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	cfg := &Config{
		Version:      ConfigVersion,
		Kind:         h.Kind(),
		Name:         h.name,
		Dim:          h.dim,
		BucketKeyMap: make(map[string][]string, len(h.keyMap)),
	}
	for k, set := range h.keyMap {
		cfg.BucketKeyMap[k] = slices.Sorted(maps.Keys(set))
	}
	for _, c := range h.children {
		cc, err := c.Config()
		if err != nil {
			return nil, err
		}
		cfg.Children = append(cfg.Children, ChildConfig{Hash: cc})
	}
	return cfg, nil
}

// ApplyConfig implements Hash.
func (h *HashPermutationMapper) ApplyConfig(cfg *Config) error {
	if err := checkKind(h, cfg); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	existing := make(map[string]BinaryHash, len(h.children))
	for _, c := range h.children {
		existing[c.Name()] = c
	}

	children := make([]BinaryHash, 0, len(cfg.Children))
	for _, cc := range cfg.Children {
		if cc.Hash == nil {
			return fmt.Errorf("%w: hash %q: incomplete child config", ErrConfiguration, cfg.Name)
		}
		if c, ok := existing[cc.Hash.Name]; ok {
			if err := c.ApplyConfig(cc.Hash); err != nil {
				return err
			}
			children = append(children, c)
			continue
		}
		nh, err := New(cc.Hash)
		if err != nil {
			return err
		}
		bh, ok := nh.(BinaryHash)
		if !ok {
			return fmt.Errorf("%w: %w: %q", ErrConfiguration, ErrNotBinary, cc.Hash.Name)
		}
		children = append(children, bh)
	}

	keyMap := make(map[string]map[string]struct{}, len(cfg.BucketKeyMap))
	for k, variants := range cfg.BucketKeyMap {
		set := make(map[string]struct{}, len(variants))
		for _, v := range variants {
			set[v] = struct{}{}
		}
		keyMap[k] = set
	}

	h.name = cfg.Name
	h.dim = cfg.Dim
	h.children = children
	h.keyMap = keyMap
	return nil
}
