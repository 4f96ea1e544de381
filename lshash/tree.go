package lshash

import (
	"fmt"
	"sync"

	"github.com/hupe1980/nearlsh/vector"
)

const noChild int32 = -1

type treeNode struct {
	count     int
	children  [2]int32
	bucketKey string
}

// tree is a binary trie over indexed keys stored as an arena; nodes[0] is
// the root. Every node counts the vectors inserted below it.
type tree struct {
	nodes []treeNode
}

func newTree() *tree {
	return &tree{nodes: []treeNode{{children: [2]int32{noChild, noChild}}}}
}

func (t *tree) insert(key string) error {
	node := int32(0)
	t.nodes[0].count++
	for depth := 0; depth < len(key); depth++ {
		bit := key[depth] - '0'
		child := t.nodes[node].children[bit]
		if child == noChild {
			child = int32(len(t.nodes))
			t.nodes = append(t.nodes, treeNode{children: [2]int32{noChild, noChild}})
			t.nodes[node].children[bit] = child
		}
		node = child
		t.nodes[node].count++
	}
	if leaf := &t.nodes[node]; leaf.bucketKey == "" {
		leaf.bucketKey = key
	} else if leaf.bucketKey != key {
		return fmt.Errorf("%w: tree leaf holds %q, inserting %q", ErrConfiguration, leaf.bucketKey, key)
	}
	return nil
}

// collect appends every leaf key below node, '0' subtree first.
func (t *tree) collect(node int32, out []string) []string {
	n := &t.nodes[node]
	if n.children[0] == noChild && n.children[1] == noChild {
		if n.bucketKey != "" {
			out = append(out, n.bucketKey)
		}
		return out
	}
	for _, c := range n.children {
		if c != noChild {
			out = t.collect(c, out)
		}
	}
	return out
}

// keysFor walks the query key from the root. When the preferred child holds
// fewer than minSize vectors, the keys of both children are returned so the
// result covers at least minSize indexed vectors (if that many exist).
func (t *tree) keysFor(key string, minSize int) []string {
	node := int32(0)
	for depth := 0; depth < len(key); depth++ {
		n := &t.nodes[node]
		bit := key[depth] - '0'
		preferred, other := n.children[bit], n.children[1-bit]

		switch {
		case preferred == noChild && other == noChild:
			return nil
		case preferred == noChild:
			node = other
		case t.nodes[preferred].count < minSize:
			out := t.collect(preferred, nil)
			if other != noChild {
				out = t.collect(other, out)
			}
			return out
		default:
			node = preferred
		}
	}
	if k := t.nodes[node].bucketKey; k != "" {
		return []string{k}
	}
	return nil
}

func (t *tree) export() []TreeNodeConfig {
	out := make([]TreeNodeConfig, len(t.nodes))
	for i, n := range t.nodes {
		out[i] = TreeNodeConfig{Count: n.count, Children: n.children, BucketKey: n.bucketKey}
	}
	return out
}

func importTree(nodes []TreeNodeConfig) (*tree, error) {
	if len(nodes) == 0 {
		return newTree(), nil
	}
	t := &tree{nodes: make([]treeNode, len(nodes))}
	for i, n := range nodes {
		for _, c := range n.Children {
			if c != noChild && (c <= 0 || int(c) >= len(nodes)) {
				return nil, fmt.Errorf("%w: tree node %d has invalid child %d", ErrConfiguration, i, c)
			}
		}
		t.nodes[i] = treeNode{count: n.Count, children: n.Children, bucketKey: n.BucketKey}
	}
	return t, nil
}

// RandomBinaryProjectionTree hashes like RandomBinaryProjections but keeps
// a counting trie over all indexed keys. Queries return enough bucket keys
// to cover at least MinResultSize indexed vectors.
type RandomBinaryProjectionTree struct {
	name          string
	minResultSize int
	proj          *projection
	opts          options

	mu   sync.RWMutex // guards tree
	tree *tree
}

// NewRandomBinaryProjectionTree creates a tree hash with k bits that
// guarantees query results covering at least minResultSize vectors.
func NewRandomBinaryProjectionTree(name string, k, minResultSize int, opts ...Option) (*RandomBinaryProjectionTree, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: hash %q: projection count must be positive, got %d", ErrConfiguration, name, k)
	}
	if minResultSize < 0 {
		return nil, fmt.Errorf("%w: hash %q: minimum result size must not be negative", ErrConfiguration, name)
	}
	return &RandomBinaryProjectionTree{
		name:          name,
		minResultSize: minResultSize,
		proj:          newProjection(k),
		opts:          applyOptions(opts),
		tree:          newTree(),
	}, nil
}

func (h *RandomBinaryProjectionTree) isHash() {}

// Name implements Hash.
func (h *RandomBinaryProjectionTree) Name() string { return h.name }

// Kind implements Hash.
func (h *RandomBinaryProjectionTree) Kind() Kind { return KindRandomBinaryProjectionTree }

// Dim implements Hash.
func (h *RandomBinaryProjectionTree) Dim() int { return h.proj.dimension() }

// ProjectionCount implements BinaryHash.
func (h *RandomBinaryProjectionTree) ProjectionCount() int { return h.proj.count() }

// MinResultSize returns the guaranteed minimum number of covered vectors.
func (h *RandomBinaryProjectionTree) MinResultSize() int { return h.minResultSize }

// Reset implements Hash.
func (h *RandomBinaryProjectionTree) Reset(dim int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	init, err := checkReset(h.name, h.proj.dimension(), dim)
	if err != nil || !init {
		return err
	}
	h.proj.randomize(dim, h.opts.rng)
	h.tree = newTree()
	return nil
}

// HashVector implements Hash. Indexing inserts the key into the trie.
func (h *RandomBinaryProjectionTree) HashVector(v vector.Vector, querying bool) ([]string, error) {
	p, err := h.proj.project(h.name, v)
	if err != nil {
		return nil, err
	}
	key := binaryKey(p)

	if querying {
		h.mu.RLock()
		defer h.mu.RUnlock()
		return h.tree.keysFor(key, h.minResultSize), nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.tree.insert(key); err != nil {
		return nil, err
	}
	return []string{key}, nil
}

// Keys implements Hash.
func (h *RandomBinaryProjectionTree) Keys(v vector.Vector) ([]string, error) {
	p, err := h.proj.project(h.name, v)
	if err != nil {
		return nil, err
	}
	return []string{binaryKey(p)}, nil
}

// Config implements Hash.
func (h *RandomBinaryProjectionTree) Config() (*Config, error) {
	dim, normals := h.proj.snapshot()
	h.mu.RLock()
	defer h.mu.RUnlock()
	return &Config{
		Version:         ConfigVersion,
		Kind:            h.Kind(),
		Name:            h.name,
		Dim:             dim,
		ProjectionCount: h.proj.count(),
		MinResultSize:   h.minResultSize,
		Normals:         normals,
		Tree:            h.tree.export(),
	}, nil
}

// ApplyConfig implements Hash.
func (h *RandomBinaryProjectionTree) ApplyConfig(cfg *Config) error {
	if err := checkKind(h, cfg); err != nil {
		return err
	}
	t, err := importTree(cfg.Tree)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.proj.apply(cfg.Name, cfg); err != nil {
		return err
	}
	h.name = cfg.Name
	h.minResultSize = cfg.MinResultSize
	h.tree = t
	return nil
}
