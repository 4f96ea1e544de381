package lshash

import (
	"fmt"
	"sync"

	"github.com/hupe1980/nearlsh/vector"
)

// RandomBinaryProjections projects vectors onto k random hyperplane normals
// and encodes the sign of each projection as one key bit, e.g. "1010110011"
// for k=10.
type RandomBinaryProjections struct {
	name string
	proj *projection
	opts options
	mu   sync.Mutex // serializes Reset
}

// NewRandomBinaryProjections creates a binary projection hash with k bits.
func NewRandomBinaryProjections(name string, k int, opts ...Option) (*RandomBinaryProjections, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: hash %q: projection count must be positive, got %d", ErrConfiguration, name, k)
	}
	return &RandomBinaryProjections{name: name, proj: newProjection(k), opts: applyOptions(opts)}, nil
}

func (h *RandomBinaryProjections) isHash() {}

// Name implements Hash.
func (h *RandomBinaryProjections) Name() string { return h.name }

// Kind implements Hash.
func (h *RandomBinaryProjections) Kind() Kind { return KindRandomBinaryProjections }

// Dim implements Hash.
func (h *RandomBinaryProjections) Dim() int { return h.proj.dimension() }

// ProjectionCount implements BinaryHash.
func (h *RandomBinaryProjections) ProjectionCount() int { return h.proj.count() }

// Reset implements Hash.
func (h *RandomBinaryProjections) Reset(dim int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	init, err := checkReset(h.name, h.proj.dimension(), dim)
	if err != nil || !init {
		return err
	}
	h.proj.randomize(dim, h.opts.rng)
	return nil
}

// HashVector implements Hash. The key does not depend on querying.
func (h *RandomBinaryProjections) HashVector(v vector.Vector, _ bool) ([]string, error) {
	return h.Keys(v)
}

// Keys implements Hash.
func (h *RandomBinaryProjections) Keys(v vector.Vector) ([]string, error) {
	p, err := h.proj.project(h.name, v)
	if err != nil {
		return nil, err
	}
	return []string{binaryKey(p)}, nil
}

// Config implements Hash.
func (h *RandomBinaryProjections) Config() (*Config, error) {
	dim, normals := h.proj.snapshot()
	return &Config{
		Version:         ConfigVersion,
		Kind:            h.Kind(),
		Name:            h.name,
		Dim:             dim,
		ProjectionCount: h.proj.count(),
		Normals:         normals,
	}, nil
}

// ApplyConfig implements Hash.
func (h *RandomBinaryProjections) ApplyConfig(cfg *Config) error {
	if err := checkKind(h, cfg); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.proj.apply(cfg.Name, cfg); err != nil {
		return err
	}
	h.name = cfg.Name
	return nil
}

// RandomDiscretizedProjections projects vectors onto k random directions
// and encodes floor(projection / binWidth) per direction, e.g. "14_4_1".
type RandomDiscretizedProjections struct {
	name     string
	binWidth float64
	proj     *projection
	opts     options
	mu       sync.Mutex
}

// NewRandomDiscretizedProjections creates a discretized projection hash.
func NewRandomDiscretizedProjections(name string, k int, binWidth float64, opts ...Option) (*RandomDiscretizedProjections, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: hash %q: projection count must be positive, got %d", ErrConfiguration, name, k)
	}
	if binWidth <= 0 {
		return nil, fmt.Errorf("%w: hash %q: bin width must be positive, got %g", ErrConfiguration, name, binWidth)
	}
	return &RandomDiscretizedProjections{name: name, binWidth: binWidth, proj: newProjection(k), opts: applyOptions(opts)}, nil
}

func (h *RandomDiscretizedProjections) isHash() {}

// Name implements Hash.
func (h *RandomDiscretizedProjections) Name() string { return h.name }

// Kind implements Hash.
func (h *RandomDiscretizedProjections) Kind() Kind { return KindRandomDiscretizedProjections }

// Dim implements Hash.
func (h *RandomDiscretizedProjections) Dim() int { return h.proj.dimension() }

// BinWidth returns the discretization width.
func (h *RandomDiscretizedProjections) BinWidth() float64 { return h.binWidth }

// Reset implements Hash.
func (h *RandomDiscretizedProjections) Reset(dim int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	init, err := checkReset(h.name, h.proj.dimension(), dim)
	if err != nil || !init {
		return err
	}
	h.proj.randomize(dim, h.opts.rng)
	return nil
}

// HashVector implements Hash. The key does not depend on querying.
func (h *RandomDiscretizedProjections) HashVector(v vector.Vector, _ bool) ([]string, error) {
	return h.Keys(v)
}

// Keys implements Hash.
func (h *RandomDiscretizedProjections) Keys(v vector.Vector) ([]string, error) {
	p, err := h.proj.project(h.name, v)
	if err != nil {
		return nil, err
	}
	return []string{discretizedKey(p, h.binWidth)}, nil
}

// Config implements Hash.
func (h *RandomDiscretizedProjections) Config() (*Config, error) {
	dim, normals := h.proj.snapshot()
	return &Config{
		Version:         ConfigVersion,
		Kind:            h.Kind(),
		Name:            h.name,
		Dim:             dim,
		ProjectionCount: h.proj.count(),
		BinWidth:        h.binWidth,
		Normals:         normals,
	}, nil
}

// ApplyConfig implements Hash.
func (h *RandomDiscretizedProjections) ApplyConfig(cfg *Config) error {
	if err := checkKind(h, cfg); err != nil {
		return err
	}
	if cfg.BinWidth <= 0 {
		return fmt.Errorf("%w: hash %q: bin width must be positive", ErrConfiguration, cfg.Name)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.proj.apply(cfg.Name, cfg); err != nil {
		return err
	}
	h.name = cfg.Name
	h.binWidth = cfg.BinWidth
	return nil
}
