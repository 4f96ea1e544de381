package lshash

import (
	"fmt"
	"sync/atomic"

	"github.com/hupe1980/nearlsh/vector"
)

// UniBucket puts every vector into a single bucket whose key is the hash
// name. Querying it degenerates to exhaustive search.
type UniBucket struct {
	name string
	dim  atomic.Int64
}

// NewUniBucket creates a single-bucket hash.
func NewUniBucket(name string) *UniBucket {
	return &UniBucket{name: name}
}

func (h *UniBucket) isHash() {}

// Name implements Hash.
func (h *UniBucket) Name() string { return h.name }

// Kind implements Hash.
func (h *UniBucket) Kind() Kind { return KindUniBucket }

// Dim implements Hash.
func (h *UniBucket) Dim() int { return int(h.dim.Load()) }

// Reset implements Hash.
func (h *UniBucket) Reset(dim int) error {
	init, err := checkReset(h.name, h.Dim(), dim)
	if err != nil || !init {
		return err
	}
	if !h.dim.CompareAndSwap(0, int64(dim)) {
		// Lost a race with a concurrent Reset; re-validate.
		_, err = checkReset(h.name, h.Dim(), dim)
	}
	return err
}

// HashVector implements Hash.
func (h *UniBucket) HashVector(v vector.Vector, _ bool) ([]string, error) {
	return h.Keys(v)
}

// Keys implements Hash.
func (h *UniBucket) Keys(v vector.Vector) ([]string, error) {
	dim := h.Dim()
	if dim == 0 {
		return nil, fmt.Errorf("%w: hash %q", ErrNotInitialized, h.name)
	}
	if v.Dim() != dim {
		return nil, &DimensionMismatchError{Hash: h.name, Expected: dim, Actual: v.Dim(), kind: ErrInvalidInput}
	}
	return []string{h.name}, nil
}

// Config implements Hash.
func (h *UniBucket) Config() (*Config, error) {
	return &Config{Version: ConfigVersion, Kind: h.Kind(), Name: h.name, Dim: h.Dim()}, nil
}

// ApplyConfig implements Hash.
func (h *UniBucket) ApplyConfig(cfg *Config) error {
	if err := checkKind(h, cfg); err != nil {
		return err
	}
	if cfg.Dim < 0 {
		return fmt.Errorf("%w: hash %q: invalid dimension %d", ErrConfiguration, cfg.Name, cfg.Dim)
	}
	h.name = cfg.Name
	h.dim.Store(int64(cfg.Dim))
	return nil
}
