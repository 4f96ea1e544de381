package lshash

import (
	"fmt"

	"github.com/hupe1980/nearlsh/vector"
)

// Kind identifies a hash strategy in persisted configurations.
type Kind string

const (
	KindRandomBinaryProjections      Kind = "random_binary_projections"
	KindRandomDiscretizedProjections Kind = "random_discretized_projections"
	KindPCABinaryProjections         Kind = "pca_binary_projections"
	KindPCADiscretizedProjections    Kind = "pca_discretized_projections"
	KindRandomBinaryProjectionTree   Kind = "random_binary_projection_tree"
	KindUniBucket                    Kind = "uni_bucket"
	KindHashPermutations             Kind = "hash_permutations"
	KindHashPermutationMapper        Kind = "hash_permutation_mapper"
)

// Hash maps vectors to bucket keys.
//
// The set of implementations is closed; all of them live in this package.
type Hash interface {
	// Name is the storage namespace of the hash.
	Name() string
	// Kind identifies the strategy.
	Kind() Kind
	// Dim returns the dimension the hash is locked to (0 before Reset).
	Dim() int
	// Reset initializes the hash for dim. Calling it again with the same
	// dimension is a no-op; a different dimension is a configuration error.
	Reset(dim int) error
	// HashVector returns the bucket keys for v. With querying=false it
	// returns the natural key(s) and may record them (tree counts,
	// permutation bookkeeping). With querying=true it may expand into
	// several approximate-neighbour keys.
	HashVector(v vector.Vector, querying bool) ([]string, error)
	// Keys returns the keys HashVector(v, false) would return, without
	// recording anything.
	Keys(v vector.Vector) ([]string, error)
	// Config captures the parameters needed to rebuild the hash.
	Config() (*Config, error)
	// ApplyConfig restores parameters captured by Config.
	ApplyConfig(cfg *Config) error

	isHash()
}

// BinaryHash is a Hash whose natural keys are fixed-length '0'/'1' strings.
// Only binary hashes can be children of the permutation meta-hashes.
type BinaryHash interface {
	Hash
	// ProjectionCount is the key length in bits.
	ProjectionCount() int
}

// New creates an uninitialized hash from a persisted configuration. The
// returned hash is ready to use; Reset with the configured dimension is a
// no-op.
func New(cfg *Config, opts ...Option) (Hash, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", ErrConfiguration)
	}

	var h Hash
	switch cfg.Kind {
	case KindRandomBinaryProjections:
		h = &RandomBinaryProjections{name: cfg.Name, proj: newProjection(cfg.ProjectionCount), opts: applyOptions(opts)}
	case KindRandomDiscretizedProjections:
		h = &RandomDiscretizedProjections{name: cfg.Name, binWidth: cfg.BinWidth, proj: newProjection(cfg.ProjectionCount), opts: applyOptions(opts)}
	case KindPCABinaryProjections:
		h = &PCABinaryProjections{pcaCore: pcaCore{name: cfg.Name, proj: newProjection(cfg.ProjectionCount)}}
	case KindPCADiscretizedProjections:
		h = &PCADiscretizedProjections{pcaCore: pcaCore{name: cfg.Name, proj: newProjection(cfg.ProjectionCount)}, binWidth: cfg.BinWidth}
	case KindRandomBinaryProjectionTree:
		h = &RandomBinaryProjectionTree{name: cfg.Name, minResultSize: cfg.MinResultSize, proj: newProjection(cfg.ProjectionCount), opts: applyOptions(opts), tree: newTree()}
	case KindUniBucket:
		h = NewUniBucket(cfg.Name)
	case KindHashPermutations:
		h = NewHashPermutations(cfg.Name, opts...)
	case KindHashPermutationMapper:
		h = NewHashPermutationMapper(cfg.Name)
	default:
		return nil, fmt.Errorf("%w: unknown hash kind %q", ErrConfiguration, cfg.Kind)
	}

	if err := h.ApplyConfig(cfg); err != nil {
		return nil, err
	}
	return h, nil
}

func checkKind(h Hash, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: nil config", ErrConfiguration)
	}
	if cfg.Kind != h.Kind() {
		return fmt.Errorf("%w: config kind %q does not match hash kind %q", ErrConfiguration, cfg.Kind, h.Kind())
	}
	if cfg.Version != ConfigVersion {
		return fmt.Errorf("%w: unsupported config version %d", ErrConfiguration, cfg.Version)
	}
	return nil
}
