// Package config describes engines declaratively in YAML.
//
// A description lists the hashes, distance, filters and storage of an
// engine:
//
//	dimension: 100
//	distance: cosine
//	filters:
//	  - type: nearest
//	    n: 10
//	hashes:
//	  - name: rbp
//	    type: random_binary_projections
//	    projections: 10
//	    seed: 42
//	storage:
//	  type: sqlite
//	  path: lsh.db
//
// Load or Parse decode a description, Build turns it into an engine.
package config

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/nearlsh"
	"github.com/hupe1980/nearlsh/codec"
	"github.com/hupe1980/nearlsh/distance"
	"github.com/hupe1980/nearlsh/internal/frame"
	"github.com/hupe1980/nearlsh/lshash"
	"github.com/hupe1980/nearlsh/permutation"
	"github.com/hupe1980/nearlsh/resource"
)

// DistanceNone disables distance scoring.
const DistanceNone = "none"

// Filter types.
const (
	FilterUnique            = "unique"
	FilterNearest           = "nearest"
	FilterDistanceThreshold = "distance_threshold"
)

// Storage types.
const (
	StorageMemory = "memory"
	StorageSQLite = "sqlite"
)

// EngineSpec is the root of an engine description.
type EngineSpec struct {
	Dimension int    `yaml:"dimension"`
	Distance  string `yaml:"distance"`
	Normalize bool   `yaml:"normalize"`

	// MaxCandidates caps the candidates collected per query. 0 means no cap.
	MaxCandidates int `yaml:"max_candidates"`

	// Filters replaces the default Nearest(10) chain when present. An
	// explicitly empty list returns raw candidates.
	Filters      []FilterSpec `yaml:"filters"`
	FetchFilters []FilterSpec `yaml:"fetch_filters"`

	Hashes  []HashSpec      `yaml:"hashes"`
	Storage StorageSpec     `yaml:"storage"`
	Limits  resource.Config `yaml:"limits"`

	// LogLevel enables a text logger on stderr, e.g. "info" or "debug".
	LogLevel string `yaml:"log_level"`

	// RestoreHashConfigs applies hash configurations saved in the storage
	// after the engine is built.
	RestoreHashConfigs bool `yaml:"restore_hash_configs"`
}

// HashSpec describes one hash. Projections, BinWidth, MinResultSize and
// Seed apply to the kinds that use them.
type HashSpec struct {
	Name          string      `yaml:"name"`
	Type          lshash.Kind `yaml:"type"`
	Projections   int         `yaml:"projections"`
	BinWidth      float64     `yaml:"bin_width"`
	MinResultSize int         `yaml:"min_result_size"`
	Seed          *uint64     `yaml:"seed"`
	Children      []ChildSpec `yaml:"children"`
}

// ChildSpec is a binary child hash of hash_permutations or
// hash_permutation_mapper. Permutation is only read by hash_permutations.
type ChildSpec struct {
	Hash        HashSpec           `yaml:"hash"`
	Permutation permutation.Config `yaml:"permutation"`
}

// FilterSpec describes one filter.
type FilterSpec struct {
	Type      string  `yaml:"type"`
	N         int     `yaml:"n"`
	Threshold float64 `yaml:"threshold"`
}

// StorageSpec selects the bucket storage. The zero value is an in-memory
// store.
type StorageSpec struct {
	Type string `yaml:"type"`
	// Path is the sqlite database file.
	Path string `yaml:"path"`
	// Codec is "json" or "go-json".
	Codec string `yaml:"codec"`
	// Compression of memory snapshots: "none", "lz4" or "zstd".
	Compression string `yaml:"compression"`
	// BusyTimeoutMS is the sqlite busy timeout.
	BusyTimeoutMS int `yaml:"busy_timeout_ms"`
}

// Load reads and parses the description at path.
func Load(path string) (*EngineSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	spec, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return spec, nil
}

// Parse decodes and validates a YAML description. Unknown fields are
// rejected.
func Parse(data []byte) (*EngineSpec, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var spec EngineSpec
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("%w: %w", nearlsh.ErrConfiguration, err)
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

// Validate checks the description without building anything.
func (s *EngineSpec) Validate() error {
	if s.Dimension <= 0 {
		return &nearlsh.ErrInvalidDimension{Dimension: s.Dimension}
	}
	if s.Distance != "" && s.Distance != DistanceNone {
		if _, err := distance.ParseMetric(s.Distance); err != nil {
			return invalid("distance: %v", err)
		}
	}
	if s.MaxCandidates < 0 {
		return invalid("max_candidates must not be negative")
	}
	for i, f := range s.FetchFilters {
		if err := f.validate(); err != nil {
			return fmt.Errorf("fetch_filters[%d]: %w", i, err)
		}
	}
	for i, f := range s.Filters {
		if err := f.validate(); err != nil {
			return fmt.Errorf("filters[%d]: %w", i, err)
		}
	}

	names := make(map[string]struct{})
	for i, h := range s.Hashes {
		if err := h.validate(names, false); err != nil {
			return fmt.Errorf("hashes[%d]: %w", i, err)
		}
	}
	if err := s.Storage.validate(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if s.LogLevel != "" {
		if _, err := s.level(); err != nil {
			return invalid("log_level: %v", err)
		}
	}
	return nil
}

func (s *EngineSpec) level() (slog.Level, error) {
	var lvl slog.Level
	err := lvl.UnmarshalText([]byte(s.LogLevel))
	return lvl, err
}

func (f FilterSpec) validate() error {
	switch f.Type {
	case FilterUnique:
	case FilterNearest:
		if f.N <= 0 {
			return invalid("nearest needs n > 0")
		}
	case FilterDistanceThreshold:
	default:
		return invalid("unknown filter type %q", f.Type)
	}
	return nil
}

// validate checks h and records its name. Names must be unique across
// the whole description because children share the storage namespace of
// their parent's engine.
func (h HashSpec) validate(names map[string]struct{}, child bool) error {
	if h.Name == "" {
		return invalid("hash without name")
	}
	if _, dup := names[h.Name]; dup {
		return invalid("duplicate hash name %q", h.Name)
	}
	names[h.Name] = struct{}{}

	switch h.Type {
	case lshash.KindRandomBinaryProjections, lshash.KindPCABinaryProjections, lshash.KindRandomBinaryProjectionTree:
		if h.Projections <= 0 {
			return invalid("%s %q needs projections > 0", h.Type, h.Name)
		}
	case lshash.KindRandomDiscretizedProjections, lshash.KindPCADiscretizedProjections:
		if h.Projections <= 0 || h.BinWidth <= 0 {
			return invalid("%s %q needs projections > 0 and bin_width > 0", h.Type, h.Name)
		}
	case lshash.KindUniBucket:
	case lshash.KindHashPermutations, lshash.KindHashPermutationMapper:
		if child {
			return invalid("%s %q cannot be nested", h.Type, h.Name)
		}
		if len(h.Children) == 0 {
			return invalid("%s %q needs at least one child", h.Type, h.Name)
		}
		for i, c := range h.Children {
			if err := c.Hash.validate(names, true); err != nil {
				return fmt.Errorf("children[%d]: %w", i, err)
			}
			if h.Type == lshash.KindHashPermutations {
				if err := c.Permutation.Validate(); err != nil {
					return fmt.Errorf("children[%d]: %w: %w", i, nearlsh.ErrConfiguration, err)
				}
			}
		}
		return nil
	default:
		return invalid("unknown hash type %q", h.Type)
	}
	if len(h.Children) > 0 {
		return invalid("%s %q cannot have children", h.Type, h.Name)
	}
	return nil
}

func (s StorageSpec) validate() error {
	switch s.Type {
	case "", StorageMemory:
	case StorageSQLite:
		if s.Path == "" {
			return invalid("sqlite needs a path")
		}
	default:
		return invalid("unknown storage type %q", s.Type)
	}
	if s.Codec != "" {
		if _, ok := codec.ByName(s.Codec); !ok {
			return invalid("unknown codec %q", s.Codec)
		}
	}
	if _, err := frame.ParseCompression(s.Compression); err != nil {
		return invalid("%v", err)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", nearlsh.ErrConfiguration, fmt.Sprintf(format, args...))
}
