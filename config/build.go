package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/nearlsh"
	"github.com/hupe1980/nearlsh/codec"
	"github.com/hupe1980/nearlsh/distance"
	"github.com/hupe1980/nearlsh/filter"
	"github.com/hupe1980/nearlsh/internal/frame"
	"github.com/hupe1980/nearlsh/lshash"
	"github.com/hupe1980/nearlsh/resource"
	"github.com/hupe1980/nearlsh/storage"
	"github.com/hupe1980/nearlsh/storage/memory"
	"github.com/hupe1980/nearlsh/storage/sqlite"
	"github.com/hupe1980/nearlsh/vector"
)

// BuildOptions supplies what a description cannot carry.
type BuildOptions struct {
	// TrainingSet feeds the PCA hashes.
	TrainingSet []vector.Vector
	// Storage overrides the storage section.
	Storage storage.Storage
	// EngineOptions are applied after the options derived from the
	// description.
	EngineOptions []nearlsh.Option
}

// BuildOption configures BuildOptions.
type BuildOption func(*BuildOptions)

// WithTrainingSet supplies the training vectors of PCA hashes.
func WithTrainingSet(vs []vector.Vector) BuildOption {
	return func(o *BuildOptions) { o.TrainingSet = vs }
}

// WithStorage uses s instead of the storage section. The engine built
// does not close s.
func WithStorage(s storage.Storage) BuildOption {
	return func(o *BuildOptions) { o.Storage = s }
}

// WithEngineOptions appends engine options, e.g. a metrics collector.
func WithEngineOptions(opts ...nearlsh.Option) BuildOption {
	return func(o *BuildOptions) { o.EngineOptions = append(o.EngineOptions, opts...) }
}

// Instance is a built engine together with the storage it was built on.
type Instance struct {
	Engine  *nearlsh.Engine
	Storage storage.Storage

	ownsStorage bool
}

// Close closes the engine and, unless it was supplied with WithStorage,
// the storage.
func (i *Instance) Close() error {
	err := i.Engine.Close()
	if i.ownsStorage {
		err = errors.Join(err, i.Storage.Close())
	}
	return err
}

// Build creates an engine from spec.
func Build(ctx context.Context, spec *EngineSpec, optFns ...BuildOption) (*Instance, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	var opts BuildOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	hashes := make([]lshash.Hash, 0, len(spec.Hashes))
	for _, hs := range spec.Hashes {
		h, err := buildHash(hs, opts.TrainingSet)
		if err != nil {
			return nil, err
		}
		hashes = append(hashes, h)
	}

	var rc *resource.Controller
	if spec.Limits != (resource.Config{}) {
		rc = resource.NewController(spec.Limits)
	}

	inst := &Instance{Storage: opts.Storage}
	if inst.Storage == nil {
		s, err := openStorage(ctx, spec.Storage, rc)
		if err != nil {
			return nil, err
		}
		inst.Storage = s
		inst.ownsStorage = true
	}

	engineOpts, err := engineOptions(spec, inst.Storage, rc)
	if err != nil {
		_ = inst.closeStorage()
		return nil, err
	}
	engineOpts = append(engineOpts, opts.EngineOptions...)

	engine, err := nearlsh.New(spec.Dimension, hashes, engineOpts...)
	if err != nil {
		_ = inst.closeStorage()
		return nil, err
	}
	inst.Engine = engine

	if spec.RestoreHashConfigs {
		if _, err := engine.LoadHashConfigs(ctx); err != nil {
			_ = inst.Close()
			return nil, err
		}
	}
	return inst, nil
}

func (i *Instance) closeStorage() error {
	if i.ownsStorage {
		return i.Storage.Close()
	}
	return nil
}

func engineOptions(spec *EngineSpec, s storage.Storage, rc *resource.Controller) ([]nearlsh.Option, error) {
	opts := []nearlsh.Option{nearlsh.WithStorage(s)}

	switch spec.Distance {
	case "":
	case DistanceNone:
		opts = append(opts, nearlsh.WithoutDistance())
	default:
		m, err := distance.ParseMetric(spec.Distance)
		if err != nil {
			return nil, invalid("distance: %v", err)
		}
		opts = append(opts, nearlsh.WithDistance(m))
	}
	if spec.Normalize {
		opts = append(opts, nearlsh.WithNormalization(true))
	}
	if spec.MaxCandidates > 0 {
		opts = append(opts, nearlsh.WithMaxCandidates(spec.MaxCandidates))
	}
	if spec.Filters != nil {
		opts = append(opts, nearlsh.WithFilters(buildFilters(spec.Filters)...))
	}
	if len(spec.FetchFilters) > 0 {
		opts = append(opts, nearlsh.WithFetchFilters(buildFilters(spec.FetchFilters)...))
	}
	if spec.Storage.Codec != "" {
		c, _ := codec.ByName(spec.Storage.Codec)
		opts = append(opts, nearlsh.WithCodec(c))
	}
	if rc != nil {
		opts = append(opts, nearlsh.WithResourceController(rc))
	}
	if spec.LogLevel != "" {
		lvl, err := spec.level()
		if err != nil {
			return nil, invalid("log_level: %v", err)
		}
		opts = append(opts, nearlsh.WithLogLevel(lvl))
	}
	return opts, nil
}

func buildFilters(specs []FilterSpec) []filter.Filter {
	out := make([]filter.Filter, 0, len(specs))
	for _, f := range specs {
		switch f.Type {
		case FilterUnique:
			out = append(out, filter.NewUnique())
		case FilterNearest:
			out = append(out, filter.NewNearest(f.N))
		case FilterDistanceThreshold:
			out = append(out, filter.NewDistanceThreshold(f.Threshold))
		}
	}
	return out
}

func openStorage(ctx context.Context, spec StorageSpec, rc *resource.Controller) (storage.Storage, error) {
	switch spec.Type {
	case StorageSQLite:
		var opts []sqlite.Option
		if spec.Codec != "" {
			c, _ := codec.ByName(spec.Codec)
			opts = append(opts, sqlite.WithCodec(c))
		}
		if spec.BusyTimeoutMS > 0 {
			opts = append(opts, sqlite.WithBusyTimeout(spec.BusyTimeoutMS))
		}
		return sqlite.Open(ctx, spec.Path, opts...)
	default:
		opts := []memory.Option{memory.WithResourceController(rc)}
		if spec.Codec != "" {
			c, _ := codec.ByName(spec.Codec)
			opts = append(opts, memory.WithCodec(c))
		}
		if spec.Compression != "" {
			comp, err := frame.ParseCompression(spec.Compression)
			if err != nil {
				return nil, invalid("%v", err)
			}
			opts = append(opts, memory.WithCompression(comp))
		}
		return memory.New(opts...), nil
	}
}

func buildHash(spec HashSpec, training []vector.Vector) (lshash.Hash, error) {
	var hopts []lshash.Option
	if spec.Seed != nil {
		hopts = append(hopts, lshash.WithSeed(*spec.Seed))
	}

	switch spec.Type {
	case lshash.KindRandomBinaryProjections:
		return lshash.NewRandomBinaryProjections(spec.Name, spec.Projections, hopts...)
	case lshash.KindRandomDiscretizedProjections:
		return lshash.NewRandomDiscretizedProjections(spec.Name, spec.Projections, spec.BinWidth, hopts...)
	case lshash.KindRandomBinaryProjectionTree:
		return lshash.NewRandomBinaryProjectionTree(spec.Name, spec.Projections, spec.MinResultSize, hopts...)
	case lshash.KindPCABinaryProjections:
		if len(training) == 0 {
			return nil, invalid("%s %q needs a training set", spec.Type, spec.Name)
		}
		return lshash.NewPCABinaryProjections(spec.Name, spec.Projections, training)
	case lshash.KindPCADiscretizedProjections:
		if len(training) == 0 {
			return nil, invalid("%s %q needs a training set", spec.Type, spec.Name)
		}
		return lshash.NewPCADiscretizedProjections(spec.Name, spec.Projections, training, spec.BinWidth)
	case lshash.KindUniBucket:
		return lshash.NewUniBucket(spec.Name), nil
	case lshash.KindHashPermutations:
		perm := lshash.NewHashPermutations(spec.Name, hopts...)
		for _, c := range spec.Children {
			child, err := buildHash(c.Hash, training)
			if err != nil {
				return nil, err
			}
			if err := perm.AddChildHash(child, c.Permutation); err != nil {
				return nil, fmt.Errorf("hash %q: %w", spec.Name, err)
			}
		}
		return perm, nil
	case lshash.KindHashPermutationMapper:
		mapper := lshash.NewHashPermutationMapper(spec.Name)
		for _, c := range spec.Children {
			child, err := buildHash(c.Hash, training)
			if err != nil {
				return nil, err
			}
			if err := mapper.AddChildHash(child); err != nil {
				return nil, fmt.Errorf("hash %q: %w", spec.Name, err)
			}
		}
		return mapper, nil
	default:
		return nil, invalid("unknown hash type %q", spec.Type)
	}
}
