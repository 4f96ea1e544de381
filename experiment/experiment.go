// Package experiment measures the quality of approximate engines against
// exact brute-force search over the same data set.
//
// Ground truth is computed once per experiment and can then be replayed
// against any number of engines. Each run clears the engine's buckets,
// stores the whole data set with the vector index as payload and queries
// it again.
package experiment

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/nearlsh"
	"github.com/hupe1980/nearlsh/distance"
	"github.com/hupe1980/nearlsh/vector"
)

// ErrInvalidArgument is returned for experiment parameters that cannot
// produce a measurement.
var ErrInvalidArgument = errors.New("experiment: invalid argument")

// Options configures an experiment.
type Options struct {
	// Metric scores the exact search. Defaults to Euclidean.
	Metric distance.Metric
	// Concurrency bounds the exact-search workers. Defaults to GOMAXPROCS.
	Concurrency int
	// Logger receives progress messages. Defaults to a no-op logger.
	Logger *nearlsh.Logger
}

// Option configures Options.
type Option func(*Options)

// WithMetric sets the metric of the exact search.
func WithMetric(m distance.Metric) Option {
	return func(o *Options) { o.Metric = m }
}

// WithConcurrency bounds the number of exact-search workers.
func WithConcurrency(n int) Option {
	return func(o *Options) { o.Concurrency = n }
}

// WithLogger sets the progress logger.
func WithLogger(l *nearlsh.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

func applyOptions(optFns []Option) Options {
	opts := Options{
		Metric:      distance.MetricEuclidean,
		Concurrency: runtime.GOMAXPROCS(0),
		Logger:      nearlsh.NoopLogger(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return opts
}

// Payload returns the payload under which an experiment stores vectors[i].
func Payload(i int) string { return strconv.Itoa(i) }

// ranking is the exact search result for one query.
type ranking struct {
	// order holds the indices of all other vectors, nearest first.
	order []int
	// dists holds the distance to vectors[order[i]].
	dists []float64
	took  time.Duration
}

// exactSearch ranks all vectors except vectors[q] by their distance to
// vectors[q].
func exactSearch(fn distance.Func, vectors []vector.Vector, q int) ranking {
	start := time.Now()
	order := make([]int, 0, len(vectors)-1)
	all := make([]float64, len(vectors))
	for i, v := range vectors {
		if i == q {
			continue
		}
		all[i] = fn(vectors[q], v)
		order = append(order, i)
	}
	slices.SortStableFunc(order, func(a, b int) int {
		switch {
		case all[a] < all[b]:
			return -1
		case all[a] > all[b]:
			return 1
		default:
			return 0
		}
	})
	dists := make([]float64, len(order))
	for i, j := range order {
		dists[i] = all[j]
	}
	return ranking{order: order, dists: dists, took: time.Since(start)}
}

// groundTruth runs exactSearch for every query index concurrently.
func groundTruth(ctx context.Context, opts Options, vectors []vector.Vector, queries []int) ([]ranking, error) {
	fn, err := distance.Provider(opts.Metric)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	dim := vectors[0].Dim()
	for i, v := range vectors {
		if v.Dim() != dim {
			return nil, fmt.Errorf("%w: vector %d has dimension %d, want %d", ErrInvalidArgument, i, v.Dim(), dim)
		}
	}

	out := make([]ranking, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for i, q := range queries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = exactSearch(fn, vectors, q)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// index clears the engine and stores every vector under Payload(i).
func index(ctx context.Context, engine *nearlsh.Engine, vectors []vector.Vector) error {
	if err := engine.CleanAllBuckets(ctx); err != nil {
		return err
	}
	payloads := make([]string, len(vectors))
	for i := range vectors {
		payloads[i] = Payload(i)
	}
	if err := engine.StoreManyVectors(ctx, vectors, payloads); err != nil {
		return err
	}
	return engine.BuildPermutedIndex(ctx)
}

func averageTook(rs []ranking) time.Duration {
	var total time.Duration
	for _, r := range rs {
		total += r.took
	}
	return total / time.Duration(len(rs))
}

// timeRatio returns approx/exact, guarding against a zero exact time on
// coarse clocks.
func timeRatio(approx, exact time.Duration) float64 {
	if exact <= 0 {
		exact = time.Nanosecond
	}
	return float64(approx) / float64(exact)
}
