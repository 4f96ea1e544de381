package experiment

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/hupe1980/nearlsh"
	"github.com/hupe1980/nearlsh/distance"
	"github.com/hupe1980/nearlsh/vector"
)

// DefaultCoverage is the share of vectors used as queries by
// NewDistanceRatio when no coverage is given.
const DefaultCoverage = 0.2

// DistanceRatioResult holds the averages of one engine run.
type DistanceRatioResult struct {
	// DistanceRatio is the mean distance of results outside the exact
	// N-neighbour radius R, beyond R and relative to R. 0 means every
	// result lies within R; 1 means results lie 2R away on average.
	DistanceRatio float64 `json:"distance_ratio"`
	// ResultSize is the mean number of results per query.
	ResultSize float64 `json:"result_size"`
	// SearchTimeRatio is the mean engine query time divided by the mean
	// exact search time.
	SearchTimeRatio float64 `json:"search_time_ratio"`
}

// DistanceRatio measures how far approximate results stray from the exact
// N-neighbour radius of a sample of query vectors.
type DistanceRatio struct {
	n       int
	vectors []vector.Vector
	queries []int
	radius  []float64
	exact   time.Duration
	opts    Options
}

// NewDistanceRatio picks floor(coverage*len(vectors)) evenly spaced query
// vectors and computes the radius of their exact N nearest neighbours.
func NewDistanceRatio(ctx context.Context, n int, vectors []vector.Vector, coverage float64, optFns ...Option) (*DistanceRatio, error) {
	if n <= 0 || n >= len(vectors) {
		return nil, fmt.Errorf("%w: need 0 < N < %d, got %d", ErrInvalidArgument, len(vectors), n)
	}
	if coverage <= 0 || coverage > 1 {
		return nil, fmt.Errorf("%w: coverage %g outside (0, 1]", ErrInvalidArgument, coverage)
	}
	queryCount := int(math.Floor(coverage * float64(len(vectors))))
	if queryCount == 0 {
		return nil, fmt.Errorf("%w: coverage %g selects no query vectors", ErrInvalidArgument, coverage)
	}
	opts := applyOptions(optFns)

	queries := make([]int, queryCount)
	step := float64(len(vectors)) / float64(queryCount)
	for k := range queries {
		queries[k] = min(int(math.Floor(float64(k)*step)), len(vectors)-1)
	}

	opts.Logger.InfoContext(ctx, "starting exact search", "queries", queryCount, "n", n)
	rankings, err := groundTruth(ctx, opts, vectors, queries)
	if err != nil {
		return nil, err
	}
	radius := make([]float64, queryCount)
	for i, r := range rankings {
		radius[i] = r.dists[n-1]
	}

	return &DistanceRatio{
		n:       n,
		vectors: vectors,
		queries: queries,
		radius:  radius,
		exact:   averageTook(rankings),
		opts:    opts,
	}, nil
}

// Queries returns the indices of the query vectors.
func (dr *DistanceRatio) Queries() []int { return dr.queries }

// Run indexes the data set into every engine and returns one result per
// engine, in order.
func (dr *DistanceRatio) Run(ctx context.Context, engines ...*nearlsh.Engine) ([]DistanceRatioResult, error) {
	fn, err := distance.Provider(dr.opts.Metric)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	results := make([]DistanceRatioResult, 0, len(engines))
	for ei, engine := range engines {
		res, err := dr.run(ctx, engine, fn)
		if err != nil {
			return nil, fmt.Errorf("engine %d: %w", ei, err)
		}
		dr.opts.Logger.InfoContext(ctx, "distance ratio experiment completed",
			"engine", ei,
			"distance_ratio", res.DistanceRatio,
			"result_size", res.ResultSize,
			"time_ratio", res.SearchTimeRatio,
		)
		results = append(results, res)
	}
	return results, nil
}

func (dr *DistanceRatio) run(ctx context.Context, engine *nearlsh.Engine, fn distance.Func) (DistanceRatioResult, error) {
	if err := index(ctx, engine, dr.vectors); err != nil {
		return DistanceRatioResult{}, err
	}

	var ratio, size float64
	var took time.Duration
	for i, q := range dr.queries {
		start := time.Now()
		nearest, err := engine.Neighbours(ctx, dr.vectors[q])
		took += time.Since(start)
		if err != nil {
			return DistanceRatioResult{}, err
		}

		size += float64(len(nearest))
		r := dr.radius[i]
		if len(nearest) == 0 || r == 0 {
			continue
		}
		var sum float64
		for _, c := range nearest {
			// Score the stored original, not the returned vector, which
			// may have been normalized by the engine.
			idx, err := strconv.Atoi(c.Payload)
			if err != nil || idx < 0 || idx >= len(dr.vectors) {
				return DistanceRatioResult{}, fmt.Errorf("%w: foreign payload %q", ErrInvalidArgument, c.Payload)
			}
			d := fn(dr.vectors[q], dr.vectors[idx])
			if d > r {
				sum += (d - r) / r
			}
		}
		ratio += sum / float64(len(nearest))
	}

	count := float64(len(dr.queries))
	return DistanceRatioResult{
		DistanceRatio:   ratio / count,
		ResultSize:      size / count,
		SearchTimeRatio: timeRatio(took/time.Duration(len(dr.queries)), dr.exact),
	}, nil
}
