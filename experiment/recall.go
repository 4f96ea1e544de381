package experiment

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/hupe1980/nearlsh"
	"github.com/hupe1980/nearlsh/vector"
)

// RecallPrecisionResult holds the averages of one engine run.
type RecallPrecisionResult struct {
	// Recall is the mean fraction of the exact N nearest neighbours found
	// by the engine.
	Recall float64 `json:"recall"`
	// Precision is the mean fraction of engine results that are among the
	// exact N nearest neighbours. Empty results count as zero.
	Precision float64 `json:"precision"`
	// SearchTimeRatio is the mean engine query time divided by the mean
	// exact search time.
	SearchTimeRatio float64 `json:"search_time_ratio"`
}

// RecallPrecision compares engine results with the exact N nearest
// neighbours of every vector in a data set. The query vector itself is
// neither part of the ground truth nor counted among the engine results,
// so an engine filtering to Nearest(N+1) over a brute-force hash scores
// 1.0 on both measures.
type RecallPrecision struct {
	n       int
	vectors []vector.Vector
	truth   []map[int]struct{}
	exact   time.Duration
	opts    Options
}

// NewRecallPrecision computes the exact N nearest neighbours of every
// vector. The cost is quadratic in len(vectors).
func NewRecallPrecision(ctx context.Context, n int, vectors []vector.Vector, optFns ...Option) (*RecallPrecision, error) {
	if n <= 0 || n >= len(vectors) {
		return nil, fmt.Errorf("%w: need 0 < N < %d, got %d", ErrInvalidArgument, len(vectors), n)
	}
	opts := applyOptions(optFns)

	queries := make([]int, len(vectors))
	for i := range queries {
		queries[i] = i
	}
	opts.Logger.InfoContext(ctx, "starting exact search", "queries", len(queries), "n", n)
	rankings, err := groundTruth(ctx, opts, vectors, queries)
	if err != nil {
		return nil, err
	}

	truth := make([]map[int]struct{}, len(vectors))
	for i, r := range rankings {
		set := make(map[int]struct{}, n)
		for _, j := range r.order[:n] {
			set[j] = struct{}{}
		}
		truth[i] = set
	}

	return &RecallPrecision{
		n:       n,
		vectors: vectors,
		truth:   truth,
		exact:   averageTook(rankings),
		opts:    opts,
	}, nil
}

// N returns the ground truth size per query.
func (rp *RecallPrecision) N() int { return rp.n }

// Run indexes the data set into every engine and returns one result per
// engine, in order.
func (rp *RecallPrecision) Run(ctx context.Context, engines ...*nearlsh.Engine) ([]RecallPrecisionResult, error) {
	results := make([]RecallPrecisionResult, 0, len(engines))
	for ei, engine := range engines {
		res, err := rp.run(ctx, engine)
		if err != nil {
			return nil, fmt.Errorf("engine %d: %w", ei, err)
		}
		rp.opts.Logger.InfoContext(ctx, "recall experiment completed",
			"engine", ei,
			"recall", res.Recall,
			"precision", res.Precision,
			"time_ratio", res.SearchTimeRatio,
		)
		results = append(results, res)
	}
	return results, nil
}

func (rp *RecallPrecision) run(ctx context.Context, engine *nearlsh.Engine) (RecallPrecisionResult, error) {
	if err := index(ctx, engine, rp.vectors); err != nil {
		return RecallPrecisionResult{}, err
	}

	var recall, precision float64
	var took time.Duration
	for q, v := range rp.vectors {
		start := time.Now()
		nearest, err := engine.Neighbours(ctx, v)
		took += time.Since(start)
		if err != nil {
			return RecallPrecisionResult{}, err
		}

		found, hits := 0, 0
		self := Payload(q)
		for _, c := range nearest {
			if c.Payload == self {
				continue
			}
			found++
			idx, err := strconv.Atoi(c.Payload)
			if err != nil {
				return RecallPrecisionResult{}, fmt.Errorf("%w: foreign payload %q", ErrInvalidArgument, c.Payload)
			}
			if _, ok := rp.truth[q][idx]; ok {
				hits++
			}
		}

		recall += float64(hits) / float64(rp.n)
		if found > 0 {
			precision += float64(hits) / float64(found)
		}
	}

	count := float64(len(rp.vectors))
	return RecallPrecisionResult{
		Recall:          recall / count,
		Precision:       precision / count,
		SearchTimeRatio: timeRatio(took/time.Duration(len(rp.vectors)), rp.exact),
	}, nil
}
