package nearlsh

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/nearlsh/filter"
	"github.com/hupe1980/nearlsh/model"
	"github.com/hupe1980/nearlsh/storage"
	"github.com/hupe1980/nearlsh/vector"
)

// queryKeys returns the querying-mode bucket keys of v per hash, in hash
// order.
func (e *Engine) queryKeys(v vector.Vector) ([][]string, error) {
	keys := make([][]string, len(e.hashes))
	for i, h := range e.hashes {
		k, err := h.HashVector(v, true)
		if err != nil {
			return nil, translateError(err)
		}
		keys[i] = k
	}
	return keys, nil
}

// collect gathers the entries of all query buckets. Buckets are read
// concurrently per hash; the result keeps hash order, then key order, then
// bucket order.
func (e *Engine) collect(ctx context.Context, v vector.Vector) ([]model.Candidate, error) {
	keys, err := e.queryKeys(v)
	if err != nil {
		return nil, err
	}

	perHash := make([][]model.Entry, len(e.hashes))
	g, gctx := errgroup.WithContext(ctx)
	for i, h := range e.hashes {
		g.Go(func() error {
			for _, k := range keys[i] {
				entries, err := e.storage.Bucket(gctx, h.Name(), k)
				if err != nil {
					return translateError(err)
				}
				perHash[i] = append(perHash[i], entries...)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, entries := range perHash {
		total += len(entries)
	}
	limit := total
	if e.opts.maxCandidates > 0 && total > e.opts.maxCandidates {
		limit = e.opts.maxCandidates
		e.opts.logger.LogCandidateCap(ctx, total, limit)
	}

	out := make([]model.Candidate, 0, limit)
	for _, entries := range perHash {
		for _, en := range entries {
			if len(out) == limit {
				return out, nil
			}
			out = append(out, model.NewCandidate(en))
		}
	}
	return out, nil
}

// Neighbours returns the approximate neighbours of v: the union of the
// entries of all query buckets, passed through the fetch filters, scored
// by the configured distance and finally passed through the filter chain.
//
// With the default chain the result holds the DefaultNearest closest
// candidates in ascending distance order.
func (e *Engine) Neighbours(ctx context.Context, v vector.Vector) (results []model.Candidate, err error) {
	start := time.Now()
	candidates := 0
	defer func() {
		e.opts.metricsCollector.RecordQuery(candidates, len(results), time.Since(start), err)
		e.opts.logger.LogQuery(ctx, candidates, len(results), err)
	}()

	if err := e.check(ctx); err != nil {
		return nil, err
	}
	v, err = e.prepare(v)
	if err != nil {
		return nil, err
	}

	cands, err := e.collect(ctx, v)
	if err != nil {
		return nil, err
	}
	candidates = len(cands)

	cands, err = filter.Chain(cands, e.opts.fetchFilters...)
	if err != nil {
		return nil, translateError(err)
	}

	if e.distFn != nil {
		for i := range cands {
			cands[i] = cands[i].WithDistance(e.distFn(v, cands[i].Vector))
		}
	}

	results, err = filter.Chain(cands, e.opts.filters...)
	if err != nil {
		return nil, translateError(err)
	}
	return results, nil
}

// CandidateCount returns the total size of the buckets a query for v
// would read, before any filtering. It is meant for bucket size tuning.
func (e *Engine) CandidateCount(ctx context.Context, v vector.Vector) (int, error) {
	if err := e.check(ctx); err != nil {
		return 0, err
	}
	v, err := e.prepare(v)
	if err != nil {
		return 0, err
	}
	keys, err := e.queryKeys(v)
	if err != nil {
		return 0, err
	}

	count := 0
	for i, h := range e.hashes {
		for _, k := range keys[i] {
			n, err := storage.BucketSize(ctx, e.storage, h.Name(), k)
			if err != nil {
				return 0, translateError(err)
			}
			count += n
		}
	}
	return count, nil
}
