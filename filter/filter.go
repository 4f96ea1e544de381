package filter

import (
	"errors"
	"fmt"
	"slices"

	"github.com/hupe1980/nearlsh/model"
)

// ErrMissingDistance is returned by filters that rank or threshold
// candidates that were never scored.
var ErrMissingDistance = errors.New("candidate has no distance")

// Filter reduces a candidate list. The input slice is never modified.
//
// The set of implementations is closed.
type Filter interface {
	Filter(candidates []model.Candidate) ([]model.Candidate, error)
	String() string

	isFilter()
}

// Chain applies filters in order.
func Chain(candidates []model.Candidate, filters ...Filter) ([]model.Candidate, error) {
	out := candidates
	for _, f := range filters {
		var err error
		if out, err = f.Filter(out); err != nil {
			return nil, fmt.Errorf("%s: %w", f, err)
		}
	}
	return out, nil
}

// Unique keeps one candidate per payload. The last occurrence wins and
// takes the position where the payload first appeared.
type Unique struct{}

// NewUnique returns a Unique filter.
func NewUnique() Unique { return Unique{} }

func (Unique) isFilter() {}

func (Unique) String() string { return "unique" }

// Filter implements Filter.
func (Unique) Filter(candidates []model.Candidate) ([]model.Candidate, error) {
	pos := make(map[string]int, len(candidates))
	out := make([]model.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if i, ok := pos[c.Payload]; ok {
			out[i] = c
			continue
		}
		pos[c.Payload] = len(out)
		out = append(out, c)
	}
	return out, nil
}

// Nearest keeps the N candidates with the smallest distance, sorted
// ascending. Equal distances keep their input order.
type Nearest struct {
	N int
}

// NewNearest returns a Nearest filter keeping n candidates.
func NewNearest(n int) Nearest { return Nearest{N: n} }

func (Nearest) isFilter() {}

func (f Nearest) String() string { return fmt.Sprintf("nearest(%d)", f.N) }

// Filter implements Filter.
func (f Nearest) Filter(candidates []model.Candidate) ([]model.Candidate, error) {
	if len(candidates) == 0 || f.N <= 0 {
		return []model.Candidate{}, nil
	}
	for _, c := range candidates {
		if !c.HasDistance {
			return nil, fmt.Errorf("%w: payload %q", ErrMissingDistance, c.Payload)
		}
	}
	out := slices.Clone(candidates)
	slices.SortStableFunc(out, func(a, b model.Candidate) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		}
		return 0
	})
	return out[:min(f.N, len(out))], nil
}

// DistanceThreshold keeps candidates whose distance is strictly below
// Threshold, in input order.
type DistanceThreshold struct {
	Threshold float64
}

// NewDistanceThreshold returns a DistanceThreshold filter.
func NewDistanceThreshold(t float64) DistanceThreshold { return DistanceThreshold{Threshold: t} }

func (DistanceThreshold) isFilter() {}

func (f DistanceThreshold) String() string { return fmt.Sprintf("distance_threshold(%g)", f.Threshold) }

// Filter implements Filter.
func (f DistanceThreshold) Filter(candidates []model.Candidate) ([]model.Candidate, error) {
	out := make([]model.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if !c.HasDistance {
			return nil, fmt.Errorf("%w: payload %q", ErrMissingDistance, c.Payload)
		}
		if c.Distance < f.Threshold {
			out = append(out, c)
		}
	}
	return out, nil
}
