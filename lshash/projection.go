package lshash

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/hupe1980/nearlsh/vector"
)

// projection holds a k x dim matrix of projection directions.
//
// Dense inputs are projected row by row. Sparse inputs use a column-major
// copy of the matrix that is built on first use and cached.
type projection struct {
	mu      sync.RWMutex
	k       int
	dim     int
	normals []float64 // row-major k x dim

	colsOnce sync.Once
	cols     []float64 // column-major dim x k
}

func newProjection(k int) *projection {
	return &projection{k: k}
}

func (p *projection) dimension() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.dim
}

// randomize draws standard-normal directions for dim.
func (p *projection) randomize(dim int, rng *rand.Rand) {
	normals := make([]float64, p.k*dim)
	for i := range normals {
		normals[i] = rng.NormFloat64()
	}
	p.set(dim, normals)
}

func (p *projection) set(dim int, normals []float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dim = dim
	p.normals = normals
	p.cols = nil
	p.colsOnce = sync.Once{}
}

func (p *projection) snapshot() (int, []float64) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.dim, slices.Clone(p.normals)
}

func (p *projection) apply(name string, cfg *Config) error {
	if cfg.ProjectionCount <= 0 {
		return fmt.Errorf("%w: hash %q: projection count must be positive", ErrConfiguration, name)
	}
	if cfg.Dim <= 0 || len(cfg.Normals) != cfg.ProjectionCount*cfg.Dim {
		return fmt.Errorf("%w: hash %q: expected %dx%d normals, got %d values", ErrConfiguration, name, cfg.ProjectionCount, cfg.Dim, len(cfg.Normals))
	}
	p.mu.Lock()
	p.k = cfg.ProjectionCount
	p.mu.Unlock()
	p.set(cfg.Dim, slices.Clone(cfg.Normals))
	return nil
}

func (p *projection) columns() []float64 {
	p.colsOnce.Do(func() {
		cols := make([]float64, len(p.normals))
		for i := 0; i < p.k; i++ {
			for j := 0; j < p.dim; j++ {
				cols[j*p.k+i] = p.normals[i*p.dim+j]
			}
		}
		p.cols = cols
	})
	return p.cols
}

// project returns M*v.
func (p *projection) project(name string, v vector.Vector) ([]float64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.dim == 0 {
		return nil, fmt.Errorf("%w: hash %q", ErrNotInitialized, name)
	}
	if v.Dim() != p.dim {
		return nil, &DimensionMismatchError{Hash: name, Expected: p.dim, Actual: v.Dim(), kind: ErrInvalidInput}
	}

	out := make([]float64, p.k)
	if v.IsSparse() {
		cols := p.columns()
		idx, vals := v.Sparse()
		for n, j := range idx {
			col := cols[j*p.k : (j+1)*p.k]
			for i, w := range col {
				out[i] += vals[n] * w
			}
		}
		return out, nil
	}

	for i := range out {
		out[i] = v.Dot(p.normals[i*p.dim : (i+1)*p.dim])
	}
	return out, nil
}

// binaryKey encodes each projection as '1' if strictly positive, else '0'.
func binaryKey(proj []float64) string {
	b := make([]byte, len(proj))
	for i, x := range proj {
		if x > 0 {
			b[i] = '1'
		} else {
			b[i] = '0'
		}
	}
	return string(b)
}

// discretizedKey encodes each projection as floor(x / binWidth), joined by '_'.
func discretizedKey(proj []float64, binWidth float64) string {
	var sb strings.Builder
	for i, x := range proj {
		if i > 0 {
			sb.WriteByte('_')
		}
		sb.WriteString(strconv.FormatInt(int64(math.Floor(x/binWidth)), 10))
	}
	return sb.String()
}

func (p *projection) count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.k
}
