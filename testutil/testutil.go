package testutil

import (
	"math/rand/v2"
	"sync"

	"github.com/hupe1980/nearlsh/vector"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed uint64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed uint64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand = rand.New(rand.NewPCG(r.seed, r.seed^0x9e3779b97f4a7c15))
}

// Seed returns the initial seed.
func (r *RNG) Seed() uint64 {
	return r.seed
}

// IntN returns a non-negative pseudo-random number in [0,n).
func (r *RNG) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.IntN(n)
}

// FillGaussian fills dst with standard-normal values.
// Locks only once per call (preferred over drawing values one by one).
func (r *RNG) FillGaussian(dst []float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range dst {
		dst[i] = r.rand.NormFloat64()
	}
}

// GaussianVector returns a dense vector with standard-normal components.
func (r *RNG) GaussianVector(dim int) vector.Vector {
	v := make([]float64, dim)
	r.FillGaussian(v)
	return vector.NewDense(v)
}

// GaussianVectors returns n dense standard-normal vectors of dimension dim.
func (r *RNG) GaussianVectors(n, dim int) []vector.Vector {
	out := make([]vector.Vector, n)
	for i := range out {
		out[i] = r.GaussianVector(dim)
	}
	return out
}

// UniformVectors returns n dense vectors with components in [0, 1).
func (r *RNG) UniformVectors(n, dim int) []vector.Vector {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]vector.Vector, n)
	for i := range out {
		v := make([]float64, dim)
		for j := range v {
			v[j] = r.rand.Float64()
		}
		out[i] = vector.NewDense(v)
	}
	return out
}

// SparseVector returns a sparse vector of dimension dim with nnz distinct
// non-zero standard-normal entries.
func (r *RNG) SparseVector(dim, nnz int) vector.Vector {
	r.mu.Lock()
	perm := r.rand.Perm(dim)[:min(nnz, dim)]
	vals := make([]float64, len(perm))
	for i := range vals {
		vals[i] = r.rand.NormFloat64()
	}
	r.mu.Unlock()

	v, err := vector.NewSparse(dim, perm, vals)
	if err != nil {
		// Indices come from a permutation of [0,dim) and cannot collide.
		panic(err)
	}
	return v
}
