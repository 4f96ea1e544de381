package vector

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"
)

// ErrInvalidSparse is returned when sparse indices are out of range,
// duplicated, or do not line up with their values.
var ErrInvalidSparse = errors.New("invalid sparse vector")

// Vector is an immutable fixed-dimension numeric vector.
//
// The zero value is an empty dense vector.
type Vector struct {
	dim     int
	dense   []float64
	indices []int
	values  []float64
	sparse  bool
}

// NewDense wraps values as a dense vector. The slice is not copied; use
// Clone to detach the vector from it.
func NewDense(values []float64) Vector {
	return Vector{dim: len(values), dense: values}
}

// NewSparse builds a sparse vector of dimension dim from index/value pairs.
// Indices may be given in any order; they are sorted internally.
func NewSparse(dim int, indices []int, values []float64) (Vector, error) {
	if dim <= 0 {
		return Vector{}, fmt.Errorf("%w: dimension %d", ErrInvalidSparse, dim)
	}
	if len(indices) != len(values) {
		return Vector{}, fmt.Errorf("%w: %d indices for %d values", ErrInvalidSparse, len(indices), len(values))
	}

	idx := slices.Clone(indices)
	val := slices.Clone(values)
	sort.Sort(pairs{idx, val})

	for i, j := range idx {
		if j < 0 || j >= dim {
			return Vector{}, fmt.Errorf("%w: index %d out of range [0,%d)", ErrInvalidSparse, j, dim)
		}
		if i > 0 && idx[i-1] == j {
			return Vector{}, fmt.Errorf("%w: duplicate index %d", ErrInvalidSparse, j)
		}
	}

	return Vector{dim: dim, indices: idx, values: val, sparse: true}, nil
}

type pairs struct {
	idx []int
	val []float64
}

func (p pairs) Len() int           { return len(p.idx) }
func (p pairs) Less(i, j int) bool { return p.idx[i] < p.idx[j] }
func (p pairs) Swap(i, j int) {
	p.idx[i], p.idx[j] = p.idx[j], p.idx[i]
	p.val[i], p.val[j] = p.val[j], p.val[i]
}

// IsSparse reports whether v uses the sparse representation.
func (v Vector) IsSparse() bool { return v.sparse }

// Dim returns the dimension of v.
func (v Vector) Dim() int { return v.dim }

// NNZ returns the number of stored entries (dim for dense vectors).
func (v Vector) NNZ() int {
	if v.sparse {
		return len(v.indices)
	}
	return len(v.dense)
}

// Sparse returns the sorted indices and values of a sparse vector.
// Both slices are nil for dense vectors and must not be modified.
func (v Vector) Sparse() ([]int, []float64) {
	return v.indices, v.values
}

// Dense returns the dense representation of v.
// For dense vectors the backing slice is returned and must not be modified.
func (v Vector) Dense() []float64 {
	if !v.sparse {
		return v.dense
	}
	out := make([]float64, v.dim)
	for i, j := range v.indices {
		out[j] = v.values[i]
	}
	return out
}

// At returns the i-th component.
func (v Vector) At(i int) float64 {
	if !v.sparse {
		return v.dense[i]
	}
	k, ok := slices.BinarySearch(v.indices, i)
	if !ok {
		return 0
	}
	return v.values[k]
}

// Dot returns the inner product of v with a dense row of the same dimension.
func (v Vector) Dot(row []float64) float64 {
	var sum float64
	if v.sparse {
		for i, j := range v.indices {
			sum += v.values[i] * row[j]
		}
		return sum
	}
	for i, x := range v.dense {
		sum += x * row[i]
	}
	return sum
}

// Norm returns the L2 norm of v.
func (v Vector) Norm() float64 {
	var sum float64
	vals := v.dense
	if v.sparse {
		vals = v.values
	}
	for _, x := range vals {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// Unit returns v scaled to unit L2 norm, keeping its representation.
// Zero vectors are returned unchanged.
func (v Vector) Unit() Vector {
	n := v.Norm()
	if n == 0 {
		return v
	}
	if v.sparse {
		vals := make([]float64, len(v.values))
		for i, x := range v.values {
			vals[i] = x / n
		}
		return Vector{dim: v.dim, indices: v.indices, values: vals, sparse: true}
	}
	out := make([]float64, len(v.dense))
	for i, x := range v.dense {
		out[i] = x / n
	}
	return NewDense(out)
}

// Clone returns a deep copy of v.
func (v Vector) Clone() Vector {
	if v.sparse {
		return Vector{dim: v.dim, indices: slices.Clone(v.indices), values: slices.Clone(v.values), sparse: true}
	}
	return NewDense(slices.Clone(v.dense))
}

// Equal reports whether a and b have the same dimension and components,
// regardless of representation.
func Equal(a, b Vector) bool {
	if a.dim != b.dim {
		return false
	}
	if !a.sparse && !b.sparse {
		return slices.Equal(a.dense, b.dense)
	}
	return slices.Equal(a.Dense(), b.Dense())
}

// String implements fmt.Stringer.
func (v Vector) String() string {
	if v.sparse {
		return fmt.Sprintf("sparse(%d)%v:%v", v.dim, v.indices, v.values)
	}
	return fmt.Sprint(v.dense)
}
