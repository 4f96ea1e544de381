package vector

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSparse(t *testing.T) {
	v, err := NewSparse(5, []int{3, 0}, []float64{2, 1})
	require.NoError(t, err)

	assert.True(t, v.IsSparse())
	assert.Equal(t, 5, v.Dim())
	assert.Equal(t, 2, v.NNZ())
	assert.Equal(t, []float64{1, 0, 0, 2, 0}, v.Dense())
	assert.Equal(t, 2.0, v.At(3))
	assert.Equal(t, 0.0, v.At(4))

	idx, vals := v.Sparse()
	assert.Equal(t, []int{0, 3}, idx)
	assert.Equal(t, []float64{1, 2}, vals)
}

func TestNewSparse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		dim     int
		indices []int
		values  []float64
	}{
		{"zero dim", 0, nil, nil},
		{"length mismatch", 3, []int{0}, []float64{1, 2}},
		{"out of range", 3, []int{3}, []float64{1}},
		{"negative", 3, []int{-1}, []float64{1}},
		{"duplicate", 3, []int{1, 1}, []float64{1, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSparse(tt.dim, tt.indices, tt.values)
			assert.ErrorIs(t, err, ErrInvalidSparse)
		})
	}
}

func TestDotDenseAndSparseAgree(t *testing.T) {
	row := []float64{0.5, -1, 2, 3}
	d := NewDense([]float64{1, 0, 0, 4})
	s, err := NewSparse(4, []int{0, 3}, []float64{1, 4})
	require.NoError(t, err)

	assert.InDelta(t, 12.5, d.Dot(row), 1e-12)
	assert.InDelta(t, d.Dot(row), s.Dot(row), 1e-12)
	assert.InDelta(t, d.Norm(), s.Norm(), 1e-12)
	assert.True(t, Equal(d, s))
}

func TestUnit(t *testing.T) {
	v := NewDense([]float64{3, 4})
	u := v.Unit()
	assert.InDelta(t, 1.0, u.Norm(), 1e-12)
	assert.Equal(t, []float64{3, 4}, v.Dense(), "source must not be modified")

	s, err := NewSparse(10, []int{2}, []float64{-7})
	require.NoError(t, err)
	su := s.Unit()
	assert.True(t, su.IsSparse())
	assert.InDelta(t, -1.0, su.At(2), 1e-12)

	zero := NewDense([]float64{0, 0})
	assert.Equal(t, zero.Dense(), zero.Unit().Dense())
}

func TestVectorJSON(t *testing.T) {
	sparse, err := NewSparse(6, []int{4, 1}, []float64{2.5, -1})
	require.NoError(t, err)

	for _, v := range []Vector{NewDense([]float64{1, 0.5, -3}), sparse} {
		data, err := json.Marshal(v)
		require.NoError(t, err)

		var back Vector
		require.NoError(t, json.Unmarshal(data, &back))
		assert.Equal(t, v.IsSparse(), back.IsSparse())
		assert.True(t, Equal(v, back))
	}

	var bad Vector
	assert.Error(t, json.Unmarshal([]byte(`{"dim":3,"dense":[1]}`), &bad))
	assert.ErrorIs(t, json.Unmarshal([]byte(`{"dim":2,"indices":[5],"values":[1]}`), &bad), ErrInvalidSparse)
}

func TestVector_Clone(t *testing.T) {
	raw := []float64{1, 2}
	d := NewDense(raw)
	c := d.Clone()
	raw[0] = 9
	assert.Equal(t, []float64{1, 2}, c.Dense())
	assert.Equal(t, 9.0, d.At(0))

	s, err := NewSparse(4, []int{1}, []float64{5})
	require.NoError(t, err)
	sc := s.Clone()
	assert.True(t, sc.IsSparse())
	assert.True(t, Equal(s, sc))
}
