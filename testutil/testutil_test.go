package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRNGDeterminism(t *testing.T) {
	a := NewRNG(42).GaussianVectors(3, 8)
	b := NewRNG(42).GaussianVectors(3, 8)
	for i := range a {
		assert.Equal(t, a[i].Dense(), b[i].Dense())
	}

	r := NewRNG(42)
	first := r.GaussianVector(8)
	r.Reset()
	assert.Equal(t, first.Dense(), r.GaussianVector(8).Dense())
	assert.Equal(t, uint64(42), r.Seed())
}

func TestSparseVector(t *testing.T) {
	v := NewRNG(7).SparseVector(100, 5)
	assert.True(t, v.IsSparse())
	assert.Equal(t, 100, v.Dim())
	assert.Equal(t, 5, v.NNZ())
}

func TestUniformVectors(t *testing.T) {
	for _, v := range NewRNG(3).UniformVectors(10, 4) {
		for _, x := range v.Dense() {
			assert.GreaterOrEqual(t, x, 0.0)
			assert.Less(t, x, 1.0)
		}
	}
}
