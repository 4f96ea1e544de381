package lshash

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/nearlsh/testutil"
	"github.com/hupe1980/nearlsh/vector"
)

// stretched returns Gaussian vectors scaled by scales per axis.
func stretched(rng *testutil.RNG, n int, scales []float64) []vector.Vector {
	out := make([]vector.Vector, n)
	for i := range out {
		v := rng.GaussianVector(len(scales)).Dense()
		for j := range v {
			v[j] *= scales[j]
		}
		out[i] = vector.NewDense(v)
	}
	return out
}

func TestPrincipalComponentsOrder(t *testing.T) {
	training := stretched(testutil.NewRNG(1), 2000, []float64{1, 10, 0.1, 3})
	dim, normals, err := principalComponents("pca", 2, training)
	require.NoError(t, err)
	require.Equal(t, 4, dim)
	require.Len(t, normals, 8)

	// First component is axis 1, second is axis 3 (up to sign).
	assert.InDelta(t, 1.0, math.Abs(normals[1]), 0.02)
	assert.InDelta(t, 1.0, math.Abs(normals[dim+3]), 0.02)
}

func TestPCABinaryProjections(t *testing.T) {
	rng := testutil.NewRNG(2)
	training := rng.GaussianVectors(200, 10)

	h, err := NewPCABinaryProjections("pca", 4, training)
	require.NoError(t, err)
	assert.Equal(t, 10, h.Dim())
	assert.Equal(t, 4, h.ProjectionCount())

	require.NoError(t, h.Reset(10))
	err = h.Reset(11)
	assert.ErrorIs(t, err, ErrConfiguration)

	for _, v := range rng.GaussianVectors(50, 10) {
		keys, err := h.HashVector(v, false)
		require.NoError(t, err)
		require.Len(t, keys, 1)
		assert.Len(t, keys[0], 4)
		assert.Regexp(t, binaryKeyPattern, keys[0])

		again, err := h.HashVector(v, true)
		require.NoError(t, err)
		assert.Equal(t, keys, again)
	}
}

func TestPCADiscretizedProjections(t *testing.T) {
	rng := testutil.NewRNG(3)
	h, err := NewPCADiscretizedProjections("pcad", 2, rng.GaussianVectors(100, 6), 0.25)
	require.NoError(t, err)
	require.NoError(t, h.Reset(6))

	_, isBinary := any(h).(BinaryHash)
	assert.False(t, isBinary)

	keys, err := h.Keys(rng.GaussianVector(6))
	require.NoError(t, err)
	assert.Regexp(t, `^-?\d+_-?\d+$`, keys[0])
}

func TestPCAErrors(t *testing.T) {
	rng := testutil.NewRNG(4)

	untrained, err := NewPCABinaryProjections("pca", 2, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, untrained.Reset(4), ErrConfiguration)

	_, err = NewPCABinaryProjections("pca", 5, rng.GaussianVectors(10, 4))
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = NewPCABinaryProjections("pca", 2, rng.GaussianVectors(1, 4))
	assert.ErrorIs(t, err, ErrConfiguration)

	mixed := append(rng.GaussianVectors(3, 4), rng.GaussianVector(5))
	_, err = NewPCABinaryProjections("pca", 2, mixed)
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = NewPCADiscretizedProjections("pcad", 2, rng.GaussianVectors(10, 4), -1)
	assert.ErrorIs(t, err, ErrConfiguration)
}
