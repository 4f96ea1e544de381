package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/nearlsh/model"
	"github.com/hupe1980/nearlsh/testutil"
	"github.com/hupe1980/nearlsh/vector"
)

func scored(payload string, d float64) model.Candidate {
	return model.Candidate{Payload: payload}.WithDistance(d)
}

func payloads(cs []model.Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Payload
	}
	return out
}

func TestUnique(t *testing.T) {
	in := []model.Candidate{scored("a", 1), scored("b", 2), scored("a", 3), scored("c", 4), scored("b", 5)}

	out, err := NewUnique().Filter(in)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, payloads(out))
	assert.Equal(t, []float64{3, 5, 4}, []float64{out[0].Distance, out[1].Distance, out[2].Distance})

	// Works on unscored candidates too.
	v := vector.NewDense([]float64{1})
	out, err = NewUnique().Filter([]model.Candidate{{Vector: v, Payload: "x"}, {Vector: v, Payload: "x"}})
	require.NoError(t, err)
	assert.Len(t, out, 1)

	assert.Len(t, in, 5, "input is not modified")
}

func TestNearest(t *testing.T) {
	rng := testutil.NewRNG(1)
	in := make([]model.Candidate, 50)
	for i := range in {
		in[i] = scored(string(rune('a'+i%26)), float64(rng.IntN(1000)))
	}

	for _, k := range []int{1, 10, 50} {
		out, err := NewNearest(k).Filter(in)
		require.NoError(t, err)
		require.Len(t, out, k)
		for i := 1; i < len(out); i++ {
			assert.LessOrEqual(t, out[i-1].Distance, out[i].Distance)
		}
	}

	out, err := NewNearest(100).Filter(in)
	require.NoError(t, err)
	assert.Len(t, out, 50)
}

func TestNearestStableTies(t *testing.T) {
	out, err := NewNearest(3).Filter([]model.Candidate{scored("x", 1), scored("y", 0), scored("z", 1)})
	require.NoError(t, err)
	assert.Equal(t, []string{"y", "x", "z"}, payloads(out))
}

func TestNearestEdgeCases(t *testing.T) {
	out, err := NewNearest(5).Filter(nil)
	require.NoError(t, err)
	assert.Empty(t, out)

	_, err = NewNearest(5).Filter([]model.Candidate{{Payload: "raw"}})
	assert.ErrorIs(t, err, ErrMissingDistance)
}

func TestDistanceThreshold(t *testing.T) {
	in := []model.Candidate{scored("a", 0.5), scored("b", 1), scored("c", 0.1), scored("d", 2)}

	out, err := NewDistanceThreshold(1).Filter(in)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, payloads(out))

	_, err = NewDistanceThreshold(1).Filter([]model.Candidate{{Payload: "raw"}})
	assert.ErrorIs(t, err, ErrMissingDistance)
}

func TestChain(t *testing.T) {
	in := []model.Candidate{scored("a", 3), scored("b", 1), scored("a", 0.5), scored("c", 2), scored("d", 9)}

	out, err := Chain(in, NewUnique(), NewDistanceThreshold(5), NewNearest(2))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, payloads(out))

	out, err = Chain(in)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = Chain([]model.Candidate{{Payload: "raw"}}, NewNearest(1))
	assert.ErrorIs(t, err, ErrMissingDistance)
}
