package experiment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/nearlsh"
	"github.com/hupe1980/nearlsh/filter"
	"github.com/hupe1980/nearlsh/lshash"
	"github.com/hupe1980/nearlsh/testutil"
	"github.com/hupe1980/nearlsh/vector"
)

func uniEngine(t *testing.T, dim, nearest int) *nearlsh.Engine {
	t.Helper()
	e, err := nearlsh.New(dim, []lshash.Hash{lshash.NewUniBucket("testHash")},
		nearlsh.WithFilters(filter.NewNearest(nearest)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestRecallPrecision_UniBucket(t *testing.T) {
	ctx := context.Background()
	vectors := testutil.NewRNG(1).GaussianVectors(100, 50)

	tests := []struct {
		name      string
		n         int
		nearest   int
		recall    float64
		precision float64
	}{
		{"Exact", 10, 11, 1.0, 1.0},
		{"EngineReturnsMore", 5, 11, 1.0, 0.5},
		{"EngineReturnsLess", 10, 6, 0.5, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rp, err := NewRecallPrecision(ctx, tt.n, vectors)
			require.NoError(t, err)
			assert.Equal(t, tt.n, rp.N())

			results, err := rp.Run(ctx, uniEngine(t, 50, tt.nearest))
			require.NoError(t, err)
			require.Len(t, results, 1)
			assert.InDelta(t, tt.recall, results[0].Recall, 1e-12)
			assert.InDelta(t, tt.precision, results[0].Precision, 1e-12)
			assert.Greater(t, results[0].SearchTimeRatio, 0.0)
		})
	}
}

func TestRecallPrecision_MultipleEngines(t *testing.T) {
	ctx := context.Background()
	vectors := testutil.NewRNG(2).GaussianVectors(100, 20)

	rbp, err := lshash.NewRandomBinaryProjections("rbp", 6, lshash.WithSeed(3))
	require.NoError(t, err)
	approx, err := nearlsh.New(20, []lshash.Hash{rbp}, nearlsh.WithFilters(filter.NewNearest(11)))
	require.NoError(t, err)
	defer approx.Close()

	rp, err := NewRecallPrecision(ctx, 10, vectors, WithConcurrency(2))
	require.NoError(t, err)

	results, err := rp.Run(ctx, uniEngine(t, 20, 11), approx)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.InDelta(t, 1.0, results[0].Recall, 1e-12)
	assert.GreaterOrEqual(t, results[1].Recall, 0.0)
	assert.LessOrEqual(t, results[1].Recall, results[0].Recall)
	assert.LessOrEqual(t, results[1].Precision, 1.0)

	// Running again re-indexes from scratch.
	again, err := rp.Run(ctx, approx)
	require.NoError(t, err)
	assert.InDelta(t, results[1].Recall, again[0].Recall, 1e-12)
}

func TestDistanceRatio(t *testing.T) {
	ctx := context.Background()
	vectors := testutil.NewRNG(4).GaussianVectors(100, 30)

	dr, err := NewDistanceRatio(ctx, 10, vectors, DefaultCoverage)
	require.NoError(t, err)
	require.Len(t, dr.Queries(), 20)
	assert.Equal(t, []int{0, 5, 10}, dr.Queries()[:3])

	results, err := dr.Run(ctx, uniEngine(t, 30, 10), uniEngine(t, 30, 40))
	require.NoError(t, err)
	require.Len(t, results, 2)

	// Self plus the 9 nearest others lie within the radius.
	assert.InDelta(t, 0, results[0].DistanceRatio, 1e-12)
	assert.InDelta(t, 10, results[0].ResultSize, 1e-12)

	assert.Greater(t, results[1].DistanceRatio, 0.0)
	assert.InDelta(t, 40, results[1].ResultSize, 1e-12)
}

func TestDistanceRatio_Normalizing(t *testing.T) {
	ctx := context.Background()
	vectors := testutil.NewRNG(5).GaussianVectors(50, 10)

	e, err := nearlsh.New(10, []lshash.Hash{lshash.NewUniBucket("u")},
		nearlsh.WithNormalization(true),
		nearlsh.WithFilters(filter.NewNearest(5)),
	)
	require.NoError(t, err)
	defer e.Close()

	dr, err := NewDistanceRatio(ctx, 5, vectors, 1)
	require.NoError(t, err)
	results, err := dr.Run(ctx, e)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, results[0].DistanceRatio, 0.0)
	assert.InDelta(t, 5, results[0].ResultSize, 1e-12)
}

func TestInvalidArguments(t *testing.T) {
	ctx := context.Background()
	vectors := testutil.NewRNG(6).GaussianVectors(10, 4)

	_, err := NewRecallPrecision(ctx, 0, vectors)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = NewRecallPrecision(ctx, 10, vectors)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewDistanceRatio(ctx, 3, vectors, 0)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = NewDistanceRatio(ctx, 3, vectors, 0.05)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	mixed := append([]vector.Vector{vector.NewDense([]float64{1, 2})}, vectors...)
	_, err = NewRecallPrecision(ctx, 2, mixed)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = NewRecallPrecision(canceled, 2, vectors)
	assert.ErrorIs(t, err, context.Canceled)
}
