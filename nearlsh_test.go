package nearlsh

import (
	"context"
	"math"
	"slices"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/nearlsh/distance"
	"github.com/hupe1980/nearlsh/filter"
	"github.com/hupe1980/nearlsh/lshash"
	"github.com/hupe1980/nearlsh/model"
	"github.com/hupe1980/nearlsh/permutation"
	"github.com/hupe1980/nearlsh/storage/memory"
	"github.com/hupe1980/nearlsh/testutil"
	"github.com/hupe1980/nearlsh/vector"
)

func mustRBP(t *testing.T, name string, k int, seed uint64) *lshash.RandomBinaryProjections {
	t.Helper()
	h, err := lshash.NewRandomBinaryProjections(name, k, lshash.WithSeed(seed))
	require.NoError(t, err)
	return h
}

func mustEngine(t *testing.T, dim int, hashes []lshash.Hash, opts ...Option) *Engine {
	t.Helper()
	e, err := New(dim, hashes, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func payloadsOf(cands []model.Candidate) []string {
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.Payload
	}
	return out
}

func bucketPayloads(t *testing.T, e *Engine, hashName string) []string {
	t.Helper()
	ctx := context.Background()
	keys, err := e.Storage().BucketKeys(ctx, hashName)
	require.NoError(t, err)
	var out []string
	for _, k := range keys {
		entries, err := e.Storage().Bucket(ctx, hashName, k)
		require.NoError(t, err)
		for _, en := range entries {
			out = append(out, en.Payload)
		}
	}
	slices.Sort(out)
	return out
}

func TestEngine_Defaults(t *testing.T) {
	e := mustEngine(t, 5, nil)

	hashes := e.Hashes()
	require.Len(t, hashes, 1)
	assert.Equal(t, DefaultHashName, hashes[0].Name())
	assert.Equal(t, lshash.KindRandomBinaryProjections, hashes[0].Kind())
	assert.Equal(t, 5, hashes[0].Dim())
	assert.False(t, e.Normalizes())
	assert.IsType(t, &memory.Store{}, e.Storage())
}

func TestEngine_ExactRetrieval(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(7)
	vs := rng.GaussianVectors(50, 100)

	tests := []struct {
		name   string
		hashes func(t *testing.T) []lshash.Hash
		opts   []Option
	}{
		{"UniBucket", func(t *testing.T) []lshash.Hash { return []lshash.Hash{lshash.NewUniBucket("uni")} }, nil},
		{"RandomBinaryProjections", func(t *testing.T) []lshash.Hash { return []lshash.Hash{mustRBP(t, "rbp", 10, 1)} }, nil},
		{"Cosine", func(t *testing.T) []lshash.Hash { return []lshash.Hash{mustRBP(t, "rbp", 10, 1)} }, []Option{WithDistance(distance.MetricCosine)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := mustEngine(t, 100, tt.hashes(t), tt.opts...)
			for i, v := range vs {
				require.NoError(t, e.StoreVector(ctx, v, strconv.Itoa(i)))
			}

			for i, v := range vs {
				results, err := e.Neighbours(ctx, v)
				require.NoError(t, err)
				require.NotEmpty(t, results)
				assert.Equal(t, strconv.Itoa(i), results[0].Payload)
				assert.True(t, results[0].HasDistance)
				assert.InDelta(t, 0, results[0].Distance, 1e-9)
				assert.LessOrEqual(t, len(results), DefaultNearest)

				want := v
				if e.Normalizes() {
					want = v.Unit()
				}
				assert.True(t, vector.Equal(want, results[0].Vector))
			}
		})
	}
}

func TestEngine_Normalization(t *testing.T) {
	ctx := context.Background()
	e := mustEngine(t, 3, []lshash.Hash{lshash.NewUniBucket("uni")}, WithNormalization(true))
	require.True(t, e.Normalizes())

	require.NoError(t, e.StoreVector(ctx, vector.NewDense([]float64{3, 0, 4}), "a"))

	results, err := e.Neighbours(ctx, vector.NewDense([]float64{0.6, 0, 0.8}))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 0, results[0].Distance, 1e-12)
	assert.InDelta(t, 1, results[0].Vector.Norm(), 1e-12)
}

func TestEngine_Delete(t *testing.T) {
	ctx := context.Background()

	expected := make([]string, 0, 20)
	for i := range 21 {
		if i != 15 {
			expected = append(expected, strconv.Itoa(i))
		}
	}
	slices.Sort(expected)

	for _, numHashes := range []int{1, 10} {
		t.Run(strconv.Itoa(numHashes), func(t *testing.T) {
			hashes := make([]lshash.Hash, numHashes)
			for i := range hashes {
				hashes[i] = lshash.NewUniBucket("uni" + strconv.Itoa(i))
			}
			e := mustEngine(t, 3, hashes)

			for i := range 21 {
				v := vector.NewDense([]float64{float64(i), float64(i), float64(i)})
				require.NoError(t, e.StoreVector(ctx, v, strconv.Itoa(i)))
			}

			removed, err := e.Delete(ctx, "15")
			require.NoError(t, err)
			assert.Equal(t, numHashes, removed)

			for _, h := range hashes {
				assert.Equal(t, expected, bucketPayloads(t, e, h.Name()))
			}

			removed, err = e.Delete(ctx, "15")
			require.NoError(t, err)
			assert.Zero(t, removed)
		})
	}
}

func TestEngine_DeleteVector(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(3)
	vs := rng.GaussianVectors(30, 16)

	e := mustEngine(t, 16, []lshash.Hash{mustRBP(t, "a", 6, 1), mustRBP(t, "b", 6, 2)})
	for i, v := range vs {
		require.NoError(t, e.StoreVector(ctx, v, strconv.Itoa(i)))
	}

	removed, err := e.DeleteVector(ctx, "4", vs[4])
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.NotContains(t, bucketPayloads(t, e, "a"), "4")
	assert.NotContains(t, bucketPayloads(t, e, "b"), "4")

	// A vector that hashes elsewhere removes nothing.
	far := vector.NewDense(slices.Repeat([]float64{-1}, 16))
	other := vector.NewDense(slices.Repeat([]float64{1}, 16))
	require.NoError(t, e.StoreVector(ctx, far, "far"))
	removed, err = e.DeleteVector(ctx, "far", other)
	require.NoError(t, err)
	assert.Zero(t, removed)
	assert.Contains(t, bucketPayloads(t, e, "a"), "far")
}

func TestEngine_TreeMinResultSize(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(11)

	tree, err := lshash.NewRandomBinaryProjectionTree("tree", 10, 10, lshash.WithSeed(5))
	require.NoError(t, err)
	e := mustEngine(t, 20, []lshash.Hash{tree}, WithFilters(filter.NewNearest(10)))

	for i, v := range rng.GaussianVectors(1000, 20) {
		require.NoError(t, e.StoreVector(ctx, v, strconv.Itoa(i)))
	}

	for _, q := range rng.GaussianVectors(20, 20) {
		n, err := e.CandidateCount(ctx, q)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 10)

		results, err := e.Neighbours(ctx, q)
		require.NoError(t, err)
		assert.Len(t, results, 10)
		for i := 1; i < len(results); i++ {
			assert.LessOrEqual(t, results[i-1].Distance, results[i].Distance)
		}
	}
}

func TestEngine_PermutedIndex(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(21)
	vs := rng.GaussianVectors(1000, 200)

	plain := mustEngine(t, 200, []lshash.Hash{mustRBP(t, "rbp", 10, 42)}, WithDistance(distance.MetricCosine))

	perm := lshash.NewHashPermutations("perm", lshash.WithSeed(9))
	require.NoError(t, perm.AddChildHash(mustRBP(t, "rbp", 10, 42), permutation.Config{
		NumPermutation: 50,
		BeamSize:       10,
		NumNeighbour:   100,
	}))
	metrics := &BasicMetricsCollector{}
	permuted := mustEngine(t, 200, []lshash.Hash{perm},
		WithDistance(distance.MetricCosine),
		WithMetricsCollector(metrics),
	)

	payloads := make([]string, len(vs))
	for i := range vs {
		payloads[i] = strconv.Itoa(i)
	}
	require.NoError(t, plain.StoreManyVectors(ctx, vs, payloads))
	require.NoError(t, permuted.StoreManyVectors(ctx, vs, payloads))

	query := rng.GaussianVector(200)
	_, err := permuted.Neighbours(ctx, query)
	require.ErrorIs(t, err, ErrPrecondition)
	require.ErrorIs(t, err, permutation.ErrIndexNotBuilt)

	require.NoError(t, permuted.BuildPermutedIndex(ctx))
	assert.Equal(t, int64(1), metrics.GetStats().IndexBuildCount)

	nearest := func(results []model.Candidate) float64 {
		if len(results) == 0 {
			return math.Inf(1)
		}
		return results[0].Distance
	}

	for _, q := range append(rng.GaussianVectors(10, 200), query) {
		a, err := plain.Neighbours(ctx, q)
		require.NoError(t, err)
		b, err := permuted.Neighbours(ctx, q)
		require.NoError(t, err)
		assert.LessOrEqual(t, nearest(b), nearest(a))

		na, err := plain.CandidateCount(ctx, q)
		require.NoError(t, err)
		nb, err := permuted.CandidateCount(ctx, q)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, nb, na)
	}
}

func TestEngine_StoreManyMatchesStoreVector(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(5)
	vs := rng.GaussianVectors(40, 12)
	payloads := make([]string, len(vs))
	for i := range vs {
		payloads[i] = strconv.Itoa(i)
	}

	one := mustEngine(t, 12, []lshash.Hash{mustRBP(t, "a", 4, 1), mustRBP(t, "b", 4, 2)})
	many := mustEngine(t, 12, []lshash.Hash{mustRBP(t, "a", 4, 1), mustRBP(t, "b", 4, 2)})

	for i, v := range vs {
		require.NoError(t, one.StoreVector(ctx, v, payloads[i]))
	}
	require.NoError(t, many.StoreManyVectors(ctx, vs, payloads))

	for _, name := range []string{"a", "b"} {
		keys, err := one.Storage().BucketKeys(ctx, name)
		require.NoError(t, err)
		keys2, err := many.Storage().BucketKeys(ctx, name)
		require.NoError(t, err)
		require.Equal(t, keys, keys2)
		for _, k := range keys {
			b1, err := one.Storage().Bucket(ctx, name, k)
			require.NoError(t, err)
			b2, err := many.Storage().Bucket(ctx, name, k)
			require.NoError(t, err)
			assert.Equal(t, payloadsOf(candidates(b1)), payloadsOf(candidates(b2)))
		}
	}

	err := many.StoreManyVectors(ctx, vs, payloads[:3])
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func candidates(entries []model.Entry) []model.Candidate {
	out := make([]model.Candidate, len(entries))
	for i, e := range entries {
		out[i] = model.NewCandidate(e)
	}
	return out
}

func TestEngine_FilterConfiguration(t *testing.T) {
	ctx := context.Background()
	hashes := func() []lshash.Hash {
		return []lshash.Hash{lshash.NewUniBucket("u1"), lshash.NewUniBucket("u2")}
	}
	store := func(t *testing.T, e *Engine) {
		for i := range 5 {
			require.NoError(t, e.StoreVector(ctx, vector.NewDense([]float64{float64(i), 0}), strconv.Itoa(i)))
		}
	}
	query := vector.NewDense([]float64{0, 0})

	t.Run("RawCandidates", func(t *testing.T) {
		e := mustEngine(t, 2, hashes(), WithoutDistance(), WithFilters())
		store(t, e)
		results, err := e.Neighbours(ctx, query)
		require.NoError(t, err)
		assert.Equal(t, []string{"0", "1", "2", "3", "4", "0", "1", "2", "3", "4"}, payloadsOf(results))
		for _, r := range results {
			assert.False(t, r.HasDistance)
		}
	})

	t.Run("DefaultChainWithoutDistance", func(t *testing.T) {
		e := mustEngine(t, 2, hashes(), WithoutDistance())
		store(t, e)
		results, err := e.Neighbours(ctx, query)
		require.NoError(t, err)
		assert.Len(t, results, 10)
		for _, r := range results {
			assert.False(t, r.HasDistance)
		}
	})

	t.Run("NearestWithoutDistance", func(t *testing.T) {
		e := mustEngine(t, 2, hashes(), WithoutDistance(), WithFilters(filter.NewNearest(3)))
		store(t, e)
		_, err := e.Neighbours(ctx, query)
		assert.ErrorIs(t, err, ErrInvalidArgument)
		assert.ErrorIs(t, err, filter.ErrMissingDistance)
	})

	t.Run("FetchUnique", func(t *testing.T) {
		e := mustEngine(t, 2, hashes(),
			WithFetchFilters(filter.NewUnique()),
			WithFilters(filter.NewDistanceThreshold(2.5), filter.NewNearest(10)),
		)
		store(t, e)
		results, err := e.Neighbours(ctx, query)
		require.NoError(t, err)
		assert.Equal(t, []string{"0", "1", "2"}, payloadsOf(results))
	})

	t.Run("MaxCandidates", func(t *testing.T) {
		e := mustEngine(t, 2, hashes(), WithMaxCandidates(3), WithFilters())
		store(t, e)
		results, err := e.Neighbours(ctx, query)
		require.NoError(t, err)
		assert.Equal(t, []string{"0", "1", "2"}, payloadsOf(results))
	})
}

func TestEngine_CleanBuckets(t *testing.T) {
	ctx := context.Background()
	e := mustEngine(t, 2, []lshash.Hash{lshash.NewUniBucket("u1"), lshash.NewUniBucket("u2")})
	require.NoError(t, e.StoreVector(ctx, vector.NewDense([]float64{1, 2}), "a"))

	require.NoError(t, e.CleanBuckets(ctx, "u1"))
	assert.Empty(t, bucketPayloads(t, e, "u1"))
	assert.Equal(t, []string{"a"}, bucketPayloads(t, e, "u2"))

	require.NoError(t, e.CleanAllBuckets(ctx))
	n, err := e.CandidateCount(ctx, vector.NewDense([]float64{1, 2}))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestEngine_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := New(0, nil)
	var invalid *ErrInvalidDimension
	require.ErrorAs(t, err, &invalid)
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = New(4, []lshash.Hash{lshash.NewUniBucket("u"), lshash.NewUniBucket("u")})
	assert.ErrorIs(t, err, ErrConfiguration)

	locked := mustRBP(t, "rbp", 4, 1)
	require.NoError(t, locked.Reset(8))
	_, err = New(4, []lshash.Hash{locked})
	var dm *ErrDimensionMismatch
	require.ErrorAs(t, err, &dm)
	assert.Equal(t, 8, dm.Expected)
	assert.Equal(t, 4, dm.Actual)
	assert.ErrorIs(t, err, ErrConfiguration)

	e := mustEngine(t, 4, []lshash.Hash{lshash.NewUniBucket("u")})
	err = e.StoreVector(ctx, vector.NewDense([]float64{1, 2}), "x")
	require.ErrorAs(t, err, &dm)
	assert.Equal(t, 4, dm.Expected)
	assert.Equal(t, 2, dm.Actual)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.NotErrorIs(t, err, ErrConfiguration)

	_, err = e.Neighbours(ctx, vector.NewDense([]float64{1}))
	assert.ErrorIs(t, err, ErrInvalidArgument)

	require.NoError(t, e.Close())
	require.NoError(t, e.Close())
	assert.ErrorIs(t, e.StoreVector(ctx, vector.NewDense([]float64{1, 2, 3, 4}), "x"), ErrClosed)
	_, err = e.Neighbours(ctx, vector.NewDense([]float64{1, 2, 3, 4}))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestEngine_SparseVectors(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(8)
	e := mustEngine(t, 500, []lshash.Hash{mustRBP(t, "rbp", 8, 3)})

	vs := make([]vector.Vector, 20)
	for i := range vs {
		vs[i] = rng.SparseVector(500, 10)
		require.NoError(t, e.StoreVector(ctx, vs[i], strconv.Itoa(i)))
	}
	results, err := e.Neighbours(ctx, vector.NewDense(vs[7].Dense()))
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "7", results[0].Payload)
}

func TestEngine_StoresCopies(t *testing.T) {
	ctx := context.Background()

	for _, opts := range map[string][]Option{
		"Euclidean":   nil,
		"Cosine":      {WithDistance(distance.MetricCosine)},
		"ZeroAndUnit": {WithNormalization(true)},
	} {
		e := mustEngine(t, 2, []lshash.Hash{lshash.NewUniBucket("uni")}, opts...)

		single := []float64{3, 4}
		zero := []float64{0, 0}
		batch := [][]float64{{1, 0}, {0, 1}}
		require.NoError(t, e.StoreVector(ctx, vector.NewDense(single), "single"))
		require.NoError(t, e.StoreVector(ctx, vector.NewDense(zero), "zero"))
		require.NoError(t, e.StoreManyVectors(ctx,
			[]vector.Vector{vector.NewDense(batch[0]), vector.NewDense(batch[1])},
			[]string{"b0", "b1"}))

		want := make(map[string][]float64)
		for _, c := range mustBucket(t, e) {
			want[c.Payload] = slices.Clone(c.Vector.Dense())
		}

		single[0], zero[0], batch[0][0], batch[1][1] = 100, 100, 100, 100

		for _, c := range mustBucket(t, e) {
			assert.Equal(t, want[c.Payload], c.Vector.Dense(), c.Payload)
		}
	}
}

func mustBucket(t *testing.T, e *Engine) []model.Entry {
	t.Helper()
	entries, err := e.Storage().Bucket(context.Background(), "uni", "uni")
	require.NoError(t, err)
	require.Len(t, entries, 4)
	return entries
}
