package permutation

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

func randomKeys(rng *rand.Rand, n, bits int) []string {
	keys := make([]string, n)
	for i := range keys {
		b := make([]byte, bits)
		for j := range b {
			b[j] = '0' + byte(rng.IntN(2))
		}
		keys[i] = string(b)
	}
	return keys
}

func TestPermuteApplyRevert(t *testing.T) {
	p, err := PermuteFromMapping([]int{1, 2, 3, 4, 0})
	require.NoError(t, err)

	// Example from the package docs: "00001" -> "00010".
	got, err := p.Apply("00001")
	require.NoError(t, err)
	assert.Equal(t, "00010", got)

	back, err := p.Revert(got)
	require.NoError(t, err)
	assert.Equal(t, "00001", back)

	rng := newRand(1)
	for range 50 {
		p := NewPermute(70, rng)
		key := randomKeys(rng, 1, 70)[0]
		perm, err := p.Apply(key)
		require.NoError(t, err)
		orig, err := p.Revert(perm)
		require.NoError(t, err)
		assert.Equal(t, key, orig)
	}
}

func TestPermuteFromMappingInvalid(t *testing.T) {
	_, err := PermuteFromMapping([]int{0, 0, 1})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = PermuteFromMapping([]int{0, 3})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestHamming(t *testing.T) {
	d, err := Hamming("10110", "00111")
	require.NoError(t, err)
	assert.Equal(t, 2, d)

	_, err = Hamming("101", "1x1")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestKeyOrderMatchesStringOrder(t *testing.T) {
	rng := newRand(2)
	keys := randomKeys(rng, 200, 130)
	for i := 0; i+1 < len(keys); i++ {
		a, err := parseKey(keys[i], 130)
		require.NoError(t, err)
		b, err := parseKey(keys[i+1], 130)
		require.NoError(t, err)

		want := 0
		switch {
		case keys[i] < keys[i+1]:
			want = -1
		case keys[i] > keys[i+1]:
			want = 1
		}
		assert.Equal(t, want, compareKeys(a, b))
		assert.Equal(t, keys[i], a.format(130))
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		err  error
	}{
		{"valid", Config{NumPermutation: 2, BeamSize: 4, NumNeighbour: 3}, nil},
		{"odd beam", Config{NumPermutation: 2, BeamSize: 3, NumNeighbour: 3}, ErrOddBeamSize},
		{"zero permutations", Config{BeamSize: 2, NumNeighbour: 3}, ErrInvalidConfig},
		{"zero neighbours", Config{NumPermutation: 1, BeamSize: 2}, ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.err == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.err)
			}
		})
	}
}

func TestBuildOddBeamSize(t *testing.T) {
	_, err := Build(context.Background(), []string{"01"}, Config{NumPermutation: 1, BeamSize: 5, NumNeighbour: 1}, newRand(1))
	assert.ErrorIs(t, err, ErrOddBeamSize)
}

func TestBuildRejectsMixedLengths(t *testing.T) {
	_, err := Build(context.Background(), []string{"01", "011"}, Config{NumPermutation: 1, BeamSize: 2, NumNeighbour: 1}, newRand(1))
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestIndexFindsExactAndCloseKeys(t *testing.T) {
	rng := newRand(3)
	keys := randomKeys(rng, 500, 24)

	ix, err := Build(context.Background(), keys, Config{NumPermutation: 20, BeamSize: 10, NumNeighbour: 5}, rng)
	require.NoError(t, err)
	assert.LessOrEqual(t, ix.Len(), 500)
	assert.Equal(t, 24, ix.KeyLength())

	for _, k := range keys[:50] {
		got, err := ix.Neighbours(k)
		require.NoError(t, err)
		require.NotEmpty(t, got)
		assert.LessOrEqual(t, len(got), 5)
		// A known key is its own nearest neighbour.
		assert.Equal(t, k, got[0])

		prev := -1
		for _, g := range got {
			d, err := Hamming(k, g)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, d, prev, "results must be ordered by hamming distance")
			prev = d
		}
	}
}

func TestIndexFullBeamEqualsBruteForce(t *testing.T) {
	rng := newRand(4)
	keys := randomKeys(rng, 40, 12)

	// A beam covering every entry degenerates to brute force.
	ix, err := Build(context.Background(), keys, Config{NumPermutation: 1, BeamSize: 80, NumNeighbour: 3}, rng)
	require.NoError(t, err)

	query := randomKeys(rng, 1, 12)[0]
	got, err := ix.Neighbours(query)
	require.NoError(t, err)

	uniq := append([]string(nil), ix.strs...)
	sort.SliceStable(uniq, func(a, b int) bool {
		da, _ := Hamming(query, uniq[a])
		db, _ := Hamming(query, uniq[b])
		return da < db
	})
	for i := range got {
		want, _ := Hamming(query, uniq[i])
		have, _ := Hamming(query, got[i])
		assert.Equal(t, want, have)
	}

	// Cached lookups return the same answer.
	again, err := ix.Neighbours(query)
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestIndexDeterministicForSeed(t *testing.T) {
	keys := randomKeys(newRand(5), 100, 16)
	cfg := Config{NumPermutation: 4, BeamSize: 4, NumNeighbour: 4}

	a, err := Build(context.Background(), keys, cfg, newRand(9))
	require.NoError(t, err)
	b, err := Build(context.Background(), keys, cfg, newRand(9))
	require.NoError(t, err)

	for _, k := range keys[:10] {
		ga, err := a.Neighbours(k)
		require.NoError(t, err)
		gb, err := b.Neighbours(k)
		require.NoError(t, err)
		assert.Equal(t, ga, gb)
	}
}

func TestIndexEmptyAndWrongLength(t *testing.T) {
	ix, err := Build(context.Background(), nil, Config{NumPermutation: 1, BeamSize: 2, NumNeighbour: 1}, newRand(1))
	require.NoError(t, err)
	got, err := ix.Neighbours("0101")
	require.NoError(t, err)
	assert.Empty(t, got)

	ix, err = Build(context.Background(), []string{"0101"}, Config{NumPermutation: 1, BeamSize: 2, NumNeighbour: 1}, newRand(1))
	require.NoError(t, err)
	_, err = ix.Neighbours("01")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestBuildCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Build(ctx, randomKeys(newRand(1), 10, 8), Config{NumPermutation: 3, BeamSize: 2, NumNeighbour: 1}, newRand(1))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	_, err := r.Neighbours("default", "01")
	assert.ErrorIs(t, err, ErrIndexNotBuilt)

	ix, err := Build(context.Background(), []string{"00", "01", "11"}, Config{NumPermutation: 2, BeamSize: 2, NumNeighbour: 2}, newRand(1))
	require.NoError(t, err)
	r.Publish("default", ix)

	got, err := r.Neighbours("default", "01")
	require.NoError(t, err)
	assert.Equal(t, "01", got[0])
	assert.Equal(t, []string{"default"}, r.Names())

	r.Remove("default")
	_, ok := r.Get("default")
	assert.False(t, ok)
}

func TestRegistryConcurrentPublishAndRead(t *testing.T) {
	r := NewRegistry()
	rng := newRand(6)
	keys := randomKeys(rng, 64, 10)

	var wg sync.WaitGroup
	for i := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 10 {
				ix, err := Build(context.Background(), keys, Config{NumPermutation: 2, BeamSize: 4, NumNeighbour: 2}, newRand(uint64(i*100+j)))
				if err != nil {
					t.Error(err)
					return
				}
				r.Publish(fmt.Sprintf("h%d", i%2), ix)
			}
		}()
	}
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				for _, name := range r.Names() {
					if _, err := r.Neighbours(name, keys[0]); err != nil {
						t.Error(err)
						return
					}
				}
			}
		}()
	}
	wg.Wait()
	assert.Len(t, r.Names(), 2)
}
