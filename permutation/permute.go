package permutation

import (
	"fmt"
	"math/rand/v2"
	"slices"
)

// Permute is a random bijection of bit positions [0,n).
// Applying it moves the bit at position Mapping()[i] to position i.
type Permute struct {
	mapping []int
}

// NewPermute draws a uniform permutation of n positions (Fisher-Yates).
func NewPermute(n int, rng *rand.Rand) *Permute {
	m := make([]int, n)
	for i := range m {
		m[i] = i
	}
	for end := n - 1; end > 0; end-- {
		r := rng.IntN(end + 1)
		m[end], m[r] = m[r], m[end]
	}
	return &Permute{mapping: m}
}

// PermuteFromMapping validates and wraps an explicit mapping.
func PermuteFromMapping(mapping []int) (*Permute, error) {
	seen := make([]bool, len(mapping))
	for _, j := range mapping {
		if j < 0 || j >= len(mapping) || seen[j] {
			return nil, fmt.Errorf("%w: mapping %v is not a permutation", ErrInvalidConfig, mapping)
		}
		seen[j] = true
	}
	return &Permute{mapping: slices.Clone(mapping)}, nil
}

// Len returns the number of permuted positions.
func (p *Permute) Len() int { return len(p.mapping) }

// Mapping returns a copy of the position mapping.
func (p *Permute) Mapping() []int { return slices.Clone(p.mapping) }

func (p *Permute) apply(src bitKey) bitKey {
	dst := make(bitKey, len(src))
	for i, j := range p.mapping {
		if src.get(j) {
			dst.set(i)
		}
	}
	return dst
}

func (p *Permute) revert(src bitKey) bitKey {
	dst := make(bitKey, len(src))
	for i, j := range p.mapping {
		if src.get(i) {
			dst.set(j)
		}
	}
	return dst
}

// Apply permutes a binary key string.
func (p *Permute) Apply(key string) (string, error) {
	k, err := parseKey(key, len(p.mapping))
	if err != nil {
		return "", err
	}
	return p.apply(k).format(len(p.mapping)), nil
}

// Revert undoes Apply.
func (p *Permute) Revert(key string) (string, error) {
	k, err := parseKey(key, len(p.mapping))
	if err != nil {
		return "", err
	}
	return p.revert(k).format(len(p.mapping)), nil
}
