package permutation

import (
	"fmt"
	"math/bits"
	"strings"
)

// bitKey packs a binary key MSB-first into 64-bit words so that comparing
// words in order matches lexicographic comparison of the '0'/'1' string.
type bitKey []uint64

func wordsFor(n int) int { return (n + 63) / 64 }

func parseKey(s string, n int) (bitKey, error) {
	if len(s) != n {
		return nil, fmt.Errorf("%w: %q has length %d, want %d", ErrInvalidKey, s, len(s), n)
	}
	k := make(bitKey, wordsFor(n))
	for i := 0; i < n; i++ {
		switch s[i] {
		case '1':
			k.set(i)
		case '0':
		default:
			return nil, fmt.Errorf("%w: %q", ErrInvalidKey, s)
		}
	}
	return k, nil
}

func (k bitKey) get(i int) bool {
	return k[i>>6]&(1<<(63-uint(i&63))) != 0
}

func (k bitKey) set(i int) {
	k[i>>6] |= 1 << (63 - uint(i&63))
}

func (k bitKey) format(n int) string {
	var sb strings.Builder
	sb.Grow(n)
	for i := 0; i < n; i++ {
		if k.get(i) {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

func compareKeys(a, b bitKey) int {
	for i := range a {
		switch {
		case a[i] < b[i]:
			return -1
		case a[i] > b[i]:
			return 1
		}
	}
	return 0
}

func hamming(a, b bitKey) int {
	d := 0
	for i := range a {
		d += bits.OnesCount64(a[i] ^ b[i])
	}
	return d
}

// Hamming returns the number of differing positions between two binary
// keys of equal length.
func Hamming(a, b string) (int, error) {
	ka, err := parseKey(a, len(a))
	if err != nil {
		return 0, err
	}
	kb, err := parseKey(b, len(a))
	if err != nil {
		return 0, err
	}
	return hamming(ka, kb), nil
}
