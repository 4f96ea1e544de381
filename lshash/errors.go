package lshash

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration indicates an invalid hash setup: bad parameters,
	// re-initialization with a different dimension, or a non-binary child
	// added to a permutation meta-hash.
	ErrConfiguration = errors.New("hash configuration error")

	// ErrInvalidInput indicates a vector that cannot be hashed, typically
	// because of a dimension mismatch.
	ErrInvalidInput = errors.New("invalid hash input")

	// ErrNotInitialized is returned when hashing before Reset.
	ErrNotInitialized = errors.New("hash not initialized")

	// ErrNotBinary is returned when a child hash does not produce
	// fixed-length binary keys.
	ErrNotBinary = errors.New("child hashes must generate binary keys")
)

// DimensionMismatchError reports a dimension that does not match the one a
// hash is locked to.
//
// It unwraps to ErrConfiguration for Reset and ApplyConfig and to
// ErrInvalidInput for hashing.
type DimensionMismatchError struct {
	Hash     string
	Expected int
	Actual   int
	kind     error
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("hash %q: dimension mismatch: expected %d, got %d", e.Hash, e.Expected, e.Actual)
}

func (e *DimensionMismatchError) Unwrap() error { return e.kind }

// checkReset decides what Reset(dim) must do for a hash currently locked to
// cur (0 means uninitialized). It returns init=true when parameters have to
// be drawn.
func checkReset(name string, cur, dim int) (init bool, err error) {
	if dim <= 0 {
		return false, fmt.Errorf("%w: hash %q: invalid dimension %d", ErrConfiguration, name, dim)
	}
	if cur == 0 {
		return true, nil
	}
	if cur != dim {
		return false, &DimensionMismatchError{Hash: name, Expected: cur, Actual: dim, kind: ErrConfiguration}
	}
	return false, nil
}
