package permutation

import "errors"

var (
	// ErrIndexNotBuilt is returned when neighbours are requested for a hash
	// name that has no published index.
	ErrIndexNotBuilt = errors.New("permuted index not built")

	// ErrOddBeamSize is returned when the beam cannot be split evenly around
	// the match position.
	ErrOddBeamSize = errors.New("beam size must be even")

	// ErrInvalidConfig is returned for non-positive permutation parameters.
	ErrInvalidConfig = errors.New("invalid permutation config")

	// ErrInvalidKey is returned for keys that are not binary strings of the
	// index's key length.
	ErrInvalidKey = errors.New("invalid binary key")
)
