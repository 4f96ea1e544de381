package nearlsh

import (
	"errors"
	"fmt"

	"github.com/hupe1980/nearlsh/filter"
	"github.com/hupe1980/nearlsh/lshash"
	"github.com/hupe1980/nearlsh/permutation"
	"github.com/hupe1980/nearlsh/storage"
	"github.com/hupe1980/nearlsh/vector"
)

var (
	// ErrConfiguration indicates a misconfigured engine or hash, e.g. a
	// hash reset to a different dimension or a non-binary child hash.
	ErrConfiguration = lshash.ErrConfiguration

	// ErrPrecondition indicates an operation called in the wrong state,
	// e.g. querying a HashPermutations hash before BuildPermutedIndex.
	ErrPrecondition = errors.New("precondition failed")

	// ErrInvalidArgument indicates a bad caller argument such as a vector
	// of the wrong dimension.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrClosed is returned by operations on a closed engine.
	ErrClosed = errors.New("engine closed")

	// ErrNotSupported is returned when the configured storage lacks an
	// optional capability, e.g. snapshots.
	ErrNotSupported = errors.New("not supported")
)

// ErrDimensionMismatch indicates a vector or hash whose dimension differs
// from the engine dimension.
//
// It matches ErrInvalidArgument for vectors passed to engine operations and
// ErrConfiguration for hashes and hash configurations. The original
// underlying error (if any) can be accessed via errors.Unwrap.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
	kind     error
	cause    error
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() []error {
	if e.cause == nil {
		return []error{e.kind}
	}
	return []error{e.kind, e.cause}
}

// ErrInvalidDimension indicates an invalid configured dimension.
type ErrInvalidDimension struct {
	Dimension int
}

func (e *ErrInvalidDimension) Error() string {
	return fmt.Sprintf("invalid dimension: %d", e.Dimension)
}

func (e *ErrInvalidDimension) Unwrap() error { return ErrConfiguration }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	var dm *lshash.DimensionMismatchError
	if errors.As(err, &dm) {
		kind := ErrConfiguration
		if errors.Is(err, lshash.ErrInvalidInput) {
			kind = ErrInvalidArgument
		}
		return &ErrDimensionMismatch{Expected: dm.Expected, Actual: dm.Actual, kind: kind, cause: err}
	}

	switch {
	case errors.Is(err, permutation.ErrIndexNotBuilt),
		errors.Is(err, permutation.ErrOddBeamSize),
		errors.Is(err, lshash.ErrNotInitialized):
		return fmt.Errorf("%w: %w", ErrPrecondition, err)
	case errors.Is(err, permutation.ErrInvalidConfig):
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	case errors.Is(err, lshash.ErrInvalidInput),
		errors.Is(err, permutation.ErrInvalidKey),
		errors.Is(err, vector.ErrInvalidSparse),
		errors.Is(err, storage.ErrLengthMismatch),
		errors.Is(err, filter.ErrMissingDistance):
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	case errors.Is(err, storage.ErrClosed):
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}
	return err
}
