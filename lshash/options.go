package lshash

import "math/rand/v2"

type options struct {
	rng *rand.Rand
}

// Option configures the random source of a hash.
type Option func(*options)

// WithSeed makes the hash draw its parameters from a PCG source seeded
// with seed, so that repeated construction yields identical keys.
func WithSeed(seed uint64) Option {
	return func(o *options) {
		o.rng = rand.New(rand.NewPCG(seed, seed^0x5851f42d4c957f2d))
	}
}

// WithRand makes the hash draw its parameters from r.
// r is used only during Reset and permuted index builds.
func WithRand(r *rand.Rand) Option {
	return func(o *options) {
		if r != nil {
			o.rng = r
		}
	}
}

func applyOptions(opts []Option) options {
	o := options{}
	for _, fn := range opts {
		fn(&o)
	}
	if o.rng == nil {
		o.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return o
}
