// Package rng provides the injected PRNG capability that replaces the
// original implementation's global generator, so realizations can draw
// RANDINT/RANDFLOAT substitution values reproducibly and in parallel
// without contending on shared state.
package rng

import "math/rand/v2"

// Rng is the capability surface the substitution layer's RANDINT/RANDFLOAT
// built-ins draw from.
type Rng interface {
	RandInt() int64
	RandFloat() float64
}

// Source is a per-realization PRNG. Seeding one Source per iens (or per
// attempt, for retries that must not repeat the same draws) is what makes
// ensemble runs reproducible: the same seed schedule always produces the
// same substituted templates, independent of how many realizations happen
// to run concurrently.
type Source struct {
	r *rand.Rand
}

var _ Rng = (*Source)(nil)

// New constructs a Source seeded deterministically from seed.
func New(seed uint64) *Source {
	return &Source{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (s *Source) RandInt() int64 {
	return s.r.Int64()
}

func (s *Source) RandFloat() float64 {
	return s.r.Float64()
}

// SeedForAttempt derives a distinct, deterministic seed for a given
// realization's Nth internal submission, so a retry's resampled draws
// differ from the initial attempt's while remaining reproducible across
// runs of the same ensemble configuration.
func SeedForAttempt(base uint64, iens, numInternalSubmit int) uint64 {
	h := base
	h = h*1099511628211 ^ uint64(uint32(iens))
	h = h*1099511628211 ^ uint64(uint32(numInternalSubmit))
	return h
}
