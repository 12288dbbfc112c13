package rng

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSourceIsDeterministicForAFixedSeed(t *testing.T) {
	a := New(42)
	b := New(42)

	for i := 0; i < 5; i++ {
		assert.Equal(t, a.RandInt(), b.RandInt())
		assert.Equal(t, a.RandFloat(), b.RandFloat())
	}
}

func TestSourcesWithDifferentSeedsDiverge(t *testing.T) {
	a := New(1)
	b := New(2)
	assert.NotEqual(t, a.RandInt(), b.RandInt())
}

func TestSeedForAttemptIsDeterministicAndSensitiveToEveryInput(t *testing.T) {
	base := uint64(123)

	assert.Equal(t, SeedForAttempt(base, 5, 1), SeedForAttempt(base, 5, 1))
	assert.NotEqual(t, SeedForAttempt(base, 5, 1), SeedForAttempt(base, 6, 1))
	assert.NotEqual(t, SeedForAttempt(base, 5, 1), SeedForAttempt(base, 5, 2))
	assert.NotEqual(t, SeedForAttempt(base, 5, 1), SeedForAttempt(base+1, 5, 1))
}

func TestRandFloatStaysInUnitInterval(t *testing.T) {
	s := New(7)
	for i := 0; i < 1000; i++ {
		f := s.RandFloat()
		assert.GreaterOrEqual(t, f, 0.0)
		assert.Less(t, f, 1.0)
	}
}
