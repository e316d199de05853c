package rng

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
)

// SeededAdapter implements ports.RNGPort. It holds no state: every stream is
// derived from (name, seed, round) alone.
type SeededAdapter struct{}

// NewSeededAdapter creates a new seeded RNG adapter
func NewSeededAdapter() *SeededAdapter {
	return &SeededAdapter{}
}

// SeededStream creates a deterministic random number generator for a named operation
func (a *SeededAdapter) SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error) {
	return a.Stream(ctx, name, seed, 0)
}

// Stream creates a deterministic RNG stream for one round of a named operation
func (a *SeededAdapter) Stream(ctx context.Context, name string, seed int64, round int) (*rand.Rand, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if round < 0 {
		return nil, fmt.Errorf("rng stream round must be non-negative, got %d", round)
	}
	return rand.New(rand.NewSource(DeriveSeed(name, seed, round))), nil
}

// DeriveSeed mixes the operation name, base seed and round index into a
// stream seed. Neighbouring rounds land far apart in seed space.
func DeriveSeed(name string, seed int64, round int) int64 {
	h := fnv.New64a()
	h.Write([]byte(name))
	x := h.Sum64() ^ uint64(seed)
	x += uint64(round+1) * 0x9E3779B97F4A7C15
	// splitmix64 finalizer
	x = (x ^ (x >> 30)) * 0xBF58476D1CE4E5B9
	x = (x ^ (x >> 27)) * 0x94D049BB133111EB
	x ^= x >> 31
	return int64(x & 0x7FFFFFFFFFFFFFFF)
}
