package ports

import (
	"context"
	"math/rand"
)

// RNGPort hands out reproducible random streams. The same (name, seed)
// or (name, seed, round) always yields the same sequence of draws.
type RNGPort interface {
	// SeededStream returns the generator for a named single-pass procedure
	SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error)

	// Stream returns the generator for one round of a resampling procedure.
	// Rounds are independent of each other, so they may run concurrently
	// in any order.
	Stream(ctx context.Context, name string, seed int64, round int) (*rand.Rand, error)
}
