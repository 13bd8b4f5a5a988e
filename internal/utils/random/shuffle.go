package random

import (
	crand "crypto/rand"
	"math/rand/v2"
)

// NewSecureSource returns a ChaCha8-backed generator seeded from crypto/rand.
func NewSecureSource() *rand.Rand {
	var seed [32]byte
	if _, err := crand.Read(seed[:]); err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}
	return rand.New(rand.NewChaCha8(seed))
}

// NewSeeded returns a deterministic generator for reproducible draws.
func NewSeeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Shuffle performs an in-place Fisher-Yates shuffle of the slice.
func Shuffle[T any](r *rand.Rand, slice []T) {
	for i := len(slice) - 1; i > 0; i-- {
		j := r.IntN(i + 1)
		slice[i], slice[j] = slice[j], slice[i]
	}
}

// Sample returns k distinct elements drawn uniformly from src without
// replacement, in draw order. src is not modified. When k >= len(src) every
// element is returned, shuffled.
func Sample[T any](r *rand.Rand, src []T, k int) []T {
	if k <= 0 {
		return []T{}
	}
	pool := make([]T, len(src))
	copy(pool, src)
	if k >= len(pool) {
		Shuffle(r, pool)
		return pool
	}
	// partial Fisher-Yates: only the first k positions are settled
	for i := 0; i < k; i++ {
		j := i + r.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:k:k]
}
