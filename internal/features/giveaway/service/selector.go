package service

import (
	"math/rand/v2"
	"sync"

	"giveaway-bot/internal/utils/random"
)

// randomSelector draws winners uniformly without replacement.
type randomSelector struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRandomSelector returns a selector backed by a crypto-seeded generator.
func NewRandomSelector() WinnerSelector {
	return &randomSelector{rnd: random.NewSecureSource()}
}

// NewSeededSelector returns a reproducible selector.
func NewSeededSelector(seed uint64) WinnerSelector {
	return &randomSelector{rnd: random.NewSeeded(seed)}
}

func (s *randomSelector) Select(participants []int64, count int) []int64 {
	// *rand.Rand is not safe for concurrent use
	s.mu.Lock()
	defer s.mu.Unlock()
	return random.Sample(s.rnd, participants, count)
}
