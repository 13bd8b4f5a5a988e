package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectorEdgeCases(t *testing.T) {
	s := NewRandomSelector()

	assert.ElementsMatch(t, []int64{1, 2}, s.Select([]int64{1, 2}, 2))
	assert.ElementsMatch(t, []int64{1, 2}, s.Select([]int64{1, 2}, 10))
	assert.Empty(t, s.Select(nil, 3))

	pool := make([]int64, 100)
	for i := range pool {
		pool[i] = int64(i + 1)
	}
	got := s.Select(pool, 3)
	assert.Len(t, got, 3)
	assert.Subset(t, pool, got)
	assert.NotEqual(t, got[0], got[1])
	assert.NotEqual(t, got[1], got[2])
	assert.NotEqual(t, got[0], got[2])
}

func TestSeededSelectorIsDeterministic(t *testing.T) {
	pool := []int64{10, 20, 30, 40, 50, 60}
	assert.Equal(t, NewSeededSelector(3).Select(pool, 2), NewSeededSelector(3).Select(pool, 2))
}
