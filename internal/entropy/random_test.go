package entropy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSource_Reproducible(t *testing.T) {
	a, b := New(42), New(42)
	for i := 0; i < 100; i++ {
		assert.Equal(t, a.Float64(), b.Float64())
	}
	assert.Equal(t, int64(42), a.Seed())
}

func TestSource_ZeroSeedDrawsOne(t *testing.T) {
	s := New(0)
	assert.NotZero(t, s.Seed())
}

func TestChooseWeighted(t *testing.T) {
	s := New(7)
	assert.Equal(t, -1, s.ChooseWeighted(nil))
	for i := 0; i < 50; i++ {
		assert.Equal(t, 1, s.ChooseWeighted([]float64{0, 3, 0}))
	}

	counts := make([]int, 2)
	for i := 0; i < 2000; i++ {
		counts[s.ChooseWeighted([]float64{1, 9})]++
	}
	assert.Greater(t, counts[1], counts[0]*4)

	idx := s.ChooseWeighted([]float64{0, 0})
	assert.Contains(t, []int{0, 1}, idx)
}
