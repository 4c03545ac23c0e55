package redirect

import (
	"math/rand/v2"
	"testing"

	"github.com/abdusco/linkhub/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixed(v float64) func() float64 {
	return func() float64 { return v }
}

func target(id int64, weight int, active bool) internal.LinkTarget {
	return internal.LinkTarget{ID: id, TargetURL: "https://example.com/" + string(rune('a'+id)), Weight: weight, IsActive: active}
}

func TestSelectTarget_NoActiveTargets(t *testing.T) {
	_, ok := SelectTarget(nil, fixed(0.5))
	assert.False(t, ok)

	_, ok = SelectTarget([]internal.LinkTarget{target(1, 5, false), target(2, 1, false)}, fixed(0.5))
	assert.False(t, ok)
}

func TestSelectTarget_SingleActiveIsDeterministic(t *testing.T) {
	targets := []internal.LinkTarget{target(1, 10, false), target(2, 1, true), target(3, 7, false)}
	for _, r := range []float64{0, 0.3, 0.999} {
		got, ok := SelectTarget(targets, fixed(r))
		require.True(t, ok)
		assert.Equal(t, int64(2), got.ID)
	}
}

func TestSelectTarget_WalksCumulativeWeights(t *testing.T) {
	targets := []internal.LinkTarget{target(1, 1, true), target(2, 3, true)}

	tests := []struct {
		name   string
		random float64
		want   int64
	}{
		{"start of first band", 0, 1},
		{"inside first band", 0.2, 1},
		{"first band boundary is inclusive", 0.25, 1},
		{"inside second band", 0.5, 2},
		{"end of range", 0.999, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SelectTarget(targets, fixed(tt.random))
			require.True(t, ok)
			assert.Equal(t, tt.want, got.ID)
		})
	}
}

func TestSelectTarget_SkipsInactive(t *testing.T) {
	targets := []internal.LinkTarget{target(1, 100, false), target(2, 1, true), target(3, 1, true)}

	got, ok := SelectTarget(targets, fixed(0.9))
	require.True(t, ok)
	assert.Equal(t, int64(3), got.ID)
}

func TestSelectTarget_FallsBackToLastActive(t *testing.T) {
	targets := []internal.LinkTarget{target(1, 1, true), target(2, 1, true), target(3, 1, false)}

	// A random source outside [0, 1) leaves the walk without a winner.
	got, ok := SelectTarget(targets, fixed(1.5))
	require.True(t, ok)
	assert.Equal(t, int64(2), got.ID)
}

func TestSelectTarget_AlwaysReturnsAnActiveMember(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	targets := []internal.LinkTarget{target(1, 1, true), target(2, 3, true), target(3, 9, false)}

	counts := map[int64]int{}
	const draws = 20000
	for range draws {
		got, ok := SelectTarget(targets, rng.Float64)
		require.True(t, ok)
		require.True(t, got.IsActive)
		counts[got.ID]++
	}

	assert.Zero(t, counts[3])
	assert.InDelta(t, 0.25, float64(counts[1])/draws, 0.02)
	assert.InDelta(t, 0.75, float64(counts[2])/draws, 0.02)
}
