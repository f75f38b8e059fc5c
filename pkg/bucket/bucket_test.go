package bucket

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRolloutDeterministic(t *testing.T) {
	a := Rollout("intent-abc")
	b := Rollout("intent-abc")
	require.Equal(t, a, b)
}

func TestRolloutInUnitInterval(t *testing.T) {
	for _, id := range []string{"a", "b", "intent-1", "intent-2", "org/repo:pr-42"} {
		v := Rollout(id)
		require.GreaterOrEqual(t, v, 0.0)
		require.Less(t, v, 1.0)
	}
}

func TestRolloutDistinctIDsDiffer(t *testing.T) {
	require.NotEqual(t, Rollout("intent-1"), Rollout("intent-2"))
}

func TestRolloutApproximatelyUniform(t *testing.T) {
	const n = 20000
	below := 0
	for i := 0; i < n; i++ {
		id := "intent-" + string(rune('a'+i%26)) + string(rune(i))
		if Rollout(id) < 0.3 {
			below++
		}
	}
	ratio := float64(below) / float64(n)
	require.InDelta(t, 0.3, ratio, 0.05)
}
