package memory

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecay_NoElapsedTimeKeepsScore(t *testing.T) {
	t.Parallel()

	params := DefaultSalienceParams()
	in := DecayInput{CurrentScore: 0.8, DaysSinceTouch: 0, DaysAlive: 10}

	got := Decay(in, params)
	require.InDelta(t, 0.8, got, 1e-9)
}

func TestDecay_MonotonicWithElapsedTime(t *testing.T) {
	t.Parallel()

	params := DefaultSalienceParams()
	in := DecayInput{CurrentScore: 0.8, DaysAlive: 30}

	var prev float64 = math.Inf(1)
	for _, days := range []float64{0, 1, 7, 14, 30} {
		in.DaysSinceTouch = days
		got := Decay(in, params)
		require.LessOrEqual(t, got, prev)
		prev = got
	}
}

func TestDecay_RetrievalExtendsEffectiveHalfLife(t *testing.T) {
	t.Parallel()

	params := DefaultSalienceParams()
	base := DecayInput{CurrentScore: 0.8, DaysSinceTouch: 7, DaysAlive: 30}
	retrieved := base
	retrieved.RetrievalCount = 5

	scoreNoRetrieval := Decay(base, params)
	scoreRetrieved := Decay(retrieved, params)

	require.Greater(t, scoreRetrieved, scoreNoRetrieval)
}

func TestDecay_EmotionalToneBoostsScore(t *testing.T) {
	t.Parallel()

	params := DefaultSalienceParams()
	neutral := DecayInput{CurrentScore: 0.5, DaysSinceTouch: 3, DaysAlive: 10}
	emotional := neutral
	emotional.EmotionalTone = 1.0

	require.Greater(t, Decay(emotional, params), Decay(neutral, params))
}

func TestDecay_ClampsOutOfRangeEmotionalTone(t *testing.T) {
	t.Parallel()

	params := DefaultSalienceParams()
	over := DecayInput{CurrentScore: 0.5, DaysSinceTouch: 3, DaysAlive: 10, EmotionalTone: 5}
	atOne := DecayInput{CurrentScore: 0.5, DaysSinceTouch: 3, DaysAlive: 10, EmotionalTone: 1}

	require.InDelta(t, Decay(atOne, params), Decay(over, params), 1e-9)
}

func TestDecay_ResultNeverExceedsOne(t *testing.T) {
	t.Parallel()

	params := DefaultSalienceParams()
	in := DecayInput{CurrentScore: 1.0, DaysSinceTouch: 0, DaysAlive: 1, RetrievalCount: 100, EmotionalTone: 1}

	require.LessOrEqual(t, Decay(in, params), 1.0)
}

func TestDecay_ZeroDaysAliveTreatedAsOne(t *testing.T) {
	t.Parallel()

	params := DefaultSalienceParams()
	zero := DecayInput{CurrentScore: 0.5, DaysSinceTouch: 1, DaysAlive: 0, RetrievalCount: 1}
	one := DecayInput{CurrentScore: 0.5, DaysSinceTouch: 1, DaysAlive: 1, RetrievalCount: 1}

	require.InDelta(t, Decay(one, params), Decay(zero, params), 1e-9)
}

func TestBoostCappedAndBoostAdd(t *testing.T) {
	t.Parallel()

	require.InDelta(t, 0.6, boostCapped(0.5, 1.2), 1e-9)
	require.InDelta(t, 1.0, boostCapped(0.8, 2.0), 1e-9)

	require.InDelta(t, 0.52, boostAdd(0.5, 0.02), 1e-9)
	require.InDelta(t, 1.0, boostAdd(0.99, 0.5), 1e-9)
}
