package timeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feed(tp *TriggerPoint, samples ...float64) []float64 {
	var fired []float64
	for _, s := range samples {
		if tp.SetPercent(s) {
			fired = append(fired, s)
		}
	}
	return fired
}

func TestTriggerFiresOnceAcrossThreshold(t *testing.T) {
	tp := NewTriggerPoint(0.5, Increase)
	fired := feed(tp, 0.0, 0.3, 0.49, 0.5, 0.51, 0.9)
	assert.Equal(t, []float64{0.51}, fired)
	assert.Equal(t, 0.9, tp.LastPercent())
}

func TestTriggerFirstSampleNeverFires(t *testing.T) {
	for _, dir := range []Direction{Increase, Descending, Both} {
		tp := NewTriggerPoint(0.5, dir)
		assert.False(t, tp.SetPercent(0.7), dir.String())

		tp.Reset()
		assert.False(t, tp.SetPercent(0.2), dir.String())
	}
}

func TestTriggerDirections(t *testing.T) {
	down := NewTriggerPoint(0.5, Descending)
	assert.Empty(t, feed(down, 0.2, 0.8))
	assert.Equal(t, []float64{0.4}, feed(down, 0.4, 0.1))

	both := NewTriggerPoint(0.5, Both)
	assert.Equal(t, []float64{0.6, 0.4, 0.7}, feed(both, 0.2, 0.6, 0.4, 0.7))

	up := NewTriggerPoint(0.5, Increase)
	assert.Empty(t, feed(up, 0.9, 0.1))
}

func TestTriggerHoverDoesNotRefire(t *testing.T) {
	tp := NewTriggerPoint(0.5, Both)
	fired := feed(tp, 0.4, 0.5, 0.5, 0.5, 0.4)
	assert.Empty(t, fired, "touching and retreating is not a crossing")
}

func TestTriggerDisarmedStillTracks(t *testing.T) {
	tp := NewTriggerPoint(0.5, Increase)
	tp.SetPercent(0.1)
	tp.SetValid(false)
	assert.False(t, tp.SetPercent(0.8))

	tp.SetValid(true)
	assert.False(t, tp.SetPercent(0.9), "movement while disarmed is not replayed")
	assert.Empty(t, feed(tp, 0.95))
}

func TestParseDirection(t *testing.T) {
	for _, d := range []Direction{Increase, Descending, Both} {
		got, err := ParseDirection(d.String())
		require.NoError(t, err)
		assert.Equal(t, d, got)
	}
	got, err := ParseDirection("")
	require.NoError(t, err)
	assert.Equal(t, Increase, got)

	_, err = ParseDirection("sideways")
	assert.Error(t, err)
}
