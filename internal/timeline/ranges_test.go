package timeline

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapLoop(t *testing.T) {
	cases := []struct {
		raw  float64
		want float64
	}{
		{0, 0},
		{0.25, 0.25},
		{1, 1},
		{1.5, 0.5},
		{2, 1},
		{2.0000000001, 1},
		{-0.25, 0.75},
		{-1, 0},
		{math.NaN(), 0},
		{math.Inf(1), 0},
	}
	for _, tc := range cases {
		assert.InDelta(t, tc.want, wrapLoop(tc.raw), 1e-9, "raw=%v", tc.raw)
	}
}

func TestPercentRangeNormalize(t *testing.T) {
	r := PercentRange{Begin: 0.2, End: 0.6}
	assert.InDelta(t, 0.0, r.Normalize(0.2), 1e-9)
	assert.InDelta(t, 0.5, r.Normalize(0.4), 1e-9)
	assert.InDelta(t, 1.0, r.Normalize(0.6), 1e-9)
	assert.True(t, r.Contains(0.6), "end is inclusive")
	assert.False(t, r.Contains(0.61))
	assert.Equal(t, 0.6, r.Clamp(0.9))
	assert.Equal(t, 0.2, r.Clamp(0.1))

	empty := PercentRange{Begin: 0.3, End: 0.3}
	assert.Equal(t, 0.0, empty.Normalize(0.3), "empty range never divides by zero")
}

func TestWorkRangeSetTimeLength(t *testing.T) {
	w := WorkRange{Time: TimeRange{Begin: 2, End: 4}}
	w.SetTimeLength(6, 10)
	assert.Equal(t, 8.0, w.Time.End)
	assert.InDelta(t, 0.2, w.Percent.Begin, 1e-9)
	assert.InDelta(t, 0.8, w.Percent.End, 1e-9)

	w.SetTimeLength(3, 0)
	assert.Equal(t, 0.0, w.Percent.Begin, "zero parent length short-circuits to 0")
	assert.Equal(t, 0.0, w.Percent.End)
	assert.False(t, math.IsNaN(w.Percent.End))

	w.SetBeginTime(5, 10)
	assert.Equal(t, 8.0, w.Time.End)
	assert.InDelta(t, 0.5, w.Percent.Begin, 1e-9)
}

func TestStateSetSameMembersIgnoresOrder(t *testing.T) {
	a, b := newFake("a", 1), newFake("b", 1)

	s1 := NewStateSet()
	s1.Add(a, 0.1)
	s1.Add(b, 0.2)
	s2 := NewStateSet()
	s2.Add(b, 0.9)
	s2.Add(a, 0.9)

	assert.True(t, s1.SameMembers(s2))

	s1.Add(a, 0.5)
	p, _ := s1.Percent(a)
	assert.Equal(t, 0.5, p, "duplicate keeps the higher percent")
	assert.Equal(t, 2, s1.Len())
}
