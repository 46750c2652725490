package timeline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func laidOut(state PlayableState, begin, length, total float64) *WorkClip {
	c := NewWorkClip(state, begin, length)
	c.Layout(total)
	return c
}

func TestClipLoopBoundaryReportsCompletion(t *testing.T) {
	s := newFake("pulse", 1)
	clip := laidOut(s, 0, 2, 2)
	require.InDelta(t, 2.0, clip.LoopCount(), 1e-9)

	assert.InDelta(t, 0.0, clip.LocalPercent(0), 1e-9)
	assert.InDelta(t, 0.5, clip.LocalPercent(0.25), 1e-9)
	assert.InDelta(t, 1.0, clip.LocalPercent(0.5), 1e-9, "end of first loop completes, not restarts")
	assert.InDelta(t, 0.5, clip.LocalPercent(0.75), 1e-9)
	assert.InDelta(t, 1.0, clip.LocalPercent(1), 1e-9)
}

func TestClipSpeedAndLoopCountAreOneRatio(t *testing.T) {
	s := newFake("pulse", 1)
	clip := laidOut(s, 0, 2, 2)

	clip.SetLoopCount(4)
	assert.InDelta(t, 2.0, clip.Speed(), 1e-9)
	assert.InDelta(t, 4.0, clip.LoopCount(), 1e-9)
	assert.InDelta(t, 0.5, clip.OnceTimeLengthWithSpeed(), 1e-9)

	clip.SetSpeed(0.5)
	assert.InDelta(t, 1.0, clip.LoopCount(), 1e-9)

	clip.SetSpeed(-3)
	assert.Equal(t, 0.0, clip.Speed())
	assert.Equal(t, 0.0, clip.LoopCount())
	assert.Equal(t, 0.0, clip.OnceTimeLengthWithSpeed())
	assert.Equal(t, 0.0, clip.LocalPercent(0.7), "zero speed freezes at start")
}

func TestClipWithoutIntrinsicLengthPlaysOnce(t *testing.T) {
	s := newFake("hold", 0)
	clip := laidOut(s, 0, 4, 4)
	assert.Equal(t, 1.0, clip.LoopCount())
	assert.InDelta(t, 0.25, clip.LocalPercent(0.25), 1e-9)
	assert.True(t, clip.SetTimeOfState(2))
	assert.InDelta(t, 0.5, s.lastPercent(), 1e-9)
}

func TestClipSetPercentFailsWhenInvalid(t *testing.T) {
	s := newFake("a", 1)
	clip := laidOut(s, 0, 1, 1)
	assert.True(t, clip.SetPercent(0.5))

	clip.SetValid(false)
	assert.False(t, clip.SetPercent(0.5))

	empty := laidOut(s, 0, 0, 1)
	assert.False(t, empty.SetPercent(0))

	unbound := laidOut(nil, 0, 1, 1)
	assert.False(t, unbound.SetPercent(0.5))
	_, ok := unbound.StateToPercent(s)
	assert.False(t, ok)
}

func TestClipSetTimeUsesParentSeconds(t *testing.T) {
	s := newFake("a", 2)
	clip := laidOut(s, 4, 4, 10)
	require.True(t, clip.SetTime(5))
	assert.InDelta(t, 0.5, s.lastPercent(), 1e-9)
	require.True(t, clip.SetTime(7))
	assert.InDelta(t, 0.5, s.lastPercent(), 1e-9, "second loop halfway")
}

func TestClipEntryAndExitOrdering(t *testing.T) {
	s := newFake("a", 1)
	clip := laidOut(s, 0, 1, 1)

	clip.OnEntrySetPercent(0)
	clip.OnExitSetPercent(1)
	assert.Equal(t, []string{"enter", "set:0.000", "set:1.000", "exit"}, s.events)
}

func TestClipStateToPercentRoundTrip(t *testing.T) {
	target := newFake("target", 4)
	filler := newFake("filler", 2)
	c := NewWorkClipContainer("root",
		NewWorkClip(target, 2, 4),
		NewWorkClip(filler, 8, 2),
	)

	p, ok := c.StateToPercent(target)
	require.True(t, ok)
	assert.InDelta(t, 0.2, p, 1e-9)

	require.True(t, c.SetPercent(p))
	assert.Contains(t, c.ActiveStates(), PlayableState(target))
}

func TestClipResolvesThroughNestedContainer(t *testing.T) {
	l1, l2 := newFake("l1", 5), newFake("l2", 5)
	inner := NewWorkClipContainer("inner",
		NewWorkClip(l1, 0, 5),
		NewWorkClip(l2, 5, 5),
	)
	lead := newFake("lead", 10)
	outer := NewWorkClipContainer("outer",
		NewWorkClip(lead, 0, 10),
		NewWorkClip(inner, 10, 10),
	)

	p, ok := outer.StateToPercent(l2)
	require.True(t, ok)
	assert.InDelta(t, 0.75, p, 1e-9)

	set := NewStateSet()
	outer.PercentToStates(0.8, set)
	assert.True(t, set.Has(l2))
	assert.False(t, set.Has(inner), "containers are never leaves")
	local, _ := set.Percent(l2)
	assert.InDelta(t, 0.2, local, 1e-9)
}

func TestClipPartlyPlayedContainerHidesLaterStates(t *testing.T) {
	a, b := newFake("a", 2), newFake("b", 2)
	inner := NewWorkClipContainer("inner",
		NewWorkClip(a, 0, 2),
		NewWorkClip(b, 8, 2),
	)
	tail := newFake("tail", 5)
	outer := NewWorkClipContainer("outer",
		NewWorkClip(inner, 0, 5),
		NewWorkClip(tail, 5, 5),
	)
	require.InDelta(t, 0.5, outer.Clips()[0].LoopCount(), 1e-9, "only half of inner fits")

	p, ok := outer.StateToPercent(a)
	require.True(t, ok)
	assert.InDelta(t, 0.0, p, 1e-9)

	_, ok = outer.StateToPercent(b)
	assert.False(t, ok, "b sits past the played half of inner")

	assert.False(t, outer.PlayContentElements(b))
	require.True(t, outer.PlayContentElements(a, b))
	assert.InDelta(t, 0.0, outer.Percent(), 1e-9)
	assert.Equal(t, []PlayableState{a}, outer.ActiveStates())
}

func TestClipValidity(t *testing.T) {
	s := newFake("a", 1)
	good := laidOut(s, 0, 5, 10)
	assert.NoError(t, good.Validity(10))

	err := good.Validity(20)
	assert.True(t, errors.Is(err, ErrRangeMismatch))

	bad := laidOut(nil, 0, 5, 10)
	bad.SetSpeed(0)
	err = bad.Validity(10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingState))
	assert.True(t, errors.Is(err, ErrInvalidSpeed))

	empty := laidOut(s, 3, 0, 10)
	assert.True(t, errors.Is(empty.Validity(10), ErrEmptyRange))
}
