package effects

import (
	"testing"

	"github.com/ChuLiYu/workclip/internal/timeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEaseEndpoints(t *testing.T) {
	for _, name := range EaseNames() {
		t.Run(name, func(t *testing.T) {
			e, err := ParseEase(name)
			require.NoError(t, err)
			assert.InDelta(t, 0.0, e(0), 1e-9)
			assert.InDelta(t, 1.0, e(1), 1e-9)
			assert.InDelta(t, 0.5, e(0.5), 0.3)
		})
	}
}

func TestParseEase(t *testing.T) {
	e, err := ParseEase("")
	require.NoError(t, err)
	assert.Equal(t, 0.3, e(0.3))

	_, err = ParseEase("SMOOTH")
	assert.NoError(t, err)

	_, err = ParseEase("bounce")
	assert.Error(t, err)
}

func TestTweenValue(t *testing.T) {
	in, _ := ParseEase("in_quad")
	tw := NewTween("fade", 10, 20, 2, in)
	assert.Equal(t, 10.0, tw.Value())
	assert.Equal(t, 2.0, tw.OnceTimeLength())

	tw.SetPercent(0.5)
	assert.InDelta(t, 12.5, tw.Value(), 1e-9)

	tw.SetPercent(1.7)
	assert.Equal(t, 1.0, tw.Percent(), "percent clamps into [0,1]")
	assert.InDelta(t, 20.0, tw.Value(), 1e-9)

	tw.SetTime(1)
	assert.InDelta(t, 0.5, tw.Percent(), 1e-9)
}

func TestTweenZeroDurationSnapsToEnd(t *testing.T) {
	tw := NewTween("snap", 0, 1, 0, nil)
	tw.SetTime(0)
	assert.Equal(t, 1.0, tw.Value())
}

func TestTweenInsideContainer(t *testing.T) {
	tw := NewTween("fade", 0, 1, 2, nil)
	c := timeline.NewWorkClipContainer("root", timeline.NewWorkClip(tw, 0, 2), timeline.NewWorkClip(NewHold("pad", 2), 2, 2))

	c.SetPercent(0.25)
	assert.True(t, tw.Active())
	assert.Equal(t, 1, tw.Entries())
	assert.InDelta(t, 0.5, tw.Value(), 1e-9)

	c.SetPercent(0.75)
	assert.False(t, tw.Active())
	assert.Equal(t, 1, tw.Exits())
	assert.InDelta(t, 1.0, tw.Value(), 1e-9, "exit observes the clamped final percent")
}

func TestTriggerFiresCallbackAndListener(t *testing.T) {
	cbs := timeline.NewCallbacks()
	calls := 0
	cbs.Register("chime", func() { calls++ })

	tr := NewTrigger("bell", 0.5, timeline.Increase, "chime", cbs)
	var heard []float64
	tr.OnFire(func(_ *Trigger, p float64) { heard = append(heard, p) })

	tr.OnEntry()
	for _, p := range []float64{0.1, 0.4, 0.6, 0.9} {
		assert.True(t, tr.SetPercent(p))
	}
	assert.Equal(t, 1, tr.Fired())
	assert.Equal(t, 1, calls)
	assert.Equal(t, []float64{0.6}, heard)
}

func TestTriggerReentryRearms(t *testing.T) {
	tr := NewTrigger("bell", 0.5, timeline.Increase, "", nil)
	tr.OnEntry()
	tr.SetPercent(0.2)
	tr.SetPercent(0.8)
	require.Equal(t, 1, tr.Fired())

	tr.OnExit()
	tr.OnEntry()
	tr.SetPercent(0.9)
	assert.Equal(t, 1, tr.Fired(), "first sample after entry never fires")
	tr.SetPercent(0.1)
	tr.SetPercent(0.7)
	assert.Equal(t, 2, tr.Fired())
}

func TestTriggerDisarm(t *testing.T) {
	tr := NewTrigger("bell", 0.5, timeline.Both, "", nil)
	tr.OnEntry()
	tr.SetPercent(0.2)
	tr.Disarm()
	tr.SetPercent(0.8)
	assert.Zero(t, tr.Fired())

	tr.Arm()
	tr.SetPercent(0.3)
	assert.Equal(t, 1, tr.Fired())
	assert.False(t, tr.SetTime(1))
}

func TestTriggerDrivenByPlayer(t *testing.T) {
	tr := NewTrigger("bell", 0.5, timeline.Increase, "", nil)
	c := timeline.NewWorkClipContainer("root", timeline.NewWorkClip(tr, 0, 4))
	p := timeline.NewPlayer(c, timeline.PlayerOptions{Duration: 4, AutoPlay: true})
	p.Enter()

	for i := 0; i < 8; i++ {
		p.Tick(0.5)
	}
	assert.Equal(t, timeline.StateFinished, p.State())
	assert.Equal(t, 1, tr.Fired())
}

func TestHold(t *testing.T) {
	h := NewHold("wait", 4)
	h.SetTime(1)
	assert.InDelta(t, 0.25, h.Percent(), 1e-9)
	h.SetPercent(-3)
	assert.Equal(t, 0.0, h.Percent())
	assert.Equal(t, "wait", h.Name())
	assert.Equal(t, "wait", timeline.NameOf(h))
}
