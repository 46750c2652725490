// Package effects holds leaf states for the timeline kernel: eased value
// tweens, one-shot triggers and plain spacers.
//
// Like the kernel, an effect is driven by a single goroutine at a time.
package effects

import (
	"math"

	"github.com/ChuLiYu/workclip/internal/timeline"
)

func clamp01(x float64) float64 {
	switch {
	case math.IsNaN(x), x < 0:
		return 0
	case x > 1:
		return 1
	}
	return x
}

// lifecycle counts entries and exits and remembers the last percent.
type lifecycle struct {
	name    string
	entries int
	exits   int
	active  bool
	percent float64
}

func (l *lifecycle) Name() string     { return l.name }
func (l *lifecycle) Entries() int     { return l.entries }
func (l *lifecycle) Exits() int       { return l.exits }
func (l *lifecycle) Active() bool     { return l.active }
func (l *lifecycle) Percent() float64 { return l.percent }

func (l *lifecycle) enter() { l.entries++; l.active = true }
func (l *lifecycle) exit()  { l.exits++; l.active = false }

// Tween interpolates From..To along Ease over one playthrough.
type Tween struct {
	lifecycle
	From     float64
	To       float64
	Ease     Ease
	Duration float64

	value float64
}

var _ timeline.PlayableState = (*Tween)(nil)

// NewTween returns a tween resting at from.
func NewTween(name string, from, to, duration float64, ease Ease) *Tween {
	if ease == nil {
		ease = eases["linear"]
	}
	return &Tween{
		lifecycle: lifecycle{name: name},
		From:      from,
		To:        to,
		Ease:      ease,
		Duration:  duration,
		value:     from,
	}
}

func (t *Tween) OnceTimeLength() float64 { return t.Duration }
func (t *Tween) OnEntry()                { t.enter() }
func (t *Tween) OnExit()                 { t.exit() }

// Value is the eased value at the last applied percent.
func (t *Tween) Value() float64 { return t.value }

func (t *Tween) SetPercent(percent float64) bool {
	p := clamp01(percent)
	t.percent = p
	t.value = t.From + (t.To-t.From)*t.Ease(p)
	return true
}

func (t *Tween) SetTime(seconds float64) bool {
	if t.Duration <= 0 {
		return t.SetPercent(1)
	}
	return t.SetPercent(seconds / t.Duration)
}

// FireFunc observes a trigger firing at percent.
type FireFunc func(t *Trigger, percent float64)

// Trigger fires once per crossing of its threshold while active. Entering
// re-arms the detector so the first sample after entry never fires.
type Trigger struct {
	lifecycle
	point     *timeline.TriggerPoint
	callback  string
	callbacks *timeline.Callbacks
	onFire    FireFunc
	fired     int
}

var _ timeline.PlayableState = (*Trigger)(nil)

// NewTrigger returns an armed trigger at threshold. callback, when not
// empty, is invoked through callbacks on every fire.
func NewTrigger(name string, threshold float64, dir timeline.Direction, callback string, callbacks *timeline.Callbacks) *Trigger {
	return &Trigger{
		lifecycle: lifecycle{name: name},
		point:     timeline.NewTriggerPoint(threshold, dir),
		callback:  callback,
		callbacks: callbacks,
	}
}

// OnFire sets the listener called after each fire. Nil clears it.
func (t *Trigger) OnFire(fn FireFunc) { t.onFire = fn }

func (t *Trigger) Point() *timeline.TriggerPoint { return t.point }
func (t *Trigger) Callback() string              { return t.callback }
func (t *Trigger) Fired() int                    { return t.fired }

// Arm and Disarm toggle firing. The detector keeps tracking samples while
// disarmed.
func (t *Trigger) Arm()    { t.point.SetValid(true) }
func (t *Trigger) Disarm() { t.point.SetValid(false) }

func (t *Trigger) OnceTimeLength() float64 { return 0 }

func (t *Trigger) OnEntry() {
	t.enter()
	t.point.Reset()
}

func (t *Trigger) OnExit() { t.exit() }

func (t *Trigger) SetPercent(percent float64) bool {
	t.percent = percent
	if !t.point.SetPercent(percent) {
		return true
	}
	t.fired++
	t.callbacks.Invoke(t.callback)
	if t.onFire != nil {
		t.onFire(t, percent)
	}
	return true
}

// SetTime has no time base to convert from; a trigger only follows percents.
func (t *Trigger) SetTime(float64) bool { return false }

// Hold occupies time and does nothing else.
type Hold struct {
	lifecycle
	Duration float64
}

var _ timeline.PlayableState = (*Hold)(nil)

func NewHold(name string, duration float64) *Hold {
	return &Hold{lifecycle: lifecycle{name: name}, Duration: duration}
}

func (h *Hold) OnceTimeLength() float64 { return h.Duration }
func (h *Hold) OnEntry()                { h.enter() }
func (h *Hold) OnExit()                 { h.exit() }

func (h *Hold) SetPercent(percent float64) bool {
	h.percent = clamp01(percent)
	return true
}

func (h *Hold) SetTime(seconds float64) bool {
	if h.Duration <= 0 {
		return h.SetPercent(1)
	}
	return h.SetPercent(seconds / h.Duration)
}
