package timeline

import (
	"errors"
	"fmt"
	"math"
)

// rangeTolerance is how far a clip's percent footprint may drift from
// time/total before Validity reports a mismatch.
const rangeTolerance = 1e-6

// WorkClip binds one PlayableState to a footprint in its parent timeline.
//
// Speed and loop count are two views of one ratio:
//
//	loopCount = speed * timeLength / onceTimeLength
//
// Setting either recomputes the other; the time footprint stays put.
type WorkClip struct {
	state PlayableState
	rng   WorkRange
	speed float64
	valid bool

	owner *WorkClipContainer
}

// NewWorkClip creates a clip occupying [begin, begin+length] seconds of
// its parent, played at speed 1. The percent footprint is computed when the
// clip is laid out by its container (or explicitly with Layout).
func NewWorkClip(state PlayableState, begin, length float64) *WorkClip {
	if length < 0 {
		length = 0
	}
	return &WorkClip{
		state: state,
		rng:   WorkRange{Time: TimeRange{Begin: begin, End: begin + length}},
		speed: 1,
		valid: true,
	}
}

// State returns the bound state.
func (c *WorkClip) State() PlayableState { return c.state }

// Range returns a copy of the clip's footprint.
func (c *WorkClip) Range() WorkRange { return c.rng }

// Speed returns the playback speed multiplier.
func (c *WorkClip) Speed() float64 { return c.speed }

// TimeLength returns the footprint length in parent seconds.
func (c *WorkClip) TimeLength() float64 { return c.rng.Time.Length() }

// Layout recomputes the percent footprint against the parent's total
// length.
func (c *WorkClip) Layout(parentTotal float64) {
	c.rng.relayout(parentTotal)
}

// SetTimeLength resizes the clip and re-lays it out against parentTotal.
// The owning container, if any, recomputes its own length lazily.
func (c *WorkClip) SetTimeLength(length, parentTotal float64) {
	c.rng.SetTimeLength(length, parentTotal)
	c.touch()
}

// SetBeginTime moves the clip inside its parent.
func (c *WorkClip) SetBeginTime(begin, parentTotal float64) {
	c.rng.SetBeginTime(begin, parentTotal)
	c.touch()
}

func (c *WorkClip) touch() {
	if c.owner != nil {
		c.owner.Invalidate()
	}
}

// SetSpeed sets the speed multiplier. Negative values clamp to 0, which
// freezes the bound state at its start.
func (c *WorkClip) SetSpeed(speed float64) {
	if speed < 0 || math.IsNaN(speed) {
		speed = 0
	}
	c.speed = speed
}

// LoopCount returns how many playthroughs of the bound state fit in the
// footprint. A state with no intrinsic duration plays exactly once across
// the footprint.
func (c *WorkClip) LoopCount() float64 {
	if c.speed <= 0 {
		return 0
	}
	once := c.onceTimeLength()
	if nearlyZero(once) {
		return 1
	}
	return c.speed * c.TimeLength() / once
}

// SetLoopCount sets the number of playthroughs, recomputing speed.
func (c *WorkClip) SetLoopCount(loops float64) {
	if loops <= 0 || math.IsNaN(loops) {
		c.speed = 0
		return
	}
	once := c.onceTimeLength()
	if nearlyZero(once) {
		return
	}
	c.speed = safeDiv(loops*once, c.TimeLength())
}

// OnceTimeLengthWithSpeed is the wall duration of one playthrough at the
// clip's speed, or 0 when the speed is 0.
func (c *WorkClip) OnceTimeLengthWithSpeed() float64 {
	if c.speed <= 0 {
		return 0
	}
	return c.onceTimeLength() / c.speed
}

func (c *WorkClip) onceTimeLength() float64 {
	if c.state == nil {
		return 0
	}
	return c.state.OnceTimeLength()
}

// SetValid marks the clip usable or unusable for playback.
func (c *WorkClip) SetValid(valid bool) { c.valid = valid }

// IsValid reports whether the clip can be driven: it is marked valid, has
// a bound state and a non-empty percent footprint.
func (c *WorkClip) IsValid() bool {
	return c.valid && c.state != nil && !c.rng.Percent.empty()
}

// Contains reports whether globalPercent falls inside the clip's footprint.
func (c *WorkClip) Contains(globalPercent float64) bool {
	return c.rng.Percent.Contains(globalPercent)
}

// LocalPercent maps a parent percent to the bound state's own percent,
// folding repeated playthroughs into [0,1].
func (c *WorkClip) LocalPercent(globalPercent float64) float64 {
	raw := c.rng.Percent.Normalize(globalPercent) * c.LoopCount()
	return wrapLoop(raw)
}

// globalPercent maps a local percent in the first playthrough back to the
// parent's percent. It fails when the clip ends before reaching local,
// i.e. a partly played state (loop count below 1) whose local percent lies
// past the played fraction.
func (c *WorkClip) globalPercent(local float64) (float64, bool) {
	loops := c.LoopCount()
	if loops <= 0 {
		return c.rng.Percent.Begin, local <= epsilon
	}
	if local > loops+epsilon {
		return 0, false
	}
	return c.rng.Percent.Clamp(c.rng.Percent.Begin + (local/loops)*c.rng.Percent.Length()), true
}

// SetPercent drives the bound state with the local percent for
// globalPercent. It returns false when the clip is invalid or the state
// rejects the value.
func (c *WorkClip) SetPercent(globalPercent float64) bool {
	if !c.IsValid() {
		return false
	}
	return c.state.SetPercent(c.LocalPercent(globalPercent))
}

// SetTime drives the clip with a time in parent seconds.
func (c *WorkClip) SetTime(parentSeconds float64) bool {
	return c.SetTimeOfState(parentSeconds - c.rng.Time.Begin)
}

// SetTimeOfState drives the clip with seconds elapsed since the clip was
// entered.
func (c *WorkClip) SetTimeOfState(seconds float64) bool {
	if !c.IsValid() {
		return false
	}
	var raw float64
	if once := c.onceTimeLength(); nearlyZero(once) {
		raw = safeDiv(seconds, c.TimeLength())
	} else {
		raw = seconds * c.speed / once
	}
	return c.state.SetPercent(wrapLoop(raw))
}

// OnEntrySetPercent enters the bound state and then applies the percent,
// so the state's enter hook never runs without a valid starting percent.
func (c *WorkClip) OnEntrySetPercent(globalPercent float64) bool {
	if !c.IsValid() {
		return false
	}
	c.state.OnEntry()
	return c.SetPercent(globalPercent)
}

// OnExitSetPercent applies the final percent and then exits the state.
func (c *WorkClip) OnExitSetPercent(globalPercent float64) bool {
	ok := c.SetPercent(globalPercent)
	if c.state != nil {
		c.state.OnExit()
	}
	return ok
}

// PercentToStates adds the leaves active at globalPercent to out. A bound
// container is resolved recursively using the clip's local percent.
func (c *WorkClip) PercentToStates(globalPercent float64, out *StateSet) {
	if !c.IsValid() || !c.Contains(globalPercent) {
		return
	}
	local := c.LocalPercent(globalPercent)
	if r, ok := c.state.(Resolver); ok {
		r.PercentToStates(local, out)
		return
	}
	out.Add(c.state, local)
}

// StateToPercent returns the parent percent at which target is entered
// through this clip: the clip's begin when target is the bound state, or
// the mapped entry percent when target lives inside a bound container.
func (c *WorkClip) StateToPercent(target PlayableState) (float64, bool) {
	if target == nil || !c.IsValid() {
		return 0, false
	}
	if c.state == target {
		return c.rng.Percent.Begin, true
	}
	r, ok := c.state.(Resolver)
	if !ok {
		return 0, false
	}
	local, ok := r.StateToPercent(target)
	if !ok {
		return 0, false
	}
	return c.globalPercent(local)
}

// Validity checks the clip against the parent's expected total length.
// All findings are joined into one error; nil means the clip is sound.
func (c *WorkClip) Validity(expectedTotalLength float64) error {
	var errs []error
	name := NameOf(c.state)
	if c.state == nil {
		errs = append(errs, ErrMissingState)
	}
	if c.TimeLength() <= 0 || c.rng.Percent.empty() {
		errs = append(errs, fmt.Errorf("%w: time=[%g,%g] percent=[%g,%g]", ErrEmptyRange,
			c.rng.Time.Begin, c.rng.Time.End, c.rng.Percent.Begin, c.rng.Percent.End))
	}
	if c.speed <= 0 {
		errs = append(errs, fmt.Errorf("%w: got %g", ErrInvalidSpeed, c.speed))
	}
	wantBegin := safeDiv(c.rng.Time.Begin, expectedTotalLength)
	wantEnd := safeDiv(c.rng.Time.End, expectedTotalLength)
	if math.Abs(wantBegin-c.rng.Percent.Begin) > rangeTolerance || math.Abs(wantEnd-c.rng.Percent.End) > rangeTolerance {
		errs = append(errs, fmt.Errorf("%w: percent=[%g,%g], want [%g,%g] for total %g", ErrRangeMismatch,
			c.rng.Percent.Begin, c.rng.Percent.End, wantBegin, wantEnd, expectedTotalLength))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("clip %q: %w", name, errors.Join(errs...))
}
