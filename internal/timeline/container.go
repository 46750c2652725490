package timeline

import (
	"errors"
	"fmt"
)

// WorkClipContainer is an ordered set of sibling clips. It is itself a
// PlayableState (so containers nest) and a PlayableContent (so a Player can
// drive it).
//
// Insertion order is evaluation order and breaks ties between clips that
// are active at the same percent.
type WorkClipContainer struct {
	name  string
	clips []*WorkClip

	length float64
	dirty  bool

	lastDirect  []*WorkClip
	lastLeaves  *StateSet
	lastPercent float64

	observers *Observers
}

// NewWorkClipContainer creates a container holding clips in the given
// order.
func NewWorkClipContainer(name string, clips ...*WorkClip) *WorkClipContainer {
	c := &WorkClipContainer{
		name:       name,
		lastLeaves: NewStateSet(),
		dirty:      true,
	}
	for _, clip := range clips {
		c.Add(clip)
	}
	return c
}

// Name returns the container's display name.
func (c *WorkClipContainer) Name() string { return c.name }

// SetObservers attaches the list that receives active-set changes.
func (c *WorkClipContainer) SetObservers(o *Observers) { c.observers = o }

// Add appends clip and invalidates the cached length.
func (c *WorkClipContainer) Add(clip *WorkClip) {
	if clip == nil {
		return
	}
	clip.owner = c
	c.clips = append(c.clips, clip)
	c.dirty = true
}

// Remove drops clip, exiting its state first if it is active.
func (c *WorkClipContainer) Remove(clip *WorkClip) bool {
	for i, cl := range c.clips {
		if cl != clip {
			continue
		}
		if idx := indexOfClip(c.lastDirect, clip); idx >= 0 {
			clip.OnExitSetPercent(clip.rng.Percent.Clamp(c.lastPercent))
			c.lastDirect = append(c.lastDirect[:idx:idx], c.lastDirect[idx+1:]...)
		}
		c.clips = append(c.clips[:i:i], c.clips[i+1:]...)
		clip.owner = nil
		c.dirty = true
		return true
	}
	return false
}

// Clips returns the clips in insertion order.
func (c *WorkClipContainer) Clips() []*WorkClip {
	out := make([]*WorkClip, len(c.clips))
	copy(out, c.clips)
	return out
}

// Invalidate marks the cached length stale. It is called automatically
// when a clip is added, removed, moved or resized.
func (c *WorkClipContainer) Invalidate() { c.dirty = true }

// Refresh recomputes the container length and lays every clip out
// against it.
func (c *WorkClipContainer) Refresh() {
	length := 0.0
	for _, clip := range c.clips {
		if end := clip.rng.Time.End; end > length {
			length = end
		}
	}
	c.length = length
	for _, clip := range c.clips {
		clip.Layout(length)
	}
	c.dirty = false
}

// GetTimeLength returns the maximum clip end time.
func (c *WorkClipContainer) GetTimeLength() float64 {
	if c.dirty {
		c.Refresh()
	}
	return c.length
}

// Percent returns the last percent applied.
func (c *WorkClipContainer) Percent() float64 { return c.lastPercent }

// ActiveStates returns the leaves active after the last SetPercent.
func (c *WorkClipContainer) ActiveStates() []PlayableState {
	return c.lastLeaves.States()
}

// SetPercent drives every clip whose footprint contains percent.
//
// Clips that stopped containing percent are exited first, with the
// percent clamped into their footprint so they observe their final value.
// Clips that stay active are updated next and newly active clips are
// entered last. Leaf-set changes are broadcast once, after all clips have
// been evaluated. SetPercent returns false only when the container is
// empty or every clip that should have played failed.
func (c *WorkClipContainer) SetPercent(percent float64) bool {
	if c.dirty {
		c.Refresh()
	}
	if len(c.clips) == 0 {
		return false
	}

	attempted, succeeded := 0, 0
	var direct []*WorkClip
	for _, clip := range c.clips {
		if !clip.Contains(percent) {
			continue
		}
		attempted++
		if clip.IsValid() {
			direct = append(direct, clip)
		}
	}

	for _, clip := range c.lastDirect {
		if indexOfClip(direct, clip) < 0 {
			clip.OnExitSetPercent(clip.rng.Percent.Clamp(percent))
		}
	}
	var entering []*WorkClip
	for _, clip := range direct {
		if indexOfClip(c.lastDirect, clip) < 0 {
			entering = append(entering, clip)
			continue
		}
		if clip.SetPercent(percent) {
			succeeded++
		}
	}
	for _, clip := range entering {
		if clip.OnEntrySetPercent(percent) {
			succeeded++
		}
	}
	c.lastDirect = direct
	c.lastPercent = percent

	leaves := NewStateSet()
	c.PercentToStates(percent, leaves)
	c.publish(leaves, percent)

	return attempted == 0 || succeeded > 0
}

func (c *WorkClipContainer) publish(leaves *StateSet, percent float64) {
	if leaves.SameMembers(c.lastLeaves) {
		c.lastLeaves = leaves
		return
	}
	old := c.lastLeaves.States()
	c.lastLeaves = leaves
	c.observers.contentElementChanged(c, old, leaves.States(), percent)
}

// SetTime drives the container with seconds since its start.
func (c *WorkClipContainer) SetTime(seconds float64) bool {
	return c.SetPercent(safeDiv(seconds, c.GetTimeLength()))
}

// OnceTimeLength makes a container usable as a nested state.
func (c *WorkClipContainer) OnceTimeLength() float64 { return c.GetTimeLength() }

// OnEntry is a no-op: children are entered by the first SetPercent.
func (c *WorkClipContainer) OnEntry() {}

// OnExit exits every active child at its last observed percent.
func (c *WorkClipContainer) OnExit() {
	for _, clip := range c.lastDirect {
		clip.OnExitSetPercent(clip.rng.Percent.Clamp(c.lastPercent))
	}
	c.lastDirect = nil
	c.publish(NewStateSet(), c.lastPercent)
}

// PercentToStates adds every leaf active at percent to out.
func (c *WorkClipContainer) PercentToStates(percent float64, out *StateSet) {
	if c.dirty {
		c.Refresh()
	}
	for _, clip := range c.clips {
		clip.PercentToStates(percent, out)
	}
}

// StateToPercent returns the percent at which target is first entered,
// searching clips in insertion order.
func (c *WorkClipContainer) StateToPercent(target PlayableState) (float64, bool) {
	if c.dirty {
		c.Refresh()
	}
	for _, clip := range c.clips {
		if p, ok := clip.StateToPercent(target); ok {
			return p, true
		}
	}
	return 0, false
}

// ResolveElements returns the highest percent any of targets resolves
// to. Only the percent is reported, so the order of targets never changes
// the result.
func (c *WorkClipContainer) ResolveElements(targets ...PlayableState) (float64, bool) {
	best, found := 0.0, false
	for _, t := range targets {
		p, ok := c.StateToPercent(t)
		if !ok {
			continue
		}
		if !found || p >= best {
			best, found = p, true
		}
	}
	return best, found
}

// PlayContentElements jumps the container to the highest percent any of
// targets resolves to. It does nothing when none resolve.
func (c *WorkClipContainer) PlayContentElements(targets ...PlayableState) bool {
	p, ok := c.ResolveElements(targets...)
	if !ok {
		return false
	}
	return c.SetPercent(p)
}

// CurrentElement returns the most recently started active clip's state:
// the one with the highest footprint begin, later clips winning ties.
func (c *WorkClipContainer) CurrentElement() (PlayableState, bool) {
	var best *WorkClip
	for _, clip := range c.lastDirect {
		if best == nil || clip.rng.Percent.Begin >= best.rng.Percent.Begin {
			best = clip
		}
	}
	if best == nil {
		return nil, false
	}
	return best.state, true
}

// Validity checks every clip, and every nested container, against the
// layout the container would compute. A container with no clips is
// reported as an empty range.
func (c *WorkClipContainer) Validity() error {
	total := c.GetTimeLength()
	var errs []error
	if len(c.clips) == 0 || total <= 0 {
		errs = append(errs, fmt.Errorf("%w: container has no playable length", ErrEmptyRange))
	}
	for _, clip := range c.clips {
		if err := clip.Validity(total); err != nil {
			errs = append(errs, err)
		}
		if nested, ok := clip.state.(*WorkClipContainer); ok {
			if err := nested.Validity(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("container %q: %w", c.name, errors.Join(errs...))
}

// OnLoad resets the active sets.
func (c *WorkClipContainer) OnLoad() HookResult {
	c.lastDirect = nil
	c.lastLeaves = NewStateSet()
	c.lastPercent = 0
	if c.dirty {
		c.Refresh()
	}
	return HookFinished
}

// OnUnload exits every active child.
func (c *WorkClipContainer) OnUnload() HookResult {
	c.OnExit()
	return HookFinished
}

func (c *WorkClipContainer) OnPlay() HookResult   { return HookFinished }
func (c *WorkClipContainer) OnPause() HookResult  { return HookFinished }
func (c *WorkClipContainer) OnResume() HookResult { return HookFinished }
func (c *WorkClipContainer) OnStop() HookResult   { return HookFinished }

// PlayContent applies percent, as SetPercent.
func (c *WorkClipContainer) PlayContent(percent float64) bool {
	return c.SetPercent(percent)
}

func indexOfClip(clips []*WorkClip, clip *WorkClip) int {
	for i, c := range clips {
		if c == clip {
			return i
		}
	}
	return -1
}
