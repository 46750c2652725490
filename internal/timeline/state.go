// Package timeline is the sequencing kernel: nested, speed-scaled, loopable
// work clips driven by a single percent, a ticking player that owns elapsed
// time, and hysteresis-safe trigger points.
//
// Everything in this package is single-threaded. A player, its content tree
// and its trigger points must be driven by one goroutine at a time.
package timeline

import "fmt"

// PlayableState is anything a WorkClip can drive.
//
// OnEntry and OnExit are called at most once per activation. Implementations
// may call SetPercent from inside them. A false return from SetPercent or
// SetTime means the state could not apply the value right now; callers do
// not treat it as fatal.
type PlayableState interface {
	// OnceTimeLength is the duration in seconds of one non-looped playthrough.
	OnceTimeLength() float64
	OnEntry()
	OnExit()
	SetPercent(percent float64) bool
	SetTime(seconds float64) bool
}

// HookResult is the outcome of a content lifecycle hook.
type HookResult int

const (
	HookFinished HookResult = iota
	HookAborted
)

func (r HookResult) String() string {
	if r == HookFinished {
		return "finished"
	}
	return "aborted"
}

// PlayableContent is what a Player drives.
type PlayableContent interface {
	OnLoad() HookResult
	OnUnload() HookResult
	OnPlay() HookResult
	OnPause() HookResult
	OnResume() HookResult
	OnStop() HookResult
	PlayContent(percent float64) bool
}

// Resolver is implemented by states that contain other states. WorkClip
// recurses through it when mapping percents to leaves and back.
type Resolver interface {
	// PercentToStates adds every leaf active at percent, with the leaf's
	// own local percent, to out.
	PercentToStates(percent float64, out *StateSet)
	// StateToPercent returns the percent at which target is entered.
	StateToPercent(target PlayableState) (float64, bool)
}

// Named is optionally implemented by states that carry a display name.
type Named interface {
	Name() string
}

// NameOf returns the state's name, or its type when it has none.
func NameOf(s PlayableState) string {
	if s == nil {
		return "<nil>"
	}
	if n, ok := s.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", s)
}
