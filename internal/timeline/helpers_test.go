package timeline

import "fmt"

// fakeState records every call made to it.
type fakeState struct {
	name     string
	once     float64
	reject   bool
	percents []float64
	events   []string
}

func newFake(name string, once float64) *fakeState {
	return &fakeState{name: name, once: once}
}

func (f *fakeState) Name() string            { return f.name }
func (f *fakeState) OnceTimeLength() float64 { return f.once }
func (f *fakeState) OnEntry()                { f.events = append(f.events, "enter") }
func (f *fakeState) OnExit()                 { f.events = append(f.events, "exit") }

func (f *fakeState) SetPercent(p float64) bool {
	if f.reject {
		return false
	}
	f.percents = append(f.percents, p)
	f.events = append(f.events, fmt.Sprintf("set:%.3f", p))
	return true
}

func (f *fakeState) SetTime(seconds float64) bool {
	return f.SetPercent(safeDiv(seconds, f.once))
}

func (f *fakeState) lastPercent() float64 {
	if len(f.percents) == 0 {
		return -1
	}
	return f.percents[len(f.percents)-1]
}

func (f *fakeState) count(event string) int {
	n := 0
	for _, e := range f.events {
		if e == event {
			n++
		}
	}
	return n
}

// fakeContent is PlayableContent that records pushed percents.
type fakeContent struct {
	percents []float64
	hooks    []string
	accept   bool
}

func newContent() *fakeContent { return &fakeContent{accept: true} }

func (c *fakeContent) OnLoad() HookResult   { c.hooks = append(c.hooks, "load"); return HookFinished }
func (c *fakeContent) OnUnload() HookResult { c.hooks = append(c.hooks, "unload"); return HookFinished }
func (c *fakeContent) OnPlay() HookResult   { c.hooks = append(c.hooks, "play"); return HookFinished }
func (c *fakeContent) OnPause() HookResult  { c.hooks = append(c.hooks, "pause"); return HookFinished }
func (c *fakeContent) OnResume() HookResult { c.hooks = append(c.hooks, "resume"); return HookFinished }
func (c *fakeContent) OnStop() HookResult   { c.hooks = append(c.hooks, "stop"); return HookFinished }

func (c *fakeContent) PlayContent(p float64) bool {
	c.percents = append(c.percents, p)
	return c.accept
}
