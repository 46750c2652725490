package timeline

import (
	"fmt"
	"math"
)

// PlayerState is the lifecycle state of a Player.
type PlayerState int

const (
	StateInit PlayerState = iota
	StateFree
	StatePlay
	StatePlaying
	StatePause
	StateFinished
	StateStop
)

var playerStateNames = [...]string{
	StateInit:     "INIT",
	StateFree:     "FREE",
	StatePlay:     "PLAY",
	StatePlaying:  "PLAYING",
	StatePause:    "PAUSE",
	StateFinished: "FINISHED",
	StateStop:     "STOP",
}

func (s PlayerState) String() string {
	if s < 0 || int(s) >= len(playerStateNames) {
		return fmt.Sprintf("PlayerState(%d)", int(s))
	}
	return playerStateNames[s]
}

// ParsePlayerState is the inverse of String.
func ParsePlayerState(s string) (PlayerState, error) {
	for i, name := range playerStateNames {
		if name == s {
			return PlayerState(i), nil
		}
	}
	return StateInit, fmt.Errorf("unknown player state %q", s)
}

// PlayerOptions configures a Player.
type PlayerOptions struct {
	Name string
	// Duration in seconds. Zero or negative makes the first tick finish.
	Duration float64
	// Speed multiplies every tick delta. Zero means 1.
	Speed float64
	Loop  bool
	// AutoPlay starts playback from Enter.
	AutoPlay bool
	// FinishCallback names a callback in Callbacks invoked on each finish.
	FinishCallback string
	// SetPercentOnExit forces content to ExitPercent after Exit stops it.
	SetPercentOnExit bool
	ExitPercent      float64

	Callbacks *Callbacks
	Observers *Observers
}

// Player owns elapsed time, converts it to a percent and pushes that
// percent into its content once per tick.
type Player struct {
	name     string
	content  PlayableContent
	duration float64
	speed    float64
	loop     bool
	autoPlay bool

	finishCallback   string
	setPercentOnExit bool
	exitPercent      float64

	elapsed      float64
	percent      float64
	state        PlayerState
	beforeFinish PlayerState
	contentOK    bool

	callbacks *Callbacks
	observers *Observers
}

// NewPlayer creates a player in StateInit. Call Enter before driving it.
func NewPlayer(content PlayableContent, opts PlayerOptions) *Player {
	speed := opts.Speed
	if speed == 0 {
		speed = 1
	}
	return &Player{
		name:             opts.Name,
		content:          content,
		duration:         opts.Duration,
		speed:            speed,
		loop:             opts.Loop,
		autoPlay:         opts.AutoPlay,
		finishCallback:   opts.FinishCallback,
		setPercentOnExit: opts.SetPercentOnExit,
		exitPercent:      clamp01(opts.ExitPercent),
		state:            StateInit,
		beforeFinish:     StateFree,
		callbacks:        opts.Callbacks,
		observers:        opts.Observers,
	}
}

func (p *Player) Name() string             { return p.name }
func (p *Player) State() PlayerState       { return p.state }
func (p *Player) Elapsed() float64         { return p.elapsed }
func (p *Player) Percent() float64         { return p.percent }
func (p *Player) Duration() float64        { return p.duration }
func (p *Player) Speed() float64           { return p.speed }
func (p *Player) Loop() bool               { return p.loop }
func (p *Player) Content() PlayableContent { return p.content }

// ContentOK reports whether the last percent push was accepted by content.
func (p *Player) ContentOK() bool { return p.contentOK }

// SetSpeed changes the tick multiplier. Negative speeds rewind.
func (p *Player) SetSpeed(speed float64) { p.speed = speed }

// SetLoop toggles looping.
func (p *Player) SetLoop(loop bool) { p.loop = loop }

// SetDuration changes the duration, keeping elapsed time.
func (p *Player) SetDuration(seconds float64) { p.duration = seconds }

// SetObservers replaces the observer list.
func (p *Player) SetObservers(o *Observers) { p.observers = o }

// SetContent swaps content. An entered player unloads the old content and
// loads the new one at the current percent.
func (p *Player) SetContent(content PlayableContent) {
	if p.state != StateInit && p.content != nil {
		p.content.OnUnload()
	}
	p.content = content
	if p.state != StateInit && content != nil {
		content.OnLoad()
		p.push()
	}
}

// Enter resets the player and loads content. It starts playback when
// AutoPlay is set.
func (p *Player) Enter() {
	p.elapsed, p.percent = 0, 0
	p.beforeFinish = StateFree
	if p.content != nil {
		p.content.OnLoad()
	}
	p.setState(StateFree)
	if p.autoPlay {
		p.Play()
	}
}

// Exit stops playback, optionally forces the exit percent and unloads
// content. The player returns to StateInit.
func (p *Player) Exit() {
	p.Stop()
	if p.setPercentOnExit {
		p.percent = p.exitPercent
		p.elapsed = p.exitPercent * p.duration
		p.push()
	}
	if p.content != nil {
		p.content.OnUnload()
	}
	p.setState(StateInit)
}

// Play starts playback. A finished or fully played player restarts from 0.
func (p *Player) Play() HookResult {
	if p.state == StateInit {
		return HookAborted
	}
	switch p.state {
	case StateFree, StateStop, StateFinished:
		if p.percent >= 1 {
			p.elapsed, p.percent = 0, 0
		}
	}
	p.beforeFinish = StateFree
	p.setState(StatePlay)
	return p.hook(PlayableContent.OnPlay)
}

// Replay restarts playback from 0.
func (p *Player) Replay() HookResult {
	if p.state == StateInit {
		return HookAborted
	}
	p.elapsed, p.percent = 0, 0
	p.push()
	return p.Play()
}

// Pause succeeds only while playing.
func (p *Player) Pause() bool {
	if p.state != StatePlaying {
		return false
	}
	p.setState(StatePause)
	p.hook(PlayableContent.OnPause)
	return true
}

// Resume continues a paused player, or restarts a finished looping one.
func (p *Player) Resume() bool {
	switch {
	case p.state == StatePause:
		p.setState(StatePlaying)
		p.hook(PlayableContent.OnResume)
		return true
	case p.state == StateFinished && p.loop:
		return p.Replay() == HookFinished
	}
	return false
}

// Stop halts playback. It is safe from any state and idempotent.
func (p *Player) Stop() {
	switch p.state {
	case StateInit, StateFree, StateStop, StateFinished:
		return
	}
	p.setState(StateStop)
	p.hook(PlayableContent.OnStop)
}

// Tick advances the player by dt seconds of wall time.
func (p *Player) Tick(dt float64) {
	switch p.state {
	case StatePlay:
		p.setState(StatePlaying)
		p.advance(dt)
	case StatePlaying:
		p.advance(dt)
	case StateFinished:
		if p.loop && p.beforeFinish == StatePlaying {
			p.Replay()
			return
		}
		p.setState(StateFree)
	case StateStop:
		p.setState(StateFree)
	}
}

// Seek jumps to percent without changing the lifecycle state, except that
// reaching 1 while playing or paused finishes the run.
func (p *Player) Seek(percent float64) bool {
	if p.state == StateInit {
		return false
	}
	percent = clamp01(percent)
	p.elapsed = percent * p.duration
	p.percent = percent
	p.applyPercent()
	return true
}

// Restore puts an entered player back at elapsed seconds, as after a
// restart. It plays when playing is set and the position is not at the
// end; otherwise it rests in StateFree.
func (p *Player) Restore(elapsed float64, playing bool) bool {
	if p.state == StateInit {
		return false
	}
	switch {
	case elapsed < 0 || math.IsNaN(elapsed):
		elapsed = 0
	case p.duration > 0 && elapsed > p.duration:
		elapsed = p.duration
	}
	p.elapsed = elapsed
	if p.duration <= 0 {
		p.percent = 1
	} else {
		p.percent = clamp01(elapsed / p.duration)
	}
	p.beforeFinish = StateFree
	p.push()

	if playing && p.percent < 1 {
		if p.state != StatePlay && p.state != StatePlaying {
			p.setState(StatePlay)
			p.hook(PlayableContent.OnPlay)
		}
		return true
	}
	switch p.state {
	case StatePlay, StatePlaying, StatePause:
		p.hook(PlayableContent.OnStop)
	}
	p.setState(StateFree)
	return true
}

// PlayContentElements seeks to the highest percent any target resolves
// to inside the content. Content that cannot resolve states is a no-op.
func (p *Player) PlayContentElements(targets ...PlayableState) bool {
	if p.state == StateInit {
		return false
	}
	var (
		pct float64
		ok  bool
	)
	switch c := p.content.(type) {
	case *WorkClipContainer:
		pct, ok = c.ResolveElements(targets...)
	case Resolver:
		for _, t := range targets {
			if v, found := c.StateToPercent(t); found && (!ok || v >= pct) {
				pct, ok = v, true
			}
		}
	}
	if !ok {
		return false
	}
	return p.Seek(pct)
}

// Status is a value copy of a player's observable fields.
type Status struct {
	Name     string
	State    PlayerState
	Elapsed  float64
	Duration float64
	Percent  float64
	Speed    float64
	Loop     bool
	// Active lists the names of the leaves the content last resolved,
	// when the content is a WorkClipContainer.
	Active []string
}

// Status returns a snapshot of the player.
func (p *Player) Status() Status {
	st := Status{
		Name:     p.name,
		State:    p.state,
		Elapsed:  p.elapsed,
		Duration: p.duration,
		Percent:  p.percent,
		Speed:    p.speed,
		Loop:     p.loop,
	}
	if c, ok := p.content.(*WorkClipContainer); ok {
		for _, s := range c.ActiveStates() {
			st.Active = append(st.Active, NameOf(s))
		}
	}
	return st
}

func (p *Player) advance(dt float64) {
	p.elapsed += dt * p.speed
	if p.elapsed < 0 {
		p.elapsed = 0
	}
	if p.duration > 0 && p.elapsed > p.duration {
		p.elapsed = p.duration
	}
	if p.duration <= 0 {
		p.percent = 1
	} else {
		p.percent = clamp01(p.elapsed / p.duration)
	}
	p.applyPercent()
}

func (p *Player) applyPercent() {
	p.push()
	if p.percent >= 1 && (p.state == StatePlaying || p.state == StatePause) {
		p.finish()
	}
}

func (p *Player) push() {
	if p.content == nil {
		p.contentOK = false
		return
	}
	p.contentOK = p.content.PlayContent(p.percent)
}

func (p *Player) finish() {
	p.beforeFinish = p.state
	p.Stop()
	p.callbacks.Invoke(p.finishCallback)
	p.setState(StateFinished)
}

func (p *Player) hook(fn func(PlayableContent) HookResult) HookResult {
	if p.content == nil {
		return HookAborted
	}
	return fn(p.content)
}

func (p *Player) setState(s PlayerState) {
	if p.state == s {
		return
	}
	from := p.state
	p.state = s
	p.observers.playerStateChanged(p, from, s)
}
